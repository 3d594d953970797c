// Package dispatch maps action requests from the conversational layer onto
// a controller: names are checked against the catalog and parameters are
// normalized before anything moves.
package dispatch

import (
	"context"
	"log/slog"

	"github.com/teslashibe/go-pidog/pkg/actions"
	"github.com/teslashibe/go-pidog/pkg/pidog"
)

// Dispatcher routes catalog actions to one controller.
type Dispatcher struct {
	controller pidog.Controller
	catalog    *actions.Catalog
	logger     *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithCatalog replaces the default catalog.
func WithCatalog(c *actions.Catalog) Option {
	return func(d *Dispatcher) {
		if c != nil {
			d.catalog = c
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// New creates a dispatcher for controller.
func New(controller pidog.Controller, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		controller: controller,
		catalog:    actions.Default(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Catalog returns the catalog in use.
func (d *Dispatcher) Catalog() *actions.Catalog {
	return d.catalog
}

// Controller returns the controller actions are routed to.
func (d *Dispatcher) Controller() pidog.Controller {
	return d.controller
}

// Dispatch executes a function call by name with loosely typed arguments.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args map[string]any) pidog.Result {
	return d.Execute(ctx, actions.ParseArgs(name, args))
}

// Execute runs a request. Unknown names fail without touching the
// controller; out-of-range parameters are clamped. The controller's result
// is returned unchanged.
func (d *Dispatcher) Execute(ctx context.Context, req actions.Request) pidog.Result {
	params, err := d.catalog.Normalize(req)
	if err != nil {
		d.logger.Warn("unknown action requested", "action", req.Name)
		return pidog.Failed(req.Name, pidog.ErrUnknownAction)
	}

	d.logger.Debug("dispatching action", "action", req.Name, "speed", params.Speed, "steps", params.Steps)
	return d.controller.Execute(ctx, req.Name, params)
}
