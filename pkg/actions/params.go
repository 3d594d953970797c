package actions

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Params are normalized action parameters. Steps is zero for actions that
// are not directional.
type Params struct {
	Speed int `json:"speed"`
	Steps int `json:"steps,omitempty"`
}

// Request is a raw action request from the conversational layer. Nil fields
// take the catalog default.
type Request struct {
	Name  string `json:"name"`
	Speed *int   `json:"speed,omitempty"`
	Steps *int   `json:"steps,omitempty"`
}

// Bounds describes one numeric parameter.
type Bounds struct {
	Min     int `json:"minimum"`
	Max     int `json:"maximum"`
	Default int `json:"default"`
}

// Schema is the parameter schema of one action.
type Schema struct {
	Speed Bounds  `json:"speed"`
	Steps *Bounds `json:"steps,omitempty"`
}

var (
	speedBounds = Bounds{Min: MinSpeed, Max: MaxSpeed, Default: DefaultSpeed}
	stepsBounds = Bounds{Min: MinSteps, Max: MaxSteps, Default: DefaultSteps}
)

// Schema returns the parameter schema of the named action.
func (c *Catalog) Schema(name string) (Schema, error) {
	a, err := c.Describe(name)
	if err != nil {
		return Schema{}, err
	}
	return schemaFor(a), nil
}

func schemaFor(a Action) Schema {
	s := Schema{Speed: speedBounds}
	if a.Directional {
		steps := stepsBounds
		s.Steps = &steps
	}
	return s
}

// Normalize validates the action name and fills defaults, clamping
// out-of-range values to the nearest bound.
func (c *Catalog) Normalize(req Request) (Params, error) {
	a, err := c.Describe(req.Name)
	if err != nil {
		return Params{}, err
	}
	p := Params{Speed: speedBounds.apply(req.Speed)}
	if a.Directional {
		p.Steps = stepsBounds.apply(req.Steps)
	}
	return p, nil
}

// Clamp restricts p to the bounds of the named action without checking the
// name; unknown names are treated as non-directional.
func (c *Catalog) Clamp(name string, p Params) Params {
	out := Params{Speed: speedBounds.clamp(p.Speed)}
	if c.IsDirectional(name) {
		out.Steps = stepsBounds.clamp(p.Steps)
	}
	return out
}

func (b Bounds) apply(v *int) int {
	if v == nil {
		return b.Default
	}
	return b.clamp(*v)
}

func (b Bounds) clamp(v int) int {
	if v < b.Min {
		return b.Min
	}
	if v > b.Max {
		return b.Max
	}
	return v
}

// ParseArgs builds a Request from function-call arguments. Numbers may arrive
// as float64, int, json.Number or numeric strings; anything else is ignored
// and falls back to the default.
func ParseArgs(name string, args map[string]any) Request {
	req := Request{Name: name}
	if v, ok := toInt(args["speed"]); ok {
		req.Speed = &v
	}
	if v, ok := toInt(args["steps"]); ok {
		req.Steps = &v
	}
	return req
}

func toInt(v any) (int, bool) {
	switch val := v.(type) {
	case int:
		return val, true
	case int32:
		return int(val), true
	case int64:
		return int(val), true
	case float32:
		return roundFloat(float64(val))
	case float64:
		return roundFloat(val)
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return int(i), true
		}
		if f, err := val.Float64(); err == nil {
			return roundFloat(f)
		}
	case string:
		s := strings.TrimSpace(val)
		if i, err := strconv.Atoi(s); err == nil {
			return i, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return roundFloat(f)
		}
	}
	return 0, false
}

func roundFloat(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	// Saturate before converting so huge values still clamp to the bound.
	if f > math.MaxInt32 {
		return math.MaxInt32, true
	}
	if f < math.MinInt32 {
		return math.MinInt32, true
	}
	return int(math.Round(f)), true
}

// Int returns a pointer to v, for building Requests.
func Int(v int) *int {
	return &v
}
