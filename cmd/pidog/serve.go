package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-pidog/internal/log"
	"github.com/teslashibe/go-pidog/pkg/camera"
	"github.com/teslashibe/go-pidog/pkg/pidog"
	"github.com/teslashibe/go-pidog/pkg/server"
)

func buildServeCmd() *cobra.Command {
	var (
		addr     string
		validate bool
		mode     string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the hardware control service on the robot",
		Long: `serve exposes the PiDog over HTTP: GET /health, POST /action/{name},
GET /camera/frame and POST /shutdown. When the vendor SDK sidecar is not
reachable it serves a mock robot instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Service.Addr = addr
			}
			if cmd.Flags().Changed("validate") {
				cfg.Service.CatalogValidation = validate
			}
			if mode != "" {
				cfg.Mode = mode
			}
			logger := log.Component("service")

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			svc := camera.ServiceConfig()
			backend, err := pidog.Select(ctx, selectConfig(cfg, svc.Width, svc.Height, logger))
			if err != nil {
				return err
			}
			if err := backend.Initialize(ctx); err != nil {
				logger.Error("initialization failed, actions will report device faults", "error", err)
			}

			srv := server.New(backend,
				server.WithCatalogValidation(cfg.Service.CatalogValidation),
				server.WithJPEGQuality(cfg.Camera.Quality),
				server.WithLogger(logger),
			)

			errCh := make(chan error, 1)
			go func() {
				logger.Info("pidog service starting", "addr", cfg.Service.Addr, "mode", backend.Mode())
				errCh <- srv.Listen(cfg.Service.Addr)
			}()

			var listenErr error
			select {
			case <-ctx.Done():
				logger.Info("signal received, shutting down")
			case listenErr = <-errCh:
			}

			closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return errors.Join(listenErr, srv.Close(closeCtx))
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, 0.0.0.0:5000)")
	cmd.Flags().BoolVar(&validate, "validate", false, "reject action names not in the catalog")
	cmd.Flags().StringVar(&mode, "mode", "", "hardware mode: auto, hardware or mock")
	return cmd
}
