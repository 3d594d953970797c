package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-pidog/internal/log"
	"github.com/teslashibe/go-pidog/pkg/bridge"
	"github.com/teslashibe/go-pidog/pkg/remote"
)

func buildProbeCmd() *cobra.Command {
	var remoteHost string
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Check that the robot is reachable",
		Long: `probe pings the vendor SDK sidecar on the local machine, or with --remote
the hardware control service, and reports what it finds.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if remoteHost != "" {
				cfg.Remote.Host = remoteHost
			}
			logger := log.Component("probe")
			out := cmd.OutOrStdout()

			if url := cfg.RemoteURL(); url != "" {
				c, err := remote.New(cmd.Context(), url, remote.WithLogger(logger))
				if err != nil {
					return err
				}
				h, err := c.Health(cmd.Context())
				if err != nil {
					return fmt.Errorf("service %s unreachable: %w", url, err)
				}
				fmt.Fprintf(out, "service %s: status=%s mode=%s hardware=%t camera=%t\n",
					url, h.Status, h.Mode, h.HardwareAvailable, h.CameraActive)
				return nil
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Bridge.ProbeTimeout+time.Second)
			defer cancel()
			d, err := bridge.Dial(ctx, cfg.Bridge.Endpoint,
				bridge.WithProbeTimeout(cfg.Bridge.ProbeTimeout),
				bridge.WithLogger(logger),
			)
			if err != nil {
				return err
			}
			// Close would make the sidecar release the devices.
			defer d.Release()
			if err := d.Ping(ctx); err != nil {
				return err
			}
			fmt.Fprintf(out, "sidecar %s: ok\n", cfg.Bridge.Endpoint)
			return nil
		},
	}
	cmd.Flags().StringVar(&remoteHost, "remote", "", "probe the hardware control service on this host")
	return cmd
}
