// Command pidog runs the PiDog hardware control service on the robot and the
// in-process or remote control agent on the dialogue host.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-pidog/internal/config"
	"github.com/teslashibe/go-pidog/internal/log"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "pidog",
	Short: "Control a SunFounder PiDog robot",
	Long: `pidog drives a SunFounder PiDog robot dog.

Run "pidog serve" on the Raspberry Pi to expose the hardware over HTTP, and
"pidog agent" on the dialogue host to dispatch actions and stream the camera,
either in-process or against a remote service.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(buildServeCmd())
	rootCmd.AddCommand(buildAgentCmd())
	rootCmd.AddCommand(buildActionsCmd())
	rootCmd.AddCommand(buildProbeCmd())

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"path to a YAML config file")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "",
		"log level: debug, info, warn, error (overrides LOG_LEVEL)")
}

func main() {
	Execute()
}

// loadConfig reads the configuration and initializes the global logger.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	log.Init(cfg.LogLevel)
	return cfg, nil
}
