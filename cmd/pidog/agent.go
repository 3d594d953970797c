package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/teslashibe/go-pidog/internal/log"
	"github.com/teslashibe/go-pidog/pkg/agent"
	"github.com/teslashibe/go-pidog/pkg/camera"
	"github.com/teslashibe/go-pidog/pkg/pidog"
	"github.com/teslashibe/go-pidog/pkg/remote"
	"github.com/teslashibe/go-pidog/pkg/web"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// toolOutput is one line written back for each tool call read from stdin.
type toolOutput struct {
	CallID string `json:"call_id"`
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

func buildAgentCmd() *cobra.Command {
	var (
		remoteHost  string
		remotePort  int
		noDashboard bool
		cam         cameraFlags
	)
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Run the control agent on the dialogue host",
		Long: `agent connects to the robot, either in-process through the vendor SDK
sidecar or remotely through a hardware control service, greets with a tail
wag and streams the camera to the dashboard.

Tool calls are read from stdin as JSON lines of the form
{"id":"1","name":"sit","arguments":{"speed":60}} and each result is written
to stdout as a JSON line.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if remoteHost != "" {
				cfg.Remote.Host = remoteHost
			}
			if cmd.Flags().Changed("port") {
				cfg.Remote.Port = remotePort
			}
			camCfg := cam.apply(cfg.Camera)
			if errs := camCfg.Validate(); len(errs) > 0 {
				return fmt.Errorf("invalid camera config: %v", errs)
			}
			logger := log.Component("agent")

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			controller, err := connect(ctx, cfg.RemoteURL(), func() pidog.SelectConfig {
				return selectConfig(cfg, camCfg.Width, camCfg.Height, logger)
			}, logger)
			if err != nil {
				return err
			}

			session := agent.NewSession(controller,
				agent.WithCamera(camera.WithConfig(camCfg)),
				agent.WithLogger(logger),
			)
			session.Streamer().Manager().Watch(func(c camera.Config) {
				logger.Info("camera config changed", "width", c.Width, "height", c.Height, "fps", c.Framerate, "quality", c.Quality)
			})
			var (
				sink      camera.Sink
				dashboard *web.Server
			)
			if cfg.Web.Enabled && !noDashboard {
				dashboard = web.NewServer(cfg.Web.Addr,
					web.WithDispatcher(session.Dispatcher()),
					web.WithStreamer(session.Streamer()),
					web.WithJPEGQuality(camCfg.Quality),
					web.WithLogger(logger),
				)
				dashboard.StartAsync(ctx)
				sink = dashboard
			}

			if err := session.Enter(ctx, sink); err != nil {
				return err
			}
			defer func() {
				session.Exit(ctx)
				if dashboard != nil {
					sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					if err := dashboard.Shutdown(sctx); err != nil {
						logger.Warn("dashboard shutdown error", "error", err)
					}
				}
			}()

			onResult := func(call agent.ToolCall, out toolOutput) {
				if dashboard != nil {
					dashboard.AddLog("action", fmt.Sprintf("%s: %s", call.Name, out.Result))
				}
			}
			if err := serveToolCalls(ctx, os.Stdin, cmd.OutOrStdout(), session, onResult, logger); err != nil {
				return err
			}
			// Without a caller on stdin the agent keeps streaming until signalled.
			if ctx.Err() == nil {
				logger.Info("stdin closed, running until interrupted")
				<-ctx.Done()
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&remoteHost, "remote", "", "hardware control service host (empty drives the robot in-process)")
	cmd.Flags().IntVar(&remotePort, "port", 5000, "hardware control service port")
	cmd.Flags().BoolVar(&noDashboard, "no-dashboard", false, "do not start the dashboard and camera stream")
	cam.register(cmd.Flags())
	return cmd
}

// connect returns a remote controller when baseURL is set, otherwise a local
// one selected by sel.
func connect(ctx context.Context, baseURL string, sel func() pidog.SelectConfig, logger *slog.Logger) (pidog.Controller, error) {
	if baseURL == "" {
		return pidog.NewLocal(ctx, sel())
	}
	c, err := remote.New(ctx, baseURL, remote.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	logger.Info("using remote pidog", "url", baseURL, "reachable", c.Reachable(), "hardware", c.HardwareAvailable())
	return c, nil
}

// serveToolCalls reads one JSON tool call per line from r until EOF or ctx
// is done and writes one result line to w per call. Malformed lines are
// reported on w and skipped.
func serveToolCalls(ctx context.Context, r io.Reader, w io.Writer, session *agent.Session, onResult func(agent.ToolCall, toolOutput), logger *slog.Logger) error {
	lines := make(chan []byte)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64<<10), 1<<20)
		for sc.Scan() {
			line := append([]byte(nil), sc.Bytes()...)
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	enc := json.NewEncoder(w)
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			if len(line) == 0 {
				continue
			}

			var call agent.ToolCall
			if err := json.Unmarshal(line, &call); err != nil {
				logger.Warn("invalid tool call", "error", err)
				if err := enc.Encode(toolOutput{Error: "invalid tool call: " + err.Error()}); err != nil {
					return err
				}
				continue
			}

			res := session.HandleToolCall(ctx, call)
			out := toolOutput{CallID: res.CallID, Result: res.Result}
			if res.Error != nil {
				out.Error = res.Error.Error()
			}
			if onResult != nil {
				onResult(call, out)
			}
			if err := enc.Encode(out); err != nil {
				return err
			}
		}
	}
}
