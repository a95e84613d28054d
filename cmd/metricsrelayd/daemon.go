package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oriys/metricsrelay/internal/config"
	"github.com/oriys/metricsrelay/internal/logging"
	"github.com/oriys/metricsrelay/internal/observability"
	"github.com/oriys/metricsrelay/internal/supervisor"
)

func daemonCmd() *cobra.Command {
	var (
		socketPath string
		relayAddr  string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the metrics relay daemon",
		Long:  "Accept connections, validate telemetry, and relay it to the configured collector until signaled to stop",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.DefaultConfig()
			if configFile != "" {
				var err error
				cfg, err = config.LoadFromFile(configFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
			}
			config.LoadFromEnv(cfg)

			if cmd.Flags().Changed("socket") {
				cfg.Transport.SocketPath = socketPath
				cfg.SocketPath = socketPath
			}
			if cmd.Flags().Changed("relay-addr") {
				cfg.Relay.Addr = relayAddr
			}
			if cmd.Flags().Changed("log-level") {
				cfg.Daemon.LogLevel = logLevel
			}

			logging.SetLevelFromString(cfg.Daemon.LogLevel)
			logging.InitStructured(cfg.Daemon.LogFormat, cfg.Daemon.LogLevel)

			if err := observability.Init(context.Background(), observability.Config{
				Enabled:     cfg.Observability.Tracing.Enabled,
				Exporter:    cfg.Observability.Tracing.Exporter,
				Endpoint:    cfg.Observability.Tracing.Endpoint,
				ServiceName: cfg.Observability.Tracing.ServiceName,
				SampleRate:  cfg.Observability.Tracing.SampleRate,
			}); err != nil {
				return fmt.Errorf("init tracing: %w", err)
			}
			defer observability.Shutdown(context.Background())

			sup, err := supervisor.New(cfg)
			if err != nil {
				return fmt.Errorf("build supervisor: %w", err)
			}

			ctx, cancel := context.WithCancel(context.Background())
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigCh
				logging.Op().Info("shutdown signal received")
				cancel()
			}()

			return sup.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&socketPath, "socket", "", "Unix socket path to listen on")
	cmd.Flags().StringVar(&relayAddr, "relay-addr", "", "Remote collector address to relay to")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level")

	return cmd
}
