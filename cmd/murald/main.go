// Command murald serves the mural protocol over HTTP on top of a Redis ledger.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dyluth/mural/internal/config"
	"github.com/dyluth/mural/internal/protocol"
	"github.com/spf13/pflag"
)

func main() {
	configPath := pflag.StringP("config", "c", config.DefaultPath, "Path to mural.yml")
	envFile := pflag.String("env-file", ".env", "Optional KEY=VALUE file applied before MURAL_* overrides")
	pflag.Parse()

	// 1. Load environment and configuration
	if err := config.LoadEnvFile(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to load %s: %v\n", *configPath, err)
		os.Exit(1)
	}
	logger := cfg.NewLogger()

	// 2. Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Connect and build components
	d, err := newDaemon(ctx, cfg, logger, protocol.SystemClock{})
	if err != nil {
		logger.WithError(err).WithField("event_type", "startup_failed").Error("murald failed to start")
		os.Exit(1)
	}

	// 4. Serve until signalled
	runErr := d.run(ctx)
	d.close()
	if runErr != nil {
		logger.WithError(runErr).Error("murald stopped with error")
		os.Exit(1)
	}
	logger.WithField("event_type", "daemon_stopped").Info("murald stopped")
}
