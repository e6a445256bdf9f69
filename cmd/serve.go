package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"mcpdeck/internal/app"
	"mcpdeck/internal/config"
	"mcpdeck/internal/server"
	"mcpdeck/pkg/logging"

	"github.com/spf13/cobra"
)

// serveDebug enables verbose logging across the application.
var serveDebug bool

// serveConfigPath specifies a custom configuration directory path. When
// unset, the user config directory is used.
var serveConfigPath string

// shutdownGrace bounds how long shutdown waits for managed servers to stop.
const shutdownGrace = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the mcpdeck daemon",
	Long: `Starts the mcpdeck daemon: loads persisted server definitions,
auto-starts servers configured for it, samples metrics, and serves the
REST and WebSocket API for dashboards and the other mcpdeck commands.

Configuration:
  mcpdeck loads config.yaml from the configuration directory (default
  ~/.config/mcpdeck, override with --config-path). Server definitions
  live in the servers/ subdirectory, one YAML file each; files dropped
  there while the daemon runs are picked up automatically.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	level := logging.LevelInfo
	if serveDebug {
		level = logging.LevelDebug
	}
	logging.Init(level, cmd.ErrOrStderr())

	configDir, err := config.ResolveConfigDir(serveConfigPath)
	if err != nil {
		return fmt.Errorf("failed to resolve config directory: %w", err)
	}
	cfg, err := config.Load(configDir)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	core := app.New(&cfg, configDir, app.Options{})
	if err := core.Start(ctx); err != nil {
		return fmt.Errorf("failed to start core: %w", err)
	}

	host := server.New(core, cfg.Dashboard)
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- host.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		core.Shutdown(context.Background())
		return err
	case <-ctx.Done():
	}

	logging.Info("App", "Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	host.Shutdown(shutdownCtx)
	if err := core.Shutdown(shutdownCtx); err != nil {
		logging.Warn("App", "Fleet did not stop cleanly: %v", err)
	}
	return <-serveErr
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable debug logging")
	serveCmd.Flags().StringVar(&serveConfigPath, "config-path", "", "Custom configuration directory path")
}
