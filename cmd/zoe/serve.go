package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zoe-assistant/zoe/pkg/logger"
	"github.com/zoe-assistant/zoe/pkg/presenter"
	"github.com/zoe-assistant/zoe/pkg/server"
	"github.com/zoe-assistant/zoe/pkg/skills"
)

// ServeConfig holds configuration for the serve command
type ServeConfig struct {
	Host  string
	Port  int
	Watch bool
}

func NewServeConfig() *ServeConfig {
	return &ServeConfig{
		Host: "localhost",
		Port: 8080,
	}
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the assistant HTTP API",
	Long: `Start the HTTP API that routes chat messages through skills, intents
and the LLM fallback. The server will be available at
http://localhost:8080 by default.`,
	Run: func(cmd *cobra.Command, args []string) {
		runServeCommand(cmd.Context(), getServeConfigFromFlags(cmd))
	},
}

func init() {
	defaults := NewServeConfig()
	serveCmd.Flags().String("host", defaults.Host, "Host to bind the server to")
	serveCmd.Flags().Int("port", defaults.Port, "Port to bind the server to")
	serveCmd.Flags().Bool("watch", false, "Reload skills when their directories change")
}

func getServeConfigFromFlags(cmd *cobra.Command) *ServeConfig {
	config := NewServeConfig()

	if host, err := cmd.Flags().GetString("host"); err == nil {
		config.Host = host
	}
	if port, err := cmd.Flags().GetInt("port"); err == nil {
		config.Port = port
	}
	if watch, err := cmd.Flags().GetBool("watch"); err == nil {
		config.Watch = watch
	}
	return config
}

func runServeCommand(ctx context.Context, config *ServeConfig) {
	application, err := newApp(ctx)
	if err != nil {
		presenter.Error(err, "failed to initialize")
		os.Exit(1)
	}
	defer func() {
		if closeErr := application.Close(); closeErr != nil {
			logger.G(ctx).WithError(closeErr).Error("failed to close database")
		}
	}()

	srv, err := server.NewServer(
		&server.Config{Host: config.Host, Port: config.Port},
		application.router,
		application.registry,
		application.executor,
		application.collector,
	)
	if err != nil {
		presenter.Error(err, "invalid server configuration")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if config.Watch {
		watcher, err := skills.NewWatcher(application.registry)
		if err != nil {
			logger.G(ctx).WithError(err).Warn("failed to start skill watcher")
		} else {
			defer watcher.Close()
			go watcher.Run(ctx)
		}
	}

	presenter.Success(fmt.Sprintf("Zoe API starting on http://%s:%d", config.Host, config.Port))
	presenter.Info("Press Ctrl+C to stop the server")

	if err := srv.Start(ctx); err != nil {
		logger.G(ctx).WithError(err).Error("server error")
		presenter.Error(err, "server failed")
		os.Exit(1)
	}

	presenter.Info("Server stopped")
}
