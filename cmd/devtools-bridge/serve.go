package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentbridge/devtools-bridge/internal/config"
	"github.com/agentbridge/devtools-bridge/internal/logging"
	"github.com/agentbridge/devtools-bridge/internal/server"
)

const flagConfigFile = "config"

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the bridge server",
		RunE:  runServe,
	}

	config.BindFlags(cmd.Flags())
	cmd.Flags().String(flagConfigFile, "", "path to a YAML config file (or DEVTOOLS_BRIDGE_CONFIG)")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString(flagConfigFile)
	if configFile == "" {
		configFile = os.Getenv("DEVTOOLS_BRIDGE_CONFIG")
	}

	cfg, err := config.Load(cmd.Flags(), configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logging.Initialize(cfg.LogLevel, cfg.LogPretty); err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}

	srv := server.New(cfg)
	httpServer := srv.HTTPServer()

	go srv.RunSweepLoop()

	errCh := make(chan error, 1)
	go func() {
		logging.Server().Info().Str("addr", cfg.Addr).Msg("devtools-bridge listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
			return
		}
		errCh <- nil
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logging.Server().Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		if err != nil {
			return err
		}
		return nil
	}

	shutdownTimeout := 15 * time.Second
	if raw := os.Getenv("SHUTDOWN_TIMEOUT"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			shutdownTimeout = d
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logging.Server().Warn().Err(err).Msg("http server forced to shutdown")
	}
	srv.Shutdown()

	return nil
}
