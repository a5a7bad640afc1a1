/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/friendsincode/radioblue/internal/config"
	"github.com/friendsincode/radioblue/internal/logging"
	"github.com/friendsincode/radioblue/internal/player"
	"github.com/friendsincode/radioblue/internal/server"
	"github.com/friendsincode/radioblue/internal/telemetry"
	"github.com/friendsincode/radioblue/internal/version"
)

var (
	logger     zerolog.Logger
	cfg        *config.Config
	configPath string
)

var rootCmd = &cobra.Command{
	Use:     "radioblue",
	Short:   "RadioBlue - Unattended broadcast automation engine",
	Long:    "RadioBlue keeps a remote playback client on air: it feeds the play queue from a rotation playlist, inserts mic breaks, watches the stream for dead air, and exposes a small HTTP control surface.",
	Version: version.Version,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the broadcast engine",
	Long:  "Start the queue synchronizer, telemetry aggregator, stream monitor and HTTP control surface",
	RunE:  runServe,
}

var nextTrackCmd = &cobra.Command{
	Use:   "nexttrack",
	Short: "Skip the playback client to the next track and exit",
	RunE:  runNextTrack,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "path to configuration file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(nextTrackCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration (called by commands that need it)
func loadConfig() error {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger = logging.Setup(cfg.Environment)
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	logger.Info().Msg("RadioBlue starting")

	// Persist the effective configuration (secrets stripped, previous file
	// backed up) so env-supplied settings survive into the next run.
	if err := cfg.Save(configPath); err != nil {
		logger.Warn().Err(err).Msg("could not persist configuration")
	}

	tracerProvider, err := telemetry.InitTracer(context.Background(), telemetry.TracerConfig{
		ServiceName:    "radioblue",
		ServiceVersion: version.Version,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.TracingEnabled,
		SampleRate:     cfg.TracingSampleRate,
	}, logger)
	if err != nil {
		return fmt.Errorf("initialize tracer: %w", err)
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown tracer provider")
		}
	}()

	api := player.NewClient(cfg.ServerURL, cfg.ServerToken, cfg.FillerGUID, logger)

	srv, err := server.New(cfg, api, logger)
	if err != nil {
		return fmt.Errorf("initialize server: %w", err)
	}

	httpServer := srv.HTTPServer()
	metricsServer := srv.MetricsServer()

	go func() {
		logger.Info().Str("addr", httpServer.Addr).Msg("control surface listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	go func() {
		logger.Info().Str("addr", metricsServer.Addr).Msg("metrics server listening")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("metrics server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down gracefully...")

	timeoutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(timeoutCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	if err := metricsServer.Shutdown(timeoutCtx); err != nil {
		logger.Error().Err(err).Msg("metrics shutdown failed")
	}

	if err := srv.Close(); err != nil {
		logger.Error().Err(err).Msg("shutdown cleanup failed")
	}

	logger.Info().Msg("RadioBlue stopped")
	return nil
}

// runNextTrack is a one-shot skip, for cron jobs and hardware buttons that
// bypass the running control surface.
func runNextTrack(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	api := player.NewClient(cfg.ServerURL, cfg.ServerToken, cfg.FillerGUID, logger)
	if err := api.SkipNext(ctx, cfg.ClientName); err != nil {
		return fmt.Errorf("skip next: %w", err)
	}

	logger.Info().Msg("skipped to next track")
	return nil
}
