/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package server wires the engine: it performs the hard startup sequence
// (connect, build the initial play queue, start playback), runs the four
// loops, and serves the operator control surface.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/friendsincode/radioblue/internal/broadcast"
	"github.com/friendsincode/radioblue/internal/config"
	"github.com/friendsincode/radioblue/internal/deadair"
	"github.com/friendsincode/radioblue/internal/events"
	"github.com/friendsincode/radioblue/internal/history"
	"github.com/friendsincode/radioblue/internal/mic"
	"github.com/friendsincode/radioblue/internal/nowplaying"
	"github.com/friendsincode/radioblue/internal/player"
	"github.com/friendsincode/radioblue/internal/publisher"
	"github.com/friendsincode/radioblue/internal/queuesync"
	"github.com/friendsincode/radioblue/internal/session"
	"github.com/friendsincode/radioblue/internal/telemetry"
)

const (
	syncInterval      = time.Second
	aggregateInterval = 500 * time.Millisecond
)

// PlayerAPI is the full playback service surface the server wires together.
// *player.Client satisfies it; tests substitute fakes.
type PlayerAPI interface {
	Ping(ctx context.Context) error
	PlaylistByName(ctx context.Context, name string) (*player.Playlist, error)
	CreateQueue(ctx context.Context, tracks []player.Track) (*player.PlayQueue, error)
	Queue(ctx context.Context, queueID int64) (*player.PlayQueue, error)
	AppendToQueue(ctx context.Context, queueID int64, track player.Track) error
	RemoveLastFromQueue(ctx context.Context, queueID int64) error
	RefreshQueue(ctx context.Context, clientName string, queueID int64) error
	Sessions(ctx context.Context) ([]player.Session, error)
	Play(ctx context.Context, clientName string, queueID int64) error
	Pause(ctx context.Context, clientName string) error
	Resume(ctx context.Context, clientName string) error
	SkipNext(ctx context.Context, clientName string) error
	SetMute(ctx context.Context, clientName string, muted bool) error
}

// Server bundles the loops, shared state, and the HTTP control surface.
type Server struct {
	cfg    *config.Config
	logger zerolog.Logger
	router chi.Router

	api     PlayerAPI
	state   *broadcast.State
	bus     *events.Bus
	store   *history.Store
	sync    *queuesync.Synchronizer
	tracker *session.Tracker
	agg     *telemetry.Aggregator
	monitor *deadair.Monitor
	mic     *mic.Switch
	writer  *nowplaying.Writer
	pub     *publisher.Redis

	queueID int64

	httpServer    *http.Server
	metricsServer *http.Server

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New constructs the server. Everything here is the hard startup dependency:
// any failure aborts the process before a single loop starts.
func New(cfg *config.Config, api PlayerAPI, logger zerolog.Logger) (*Server, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := api.Ping(ctx); err != nil {
		return nil, fmt.Errorf("connect playback service: %w", err)
	}
	logger.Info().Str("url", cfg.ServerURL).Msg("connection to playback service OK")

	store, err := history.Open(cfg.HistoryDSN)
	if err != nil {
		return nil, err
	}

	playlist, err := api.PlaylistByName(ctx, cfg.OnAirPlaylist)
	if err != nil {
		return nil, fmt.Errorf("load on-air playlist: %w", err)
	}
	if len(playlist.Tracks) == 0 {
		return nil, fmt.Errorf("on-air playlist %q is empty", cfg.OnAirPlaylist)
	}

	queue, err := api.CreateQueue(ctx, playlist.Tracks[:1])
	if err != nil {
		return nil, fmt.Errorf("create play queue: %w", err)
	}

	if err := api.Play(ctx, cfg.ClientName, queue.ID); err != nil {
		return nil, fmt.Errorf("start playback on %q: %w", cfg.ClientName, err)
	}
	logger.Info().Str("client", cfg.ClientName).Int64("queue", queue.ID).Msg("playback started")

	state := broadcast.New()
	bus := events.NewBus()
	micSwitch := mic.NewSwitch(api, state, bus, cfg.ClientName, logger)

	tracker := session.NewTracker(api, state, store, bus, micSwitch, cfg.ClientName, queue.ID, logger)
	tracker.SeedPlayed(playlist.Tracks[0].GUID)

	srv := &Server{
		cfg:     cfg,
		logger:  logger,
		api:     api,
		state:   state,
		bus:     bus,
		store:   store,
		sync:    queuesync.New(api, state, cfg.OnAirPlaylist, cfg.ClientName, queue.ID, cfg.FillerInterval, queue, logger),
		tracker: tracker,
		agg:     telemetry.NewAggregator(api, state, cfg.ClientName, queue.ID, logger),
		mic:     micSwitch,
		writer:  nowplaying.NewWriter(cfg.NowPlayingPath, logger),
		queueID: queue.ID,
	}

	if cfg.StreamURL != "" {
		srv.monitor = deadair.NewMonitor(cfg.StreamURL, cfg.SilenceCeilingDB, state, logger)
	} else {
		logger.Warn().Msg("no stream URL configured, dead air monitoring disabled")
	}

	if cfg.RedisAddr != "" {
		srv.pub = publisher.NewRedis(publisher.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, uuid.NewString(), logger)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(telemetry.MetricsMiddleware)
	srv.router = router
	srv.configureRoutes()

	srv.httpServer = &http.Server{
		Addr:              cfg.HTTPBind,
		Handler:           otelhttp.NewHandler(router, "radioblue-control"),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", telemetry.Handler())
	srv.metricsServer = &http.Server{
		Addr:              cfg.MetricsBind,
		Handler:           metricsMux,
		ReadHeaderTimeout: 15 * time.Second,
	}

	srv.startBackgroundWorkers()
	return srv, nil
}

// HTTPServer returns the control surface server.
func (s *Server) HTTPServer() *http.Server { return s.httpServer }

// MetricsServer returns the metrics server.
func (s *Server) MetricsServer() *http.Server { return s.metricsServer }

// startBackgroundWorkers launches the loops. A fault inside any loop is
// logged at the loop boundary and the loop continues to its next tick.
func (s *Server) startBackgroundWorkers() {
	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel

	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		s.runSyncLoop(ctx)
	}()

	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		s.runAggregateLoop(ctx)
	}()

	if s.monitor != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			s.monitor.Run(ctx)
		}()
	}

	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		s.writer.Run(ctx, s.bus)
	}()

	if s.pub != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			s.pub.Run(ctx, s.bus)
		}()
	}
}

func (s *Server) runSyncLoop(ctx context.Context) {
	s.logger.Info().Msg("queue sync loop started")
	ticker := time.NewTicker(syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("queue sync loop stopped")
			return
		case <-ticker.C:
			if err := s.sync.Sync(ctx); err != nil {
				s.logger.Error().Err(err).Msg("sync cycle failed")
			}
			if err := s.tracker.Observe(ctx); err != nil {
				s.logger.Error().Err(err).Msg("session observe failed")
			}
		}
	}
}

func (s *Server) runAggregateLoop(ctx context.Context) {
	s.logger.Info().Msg("telemetry aggregator started")
	ticker := time.NewTicker(aggregateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("telemetry aggregator stopped")
			return
		case <-ticker.C:
			err := s.agg.Aggregate(ctx)
			switch {
			case err == nil:
				if s.pub != nil {
					s.pub.PublishSnapshot(ctx, s.state.Snapshot())
				}
			case errors.Is(err, telemetry.ErrStaleTelemetry):
				s.logger.Debug().Msg("player telemetry incomplete, snapshot retained")
			default:
				s.logger.Error().Err(err).Msg("aggregate cycle failed")
			}
		}
	}
}

// Close stops the loops, flips the terminal stopping marker, and pauses
// playback on the remote client.
func (s *Server) Close() error {
	s.state.SetStopping()

	if s.bgCancel != nil {
		s.bgCancel()
	}
	s.bgWG.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.api.Pause(ctx, s.cfg.ClientName); err != nil {
		s.logger.Warn().Err(err).Msg("pause on shutdown failed")
	}

	if s.pub != nil {
		if err := s.pub.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("close publisher failed")
		}
	}
	return s.store.Close()
}
