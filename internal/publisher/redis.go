/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package publisher pushes telemetry snapshots and now-playing records to
// Redis for downstream displays and dashboards. Publishing is best effort:
// Redis being down never disturbs the loops.
package publisher

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/friendsincode/radioblue/internal/broadcast"
	"github.com/friendsincode/radioblue/internal/events"
)

const (
	snapshotChannel   = "radioblue:snapshot"
	nowPlayingChannel = "radioblue:now_playing"

	maxFailures   = 5
	checkInterval = 30 * time.Second
)

// Config contains Redis connection configuration.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// Redis publishes engine telemetry to Redis channels.
type Redis struct {
	client     *redis.Client
	logger     zerolog.Logger
	instanceID string

	mu        sync.Mutex
	disabled  bool
	failCount int
	lastCheck time.Time
}

// NewRedis creates a Redis publisher. A failed initial connection degrades to
// a disabled publisher that periodically re-checks, rather than an error.
func NewRedis(cfg Config, instanceID string, logger zerolog.Logger) *Redis {
	log := logger.With().Str("component", "publisher").Logger()

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	p := &Redis{client: client, logger: log, instanceID: instanceID}

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, snapshot publishing disabled")
		p.disabled = true
		p.lastCheck = time.Now()
	} else {
		log.Info().Str("addr", cfg.Addr).Msg("Redis snapshot publisher initialized")
	}
	return p
}

// PublishSnapshot pushes a telemetry snapshot.
func (p *Redis) PublishSnapshot(ctx context.Context, snap *broadcast.Snapshot) {
	if snap == nil || !p.usable() {
		return
	}
	payload := struct {
		Instance string              `json:"instance"`
		Snapshot *broadcast.Snapshot `json:"snapshot"`
	}{Instance: p.instanceID, Snapshot: snap}

	data, err := json.Marshal(payload)
	if err != nil {
		p.logger.Warn().Err(err).Msg("encode snapshot failed")
		return
	}
	p.record(p.client.Publish(ctx, snapshotChannel, data).Err())
}

// Run forwards now-playing events to Redis until the context is cancelled.
func (p *Redis) Run(ctx context.Context, bus *events.Bus) {
	sub := bus.Subscribe(events.EventNowPlaying)
	for {
		select {
		case <-ctx.Done():
			bus.Unsubscribe(events.EventNowPlaying, sub)
			return
		case payload, ok := <-sub:
			if !ok {
				return
			}
			if !p.usable() {
				continue
			}
			data, err := json.Marshal(payload)
			if err != nil {
				continue
			}
			p.record(p.client.Publish(ctx, nowPlayingChannel, data).Err())
		}
	}
}

// Close releases the Redis connection.
func (p *Redis) Close() error {
	return p.client.Close()
}

// usable applies the circuit breaker: after maxFailures consecutive publish
// failures the publisher goes quiet until checkInterval has elapsed.
func (p *Redis) usable() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.disabled {
		return true
	}
	if time.Since(p.lastCheck) >= checkInterval {
		p.disabled = false
		p.failCount = 0
		p.logger.Debug().Msg("retrying Redis publishing")
		return true
	}
	return false
}

func (p *Redis) record(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		p.failCount = 0
		return
	}
	p.failCount++
	if p.failCount >= maxFailures && !p.disabled {
		p.disabled = true
		p.lastCheck = time.Now()
		p.logger.Warn().Err(err).Msg("Redis publishing disabled after repeated failures")
	}
}
