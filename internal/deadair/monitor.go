/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package deadair samples the live audio feed and maintains the two stream
// health scalars. It is the only writer of those fields and must survive any
// feed fault: decode failures mean the feed dropped, never a process error.
package deadair

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/radioblue/internal/broadcast"
	"github.com/friendsincode/radioblue/internal/telemetry"
)

const (
	// blockSize matches the feed's chunking; each block decodes to 2048
	// 16-bit samples.
	blockSize      = 4096
	reconnectDelay = time.Second
)

// Monitor consumes the audio byte stream and updates stream health.
type Monitor struct {
	streamURL string
	ceilingDB float64
	state     *broadcast.State
	logger    zerolog.Logger
	client    *http.Client

	lastAudioAt time.Time
}

// NewMonitor creates a dead-air monitor. ceilingDB is the level below which a
// block counts as carrying audio worth resetting the silence clock for.
func NewMonitor(streamURL string, ceilingDB float64, state *broadcast.State, logger zerolog.Logger) *Monitor {
	return &Monitor{
		streamURL: streamURL,
		ceilingDB: ceilingDB,
		state:     state,
		logger:    logger.With().Str("component", "deadair").Logger(),
		client:    &http.Client{},
	}
}

// Run consumes the stream until the context is cancelled, reconnecting after
// a short fixed delay on any fault. It never returns an error to the caller.
func (m *Monitor) Run(ctx context.Context) {
	m.logger.Info().Str("url", m.streamURL).Msg("dead air monitor started")
	for {
		if ctx.Err() != nil {
			m.logger.Info().Msg("dead air monitor stopped")
			return
		}

		if err := m.consume(ctx); err != nil && ctx.Err() == nil {
			m.logger.Warn().Err(err).Msg("stream offline, reconnecting")
		}

		m.setHealth(false, int(m.sinceAudio()))
		select {
		case <-ctx.Done():
		case <-time.After(reconnectDelay):
		}
	}
}

func (m *Monitor) sinceAudio() float64 {
	if m.lastAudioAt.IsZero() {
		return 0
	}
	return time.Since(m.lastAudioAt).Seconds()
}

func (m *Monitor) consume(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.streamURL, nil)
	if err != nil {
		return fmt.Errorf("build stream request: %w", err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("connect stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stream status %d", resp.StatusCode)
	}

	if m.lastAudioAt.IsZero() {
		m.lastAudioAt = time.Now()
	}

	block := make([]byte, blockSize)
	for {
		if _, err := io.ReadFull(resp.Body, block); err != nil {
			return fmt.Errorf("read block: %w", err)
		}

		level, err := blockLevelDB(block)
		if err != nil {
			return err
		}

		if !math.IsNaN(level) && level < m.ceilingDB {
			m.lastAudioAt = time.Now()
		}
		m.setHealth(true, int(m.sinceAudio()))
	}
}

func (m *Monitor) setHealth(online bool, secondsSinceAudio int) {
	m.state.SetStreamHealth(online, secondsSinceAudio)
	telemetry.DeadAirSeconds.Set(float64(secondsSinceAudio))
	if online {
		telemetry.StreamOnline.Set(1)
	} else {
		telemetry.StreamOnline.Set(0)
	}
}

// blockLevelDB decodes a block of interleaved little-endian 16-bit samples
// and returns its RMS level in decibels.
func blockLevelDB(block []byte) (float64, error) {
	if len(block) == 0 || len(block)%2 != 0 {
		return 0, fmt.Errorf("malformed audio block of %d bytes", len(block))
	}

	var sumSquares float64
	samples := len(block) / 2
	for i := 0; i < len(block); i += 2 {
		s := float64(int16(binary.LittleEndian.Uint16(block[i:])))
		sumSquares += s * s
	}

	rms := math.Sqrt(sumSquares / float64(samples))
	return 20 * math.Log10(rms), nil
}
