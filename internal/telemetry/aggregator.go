/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package telemetry derives the published broadcast snapshot from queue and
// player telemetry, and exposes process metrics and tracing.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/radioblue/internal/broadcast"
	"github.com/friendsincode/radioblue/internal/player"
)

// ErrStaleTelemetry marks an aggregation cycle that could not produce a fresh
// snapshot; the last published snapshot is retained.
var ErrStaleTelemetry = errors.New("player telemetry missing or incomplete")

// Track-left color thresholds, inclusive lower bound of the next tier.
const (
	trackLeftRedBelowMS    = 30_000
	trackLeftOrangeBelowMS = 60_000
	micRedBelowMS          = 60_000
	micOrangeBelowMS       = 120_000
)

// Source is the slice of the playback service the aggregator reads.
type Source interface {
	Queue(ctx context.Context, queueID int64) (*player.PlayQueue, error)
	Sessions(ctx context.Context) ([]player.Session, error)
}

// Aggregator computes one complete snapshot per cycle and publishes it
// atomically into shared broadcast state.
type Aggregator struct {
	api        Source
	state      *broadcast.State
	logger     zerolog.Logger
	clientName string
	queueID    int64
}

// NewAggregator creates a telemetry aggregator.
func NewAggregator(api Source, state *broadcast.State, clientName string, queueID int64, logger zerolog.Logger) *Aggregator {
	return &Aggregator{
		api:        api,
		state:      state,
		logger:     logger.With().Str("component", "aggregator").Logger(),
		clientName: clientName,
		queueID:    queueID,
	}
}

// Aggregate runs one cycle. On any failure the last snapshot stays published.
func (a *Aggregator) Aggregate(ctx context.Context) error {
	queue, err := a.api.Queue(ctx, a.queueID)
	if err != nil {
		return fmt.Errorf("aggregate: %w", err)
	}

	sessions, err := a.api.Sessions(ctx)
	if err != nil {
		return fmt.Errorf("aggregate: %w", err)
	}

	session, ok := a.activeSession(sessions)
	if !ok {
		SnapshotSkips.Inc()
		return ErrStaleTelemetry
	}

	snap := a.derive(queue, session)
	a.state.Publish(snap)
	SnapshotPublishes.Inc()
	return nil
}

// activeSession filters sessions down to the configured client and requires
// usable timing fields. Sessions from other clients are ignored.
func (a *Aggregator) activeSession(sessions []player.Session) (player.Session, bool) {
	for _, s := range sessions {
		if s.ClientName != a.clientName {
			continue
		}
		if !s.HasTiming() {
			return player.Session{}, false
		}
		return s, true
	}
	return player.Session{}, false
}

func (a *Aggregator) derive(queue *player.PlayQueue, session player.Session) *broadcast.Snapshot {
	elapsed := session.ViewOffsetMS
	total := session.DurationMS
	trackLeft := total - elapsed
	if trackLeft < 0 {
		trackLeft = 0
	}
	percent := int(elapsed * 100 / total)

	currentIsFiller := session.Track.IsFiller()
	currentTitle := session.Track.DisplayTitle()

	var (
		queueCount    int
		timeTilMS     int64
		totalAheadMS  int64
		silenceState  = broadcast.SilenceStateNone
		armed         bool
		first         = true
		distinctAhead = make(map[string]bool)
	)

	for _, item := range queue.Items {
		if item.ID <= queue.SelectedItemID {
			continue
		}

		if item.Track.IsFiller() {
			if !armed {
				armed = true
				if first {
					silenceState = broadcast.SilenceStateNext
				} else {
					silenceState = broadcast.SilenceStateQueued
				}
			}
		} else {
			if item.Track.Title != session.Track.Title && !distinctAhead[item.Track.Title] {
				distinctAhead[item.Track.Title] = true
				queueCount++
			}
			if !armed {
				timeTilMS += item.Track.DurationMS
			}
			totalAheadMS += item.Track.DurationMS
		}
		first = false
	}

	if currentIsFiller {
		silenceState = broadcast.SilenceStateNow
		timeTilMS = 0
	}

	micLive := a.state.MicLive()
	streamOnline, secondsSinceAudio := a.state.StreamHealth()
	_, next := a.state.NowPlaying()

	return &broadcast.Snapshot{
		CurrentTitle:      currentTitle,
		CurrentArtist:     session.Track.Artist,
		CurrentAlbum:      session.Track.Album,
		PlayingNext:       next.Title,
		QueueCount:        queueCount,
		TrackTimeLeftMS:   trackLeft,
		Percent:           percent,
		TimeTilSilenceMS:  timeTilMS,
		SilenceState:      silenceState,
		TotalDurationMS:   totalAheadMS,
		TrackLeftColor:    trackLeftColor(trackLeft),
		MicColor:          micColor(timeTilMS, micLive),
		QueueColor:        queueColor(queueCount),
		MicLive:           micLive,
		StreamOnline:      streamOnline,
		SecondsSinceAudio: secondsSinceAudio,
		Stopping:          a.state.Stopping(),
		GeneratedAt:       time.Now(),
	}
}

func trackLeftColor(leftMS int64) string {
	switch {
	case leftMS < trackLeftRedBelowMS:
		return broadcast.ColorRed
	case leftMS < trackLeftOrangeBelowMS:
		return broadcast.ColorOrange
	default:
		return broadcast.ColorGreen
	}
}

func micColor(timeTilSilenceMS int64, micLive bool) string {
	if micLive {
		return broadcast.ColorRed
	}
	switch {
	case timeTilSilenceMS < micRedBelowMS:
		return broadcast.ColorRed
	case timeTilSilenceMS < micOrangeBelowMS:
		return broadcast.ColorOrange
	default:
		return broadcast.ColorNone
	}
}

func queueColor(count int) string {
	switch {
	case count < 1:
		return broadcast.ColorRed
	case count < 2:
		return broadcast.ColorOrange
	default:
		return broadcast.ColorGreen
	}
}
