/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package session watches the remote service's now-playing reports and turns
// them into transitions: history rows, now-playing events, and the mic-on
// side effect when a filler segment begins.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/radioblue/internal/broadcast"
	"github.com/friendsincode/radioblue/internal/events"
	"github.com/friendsincode/radioblue/internal/history"
	"github.com/friendsincode/radioblue/internal/mic"
	"github.com/friendsincode/radioblue/internal/player"
	"github.com/friendsincode/radioblue/internal/telemetry"
)

// Source is the slice of the playback service the tracker reads.
type Source interface {
	Sessions(ctx context.Context) ([]player.Session, error)
	Queue(ctx context.Context, queueID int64) (*player.PlayQueue, error)
}

// Tracker detects now-playing transitions for the configured client.
type Tracker struct {
	api    Source
	state  *broadcast.State
	store  *history.Store
	bus    *events.Bus
	mic    *mic.Switch
	logger zerolog.Logger

	clientName string
	queueID    int64

	// lastGUID caches the previous currently-playing guid; an unchanged
	// session is a no-op. played marks guids permanently for this run.
	lastGUID string
	played   map[string]bool
}

// NewTracker creates a session tracker.
func NewTracker(api Source, state *broadcast.State, store *history.Store, bus *events.Bus, micSwitch *mic.Switch, clientName string, queueID int64, logger zerolog.Logger) *Tracker {
	return &Tracker{
		api:        api,
		state:      state,
		store:      store,
		bus:        bus,
		mic:        micSwitch,
		logger:     logger.With().Str("component", "session").Logger(),
		clientName: clientName,
		queueID:    queueID,
		played:     make(map[string]bool),
	}
}

// SeedPlayed marks a guid played without treating it as a transition. Used
// for the track the queue is created with at startup.
func (t *Tracker) SeedPlayed(guid string) {
	t.lastGUID = guid
	t.played[guid] = true
}

// Observe runs one cycle: compare the remote now-playing report against the
// cached guid and handle a transition if one occurred.
func (t *Tracker) Observe(ctx context.Context) error {
	sessions, err := t.api.Sessions(ctx)
	if err != nil {
		return fmt.Errorf("observe: %w", err)
	}

	session, ok := t.activeSession(sessions)
	if !ok {
		return nil
	}
	if session.Track.GUID == t.lastGUID {
		return nil
	}

	return t.handleTransition(ctx, session)
}

// activeSession filters out sessions belonging to other clients, and skips a
// session lacking timing fields for this cycle only.
func (t *Tracker) activeSession(sessions []player.Session) (player.Session, bool) {
	for _, s := range sessions {
		if s.ClientName != t.clientName {
			continue
		}
		if !s.HasTiming() {
			return player.Session{}, false
		}
		return s, true
	}
	return player.Session{}, false
}

func (t *Tracker) handleTransition(ctx context.Context, session player.Session) error {
	track := session.Track
	t.lastGUID = track.GUID
	t.played[track.GUID] = true
	telemetry.TrackTransitions.Inc()

	t.logger.Info().Str("title", track.DisplayTitle()).Str("guid", track.GUID).Msg("now playing changed")

	t.state.SetNowPlaying(broadcast.NowPlaying{GUID: track.GUID, Title: track.DisplayTitle()})

	if err := t.store.Append(ctx, track, time.Now()); err != nil {
		t.logger.Warn().Err(err).Msg("history append failed")
	}

	t.bus.Publish(events.EventNowPlaying, events.NowPlayingPayload(
		track.GUID, track.DisplayTitle(), track.Artist, track.Album, track.Art, track.DurationMS))

	// The mic side effect fires exactly once per transition into the filler,
	// never on repeated detection of an unchanged session.
	if track.IsFiller() {
		if _, err := t.mic.On(ctx); err != nil {
			t.logger.Warn().Err(err).Msg("mic on side effect failed")
		}
	}

	if err := t.updatePlayingNext(ctx, track.GUID); err != nil {
		t.logger.Warn().Err(err).Msg("playing next scan failed")
	}
	return nil
}

// updatePlayingNext scans forward through the play queue from the first item
// matching the current guid and records the item after it.
func (t *Tracker) updatePlayingNext(ctx context.Context, currentGUID string) error {
	queue, err := t.api.Queue(ctx, t.queueID)
	if err != nil {
		return err
	}

	for i, item := range queue.Items {
		if item.Track.GUID != currentGUID {
			continue
		}
		if i+1 < len(queue.Items) {
			next := queue.Items[i+1].Track
			t.state.SetPlayingNext(broadcast.NowPlaying{GUID: next.GUID, Title: next.DisplayTitle()})
		} else {
			t.state.SetPlayingNext(broadcast.NowPlaying{})
		}
		return nil
	}
	return nil
}
