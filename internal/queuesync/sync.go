/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package queuesync reconciles the on-air playlist against the live play
// queue. The queue models a physical device that has already begun consuming
// earlier entries, so reconciliation is strictly append only: items are never
// removed or reordered here, and dedup state is permanent for the process
// lifetime.
package queuesync

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/friendsincode/radioblue/internal/broadcast"
	"github.com/friendsincode/radioblue/internal/player"
	"github.com/friendsincode/radioblue/internal/telemetry"
)

// PlayerAPI is the slice of the playback service the synchronizer needs.
type PlayerAPI interface {
	PlaylistByName(ctx context.Context, name string) (*player.Playlist, error)
	Queue(ctx context.Context, queueID int64) (*player.PlayQueue, error)
	AppendToQueue(ctx context.Context, queueID int64, track player.Track) error
	RefreshQueue(ctx context.Context, clientName string, queueID int64) error
}

// Synchronizer walks the playlist once per cycle and appends whatever the
// live queue is missing, inserting a filler item after every fillerInterval
// consecutive non-filler appends.
type Synchronizer struct {
	api    PlayerAPI
	state  *broadcast.State
	logger zerolog.Logger

	playlistName   string
	clientName     string
	queueID        int64
	fillerInterval int

	// Permanent dedup state for the process lifetime. queued records every guid
	// appended during this run, even before it is visible in a queue fetch.
	queued              map[string]bool
	usedFillerPositions map[int]bool
	addedSinceFiller    int

	// The filler track, remembered from the first playlist walk that sees it.
	filler    player.Track
	hasFiller bool
}

// New creates a synchronizer. initialQueue seeds the dedup set with whatever
// the queue already holds at startup.
func New(api PlayerAPI, state *broadcast.State, playlistName, clientName string, queueID int64, fillerInterval int, initialQueue *player.PlayQueue, logger zerolog.Logger) *Synchronizer {
	s := &Synchronizer{
		api:                 api,
		state:               state,
		logger:              logger.With().Str("component", "queuesync").Logger(),
		playlistName:        playlistName,
		clientName:          clientName,
		queueID:             queueID,
		fillerInterval:      fillerInterval,
		queued:              make(map[string]bool),
		usedFillerPositions: make(map[int]bool),
	}
	if initialQueue != nil {
		for _, item := range initialQueue.Items {
			if !item.Track.IsFiller() {
				s.queued[item.Track.GUID] = true
			}
		}
	}
	return s
}

// Sync runs one reconciliation cycle. A playlist or queue fetch failure
// aborts the whole cycle; individual append failures are logged and skipped
// so a transient rejection can self-heal on the next cycle.
func (s *Synchronizer) Sync(ctx context.Context) error {
	playlist, err := s.api.PlaylistByName(ctx, s.playlistName)
	if err != nil {
		telemetry.SyncFailures.Inc()
		return fmt.Errorf("sync: %w", err)
	}

	queue, err := s.api.Queue(ctx, s.queueID)
	if err != nil {
		telemetry.SyncFailures.Inc()
		return fmt.Errorf("sync: %w", err)
	}

	// guid -> queue item ids already present in the live queue.
	queuedItems := make(map[string][]int64, len(queue.Items))
	for _, item := range queue.Items {
		queuedItems[item.Track.GUID] = append(queuedItems[item.Track.GUID], item.ID)
	}

	s.state.LockQueue()
	defer s.state.UnlockQueue()

	appended := 0
	for i, track := range playlist.Tracks {
		position := i + 1

		if track.IsFiller() {
			if !s.hasFiller {
				s.filler = track
				s.hasFiller = true
			}
			if s.usedFillerPositions[position] {
				continue
			}
		} else {
			if len(queuedItems[track.GUID]) > 0 {
				continue
			}
			// Guards against duplicate appends when the remote fetch lags a
			// prior append.
			if s.queued[track.GUID] {
				continue
			}
		}

		if err := s.api.AppendToQueue(ctx, s.queueID, track); err != nil {
			s.logger.Warn().Err(err).Str("guid", track.GUID).Str("title", track.Title).Msg("append failed, skipping item")
			continue
		}
		s.logger.Debug().Str("title", track.DisplayTitle()).Int("position", position).Msg("appended to play queue")
		telemetry.SyncAppends.Inc()
		appended++

		if track.IsFiller() {
			s.usedFillerPositions[position] = true
			s.addedSinceFiller = 0
			continue
		}
		s.queued[track.GUID] = true
		s.addedSinceFiller++

		if s.addedSinceFiller >= s.fillerInterval {
			if n, err := s.insertFiller(ctx); err != nil {
				s.logger.Warn().Err(err).Msg("interval filler insert failed")
			} else {
				appended += n
			}
			s.addedSinceFiller = 0
		}
	}

	if appended > 0 {
		if err := s.api.RefreshQueue(ctx, s.clientName, s.queueID); err != nil {
			return fmt.Errorf("sync: refresh queue: %w", err)
		}
	}
	return nil
}

// ForceFiller appends one filler item immediately. Used by the control
// surface; the caller holds the queue lock.
func (s *Synchronizer) ForceFiller(ctx context.Context) error {
	if _, err := s.insertFiller(ctx); err != nil {
		return err
	}
	if err := s.api.RefreshQueue(ctx, s.clientName, s.queueID); err != nil {
		return fmt.Errorf("refresh queue: %w", err)
	}
	return nil
}

func (s *Synchronizer) insertFiller(ctx context.Context) (int, error) {
	if !s.hasFiller {
		return 0, fmt.Errorf("no filler track seen in playlist %q yet", s.playlistName)
	}
	if err := s.api.AppendToQueue(ctx, s.queueID, s.filler); err != nil {
		return 0, fmt.Errorf("append filler: %w", err)
	}
	telemetry.FillerInserts.Inc()
	s.logger.Debug().Msg("inserted filler item")
	return 1, nil
}
