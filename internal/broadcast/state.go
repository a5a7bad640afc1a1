/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package broadcast holds the single mutable record shared by the engine's
// loops. Fields are grouped by owner and each group has its own lock, so the
// synchronizer, aggregator, dead-air monitor, and control surface never
// contend on unrelated state.
package broadcast

import (
	"sync"
	"sync/atomic"
	"time"
)

// Color codes surfaced on the status endpoint and downstream displays.
const (
	ColorRed    = "red"
	ColorOrange = "orange"
	ColorGreen  = "green"
	ColorNone   = "none"
)

// Silence countdown states for the mic indicator.
const (
	SilenceStateNone   = ""
	SilenceStateQueued = "queued"
	SilenceStateNext   = "next"
	SilenceStateNow    = "now"
)

// MicDebounceWindow suppresses repeated mic commands of the same polarity.
const MicDebounceWindow = 2 * time.Second

// Snapshot is one complete, consistently computed telemetry record. The
// aggregator builds a fresh Snapshot each cycle and publishes it in a single
// step; readers never observe a half-updated record.
type Snapshot struct {
	CurrentTitle  string `json:"current_title"`
	CurrentArtist string `json:"current_artist"`
	CurrentAlbum  string `json:"current_album"`
	PlayingNext   string `json:"playing_next"`

	QueueCount       int    `json:"queue_count"`
	TrackTimeLeftMS  int64  `json:"track_time_left"`
	Percent          int    `json:"percent"`
	TimeTilSilenceMS int64  `json:"time_til_silence"`
	SilenceState     string `json:"silence_state"`
	TotalDurationMS  int64  `json:"total_duration"`

	TrackLeftColor string `json:"track_left_color"`
	MicColor       string `json:"mic_color"`
	QueueColor     string `json:"queue_color"`

	MicLive           bool `json:"mic_live"`
	StreamOnline      bool `json:"stream_online"`
	SecondsSinceAudio int  `json:"seconds_since_audio"`
	Stopping          bool `json:"stopping"`

	GeneratedAt time.Time `json:"generated_at"`
}

// NowPlaying is the tracker-owned record of the current session.
type NowPlaying struct {
	GUID  string
	Title string
}

// State is the shared broadcast state. Construct with New; the zero value is
// not usable.
type State struct {
	// queueMu serializes everything that mutates the remote play queue:
	// synchronizer appends and operator commands. Nothing else takes it.
	queueMu sync.Mutex

	snapMu sync.RWMutex
	snap   *Snapshot

	// Stream health scalars, written only by the dead-air monitor.
	streamOnline      atomic.Bool
	secondsSinceAudio atomic.Int64

	npMu        sync.RWMutex
	current     NowPlaying
	playingNext NowPlaying

	micMu    sync.Mutex
	micLive  bool
	lastOn   time.Time
	lastOff  time.Time
	stopping atomic.Bool
}

// New creates an empty broadcast state.
func New() *State {
	return &State{}
}

// LockQueue acquires the play-queue mutation lock.
func (s *State) LockQueue() { s.queueMu.Lock() }

// UnlockQueue releases the play-queue mutation lock.
func (s *State) UnlockQueue() { s.queueMu.Unlock() }

// Publish replaces the shared snapshot in one step.
func (s *State) Publish(snap *Snapshot) {
	s.snapMu.Lock()
	s.snap = snap
	s.snapMu.Unlock()
}

// Snapshot returns the last published snapshot, or nil if none exists yet.
// Callers must not mutate the returned record.
func (s *State) Snapshot() *Snapshot {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	return s.snap
}

// SetStreamHealth records the monitor's latest reading.
func (s *State) SetStreamHealth(online bool, secondsSinceAudio int) {
	s.streamOnline.Store(online)
	s.secondsSinceAudio.Store(int64(secondsSinceAudio))
}

// StreamHealth returns the stream-online flag and seconds since audio.
func (s *State) StreamHealth() (bool, int) {
	return s.streamOnline.Load(), int(s.secondsSinceAudio.Load())
}

// SetNowPlaying records the current session.
func (s *State) SetNowPlaying(np NowPlaying) {
	s.npMu.Lock()
	s.current = np
	s.npMu.Unlock()
}

// SetPlayingNext records the first queue item after the current one.
func (s *State) SetPlayingNext(np NowPlaying) {
	s.npMu.Lock()
	s.playingNext = np
	s.npMu.Unlock()
}

// NowPlaying returns the current and next tracks as last observed.
func (s *State) NowPlaying() (current, next NowPlaying) {
	s.npMu.RLock()
	defer s.npMu.RUnlock()
	return s.current, s.playingNext
}

// AllowMicCommandAt applies the mic debounce: a repeat command of the same
// polarity within MicDebounceWindow of the previous one is rejected. The
// command time is recorded only when allowed.
func (s *State) AllowMicCommandAt(on bool, at time.Time) bool {
	s.micMu.Lock()
	defer s.micMu.Unlock()

	last := s.lastOff
	if on {
		last = s.lastOn
	}
	if !last.IsZero() && at.Sub(last) < MicDebounceWindow {
		return false
	}
	if on {
		s.lastOn = at
	} else {
		s.lastOff = at
	}
	return true
}

// SetMicLive flips the manual mic-live indicator.
func (s *State) SetMicLive(live bool) {
	s.micMu.Lock()
	s.micLive = live
	s.micMu.Unlock()
}

// MicLive reports whether the mic is live.
func (s *State) MicLive() bool {
	s.micMu.Lock()
	defer s.micMu.Unlock()
	return s.micLive
}

// SetStopping flips the terminal shutdown marker.
func (s *State) SetStopping() { s.stopping.Store(true) }

// Stopping reports whether shutdown has begun.
func (s *State) Stopping() bool { return s.stopping.Load() }
