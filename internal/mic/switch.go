/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package mic drives the on-air mic through the playback client's mute
// control. "Mic on" unmutes the broadcast chain for a live segment.
package mic

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/radioblue/internal/broadcast"
	"github.com/friendsincode/radioblue/internal/events"
)

// Commander is the mute control of the playback service.
type Commander interface {
	SetMute(ctx context.Context, clientName string, muted bool) error
}

// Switch issues debounced mic commands and keeps the shared mic-live flag in
// step. Rapid double-triggers from external control hardware are suppressed.
type Switch struct {
	api        Commander
	state      *broadcast.State
	bus        *events.Bus
	clientName string
	logger     zerolog.Logger
	now        func() time.Time
}

// NewSwitch creates a mic switch.
func NewSwitch(api Commander, state *broadcast.State, bus *events.Bus, clientName string, logger zerolog.Logger) *Switch {
	return &Switch{
		api:        api,
		state:      state,
		bus:        bus,
		clientName: clientName,
		logger:     logger.With().Str("component", "mic").Logger(),
		now:        time.Now,
	}
}

// On unmutes the client. Returns false when the command was debounced.
func (s *Switch) On(ctx context.Context) (bool, error) {
	return s.set(ctx, true)
}

// Off mutes the client. Returns false when the command was debounced.
func (s *Switch) Off(ctx context.Context) (bool, error) {
	return s.set(ctx, false)
}

// Toggle flips the mic to the opposite of its current state.
func (s *Switch) Toggle(ctx context.Context) (bool, error) {
	return s.set(ctx, !s.state.MicLive())
}

func (s *Switch) set(ctx context.Context, on bool) (bool, error) {
	if !s.state.AllowMicCommandAt(on, s.now()) {
		s.logger.Info().Bool("on", on).Msg("mic command debounced")
		return false, nil
	}

	// Mic live means the playback chain is muted and the mic is open.
	if err := s.api.SetMute(ctx, s.clientName, on); err != nil {
		return false, err
	}
	s.state.SetMicLive(on)
	s.bus.Publish(events.EventMicState, events.Payload{"mic_live": on})
	s.logger.Info().Bool("on", on).Msg("mic state changed")
	return true, nil
}
