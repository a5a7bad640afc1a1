/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package nowplaying rewrites the small text record an external display
// renderer consumes on every track transition.
package nowplaying

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/friendsincode/radioblue/internal/events"
)

// Writer rewrites the now-playing record file.
type Writer struct {
	path   string
	logger zerolog.Logger
}

// NewWriter creates a now-playing record writer.
func NewWriter(path string, logger zerolog.Logger) *Writer {
	return &Writer{
		path:   path,
		logger: logger.With().Str("component", "nowplaying").Logger(),
	}
}

// Run consumes now-playing events until the context is cancelled. Write
// failures are logged and do not stop consumption.
func (w *Writer) Run(ctx context.Context, bus *events.Bus) {
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
			if err := w.Write(payload); err != nil {
				w.logger.Warn().Err(err).Msg("now playing record write failed")
			}
		}
	}
}

// Write rewrites the record atomically (write to a temp file, then rename).
func (w *Writer) Write(payload events.Payload) error {
	var b strings.Builder
	for _, key := range []string{"title", "artist", "album", "art", "duration_ms"} {
		fmt.Fprintf(&b, "%s=%v\n", key, payload[key])
	}

	tmp := w.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write now playing record: %w", err)
	}
	if err := os.Rename(tmp, w.path); err != nil {
		return fmt.Errorf("replace now playing record: %w", err)
	}
	return nil
}
