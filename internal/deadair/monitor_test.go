/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package deadair

import (
	"context"
	"encoding/binary"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/friendsincode/radioblue/internal/broadcast"
)

func pcmBlock(sample int16, n int) []byte {
	block := make([]byte, n*2)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(block[i*2:], uint16(sample))
	}
	return block
}

func TestBlockLevelDBConstantTone(t *testing.T) {
	// A constant-amplitude block has RMS equal to the amplitude.
	level, err := blockLevelDB(pcmBlock(10000, 2048))
	if err != nil {
		t.Fatalf("block level: %v", err)
	}
	want := 20 * math.Log10(10000)
	if math.Abs(level-want) > 0.001 {
		t.Fatalf("level = %f, want %f", level, want)
	}
}

func TestBlockLevelDBDigitalSilence(t *testing.T) {
	level, err := blockLevelDB(pcmBlock(0, 2048))
	if err != nil {
		t.Fatalf("block level: %v", err)
	}
	if !math.IsInf(level, -1) {
		t.Fatalf("all-zero block should be -Inf dB, got %f", level)
	}
}

func TestBlockLevelDBRejectsMalformedBlocks(t *testing.T) {
	if _, err := blockLevelDB(nil); err == nil {
		t.Fatal("expected error for empty block")
	}
	if _, err := blockLevelDB([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for odd-length block")
	}
}

func TestConsumeMarksStreamOnline(t *testing.T) {
	// Two full blocks of quiet audio (20 dB, under the 30 dB ceiling), then
	// the feed drops.
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(pcmBlock(10, blockSize))
	}))
	defer ts.Close()

	state := broadcast.New()
	m := NewMonitor(ts.URL, 30, state, zerolog.Nop())

	if err := m.consume(context.Background()); err == nil {
		t.Fatal("expected error when the feed ends")
	}

	online, since := state.StreamHealth()
	if !online {
		t.Fatal("stream must be marked online while blocks decode")
	}
	if since != 0 {
		t.Fatalf("audio below the ceiling must reset the silence clock, got %d", since)
	}
	if m.lastAudioAt.IsZero() {
		t.Fatal("expected last audio time to be set")
	}
}

func TestConsumeReportsBadStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	state := broadcast.New()
	m := NewMonitor(ts.URL, 30, state, zerolog.Nop())

	if err := m.consume(context.Background()); err == nil {
		t.Fatal("expected error for non-200 stream response")
	}
}
