/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/friendsincode/radioblue/internal/broadcast"
	"github.com/friendsincode/radioblue/internal/config"
	"github.com/friendsincode/radioblue/internal/events"
	"github.com/friendsincode/radioblue/internal/history"
	"github.com/friendsincode/radioblue/internal/mic"
	"github.com/friendsincode/radioblue/internal/player"
	"github.com/friendsincode/radioblue/internal/queuesync"
)

type fakePlayer struct {
	playlist *player.Playlist
	queue    *player.PlayQueue
	nextID   int64

	appends   []player.Track
	removed   int
	refreshes int
	skips     int
	pauses    int
	resumes   int
	mutes     []bool
}

func (f *fakePlayer) Ping(ctx context.Context) error { return nil }

func (f *fakePlayer) PlaylistByName(ctx context.Context, name string) (*player.Playlist, error) {
	return f.playlist, nil
}

func (f *fakePlayer) CreateQueue(ctx context.Context, tracks []player.Track) (*player.PlayQueue, error) {
	return f.queue, nil
}

func (f *fakePlayer) Queue(ctx context.Context, queueID int64) (*player.PlayQueue, error) {
	return f.queue, nil
}

func (f *fakePlayer) AppendToQueue(ctx context.Context, queueID int64, track player.Track) error {
	f.nextID++
	f.queue.Items = append(f.queue.Items, player.QueueItem{ID: f.nextID, Track: track})
	f.appends = append(f.appends, track)
	return nil
}

func (f *fakePlayer) RemoveLastFromQueue(ctx context.Context, queueID int64) error {
	if n := len(f.queue.Items); n > 0 {
		f.queue.Items = f.queue.Items[:n-1]
	}
	f.removed++
	return nil
}

func (f *fakePlayer) RefreshQueue(ctx context.Context, clientName string, queueID int64) error {
	f.refreshes++
	return nil
}

func (f *fakePlayer) Sessions(ctx context.Context) ([]player.Session, error) {
	return nil, nil
}

func (f *fakePlayer) Play(ctx context.Context, clientName string, queueID int64) error {
	return nil
}

func (f *fakePlayer) Pause(ctx context.Context, clientName string) error {
	f.pauses++
	return nil
}

func (f *fakePlayer) Resume(ctx context.Context, clientName string) error {
	f.resumes++
	return nil
}

func (f *fakePlayer) SkipNext(ctx context.Context, clientName string) error {
	f.skips++
	return nil
}

func (f *fakePlayer) SetMute(ctx context.Context, clientName string, muted bool) error {
	f.mutes = append(f.mutes, muted)
	return nil
}

func newTestServer(t *testing.T) (*Server, *fakePlayer) {
	t.Helper()

	fillerTrack := player.Track{GUID: "filler", Title: "Mic Break", Role: player.RoleFiller, DurationMS: 5_000}
	api := &fakePlayer{
		playlist: &player.Playlist{Name: "on-air", Tracks: []player.Track{
			fillerTrack,
			{GUID: "a", Title: "Track A", DurationMS: 180_000},
		}},
		queue:  &player.PlayQueue{ID: 7},
		nextID: 100,
	}

	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	state := broadcast.New()
	bus := events.NewBus()
	logger := zerolog.Nop()

	srv := &Server{
		cfg:     &config.Config{ClientName: "Radio"},
		logger:  logger,
		router:  chi.NewRouter(),
		api:     api,
		state:   state,
		bus:     bus,
		store:   store,
		sync:    queuesync.New(api, state, "on-air", "Radio", 7, 6, nil, logger),
		mic:     mic.NewSwitch(api, state, bus, "Radio", logger),
		queueID: 7,
	}
	srv.configureRoutes()
	return srv, api
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	srv.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestStatusBeforeFirstSnapshot(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := get(t, srv, "/")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if strings.TrimSpace(rr.Body.String()) != "{}" {
		t.Fatalf("expected empty object, got %s", rr.Body.String())
	}
}

func TestStatusReturnsPublishedSnapshot(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.state.Publish(&broadcast.Snapshot{CurrentTitle: "Track A", QueueCount: 2})

	rr := get(t, srv, "/")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, `"current_title":"Track A"`) {
		t.Fatalf("body = %s", body)
	}
	if !strings.Contains(body, `"queue_count":2`) {
		t.Fatalf("body = %s", body)
	}
}

func TestTransportCommands(t *testing.T) {
	srv, api := newTestServer(t)

	if rr := get(t, srv, "/next"); rr.Body.String() != "ok" {
		t.Fatalf("next body = %q", rr.Body.String())
	}
	if rr := get(t, srv, "/pause"); rr.Body.String() != "ok" {
		t.Fatalf("pause body = %q", rr.Body.String())
	}
	if rr := get(t, srv, "/unpause"); rr.Body.String() != "ok" {
		t.Fatalf("unpause body = %q", rr.Body.String())
	}
	if api.skips != 1 || api.pauses != 1 || api.resumes != 1 {
		t.Fatalf("skips=%d pauses=%d resumes=%d", api.skips, api.pauses, api.resumes)
	}
}

func TestDeleteLastRemovesAndRefreshes(t *testing.T) {
	srv, api := newTestServer(t)
	api.queue.Items = []player.QueueItem{
		{ID: 1, Track: player.Track{GUID: "a", Title: "Track A"}},
		{ID: 2, Track: player.Track{GUID: "b", Title: "Track B"}},
	}

	if rr := get(t, srv, "/delete_last"); rr.Body.String() != "ok" {
		t.Fatalf("delete_last body = %q", rr.Body.String())
	}
	if len(api.queue.Items) != 1 || api.queue.Items[0].Track.GUID != "a" {
		t.Fatalf("queue after delete = %+v", api.queue.Items)
	}
	if api.refreshes != 1 {
		t.Fatalf("refreshes = %d", api.refreshes)
	}
}

func TestSilenceForcesFiller(t *testing.T) {
	srv, api := newTestServer(t)

	// The synchronizer learns the filler from its first playlist walk.
	if err := srv.sync.Sync(context.Background()); err != nil {
		t.Fatalf("sync: %v", err)
	}
	before := len(api.appends)

	if rr := get(t, srv, "/silence"); rr.Body.String() != "ok" {
		t.Fatalf("silence body = %q", rr.Body.String())
	}
	if len(api.appends) != before+1 || !api.appends[len(api.appends)-1].IsFiller() {
		t.Fatalf("expected one filler append, got %+v", api.appends[before:])
	}
}

func TestMicEndpointsDebounce(t *testing.T) {
	srv, api := newTestServer(t)

	if rr := get(t, srv, "/mic_on"); rr.Body.String() != "ok" {
		t.Fatalf("mic_on body = %q", rr.Body.String())
	}
	if rr := get(t, srv, "/mic_on"); rr.Body.String() != "debounced" {
		t.Fatalf("repeat mic_on body = %q", rr.Body.String())
	}
	if rr := get(t, srv, "/mic_off"); rr.Body.String() != "ok" {
		t.Fatalf("mic_off body = %q", rr.Body.String())
	}
	if len(api.mutes) != 2 {
		t.Fatalf("mutes = %v", api.mutes)
	}
	if srv.state.MicLive() {
		t.Fatal("mic must be off after mic_off")
	}
}

func TestTrackLogNewestFirst(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()

	older := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	if err := srv.store.Append(ctx, player.Track{GUID: "a", Title: "Track A", Artist: "Artist A"}, older); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := srv.store.Append(ctx, player.Track{GUID: "b", Title: "Track B", Artist: "Artist B"}, older.Add(time.Minute)); err != nil {
		t.Fatalf("append: %v", err)
	}

	rr := get(t, srv, "/track_log")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	lines := strings.Split(strings.TrimSpace(rr.Body.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %v", lines)
	}
	if !strings.Contains(lines[0], "Track B") || !strings.Contains(lines[1], "Track A") {
		t.Fatalf("expected newest first, got %v", lines)
	}
}
