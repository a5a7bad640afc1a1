/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package queuesync

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"

	"github.com/friendsincode/radioblue/internal/broadcast"
	"github.com/friendsincode/radioblue/internal/player"
)

type fakeAPI struct {
	playlist  *player.Playlist
	queue     *player.PlayQueue
	nextID    int64
	appends   []player.Track
	refreshes int
	failGUIDs map[string]bool
}

func newFakeAPI(tracks ...player.Track) *fakeAPI {
	return &fakeAPI{
		playlist: &player.Playlist{Name: "on-air", Tracks: tracks},
		queue:    &player.PlayQueue{ID: 7, Items: nil},
		nextID:   100,
	}
}

func (f *fakeAPI) PlaylistByName(ctx context.Context, name string) (*player.Playlist, error) {
	return f.playlist, nil
}

func (f *fakeAPI) Queue(ctx context.Context, queueID int64) (*player.PlayQueue, error) {
	cp := *f.queue
	cp.Items = append([]player.QueueItem(nil), f.queue.Items...)
	return &cp, nil
}

func (f *fakeAPI) AppendToQueue(ctx context.Context, queueID int64, track player.Track) error {
	if f.failGUIDs[track.GUID] {
		return fmt.Errorf("server rejected %s", track.GUID)
	}
	f.nextID++
	f.queue.Items = append(f.queue.Items, player.QueueItem{ID: f.nextID, Track: track})
	f.appends = append(f.appends, track)
	return nil
}

func (f *fakeAPI) RefreshQueue(ctx context.Context, clientName string, queueID int64) error {
	f.refreshes++
	return nil
}

func normal(guid, title string) player.Track {
	return player.Track{GUID: guid, Title: title, DurationMS: 180_000}
}

func filler() player.Track {
	return player.Track{GUID: "filler-guid", Title: "Mic Break", Role: player.RoleFiller, DurationMS: 5_000}
}

func newSync(api *fakeAPI, interval int, initial *player.PlayQueue) *Synchronizer {
	return New(api, broadcast.New(), "on-air", "Radio", 7, interval, initial, zerolog.Nop())
}

func TestSyncAppendsMissingAndIsIdempotent(t *testing.T) {
	api := newFakeAPI(filler(), normal("a", "Track A"), normal("b", "Track B"))
	s := newSync(api, 6, nil)

	if err := s.Sync(context.Background()); err != nil {
		t.Fatalf("first sync: %v", err)
	}
	if len(api.appends) != 3 {
		t.Fatalf("expected 3 appends, got %d", len(api.appends))
	}
	if api.refreshes != 1 {
		t.Fatalf("expected 1 refresh after appending, got %d", api.refreshes)
	}

	if err := s.Sync(context.Background()); err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if len(api.appends) != 3 {
		t.Fatalf("second sync must append nothing, got %d total", len(api.appends))
	}
	if api.refreshes != 1 {
		t.Fatalf("no-op sync must not refresh, got %d refreshes", api.refreshes)
	}
}

func TestSyncNeverReappendsConsumedTracks(t *testing.T) {
	api := newFakeAPI(normal("a", "Track A"), normal("b", "Track B"))
	s := newSync(api, 6, nil)

	if err := s.Sync(context.Background()); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if len(api.appends) != 2 {
		t.Fatalf("expected 2 appends, got %d", len(api.appends))
	}

	// The device consumed everything; the items are gone from the live queue.
	api.queue.Items = nil

	if err := s.Sync(context.Background()); err != nil {
		t.Fatalf("sync after consumption: %v", err)
	}
	if len(api.appends) != 2 {
		t.Fatalf("consumed tracks must stay gone, got %d appends", len(api.appends))
	}
}

func TestSyncFillerPositionDedup(t *testing.T) {
	api := newFakeAPI(normal("a", "Track A"), filler(), normal("b", "Track B"))
	s := newSync(api, 6, nil)

	if err := s.Sync(context.Background()); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if len(api.appends) != 3 {
		t.Fatalf("expected 3 appends, got %d", len(api.appends))
	}

	// Consumed queue plus an unchanged playlist: the filler slot at position 2
	// was already serviced and must not repeat.
	api.queue.Items = nil
	if err := s.Sync(context.Background()); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if len(api.appends) != 3 {
		t.Fatalf("used filler position must not repeat, got %d appends", len(api.appends))
	}

	// Reordering the playlist moves the filler to a fresh position; that slot
	// is serviced once.
	api.playlist.Tracks = []player.Track{filler(), normal("a", "Track A"), normal("b", "Track B")}
	if err := s.Sync(context.Background()); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if len(api.appends) != 4 {
		t.Fatalf("expected one append for the new filler position, got %d total", len(api.appends))
	}
	if !api.appends[3].IsFiller() {
		t.Fatalf("expected the new append to be the filler, got %q", api.appends[3].Title)
	}
}

func TestSyncSeedsDedupFromInitialQueue(t *testing.T) {
	api := newFakeAPI(normal("a", "Track A"), normal("b", "Track B"))
	initial := &player.PlayQueue{ID: 7, Items: []player.QueueItem{{ID: 1, Track: normal("a", "Track A")}}}
	s := newSync(api, 6, initial)

	if err := s.Sync(context.Background()); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if len(api.appends) != 1 || api.appends[0].GUID != "b" {
		t.Fatalf("expected only track b appended, got %+v", api.appends)
	}
}

func TestSyncInsertsFillerEveryInterval(t *testing.T) {
	tracks := []player.Track{filler()}
	for i := 0; i < 14; i++ {
		tracks = append(tracks, normal(fmt.Sprintf("n%02d", i), fmt.Sprintf("Track %02d", i)))
	}
	api := newFakeAPI(tracks...)
	s := newSync(api, 6, nil)

	if err := s.Sync(context.Background()); err != nil {
		t.Fatalf("sync: %v", err)
	}

	var fillerAt []int
	for i, tr := range api.appends {
		if tr.IsFiller() {
			fillerAt = append(fillerAt, i)
		}
	}
	// The playlist filler lands first, then one interval insert after every
	// sixth non-filler append.
	want := []int{0, 7, 14}
	if len(fillerAt) != len(want) {
		t.Fatalf("expected fillers at %v, got %v", want, fillerAt)
	}
	for i := range want {
		if fillerAt[i] != want[i] {
			t.Fatalf("expected fillers at %v, got %v", want, fillerAt)
		}
	}
	if len(api.appends) != 17 {
		t.Fatalf("expected 17 appends in total, got %d", len(api.appends))
	}
}

func TestSyncPreservesPlaylistOrder(t *testing.T) {
	a := player.Track{GUID: "a", Title: "Track A", DurationMS: 180_000}
	b := player.Track{GUID: "b", Title: "Track B", DurationMS: 240_000}
	c := player.Track{GUID: "c", Title: "Track C", DurationMS: 120_000}
	api := newFakeAPI(a, filler(), b, c)
	s := newSync(api, 6, nil)

	if err := s.Sync(context.Background()); err != nil {
		t.Fatalf("sync: %v", err)
	}

	wantGUIDs := []string{"a", "filler-guid", "b", "c"}
	if len(api.appends) != len(wantGUIDs) {
		t.Fatalf("expected %d appends, got %d", len(wantGUIDs), len(api.appends))
	}
	for i, guid := range wantGUIDs {
		if api.appends[i].GUID != guid {
			t.Fatalf("append %d = %q, want %q", i, api.appends[i].GUID, guid)
		}
	}

	if err := s.Sync(context.Background()); err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if len(api.appends) != 4 {
		t.Fatalf("second sync must append nothing, got %d total", len(api.appends))
	}
}

func TestSyncSkipsFailingAppendAndRetriesNextCycle(t *testing.T) {
	api := newFakeAPI(normal("a", "Track A"), normal("b", "Track B"))
	api.failGUIDs = map[string]bool{"a": true}
	s := newSync(api, 6, nil)

	if err := s.Sync(context.Background()); err != nil {
		t.Fatalf("sync with rejected append must not fail the cycle: %v", err)
	}
	if len(api.appends) != 1 || api.appends[0].GUID != "b" {
		t.Fatalf("expected only track b appended, got %+v", api.appends)
	}

	api.failGUIDs = nil
	if err := s.Sync(context.Background()); err != nil {
		t.Fatalf("retry sync: %v", err)
	}
	if len(api.appends) != 2 || api.appends[1].GUID != "a" {
		t.Fatalf("expected track a appended on retry, got %+v", api.appends)
	}
}

func TestForceFillerRequiresKnownFiller(t *testing.T) {
	api := newFakeAPI(normal("a", "Track A"))
	s := newSync(api, 6, nil)

	if err := s.ForceFiller(context.Background()); err == nil {
		t.Fatal("expected error before any filler has been seen")
	}

	api.playlist.Tracks = append(api.playlist.Tracks, filler())
	if err := s.Sync(context.Background()); err != nil {
		t.Fatalf("sync: %v", err)
	}

	before := len(api.appends)
	if err := s.ForceFiller(context.Background()); err != nil {
		t.Fatalf("force filler: %v", err)
	}
	if len(api.appends) != before+1 || !api.appends[len(api.appends)-1].IsFiller() {
		t.Fatalf("expected one forced filler append, got %+v", api.appends[before:])
	}
	if api.refreshes != 2 {
		t.Fatalf("expected refresh after force filler, got %d refreshes", api.refreshes)
	}
}
