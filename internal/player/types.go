/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package player is the boundary to the remote playback service. The service
// owns the playlists, the live play queue, client transport control, and
// session telemetry; everything here is a thin synchronous view of it.
package player

// TrackRole classifies a track when the playlist is loaded, so the rest of
// the engine never compares raw guids against the configured filler guid.
type TrackRole int

const (
	RoleNormal TrackRole = iota
	RoleFiller
)

// FillerDisplayTitle is what the filler track is called everywhere it is
// surfaced to operators and displays.
const FillerDisplayTitle = "On mic"

// Track is an immutable playlist entry. Identity is the guid; tracks are
// never mutated locally.
type Track struct {
	GUID       string    `json:"guid"`
	Title      string    `json:"title"`
	Artist     string    `json:"artist"`
	Album      string    `json:"album"`
	Art        string    `json:"art"`
	DurationMS int64     `json:"duration_ms"`
	Role       TrackRole `json:"-"`
}

// IsFiller reports whether the track is the designated mic-break filler.
func (t Track) IsFiller() bool { return t.Role == RoleFiller }

// DisplayTitle substitutes the filler track's title with a human label.
func (t Track) DisplayTitle() string {
	if t.IsFiller() {
		return FillerDisplayTitle
	}
	return t.Title
}

// Playlist is the curated source-of-truth track list. External operators may
// grow or reorder it between sync cycles.
type Playlist struct {
	Name   string  `json:"name"`
	Tracks []Track `json:"items"`
}

// QueueItem is one entry of the live play queue. The item id is assigned
// monotonically by the remote service and orders the queue.
type QueueItem struct {
	ID    int64 `json:"id"`
	Track Track `json:"track"`
}

// PlayQueue is the device-visible ordered playback list. From this engine's
// perspective it is append only.
type PlayQueue struct {
	ID             int64       `json:"id"`
	SelectedItemID int64       `json:"selected_item_id"`
	Items          []QueueItem `json:"items"`
}

// Device identifies a playback client known to the remote service.
type Device struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Product string `json:"product"`
}

// Session is the remote service's report of something currently playing on
// some client. Sessions from unrelated clients show up here too.
type Session struct {
	ClientName   string `json:"client"`
	Track        Track  `json:"track"`
	ViewOffsetMS int64  `json:"view_offset_ms"`
	DurationMS   int64  `json:"duration_ms"`
}

// HasTiming reports whether the session carries usable elapsed/total fields.
// Zero totals are treated as absent.
func (s Session) HasTiming() bool {
	return s.DurationMS > 0 && s.ViewOffsetMS >= 0
}

// Timeline is per-client progress telemetry.
type Timeline struct {
	TimeMS     int64 `json:"time_ms"`
	DurationMS int64 `json:"duration_ms"`
}
