/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package player

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

// Client talks to the remote playback service over HTTP. All calls are
// synchronous; callers retry on failure rather than caching.
type Client struct {
	baseURL    string
	token      string
	fillerGUID string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a playback service client. fillerGUID is used to tag the
// role of every track as it is loaded.
func NewClient(baseURL, token, fillerGUID string, logger zerolog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		token:      token,
		fillerGUID: fillerGUID,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger.With().Str("component", "player").Logger(),
	}
}

// Ping verifies the service is reachable and the token is accepted.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/identity", nil, nil)
}

// PlaylistByName fetches an ordered playlist and tags track roles.
func (c *Client) PlaylistByName(ctx context.Context, name string) (*Playlist, error) {
	var pl Playlist
	path := "/playlists/" + url.PathEscape(name)
	if err := c.do(ctx, http.MethodGet, path, nil, &pl); err != nil {
		return nil, fmt.Errorf("fetch playlist %q: %w", name, err)
	}
	c.tagRoles(pl.Tracks)
	return &pl, nil
}

// CreateQueue creates a new play queue seeded with the given tracks.
func (c *Client) CreateQueue(ctx context.Context, tracks []Track) (*PlayQueue, error) {
	body := struct {
		GUIDs []string `json:"guids"`
	}{}
	for _, t := range tracks {
		body.GUIDs = append(body.GUIDs, t.GUID)
	}
	var q PlayQueue
	if err := c.do(ctx, http.MethodPost, "/playQueues", body, &q); err != nil {
		return nil, fmt.Errorf("create play queue: %w", err)
	}
	c.tagQueueRoles(&q)
	return &q, nil
}

// Queue fetches a point-in-time view of a play queue by id.
func (c *Client) Queue(ctx context.Context, queueID int64) (*PlayQueue, error) {
	var q PlayQueue
	path := fmt.Sprintf("/playQueues/%d", queueID)
	if err := c.do(ctx, http.MethodGet, path, nil, &q); err != nil {
		return nil, fmt.Errorf("fetch play queue %d: %w", queueID, err)
	}
	c.tagQueueRoles(&q)
	return &q, nil
}

// AppendToQueue appends a single track to the end of the play queue.
func (c *Client) AppendToQueue(ctx context.Context, queueID int64, track Track) error {
	body := struct {
		GUID string `json:"guid"`
	}{GUID: track.GUID}
	path := fmt.Sprintf("/playQueues/%d/items", queueID)
	if err := c.do(ctx, http.MethodPut, path, body, nil); err != nil {
		return fmt.Errorf("append %q to queue %d: %w", track.GUID, queueID, err)
	}
	return nil
}

// RemoveLastFromQueue removes the most recently appended queue item.
func (c *Client) RemoveLastFromQueue(ctx context.Context, queueID int64) error {
	path := fmt.Sprintf("/playQueues/%d/items/last", queueID)
	if err := c.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("remove last from queue %d: %w", queueID, err)
	}
	return nil
}

// RefreshQueue tells the client to re-read the queue. The synchronizer calls
// this once per cycle, after batching its appends.
func (c *Client) RefreshQueue(ctx context.Context, clientName string, queueID int64) error {
	path := fmt.Sprintf("/clients/%s/refreshQueue?queueID=%d", url.PathEscape(clientName), queueID)
	if err := c.do(ctx, http.MethodPost, path, nil, nil); err != nil {
		return fmt.Errorf("refresh queue %d on %q: %w", queueID, clientName, err)
	}
	return nil
}

// Clients enumerates playback devices.
func (c *Client) Clients(ctx context.Context) ([]Device, error) {
	var out []Device
	if err := c.do(ctx, http.MethodGet, "/clients", nil, &out); err != nil {
		return nil, fmt.Errorf("enumerate clients: %w", err)
	}
	return out, nil
}

// Sessions returns active playback sessions across all clients.
func (c *Client) Sessions(ctx context.Context) ([]Session, error) {
	var out []Session
	if err := c.do(ctx, http.MethodGet, "/sessions", nil, &out); err != nil {
		return nil, fmt.Errorf("fetch sessions: %w", err)
	}
	for i := range out {
		if out[i].Track.GUID == c.fillerGUID {
			out[i].Track.Role = RoleFiller
		} else {
			out[i].Track.Role = RoleNormal
		}
	}
	return out, nil
}

// Timeline returns per-client progress telemetry.
func (c *Client) Timeline(ctx context.Context, clientName string) (*Timeline, error) {
	var tl Timeline
	path := "/clients/" + url.PathEscape(clientName) + "/timeline"
	if err := c.do(ctx, http.MethodGet, path, nil, &tl); err != nil {
		return nil, fmt.Errorf("fetch timeline for %q: %w", clientName, err)
	}
	return &tl, nil
}

// Play starts playback of the queue on the named client.
func (c *Client) Play(ctx context.Context, clientName string, queueID int64) error {
	path := fmt.Sprintf("/clients/%s/play?queueID=%d", url.PathEscape(clientName), queueID)
	return c.command(ctx, path)
}

// Pause pauses playback on the named client.
func (c *Client) Pause(ctx context.Context, clientName string) error {
	return c.command(ctx, "/clients/"+url.PathEscape(clientName)+"/pause")
}

// Resume resumes playback on the named client.
func (c *Client) Resume(ctx context.Context, clientName string) error {
	return c.command(ctx, "/clients/"+url.PathEscape(clientName)+"/resume")
}

// SkipNext advances the named client to the next queue item.
func (c *Client) SkipNext(ctx context.Context, clientName string) error {
	return c.command(ctx, "/clients/"+url.PathEscape(clientName)+"/skipNext")
}

// SetMute mutes or unmutes the named client. Unmuting the broadcast chain is
// the "mic on" side effect.
func (c *Client) SetMute(ctx context.Context, clientName string, muted bool) error {
	state := "0"
	if muted {
		state = "1"
	}
	return c.command(ctx, "/clients/"+url.PathEscape(clientName)+"/mute?state="+state)
}

func (c *Client) command(ctx context.Context, path string) error {
	if err := c.do(ctx, http.MethodPost, path, nil, nil); err != nil {
		return fmt.Errorf("player command %s: %w", path, err)
	}
	return nil
}

func (c *Client) tagRoles(tracks []Track) {
	for i := range tracks {
		if tracks[i].GUID == c.fillerGUID {
			tracks[i].Role = RoleFiller
		} else {
			tracks[i].Role = RoleNormal
		}
	}
}

func (c *Client) tagQueueRoles(q *PlayQueue) {
	for i := range q.Items {
		if q.Items[i].Track.GUID == c.fillerGUID {
			q.Items[i].Track.Role = RoleFiller
		} else {
			q.Items[i].Track.Role = RoleNormal
		}
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Radio-Token", c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(payload))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
