/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"encoding/json"
	"net/http"
	"strings"
)

const trackLogLimit = 200

// configureRoutes registers the control surface. Command endpoints are plain
// GETs returning short status strings; external control hardware drives them.
func (s *Server) configureRoutes() {
	s.router.Get("/", s.handleStatus)
	s.router.Get("/next", s.handleNext)
	s.router.Get("/pause", s.handlePause)
	s.router.Get("/unpause", s.handleUnpause)
	s.router.Get("/delete_last", s.handleDeleteLast)
	s.router.Get("/silence", s.handleSilence)
	s.router.Get("/mic_on", s.handleMicOn)
	s.router.Get("/mic_off", s.handleMicOff)
	s.router.Get("/mic_toggle", s.handleMicToggle)
	s.router.Get("/track_log", s.handleTrackLog)
}

// handleStatus returns the last published snapshot, or an empty record if
// none exists yet. It never blocks waiting for one.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	snap := s.state.Snapshot()
	if snap == nil {
		_, _ = w.Write([]byte("{}"))
		return
	}
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		s.logger.Warn().Err(err).Msg("encode snapshot failed")
	}
}

// All command handlers take the same lock the synchronizer holds while
// appending, so an operator command never interleaves with an in-flight sync
// cycle.
func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	s.state.LockQueue()
	defer s.state.UnlockQueue()

	if err := s.api.SkipNext(r.Context(), s.cfg.ClientName); err != nil {
		s.writeError(w, "skip failed", err)
		return
	}
	writeStatus(w, "ok")
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.state.LockQueue()
	defer s.state.UnlockQueue()

	if err := s.api.Pause(r.Context(), s.cfg.ClientName); err != nil {
		s.writeError(w, "pause failed", err)
		return
	}
	writeStatus(w, "ok")
}

func (s *Server) handleUnpause(w http.ResponseWriter, r *http.Request) {
	s.state.LockQueue()
	defer s.state.UnlockQueue()

	if err := s.api.Resume(r.Context(), s.cfg.ClientName); err != nil {
		s.writeError(w, "unpause failed", err)
		return
	}
	writeStatus(w, "ok")
}

func (s *Server) handleDeleteLast(w http.ResponseWriter, r *http.Request) {
	s.state.LockQueue()
	defer s.state.UnlockQueue()

	if err := s.api.RemoveLastFromQueue(r.Context(), s.queueID); err != nil {
		s.writeError(w, "delete failed", err)
		return
	}
	if err := s.api.RefreshQueue(r.Context(), s.cfg.ClientName, s.queueID); err != nil {
		s.writeError(w, "refresh failed", err)
		return
	}
	writeStatus(w, "ok")
}

func (s *Server) handleSilence(w http.ResponseWriter, r *http.Request) {
	s.state.LockQueue()
	defer s.state.UnlockQueue()

	if err := s.sync.ForceFiller(r.Context()); err != nil {
		s.writeError(w, "filler insert failed", err)
		return
	}
	writeStatus(w, "ok")
}

func (s *Server) handleMicOn(w http.ResponseWriter, r *http.Request) {
	s.state.LockQueue()
	defer s.state.UnlockQueue()

	executed, err := s.mic.On(r.Context())
	s.writeMicResult(w, executed, err)
}

func (s *Server) handleMicOff(w http.ResponseWriter, r *http.Request) {
	s.state.LockQueue()
	defer s.state.UnlockQueue()

	executed, err := s.mic.Off(r.Context())
	s.writeMicResult(w, executed, err)
}

func (s *Server) handleMicToggle(w http.ResponseWriter, r *http.Request) {
	s.state.LockQueue()
	defer s.state.UnlockQueue()

	executed, err := s.mic.Toggle(r.Context())
	s.writeMicResult(w, executed, err)
}

func (s *Server) writeMicResult(w http.ResponseWriter, executed bool, err error) {
	if err != nil {
		s.writeError(w, "mic command failed", err)
		return
	}
	if !executed {
		writeStatus(w, "debounced")
		return
	}
	writeStatus(w, "ok")
}

// handleTrackLog returns play-history lines in reverse chronological order.
func (s *Server) handleTrackLog(w http.ResponseWriter, r *http.Request) {
	lines, err := s.store.Lines(r.Context(), trackLogLimit)
	if err != nil {
		s.writeError(w, "history unavailable", err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(strings.Join(lines, "\n")))
}

func writeStatus(w http.ResponseWriter, status string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(status))
}

func (s *Server) writeError(w http.ResponseWriter, msg string, err error) {
	s.logger.Warn().Err(err).Msg(msg)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = w.Write([]byte(msg))
}
