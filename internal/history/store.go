/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package history persists the play log so track history survives restarts.
package history

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/friendsincode/radioblue/internal/player"
)

// PlayedTrack is one play-log row.
type PlayedTrack struct {
	ID       uint   `gorm:"primaryKey"`
	GUID     string `gorm:"index"`
	Title    string
	Artist   string
	Album    string
	PlayedAt time.Time `gorm:"index"`
}

// Store wraps the embedded history database.
type Store struct {
	db *gorm.DB
}

// Open opens (creating if needed) the history database at dsn.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if err := db.AutoMigrate(&PlayedTrack{}); err != nil {
		return nil, fmt.Errorf("migrate history db: %w", err)
	}
	return &Store{db: db}, nil
}

// Append records a track transition in the play log.
func (s *Store) Append(ctx context.Context, track player.Track, at time.Time) error {
	row := PlayedTrack{
		GUID:     track.GUID,
		Title:    track.DisplayTitle(),
		Artist:   track.Artist,
		Album:    track.Album,
		PlayedAt: at,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// Recent returns up to limit rows, most recent first.
func (s *Store) Recent(ctx context.Context, limit int) ([]PlayedTrack, error) {
	var rows []PlayedTrack
	err := s.db.WithContext(ctx).
		Order("played_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	return rows, nil
}

// Lines renders the play log in reverse chronological order for the control
// surface.
func (s *Store) Lines(ctx context.Context, limit int) ([]string, error) {
	rows, err := s.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		line := fmt.Sprintf("%s %s", row.PlayedAt.Format("15:04:05"), row.Title)
		if row.Artist != "" {
			line += " - " + row.Artist
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// WasPlayed reports whether a guid appears anywhere in the play log.
func (s *Store) WasPlayed(ctx context.Context, guid string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&PlayedTrack{}).
		Where("guid = ?", guid).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("query history: %w", err)
	}
	return count > 0, nil
}

// Close releases database resources.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
