/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultPath is where the persisted configuration lives unless overridden.
const DefaultPath = "config.json"

// Config covers process level configuration. It is loaded from the persisted
// JSON record and overridden by RADIOBLUE_* environment variables.
type Config struct {
	Environment string `json:"environment"`

	// Remote playback service identity.
	ServerURL   string `json:"server_url"`
	ServerToken string `json:"server_token"`
	ServerName  string `json:"server_name"`
	Username    string `json:"username"`
	Password    string `json:"password,omitempty"` // never persisted

	// Broadcast selection.
	ClientName    string `json:"client_name"`
	OnAirPlaylist string `json:"on_air_playlist"`
	FillerGUID    string `json:"filler_guid"`

	// Queue behaviour.
	FillerInterval int `json:"filler_interval"`

	// Dead-air monitor.
	StreamURL        string  `json:"stream_url"`
	SilenceCeilingDB float64 `json:"silence_ceiling_db"`

	// Control surface and metrics.
	HTTPBind    string `json:"http_bind"`
	MetricsBind string `json:"metrics_bind"`

	// Play history and now-playing record.
	HistoryDSN     string `json:"history_dsn"`
	NowPlayingPath string `json:"now_playing_path"`

	// Optional downstream snapshot publishing.
	RedisAddr     string `json:"redis_addr"`
	RedisPassword string `json:"redis_password,omitempty"`
	RedisDB       int    `json:"redis_db"`

	// Tracing configuration.
	TracingEnabled    bool    `json:"tracing_enabled"`
	OTLPEndpoint      string  `json:"otlp_endpoint"`
	TracingSampleRate float64 `json:"tracing_sample_rate"`
}

// Load reads the persisted configuration, applies environment overrides and
// defaults, and validates the result.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path == "" {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// Environment-only configuration is fine.
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	applyEnv(cfg)
	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Environment = getEnv("RADIOBLUE_ENV", cfg.Environment)
	cfg.ServerURL = getEnv("RADIOBLUE_SERVER_URL", cfg.ServerURL)
	cfg.ServerToken = getEnv("RADIOBLUE_SERVER_TOKEN", cfg.ServerToken)
	cfg.ServerName = getEnv("RADIOBLUE_SERVER_NAME", cfg.ServerName)
	cfg.Username = getEnv("RADIOBLUE_USERNAME", cfg.Username)
	cfg.Password = getEnv("RADIOBLUE_PASSWORD", cfg.Password)
	cfg.ClientName = getEnv("RADIOBLUE_CLIENT_NAME", cfg.ClientName)
	cfg.OnAirPlaylist = getEnv("RADIOBLUE_ON_AIR_PLAYLIST", cfg.OnAirPlaylist)
	cfg.FillerGUID = getEnv("RADIOBLUE_FILLER_GUID", cfg.FillerGUID)
	cfg.FillerInterval = getEnvInt("RADIOBLUE_FILLER_INTERVAL", cfg.FillerInterval)
	cfg.StreamURL = getEnv("RADIOBLUE_STREAM_URL", cfg.StreamURL)
	cfg.SilenceCeilingDB = getEnvFloat("RADIOBLUE_SILENCE_CEILING_DB", cfg.SilenceCeilingDB)
	cfg.HTTPBind = getEnv("RADIOBLUE_HTTP_BIND", cfg.HTTPBind)
	cfg.MetricsBind = getEnv("RADIOBLUE_METRICS_BIND", cfg.MetricsBind)
	cfg.HistoryDSN = getEnv("RADIOBLUE_HISTORY_DSN", cfg.HistoryDSN)
	cfg.NowPlayingPath = getEnv("RADIOBLUE_NOW_PLAYING_PATH", cfg.NowPlayingPath)
	cfg.RedisAddr = getEnv("RADIOBLUE_REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = getEnv("RADIOBLUE_REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = getEnvInt("RADIOBLUE_REDIS_DB", cfg.RedisDB)
	cfg.TracingEnabled = getEnvBool("RADIOBLUE_TRACING_ENABLED", cfg.TracingEnabled)
	cfg.OTLPEndpoint = getEnv("RADIOBLUE_OTLP_ENDPOINT", cfg.OTLPEndpoint)
	cfg.TracingSampleRate = getEnvFloat("RADIOBLUE_TRACING_SAMPLE_RATE", cfg.TracingSampleRate)
}

func applyDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.FillerInterval <= 0 {
		cfg.FillerInterval = 6
	}
	if cfg.SilenceCeilingDB == 0 {
		cfg.SilenceCeilingDB = 30
	}
	if cfg.HTTPBind == "" {
		cfg.HTTPBind = "0.0.0.0:5000"
	}
	if cfg.MetricsBind == "" {
		cfg.MetricsBind = "127.0.0.1:9000"
	}
	if cfg.HistoryDSN == "" {
		cfg.HistoryDSN = "radioblue.db"
	}
	if cfg.NowPlayingPath == "" {
		cfg.NowPlayingPath = "now_playing.txt"
	}
	if cfg.OTLPEndpoint == "" {
		cfg.OTLPEndpoint = "localhost:4317"
	}
	if cfg.TracingSampleRate == 0 {
		cfg.TracingSampleRate = 1.0
	}
}

func (c *Config) validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("server_url (RADIOBLUE_SERVER_URL) must be provided")
	}
	if c.ServerToken == "" && c.Username == "" {
		return fmt.Errorf("server_token (RADIOBLUE_SERVER_TOKEN) or username must be provided")
	}
	if c.ClientName == "" {
		return fmt.Errorf("client_name (RADIOBLUE_CLIENT_NAME) must be provided")
	}
	if c.OnAirPlaylist == "" {
		return fmt.Errorf("on_air_playlist (RADIOBLUE_ON_AIR_PLAYLIST) must be provided")
	}
	if c.FillerGUID == "" {
		return fmt.Errorf("filler_guid (RADIOBLUE_FILLER_GUID) must be provided")
	}
	return nil
}

// Save persists the configuration to path with secrets stripped. If a file
// already exists there, a timestamped backup copy is written first.
func (c *Config) Save(path string) error {
	if path == "" {
		path = DefaultPath
	}

	if prev, err := os.ReadFile(path); err == nil {
		backup := fmt.Sprintf("%s.bak-%d", path, time.Now().Unix())
		if err := os.WriteFile(backup, prev, 0o600); err != nil {
			return fmt.Errorf("back up config to %s: %w", backup, err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("read previous config %s: %w", path, err)
	}

	stripped := *c
	stripped.Password = ""
	stripped.RedisPassword = ""

	data, err := json.MarshalIndent(&stripped, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(strings.TrimSpace(val))
		if val == "true" || val == "1" || val == "yes" {
			return true
		}
		if val == "false" || val == "0" || val == "no" {
			return false
		}
	}
	return def
}
