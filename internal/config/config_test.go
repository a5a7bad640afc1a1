package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("RADIOBLUE_SERVER_URL", "http://127.0.0.1:32400")
	t.Setenv("RADIOBLUE_SERVER_TOKEN", "supersecret")
	t.Setenv("RADIOBLUE_CLIENT_NAME", "StudioPlayer")
	t.Setenv("RADIOBLUE_ON_AIR_PLAYLIST", "On Air")
	t.Setenv("RADIOBLUE_FILLER_GUID", "lib://filler/silence")
}

func TestLoadReadsCriticalEnvKeys(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ServerToken != "supersecret" {
		t.Fatalf("unexpected server token: %q", cfg.ServerToken)
	}
	if cfg.FillerInterval != 6 {
		t.Fatalf("expected default filler interval 6, got %d", cfg.FillerInterval)
	}
	if cfg.SilenceCeilingDB != 30 {
		t.Fatalf("expected default silence ceiling 30, got %v", cfg.SilenceCeilingDB)
	}
}

func TestLoadFailsWithoutPlaylist(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("RADIOBLUE_ON_AIR_PLAYLIST", "")

	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected load to fail without a playlist")
	}
}

func TestEnvOverridesFileValues(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("RADIOBLUE_FILLER_INTERVAL", "3")

	path := filepath.Join(t.TempDir(), "config.json")
	seed := map[string]any{
		"server_url":      "http://filehost:32400",
		"filler_interval": 9,
	}
	data, _ := json.Marshal(seed)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ServerURL != "http://127.0.0.1:32400" {
		t.Fatalf("env should override file, got %q", cfg.ServerURL)
	}
	if cfg.FillerInterval != 3 {
		t.Fatalf("env should override file interval, got %d", cfg.FillerInterval)
	}
}

func TestSaveStripsSecretsAndBacksUp(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("RADIOBLUE_PASSWORD", "hunter2")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if err := cfg.Save(path); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := cfg.Save(path); err != nil {
		t.Fatalf("second save: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "hunter2") {
		t.Fatal("password leaked into persisted config")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	backups := 0
	for _, e := range entries {
		if strings.Contains(e.Name(), ".bak-") {
			backups++
		}
	}
	if backups == 0 {
		t.Fatal("expected a timestamped backup after rewrite")
	}
}
