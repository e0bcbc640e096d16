package config

import (
	"testing"
	"time"
	_ "time/tzdata"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"OPENVOTE_API_URL", "OPENVOTE_HTTP_TIMEOUT", "OPENVOTE_SYNC_INTERVAL", "OPENVOTE_SYNC_UNIT",
		"OPENVOTE_SESSION_BACKEND", "REDIS_URL", "OPENVOTE_STATS_TZ",
		"OPENVOTE_METRICS_ADDR", "OPENVOTE_USERNAME", "OPENVOTE_PASSWORD", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.APIURL != "http://localhost:8095/api/v1" {
		t.Fatalf("APIURL = %q", cfg.APIURL)
	}
	if cfg.SyncInterval != 15 || cfg.SyncUnit != time.Second {
		t.Fatalf("sync cadence = %d x %v", cfg.SyncInterval, cfg.SyncUnit)
	}
	if cfg.HTTPTimeout != 10*time.Second {
		t.Fatalf("HTTPTimeout = %v", cfg.HTTPTimeout)
	}
	if cfg.SessionBackend != "memory" || cfg.LogLevel != "info" || cfg.MetricsAddr != ":9109" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.Location() != time.UTC {
		t.Fatalf("Location() = %v", cfg.Location())
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("OPENVOTE_API_URL", "https://api.example.org/api/v1")
	t.Setenv("OPENVOTE_SYNC_INTERVAL", "30")
	t.Setenv("OPENVOTE_SYNC_UNIT", "250ms")
	t.Setenv("OPENVOTE_SESSION_BACKEND", "redis")
	t.Setenv("OPENVOTE_STATS_TZ", "Africa/Douala")

	cfg := Load()
	if cfg.APIURL != "https://api.example.org/api/v1" || cfg.SessionBackend != "redis" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.SyncInterval != 30 || cfg.SyncUnit != 250*time.Millisecond {
		t.Fatalf("sync cadence = %d x %v", cfg.SyncInterval, cfg.SyncUnit)
	}
	if cfg.Location().String() != "Africa/Douala" {
		t.Fatalf("Location() = %v", cfg.Location())
	}
}

func TestLoadIgnoresBadNumbers(t *testing.T) {
	cases := map[string]string{
		"OPENVOTE_SYNC_INTERVAL": "soon",
		"OPENVOTE_SYNC_UNIT":     "-1s",
		"OPENVOTE_HTTP_TIMEOUT":  "ten",
	}
	for key, value := range cases {
		t.Setenv(key, value)
	}
	t.Setenv("OPENVOTE_STATS_TZ", "Mars/Olympus")

	cfg := Load()
	if cfg.SyncInterval != 15 || cfg.SyncUnit != time.Second || cfg.HTTPTimeout != 10*time.Second {
		t.Fatalf("bad values should fall back: %+v", cfg)
	}
	if cfg.Location() != time.UTC {
		t.Fatalf("unknown zone should fall back to UTC, got %v", cfg.Location())
	}
}
