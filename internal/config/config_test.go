package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SCANSTREAM_API_KEY", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIURL != "https://api.evrythng.com" {
		t.Fatalf("unexpected api url %q", cfg.APIURL)
	}
	if cfg.MinRemoteInterval != 1500*time.Millisecond || cfg.DebounceWindow != 1500*time.Millisecond {
		t.Fatalf("unexpected intervals %s %s", cfg.MinRemoteInterval, cfg.DebounceWindow)
	}
	if cfg.IdealWidth != 1920 || cfg.IdealHeight != 1080 {
		t.Fatalf("unexpected ideal size %dx%d", cfg.IdealWidth, cfg.IdealHeight)
	}
	if cfg.Remote() {
		t.Fatalf("remote enabled without an api key")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SCANSTREAM_API_KEY", "app-key")
	t.Setenv("SCANSTREAM_MIN_REMOTE_INTERVAL", "3s")
	t.Setenv("SCANSTREAM_OTEL_ENABLED", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.Remote() || cfg.MinRemoteInterval != 3*time.Second || cfg.OTELEnabled {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("SCANSTREAM_MIN_REMOTE_INTERVAL", "soon")
	if _, err := Load(); err == nil {
		t.Fatalf("expected parse error")
	}

	t.Setenv("SCANSTREAM_MIN_REMOTE_INTERVAL", "0s")
	if _, err := Load(); err == nil {
		t.Fatalf("expected validation error")
	}
}
