package session

import (
	"testing"
	"time"
)

func TestApplyEnvConfig(t *testing.T) {
	t.Setenv("SERLINK_ECHO", "true")
	t.Setenv("SERLINK_TRANSLATE", "1")
	t.Setenv("SERLINK_LOG_DIR", "/env/logs")
	t.Setenv("SERLINK_COMPRESSOR", "lz4")
	t.Setenv("SERLINK_WAIT_TIMEOUT", "45s")

	cfg := DefaultConfig()
	if err := ApplyEnvConfig(&cfg, map[string]bool{}); err != nil {
		t.Fatalf("ApplyEnvConfig() = %v", err)
	}

	if !cfg.Echo || !cfg.Translate {
		t.Errorf("booleans = echo:%v translate:%v, want both true", cfg.Echo, cfg.Translate)
	}
	if cfg.LogDir != "/env/logs" {
		t.Errorf("LogDir = %q", cfg.LogDir)
	}
	if cfg.Compressor != "lz4" {
		t.Errorf("Compressor = %q", cfg.Compressor)
	}
	if cfg.WaitTimeout != 45*time.Second {
		t.Errorf("WaitTimeout = %v, want 45s", cfg.WaitTimeout)
	}
}

func TestApplyEnvConfig_FlagsWin(t *testing.T) {
	t.Setenv("SERLINK_LOG_DIR", "/env/logs")

	cfg := DefaultConfig()
	cfg.LogDir = "/flag/logs"
	if err := ApplyEnvConfig(&cfg, map[string]bool{"log-dir": true}); err != nil {
		t.Fatalf("ApplyEnvConfig() = %v", err)
	}

	if cfg.LogDir != "/flag/logs" {
		t.Errorf("LogDir = %q, want flag value to win", cfg.LogDir)
	}
}

func TestApplyEnvConfig_BadDuration(t *testing.T) {
	t.Setenv("SERLINK_DRAIN_TIMEOUT", "whenever")

	cfg := DefaultConfig()
	if err := ApplyEnvConfig(&cfg, map[string]bool{}); err == nil {
		t.Error("ApplyEnvConfig() accepted invalid duration, want error")
	}
}
