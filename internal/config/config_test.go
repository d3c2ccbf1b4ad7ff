package config

import (
	"testing"
	"time"

	"github.com/monstercameron/zerver-probe/internal/probe"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.Env != EnvLocal {
		t.Errorf("Env=%q, want %q", cfg.Env, EnvLocal)
	}
	if cfg.Host != probe.DefaultHost {
		t.Errorf("Host=%q, want %q", cfg.Host, probe.DefaultHost)
	}
	if cfg.Port != probe.DefaultPort {
		t.Errorf("Port=%d, want %d", cfg.Port, probe.DefaultPort)
	}
	if cfg.SettleDelay != 0 {
		t.Errorf("SettleDelay=%v, want 0", cfg.SettleDelay)
	}
	if cfg.ReadTimeout != probe.DefaultReadTimeout {
		t.Errorf("ReadTimeout=%v, want %v", cfg.ReadTimeout, probe.DefaultReadTimeout)
	}
	if cfg.RequireResponse {
		t.Error("RequireResponse should default to false")
	}
	if cfg.Listen != DefaultListen {
		t.Errorf("Listen=%q, want %q", cfg.Listen, DefaultListen)
	}
	if cfg.WatchInterval != DefaultWatchInterval {
		t.Errorf("WatchInterval=%v, want %v", cfg.WatchInterval, DefaultWatchInterval)
	}
	if cfg.HistoryPath != "" {
		t.Errorf("HistoryPath=%q, want persistence disabled by default", cfg.HistoryPath)
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("ZPROBE_ENV", "prod")
	t.Setenv("ZPROBE_HOST", "10.0.0.5")
	t.Setenv("ZPROBE_PORT", "9090")
	t.Setenv("ZPROBE_SETTLE", "1s")
	t.Setenv("ZPROBE_READ_TIMEOUT", "750ms")
	t.Setenv("ZPROBE_REQUIRE_RESPONSE", "true")
	t.Setenv("ZPROBE_LISTEN", "0.0.0.0:9999")
	t.Setenv("ZPROBE_WATCH_INTERVAL", "5s")
	t.Setenv("ZPROBE_HISTORY", "/tmp/zprobe.db")
	t.Setenv("ZPROBE_HISTORY_TTL", "48h")

	cfg := Load()
	if cfg.Env != EnvProd {
		t.Errorf("Env=%q, want prod", cfg.Env)
	}
	if cfg.SettleDelay != time.Second {
		t.Errorf("SettleDelay=%v, want 1s", cfg.SettleDelay)
	}
	if cfg.Listen != "0.0.0.0:9999" {
		t.Errorf("Listen=%q", cfg.Listen)
	}
	if cfg.WatchInterval != 5*time.Second {
		t.Errorf("WatchInterval=%v, want 5s", cfg.WatchInterval)
	}
	if cfg.HistoryPath != "/tmp/zprobe.db" {
		t.Errorf("HistoryPath=%q", cfg.HistoryPath)
	}
	if cfg.HistoryTTL != 48*time.Hour {
		t.Errorf("HistoryTTL=%v, want 48h", cfg.HistoryTTL)
	}

	pc := cfg.ProbeConfig()
	if pc.Host != "10.0.0.5" || pc.Port != 9090 {
		t.Errorf("probe target %s:%d, want 10.0.0.5:9090", pc.Host, pc.Port)
	}
	if pc.ReadTimeout != 750*time.Millisecond {
		t.Errorf("probe ReadTimeout=%v, want 750ms", pc.ReadTimeout)
	}
	if !pc.RequireResponse {
		t.Error("probe RequireResponse not carried over")
	}
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("ZPROBE_PORT", "not-a-port")
	t.Setenv("ZPROBE_READ_TIMEOUT", "soon")
	t.Setenv("ZPROBE_REQUIRE_RESPONSE", "yep")

	cfg := Load()
	if cfg.Port != probe.DefaultPort {
		t.Errorf("Port=%d, want default %d for a malformed value", cfg.Port, probe.DefaultPort)
	}
	if cfg.ReadTimeout != probe.DefaultReadTimeout {
		t.Errorf("ReadTimeout=%v, want default", cfg.ReadTimeout)
	}
	if cfg.RequireResponse {
		t.Error("malformed bool should fall back to false")
	}
}
