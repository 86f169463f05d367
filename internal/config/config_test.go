package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{"LRCSYNC_AI_API_KEY", "LRCSYNC_REDIS_PASSWORD", "LRCSYNC_HTTP_ADDR", "LRCSYNC_LYRICS_FILE"} {
		if v, ok := os.LookupEnv(k); ok {
			os.Unsetenv(k)
			t.Cleanup(func() { os.Setenv(k, v) })
		}
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFileDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadFile(writeConfig(t, ""))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.App.SocketPath != DefaultSocketPath {
		t.Errorf("SocketPath = %q", cfg.App.SocketPath)
	}
	if cfg.App.PollInterval != DefaultPollInterval {
		t.Errorf("PollInterval = %v", cfg.App.PollInterval)
	}
	if cfg.App.ActivePolicy != "latest" || cfg.App.Player != "clock" {
		t.Errorf("App = %+v", cfg.App)
	}
	if cfg.Sync.SmallStep != 0.1 || cfg.Sync.LargeStep != 0.25 {
		t.Errorf("Sync = %+v", cfg.Sync)
	}
	if cfg.HTTP.Addr != DefaultHTTPAddr {
		t.Errorf("HTTP.Addr = %q", cfg.HTTP.Addr)
	}
	if cfg.Redis.Enabled || cfg.Redis.TTL != DefaultCacheTTL {
		t.Errorf("Redis = %+v", cfg.Redis)
	}
	if len(cfg.Providers) != 2 || cfg.Providers[0] != "lrclib" {
		t.Errorf("Providers = %v", cfg.Providers)
	}
}

func TestLoadFileOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
providers = ["netease"]

[app]
socket_path = "/run/user/1000/lrc.sock"
poll_interval = "100ms"
output_dir = "/tmp/out"
lyrics_file = "/tmp/song.txt"
active_policy = "first"
player = "playerctl:mpv"
auto_import = true

[http]
addr = ":9000"

[sync]
small_step = 0.05

[log]
level = "debug"
file = "/tmp/lrcsync.log"
max_size_mb = 5

[redis]
enabled = true
addr = "redis:6379"
db = 2
ttl = "1h"

[i3block]
enabled = true
signal = 12
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.App.SocketPath != "/run/user/1000/lrc.sock" || cfg.App.PollInterval != 100*time.Millisecond {
		t.Errorf("App = %+v", cfg.App)
	}
	if cfg.App.ActivePolicy != "first" || cfg.App.Player != "playerctl:mpv" || cfg.App.LyricsFile != "/tmp/song.txt" {
		t.Errorf("App = %+v", cfg.App)
	}
	if !cfg.App.AutoImport {
		t.Error("App.AutoImport = false, want true")
	}
	if cfg.HTTP.Addr != ":9000" {
		t.Errorf("HTTP.Addr = %q", cfg.HTTP.Addr)
	}
	if cfg.Sync.SmallStep != 0.05 || cfg.Sync.LargeStep != DefaultLargeStep {
		t.Errorf("Sync = %+v", cfg.Sync)
	}
	if cfg.Log.Level != "debug" || cfg.Log.File != "/tmp/lrcsync.log" || cfg.Log.MaxSizeMB != 5 || cfg.Log.MaxBackups != 3 {
		t.Errorf("Log = %+v", cfg.Log)
	}
	if !cfg.Redis.Enabled || cfg.Redis.Addr != "redis:6379" || cfg.Redis.DB != 2 || cfg.Redis.TTL != time.Hour {
		t.Errorf("Redis = %+v", cfg.Redis)
	}
	if len(cfg.Providers) != 1 || cfg.Providers[0] != "netease" {
		t.Errorf("Providers = %v", cfg.Providers)
	}
	if !cfg.I3Block.Enabled || cfg.I3Block.Signal != 12 {
		t.Errorf("I3Block = %+v", cfg.I3Block)
	}
}

func TestInvalidDurationsKeepDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadFile(writeConfig(t, "[app]\npoll_interval = \"soon\"\n[redis]\nttl = \"forever\"\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.App.PollInterval != DefaultPollInterval {
		t.Errorf("PollInterval = %v", cfg.App.PollInterval)
	}
	if cfg.Redis.TTL != DefaultCacheTTL {
		t.Errorf("TTL = %v", cfg.Redis.TTL)
	}
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("LRCSYNC_AI_API_KEY", "secret")
	t.Setenv("LRCSYNC_HTTP_ADDR", "")

	cfg, err := LoadFile(writeConfig(t, "[ai]\napi_key = \"from-file\"\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.AI.APIKey != "secret" {
		t.Errorf("APIKey = %q", cfg.AI.APIKey)
	}
	if cfg.HTTP.Addr != "" {
		t.Errorf("empty LRCSYNC_HTTP_ADDR should disable http, got %q", cfg.HTTP.Addr)
	}
}

func TestLoadFileMalformed(t *testing.T) {
	if _, err := LoadFile(writeConfig(t, "[app\nsocket_path=")); err == nil {
		t.Error("expected decode error")
	}
}
