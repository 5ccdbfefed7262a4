package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("IRIS_BASE_URL", "http://iris:3000")
	t.Setenv("IRIS_WS_URL", "ws://iris:3000/ws")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)
	for _, k := range []string{"BOT_PREFIX", "STORE_BACKEND", "ARCHIVE_DRIVER", "EGRESS_MODE", "WC_TURN_TIMEOUT", "ALLOWED_ROOMS"} {
		t.Setenv(k, "")
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BotPrefix != ";" || cfg.StoreBackend != "file" || cfg.ArchiveDriver != "none" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.TurnTimeout != 10*time.Second || cfg.AbortTimeout != time.Minute || cfg.SweepInterval != time.Second || cfg.NoituResetDelay != 15*time.Second {
		t.Fatalf("timing defaults %+v", cfg)
	}
	if !cfg.RoomAllowed("anything") {
		t.Fatalf("empty allowlist should allow all rooms")
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("BOT_PREFIX", "!")
	t.Setenv("ALLOWED_ROOMS", " r1, ,r2 ")
	t.Setenv("WC_TURN_TIMEOUT", "15")
	t.Setenv("WC_ABORT_TIMEOUT", "90s")
	t.Setenv("NOITU_RESET_DELAY", "5")
	t.Setenv("GROUP_ROOMS", "Minh")
	t.Setenv("STORE_BACKEND", "Redis")
	t.Setenv("REDIS_URL", "redis://localhost:6379/1")
	t.Setenv("EGRESS_DRYRUN", "true")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BotPrefix != "!" || cfg.StoreBackend != "redis" || !cfg.EgressDryRun {
		t.Fatalf("overrides not applied %+v", cfg)
	}
	if len(cfg.AllowedRooms) != 2 || !cfg.RoomAllowed("r2") || cfg.RoomAllowed("r3") {
		t.Fatalf("rooms = %v", cfg.AllowedRooms)
	}
	if !cfg.IsGroupRoom("Minh") || cfg.IsGroupRoom("r1") {
		t.Fatalf("group rooms = %v", cfg.GroupRooms)
	}
	if cfg.TurnTimeout != 15*time.Second || cfg.AbortTimeout != 90*time.Second || cfg.NoituResetDelay != 5*time.Second {
		t.Fatalf("durations %v %v %v", cfg.TurnTimeout, cfg.AbortTimeout, cfg.NoituResetDelay)
	}
}

func TestLoadCollectsErrors(t *testing.T) {
	t.Setenv("IRIS_BASE_URL", "")
	t.Setenv("IRIS_WS_URL", "")
	t.Setenv("STORE_BACKEND", "redis")
	t.Setenv("REDIS_URL", "")
	t.Setenv("WC_TURN_TIMEOUT", "-3")
	_, err := Load()
	if err == nil {
		t.Fatalf("expected error")
	}
	for _, want := range []string{"IRIS_BASE_URL is required", "IRIS_WS_URL is required", "REDIS_URL is required", "WC_TURN_TIMEOUT"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q missing %q", err, want)
		}
	}
}

func TestLoadDotEnvKeepsExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("NOITU_TEST_A=fromfile\nNOITU_TEST_B=fromfile\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("NOITU_TEST_A", "fromenv")
	t.Cleanup(func() { os.Unsetenv("NOITU_TEST_B") })

	if got := LoadDotEnv(filepath.Join(dir, "missing"), path); got != path {
		t.Fatalf("LoadDotEnv = %q", got)
	}
	if os.Getenv("NOITU_TEST_A") != "fromenv" || os.Getenv("NOITU_TEST_B") != "fromfile" {
		t.Fatalf("unexpected env A=%q B=%q", os.Getenv("NOITU_TEST_A"), os.Getenv("NOITU_TEST_B"))
	}
}
