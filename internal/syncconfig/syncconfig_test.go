package syncconfig

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeTestConfig creates a temp HOME with ~/.config/kanban/config.json.
func writeTestConfig(t *testing.T, cfg *Config) {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	dir := filepath.Join(tmpDir, ".config", "kanban")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.json"), data, 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func boolPtr(b bool) *bool { return &b }

func TestServerURLPriority(t *testing.T) {
	writeTestConfig(t, &Config{Sync: SyncConfig{URL: "https://config.example"}})
	t.Setenv("KANBAN_SYNC_URL", "")
	if got := GetServerURL(); got != "https://config.example" {
		t.Errorf("config url: got %q", got)
	}

	t.Setenv("KANBAN_SYNC_URL", "https://env.example")
	if got := GetServerURL(); got != "https://env.example" {
		t.Errorf("env should win: got %q", got)
	}
}

func TestServerURLDefault(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("KANBAN_SYNC_URL", "")
	if got := GetServerURL(); got != defaultServerURL {
		t.Errorf("default url: got %q", got)
	}
}

func TestAuthRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("KANBAN_AUTH_KEY", "")

	if IsAuthenticated() {
		t.Fatal("fresh home should not be authenticated")
	}

	creds := &AuthCredentials{
		APIKey:    "kb_live_abc",
		UserID:    "u_1",
		Email:     "me@example.com",
		ServerURL: "https://sync.example",
		DeviceID:  GenerateDeviceID(),
	}
	if err := SaveAuth(creds); err != nil {
		t.Fatalf("save auth: %v", err)
	}

	got, err := LoadAuth()
	if err != nil {
		t.Fatalf("load auth: %v", err)
	}
	if got.APIKey != creds.APIKey || got.DeviceID != creds.DeviceID {
		t.Errorf("round trip: %+v", got)
	}
	if !IsAuthenticated() {
		t.Error("saved key should authenticate")
	}

	// auth.json holds the API key, so it must not be world-readable.
	dir, _ := ConfigDir()
	info, err := os.Stat(filepath.Join(dir, "auth.json"))
	if err != nil {
		t.Fatalf("stat auth.json: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("auth.json perms: got %o", info.Mode().Perm())
	}

	if err := ClearAuth(); err != nil {
		t.Fatalf("clear auth: %v", err)
	}
	if IsAuthenticated() {
		t.Error("cleared auth should not authenticate")
	}
	if err := ClearAuth(); err != nil {
		t.Errorf("clearing twice should be a no-op: %v", err)
	}
}

func TestDeviceIDPersists(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	first, err := GetDeviceID()
	if err != nil {
		t.Fatalf("get device id: %v", err)
	}
	if first == "" {
		t.Fatal("device id should be generated")
	}

	second, err := GetDeviceID()
	if err != nil {
		t.Fatalf("get device id again: %v", err)
	}
	if second != first {
		t.Errorf("device id should persist: %q then %q", first, second)
	}
}

func TestAutoSyncEnabledFromConfig(t *testing.T) {
	writeTestConfig(t, &Config{Sync: SyncConfig{Auto: AutoSyncConfig{Enabled: boolPtr(false)}}})
	t.Setenv("KANBAN_SYNC_AUTO", "")
	if GetAutoSyncEnabled() {
		t.Error("expected auto-sync disabled from config")
	}
}

func TestAutoSyncOnStartFromConfig(t *testing.T) {
	writeTestConfig(t, &Config{Sync: SyncConfig{Auto: AutoSyncConfig{OnStart: boolPtr(false)}}})
	t.Setenv("KANBAN_SYNC_AUTO_START", "")
	if GetAutoSyncOnStart() {
		t.Error("expected on_start disabled from config")
	}
}

func TestAutoSyncDebounceFromConfig(t *testing.T) {
	writeTestConfig(t, &Config{Sync: SyncConfig{Auto: AutoSyncConfig{Debounce: "10s"}}})
	t.Setenv("KANBAN_SYNC_AUTO_DEBOUNCE", "")
	if d := GetAutoSyncDebounce(); d != 10*time.Second {
		t.Errorf("expected 10s from config, got %v", d)
	}
}

func TestAutoSyncIntervalFromConfig(t *testing.T) {
	writeTestConfig(t, &Config{Sync: SyncConfig{Auto: AutoSyncConfig{Interval: "15m"}}})
	t.Setenv("KANBAN_SYNC_AUTO_INTERVAL", "")
	if d := GetAutoSyncInterval(); d != 15*time.Minute {
		t.Errorf("expected 15m from config, got %v", d)
	}
}

func TestAutoSyncPullFromConfig(t *testing.T) {
	writeTestConfig(t, &Config{Sync: SyncConfig{Auto: AutoSyncConfig{Pull: boolPtr(false)}}})
	t.Setenv("KANBAN_SYNC_AUTO_PULL", "")
	if GetAutoSyncPull() {
		t.Error("expected pull disabled from config")
	}
}

func TestAutoSyncEnvOverridesConfig(t *testing.T) {
	writeTestConfig(t, &Config{Sync: SyncConfig{Auto: AutoSyncConfig{
		Enabled:  boolPtr(false),
		OnStart:  boolPtr(false),
		Debounce: "10s",
		Interval: "15m",
		Pull:     boolPtr(false),
	}}})

	t.Setenv("KANBAN_SYNC_AUTO", "true")
	if !GetAutoSyncEnabled() {
		t.Error("env should override config for enabled")
	}

	t.Setenv("KANBAN_SYNC_AUTO_START", "1")
	if !GetAutoSyncOnStart() {
		t.Error("env should override config for on_start")
	}

	t.Setenv("KANBAN_SYNC_AUTO_DEBOUNCE", "500ms")
	if d := GetAutoSyncDebounce(); d != 500*time.Millisecond {
		t.Errorf("env should override config for debounce, got %v", d)
	}

	t.Setenv("KANBAN_SYNC_AUTO_INTERVAL", "30s")
	if d := GetAutoSyncInterval(); d != 30*time.Second {
		t.Errorf("env should override config for interval, got %v", d)
	}

	t.Setenv("KANBAN_SYNC_AUTO_PULL", "true")
	if !GetAutoSyncPull() {
		t.Error("env should override config for pull")
	}
}
