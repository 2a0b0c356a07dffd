package session

import (
	"strings"
	"testing"
)

func TestNewMintsUniqueSessionIDs(t *testing.T) {
	a := New("device-1")
	b := New("device-1")

	if a.DeviceID != "device-1" || b.DeviceID != "device-1" {
		t.Errorf("device id: %q %q", a.DeviceID, b.DeviceID)
	}
	if !strings.HasPrefix(a.SessionID, "ses_") {
		t.Errorf("session prefix: got %q", a.SessionID)
	}
	if a.SessionID == b.SessionID {
		t.Error("two processes must not share a session id")
	}
	if a.StartedAt.IsZero() {
		t.Error("started at should be set")
	}
}

func TestLoadReusesDeviceID(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	first, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	second, err := Load()
	if err != nil {
		t.Fatalf("load again: %v", err)
	}

	if first.DeviceID == "" {
		t.Fatal("device id should be generated on first load")
	}
	if first.DeviceID != second.DeviceID {
		t.Errorf("device id should persist across loads: %q then %q", first.DeviceID, second.DeviceID)
	}
	if first.SessionID == second.SessionID {
		t.Error("each load is a new session")
	}
}
