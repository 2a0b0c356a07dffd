// Package session builds the identity stamped on every logged action.
// The device id is stable per machine; the session id is minted fresh
// for each process. Both are passed explicitly to whoever needs them,
// never read from package state.
package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/marcus/kanban/internal/syncconfig"
)

const sessionPrefix = "ses_"

// Identity identifies one running client instance of the app.
type Identity struct {
	// DeviceID survives restarts and logouts. The sync protocol uses it
	// for self-echo exclusion, so two processes on one machine share it.
	DeviceID string

	// SessionID is unique to this process. Action batches pushed by
	// concurrent sessions on the same device stay distinguishable.
	SessionID string

	StartedAt time.Time
}

// New mints a per-process identity around the given device id.
func New(deviceID string) Identity {
	return Identity{
		DeviceID:  deviceID,
		SessionID: sessionPrefix + uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
}

// Load resolves the persisted device id (creating one on first run) and
// mints a fresh session id for this process.
func Load() (Identity, error) {
	deviceID, err := syncconfig.GetDeviceID()
	if err != nil {
		return Identity{}, fmt.Errorf("resolve device id: %w", err)
	}
	return New(deviceID), nil
}
