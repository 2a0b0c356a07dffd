package sync

import (
	"encoding/json"
	"time"
)

// Event represents a single sync action from a client device.
type Event struct {
	ClientActionID  string
	DeviceID        string
	SessionID       string
	ActionType      string
	EntityType      string
	EntityID        string
	Payload         []byte // JSON
	ClientTimestamp time.Time
	ServerSeq       int64
}

// PushResult is the server response to a push request.
type PushResult struct {
	Accepted int
	Acks     []Ack
	Rejected []Rejection
}

// Ack confirms a client action was accepted with a server sequence number.
type Ack struct {
	ClientActionID string
	ServerSeq      int64
}

// Rejection explains why a client action was refused.
type Rejection struct {
	ClientActionID string
	Reason         string
	ServerSeq      int64 // populated for "duplicate" rejections
}

// PullResult is the server response to a pull request.
type PullResult struct {
	Events        []Event
	LastServerSeq int64
	HasMore       bool
}

// ApplyResult summarises the outcome of applying a batch of remote events.
type ApplyResult struct {
	LastAppliedSeq int64
	Applied        int
	Stale          int // suppressed: event timestamp not newer than the local row
	Overwrites     int
	Failed         []FailedEvent
}

// FailedEvent records a single event that could not be applied.
type FailedEvent struct {
	ServerSeq int64
	Error     error
}

// EntityValidator returns true if the given entity type is allowed.
type EntityValidator func(entityType string) bool

// BoardEntityValidator accepts exactly the board-owned tables the engine
// knows how to apply.
func BoardEntityValidator(entityType string) bool {
	switch entityType {
	case "boards", "board_settings", "board_columns", "tasks", "subtasks", "labels", "task_labels", "user_settings":
		return true
	}
	return false
}

// payloadWrapper is the on-the-wire envelope around a logged mutation.
type payloadWrapper struct {
	SchemaVersion int             `json:"schema_version"`
	NewData       json.RawMessage `json:"new_data"`
	PreviousData  json.RawMessage `json:"previous_data"`
}
