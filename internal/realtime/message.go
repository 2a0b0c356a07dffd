package realtime

import (
	"encoding/json"
	"time"
)

// Envelope is the wire format for websocket traffic. The server pushes
// "events" envelopes when new events land on a board; clients send
// "subscribe" and "ping" envelopes.
type Envelope struct {
	Type      string       `json:"type"`
	BoardID   string       `json:"board_id,omitempty"`
	DeviceID  string       `json:"device_id,omitempty"`
	ServerSeq int64        `json:"server_seq,omitempty"`
	Events    []EventFrame `json:"events,omitempty"`
}

// EventFrame is one board event as carried inside an Envelope.
type EventFrame struct {
	ServerSeq       int64           `json:"server_seq"`
	DeviceID        string          `json:"device_id"`
	ActionType      string          `json:"action_type"`
	EntityType      string          `json:"entity_type"`
	EntityID        string          `json:"entity_id"`
	Payload         json.RawMessage `json:"payload"`
	ClientTimestamp time.Time       `json:"client_timestamp"`
}

const (
	TypeSubscribe = "subscribe"
	TypeEvents    = "events"
	TypePing      = "ping"
	TypePong      = "pong"
)
