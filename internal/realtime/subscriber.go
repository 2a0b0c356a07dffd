package realtime

import (
	"encoding/json"
	"log/slog"
	"reflect"
)

// Subscriber filters incoming event envelopes for one device. Three
// suppression stages run in order:
//
//  1. self-echo: frames originated by this device are dropped, the
//     local rows already reflect them
//  2. staleness: frames at or below the last sequence seen for that
//     entity are dropped
//  3. no-op: frames whose payload decodes equal to the last applied
//     payload for that entity are dropped
//
// Frames that survive all three are returned for application.
type Subscriber struct {
	deviceID    string
	lastSeq     int64
	entitySeq   map[string]int64
	lastPayload map[string]any
}

// NewSubscriber creates a subscriber for the given device. afterSeq
// seeds the global cursor, typically from the board's sync state.
func NewSubscriber(deviceID string, afterSeq int64) *Subscriber {
	return &Subscriber{
		deviceID:    deviceID,
		lastSeq:     afterSeq,
		entitySeq:   make(map[string]int64),
		lastPayload: make(map[string]any),
	}
}

// LastSeq returns the highest sequence number observed, including
// suppressed frames. Persist it so reconnects resume from here.
func (s *Subscriber) LastSeq() int64 {
	return s.lastSeq
}

// Filter runs the suppression pipeline over an envelope's frames.
func (s *Subscriber) Filter(env Envelope) []EventFrame {
	if env.Type != TypeEvents {
		return nil
	}

	var out []EventFrame
	for _, frame := range env.Events {
		if frame.ServerSeq > s.lastSeq {
			s.lastSeq = frame.ServerSeq
		}

		if frame.DeviceID == s.deviceID {
			slog.Debug("suppress self-echo", "seq", frame.ServerSeq, "entity", frame.EntityID)
			s.observe(frame)
			continue
		}

		key := frame.EntityType + "/" + frame.EntityID
		if frame.ServerSeq <= s.entitySeq[key] {
			slog.Debug("suppress stale", "seq", frame.ServerSeq, "entity", frame.EntityID)
			continue
		}

		if s.isNoOp(key, frame.Payload) {
			slog.Debug("suppress no-op", "seq", frame.ServerSeq, "entity", frame.EntityID)
			s.observe(frame)
			continue
		}

		s.observe(frame)
		out = append(out, frame)
	}
	return out
}

// observe records a frame's sequence and payload without delivering it.
func (s *Subscriber) observe(frame EventFrame) {
	key := frame.EntityType + "/" + frame.EntityID
	if frame.ServerSeq > s.entitySeq[key] {
		s.entitySeq[key] = frame.ServerSeq
	}
	if len(frame.Payload) > 0 {
		var decoded any
		if err := json.Unmarshal(frame.Payload, &decoded); err == nil {
			s.lastPayload[key] = decoded
		}
	} else {
		delete(s.lastPayload, key)
	}
}

// isNoOp reports whether the payload decodes identical to the last
// payload seen for the entity. Comparison is on decoded values, so key
// order and whitespace differences don't defeat it.
func (s *Subscriber) isNoOp(key string, payload json.RawMessage) bool {
	prev, ok := s.lastPayload[key]
	if !ok || len(payload) == 0 {
		return false
	}
	var decoded any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return false
	}
	return reflect.DeepEqual(prev, decoded)
}
