package realtime

import (
	"encoding/json"
	"testing"
	"time"
)

func frame(seq int64, device, entityType, entityID, payload string) EventFrame {
	return EventFrame{
		ServerSeq:       seq,
		DeviceID:        device,
		ActionType:      "update",
		EntityType:      entityType,
		EntityID:        entityID,
		Payload:         json.RawMessage(payload),
		ClientTimestamp: time.Now().UTC(),
	}
}

func eventsEnvelope(frames ...EventFrame) Envelope {
	return Envelope{Type: TypeEvents, Events: frames}
}

func TestSubscriber_SelfEchoSuppressed(t *testing.T) {
	s := NewSubscriber("me", 0)

	got := s.Filter(eventsEnvelope(
		frame(1, "me", "tasks", "tk-1", `{"title":"mine"}`),
		frame(2, "other", "tasks", "tk-2", `{"title":"theirs"}`),
	))

	if len(got) != 1 {
		t.Fatalf("surviving frames: got %d, want 1", len(got))
	}
	if got[0].EntityID != "tk-2" {
		t.Errorf("survivor: got %s, want tk-2", got[0].EntityID)
	}
	if s.LastSeq() != 2 {
		t.Errorf("last seq should advance past suppressed frames, got %d", s.LastSeq())
	}
}

func TestSubscriber_StaleSuppressed(t *testing.T) {
	s := NewSubscriber("me", 0)

	got := s.Filter(eventsEnvelope(frame(5, "other", "tasks", "tk-1", `{"title":"v5"}`)))
	if len(got) != 1 {
		t.Fatalf("first delivery: got %d frames, want 1", len(got))
	}

	// A replay at or below the seen sequence for the same entity is dropped.
	got = s.Filter(eventsEnvelope(
		frame(5, "other", "tasks", "tk-1", `{"title":"v5"}`),
		frame(3, "third", "tasks", "tk-1", `{"title":"v3"}`),
	))
	if len(got) != 0 {
		t.Fatalf("replays: got %d frames, want 0", len(got))
	}

	// A different entity at a low sequence is unaffected.
	got = s.Filter(eventsEnvelope(frame(4, "other", "tasks", "tk-2", `{"title":"other task"}`)))
	if len(got) != 1 {
		t.Errorf("unrelated entity: got %d frames, want 1", len(got))
	}
}

func TestSubscriber_NoOpSuppressed(t *testing.T) {
	s := NewSubscriber("me", 0)

	got := s.Filter(eventsEnvelope(frame(1, "other", "tasks", "tk-1", `{"title":"same","position":1}`)))
	if len(got) != 1 {
		t.Fatalf("first delivery: got %d frames, want 1", len(got))
	}

	// Same content, different key order and whitespace: no-op.
	got = s.Filter(eventsEnvelope(frame(2, "other", "tasks", "tk-1", `{ "position": 1, "title": "same" }`)))
	if len(got) != 0 {
		t.Fatalf("identical payload: got %d frames, want 0", len(got))
	}
	if s.LastSeq() != 2 {
		t.Errorf("last seq should still advance, got %d", s.LastSeq())
	}

	// Changed content passes.
	got = s.Filter(eventsEnvelope(frame(3, "other", "tasks", "tk-1", `{"title":"same","position":2}`)))
	if len(got) != 1 {
		t.Errorf("changed payload: got %d frames, want 1", len(got))
	}
}

func TestSubscriber_SelfEchoPrimesNoOpFilter(t *testing.T) {
	s := NewSubscriber("me", 0)

	// Our own write comes back first; then another device pushes the
	// exact same state. The second should be a no-op.
	s.Filter(eventsEnvelope(frame(1, "me", "tasks", "tk-1", `{"title":"agreed"}`)))
	got := s.Filter(eventsEnvelope(frame(2, "other", "tasks", "tk-1", `{"title":"agreed"}`)))
	if len(got) != 0 {
		t.Fatalf("matching remote state after own write: got %d frames, want 0", len(got))
	}
}

func TestSubscriber_IgnoresNonEventEnvelopes(t *testing.T) {
	s := NewSubscriber("me", 0)
	if got := s.Filter(Envelope{Type: TypePong}); got != nil {
		t.Errorf("pong envelope: got %v, want nil", got)
	}
}

func TestSubscriber_SeedCursor(t *testing.T) {
	s := NewSubscriber("me", 42)
	if s.LastSeq() != 42 {
		t.Fatalf("seeded cursor: got %d, want 42", s.LastSeq())
	}
	s.Filter(eventsEnvelope(frame(41, "other", "tasks", "tk-1", `{"title":"old"}`)))
	if s.LastSeq() != 42 {
		t.Errorf("cursor must not move backwards, got %d", s.LastSeq())
	}
}
