package sync

import (
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func setupEngineDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := InitServerEventLog(db); err != nil {
		t.Fatalf("init event log: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func makeEvent(deviceID, actionID, entityID string) Event {
	return Event{
		DeviceID:        deviceID,
		SessionID:       "s1",
		ClientActionID:  actionID,
		ActionType:      "create",
		EntityType:      "tasks",
		EntityID:        entityID,
		Payload:         []byte(`{"title":"test"}`),
		ClientTimestamp: time.Now().UTC().Truncate(time.Second),
	}
}

func TestInsertServerEvents_Basic(t *testing.T) {
	db := setupEngineDB(t)
	tx, _ := db.Begin()

	events := []Event{
		makeEvent("d1", "ac-1", "tk-1"),
		makeEvent("d1", "ac-2", "tk-2"),
		makeEvent("d1", "ac-3", "tk-3"),
	}

	result, err := InsertServerEvents(tx, events)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	tx.Commit()

	if result.Accepted != 3 {
		t.Fatalf("accepted: got %d, want 3", result.Accepted)
	}
	if len(result.Rejected) != 0 {
		t.Fatalf("rejected: got %d, want 0", len(result.Rejected))
	}
	for i, ack := range result.Acks {
		if ack.ServerSeq <= 0 {
			t.Errorf("ack[%d] server_seq should be positive, got %d", i, ack.ServerSeq)
		}
		if i > 0 && ack.ServerSeq <= result.Acks[i-1].ServerSeq {
			t.Errorf("ack[%d] server_seq %d not greater than previous %d", i, ack.ServerSeq, result.Acks[i-1].ServerSeq)
		}
	}
}

func TestInsertServerEvents_Dedup(t *testing.T) {
	db := setupEngineDB(t)

	events := []Event{makeEvent("d1", "ac-1", "tk-1"), makeEvent("d1", "ac-2", "tk-2")}

	tx, _ := db.Begin()
	r1, err := InsertServerEvents(tx, events)
	if err != nil {
		t.Fatalf("first insert: %v", err)
	}
	tx.Commit()
	if r1.Accepted != 2 {
		t.Fatalf("first: accepted=%d, want 2", r1.Accepted)
	}

	tx, _ = db.Begin()
	r2, err := InsertServerEvents(tx, events)
	if err != nil {
		t.Fatalf("second insert: %v", err)
	}
	tx.Commit()

	if r2.Accepted != 0 {
		t.Fatalf("second: accepted=%d, want 0", r2.Accepted)
	}
	if len(r2.Rejected) != 2 {
		t.Fatalf("second: rejected=%d, want 2", len(r2.Rejected))
	}
	for _, rej := range r2.Rejected {
		if rej.Reason != "duplicate" {
			t.Errorf("rejection reason: got %q, want duplicate", rej.Reason)
		}
		if rej.ServerSeq <= 0 {
			t.Errorf("duplicate rejection should carry existing server_seq, got %d", rej.ServerSeq)
		}
	}
}

func TestInsertServerEvents_Validation(t *testing.T) {
	db := setupEngineDB(t)
	tx, _ := db.Begin()
	defer tx.Rollback()

	noDevice := makeEvent("", "ac-1", "tk-1")
	noEntity := makeEvent("d1", "ac-2", "")

	result, err := InsertServerEvents(tx, []Event{noDevice, noEntity})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if result.Accepted != 0 {
		t.Errorf("accepted: got %d, want 0", result.Accepted)
	}
	if len(result.Rejected) != 2 {
		t.Errorf("rejected: got %d, want 2", len(result.Rejected))
	}
}

func TestGetEventsSince_ExcludesOwnDevice(t *testing.T) {
	db := setupEngineDB(t)

	tx, _ := db.Begin()
	_, err := InsertServerEvents(tx, []Event{
		makeEvent("d1", "ac-1", "tk-1"),
		makeEvent("d2", "ac-1", "tk-2"),
		makeEvent("d1", "ac-2", "tk-3"),
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	tx.Commit()

	tx, _ = db.Begin()
	defer tx.Rollback()
	result, err := GetEventsSince(tx, 0, 100, "d1")
	if err != nil {
		t.Fatalf("get events: %v", err)
	}

	if len(result.Events) != 1 {
		t.Fatalf("events: got %d, want 1 (own device excluded)", len(result.Events))
	}
	if result.Events[0].DeviceID != "d2" {
		t.Errorf("event device: got %s, want d2", result.Events[0].DeviceID)
	}
}

func TestGetEventsSince_Pagination(t *testing.T) {
	db := setupEngineDB(t)

	tx, _ := db.Begin()
	var events []Event
	for i := 0; i < 5; i++ {
		events = append(events, makeEvent("d1", string(rune('a'+i)), "tk-1"))
	}
	if _, err := InsertServerEvents(tx, events); err != nil {
		t.Fatalf("insert: %v", err)
	}
	tx.Commit()

	tx, _ = db.Begin()
	defer tx.Rollback()

	page1, err := GetEventsSince(tx, 0, 2, "")
	if err != nil {
		t.Fatalf("page1: %v", err)
	}
	if len(page1.Events) != 2 || !page1.HasMore {
		t.Fatalf("page1: got %d events, has_more=%v", len(page1.Events), page1.HasMore)
	}

	page2, err := GetEventsSince(tx, page1.LastServerSeq, 100, "")
	if err != nil {
		t.Fatalf("page2: %v", err)
	}
	if len(page2.Events) != 3 || page2.HasMore {
		t.Fatalf("page2: got %d events, has_more=%v", len(page2.Events), page2.HasMore)
	}
}
