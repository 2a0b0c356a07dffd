package sync

import (
	"database/sql"
	"encoding/json"
	"testing"
	"time"
)

const applyTestSchema = `
CREATE TABLE tasks (
	id TEXT PRIMARY KEY,
	board_id TEXT NOT NULL DEFAULT 'bd-1',
	column_id TEXT NOT NULL DEFAULT 'cl-1',
	title TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	priority TEXT NOT NULL DEFAULT 'medium',
	position INTEGER NOT NULL DEFAULT 1,
	completed INTEGER NOT NULL DEFAULT 0,
	due_at DATETIME,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	deleted_at DATETIME
);
CREATE TABLE subtasks (
	id TEXT PRIMARY KEY,
	task_id TEXT NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	completed INTEGER NOT NULL DEFAULT 0,
	position INTEGER NOT NULL DEFAULT 1,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE task_labels (
	task_id TEXT NOT NULL,
	label_id TEXT NOT NULL,
	PRIMARY KEY (task_id, label_id)
);
`

func setupApplyDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if _, err := db.Exec(applyTestSchema); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func applyOne(t *testing.T, db *sql.DB, ev Event) (bool, bool) {
	t.Helper()
	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	applied, overwritten, err := ApplyEvent(tx, ev, BoardEntityValidator)
	if err != nil {
		tx.Rollback()
		t.Fatalf("apply event: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	return applied, overwritten
}

func taskPayload(title string, position int, ts time.Time) []byte {
	data, _ := json.Marshal(map[string]any{
		"board_id":   "bd-1",
		"column_id":  "cl-1",
		"title":      title,
		"position":   position,
		"updated_at": ts.Format(time.RFC3339),
	})
	return data
}

func TestApplyEvent_CreateAndUpdate(t *testing.T) {
	db := setupApplyDB(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	applied, overwritten := applyOne(t, db, Event{
		ActionType: "create", EntityType: "tasks", EntityID: "tk-1",
		Payload: taskPayload("first", 1, base), ClientTimestamp: base,
	})
	if !applied || overwritten {
		t.Fatalf("create: applied=%v overwritten=%v, want true/false", applied, overwritten)
	}

	applied, overwritten = applyOne(t, db, Event{
		ActionType: "update", EntityType: "tasks", EntityID: "tk-1",
		Payload: taskPayload("renamed", 2, base.Add(time.Minute)), ClientTimestamp: base.Add(time.Minute),
	})
	if !applied || !overwritten {
		t.Fatalf("update: applied=%v overwritten=%v, want true/true", applied, overwritten)
	}

	var title string
	var position int
	if err := db.QueryRow(`SELECT title, position FROM tasks WHERE id = 'tk-1'`).Scan(&title, &position); err != nil {
		t.Fatalf("read back: %v", err)
	}
	if title != "renamed" || position != 2 {
		t.Errorf("row: title=%q position=%d, want renamed/2", title, position)
	}
}

func TestApplyEvent_StalenessGate(t *testing.T) {
	db := setupApplyDB(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	applyOne(t, db, Event{
		ActionType: "create", EntityType: "tasks", EntityID: "tk-1",
		Payload: taskPayload("current", 1, base), ClientTimestamp: base,
	})

	// An older event must not clobber the newer local row.
	applied, _ := applyOne(t, db, Event{
		ActionType: "update", EntityType: "tasks", EntityID: "tk-1",
		Payload: taskPayload("stale", 9, base.Add(-time.Hour)), ClientTimestamp: base.Add(-time.Hour),
	})
	if applied {
		t.Fatal("stale event should be suppressed")
	}

	var title string
	if err := db.QueryRow(`SELECT title FROM tasks WHERE id = 'tk-1'`).Scan(&title); err != nil {
		t.Fatalf("read back: %v", err)
	}
	if title != "current" {
		t.Errorf("title: got %q, want current", title)
	}
}

func TestApplyEvent_SoftDeleteAndRestore(t *testing.T) {
	db := setupApplyDB(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	applyOne(t, db, Event{
		ActionType: "create", EntityType: "tasks", EntityID: "tk-1",
		Payload: taskPayload("doomed", 1, base), ClientTimestamp: base,
	})

	applied, _ := applyOne(t, db, Event{
		ActionType: "soft_delete", EntityType: "tasks", EntityID: "tk-1",
		ClientTimestamp: base.Add(time.Minute),
	})
	if !applied {
		t.Fatal("soft_delete should apply")
	}

	var deletedAt sql.NullString
	if err := db.QueryRow(`SELECT deleted_at FROM tasks WHERE id = 'tk-1'`).Scan(&deletedAt); err != nil {
		t.Fatalf("read back: %v", err)
	}
	if !deletedAt.Valid {
		t.Fatal("deleted_at should be set after soft_delete")
	}

	restorePayload, _ := json.Marshal(map[string]any{
		"board_id": "bd-1", "column_id": "cl-1", "title": "doomed",
		"position": 1, "deleted_at": nil,
	})
	applied, _ = applyOne(t, db, Event{
		ActionType: "restore", EntityType: "tasks", EntityID: "tk-1",
		Payload: restorePayload, ClientTimestamp: base.Add(2 * time.Minute),
	})
	if !applied {
		t.Fatal("restore should apply")
	}
	if err := db.QueryRow(`SELECT deleted_at FROM tasks WHERE id = 'tk-1'`).Scan(&deletedAt); err != nil {
		t.Fatalf("read back: %v", err)
	}
	if deletedAt.Valid {
		t.Errorf("deleted_at should be cleared after restore, got %q", deletedAt.String)
	}
}

func TestApplyEvent_HardDelete(t *testing.T) {
	db := setupApplyDB(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	applyOne(t, db, Event{
		ActionType: "create", EntityType: "tasks", EntityID: "tk-1",
		Payload: taskPayload("gone", 1, base), ClientTimestamp: base,
	})
	applyOne(t, db, Event{
		ActionType: "delete", EntityType: "tasks", EntityID: "tk-1",
		ClientTimestamp: base.Add(time.Minute),
	})

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM tasks WHERE id = 'tk-1'`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Errorf("row count after delete: got %d, want 0", n)
	}
}

func TestApplyEvent_TaskLabels(t *testing.T) {
	db := setupApplyDB(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	applyOne(t, db, Event{
		ActionType: "create", EntityType: "task_labels", EntityID: "tk-1:lb-1",
		ClientTimestamp: base,
	})
	// Attach is idempotent.
	applyOne(t, db, Event{
		ActionType: "create", EntityType: "task_labels", EntityID: "tk-1:lb-1",
		ClientTimestamp: base.Add(time.Second),
	})

	var n int
	db.QueryRow(`SELECT COUNT(*) FROM task_labels`).Scan(&n)
	if n != 1 {
		t.Fatalf("join rows after double attach: got %d, want 1", n)
	}

	applyOne(t, db, Event{
		ActionType: "delete", EntityType: "task_labels", EntityID: "tk-1:lb-1",
		ClientTimestamp: base.Add(2 * time.Second),
	})
	db.QueryRow(`SELECT COUNT(*) FROM task_labels`).Scan(&n)
	if n != 0 {
		t.Errorf("join rows after detach: got %d, want 0", n)
	}
}

func TestApplyEvent_SubtaskListReplace(t *testing.T) {
	db := setupApplyDB(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first, _ := json.Marshal([]map[string]any{
		{"id": "st-1", "title": "one", "completed": 0, "position": 1},
		{"id": "st-2", "title": "two", "completed": 0, "position": 2},
	})
	applyOne(t, db, Event{
		ActionType: "update", EntityType: "subtasks", EntityID: "tk-1",
		Payload: first, ClientTimestamp: base,
	})

	second, _ := json.Marshal([]map[string]any{
		{"id": "st-2", "title": "two", "completed": 1, "position": 1},
	})
	applyOne(t, db, Event{
		ActionType: "update", EntityType: "subtasks", EntityID: "tk-1",
		Payload: second, ClientTimestamp: base.Add(time.Minute),
	})

	rows, err := db.Query(`SELECT id, completed FROM subtasks WHERE task_id = 'tk-1' ORDER BY position`)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		var completed int
		rows.Scan(&id, &completed)
		ids = append(ids, id)
		if id == "st-2" && completed != 1 {
			t.Error("st-2 should be completed")
		}
	}
	if len(ids) != 1 || ids[0] != "st-2" {
		t.Errorf("subtasks after replace: got %v, want [st-2]", ids)
	}
}

func TestApplyRemoteEvents_SkipsOwnDevice(t *testing.T) {
	db := setupApplyDB(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	wrap := func(inner []byte) []byte {
		data, _ := json.Marshal(payloadWrapper{SchemaVersion: 1, NewData: inner, PreviousData: json.RawMessage("{}")})
		return data
	}

	events := []Event{
		{ServerSeq: 1, DeviceID: "me", ActionType: "create", EntityType: "tasks", EntityID: "tk-mine",
			Payload: wrap(taskPayload("mine", 1, base)), ClientTimestamp: base},
		{ServerSeq: 2, DeviceID: "other", ActionType: "create", EntityType: "tasks", EntityID: "tk-theirs",
			Payload: wrap(taskPayload("theirs", 1, base)), ClientTimestamp: base},
	}

	tx, _ := db.Begin()
	result, err := ApplyRemoteEvents(tx, events, "me", BoardEntityValidator)
	if err != nil {
		t.Fatalf("apply remote: %v", err)
	}
	tx.Commit()

	if result.Applied != 1 {
		t.Errorf("applied: got %d, want 1", result.Applied)
	}
	if result.LastAppliedSeq != 2 {
		t.Errorf("last applied seq: got %d, want 2", result.LastAppliedSeq)
	}

	var n int
	db.QueryRow(`SELECT COUNT(*) FROM tasks WHERE id = 'tk-mine'`).Scan(&n)
	if n != 0 {
		t.Error("own-device event should not be re-applied locally")
	}
	db.QueryRow(`SELECT COUNT(*) FROM tasks WHERE id = 'tk-theirs'`).Scan(&n)
	if n != 1 {
		t.Error("other-device event should be applied")
	}
}

func TestMapActionType(t *testing.T) {
	cases := map[string]string{
		"task_create":  "create",
		"label_attach": "create",
		"task_update":  "update",
		"task_move":    "update",
		"task_delete":  "soft_delete",
		"task_restore": "restore",
		"task_purge":   "delete",
		"label_detach": "delete",
		"board_delete": "delete",
	}
	for action, want := range cases {
		if got := mapActionType(action); got != want {
			t.Errorf("mapActionType(%q) = %q, want %q", action, got, want)
		}
	}
}
