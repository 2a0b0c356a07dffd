package serverdb

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *ServerDB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "server.db"))
	if err != nil {
		t.Fatalf("open server db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenRunsSchemaAndMigrations(t *testing.T) {
	db := openTestDB(t)
	if err := db.Ping(); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if v := db.getSchemaVersion(); v != ServerSchemaVersion {
		t.Errorf("schema version: got %d, want %d", v, ServerSchemaVersion)
	}
}

func TestCreateAndLookupUser(t *testing.T) {
	db := openTestDB(t)

	u, err := db.CreateUser("  Alice@Example.COM ")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if u.Email != "alice@example.com" {
		t.Errorf("email normalization: got %q", u.Email)
	}
	if !strings.HasPrefix(u.ID, "u_") {
		t.Errorf("user id prefix: got %q", u.ID)
	}

	got, err := db.GetUserByEmail("ALICE@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if got == nil || got.ID != u.ID {
		t.Errorf("lookup by email: got %+v", got)
	}

	missing, err := db.GetUserByID("u_nope")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if missing != nil {
		t.Error("missing user should be nil, not an error")
	}
}

func TestAPIKeyLifecycle(t *testing.T) {
	db := openTestDB(t)
	u, _ := db.CreateUser("key@example.com")

	plaintext, ak, err := db.GenerateAPIKey(u.ID, "laptop", "", nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	if !strings.HasPrefix(plaintext, "kb_live_") {
		t.Errorf("key prefix: got %q", plaintext)
	}
	if ak.Scopes != "sync" {
		t.Errorf("default scopes: got %q", ak.Scopes)
	}

	gotKey, gotUser, err := db.VerifyAPIKey(plaintext)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if gotKey == nil || gotKey.ID != ak.ID || gotUser.ID != u.ID {
		t.Fatalf("verify mismatch: key=%+v user=%+v", gotKey, gotUser)
	}

	badKey, badUser, err := db.VerifyAPIKey("kb_live_definitelywrong")
	if err != nil {
		t.Fatalf("verify wrong key: %v", err)
	}
	if badKey != nil || badUser != nil {
		t.Error("wrong key should verify to nil, not an error")
	}

	if err := db.RevokeAPIKey(ak.ID, u.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	gotKey, _, _ = db.VerifyAPIKey(plaintext)
	if gotKey != nil {
		t.Error("revoked key should no longer verify")
	}
}

func TestExpiredAPIKeyRejected(t *testing.T) {
	db := openTestDB(t)
	u, _ := db.CreateUser("expired@example.com")

	past := time.Now().UTC().Add(-time.Hour)
	plaintext, _, err := db.GenerateAPIKey(u.ID, "old", "sync", &past)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	ak, usr, err := db.VerifyAPIKey(plaintext)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ak != nil || usr != nil {
		t.Error("expired key should not verify")
	}
}

func TestBoardRegistryAndMembership(t *testing.T) {
	db := openTestDB(t)
	owner, _ := db.CreateUser("owner@example.com")
	writer, _ := db.CreateUser("writer@example.com")

	b, err := db.CreateBoard("bd-local1", "Roadmap", owner.ID)
	if err != nil {
		t.Fatalf("create board: %v", err)
	}
	if b.ID != "bd-local1" {
		t.Errorf("board should keep client-supplied id, got %q", b.ID)
	}

	// Creation grants ownership.
	if err := db.CanDeleteBoard(b.ID, owner.ID); err != nil {
		t.Errorf("owner should manage board: %v", err)
	}
	if err := db.CanPushEvents(b.ID, writer.ID); err == nil {
		t.Error("non-member should not push")
	}

	if _, err := db.AddMember(b.ID, writer.ID, RoleWriter, owner.ID); err != nil {
		t.Fatalf("add member: %v", err)
	}
	if err := db.CanPushEvents(b.ID, writer.ID); err != nil {
		t.Errorf("writer should push: %v", err)
	}
	if err := db.CanManageMembers(b.ID, writer.ID); err == nil {
		t.Error("writer must not manage members")
	}

	boards, err := db.ListBoardsForUser(writer.ID)
	if err != nil {
		t.Fatalf("list boards: %v", err)
	}
	if len(boards) != 1 || boards[0].ID != b.ID {
		t.Errorf("writer's boards: got %+v", boards)
	}

	// The last owner cannot be removed.
	if err := db.RemoveMember(b.ID, owner.ID); err == nil {
		t.Error("removing the last owner should fail")
	}

	if err := db.SoftDeleteBoard(b.ID); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	got, _ := db.GetBoard(b.ID, false)
	if got != nil {
		t.Error("soft-deleted board should be hidden by default")
	}
	got, _ = db.GetBoard(b.ID, true)
	if got == nil || got.DeletedAt == nil {
		t.Error("soft-deleted board should be visible with includeSoftDeleted")
	}
}

func TestSyncCursorUpsert(t *testing.T) {
	db := openTestDB(t)
	u, _ := db.CreateUser("cursor@example.com")
	b, _ := db.CreateBoard("", "Cursors", u.ID)

	if c, _ := db.GetSyncCursor(b.ID, "dev1"); c != nil {
		t.Fatal("cursor should start absent")
	}

	if err := db.UpsertSyncCursor(b.ID, "dev1", 10); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := db.UpsertSyncCursor(b.ID, "dev1", 25); err != nil {
		t.Fatalf("upsert again: %v", err)
	}

	c, err := db.GetSyncCursor(b.ID, "dev1")
	if err != nil {
		t.Fatalf("get cursor: %v", err)
	}
	if c.LastServerSeq != 25 {
		t.Errorf("cursor seq: got %d, want 25", c.LastServerSeq)
	}
	if c.LastSyncAt == nil {
		t.Error("last sync timestamp should be set")
	}
}
