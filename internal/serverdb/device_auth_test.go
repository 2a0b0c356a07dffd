package serverdb

import (
	"testing"
	"time"
)

func TestDeviceAuthFlow(t *testing.T) {
	db := openTestDB(t)

	ar, err := db.CreateAuthRequest("login@example.com")
	if err != nil {
		t.Fatalf("create auth request: %v", err)
	}
	if len(ar.UserCode) != 6 {
		t.Errorf("user code length: got %d, want 6", len(ar.UserCode))
	}
	if len(ar.DeviceCode) != 40 {
		t.Errorf("device code length: got %d, want 40", len(ar.DeviceCode))
	}
	if ar.Status != AuthStatusPending {
		t.Errorf("initial status: got %q", ar.Status)
	}

	// Polling before verification yields the pending request.
	got, err := db.GetAuthRequestByDeviceCode(ar.DeviceCode)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if got.Status != AuthStatusPending {
		t.Errorf("status while pending: got %q", got.Status)
	}

	// The user enters the code in a browser; verification binds a user.
	u, _ := db.CreateUser("login@example.com")
	if err := db.VerifyAuthRequest(ar.UserCode, u.ID); err != nil {
		t.Fatalf("verify: %v", err)
	}

	// Double verification is rejected.
	if err := db.VerifyAuthRequest(ar.UserCode, u.ID); err == nil {
		t.Error("second verification should fail")
	}

	// The device completes the flow exactly once.
	done, err := db.CompleteAuthRequest(ar.DeviceCode)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done == nil || done.Status != AuthStatusUsed {
		t.Fatalf("completed request: got %+v", done)
	}
	if done.UserID == nil || *done.UserID != u.ID {
		t.Errorf("bound user: got %v, want %s", done.UserID, u.ID)
	}

	again, err := db.CompleteAuthRequest(ar.DeviceCode)
	if err != nil {
		t.Fatalf("complete again: %v", err)
	}
	if again != nil {
		t.Error("a used request must not complete twice")
	}
}

func TestCleanupExpiredAuthRequests(t *testing.T) {
	db := openTestDB(t)

	ar, err := db.CreateAuthRequest("stale@example.com")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Force the request into the past.
	if _, err := db.conn.Exec(
		`UPDATE auth_requests SET expires_at = ? WHERE id = ?`,
		time.Now().UTC().Add(-time.Minute), ar.ID,
	); err != nil {
		t.Fatalf("backdate: %v", err)
	}

	n, err := db.CleanupExpiredAuthRequests()
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if n != 1 {
		t.Errorf("expired count: got %d, want 1", n)
	}

	got, _ := db.GetAuthRequestByDeviceCode(ar.DeviceCode)
	if got.Status != AuthStatusExpired {
		t.Errorf("status after cleanup: got %q", got.Status)
	}

	if err := db.VerifyAuthRequest(ar.UserCode, "u_whatever"); err == nil {
		t.Error("expired request must not verify")
	}
}
