package syncclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/marcus/kanban/internal/api"
)

// startSyncServer brings up a real sync server over httptest.
func startSyncServer(t *testing.T) *httptest.Server {
	t.Helper()

	dir := t.TempDir()
	cfg := &api.Config{
		ListenAddr:      ":0",
		ServerDBPath:    dir + "/server.db",
		BoardDataDir:    dir + "/boards",
		ShutdownTimeout: 5 * time.Second,
		AllowSignup:     true,
		BaseURL:         "http://sync.test",
		WSSecret:        []byte("test-secret"),
	}

	srv, err := api.NewServer(cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go srv.RunHub(ctx)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		cancel()
		sctx, scancel := context.WithTimeout(context.Background(), time.Second)
		defer scancel()
		srv.Shutdown(sctx)
	})
	return ts
}

// login runs the full device flow against the server and returns an API key.
func login(t *testing.T, ts *httptest.Server, email string) string {
	t.Helper()

	c := New(ts.URL, "", "")
	start, err := c.LoginStart(email)
	if err != nil {
		t.Fatalf("login start: %v", err)
	}

	// The browser step: submit the user code.
	resp, err := http.PostForm(ts.URL+"/auth/verify", url.Values{"user_code": {start.UserCode}})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verify status: %d", resp.StatusCode)
	}

	poll, err := c.LoginPoll(start.DeviceCode)
	if err != nil {
		t.Fatalf("login poll: %v", err)
	}
	if poll.Status != "complete" || poll.APIKey == nil {
		t.Fatalf("poll result: %+v", poll)
	}
	return *poll.APIKey
}

func makeEvent(id, entityID, title string) EventInput {
	raw, _ := json.Marshal(map[string]any{
		"schema_version": 1,
		"new_data":       map[string]any{"id": entityID, "title": title},
	})
	return EventInput{
		ClientActionID:  id,
		ActionType:      "task_create",
		EntityType:      "tasks",
		EntityID:        entityID,
		Payload:         raw,
		ClientTimestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

func TestLoginFlow(t *testing.T) {
	ts := startSyncServer(t)
	key := login(t, ts, "client@example.com")

	if !strings.HasPrefix(key, "kb_live_") {
		t.Errorf("api key prefix: got %q", key)
	}

	c := New(ts.URL, key, "dev-1")
	if _, err := c.HealthCheck(); err != nil {
		t.Errorf("health: %v", err)
	}
	boards, err := c.ListBoards()
	if err != nil {
		t.Fatalf("list boards: %v", err)
	}
	if len(boards) != 0 {
		t.Errorf("fresh account boards: got %d", len(boards))
	}
}

func TestPushRegistersBoardOnFirstSync(t *testing.T) {
	ts := startSyncServer(t)
	key := login(t, ts, "push@example.com")
	c := New(ts.URL, key, "dev-a")

	req := &PushRequest{
		DeviceID:  "dev-a",
		SessionID: "sess-1",
		Events:    []EventInput{makeEvent("a1", "t1", "First")},
	}

	// The board has never been registered; a plain push is refused.
	if _, err := c.Push("bd-new", req); err == nil {
		t.Fatal("push to unregistered board should fail")
	}

	// PushWithRegister registers under the local id and retries once.
	resp, err := c.PushWithRegister("bd-new", "My Board", req)
	if err != nil {
		t.Fatalf("push with register: %v", err)
	}
	if resp.Accepted != 1 {
		t.Fatalf("accepted: got %d", resp.Accepted)
	}

	board, err := c.GetBoard("bd-new")
	if err != nil {
		t.Fatalf("get board: %v", err)
	}
	if board.Title != "My Board" {
		t.Errorf("board title: got %q", board.Title)
	}
}

func TestPullExcludesOwnDevice(t *testing.T) {
	ts := startSyncServer(t)
	key := login(t, ts, "pull@example.com")

	devA := New(ts.URL, key, "dev-a")
	devB := New(ts.URL, key, "dev-b")

	req := &PushRequest{
		DeviceID:  "dev-a",
		SessionID: "sess-1",
		Events: []EventInput{
			makeEvent("a1", "t1", "First"),
			makeEvent("a2", "t2", "Second"),
		},
	}
	if _, err := devA.PushWithRegister("bd-pull", "Pull", req); err != nil {
		t.Fatalf("push: %v", err)
	}

	got, err := devB.Pull("bd-pull", 0, 100)
	if err != nil {
		t.Fatalf("pull from dev-b: %v", err)
	}
	if len(got.Events) != 2 {
		t.Fatalf("dev-b events: got %d", len(got.Events))
	}

	own, err := devA.Pull("bd-pull", 0, 100)
	if err != nil {
		t.Fatalf("pull from dev-a: %v", err)
	}
	if len(own.Events) != 0 {
		t.Errorf("a device must not pull its own events back, got %d", len(own.Events))
	}

	status, err := devB.SyncStatus("bd-pull")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.EventCount != 2 {
		t.Errorf("event count: got %d", status.EventCount)
	}
	if status.DeviceSeq == nil || *status.DeviceSeq != got.LastServerSeq {
		t.Errorf("dev-b cursor: %+v", status)
	}
}

func TestSentinelErrors(t *testing.T) {
	ts := startSyncServer(t)
	key := login(t, ts, "errs@example.com")

	bad := New(ts.URL, "kb_live_wrong", "dev-x")
	if _, err := bad.ListBoards(); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("bad key: got %v, want ErrUnauthorized", err)
	}

	c := New(ts.URL, key, "dev-x")
	if _, err := c.GetBoard("bd-nope"); !errors.Is(err, ErrForbidden) {
		t.Errorf("unknown board: got %v, want ErrForbidden", err)
	}
}

func TestSubscribeDeliversRemoteEvents(t *testing.T) {
	ts := startSyncServer(t)
	key := login(t, ts, "live@example.com")

	devA := New(ts.URL, key, "dev-a")
	devB := New(ts.URL, key, "dev-b")

	if _, err := devA.PushWithRegister("bd-live", "Live", &PushRequest{
		DeviceID:  "dev-a",
		SessionID: "sess-1",
		Events:    []EventInput{makeEvent("seed", "t0", "Seed")},
	}); err != nil {
		t.Fatalf("seed push: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	subB, err := devB.Subscribe(ctx, "bd-live", 1)
	if err != nil {
		t.Fatalf("dev-b subscribe: %v", err)
	}
	defer subB.Close()

	subA, err := devA.Subscribe(ctx, "bd-live", 1)
	if err != nil {
		t.Fatalf("dev-a subscribe: %v", err)
	}
	defer subA.Close()

	if _, err := devA.Push("bd-live", &PushRequest{
		DeviceID:  "dev-a",
		SessionID: "sess-1",
		Events:    []EventInput{makeEvent("a9", "t9", "Realtime")},
	}); err != nil {
		t.Fatalf("push: %v", err)
	}

	select {
	case frame := <-subB.Frames:
		if frame.EntityID != "t9" || frame.DeviceID != "dev-a" {
			t.Errorf("frame: %+v", frame)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("dev-b received no frame")
	}

	// The origin device's subscription suppresses its own echo but still
	// advances its cursor.
	select {
	case frame := <-subA.Frames:
		t.Errorf("dev-a should not receive its own event, got %+v", frame)
	case <-time.After(300 * time.Millisecond):
	}
	if subA.LastSeq() < 2 {
		t.Errorf("origin cursor should advance past acked seq, got %d", subA.LastSeq())
	}
}
