package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// startHubServer runs a hub and an httptest server whose handler
// registers each connection under the board/device in the query string.
func startHubServer(t *testing.T) (*Hub, string) {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := NewClient(hub, conn, r.URL.Query().Get("board"), r.URL.Query().Get("device"))
		hub.Register(client)
		go client.WritePump()
		go client.ReadPump()
	}))
	t.Cleanup(srv.Close)

	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, baseURL, boardID, deviceID string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(baseURL+"?board="+boardID+"&device="+deviceID, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read message: %v", err)
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	return env
}

func TestHub_BroadcastReachesBoardRoom(t *testing.T) {
	hub, url := startHubServer(t)

	conn := dial(t, url, "bd-1", "d1")
	time.Sleep(50 * time.Millisecond) // let registration land

	hub.BroadcastEvents("bd-1", "d2", []EventFrame{
		{ServerSeq: 7, DeviceID: "d2", ActionType: "update", EntityType: "tasks", EntityID: "tk-1",
			Payload: json.RawMessage(`{"title":"hello"}`)},
	})

	env := readEnvelope(t, conn)
	if env.Type != TypeEvents {
		t.Fatalf("envelope type: got %q, want %q", env.Type, TypeEvents)
	}
	if env.BoardID != "bd-1" || env.ServerSeq != 7 {
		t.Errorf("envelope: board=%s seq=%d, want bd-1/7", env.BoardID, env.ServerSeq)
	}
	if len(env.Events) != 1 || env.Events[0].EntityID != "tk-1" {
		t.Errorf("events: got %+v", env.Events)
	}
}

func TestHub_RoomsAreIsolated(t *testing.T) {
	hub, url := startHubServer(t)

	connA := dial(t, url, "bd-a", "d1")
	connB := dial(t, url, "bd-b", "d2")
	time.Sleep(50 * time.Millisecond)

	hub.BroadcastEvents("bd-a", "d3", []EventFrame{
		{ServerSeq: 1, DeviceID: "d3", ActionType: "create", EntityType: "tasks", EntityID: "tk-1",
			Payload: json.RawMessage(`{}`)},
	})

	env := readEnvelope(t, connA)
	if env.BoardID != "bd-a" {
		t.Errorf("board A envelope: got %q", env.BoardID)
	}

	connB.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, _, err := connB.ReadMessage(); err == nil {
		t.Error("board B client should not receive board A events")
	}
}

func TestHub_PingGetsPong(t *testing.T) {
	_, url := startHubServer(t)

	conn := dial(t, url, "bd-1", "d1")
	time.Sleep(50 * time.Millisecond)

	ping, _ := json.Marshal(Envelope{Type: TypePing})
	if err := conn.WriteMessage(websocket.TextMessage, ping); err != nil {
		t.Fatalf("write ping: %v", err)
	}

	env := readEnvelope(t, conn)
	if env.Type != TypePong {
		t.Fatalf("reply type: got %q, want %q", env.Type, TypePong)
	}
}

func TestHub_BroadcastToEmptyRoomIsNoOp(t *testing.T) {
	hub, _ := startHubServer(t)

	// Must not block or panic with nobody listening.
	hub.BroadcastEvents("bd-empty", "d1", []EventFrame{
		{ServerSeq: 1, DeviceID: "d1", ActionType: "create", EntityType: "tasks", EntityID: "tk-1",
			Payload: json.RawMessage(`{}`)},
	})
	hub.BroadcastEvents("bd-empty", "d1", nil)
}
