package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 1024 * 1024 // 1MB

	sendBuffer = 64
)

// Client is one connected websocket peer, pinned to a single board.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	boardID  string
	deviceID string
}

// NewClient wraps an upgraded connection. Call ReadPump and WritePump
// after registering with the hub.
func NewClient(hub *Hub, conn *websocket.Conn, boardID, deviceID string) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		boardID:  boardID,
		deviceID: deviceID,
	}
}

// ReadPump pumps messages from the websocket connection to the hub.
// Inbound traffic is limited to ping envelopes; board mutations go
// through the HTTP push endpoint, not the socket.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("websocket read", "board", c.boardID, "device", c.deviceID, "err", err)
			}
			break
		}

		var env Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			slog.Warn("websocket bad envelope", "device", c.deviceID, "err", err)
			continue
		}

		if env.Type == TypePing {
			pong, err := json.Marshal(Envelope{Type: TypePong})
			if err == nil {
				select {
				case c.send <- pong:
				default:
				}
			}
			continue
		}
	}
}

// WritePump pumps messages from the hub to the websocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Drain queued messages into the same websocket frame
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte("\n"))
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

type broadcastMsg struct {
	boardID string
	data    []byte
}

// Hub maintains the set of connected clients grouped by board and fans
// event envelopes out to each board's room.
type Hub struct {
	rooms      map[string]map[*Client]bool
	broadcast  chan broadcastMsg
	register   chan *Client
	unregister chan *Client
}

// NewHub creates a hub. Call Run in its own goroutine.
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		broadcast:  make(chan broadcastMsg, 16),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Register adds a client to its board's room.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from its board's room.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// BroadcastEvents pushes newly accepted events to every client watching
// the board. Clients filter their own echoes; the hub sends to everyone
// so reconnecting devices still observe their acked sequence numbers.
func (h *Hub) BroadcastEvents(boardID, originDevice string, frames []EventFrame) {
	if len(frames) == 0 {
		return
	}
	env := Envelope{
		Type:      TypeEvents,
		BoardID:   boardID,
		DeviceID:  originDevice,
		ServerSeq: frames[len(frames)-1].ServerSeq,
		Events:    frames,
	}
	data, err := json.Marshal(env)
	if err != nil {
		slog.Error("marshal broadcast envelope", "board", boardID, "err", err)
		return
	}
	h.broadcast <- broadcastMsg{boardID: boardID, data: data}
}

// Run is the hub's main loop. It exits when ctx is cancelled, closing
// every client's send channel.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for _, room := range h.rooms {
				for client := range room {
					close(client.send)
				}
			}
			return
		case client := <-h.register:
			room := h.rooms[client.boardID]
			if room == nil {
				room = make(map[*Client]bool)
				h.rooms[client.boardID] = room
			}
			room[client] = true
			slog.Debug("client connected", "board", client.boardID, "device", client.deviceID)
		case client := <-h.unregister:
			if room, ok := h.rooms[client.boardID]; ok {
				if _, ok := room[client]; ok {
					delete(room, client)
					close(client.send)
					if len(room) == 0 {
						delete(h.rooms, client.boardID)
					}
					slog.Debug("client disconnected", "board", client.boardID, "device", client.deviceID)
				}
			}
		case msg := <-h.broadcast:
			for client := range h.rooms[msg.boardID] {
				select {
				case client.send <- msg.data:
				default:
					// Send buffer full, assume the peer is gone
					slog.Warn("client send buffer full, dropping", "board", client.boardID, "device", client.deviceID)
					close(client.send)
					delete(h.rooms[msg.boardID], client)
				}
			}
		}
	}
}
