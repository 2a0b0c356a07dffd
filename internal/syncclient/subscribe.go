package syncclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/marcus/kanban/internal/realtime"
)

const (
	subscribeReadWait  = 90 * time.Second
	subscribeWriteWait = 10 * time.Second
)

// Subscription is a live realtime feed for one board. A single goroutine
// owns the connection; filtered frames arrive on Frames until the
// subscription is closed or the connection drops.
type Subscription struct {
	// Frames delivers events that survived the suppression pipeline.
	// Closed when the subscription ends.
	Frames <-chan realtime.EventFrame

	sub    *realtime.Subscriber
	conn   *websocket.Conn
	cancel context.CancelFunc
	done   chan struct{}
}

// LastSeq returns the highest server sequence observed, including
// suppressed frames. Persist it so a reconnect resumes from here.
func (s *Subscription) LastSeq() int64 {
	return s.sub.LastSeq()
}

// Close tears down the subscription and waits for the reader to exit.
func (s *Subscription) Close() {
	s.cancel()
	s.conn.Close()
	<-s.done
}

// Subscribe mints a connect token, dials the board's websocket, and
// starts the reader goroutine. afterSeq seeds the staleness cursor,
// typically from the board's persisted sync state.
func (c *Client) Subscribe(ctx context.Context, boardID string, afterSeq int64) (*Subscription, error) {
	tok, err := c.MintWSToken(boardID)
	if err != nil {
		return nil, fmt.Errorf("mint ws token: %w", err)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.WSURL(boardID, tok.Token), nil)
	if err != nil {
		return nil, fmt.Errorf("dial board websocket: %w", err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	frames := make(chan realtime.EventFrame, 64)
	s := &Subscription{
		Frames: frames,
		sub:    realtime.NewSubscriber(c.DeviceID, afterSeq),
		conn:   conn,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	conn.SetReadDeadline(time.Now().Add(subscribeReadWait))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(subscribeReadWait))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(subscribeWriteWait))
	})

	go func() {
		defer close(s.done)
		defer close(frames)
		defer conn.Close()

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if subCtx.Err() == nil {
					slog.Debug("subscription closed", "board", boardID, "err", err)
				}
				return
			}
			conn.SetReadDeadline(time.Now().Add(subscribeReadWait))

			var env realtime.Envelope
			if err := json.Unmarshal(msg, &env); err != nil {
				slog.Warn("bad realtime envelope", "board", boardID, "err", err)
				continue
			}

			for _, frame := range s.sub.Filter(env) {
				select {
				case frames <- frame:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return s, nil
}
