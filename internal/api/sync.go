package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/marcus/kanban/internal/realtime"
	kbsync "github.com/marcus/kanban/internal/sync"
)

const (
	maxPushBatch = 1000
	maxPullLimit = 10000
	defPullLimit = 1000
)

// PushRequest is the JSON body for POST /v1/boards/{id}/sync/push.
type PushRequest struct {
	DeviceID  string       `json:"device_id"`
	SessionID string       `json:"session_id"`
	Events    []EventInput `json:"events"`
}

// EventInput represents a single event in a push request.
type EventInput struct {
	ClientActionID  string          `json:"client_action_id"`
	ActionType      string          `json:"action_type"`
	EntityType      string          `json:"entity_type"`
	EntityID        string          `json:"entity_id"`
	Payload         json.RawMessage `json:"payload"`
	ClientTimestamp string          `json:"client_timestamp"`
}

// PushResponse is the JSON response for a push request.
type PushResponse struct {
	Accepted int              `json:"accepted"`
	Acks     []AckResponse    `json:"acks"`
	Rejected []RejectResponse `json:"rejected,omitempty"`
}

// AckResponse is a single acknowledged event.
type AckResponse struct {
	ClientActionID string `json:"client_action_id"`
	ServerSeq      int64  `json:"server_seq"`
}

// RejectResponse is a single rejected event.
type RejectResponse struct {
	ClientActionID string `json:"client_action_id"`
	Reason         string `json:"reason"`
	ServerSeq      int64  `json:"server_seq,omitempty"`
}

// PullResponse is the JSON response for a pull request.
type PullResponse struct {
	Events        []PullEvent `json:"events"`
	LastServerSeq int64       `json:"last_server_seq"`
	HasMore       bool        `json:"has_more"`
}

// PullEvent is a single event in a pull response.
type PullEvent struct {
	ServerSeq       int64           `json:"server_seq"`
	DeviceID        string          `json:"device_id"`
	SessionID       string          `json:"session_id"`
	ClientActionID  string          `json:"client_action_id"`
	ActionType      string          `json:"action_type"`
	EntityType      string          `json:"entity_type"`
	EntityID        string          `json:"entity_id"`
	Payload         json.RawMessage `json:"payload"`
	ClientTimestamp string          `json:"client_timestamp"`
}

// SyncStatusResponse is the JSON response for GET /v1/boards/{id}/sync/status.
type SyncStatusResponse struct {
	EventCount    int64  `json:"event_count"`
	LastServerSeq int64  `json:"last_server_seq"`
	LastEventTime string `json:"last_event_time,omitempty"`
	DeviceSeq     *int64 `json:"device_seq,omitempty"`
}

// boardDB opens the board's event log, writing the error response itself
// when the board has no database.
func (s *Server) boardDB(w http.ResponseWriter, r *http.Request, boardID string) (*sql.DB, bool) {
	db, err := s.pool.Get(boardID)
	if err != nil {
		if errors.Is(err, ErrBoardDBNotFound) {
			writeError(w, http.StatusNotFound, ErrCodeNotFound, "board is not registered for sync")
			return nil, false
		}
		logFor(r.Context()).Error("get board db", "board", boardID, "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to open board database")
		return nil, false
	}
	return db, true
}

// handleSyncPush handles POST /v1/boards/{id}/sync/push.
func (s *Server) handleSyncPush(w http.ResponseWriter, r *http.Request) {
	boardID := r.PathValue("id")

	var req PushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid json body")
		return
	}

	if req.DeviceID == "" {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "device_id is required")
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "session_id is required")
		return
	}
	if len(req.Events) == 0 {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "events array is empty")
		return
	}
	if len(req.Events) > maxPushBatch {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("batch size %d exceeds max %d", len(req.Events), maxPushBatch))
		return
	}

	for _, ev := range req.Events {
		if !kbsync.BoardEntityValidator(ev.EntityType) {
			writeError(w, http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("invalid entity_type: %s", ev.EntityType))
			return
		}
	}

	events := make([]kbsync.Event, len(req.Events))
	for i, ev := range req.Events {
		ts, err := time.Parse(time.RFC3339, ev.ClientTimestamp)
		if err != nil {
			ts, err = time.Parse(time.RFC3339Nano, ev.ClientTimestamp)
			if err != nil {
				writeError(w, http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("invalid timestamp for action %s", ev.ClientActionID))
				return
			}
		}
		events[i] = kbsync.Event{
			ClientActionID:  ev.ClientActionID,
			DeviceID:        req.DeviceID,
			SessionID:       req.SessionID,
			ActionType:      ev.ActionType,
			EntityType:      ev.EntityType,
			EntityID:        ev.EntityID,
			Payload:         ev.Payload,
			ClientTimestamp: ts,
		}
	}

	db, ok := s.boardDB(w, r, boardID)
	if !ok {
		return
	}

	tx, err := db.Begin()
	if err != nil {
		logFor(r.Context()).Error("begin tx", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "database error")
		return
	}
	defer tx.Rollback()

	result, err := kbsync.InsertServerEvents(tx, events)
	if err != nil {
		logFor(r.Context()).Error("insert events", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to insert events")
		return
	}

	if err := tx.Commit(); err != nil {
		logFor(r.Context()).Error("commit tx", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to commit")
		return
	}

	s.broadcastAccepted(boardID, req.DeviceID, events, result.Acks)

	resp := PushResponse{Accepted: result.Accepted}
	for _, a := range result.Acks {
		resp.Acks = append(resp.Acks, AckResponse{
			ClientActionID: a.ClientActionID,
			ServerSeq:      a.ServerSeq,
		})
	}
	for _, rej := range result.Rejected {
		resp.Rejected = append(resp.Rejected, RejectResponse{
			ClientActionID: rej.ClientActionID,
			Reason:         rej.Reason,
			ServerSeq:      rej.ServerSeq,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// broadcastAccepted fans accepted events out to the board's websocket room.
// Every frame carries the origin device id so subscribers can drop their
// own echoes.
func (s *Server) broadcastAccepted(boardID, deviceID string, events []kbsync.Event, acks []kbsync.Ack) {
	if s.hub == nil || len(acks) == 0 {
		return
	}

	byAction := make(map[string]kbsync.Event, len(events))
	for _, ev := range events {
		byAction[ev.ClientActionID] = ev
	}

	frames := make([]realtime.EventFrame, 0, len(acks))
	for _, a := range acks {
		ev, ok := byAction[a.ClientActionID]
		if !ok {
			continue
		}
		frames = append(frames, realtime.EventFrame{
			ServerSeq:       a.ServerSeq,
			DeviceID:        deviceID,
			ActionType:      ev.ActionType,
			EntityType:      ev.EntityType,
			EntityID:        ev.EntityID,
			Payload:         ev.Payload,
			ClientTimestamp: ev.ClientTimestamp,
		})
	}

	s.hub.BroadcastEvents(boardID, deviceID, frames)
}

// handleSyncPull handles GET /v1/boards/{id}/sync/pull.
func (s *Server) handleSyncPull(w http.ResponseWriter, r *http.Request) {
	boardID := r.PathValue("id")

	afterSeq := int64(0)
	if v := r.URL.Query().Get("after_server_seq"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid after_server_seq")
			return
		}
		afterSeq = n
	}

	limit := defPullLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid limit")
			return
		}
		if n > maxPullLimit {
			n = maxPullLimit
		}
		limit = n
	}

	db, ok := s.boardDB(w, r, boardID)
	if !ok {
		return
	}

	tx, err := db.Begin()
	if err != nil {
		logFor(r.Context()).Error("begin tx", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "database error")
		return
	}
	defer tx.Rollback()

	// A device never pulls its own events back.
	deviceID := r.URL.Query().Get("device_id")
	result, err := kbsync.GetEventsSince(tx, afterSeq, limit, deviceID)
	if err != nil {
		logFor(r.Context()).Error("get events", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to query events")
		return
	}

	tx.Rollback() // read-only, just release

	if deviceID != "" && result.LastServerSeq > afterSeq {
		if err := s.store.UpsertSyncCursor(boardID, deviceID, result.LastServerSeq); err != nil {
			logFor(r.Context()).Warn("upsert sync cursor", "err", err)
		}
	}

	resp := PullResponse{
		LastServerSeq: result.LastServerSeq,
		HasMore:       result.HasMore,
		Events:        make([]PullEvent, len(result.Events)),
	}
	for i, ev := range result.Events {
		resp.Events[i] = PullEvent{
			ServerSeq:       ev.ServerSeq,
			DeviceID:        ev.DeviceID,
			SessionID:       ev.SessionID,
			ClientActionID:  ev.ClientActionID,
			ActionType:      ev.ActionType,
			EntityType:      ev.EntityType,
			EntityID:        ev.EntityID,
			Payload:         ev.Payload,
			ClientTimestamp: ev.ClientTimestamp.Format(time.RFC3339Nano),
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleSyncStatus handles GET /v1/boards/{id}/sync/status.
func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	boardID := r.PathValue("id")

	db, ok := s.boardDB(w, r, boardID)
	if !ok {
		return
	}

	var count int64
	var lastSeq int64

	err := db.QueryRow(`SELECT COUNT(*), COALESCE(MAX(server_seq), 0) FROM events`).Scan(&count, &lastSeq)
	if err != nil {
		logFor(r.Context()).Error("query event count", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "database error")
		return
	}

	resp := SyncStatusResponse{
		EventCount:    count,
		LastServerSeq: lastSeq,
	}

	if count > 0 {
		var ts string
		if err := db.QueryRow(`SELECT server_timestamp FROM events WHERE server_seq = ?`, lastSeq).Scan(&ts); err == nil {
			resp.LastEventTime = ts
		}
	}

	if deviceID := r.URL.Query().Get("device_id"); deviceID != "" {
		cursor, err := s.store.GetSyncCursor(boardID, deviceID)
		if err != nil {
			logFor(r.Context()).Warn("get sync cursor", "err", err)
		} else if cursor != nil {
			resp.DeviceSeq = &cursor.LastServerSeq
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
