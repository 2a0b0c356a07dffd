package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/marcus/kanban/internal/db"
	"github.com/marcus/kanban/internal/session"
	kbsync "github.com/marcus/kanban/internal/sync"
	"github.com/marcus/kanban/internal/syncclient"
	"github.com/marcus/kanban/internal/syncconfig"
)

// autoSyncAfterMutation runs a quick push after a mutating command completes.
// Runs synchronously but with a short timeout. Errors are logged, not returned.
func autoSyncAfterMutation() {
	if !syncconfig.GetAutoSyncEnabled() {
		return
	}
	if !syncconfig.IsAuthenticated() {
		return
	}

	database, err := db.Open(getBaseDir())
	if err != nil {
		slog.Debug("autosync: open db", "err", err)
		return
	}
	defer database.Close()

	boardID, err := currentBoardID(database, "")
	if err != nil {
		return
	}
	state, err := database.GetSyncState(boardID)
	if err != nil || state == nil {
		return // not linked
	}
	if state.SyncDisabled {
		return
	}

	ident, err := session.Load()
	if err != nil {
		return
	}

	client := syncclient.New(syncconfig.GetServerURL(), syncconfig.GetAPIKey(), ident.DeviceID)
	client.HTTP.Timeout = 5 * time.Second // short timeout for auto-sync

	// Push only. Pull happens on the next explicit sync or UI subscription.
	if err := autoSyncPush(database, client, state, ident); err != nil {
		slog.Debug("autosync: push", "err", err)
	}
}

// autoSyncPush pushes pending events silently. Returns nil if nothing to push.
func autoSyncPush(database *db.DB, client *syncclient.Client, state *db.SyncState, ident session.Identity) error {
	tx, err := database.Conn().Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	events, err := kbsync.GetPendingEvents(tx, ident.DeviceID)
	if err != nil {
		return fmt.Errorf("get pending: %w", err)
	}
	if len(events) == 0 {
		return nil
	}

	req := &syncclient.PushRequest{
		DeviceID:  ident.DeviceID,
		SessionID: ident.SessionID,
	}
	for _, ev := range events {
		req.Events = append(req.Events, syncclient.EventInput{
			ClientActionID:  ev.ClientActionID,
			ActionType:      ev.ActionType,
			EntityType:      ev.EntityType,
			EntityID:        ev.EntityID,
			Payload:         ev.Payload,
			ClientTimestamp: ev.ClientTimestamp.Format(time.RFC3339),
		})
	}

	resp, err := client.Push(state.RemoteBoardID, req)
	if err != nil {
		return fmt.Errorf("push: %w", err)
	}

	acks := make([]kbsync.Ack, 0, len(resp.Acks)+len(resp.Rejected))
	for _, a := range resp.Acks {
		acks = append(acks, kbsync.Ack{ClientActionID: a.ClientActionID, ServerSeq: a.ServerSeq})
	}
	for _, r := range resp.Rejected {
		if r.Reason == "duplicate" && r.ServerSeq > 0 {
			acks = append(acks, kbsync.Ack{ClientActionID: r.ClientActionID, ServerSeq: r.ServerSeq})
		}
	}

	if err := kbsync.MarkEventsSynced(tx, acks); err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	now := time.Now().UTC()
	state.LastSyncAt = &now
	if err := database.SetSyncState(state); err != nil {
		return fmt.Errorf("update state: %w", err)
	}

	slog.Debug("autosync: pushed", "events", len(acks))
	return nil
}
