package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/marcus/kanban/internal/db"
	"github.com/marcus/kanban/internal/output"
	kbsync "github.com/marcus/kanban/internal/sync"
	"github.com/marcus/kanban/internal/syncclient"
	"github.com/marcus/kanban/internal/syncconfig"
	"github.com/spf13/cobra"
)

const pushBatchSize = 500

var syncCmd = &cobra.Command{
	Use:     "sync",
	Short:   "Sync the current board with the server",
	GroupID: "sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		statusOnly, _ := cmd.Flags().GetBool("status")
		pushOnly, _ := cmd.Flags().GetBool("push")
		pullOnly, _ := cmd.Flags().GetBool("pull")

		sc, err := openSyncContext(boardFlagOf(cmd))
		if err != nil {
			return err
		}
		defer sc.store.Close()

		if statusOnly {
			return sc.printStatus()
		}

		if !pullOnly {
			pushed, err := sc.push()
			if err != nil {
				output.Error("push: %v", err)
				return err
			}
			if pushed > 0 {
				output.Success("Pushed %d event(s)", pushed)
			}
		}
		if !pushOnly {
			applied, err := sc.pull()
			if err != nil {
				output.Error("pull: %v", err)
				return err
			}
			if applied > 0 {
				output.Success("Applied %d remote event(s)", applied)
			}
		}

		output.Success("Board is up to date")
		return nil
	},
}

var syncWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream remote changes and apply them as they arrive",
	RunE: func(cmd *cobra.Command, args []string) error {
		sc, err := openSyncContext(boardFlagOf(cmd))
		if err != nil {
			return err
		}
		defer sc.store.Close()

		// Catch up before streaming so the subscription cursor is current.
		if _, err := sc.push(); err != nil {
			output.Error("push: %v", err)
			return err
		}
		if _, err := sc.pull(); err != nil {
			output.Error("pull: %v", err)
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		sub, err := sc.client.Subscribe(ctx, sc.state.RemoteBoardID, sc.state.LastServerSeq)
		if err != nil {
			output.Error("subscribe: %v", err)
			return err
		}
		defer sub.Close()

		fmt.Println("Watching for changes (ctrl-c to stop)")
		for {
			select {
			case <-ctx.Done():
				return nil
			case frame, ok := <-sub.Frames:
				if !ok {
					return nil
				}
				if err := applyLiveFrame(sc.store, sc.state, frame, sc.deviceID); err != nil {
					output.Warning("apply event %d: %v", frame.ServerSeq, err)
					continue
				}
				fmt.Printf("%s  %s %s %s\n", time.Now().Format("15:04:05"), frame.ActionType, frame.EntityType, frame.EntityID)
			}
		}
	},
}

var syncDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Pause sync for the current board",
	RunE:  func(cmd *cobra.Command, args []string) error { return setSyncDisabled(cmd, true) },
}

var syncEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Resume sync for the current board",
	RunE:  func(cmd *cobra.Command, args []string) error { return setSyncDisabled(cmd, false) },
}

func setSyncDisabled(cmd *cobra.Command, disabled bool) error {
	database, err := openStore()
	if err != nil {
		return err
	}
	defer database.Close()

	boardID, err := currentBoardID(database, boardFlagOf(cmd))
	if err != nil {
		output.Error("%v", err)
		return err
	}

	state, err := database.GetSyncState(boardID)
	if err != nil {
		return err
	}
	if state == nil {
		state = &db.SyncState{BoardID: boardID, RemoteBoardID: boardID}
	}
	state.SyncDisabled = disabled
	if err := database.SetSyncState(state); err != nil {
		output.Error("update sync state: %v", err)
		return err
	}

	if disabled {
		output.Success("Sync disabled for %s", boardID)
	} else {
		output.Success("Sync enabled for %s", boardID)
	}
	return nil
}

// syncContext bundles everything push and pull need for one board.
type syncContext struct {
	store    *db.DB
	client   *syncclient.Client
	state    *db.SyncState
	deviceID string
	title    string
}

// openSyncContext resolves the board, its sync state, and an authenticated
// client. An unlinked board is linked under its local id on first sync.
func openSyncContext(boardFlag string) (*syncContext, error) {
	if !syncconfig.IsAuthenticated() {
		err := fmt.Errorf("not logged in: run 'kanban auth login'")
		output.Error("%v", err)
		return nil, err
	}

	database, err := openStore()
	if err != nil {
		return nil, err
	}

	boardID, err := currentBoardID(database, boardFlag)
	if err != nil {
		output.Error("%v", err)
		database.Close()
		return nil, err
	}

	board, err := database.GetBoard(boardID)
	if err != nil || board == nil {
		database.Close()
		return nil, fmt.Errorf("load board: %v", err)
	}

	state, err := database.GetSyncState(boardID)
	if err != nil {
		database.Close()
		return nil, err
	}
	if state == nil {
		state = &db.SyncState{BoardID: boardID, RemoteBoardID: boardID}
		if err := database.SetSyncState(state); err != nil {
			database.Close()
			return nil, err
		}
	}
	if state.SyncDisabled {
		database.Close()
		err := fmt.Errorf("sync is disabled for this board: run 'kanban sync enable'")
		output.Error("%v", err)
		return nil, err
	}

	deviceID, err := syncconfig.GetDeviceID()
	if err != nil {
		database.Close()
		return nil, err
	}

	client := syncclient.New(syncconfig.GetServerURL(), syncconfig.GetAPIKey(), deviceID)
	return &syncContext{
		store:    database,
		client:   client,
		state:    state,
		deviceID: deviceID,
		title:    board.Title,
	}, nil
}

// push sends pending action_log events in batches. The first push registers
// the board on the server. Duplicate rejections carrying a server_seq are
// acked locally; the server already has those events.
func (sc *syncContext) push() (int, error) {
	ident, err := loadIdentity()
	if err != nil {
		return 0, err
	}

	tx, err := sc.store.Conn().Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	events, err := kbsync.GetPendingEvents(tx, sc.deviceID)
	if err != nil {
		return 0, fmt.Errorf("get pending: %w", err)
	}
	if len(events) == 0 {
		return 0, tx.Commit()
	}

	pushed := 0
	for start := 0; start < len(events); start += pushBatchSize {
		end := start + pushBatchSize
		if end > len(events) {
			end = len(events)
		}

		req := &syncclient.PushRequest{
			DeviceID:  sc.deviceID,
			SessionID: ident.SessionID,
		}
		for _, ev := range events[start:end] {
			req.Events = append(req.Events, syncclient.EventInput{
				ClientActionID:  ev.ClientActionID,
				ActionType:      ev.ActionType,
				EntityType:      ev.EntityType,
				EntityID:        ev.EntityID,
				Payload:         ev.Payload,
				ClientTimestamp: ev.ClientTimestamp.Format(time.RFC3339),
			})
		}

		resp, err := sc.client.PushWithRegister(sc.state.RemoteBoardID, sc.title, req)
		if err != nil {
			return pushed, err
		}

		acks := make([]kbsync.Ack, 0, len(resp.Acks)+len(resp.Rejected))
		for _, a := range resp.Acks {
			acks = append(acks, kbsync.Ack{ClientActionID: a.ClientActionID, ServerSeq: a.ServerSeq})
		}
		for _, r := range resp.Rejected {
			if r.Reason == "duplicate" && r.ServerSeq > 0 {
				acks = append(acks, kbsync.Ack{ClientActionID: r.ClientActionID, ServerSeq: r.ServerSeq})
			} else {
				output.Warning("rejected %s: %s", r.ClientActionID, r.Reason)
			}
		}

		if err := kbsync.MarkEventsSynced(tx, acks); err != nil {
			return pushed, fmt.Errorf("mark synced: %w", err)
		}
		pushed += len(acks)
	}

	if err := tx.Commit(); err != nil {
		return pushed, fmt.Errorf("commit: %w", err)
	}

	now := time.Now().UTC()
	sc.state.LastSyncAt = &now
	if err := sc.store.SetSyncState(sc.state); err != nil {
		return pushed, err
	}
	return pushed, nil
}

// pull fetches remote events after the last seen sequence and applies them
// page by page, each page in its own transaction.
func (sc *syncContext) pull() (int, error) {
	applied := 0
	for {
		page, err := sc.client.Pull(sc.state.RemoteBoardID, sc.state.LastServerSeq, pushBatchSize)
		if err != nil {
			return applied, err
		}
		if len(page.Events) == 0 && !page.HasMore {
			return applied, nil
		}

		events := make([]kbsync.Event, len(page.Events))
		for i, ev := range page.Events {
			events[i] = pullEventToLocal(ev)
		}

		tx, err := sc.store.Conn().Begin()
		if err != nil {
			return applied, fmt.Errorf("begin tx: %w", err)
		}

		result, err := kbsync.ApplyRemoteEvents(tx, events, sc.deviceID, kbsync.BoardEntityValidator)
		if err != nil {
			tx.Rollback()
			return applied, fmt.Errorf("apply: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return applied, fmt.Errorf("commit: %w", err)
		}

		applied += result.Applied
		for _, f := range result.Failed {
			output.Warning("event %d failed: %v", f.ServerSeq, f.Error)
		}

		now := time.Now().UTC()
		sc.state.LastServerSeq = page.LastServerSeq
		sc.state.LastSyncAt = &now
		if err := sc.store.SetSyncState(sc.state); err != nil {
			return applied, err
		}

		if !page.HasMore {
			return applied, nil
		}
	}
}

func (sc *syncContext) printStatus() error {
	remote, err := sc.client.SyncStatus(sc.state.RemoteBoardID)
	if err != nil {
		output.Error("status: %v", err)
		return err
	}

	fmt.Printf("Board:       %s\n", sc.state.BoardID)
	fmt.Printf("Remote:      %s\n", sc.state.RemoteBoardID)
	fmt.Printf("Local seq:   %d\n", sc.state.LastServerSeq)
	fmt.Printf("Server seq:  %d\n", remote.LastServerSeq)
	fmt.Printf("Events:      %d\n", remote.EventCount)
	if sc.state.LastSyncAt != nil {
		fmt.Printf("Last sync:   %s\n", output.FormatTimeAgo(*sc.state.LastSyncAt))
	} else {
		fmt.Println("Last sync:   never")
	}
	if behind := remote.LastServerSeq - sc.state.LastServerSeq; behind > 0 {
		output.Warning("%d event(s) behind the server", behind)
	}
	return nil
}

// pullEventToLocal converts a wire event into the engine's representation.
func pullEventToLocal(ev syncclient.PullEvent) kbsync.Event {
	ts, err := time.Parse(time.RFC3339, ev.ClientTimestamp)
	if err != nil {
		ts = time.Now().UTC()
	}
	return kbsync.Event{
		ClientActionID:  ev.ClientActionID,
		DeviceID:        ev.DeviceID,
		SessionID:       ev.SessionID,
		ActionType:      ev.ActionType,
		EntityType:      ev.EntityType,
		EntityID:        ev.EntityID,
		Payload:         ev.Payload,
		ClientTimestamp: ts,
		ServerSeq:       ev.ServerSeq,
	}
}

func init() {
	syncCmd.AddCommand(syncWatchCmd)
	syncCmd.AddCommand(syncDisableCmd)
	syncCmd.AddCommand(syncEnableCmd)

	syncCmd.PersistentFlags().String("board", "", "Board id (defaults to current)")
	syncCmd.Flags().Bool("status", false, "Show sync status only")
	syncCmd.Flags().Bool("push", false, "Push local events only")
	syncCmd.Flags().Bool("pull", false, "Pull remote events only")

	rootCmd.AddCommand(syncCmd)
}
