package cmd

import (
	"context"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/marcus/kanban/internal/db"
	"github.com/marcus/kanban/internal/output"
	"github.com/marcus/kanban/internal/realtime"
	kbsync "github.com/marcus/kanban/internal/sync"
	"github.com/marcus/kanban/internal/syncclient"
	"github.com/marcus/kanban/internal/syncconfig"
	"github.com/marcus/kanban/pkg/boardui"
	"github.com/spf13/cobra"
)

var uiCmd = &cobra.Command{
	Use:     "ui",
	Aliases: []string{"tui", "b"},
	Short:   "Open the interactive board",
	GroupID: "core",
	RunE: func(cmd *cobra.Command, args []string) error {
		bc, err := openBoardContext(boardFlagOf(cmd))
		if err != nil {
			return err
		}
		defer bc.Close()

		if labels, _ := cmd.Flags().GetString("label"); labels != "" {
			bc.actions.SetFilters(splitFlagList(labels))
		}

		model := boardui.New(bc.actions)
		p := tea.NewProgram(model, tea.WithAltScreen())

		stop := startLiveUpdates(bc, p)
		defer stop()

		if _, err := p.Run(); err != nil {
			output.Error("ui: %v", err)
			return err
		}

		autoSyncAfterMutation()
		return nil
	},
}

// startLiveUpdates subscribes to the board's event stream when the board is
// linked and authenticated, applying remote events and poking the UI. Returns
// a stop function; a no-op when live updates are unavailable.
func startLiveUpdates(bc *boardContext, p *tea.Program) func() {
	if !syncconfig.IsAuthenticated() {
		return func() {}
	}
	state, err := bc.store.GetSyncState(bc.boardID)
	if err != nil || state == nil || state.SyncDisabled {
		return func() {}
	}

	client := syncclient.New(syncconfig.GetServerURL(), syncconfig.GetAPIKey(), bc.ident.DeviceID)

	ctx, cancel := context.WithCancel(context.Background())
	sub, err := client.Subscribe(ctx, state.RemoteBoardID, state.LastServerSeq)
	if err != nil {
		slog.Debug("live updates unavailable", "err", err)
		cancel()
		return func() {}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for frame := range sub.Frames {
			if err := applyLiveFrame(bc.store, state, frame, bc.ident.DeviceID); err != nil {
				slog.Warn("apply remote event", "seq", frame.ServerSeq, "err", err)
				continue
			}
			p.Send(boardui.RemoteChangeMsg{})
		}
	}()

	return func() {
		cancel()
		sub.Close()
		<-done
	}
}

// applyLiveFrame applies a single realtime event and advances the board's
// sync cursor.
func applyLiveFrame(database *db.DB, state *db.SyncState, frame realtime.EventFrame, deviceID string) error {
	tx, err := database.Conn().Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	events := []kbsync.Event{{
		DeviceID:        frame.DeviceID,
		ActionType:      frame.ActionType,
		EntityType:      frame.EntityType,
		EntityID:        frame.EntityID,
		Payload:         frame.Payload,
		ClientTimestamp: frame.ClientTimestamp,
		ServerSeq:       frame.ServerSeq,
	}}
	if _, err := kbsync.ApplyRemoteEvents(tx, events, deviceID, kbsync.BoardEntityValidator); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	if frame.ServerSeq > state.LastServerSeq {
		state.LastServerSeq = frame.ServerSeq
		if err := database.SetSyncState(state); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	uiCmd.Flags().String("board", "", "Board id (defaults to current)")
	uiCmd.Flags().String("label", "", "Only show tasks with these labels (comma separated)")
	rootCmd.AddCommand(uiCmd)
}
