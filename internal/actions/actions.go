// Package actions is the optimistic mutation layer between the UI and the
// row store. Every mutation snapshots the in-memory document, applies the
// change to it immediately, then persists through the store; a failed
// persist rolls the document back to the snapshot and surfaces the error.
package actions

import (
	"fmt"
	"time"

	"github.com/marcus/kanban/internal/db"
	"github.com/marcus/kanban/internal/models"
	"github.com/marcus/kanban/internal/state"
)

const saveDebounce = 250 * time.Millisecond

// Actions owns the in-memory document for one board. Not safe for
// concurrent use; the UI drives it from a single goroutine. The flush
// callback is the exception, it fires on the debounce timer's goroutine.
type Actions struct {
	store   *db.DB
	session string

	doc *models.Document

	status   models.SyncStatus
	onStatus func(models.SyncStatus)

	onCelebrate func(taskID string)

	saveDelay time.Duration
	saveTimer *time.Timer
	onFlush   func()
}

// New creates an action layer over the store. Call Load before mutating.
func New(store *db.DB, sessionID string) *Actions {
	return &Actions{
		store:     store,
		session:   sessionID,
		status:    models.SyncIdle,
		saveDelay: saveDebounce,
	}
}

// OnStatus registers a callback invoked on every status transition.
func (a *Actions) OnStatus(fn func(models.SyncStatus)) { a.onStatus = fn }

// OnCelebrate registers a callback fired when a task is completed.
func (a *Actions) OnCelebrate(fn func(taskID string)) { a.onCelebrate = fn }

// OnFlush registers a callback fired once the board has been quiet for
// the debounce window after a successful write. Rapid successive writes
// restart the window, so a drag across several columns triggers one
// flush, not one per step.
func (a *Actions) OnFlush(fn func()) { a.onFlush = fn }

// Status returns the current persistence status.
func (a *Actions) Status() models.SyncStatus { return a.status }

// Document returns the live document. Callers must treat it as read-only;
// all mutations go through the action methods.
func (a *Actions) Document() *models.Document { return a.doc }

// Load reads the board's rows and builds the document.
func (a *Actions) Load(boardID string) error {
	a.setStatus(models.SyncLoading)
	rows, err := a.store.LoadBoardRows(boardID)
	if err != nil {
		a.setStatus(models.SyncError)
		return err
	}
	a.doc = state.BuildDocument(rows)
	a.setStatus(models.SyncIdle)
	return nil
}

// Reload rebuilds the document from the store, preserving transient UI
// selection. Used after remote events have been applied to the rows;
// it never schedules a flush, remote changes are already synced.
func (a *Actions) Reload() error {
	if a.doc == nil {
		return fmt.Errorf("reload: no board loaded")
	}
	activeID, selectedID := a.doc.ActiveID, a.doc.SelectedTaskID
	filters, sortMode := a.doc.Filters, a.doc.SortMode

	rows, err := a.store.LoadBoardRows(a.doc.BoardID)
	if err != nil {
		a.setStatus(models.SyncError)
		return err
	}
	doc := state.BuildDocument(rows)
	doc.ActiveID, doc.SelectedTaskID = activeID, selectedID
	doc.Filters, doc.SortMode = filters, sortMode
	a.doc = doc
	return nil
}

// Stop cancels any pending debounced flush.
func (a *Actions) Stop() {
	if a.saveTimer != nil {
		a.saveTimer.Stop()
	}
}

func (a *Actions) setStatus(s models.SyncStatus) {
	if a.status == s {
		return
	}
	a.status = s
	if a.onStatus != nil {
		a.onStatus(s)
	}
}

// commit runs the optimistic write cycle: snapshot, mutate, persist.
// On persist failure the document is restored from the snapshot.
func (a *Actions) commit(mutate func(), persist func() error) error {
	if a.doc == nil {
		return fmt.Errorf("no board loaded")
	}
	snapshot := cloneDocument(a.doc)
	mutate()
	a.setStatus(models.SyncSaving)
	if err := persist(); err != nil {
		a.doc = snapshot
		a.setStatus(models.SyncError)
		return err
	}
	a.afterWrite()
	return nil
}

func (a *Actions) afterWrite() {
	a.setStatus(models.SyncSaved)
	if a.onFlush == nil {
		return
	}
	if a.saveTimer != nil {
		a.saveTimer.Stop()
	}
	a.saveTimer = time.AfterFunc(a.saveDelay, a.onFlush)
}

// column returns a pointer into the document's column slice, or nil.
func (a *Actions) column(id string) *models.ColumnView {
	for i := range a.doc.Columns {
		if a.doc.Columns[i].ID == id {
			return &a.doc.Columns[i]
		}
	}
	return nil
}

// taskColumn returns the column view currently holding the task.
func (a *Actions) taskColumn(taskID string) *models.ColumnView {
	for i := range a.doc.Columns {
		for _, id := range a.doc.Columns[i].TaskIDs {
			if id == taskID {
				return &a.doc.Columns[i]
			}
		}
	}
	return nil
}

// renumberColumn rewrites the document positions of a column's tasks to
// match their slot in the ordered id list, mirroring what the store does.
func (a *Actions) renumberColumn(col *models.ColumnView) {
	for i, id := range col.TaskIDs {
		if view, ok := a.doc.Tasks[id]; ok {
			view.Position = i + 1
			view.ColumnID = col.ID
		}
	}
}
