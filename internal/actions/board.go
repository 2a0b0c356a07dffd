package actions

import (
	"fmt"

	"github.com/marcus/kanban/internal/models"
	"github.com/marcus/kanban/internal/order"
)

// AddColumn appends a column to the board.
func (a *Actions) AddColumn(title string) (*models.ColumnView, error) {
	if a.doc == nil {
		return nil, fmt.Errorf("no board loaded")
	}

	a.setStatus(models.SyncSaving)
	col, err := a.store.CreateColumn(a.doc.BoardID, title, a.session)
	if err != nil {
		a.setStatus(models.SyncError)
		return nil, err
	}

	a.doc.Columns = append(a.doc.Columns, models.ColumnView{ID: col.ID, Title: col.Title})
	a.afterWrite()
	return &a.doc.Columns[len(a.doc.Columns)-1], nil
}

// RenameColumn changes a column's title.
func (a *Actions) RenameColumn(id, title string) error {
	col := a.column(id)
	if col == nil {
		return fmt.Errorf("unknown column %s", id)
	}
	return a.commit(func() {
		col.Title = title
	}, func() error {
		return a.store.RenameColumn(id, title, a.session)
	})
}

// MoveColumn drags a column to the spot occupied by overID, or to the
// end when overID is empty. Remaining columns renumber to 1..N.
func (a *Actions) MoveColumn(activeID, overID string) error {
	if a.doc == nil {
		return fmt.Errorf("no board loaded")
	}
	if a.column(activeID) == nil {
		return fmt.Errorf("unknown column %s", activeID)
	}

	ids := make([]string, len(a.doc.Columns))
	byID := make(map[string]models.ColumnView, len(a.doc.Columns))
	for i, col := range a.doc.Columns {
		ids[i] = col.ID
		byID[col.ID] = col
	}

	return a.commit(func() {
		reordered := order.ReorderWithin(ids, activeID, overID)
		cols := make([]models.ColumnView, len(reordered))
		for i, id := range reordered {
			cols[i] = byID[id]
		}
		a.doc.Columns = cols
	}, func() error {
		current := make([]string, len(a.doc.Columns))
		for i, col := range a.doc.Columns {
			current[i] = col.ID
		}
		return a.store.RenumberColumns(a.doc.BoardID, current, a.session)
	})
}

// DeleteColumn removes a column. Its tasks are soft-deleted, not lost;
// they appear in the deleted list and can be restored individually.
func (a *Actions) DeleteColumn(id string) error {
	if a.column(id) == nil {
		return fmt.Errorf("unknown column %s", id)
	}

	a.setStatus(models.SyncSaving)
	if err := a.store.DeleteColumn(id, a.session); err != nil {
		a.setStatus(models.SyncError)
		return err
	}

	// The cascade stamps each task's deletion server-side; rebuild the
	// document from rows rather than guessing those timestamps.
	if err := a.Reload(); err != nil {
		return err
	}
	a.afterWrite()
	return nil
}

// SetFilters sets the label filter list. Local only, never persisted.
func (a *Actions) SetFilters(filters []string) {
	if a.doc != nil {
		a.doc.Filters = append([]string(nil), filters...)
	}
}

// SetSortMode sets the in-column sort mode. Local only, never persisted.
func (a *Actions) SetSortMode(mode models.SortMode) {
	if a.doc != nil {
		a.doc.SortMode = mode
	}
}
