package models

import (
	"time"
)

// Priority represents task priority
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium" // default
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// ValidPriority reports whether p is one of the known priority values.
func ValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// SyncStatus represents the persistence state of the local document.
type SyncStatus string

const (
	SyncIdle    SyncStatus = "idle"
	SyncLoading SyncStatus = "loading"
	SyncSaving  SyncStatus = "saving"
	SyncSaved   SyncStatus = "saved"
	SyncError   SyncStatus = "error"
)

// ActionType identifies a mutation recorded in the action log.
type ActionType string

const (
	ActionBoardCreate   ActionType = "board_create"
	ActionBoardUpdate   ActionType = "board_update"
	ActionBoardDelete   ActionType = "board_delete"
	ActionColumnCreate  ActionType = "column_create"
	ActionColumnUpdate  ActionType = "column_update"
	ActionColumnDelete  ActionType = "column_delete"
	ActionTaskCreate    ActionType = "task_create"
	ActionTaskUpdate    ActionType = "task_update"
	ActionTaskMove      ActionType = "task_move"
	ActionTaskComplete  ActionType = "task_complete"
	ActionTaskDelete    ActionType = "task_delete"
	ActionTaskRestore   ActionType = "task_restore"
	ActionTaskPurge     ActionType = "task_purge"
	ActionSubtaskSet    ActionType = "subtask_set"
	ActionLabelCreate   ActionType = "label_create"
	ActionLabelUpdate   ActionType = "label_update"
	ActionLabelDelete   ActionType = "label_delete"
	ActionLabelAttach   ActionType = "label_attach"
	ActionLabelDetach   ActionType = "label_detach"
	ActionSettingsSet   ActionType = "settings_set"
)

// Board is the top-level container owning columns, tasks, and labels.
type Board struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id,omitempty"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Column is an ordered lane on a board. Position is an ascending sort key,
// renumbered to 1..N after any reorder.
type Column struct {
	ID        string    `json:"id"`
	BoardID   string    `json:"board_id"`
	Title     string    `json:"title"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Task is a card on the board.
type Task struct {
	ID          string     `json:"id"`
	BoardID     string     `json:"board_id"`
	ColumnID    string     `json:"column_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Priority    Priority   `json:"priority"`
	DueAt       *time.Time `json:"due_at,omitempty"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Position    int        `json:"position"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Deleted reports whether the task is soft-deleted.
func (t *Task) Deleted() bool {
	return t.DeletedAt != nil
}

// Subtask belongs to exactly one task. The subtask list of a task is
// replaced wholesale on edit and renumbered 1..N.
type Subtask struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"task_id"`
	Title     string    `json:"title"`
	Completed bool      `json:"completed"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Label names are unique case-insensitively within a board.
type Label struct {
	ID        string    `json:"id"`
	BoardID   string    `json:"board_id"`
	Name      string    `json:"name"`
	Color     string    `json:"color,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TaskLabel is the task↔label join row. No independent lifecycle.
type TaskLabel struct {
	TaskID  string `json:"task_id"`
	LabelID string `json:"label_id"`
}

// BoardSettings holds per-board behavior toggles.
type BoardSettings struct {
	BoardID          string     `json:"board_id"`
	ShowCompleted    bool       `json:"show_completed"`
	SaveDeleted      bool       `json:"save_deleted"`
	DeletedRetention int        `json:"deleted_retention"` // days; 0 = keep forever
	AutoCleanup      bool       `json:"auto_cleanup"`
	LastCleanupAt    *time.Time `json:"last_cleanup_at,omitempty"`
}

// DefaultBoardSettings returns the settings applied to a freshly created board.
func DefaultBoardSettings(boardID string) *BoardSettings {
	return &BoardSettings{
		BoardID:          boardID,
		ShowCompleted:    true,
		SaveDeleted:      true,
		DeletedRetention: 30,
		AutoCleanup:      true,
	}
}

// UserSettings is the per-user preference row.
type UserSettings struct {
	UserID         string            `json:"user_id"`
	Theme          string            `json:"theme"`
	Shortcuts      map[string]string `json:"shortcuts,omitempty"`
	CurrentBoardID string            `json:"current_board_id,omitempty"`
}

// SortMode controls the in-column sort applied by the view layer.
type SortMode string

const (
	SortManual   SortMode = "manual" // position order, the default
	SortPriority SortMode = "priority"
	SortDueDate  SortMode = "due_date"
)

// ColumnView is a column plus the ordered ids of its non-deleted tasks.
type ColumnView struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	TaskIDs []string `json:"taskIds"`
}

// TaskView is a task merged with its resolved label names and subtasks,
// as consumed by the rendering layer.
type TaskView struct {
	Task
	Labels   []string  `json:"labels,omitempty"`
	Subtasks []Subtask `json:"subtasks,omitempty"`
}

// DeletedTaskView is a soft-deleted task with enough metadata to restore it
// to its original column and position.
type DeletedTaskView struct {
	TaskView
	OriginalColumnID string    `json:"originalColumnId"`
	OriginalPosition int       `json:"originalPosition"`
	DeletedAt        time.Time `json:"deletedAt"`
}

// Document is the denormalized in-memory shape the UI reads from. It is a
// derived projection rebuilt from the relational rows; the row store stays
// the durable record.
type Document struct {
	BoardID      string               `json:"boardId"`
	Title        string               `json:"title"`
	Columns      []ColumnView         `json:"columns"`
	Tasks        map[string]*TaskView `json:"tasks"`
	Labels       []string             `json:"labels"`
	DeletedTasks []DeletedTaskView    `json:"deletedTasks,omitempty"`
	Filters      []string             `json:"filters,omitempty"`
	SortMode     SortMode             `json:"sortMode,omitempty"`

	// Transient UI flags, never persisted remotely and ignored on import.
	ActiveID       string `json:"activeId,omitempty"`
	SelectedTaskID string `json:"selectedTaskId,omitempty"`
}
