package db

// SchemaVersion is the current database schema version
const SchemaVersion = 3

const schema = `
-- Boards table
CREATE TABLE IF NOT EXISTS boards (
    id TEXT PRIMARY KEY,
    owner_id TEXT DEFAULT '',
    title TEXT NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- Per-board behavior settings
CREATE TABLE IF NOT EXISTS board_settings (
    board_id TEXT PRIMARY KEY,
    show_completed INTEGER NOT NULL DEFAULT 1,
    save_deleted INTEGER NOT NULL DEFAULT 1,
    deleted_retention INTEGER NOT NULL DEFAULT 30,
    auto_cleanup INTEGER NOT NULL DEFAULT 1,
    last_cleanup_at DATETIME,
    FOREIGN KEY (board_id) REFERENCES boards(id)
);

-- Columns table. Position is renumbered to 1..N board-wide after any move.
CREATE TABLE IF NOT EXISTS board_columns (
    id TEXT PRIMARY KEY,
    board_id TEXT NOT NULL,
    title TEXT NOT NULL,
    position INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (board_id) REFERENCES boards(id)
);

-- Tasks table. deleted_at marks soft deletion; column_id and position are
-- left untouched on soft delete so a restore can put the task back.
CREATE TABLE IF NOT EXISTS tasks (
    id TEXT PRIMARY KEY,
    board_id TEXT NOT NULL,
    column_id TEXT NOT NULL,
    title TEXT NOT NULL,
    description TEXT DEFAULT '',
    priority TEXT NOT NULL DEFAULT 'medium',
    due_at DATETIME,
    completed INTEGER NOT NULL DEFAULT 0,
    completed_at DATETIME,
    position INTEGER NOT NULL DEFAULT 0,
    deleted_at DATETIME,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (board_id) REFERENCES boards(id),
    FOREIGN KEY (column_id) REFERENCES board_columns(id)
);

-- Subtasks table
CREATE TABLE IF NOT EXISTS subtasks (
    id TEXT PRIMARY KEY,
    task_id TEXT NOT NULL,
    title TEXT NOT NULL,
    completed INTEGER NOT NULL DEFAULT 0,
    position INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (task_id) REFERENCES tasks(id)
);

-- Labels table. Name uniqueness is case-insensitive within a board.
CREATE TABLE IF NOT EXISTS labels (
    id TEXT PRIMARY KEY,
    board_id TEXT NOT NULL,
    name TEXT NOT NULL,
    color TEXT DEFAULT '',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (board_id) REFERENCES boards(id),
    UNIQUE(board_id, name COLLATE NOCASE)
);

-- Task/label junction table
CREATE TABLE IF NOT EXISTS task_labels (
    task_id TEXT NOT NULL,
    label_id TEXT NOT NULL,
    PRIMARY KEY (task_id, label_id),
    FOREIGN KEY (task_id) REFERENCES tasks(id),
    FOREIGN KEY (label_id) REFERENCES labels(id)
);

-- User settings (one row per user)
CREATE TABLE IF NOT EXISTS user_settings (
    user_id TEXT PRIMARY KEY,
    theme TEXT NOT NULL DEFAULT 'dark',
    shortcuts TEXT DEFAULT '{}',
    current_board_id TEXT DEFAULT ''
);

-- Action log: every local mutation, consumed by the sync engine
CREATE TABLE IF NOT EXISTS action_log (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL,
    action_type TEXT NOT NULL,
    entity_type TEXT NOT NULL,
    entity_id TEXT NOT NULL,
    previous_data TEXT DEFAULT '',
    new_data TEXT DEFAULT '',
    timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    synced_at DATETIME,
    server_seq INTEGER
);

CREATE INDEX IF NOT EXISTS idx_columns_board ON board_columns(board_id, position);
CREATE INDEX IF NOT EXISTS idx_tasks_column ON tasks(column_id, position);
CREATE INDEX IF NOT EXISTS idx_tasks_board ON tasks(board_id);
CREATE INDEX IF NOT EXISTS idx_subtasks_task ON subtasks(task_id, position);
CREATE INDEX IF NOT EXISTS idx_task_labels_label ON task_labels(label_id);
CREATE INDEX IF NOT EXISTS idx_action_log_unsynced ON action_log(synced_at) WHERE synced_at IS NULL;

-- Sync state: one row per linked board
CREATE TABLE IF NOT EXISTS sync_state (
    board_id TEXT PRIMARY KEY,
    remote_board_id TEXT NOT NULL,
    last_server_seq INTEGER NOT NULL DEFAULT 0,
    last_sync_at DATETIME,
    sync_disabled INTEGER NOT NULL DEFAULT 0
);

-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_info (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`
