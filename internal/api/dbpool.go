package api

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	kbsync "github.com/marcus/kanban/internal/sync"
	_ "modernc.org/sqlite"
)

// ErrBoardDBNotFound means no event log exists for the board yet; the
// board was never registered (or was registered elsewhere).
var ErrBoardDBNotFound = errors.New("board database not found")

// BoardDBPool manages per-board SQLite connections for event logs.
type BoardDBPool struct {
	mu      sync.RWMutex
	dbs     map[string]*sql.DB
	dataDir string
}

// NewBoardDBPool creates a new pool that stores board databases under dataDir.
func NewBoardDBPool(dataDir string) *BoardDBPool {
	return &BoardDBPool{
		dbs:     make(map[string]*sql.DB),
		dataDir: dataDir,
	}
}

// Get returns the database connection for the given board, opening it lazily.
func (p *BoardDBPool) Get(boardID string) (*sql.DB, error) {
	p.mu.RLock()
	db, ok := p.dbs[boardID]
	p.mu.RUnlock()
	if ok {
		return db, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// Double-check after acquiring write lock
	if db, ok := p.dbs[boardID]; ok {
		return db, nil
	}

	dbPath := filepath.Join(p.dataDir, boardID, "events.db")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrBoardDBNotFound, boardID)
	}

	db, err := openBoardDB(dbPath)
	if err != nil {
		return nil, err
	}

	p.dbs[boardID] = db
	return db, nil
}

// Create creates a new board database directory and initializes the event log.
func (p *BoardDBPool) Create(boardID string) (*sql.DB, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if db, ok := p.dbs[boardID]; ok {
		return db, nil
	}

	dir := filepath.Join(p.dataDir, boardID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create board dir: %w", err)
	}

	dbPath := filepath.Join(dir, "events.db")
	db, err := openBoardDB(dbPath)
	if err != nil {
		return nil, err
	}

	p.dbs[boardID] = db
	return db, nil
}

// CloseAll closes all open board database connections.
func (p *BoardDBPool) CloseAll() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for id, db := range p.dbs {
		db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		db.Close()
		delete(p.dbs, id)
	}
}

// openBoardDB opens a SQLite connection for a board event log with standard pragmas.
func openBoardDB(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open board db: %w", err)
	}

	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	db.Exec("PRAGMA synchronous=NORMAL")
	db.Exec("PRAGMA foreign_keys=ON")

	if err := kbsync.InitServerEventLog(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init event log: %w", err)
	}

	return db, nil
}
