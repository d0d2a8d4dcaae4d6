package state

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// CheckpointStore persists ledger checkpoints and the actions log in a
// SQLite database so a run can be inspected or recovered after a crash.
type CheckpointStore struct {
	conn *sql.DB
	path string
	mu   sync.RWMutex
}

// StorePath returns the path to the run-local checkpoint database.
func StorePath(runDir string) string {
	return filepath.Join(runDir, ".concord", "checkpoints.db")
}

// OpenStore opens the SQLite checkpoint database at the given path,
// creating parent directories as needed. WAL mode is enabled for
// concurrent reads (the watch dashboard reads while a run writes).
func OpenStore(path string) (*CheckpointStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	store := &CheckpointStore{conn: conn, path: path}
	if err := store.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the database connection.
func (cs *CheckpointStore) Close() error {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.conn.Close()
}

// Path returns the path to the database file.
func (cs *CheckpointStore) Path() string {
	return cs.path
}

// migrate applies all pending schema migrations.
func (cs *CheckpointStore) migrate() error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	_, err := cs.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var currentVersion int
	row := cs.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migrationV1Checkpoints},
		{2, migrationV2Actions},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		tx, err := cs.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}

		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration v%d: %w", m.version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration v%d: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", m.version, err)
		}
	}

	return nil
}

const migrationV1Checkpoints = `
CREATE TABLE IF NOT EXISTS checkpoints (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	state BLOB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_checkpoints_created_at ON checkpoints(created_at);
`

const migrationV2Actions = `
CREATE TABLE IF NOT EXISTS actions (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp DATETIME NOT NULL,
	type TEXT NOT NULL,
	description TEXT NOT NULL,
	agent_id TEXT NOT NULL DEFAULT ''
);
`

// CheckpointInfo describes a stored checkpoint without its payload.
type CheckpointInfo struct {
	ID        string
	RunID     string
	CreatedAt time.Time
}

// SaveCheckpoint serializes the ledger and stores it. Returns the
// checkpoint ID.
func (cs *CheckpointStore) SaveCheckpoint(runID string, s *TacticalState) (string, error) {
	data, err := s.MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("serialize state: %w", err)
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()

	id := uuid.NewString()
	_, err = cs.conn.Exec(`
		INSERT INTO checkpoints (id, run_id, created_at, state) VALUES (?, ?, ?, ?)
	`, id, runID, time.Now().UTC().Format(time.RFC3339Nano), data)
	if err != nil {
		return "", fmt.Errorf("insert checkpoint: %w", err)
	}
	return id, nil
}

// LoadCheckpoint restores the ledger stored under the given checkpoint
// ID. Returns (nil, nil) if the ID is unknown.
func (cs *CheckpointStore) LoadCheckpoint(id string) (*TacticalState, error) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	var data []byte
	row := cs.conn.QueryRow("SELECT state FROM checkpoints WHERE id = ?", id)
	if err := row.Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("load checkpoint %s: %w", id, err)
	}
	return Restore(data)
}

// LoadLatest restores the most recently stored checkpoint.
// Returns (nil, nil) if the store is empty.
func (cs *CheckpointStore) LoadLatest() (*TacticalState, error) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	var data []byte
	row := cs.conn.QueryRow("SELECT state FROM checkpoints ORDER BY created_at DESC, rowid DESC LIMIT 1")
	if err := row.Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("load latest checkpoint: %w", err)
	}
	return Restore(data)
}

// ListCheckpoints returns checkpoint descriptors, newest first.
func (cs *CheckpointStore) ListCheckpoints(limit int) ([]CheckpointInfo, error) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	q := "SELECT id, run_id, created_at FROM checkpoints ORDER BY created_at DESC, rowid DESC"
	args := []any{}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := cs.conn.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var out []CheckpointInfo
	for rows.Next() {
		var info CheckpointInfo
		var created string
		if err := rows.Scan(&info.ID, &info.RunID, &created); err != nil {
			return nil, err
		}
		if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
			info.CreatedAt = t
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// AppendActions mirrors new actions-log rows into the store.
func (cs *CheckpointStore) AppendActions(entries []ActionEntry) error {
	if len(entries) == 0 {
		return nil
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()

	tx, err := cs.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	for _, e := range entries {
		_, err := tx.Exec(`
			INSERT INTO actions (timestamp, type, description, agent_id) VALUES (?, ?, ?, ?)
		`, e.Timestamp.UTC().Format(time.RFC3339Nano), e.Type, e.Description, e.AgentID)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("insert action: %w", err)
		}
	}
	return tx.Commit()
}

// ActionCount returns the number of persisted action rows.
func (cs *CheckpointStore) ActionCount() (int, error) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	var n int
	row := cs.conn.QueryRow("SELECT COUNT(*) FROM actions")
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count actions: %w", err)
	}
	return n, nil
}
