package change

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/mvaldes/archtrack/internal/config"
	"github.com/mvaldes/archtrack/internal/trackerr"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// SQLiteStore implements Store on a single arch/changes.db database. It is
// the drop-in alternative to the file-tree layout for projects that prefer
// indexed queries over one-file-per-change.
type SQLiteStore struct {
	mu  sync.Mutex
	dbs map[string]*sql.DB // keyed by project root
}

// NewSQLiteStore creates a SQLite-backed change store. Databases are opened
// lazily per project root and kept for the life of the store.
func NewSQLiteStore() *SQLiteStore {
	return &SQLiteStore{dbs: make(map[string]*sql.DB)}
}

// DatabaseFile is the SQLite database filename within the arch directory.
const DatabaseFile = "changes.db"

// dbFor returns (opening if needed) the database for a project root.
func (s *SQLiteStore) dbFor(projectRoot string) (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if db, ok := s.dbs[projectRoot]; ok {
		return db, nil
	}

	archDir := config.ArchPath(projectRoot)
	if err := os.MkdirAll(archDir, 0o755); err != nil {
		return nil, fmt.Errorf("create arch directory: %w", err)
	}

	db, err := openDB("sqlite", config.ArchPath(projectRoot)+string(os.PathSeparator)+DatabaseFile)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("pragma %q: %w", p, err)
		}
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration: %w", err)
	}

	s.dbs[projectRoot] = db
	return db, nil
}

// Close closes every open database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for root, db := range s.dbs {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(s.dbs, root)
	}
	return firstErr
}

func migrate(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS changes (
			id        TEXT PRIMARY KEY,
			timestamp TEXT NOT NULL,
			type      TEXT NOT NULL,
			category  TEXT NOT NULL,
			payload   TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS change_components (
			change_id TEXT NOT NULL REFERENCES changes(id),
			component TEXT NOT NULL,
			PRIMARY KEY (change_id, component)
		);

		CREATE INDEX IF NOT EXISTS idx_changes_timestamp ON changes(timestamp);
		CREATE INDEX IF NOT EXISTS idx_changes_category  ON changes(category);
		CREATE INDEX IF NOT EXISTS idx_components_component ON change_components(component);
	`
	_, err := db.Exec(schema)
	return err
}

// Append durably inserts a change record and its component index rows in
// one transaction.
func (s *SQLiteStore) Append(projectRoot string, c *ArchitectureChange) error {
	db, err := s.dbFor(projectRoot)
	if err != nil {
		return trackerr.NewStorage("open change database", err)
	}

	payload, err := json.Marshal(c)
	if err != nil {
		return trackerr.NewStorage("marshal change record", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return trackerr.NewStorage("begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO changes (id, timestamp, type, category, payload) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.Timestamp, string(c.Type), string(c.Category), string(payload),
	); err != nil {
		return trackerr.NewStorage("insert change", err)
	}

	for _, comp := range c.Impact.AffectedComponents {
		if _, err := tx.Exec(
			`INSERT OR IGNORE INTO change_components (change_id, component) VALUES (?, ?)`,
			c.ID, comp,
		); err != nil {
			return trackerr.NewStorage("insert change component", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return trackerr.NewStorage("commit change", err)
	}
	return nil
}

// Get reads a specific change record by id.
func (s *SQLiteStore) Get(projectRoot, id string) (*ArchitectureChange, error) {
	db, err := s.dbFor(projectRoot)
	if err != nil {
		return nil, trackerr.NewStorage("open change database", err)
	}

	var payload string
	err = db.QueryRow(`SELECT payload FROM changes WHERE id = ?`, id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, trackerr.NewNotFound("change", id)
	}
	if err != nil {
		return nil, trackerr.NewStorage("query change", err)
	}

	var c ArchitectureChange
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		return nil, trackerr.NewStorage("parse change record "+id, err)
	}
	return &c, nil
}

// List returns recorded changes matching the filter, in timestamp order.
func (s *SQLiteStore) List(projectRoot string, f ListFilter) ([]ArchitectureChange, error) {
	db, err := s.dbFor(projectRoot)
	if err != nil {
		return nil, trackerr.NewStorage("open change database", err)
	}

	query := `SELECT c.payload FROM changes c`
	var where []string
	var args []any

	if f.Component != "" {
		query += ` JOIN change_components cc ON cc.change_id = c.id`
		where = append(where, `cc.component = ?`)
		args = append(args, f.Component)
	}
	if !f.Since.IsZero() {
		where = append(where, `c.timestamp >= ?`)
		args = append(args, f.Since.UTC().Format(time.RFC3339))
	}
	if !f.Until.IsZero() {
		where = append(where, `c.timestamp <= ?`)
		args = append(args, f.Until.UTC().Format(time.RFC3339))
	}
	if f.Category != "" {
		where = append(where, `c.category = ?`)
		args = append(args, string(f.Category))
	}

	for i, w := range where {
		if i == 0 {
			query += ` WHERE ` + w
		} else {
			query += ` AND ` + w
		}
	}
	query += ` ORDER BY c.timestamp ASC, c.id ASC`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, trackerr.NewStorage("query changes", err)
	}
	defer rows.Close()

	var result []ArchitectureChange
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, trackerr.NewStorage("scan change row", err)
		}
		var c ArchitectureChange
		if err := json.Unmarshal([]byte(payload), &c); err != nil {
			continue
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, trackerr.NewStorage("iterate change rows", err)
	}
	return result, nil
}
