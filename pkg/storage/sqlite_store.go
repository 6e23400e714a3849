package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/small-frappuccino/zealox/pkg/log"
	_ "modernc.org/sqlite"
)

var (
	// ErrNotInitialized is returned when the store is used before Init.
	ErrNotInitialized = errors.New("store not initialized")
	// ErrListNotFound is returned when no list matches the lookup.
	ErrListNotFound = errors.New("list not found")
	// ErrListExists is returned when a guild already has a list with that name.
	ErrListExists = errors.New("list already exists")
)

// Store wraps the embedded SQLite database holding member lists and their roles.
// It uses modernc.org/sqlite for CGO-less builds.
type Store struct {
	dbPath string
	db     *sql.DB
}

// NewStore creates a new Store pointing to dbPath. Call Init() before using it.
func NewStore(dbPath string) *Store {
	return &Store{dbPath: dbPath}
}

// Path returns the database file path.
func (s *Store) Path() string { return s.dbPath }

// Init opens the SQLite database, configures pragmas, and ensures the schema exists.
func (s *Store) Init() error {
	if s.db != nil {
		return nil
	}
	if s.dbPath == "" {
		return fmt.Errorf("db path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(s.dbPath), 0o755); err != nil {
		return fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", s.dbPath)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	// Pragmas apply per connection.
	db.SetMaxOpenConns(1)

	pragmas := []struct{ stmt, what string }{
		{`PRAGMA journal_mode=WAL;`, "set WAL"},
		{`PRAGMA foreign_keys=ON;`, "enable FKs"},
		{`PRAGMA busy_timeout=5000;`, "set busy_timeout"},
		{`PRAGMA synchronous=NORMAL;`, "set synchronous"},
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p.stmt); err != nil {
			_ = db.Close()
			return fmt.Errorf("%s: %w", p.what, err)
		}
	}

	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	log.DatabaseLogger().Info("🔌 Database connected", "path", s.dbPath)
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	log.DatabaseLogger().Info("🔌 Database connection closed", "path", s.dbPath)
	return err
}

func ensureSchema(db *sql.DB) error {
	const createLists = `
CREATE TABLE IF NOT EXISTS lists (
  id                   INTEGER PRIMARY KEY AUTOINCREMENT,
  guild_id             TEXT NOT NULL,
  name                 TEXT NOT NULL,
  title                TEXT NOT NULL,
  color                TEXT NOT NULL,
  sorting_alphabetical INTEGER DEFAULT 0,
  message_id           TEXT,
  channel_id           TEXT
);
CREATE INDEX IF NOT EXISTS idx_lists_guild_name ON lists(guild_id, name);`

	const createListRoles = `
CREATE TABLE IF NOT EXISTS list_roles (
  id      INTEGER PRIMARY KEY AUTOINCREMENT,
  list_id INTEGER NOT NULL,
  role_id TEXT NOT NULL,
  FOREIGN KEY (list_id) REFERENCES lists(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_list_roles_list ON list_roles(list_id);`

	if _, err := db.Exec(createLists); err != nil {
		return fmt.Errorf("create lists: %w", err)
	}
	if _, err := db.Exec(createListRoles); err != nil {
		return fmt.Errorf("create list_roles: %w", err)
	}

	migrations := []struct{ table, column, ddl string }{
		{"list_roles", "custom_name", `ALTER TABLE list_roles ADD COLUMN custom_name TEXT`},
		{"lists", "show_usernames", `ALTER TABLE lists ADD COLUMN show_usernames INTEGER DEFAULT 0`},
	}
	for _, m := range migrations {
		cols, err := tableColumns(db, m.table)
		if err != nil {
			return err
		}
		if slices.Contains(cols, m.column) {
			continue
		}
		if _, err := db.Exec(m.ddl); err != nil {
			return fmt.Errorf("migrate %s.%s: %w", m.table, m.column, err)
		}
		log.DatabaseLogger().Info("🔄 Migration: column added", "table", m.table, "column", m.column)
	}
	return nil
}

func tableColumns(db *sql.DB, table string) ([]string, error) {
	rows, err := db.Query(`SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return nil, fmt.Errorf("table info %s: %w", table, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}
