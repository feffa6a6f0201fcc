// Package db owns the workspace state directory and the SQLite connection.
// Everything the engine persists lives under <workspace>/.minoil: the order
// database and the backup snapshots next to it.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const (
	stateDir = ".minoil"
	dbFile   = "minoil.db"
)

type Config struct {
	Workspace string
}

// Dir returns the hidden state directory for a workspace.
func Dir(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, stateDir)
}

// Path returns the order database file path for a workspace.
func Path(workspace string) string {
	return filepath.Join(Dir(workspace), dbFile)
}

// EnsureWorkspace creates the state directory if missing.
func EnsureWorkspace(workspace string) (string, error) {
	dir := Dir(workspace)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// Open opens the workspace database. Foreign keys are enforced so note rows
// cascade with their order, WAL keeps the backup goroutine's reads from
// blocking transition writes, and the busy timeout rides out the brief
// writer lock.
func Open(cfg Config) (*sql.DB, error) {
	if _, err := EnsureWorkspace(cfg.Workspace); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf(
		"file:%s?cache=shared&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)",
		Path(cfg.Workspace),
	)
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// modernc sqlite serializes writers anyway; one pooled connection avoids
	// SQLITE_BUSY between the request path and the backup goroutine.
	conn.SetMaxOpenConns(1)
	return conn, nil
}
