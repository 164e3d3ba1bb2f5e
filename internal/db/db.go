// Package db opens the workspace-local SQLite store.
package db

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

const storeFile = "tripline.db"

// Config locates the store. An empty Workspace means the current directory.
type Config struct {
	Workspace string
}

// Connection pragmas. busy_timeout keeps a second writer queued instead of
// failing with SQLITE_BUSY.
var pragmas = []string{
	"foreign_keys(1)",
	"busy_timeout(5000)",
}

// Path returns the store location inside a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, ".tripline", storeFile)
}

// EnsureWorkspace creates the workspace data directory if missing and
// returns it.
func EnsureWorkspace(workspace string) (string, error) {
	dir := filepath.Dir(Path(workspace))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

func dsn(path string) string {
	var b strings.Builder
	b.WriteString("file:")
	b.WriteString(path)
	b.WriteString("?cache=shared")
	for _, p := range pragmas {
		b.WriteString("&_pragma=")
		b.WriteString(p)
	}
	return b.String()
}

// Open creates the workspace directory if needed and opens the store.
// SQLite permits one writer at a time, so the pool is capped at a single
// connection.
func Open(cfg Config) (*sql.DB, error) {
	if _, err := EnsureWorkspace(cfg.Workspace); err != nil {
		return nil, err
	}
	conn, err := sql.Open("sqlite", dsn(Path(cfg.Workspace)))
	if err != nil {
		return nil, err
	}
	conn.SetMaxOpenConns(1)
	return conn, nil
}
