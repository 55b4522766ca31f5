package db

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"modernc.org/sqlite"
)

const (
	workspaceDir  = ".stageline"
	defaultDBName = "stageline.db"
)

func init() {
	// SQLite's LOWER only folds ASCII; fold(x) lowercases any script.
	sqlite.MustRegisterDeterministicScalarFunction("fold", 1, fold)
}

func fold(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	case nil:
		return nil, nil
	default:
		return v, nil
	}
}

type Config struct {
	Workspace string
	// Path overrides the database file location inside the workspace.
	Path        string
	BusyTimeout time.Duration
}

func dbPath(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, workspaceDir, defaultDBName)
}

// EnsureWorkspace creates the workspace state directory if missing.
func EnsureWorkspace(workspace string) (string, error) {
	path := filepath.Join(workspace, workspaceDir)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", err
	}
	return path, nil
}

// Open opens the SQLite database with foreign keys on.
//
// The pool holds a single connection and transactions begin IMMEDIATE, so
// write transactions never interleave: two moves touching the same stage are
// applied one after the other, each seeing the other's committed positions.
func Open(cfg Config) (*sql.DB, error) {
	path := cfg.Path
	if path == "" {
		if _, err := EnsureWorkspace(cfg.Workspace); err != nil {
			return nil, err
		}
		path = dbPath(cfg.Workspace)
	} else if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	dsn := fmt.Sprintf("file:%s?_txlock=immediate&_pragma=foreign_keys(1)&_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)",
		path, busy.Milliseconds())
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	conn.SetMaxOpenConns(1)
	return conn, nil
}

// Path returns the db path for the workspace.
func Path(workspace string) string {
	return dbPath(workspace)
}
