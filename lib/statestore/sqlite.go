// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package statestore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// schema creates the single table holding all monitor records. Records
// are stored as JSON documents so the file backend and the SQLite
// backend share one serialization.
const schema = `
CREATE TABLE IF NOT EXISTS monitor_state (
	key        TEXT NOT NULL,
	kind       TEXT NOT NULL,
	value      TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (key, kind)
);
`

// SQLiteStore keeps all monitor records in one WAL-mode database.
// Preferable to FileStore when many monitors share a host: one file
// to back up, and per-key upserts are atomic by construction.
type SQLiteStore struct {
	pool   *sqlitex.Pool
	logger *slog.Logger
	path   string
}

// OpenSQLite opens (creating if necessary) the state database at
// path. Controllers are short-lived single-threaded processes, so the
// pool holds a single connection.
func OpenSQLite(path string, logger *slog.Logger) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("statestore: path is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	pool, err := sqlitex.NewPool(path, sqlitex.PoolOptions{
		PoolSize: 1,
		PrepareConn: func(conn *sqlite.Conn) error {
			// WAL for crash durability without fsync-per-commit
			// overhead; busy timeout instead of immediate
			// SQLITE_BUSY if another invocation overlaps.
			pragmas := []string{
				"PRAGMA journal_mode=WAL",
				"PRAGMA synchronous=NORMAL",
				"PRAGMA busy_timeout=5000",
			}
			for _, pragma := range pragmas {
				if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
					return fmt.Errorf("%s: %w", pragma, err)
				}
			}
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("statestore: opening %s: %w", path, err)
	}

	return &SQLiteStore{pool: pool, logger: logger, path: path}, nil
}

// LoadCounter reads the failure counter for key. Missing or corrupt
// rows return the zero counter.
func (s *SQLiteStore) LoadCounter(ctx context.Context, key string) (FailureCounter, error) {
	raw, err := s.loadRaw(ctx, key, kindCounter)
	if err != nil {
		return FailureCounter{}, err
	}

	var counter FailureCounter
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &counter); err != nil {
			s.logger.Warn("corrupt counter row, resetting", "key", key, "error", err)
			return FailureCounter{}, nil
		}
	}
	return counter, nil
}

// SaveCounter upserts the failure counter for key.
func (s *SQLiteStore) SaveCounter(ctx context.Context, key string, counter FailureCounter) error {
	return s.save(ctx, key, kindCounter, counter, counter.LastUpdated.UTC().Format("2006-01-02T15:04:05Z"))
}

// LoadDrift reads the drift state for key. Missing or corrupt rows
// return the zero state.
func (s *SQLiteStore) LoadDrift(ctx context.Context, key string) (DriftState, error) {
	raw, err := s.loadRaw(ctx, key, kindDrift)
	if err != nil {
		return DriftState{}, err
	}

	var state DriftState
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &state); err != nil {
			s.logger.Warn("corrupt drift row, resetting", "key", key, "error", err)
			return DriftState{}, nil
		}
	}
	return state, nil
}

// SaveDrift upserts the drift state for key.
func (s *SQLiteStore) SaveDrift(ctx context.Context, key string, state DriftState) error {
	return s.save(ctx, key, kindDrift, state, state.LastRepairAttempt.UTC().Format("2006-01-02T15:04:05Z"))
}

// Close closes the underlying connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.pool.Close(); err != nil {
		return fmt.Errorf("statestore: closing %s: %w", s.path, err)
	}
	return nil
}

// loadRaw returns the stored JSON document for (key, kind), or the
// empty string when no row exists. Decoding is left to the caller so
// a corrupt row cannot leave a half-populated record.
func (s *SQLiteStore) loadRaw(ctx context.Context, key, kind string) (string, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return "", fmt.Errorf("statestore: take connection: %w", err)
	}
	defer s.pool.Put(conn)

	var raw string
	err = sqlitex.Execute(conn, `SELECT value FROM monitor_state WHERE key = ? AND kind = ?`, &sqlitex.ExecOptions{
		Args: []any{key, kind},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			raw = stmt.ColumnText(0)
			return nil
		},
	})
	if err != nil {
		return "", fmt.Errorf("statestore: reading %s record for %q: %w", kind, key, err)
	}
	return raw, nil
}

func (s *SQLiteStore) save(ctx context.Context, key, kind string, record any, updatedAt string) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("statestore: marshaling %s record for %q: %w", kind, key, err)
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("statestore: take connection: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`INSERT INTO monitor_state (key, kind, value, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (key, kind) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		&sqlitex.ExecOptions{
			Args: []any{key, kind, string(data), updatedAt},
		})
	if err != nil {
		return fmt.Errorf("statestore: writing %s record for %q: %w", kind, key, err)
	}
	return nil
}
