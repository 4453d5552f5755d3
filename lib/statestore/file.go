// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package statestore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/wardenhq/warden/lib/atomicfile"
)

// FileStore keeps one JSON document per record under a state
// directory. Writes are atomic (temporary file, fsync, rename), so a
// crash mid-save leaves the previous record intact rather than a
// truncated file.
type FileStore struct {
	directory string
	logger    *slog.Logger
}

// NewFileStore creates a file-backed store rooted at directory,
// creating it if needed. The directory is created with mode 0700:
// counters are not secret, but nothing else needs to read them.
func NewFileStore(directory string, logger *slog.Logger) (*FileStore, error) {
	if directory == "" {
		return nil, fmt.Errorf("statestore: directory is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if err := os.MkdirAll(directory, 0700); err != nil {
		return nil, fmt.Errorf("statestore: creating %s: %w", directory, err)
	}
	return &FileStore{directory: directory, logger: logger}, nil
}

func (s *FileStore) path(key, kind string) string {
	return filepath.Join(s.directory, sanitizeKey(key)+"."+kind+".json")
}

// LoadCounter reads the failure counter for key. A missing or
// unreadable record returns the zero counter: corrupt state resets
// the monitor, never crashes it.
func (s *FileStore) LoadCounter(ctx context.Context, key string) (FailureCounter, error) {
	return loadRecord[FailureCounter](s, key, kindCounter), nil
}

// SaveCounter atomically writes the failure counter for key.
func (s *FileStore) SaveCounter(ctx context.Context, key string, counter FailureCounter) error {
	return s.save(key, kindCounter, counter)
}

// LoadDrift reads the drift state for key. Missing or unreadable
// records return the zero state.
func (s *FileStore) LoadDrift(ctx context.Context, key string) (DriftState, error) {
	return loadRecord[DriftState](s, key, kindDrift), nil
}

// SaveDrift atomically writes the drift state for key.
func (s *FileStore) SaveDrift(ctx context.Context, key string, state DriftState) error {
	return s.save(key, kindDrift, state)
}

// Close is a no-op for the file backend.
func (s *FileStore) Close() error { return nil }

// loadRecord reads and decodes one record, returning the zero value
// for missing or corrupt files. Decoding into a local value first
// guarantees a corrupt file cannot leave a half-populated record.
func loadRecord[T any](s *FileStore, key, kind string) T {
	var zero T

	path := s.path(key, kind)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("unreadable state record, resetting",
				"path", path,
				"error", err,
			)
		}
		return zero
	}

	var decoded T
	if err := json.Unmarshal(data, &decoded); err != nil {
		s.logger.Warn("corrupt state record, resetting",
			"path", path,
			"error", err,
		)
		return zero
	}
	return decoded
}

func (s *FileStore) save(key, kind string, record any) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("statestore: marshaling %s record for %q: %w", kind, key, err)
	}
	data = append(data, '\n')

	if err := atomicfile.WriteFile(s.path(key, kind), data, 0600); err != nil {
		return fmt.Errorf("statestore: writing %s record for %q: %w", kind, key, err)
	}
	return nil
}
