// StreamForge Controller — IPTV playlist automation engine
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store implements the Config Store (spec §4 "Persisted state
// layout"): one JSON file per concern, written atomically
// (write-temp-then-rename) via renameio, read back with missing keys
// falling back to defaults. Every mutable blob is guarded by a
// per-store mutex; readers see a consistent snapshot and writes only
// become visible in memory after they have durably landed on disk.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/google/renameio/v2"

	"github.com/streamforge/controller/internal/logging"
)

// JSONStore is a mutex-protected, disk-backed blob of type T. T is
// expected to be a struct with `json` tags; a zero-value T is taken
// as "all defaults" so callers should pass a fully-populated default
// into NewJSONStore rather than relying on Go's zero value.
type JSONStore[T any] struct {
	mu       sync.RWMutex
	path     string
	validate *validator.Validate
	value    T
}

// NewJSONStore opens (or lazily creates) the JSON file at dir/filename.
// If the file exists, it is decoded over top of defaultValue so that
// keys absent from disk retain their default. If it does not exist,
// defaultValue is persisted immediately so subsequent reads see a
// real file on disk.
func NewJSONStore[T any](dir, filename string, defaultValue T, validate *validator.Validate) (*JSONStore[T], error) {
	s := &JSONStore[T]{
		path:     filepath.Join(dir, filename),
		validate: validate,
		value:    defaultValue,
	}

	raw, err := os.ReadFile(s.path)
	switch {
	case err == nil:
		if err := json.Unmarshal(raw, &s.value); err != nil {
			return nil, fmt.Errorf("%w: decode %s: %v", ErrPersistence, filename, err)
		}
	case os.IsNotExist(err):
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: create store dir: %v", ErrPersistence, err)
		}
		if err := s.persist(defaultValue); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: read %s: %v", ErrPersistence, filename, err)
	}

	return s, nil
}

// Get returns a copy of the current in-memory value.
func (s *JSONStore[T]) Get() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Set validates, persists, and — only on successful persistence —
// swaps v into memory. On validation or persistence failure the
// in-memory value is left untouched.
func (s *JSONStore[T]) Set(v T) error {
	if s.validate != nil {
		if err := s.validate.Struct(v); err != nil {
			return fmt.Errorf("%w: %v", ErrValidation, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.persist(v); err != nil {
		return err
	}
	s.value = v
	return nil
}

// Update reads the current value, applies fn, and writes the result
// back atomically under the store's lock — use this for
// read-modify-write operations (e.g. bulk field edits) that must not
// race with a concurrent Set/Update.
func (s *JSONStore[T]) Update(fn func(current T) (T, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := fn(s.value)
	if err != nil {
		return err
	}
	if s.validate != nil {
		if err := s.validate.Struct(next); err != nil {
			return fmt.Errorf("%w: %v", ErrValidation, err)
		}
	}
	if err := s.persist(next); err != nil {
		return err
	}
	s.value = next
	return nil
}

// persist writes v to disk via write-temp-then-rename. Caller must
// hold s.mu for writers; it is also called unlocked from
// NewJSONStore before s is published to any other goroutine.
func (s *JSONStore[T]) persist(v T) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", ErrPersistence, s.path, err)
	}

	pending, err := renameio.NewPendingFile(s.path)
	if err != nil {
		return fmt.Errorf("%w: open pending file for %s: %v", ErrPersistence, s.path, err)
	}
	defer func() {
		if cerr := pending.Cleanup(); cerr != nil {
			logging.Debug().Err(cerr).Str("path", s.path).Msg("cleanup pending config file")
		}
	}()

	if _, err := pending.Write(data); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrPersistence, s.path, err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("%w: replace %s: %v", ErrPersistence, s.path, err)
	}
	return nil
}
