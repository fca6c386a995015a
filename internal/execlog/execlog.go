// Package execlog keeps the most recent command validations for later
// inspection. Entries are appended in order and the oldest is dropped once
// the limit is reached.
package execlog

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/ppiankov/askiguard/internal/model"
	"github.com/ppiankov/askiguard/internal/store"
)

// StoreKey is the backend key of the persisted log.
const StoreKey = "execution_log"

// Log is a bounded, persisted execution log. Safe for concurrent use.
type Log struct {
	mu      sync.Mutex
	entries []model.ExecutionLogEntry
	backend store.Backend
	limit   int
}

// New creates an empty Log. A nil backend keeps the log in memory only.
func New(backend store.Backend, limit int) *Log {
	return &Log{backend: backend, limit: limit}
}

// Load restores persisted entries. A missing document is not an error.
func (l *Log) Load() error {
	if l.backend == nil {
		return nil
	}
	data, err := l.backend.Get(StoreKey)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("execlog: read: %w", err)
	}

	var entries []model.ExecutionLogEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("execlog: decode: %w", err)
	}

	l.mu.Lock()
	l.entries = l.bounded(entries)
	l.mu.Unlock()
	return nil
}

// Append adds an entry and persists the log.
func (l *Log) Append(entry model.ExecutionLogEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = l.bounded(append(l.entries, entry))
	l.persistLocked()
}

// Entries returns all entries, oldest first.
func (l *Log) Entries() []model.ExecutionLogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.entries)
}

// Recent returns up to n newest entries, oldest first.
func (l *Log) Recent(n int) []model.ExecutionLogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n <= 0 || n >= len(l.entries) {
		return slices.Clone(l.entries)
	}
	return slices.Clone(l.entries[len(l.entries)-n:])
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Clear removes all entries.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
	l.persistLocked()
}

func (l *Log) bounded(entries []model.ExecutionLogEntry) []model.ExecutionLogEntry {
	if l.limit <= 0 || len(entries) <= l.limit {
		return entries
	}
	return slices.Clone(entries[len(entries)-l.limit:])
}

func (l *Log) persistLocked() {
	if l.backend == nil {
		return
	}
	entries := l.entries
	if entries == nil {
		entries = []model.ExecutionLogEntry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		slog.Warn("execlog: encode failed", "error", err)
		return
	}
	if err := l.backend.Put(StoreKey, data); err != nil {
		slog.Warn("execlog: persist failed", "error", err)
	}
}
