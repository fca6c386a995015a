// Package rules holds the mutable half of the output rule database:
// learned patterns, statistics and the block log. The shipped pattern tables
// live in package patterns and are never persisted, so upgraded defaults
// always apply.
package rules

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/ppiankov/askiguard/internal/config"
	"github.com/ppiankov/askiguard/internal/model"
	"github.com/ppiankov/askiguard/internal/patterns"
	"github.com/ppiankov/askiguard/internal/store"
)

// CurrentVersion is the schema version written by this package.
const CurrentVersion = 1

// StoreKey is the backend key of the persisted state.
const StoreKey = "rules"

// Stats counts output checks.
type Stats struct {
	TotalChecked int                  `json:"total_checked"`
	Blocked      int                  `json:"blocked"`
	Passed       int                  `json:"passed"`
	ByReason     map[model.Reason]int `json:"by_reason"`
}

// BlockEntry records one blocked text.
type BlockEntry struct {
	Text           string       `json:"text"`
	Reason         model.Reason `json:"reason"`
	MatchedPattern string       `json:"matched_pattern,omitempty"`
	Timestamp      time.Time    `json:"timestamp"`
}

// State is the persisted form of the database.
type State struct {
	Version             int          `json:"version"`
	LearnedBadPatterns  []string     `json:"learned_bad_patterns"`
	LearnedGoodPatterns []string     `json:"learned_good_patterns"`
	Stats               Stats        `json:"stats"`
	BlockLog            []BlockEntry `json:"block_log"`
	UpdatedAt           time.Time    `json:"updated_at"`
}

func defaultState() State {
	return State{
		Version:             CurrentVersion,
		LearnedBadPatterns:  []string{},
		LearnedGoodPatterns: []string{},
		Stats:               Stats{ByReason: map[model.Reason]int{}},
		BlockLog:            []BlockEntry{},
	}
}

// Database is the process-wide rule state. All methods are safe for
// concurrent use; every read-modify-write happens under one mutex.
type Database struct {
	mu      sync.Mutex
	state   State
	backend store.Backend
	cfg     config.RulesConfig
	now     func() time.Time
}

// New creates a Database with default state. Call Load to restore
// persisted state. A nil backend disables persistence.
func New(backend store.Backend, cfg config.RulesConfig) *Database {
	return &Database{
		state:   defaultState(),
		backend: backend,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Load restores persisted state merged over the defaults. A missing
// document is not an error. On error the database keeps its defaults.
func (d *Database) Load() error {
	if d.backend == nil {
		return nil
	}
	data, err := d.backend.Get(StoreKey)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("rules: read state: %w", err)
	}

	st, err := decodeState(data)
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.state = d.bounded(st)
	d.mu.Unlock()
	return nil
}

func decodeState(data []byte) (State, error) {
	st := defaultState()
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, fmt.Errorf("rules: decode state: %w", err)
	}
	if st.Stats.ByReason == nil {
		st.Stats.ByReason = map[model.Reason]int{}
	}
	if st.LearnedBadPatterns == nil {
		st.LearnedBadPatterns = []string{}
	}
	if st.LearnedGoodPatterns == nil {
		st.LearnedGoodPatterns = []string{}
	}
	if st.BlockLog == nil {
		st.BlockLog = []BlockEntry{}
	}
	st.Version = CurrentVersion
	return st, nil
}

// bounded trims every ring buffer to the configured limits, oldest first.
func (d *Database) bounded(st State) State {
	st.LearnedBadPatterns = keepLast(st.LearnedBadPatterns, d.cfg.LearnedLimit)
	st.LearnedGoodPatterns = keepLast(st.LearnedGoodPatterns, d.cfg.LearnedLimit)
	st.BlockLog = keepLast(st.BlockLog, d.cfg.BlockLogLimit)
	return st
}

func keepLast[T any](s []T, limit int) []T {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	return slices.Clone(s[len(s)-limit:])
}

// RecordPass counts a passed check. State is persisted every
// PersistEvery checks.
func (d *Database) RecordPass() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.state.Stats.TotalChecked++
	d.state.Stats.Passed++
	if d.cfg.PersistEvery > 0 && d.state.Stats.TotalChecked%d.cfg.PersistEvery == 0 {
		d.persistLocked()
	}
}

// RecordBlock counts a blocked check, appends it to the block log and
// persists immediately.
func (d *Database) RecordBlock(text string, reason model.Reason, matched string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.state.Stats.TotalChecked++
	d.state.Stats.Blocked++
	d.state.Stats.ByReason[reason]++
	d.state.BlockLog = append(d.state.BlockLog, BlockEntry{
		Text:           truncateRunes(text, d.cfg.BlockLogTextLimit),
		Reason:         reason,
		MatchedPattern: matched,
		Timestamp:      d.now().UTC(),
	})
	d.state.BlockLog = keepLast(d.state.BlockLog, d.cfg.BlockLogLimit)
	d.persistLocked()
}

// MatchLearnedGood returns the first learned good pattern in folded text.
func (d *Database) MatchLearnedGood(folded string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return patterns.FirstContained(folded, d.state.LearnedGoodPatterns)
}

// MatchLearnedBad returns the first learned bad pattern in folded text.
func (d *Database) MatchLearnedBad(folded string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return patterns.FirstContained(folded, d.state.LearnedBadPatterns)
}

// AddBadPattern teaches a pattern that must block output. It returns false
// when the pattern is too short or already known.
func (d *Database) AddBadPattern(pattern, source string) bool {
	return d.learn(&d.state.LearnedBadPatterns, "bad", pattern, source)
}

// AddGoodPattern teaches a pattern that lets output pass immediately.
func (d *Database) AddGoodPattern(pattern, source string) bool {
	return d.learn(&d.state.LearnedGoodPatterns, "good", pattern, source)
}

// RemoveBadPattern forgets a learned bad pattern.
func (d *Database) RemoveBadPattern(pattern string) bool {
	return d.forget(&d.state.LearnedBadPatterns, "bad", pattern)
}

// RemoveGoodPattern forgets a learned good pattern.
func (d *Database) RemoveGoodPattern(pattern string) bool {
	return d.forget(&d.state.LearnedGoodPatterns, "good", pattern)
}

func (d *Database) learn(list *[]string, kind, pattern, source string) bool {
	n := patterns.Normalize(pattern)
	if utf8.RuneCountInString(n) < d.cfg.MinPatternLength {
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if slices.Contains(*list, n) {
		return false
	}
	*list = keepLast(append(*list, n), d.cfg.LearnedLimit)
	d.persistLocked()

	slog.Info("learned pattern added", "kind", kind, "pattern", n, "source", source)
	return true
}

func (d *Database) forget(list *[]string, kind, pattern string) bool {
	n := patterns.Normalize(pattern)

	d.mu.Lock()
	defer d.mu.Unlock()

	i := slices.Index(*list, n)
	if i < 0 {
		return false
	}
	*list = slices.Delete(*list, i, i+1)
	d.persistLocked()

	slog.Info("learned pattern removed", "kind", kind, "pattern", n)
	return true
}

// Snapshot returns a deep copy of the current state.
func (d *Database) Snapshot() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return cloneState(d.state)
}

// Stats returns a copy of the counters.
func (d *Database) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.state.Stats
	s.ByReason = maps.Clone(s.ByReason)
	return s
}

// Export serializes the state as indented JSON.
func (d *Database) Export() ([]byte, error) {
	st := d.Snapshot()
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("rules: encode state: %w", err)
	}
	return data, nil
}

// Import replaces the state with an exported document and persists it.
func (d *Database) Import(data []byte) error {
	st, err := decodeState(data)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = d.bounded(st)
	d.persistLocked()
	return nil
}

// Reset restores the default state and persists it.
func (d *Database) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = defaultState()
	d.persistLocked()
}

// Flush persists the current state regardless of batching.
func (d *Database) Flush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.persistLocked()
}

// persistLocked writes the state. Failures are logged and swallowed: a
// validation decision never depends on storage.
func (d *Database) persistLocked() {
	if d.backend == nil {
		return
	}
	d.state.UpdatedAt = d.now().UTC()
	data, err := json.Marshal(d.state)
	if err != nil {
		slog.Warn("rules: encode state failed", "error", err)
		return
	}
	if err := d.backend.Put(StoreKey, data); err != nil {
		slog.Warn("rules: persist failed", "error", err)
	}
}

func cloneState(st State) State {
	st.LearnedBadPatterns = slices.Clone(st.LearnedBadPatterns)
	st.LearnedGoodPatterns = slices.Clone(st.LearnedGoodPatterns)
	st.BlockLog = slices.Clone(st.BlockLog)
	st.Stats.ByReason = maps.Clone(st.Stats.ByReason)
	return st
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
