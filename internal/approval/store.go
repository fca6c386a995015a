// Package approval tracks confirmation requests for commands that the
// approval level flagged. The validator only files requests; whoever
// executes commands checks and consumes them.
package approval

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ppiankov/askiguard/internal/store"
)

// keyPrefix namespaces approval documents in a shared backend.
const keyPrefix = "approval."

// Status represents the state of an approval request.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusDenied   Status = "denied"
	StatusConsumed Status = "consumed"
	StatusExpired  Status = "expired"
)

// Request describes a command awaiting confirmation.
type Request struct {
	CommandID   string `json:"command_id"`
	Title       string `json:"title"`
	ScheduledAt string `json:"scheduled_at"`
	Reason      string `json:"reason"`
	Verifier    string `json:"verifier"`
	RiskScore   int    `json:"risk_score"`
}

// Approval represents a single approval request and its state.
type Approval struct {
	Request
	Status     Status     `json:"status"`
	ResolvedBy string     `json:"resolved_by,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// ErrNotFound is returned for unknown command IDs.
var ErrNotFound = errors.New("approval not found")

// Store manages approval documents in a store backend.
type Store struct {
	backend store.Backend
	mu      sync.Mutex
	now     func() time.Time
}

// NewStore creates a Store on top of backend.
func NewStore(backend store.Backend) *Store {
	return &Store{backend: backend, now: time.Now}
}

// NewFileStore creates a Store backed by JSON files in dir.
func NewFileStore(dir string) (*Store, error) {
	backend, err := store.NewFileStore(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot create approval directory: %w", err)
	}
	return NewStore(backend), nil
}

// File creates a pending approval. It reports false without changing
// anything when a request for the command already exists.
func (s *Store) File(req Request) (bool, error) {
	if req.CommandID == "" {
		return false, fmt.Errorf("approval request needs a command id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.read(req.CommandID); err == nil {
		return false, nil
	} else if !errors.Is(err, ErrNotFound) {
		return false, err
	}

	a := Approval{
		Request:   req,
		Status:    StatusPending,
		CreatedAt: s.now().UTC(),
	}
	return true, s.write(a)
}

// Approve marks an approval as approved. If duration > 0 the approval
// expires after it; otherwise it is one-time and consumed on first use.
func (s *Store) Approve(id, by string, duration time.Duration) error {
	return s.resolve(id, func(a *Approval, now time.Time) error {
		if a.Status != StatusPending {
			return fmt.Errorf("approval %q is %s", id, a.Status)
		}
		a.Status = StatusApproved
		a.ResolvedBy = by
		a.ResolvedAt = &now
		if duration > 0 {
			exp := now.Add(duration)
			a.ExpiresAt = &exp
		}
		return nil
	})
}

// Deny marks an approval as denied.
func (s *Store) Deny(id, by string) error {
	return s.resolve(id, func(a *Approval, now time.Time) error {
		if a.Status != StatusPending {
			return fmt.Errorf("approval %q is %s", id, a.Status)
		}
		a.Status = StatusDenied
		a.ResolvedBy = by
		a.ResolvedAt = &now
		return nil
	})
}

// Consume marks an approved request as used.
func (s *Store) Consume(id string) error {
	return s.resolve(id, func(a *Approval, now time.Time) error {
		switch a.Status {
		case StatusConsumed:
			return fmt.Errorf("approval %q already consumed", id)
		case StatusApproved:
		default:
			return fmt.Errorf("approval %q is %s", id, a.Status)
		}
		a.Status = StatusConsumed
		a.ResolvedAt = &now
		return nil
	})
}

// Check returns the current status of an approval. Approved entries past
// their deadline are reported and stored as expired.
func (s *Store) Check(id string) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.read(id)
	if err != nil {
		return "", err
	}
	if s.expire(a) {
		if err := s.write(*a); err != nil {
			return "", err
		}
	}
	return a.Status, nil
}

// Get returns the full approval record.
func (s *Store) Get(id string) (*Approval, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(id)
}

// List returns all approvals, optionally filtered by status.
func (s *Store) List(status Status) ([]Approval, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys, err := s.backend.Keys(keyPrefix)
	if err != nil {
		return nil, fmt.Errorf("list approvals: %w", err)
	}

	var out []Approval
	for _, k := range keys {
		a, err := s.read(strings.TrimPrefix(k, keyPrefix))
		if err != nil {
			continue
		}
		s.expire(a)
		if status != "" && a.Status != status {
			continue
		}
		out = append(out, *a)
	}
	return out, nil
}

// Cleanup removes every approval that is no longer pending.
func (s *Store) Cleanup() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys, err := s.backend.Keys(keyPrefix)
	if err != nil {
		return 0, fmt.Errorf("list approvals: %w", err)
	}

	removed := 0
	var errs []error
	for _, k := range keys {
		a, err := s.read(strings.TrimPrefix(k, keyPrefix))
		if err == nil && a.Status == StatusPending {
			continue
		}
		if err := s.backend.Delete(k); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

func (s *Store) resolve(id string, apply func(a *Approval, now time.Time) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.read(id)
	if err != nil {
		return err
	}
	s.expire(a)
	if err := apply(a, s.now().UTC()); err != nil {
		return err
	}
	return s.write(*a)
}

func (s *Store) expire(a *Approval) bool {
	if a.Status == StatusApproved && a.ExpiresAt != nil && s.now().UTC().After(*a.ExpiresAt) {
		a.Status = StatusExpired
		return true
	}
	return false
}

func (s *Store) read(id string) (*Approval, error) {
	data, err := s.backend.Get(keyPrefix + id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
		}
		return nil, err
	}

	var a Approval
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode approval %q: %w", id, err)
	}
	return &a, nil
}

func (s *Store) write(a Approval) error {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return err
	}
	return s.backend.Put(keyPrefix+a.CommandID, data)
}
