// Package approval implements the pending-request registry behind
// director approvals.
//
// Every director-gated proposal (a staging request, a challenge outcome)
// is registered here with a one-shot fallback timer. An explicit decision
// and the timer both try to consume the entry through Take; the mutex
// around the entry map makes Take the single linearization point, so
// exactly one of them proceeds and the loser simply observes a miss.
package approval

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/louisbranch/stagecraft/internal/observability"
)

// ErrClosed indicates the registry no longer accepts registrations.
var ErrClosed = errors.New("approval registry is closed")

// Kind identifies what a pending entry proposes.
type Kind string

const (
	// KindStaging gates NPC presence snapshots.
	KindStaging Kind = "staging"
	// KindChallenge gates challenge outcome broadcasts.
	KindChallenge Kind = "challenge"
)

// Entry is a pending proposal awaiting a decision.
type Entry struct {
	ID        string
	Kind      Kind
	WorldID   string
	Payload   any
	CreatedAt time.Time
	Deadline  time.Time
}

type liveEntry struct {
	Entry
	timer *time.Timer
}

// Registry holds pending proposals for one server process.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*liveEntry
	clock   func() time.Time
	closed  bool
}

// NewRegistry builds an empty registry. A nil clock defaults to time.Now.
func NewRegistry(clock func() time.Time) *Registry {
	if clock == nil {
		clock = time.Now
	}
	return &Registry{
		entries: make(map[string]*liveEntry),
		clock:   clock,
	}
}

// Register stores a proposal under a fresh request ID and arms a one-shot
// timer. If no explicit decision consumes the entry before the timeout,
// onTimeout receives the consumed entry; if a decision wins the race the
// timer callback observes a miss and does nothing.
func (r *Registry) Register(kind Kind, worldID string, payload any, timeout time.Duration, onTimeout func(Entry)) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return "", ErrClosed
	}

	requestID := uuid.NewString()
	now := r.clock().UTC()
	live := &liveEntry{
		Entry: Entry{
			ID:        requestID,
			Kind:      kind,
			WorldID:   worldID,
			Payload:   payload,
			CreatedAt: now,
			Deadline:  now.Add(timeout),
		},
	}
	live.timer = time.AfterFunc(timeout, func() {
		entry, ok := r.take(requestID, "timeout")
		if !ok {
			return
		}
		if onTimeout != nil {
			onTimeout(entry)
		}
	})
	r.entries[requestID] = live

	observability.ApprovalsRegistered.Inc()
	observability.ApprovalsPending.Set(float64(len(r.entries)))
	return requestID, nil
}

// Take atomically removes and returns the entry for an explicit decision.
// A false result means the entry was never registered or was already
// consumed; callers treat that as "already decided", not an error.
func (r *Registry) Take(requestID string) (Entry, bool) {
	return r.take(requestID, "decision")
}

func (r *Registry) take(requestID, path string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	live, ok := r.entries[requestID]
	if !ok {
		return Entry{}, false
	}
	delete(r.entries, requestID)
	// Stopping a timer that already fired is harmless; the callback
	// re-enters take and misses.
	live.timer.Stop()

	observability.ApprovalsResolved.WithLabelValues(path).Inc()
	observability.ApprovalsPending.Set(float64(len(r.entries)))
	return live.Entry, true
}

// Get returns an entry without consuming it, for flows that enrich a
// pending request (regenerated suggestions, outcome branches).
func (r *Registry) Get(requestID string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	live, ok := r.entries[requestID]
	if !ok {
		return Entry{}, false
	}
	return live.Entry, true
}

// Len reports the number of entries currently pending.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Snapshot returns a copy of all pending entries, for the director UI.
func (r *Registry) Snapshot() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := make([]Entry, 0, len(r.entries))
	for _, live := range r.entries {
		entries = append(entries, live.Entry)
	}
	return entries
}

// Close stops all timers and drops every pending entry. Further
// registrations fail with ErrClosed.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.closed = true
	for id, live := range r.entries {
		live.timer.Stop()
		delete(r.entries, id)
	}
	observability.ApprovalsPending.Set(0)
}
