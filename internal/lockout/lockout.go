// Package lockout tracks cooldown and penalty windows per community member
// and action kind.
//
// State is process-lifetime only. A restart clears every window, which only
// ever makes the system more permissive; the ledger never depends on lockout
// state for correctness.
package lockout

import (
	"strings"
	"sync"
	"time"

	"github.com/louisbranch/standing.credit/internal/credit"
)

type key struct {
	community string
	member    string
	kind      credit.ActionKind
}

// newKey trims the identifiers so padded variants of one member map to the
// same record, matching how the ledger stores keys accounts.
func newKey(community, member string, kind credit.ActionKind) key {
	return key{strings.TrimSpace(community), strings.TrimSpace(member), kind}
}

type record struct {
	cooldownUntil time.Time
	lockedUntil   time.Time
}

func (r record) empty() bool {
	return r.cooldownUntil.IsZero() && r.lockedUntil.IsZero()
}

// Status is the result of a window check.
type Status struct {
	Active    bool
	Remaining time.Duration
}

// Manager owns all cooldown and lockout records for one process.
type Manager struct {
	mu      sync.Mutex
	records map[key]record
	clock   func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source, for tests.
func WithClock(clock func() time.Time) Option {
	return func(m *Manager) { m.clock = clock }
}

// NewManager creates an empty Manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		records: make(map[key]record),
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CheckLock reports whether a penalty lockout is active for the member and
// kind, with the remaining duration when it is.
func (m *Manager) CheckLock(community, member string, kind credit.ActionKind) Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.expire(newKey(community, member, kind))
	return statusUntil(rec.lockedUntil, m.clock())
}

// CheckCooldown reports whether the member's last attempt of the kind is
// still cooling down.
func (m *Manager) CheckCooldown(community, member string, kind credit.ActionKind) Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.expire(newKey(community, member, kind))
	return statusUntil(rec.cooldownUntil, m.clock())
}

// MarkAttempt starts a cooldown window for the member and kind. Every
// attempt marks, whatever its outcome.
func (m *Manager) MarkAttempt(community, member string, kind credit.ActionKind, cooldown time.Duration) {
	if cooldown <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := newKey(community, member, kind)
	rec := m.expire(k)
	rec.cooldownUntil = m.clock().Add(cooldown)
	m.records[k] = rec
}

// ApplyPenalty locks the member out of the kind for the given duration.
// A new penalty replaces any active lockout rather than extending it; the
// last sentence wins.
func (m *Manager) ApplyPenalty(community, member string, kind credit.ActionKind, d time.Duration) {
	if d <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := newKey(community, member, kind)
	rec := m.expire(k)
	rec.lockedUntil = m.clock().Add(d)
	m.records[k] = rec
}

// ImposeSentence locks the member out of every player action kind until the
// same shared instant, returned to the caller. It is one joint penalty, not
// a per-kind accumulation.
func (m *Manager) ImposeSentence(community, member string, d time.Duration) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	until := m.clock().Add(d)
	for _, kind := range credit.PlayerActionKinds() {
		k := newKey(community, member, kind)
		rec := m.expire(k)
		rec.lockedUntil = until
		m.records[k] = rec
	}
	return until
}

// Pardon clears every cooldown and lockout window for the member across all
// action kinds.
func (m *Manager) Pardon(community, member string) {
	community = strings.TrimSpace(community)
	member = strings.TrimSpace(member)
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.records {
		if k.community == community && k.member == member {
			delete(m.records, k)
		}
	}
}

// expire drops elapsed windows for the key and returns what remains. Callers
// must hold mu.
func (m *Manager) expire(k key) record {
	rec, ok := m.records[k]
	if !ok {
		return record{}
	}
	now := m.clock()
	if !rec.cooldownUntil.IsZero() && !now.Before(rec.cooldownUntil) {
		rec.cooldownUntil = time.Time{}
	}
	if !rec.lockedUntil.IsZero() && !now.Before(rec.lockedUntil) {
		rec.lockedUntil = time.Time{}
	}
	if rec.empty() {
		delete(m.records, k)
	} else {
		m.records[k] = rec
	}
	return rec
}

func statusUntil(until, now time.Time) Status {
	if until.IsZero() || !now.Before(until) {
		return Status{}
	}
	return Status{Active: true, Remaining: until.Sub(now)}
}
