// Package storage defines persistence contracts for the credit ledger.
//
// Two durable tables back the engine: accounts keyed by (community, member)
// holding the current score, and an append-only entry log holding every
// adjustment. The account table is the source of truth for reads; the log is
// audit-only and is never reconstructed on the read path.
package storage

import (
	"context"
	"time"
)

// Direction orders a leaderboard query.
type Direction string

const (
	// DirectionTop sorts by score descending (highest standing first).
	DirectionTop Direction = "top"
	// DirectionBottom sorts by score ascending (most disgraced first).
	DirectionBottom Direction = "bottom"
)

// Account stores the current score for one (community, member) pair.
// An absent account is equivalent to score 0; accounts are never deleted.
type Account struct {
	Community string
	Member    string
	Score     int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Entry stores one immutable audit record. Actor is empty for
// system-attributed adjustments (disasters, administrative corrections).
type Entry struct {
	ID        int64
	Community string
	Actor     string
	Target    string
	Delta     int64
	Reason    string
	CreatedAt time.Time
}

// Adjustment reports the scores observed around one AdjustScore call.
type Adjustment struct {
	Previous int64
	Current  int64
}

// TargetAggregate summarizes log entries grouped by target over a window.
// TotalLoss is the positive magnitude of all negative deltas.
type TargetAggregate struct {
	Target    string
	Hits      int64
	TotalLoss int64
	Net       int64
}

// LedgerStore persists account scores and the append-only audit log.
type LedgerStore interface {
	// GetScore returns the current score, or 0 when no account exists.
	GetScore(ctx context.Context, community, member string) (int64, error)

	// AdjustScore atomically applies delta to the target's account and
	// appends exactly one matching log entry. Either both writes commit or
	// neither does. A zero delta is legal and still logged.
	AdjustScore(ctx context.Context, community, actor, target string, delta int64, reason string, at time.Time) (Adjustment, error)

	// Leaderboard returns up to limit accounts ordered by score in the
	// given direction, ties broken by account creation order.
	Leaderboard(ctx context.Context, community string, direction Direction, limit int) ([]Account, error)

	// RecentEntries returns up to limit log entries for a target, newest first.
	RecentEntries(ctx context.Context, community, member string, limit int) ([]Entry, error)

	// AggregateSince groups log entries created at or after since by target,
	// optionally filtered by the "kind:" reason prefix, ordered by hits
	// descending then total loss descending.
	AggregateSince(ctx context.Context, community string, since time.Time, actionFilter string, limit int) ([]TargetAggregate, error)

	// ListCommunities returns every community with at least one account.
	ListCommunities(ctx context.Context) ([]string, error)

	// ListAccounts returns all accounts in a community in creation order.
	ListAccounts(ctx context.Context, community string) ([]Account, error)

	// SumEntryDeltas replays the log for one member and returns the running
	// sum of deltas. Used by verification tooling; equality with the stored
	// score is the ledger's core audit invariant.
	SumEntryDeltas(ctx context.Context, community, member string) (int64, error)
}
