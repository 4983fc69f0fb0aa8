// Package ledger exposes score reads and audited adjustments over a
// LedgerStore, validating inputs before any write.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/louisbranch/standing.credit/internal/platform/errors"
	"github.com/louisbranch/standing.credit/internal/storage"
)

const (
	defaultQueryLimit = 10
	maxQueryLimit     = 50
)

// Service is the score ledger and its query surface.
type Service struct {
	store storage.LedgerStore
	clock func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the timestamp source, for tests.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

// NewService creates a Service backed by store.
func NewService(store storage.LedgerStore, opts ...Option) *Service {
	s := &Service{
		store: store,
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score returns the member's current score, 0 when no account exists.
func (s *Service) Score(ctx context.Context, community, member string) (int64, error) {
	if err := requireAccount(community, member); err != nil {
		return 0, err
	}
	score, err := s.store.GetScore(ctx, community, member)
	if err != nil {
		return 0, errors.Wrap(errors.CodeStorageFailure, "get score", err)
	}
	return score, nil
}

// Adjust applies delta to the target's score and appends one audit entry in
// the same transaction. Actor may be empty for system-attributed writes. A
// zero delta is legal and still logged.
func (s *Service) Adjust(ctx context.Context, community, actor, target string, delta int64, reason string) (storage.Adjustment, error) {
	if err := requireAccount(community, target); err != nil {
		return storage.Adjustment{}, err
	}
	adj, err := s.store.AdjustScore(ctx, community, actor, target, delta, reason, s.clock().UTC())
	if err != nil {
		return storage.Adjustment{}, errors.Wrap(errors.CodeStorageFailure, "adjust score", err)
	}
	return adj, nil
}

// Leaderboard returns up to limit accounts ordered by standing.
func (s *Service) Leaderboard(ctx context.Context, community string, direction storage.Direction, limit int) ([]storage.Account, error) {
	if community == "" {
		return nil, errors.New(errors.CodeAdjustTargetRequired, "community is required")
	}
	switch direction {
	case storage.DirectionTop, storage.DirectionBottom:
	default:
		return nil, errors.New(errors.CodeUnknown, fmt.Sprintf("unknown leaderboard direction %q", direction))
	}
	accounts, err := s.store.Leaderboard(ctx, community, direction, clampLimit(limit))
	if err != nil {
		return nil, errors.Wrap(errors.CodeStorageFailure, "leaderboard", err)
	}
	return accounts, nil
}

// RecentEntries returns the member's newest audit entries, newest first.
func (s *Service) RecentEntries(ctx context.Context, community, member string, limit int) ([]storage.Entry, error) {
	if err := requireAccount(community, member); err != nil {
		return nil, err
	}
	entries, err := s.store.RecentEntries(ctx, community, member, clampLimit(limit))
	if err != nil {
		return nil, errors.Wrap(errors.CodeStorageFailure, "recent entries", err)
	}
	return entries, nil
}

// AggregateSince summarizes audit entries per target over the window
// starting at since. actionFilter, when non-empty, restricts entries to one
// reason kind ("steal", "sabotage", "disaster").
func (s *Service) AggregateSince(ctx context.Context, community string, since time.Time, actionFilter string, limit int) ([]storage.TargetAggregate, error) {
	if community == "" {
		return nil, errors.New(errors.CodeAdjustTargetRequired, "community is required")
	}
	aggregates, err := s.store.AggregateSince(ctx, community, since, actionFilter, clampLimit(limit))
	if err != nil {
		return nil, errors.Wrap(errors.CodeStorageFailure, "aggregate entries", err)
	}
	return aggregates, nil
}

// Communities lists every community holding at least one account.
func (s *Service) Communities(ctx context.Context) ([]string, error) {
	communities, err := s.store.ListCommunities(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.CodeStorageFailure, "list communities", err)
	}
	return communities, nil
}

// Accounts lists a community's accounts in creation order.
func (s *Service) Accounts(ctx context.Context, community string) ([]storage.Account, error) {
	if community == "" {
		return nil, errors.New(errors.CodeAdjustTargetRequired, "community is required")
	}
	accounts, err := s.store.ListAccounts(ctx, community)
	if err != nil {
		return nil, errors.Wrap(errors.CodeStorageFailure, "list accounts", err)
	}
	return accounts, nil
}

func requireAccount(community, member string) error {
	if community == "" {
		return errors.New(errors.CodeAdjustTargetRequired, "community is required")
	}
	if member == "" {
		return errors.New(errors.CodeAdjustTargetRequired, "target member is required")
	}
	return nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultQueryLimit
	}
	if limit > maxQueryLimit {
		return maxQueryLimit
	}
	return limit
}
