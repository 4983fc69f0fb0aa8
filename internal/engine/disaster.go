package engine

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/louisbranch/standing.credit/internal/outcome"
	"github.com/louisbranch/standing.credit/internal/platform/errors"
	"github.com/louisbranch/standing.credit/internal/storage"
)

// Strike is one victim's share of a disaster.
type Strike struct {
	Member string
	Before int64
	After  int64
	Delta  int64
}

// DisasterResult reports every strike one disaster committed.
type DisasterResult struct {
	Severity  string
	Community string
	Strikes   []Strike
}

// TriggerDisaster hits a random subset of the community's most visible
// members (the union of the top and bottom of the leaderboard) with
// severity-scaled deltas.
//
// Disasters are an administrative override: they neither consult nor set any
// cooldown or lockout state, and the ledger attributes them to the system,
// not to the operator.
func (e *Engine) TriggerDisaster(ctx context.Context, severity, community, operator string) (*DisasterResult, error) {
	sev, ok := e.tables.Disasters[severity]
	if !ok {
		return nil, errors.New(errors.CodeDisasterUnknownSeverity, fmt.Sprintf("unknown disaster severity %q", severity))
	}
	community = strings.TrimSpace(community)
	if community == "" {
		return nil, errors.New(errors.CodeAdjustTargetRequired, "community is required")
	}

	ctx, span := e.tracer.Start(ctx, "engine.TriggerDisaster", trace.WithAttributes(
		attribute.String("disaster.severity", severity),
		attribute.String("disaster.community", community),
	))
	defer span.End()

	pool, err := e.disasterPool(ctx, community, sev.PoolDepth)
	if err != nil {
		return nil, err
	}
	if len(pool) == 0 {
		return nil, errors.New(errors.CodeDisasterNoCandidates, "no accounts to strike")
	}

	victims := e.pickVictims(pool, sev)
	span.SetAttributes(attribute.Int("disaster.victims", len(victims)))

	reason := "disaster:" + severity
	result := &DisasterResult{Severity: severity, Community: community}
	for _, victim := range victims {
		delta := e.strikeDelta(victim.Score, sev)
		adj, err := e.ledger.Adjust(ctx, community, "", victim.Member, delta, reason)
		if err != nil {
			return nil, err
		}
		result.Strikes = append(result.Strikes, Strike{
			Member: victim.Member,
			Before: adj.Previous,
			After:  adj.Current,
			Delta:  delta,
		})
	}

	return result, nil
}

// disasterPool returns the union of the top and bottom depth accounts,
// deduplicated, in leaderboard order.
func (e *Engine) disasterPool(ctx context.Context, community string, depth int) ([]storage.Account, error) {
	top, err := e.ledger.Leaderboard(ctx, community, storage.DirectionTop, depth)
	if err != nil {
		return nil, err
	}
	bottom, err := e.ledger.Leaderboard(ctx, community, storage.DirectionBottom, depth)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(top)+len(bottom))
	pool := make([]storage.Account, 0, len(top)+len(bottom))
	for _, acct := range append(top, bottom...) {
		if seen[acct.Member] {
			continue
		}
		seen[acct.Member] = true
		pool = append(pool, acct)
	}
	return pool, nil
}

// pickVictims shuffles the pool and takes a prefix sized uniformly within
// the severity's target range, clamped to the pool.
func (e *Engine) pickVictims(pool []storage.Account, sev outcome.Severity) []storage.Account {
	shuffled := make([]storage.Account, len(pool))
	copy(shuffled, pool)
	for i := len(shuffled) - 1; i > 0; i-- {
		j := e.src.Intn(i + 1)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}

	hi := sev.Targets[1]
	if hi > len(shuffled) {
		hi = len(shuffled)
	}
	lo := sev.Targets[0]
	if lo > hi {
		lo = hi
	}
	count := lo
	if hi > lo {
		count = lo + e.src.Intn(hi-lo+1)
	}
	return shuffled[:count]
}

// strikeDelta draws one victim's delta: severity-scaled magnitude, sign by
// the severity's negative bias.
func (e *Engine) strikeDelta(score int64, sev outcome.Severity) int64 {
	base := baseMagnitude(score, int64(sev.Floor))
	pct := e.src.Percent(sev.Percent[0], sev.Percent[1])
	magnitude := base * int64(pct) / 100
	if magnitude < 1 {
		magnitude = 1
	}
	if e.src.Roll() <= int(sev.NegativeBias*100) {
		return -magnitude
	}
	return magnitude
}
