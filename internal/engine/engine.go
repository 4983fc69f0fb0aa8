// Package engine orchestrates player actions and disasters over the ledger,
// lockout manager, and outcome resolver.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/louisbranch/standing.credit/internal/credit"
	"github.com/louisbranch/standing.credit/internal/ledger"
	"github.com/louisbranch/standing.credit/internal/lockout"
	"github.com/louisbranch/standing.credit/internal/outcome"
	"github.com/louisbranch/standing.credit/internal/platform/errors"
	"github.com/louisbranch/standing.credit/internal/random"
)

const tracerName = "github.com/louisbranch/standing.credit/internal/engine"

// Config tunes the engine. Cooldowns are per action kind; BaseFloor bounds
// the base magnitude from below so actions against near-zero scores still
// move meaningful amounts.
type Config struct {
	StealCooldown    time.Duration `env:"STANDING_CREDIT_STEAL_COOLDOWN" envDefault:"30m"`
	SabotageCooldown time.Duration `env:"STANDING_CREDIT_SABOTAGE_COOLDOWN" envDefault:"45m"`
	BaseFloor        int64         `env:"STANDING_CREDIT_BASE_FLOOR" envDefault:"10"`
}

// ActionResult reports exactly what one attempted action committed.
type ActionResult struct {
	Kind            credit.ActionKind
	Roll            int
	Label           string
	FlavorKey       string
	InitiatorBefore int64
	InitiatorAfter  int64
	InitiatorDelta  int64
	TargetBefore    int64
	TargetAfter     int64
	TargetDelta     int64
	Cooldown        time.Duration
	Penalty         time.Duration
}

// Fizzle reports whether the action resolved without moving any credit.
func (r *ActionResult) Fizzle() bool {
	return r.InitiatorDelta == 0 && r.TargetDelta == 0
}

type attemptKey struct {
	community string
	initiator string
	kind      credit.ActionKind
}

// Engine coordinates one action or disaster end to end.
type Engine struct {
	ledger   *ledger.Service
	lockouts *lockout.Manager
	tables   outcome.Tables
	src      random.Source
	cfg      Config
	tracer   trace.Tracer

	mu       sync.Mutex
	attempts map[attemptKey]*sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithTracer overrides the tracer, for tests.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) { e.tracer = tracer }
}

// New creates an Engine. src drives every probabilistic draw; pass a seeded
// or scripted source for deterministic behavior.
func New(svc *ledger.Service, lockouts *lockout.Manager, tables outcome.Tables, src random.Source, cfg Config, opts ...Option) *Engine {
	e := &Engine{
		ledger:   svc,
		lockouts: lockouts,
		tables:   tables,
		src:      src,
		cfg:      cfg,
		tracer:   otel.Tracer(tracerName),
		attempts: make(map[attemptKey]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AttemptAction runs one steal or sabotage attempt end to end.
//
// The check-then-set sequence over lockout state is a read-modify-write, so
// the whole attempt holds a per (community, initiator, kind) mutex. Attempts
// by different initiators interleave freely.
func (e *Engine) AttemptAction(ctx context.Context, kind credit.ActionKind, community, initiator, target string) (*ActionResult, error) {
	if !kind.Valid() {
		return nil, errors.New(errors.CodeActionInvalidKind, fmt.Sprintf("unknown action kind %q", kind))
	}
	initKey, err := credit.NewAccountKey(community, initiator)
	if err != nil {
		return nil, errors.Wrap(errors.CodeActionTargetIneligible, "invalid initiator", err)
	}
	targetKey, err := credit.NewAccountKey(community, target)
	if err != nil {
		return nil, errors.Wrap(errors.CodeActionTargetIneligible, "invalid target", err)
	}
	// The trimmed identifiers key every downstream lookup, so padded
	// variants of one member share a single mutex and lockout record.
	community, initiator, target = initKey.Community, initKey.Member, targetKey.Member

	ctx, span := e.tracer.Start(ctx, "engine.AttemptAction", trace.WithAttributes(
		attribute.String("action.kind", string(kind)),
		attribute.String("action.community", community),
	))
	defer span.End()

	unlock := e.lockAttempt(attemptKey{community, initiator, kind})
	defer unlock()

	if status := e.lockouts.CheckLock(community, initiator, kind); status.Active {
		return nil, errors.WithRemaining(errors.CodeActionLockedOut,
			fmt.Sprintf("locked out of %s", kind), status.Remaining)
	}

	if initiator == target {
		return nil, errors.New(errors.CodeActionSelfTarget, "cannot target yourself")
	}

	targetScore, err := e.ledger.Score(ctx, community, target)
	if err != nil {
		return nil, err
	}
	// The broke-target rejection happens before the cooldown check on
	// purpose: a steal that never stood a chance must not burn the timer.
	if kind == credit.ActionSteal && targetScore <= 0 {
		return nil, errors.New(errors.CodeStealTargetBroke, "nothing worth stealing")
	}

	if status := e.lockouts.CheckCooldown(community, initiator, kind); status.Active {
		return nil, errors.WithRemaining(errors.CodeActionCooldownActive,
			fmt.Sprintf("%s is cooling down", kind), status.Remaining)
	}

	initiatorScore, err := e.ledger.Score(ctx, community, initiator)
	if err != nil {
		return nil, err
	}

	table, err := e.tables.ForKind(kind)
	if err != nil {
		return nil, err
	}

	roll := e.src.Roll()
	resolved, err := outcome.Resolve(table, baseMagnitude(targetScore, e.cfg.BaseFloor), roll, e.src)
	if err != nil {
		return nil, errors.Wrap(errors.CodeOutcomeTableInvalid, "resolve outcome", err)
	}
	span.SetAttributes(
		attribute.Int("action.roll", roll),
		attribute.String("action.outcome", resolved.Label),
	)

	result := &ActionResult{
		Kind:            kind,
		Roll:            roll,
		Label:           resolved.Label,
		FlavorKey:       resolved.FlavorKey,
		InitiatorBefore: initiatorScore,
		InitiatorAfter:  initiatorScore,
		InitiatorDelta:  resolved.InitiatorDelta,
		TargetBefore:    targetScore,
		TargetAfter:     targetScore,
		TargetDelta:     resolved.TargetDelta,
		Cooldown:        e.cooldownFor(kind),
		Penalty:         resolved.Penalty,
	}

	reason := string(kind) + ":" + resolved.Label
	if resolved.TargetDelta != 0 {
		adj, err := e.ledger.Adjust(ctx, community, initiator, target, resolved.TargetDelta, reason)
		if err != nil {
			return nil, err
		}
		result.TargetAfter = adj.Current
	}
	if resolved.InitiatorDelta != 0 {
		adj, err := e.ledger.Adjust(ctx, community, initiator, initiator, resolved.InitiatorDelta, reason)
		if err != nil {
			return nil, err
		}
		result.InitiatorAfter = adj.Current
	}

	// Every resolved attempt cools down, including a full fizzle.
	e.lockouts.MarkAttempt(community, initiator, kind, result.Cooldown)
	if resolved.Penalty > 0 {
		e.lockouts.ApplyPenalty(community, initiator, kind, resolved.Penalty)
	}

	return result, nil
}

// Pardon clears every cooldown and lockout for the member. Privilege is the
// caller's concern.
func (e *Engine) Pardon(community, member string) {
	e.lockouts.Pardon(community, member)
}

// ImposeSentence locks the member out of every player action until the
// returned instant.
func (e *Engine) ImposeSentence(community, member string, d time.Duration) time.Time {
	return e.lockouts.ImposeSentence(community, member, d)
}

func (e *Engine) cooldownFor(kind credit.ActionKind) time.Duration {
	switch kind {
	case credit.ActionSteal:
		return e.cfg.StealCooldown
	case credit.ActionSabotage:
		return e.cfg.SabotageCooldown
	}
	return 0
}

// lockAttempt acquires the mutex serializing one initiator's attempts of one
// kind and returns its release func.
func (e *Engine) lockAttempt(k attemptKey) func() {
	e.mu.Lock()
	m, ok := e.attempts[k]
	if !ok {
		m = &sync.Mutex{}
		e.attempts[k] = m
	}
	e.mu.Unlock()

	m.Lock()
	return m.Unlock
}

func baseMagnitude(score, floor int64) int64 {
	if score < 0 {
		score = -score
	}
	if score < floor {
		return floor
	}
	return score
}
