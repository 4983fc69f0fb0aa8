package engine

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/louisbranch/standing.credit/internal/credit"
	"github.com/louisbranch/standing.credit/internal/ledger"
	"github.com/louisbranch/standing.credit/internal/lockout"
	"github.com/louisbranch/standing.credit/internal/outcome"
	"github.com/louisbranch/standing.credit/internal/platform/errors"
	"github.com/louisbranch/standing.credit/internal/random"
	"github.com/louisbranch/standing.credit/internal/storage/sqlite"
)

type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

type fixture struct {
	engine *Engine
	svc    *ledger.Service
	clock  *fakeClock
}

func testConfig() Config {
	return Config{
		StealCooldown:    30 * time.Minute,
		SabotageCooldown: 45 * time.Minute,
		BaseFloor:        10,
	}
}

func openTempStore(t *testing.T) *sqlite.Store {
	t.Helper()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "engine.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return store
}

func newFixture(t *testing.T, src random.Source) *fixture {
	t.Helper()

	store := openTempStore(t)

	clock := newFakeClock()
	svc := ledger.NewService(store, ledger.WithClock(clock.Now))
	lockouts := lockout.NewManager(lockout.WithClock(clock.Now))

	tables, err := outcome.Default()
	if err != nil {
		t.Fatalf("load tables: %v", err)
	}

	return &fixture{
		engine: New(svc, lockouts, tables, src, testConfig()),
		svc:    svc,
		clock:  clock,
	}
}

// seed gives a member a starting score through an audited admin adjustment.
func (f *fixture) seed(t *testing.T, community, member string, score int64) {
	t.Helper()
	if _, err := f.svc.Adjust(context.Background(), community, "", member, score, "admin:seed"); err != nil {
		t.Fatalf("seed %s: %v", member, err)
	}
}

func (f *fixture) score(t *testing.T, community, member string) int64 {
	t.Helper()
	score, err := f.svc.Score(context.Background(), community, member)
	if err != nil {
		t.Fatalf("score %s: %v", member, err)
	}
	return score
}

func TestAttemptStealStandardHeist(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &random.Script{Rolls: []int{50}, Percents: []int{12}})
	f.seed(t, "guild", "thief", 50)
	f.seed(t, "guild", "victim", 200)

	result, err := f.engine.AttemptAction(ctx, credit.ActionSteal, "guild", "thief", "victim")
	if err != nil {
		t.Fatalf("attempt: %v", err)
	}

	if result.Roll != 50 || result.Label != "standard_heist" {
		t.Fatalf("unexpected outcome %+v", result)
	}
	if result.TargetBefore != 200 || result.TargetAfter != 176 || result.TargetDelta != -24 {
		t.Fatalf("victim side wrong: %+v", result)
	}
	if result.InitiatorBefore != 50 || result.InitiatorAfter != 74 || result.InitiatorDelta != 24 {
		t.Fatalf("thief side wrong: %+v", result)
	}
	if result.Penalty != 0 {
		t.Fatalf("standard heist carries no penalty, got %v", result.Penalty)
	}

	if f.score(t, "guild", "victim") != 176 || f.score(t, "guild", "thief") != 74 {
		t.Fatal("ledger scores do not match the reported result")
	}

	entries, err := f.svc.RecentEntries(ctx, "guild", "victim", 5)
	if err != nil {
		t.Fatalf("recent entries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected seed + heist entries, got %d", len(entries))
	}
	if entries[0].Reason != "steal:standard_heist" || entries[0].Actor != "thief" {
		t.Fatalf("unexpected audit entry %+v", entries[0])
	}

	// Cooldown burned, second attempt rejected with the remaining duration.
	_, err = f.engine.AttemptAction(ctx, credit.ActionSteal, "guild", "thief", "victim")
	if !errors.Is(err, errors.CodeActionCooldownActive) {
		t.Fatalf("expected cooldown rejection, got %v", err)
	}
	var domainErr *errors.Error
	if !asDomain(err, &domainErr) || domainErr.Remaining() != 30*time.Minute {
		t.Fatalf("expected 30m remaining, got %v", err)
	}
}

func TestStealFromBrokeTargetDoesNotBurnCooldown(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &random.Script{Rolls: []int{50}})
	f.seed(t, "guild", "thief", 50)
	f.seed(t, "guild", "victim", 200)

	_, err := f.engine.AttemptAction(ctx, credit.ActionSteal, "guild", "thief", "pauper")
	if !errors.Is(err, errors.CodeStealTargetBroke) {
		t.Fatalf("expected broke-target rejection, got %v", err)
	}

	entries, err := f.svc.RecentEntries(ctx, "guild", "pauper", 5)
	if err != nil {
		t.Fatalf("recent entries: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("rejection must not write entries, got %d", len(entries))
	}

	// The timer was not consumed: an immediate steal against a real target
	// proceeds.
	if _, err := f.engine.AttemptAction(ctx, credit.ActionSteal, "guild", "thief", "victim"); err != nil {
		t.Fatalf("follow-up steal should be free of cooldown, got %v", err)
	}
}

func TestSabotageAgainstNegativeScoreUsesAbsoluteBase(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &random.Script{Rolls: []int{50}, Percents: []int{10}})
	f.seed(t, "guild", "rival", 30)
	f.seed(t, "guild", "pariah", -200)

	result, err := f.engine.AttemptAction(ctx, credit.ActionSabotage, "guild", "rival", "pariah")
	if err != nil {
		t.Fatalf("attempt: %v", err)
	}
	if result.Label != "effective_sabotage" {
		t.Fatalf("expected effective_sabotage for roll 50, got %s", result.Label)
	}
	// Base is abs(-200), so 10 percent still lands a meaningful 20.
	if result.TargetDelta != -20 || result.TargetAfter != -220 {
		t.Fatalf("expected pariah to drop to -220, got %+v", result)
	}
}

func TestFizzleStillBurnsCooldown(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &random.Script{Rolls: []int{10}})
	f.seed(t, "guild", "thief", 50)
	f.seed(t, "guild", "victim", 200)

	result, err := f.engine.AttemptAction(ctx, credit.ActionSteal, "guild", "thief", "victim")
	if err != nil {
		t.Fatalf("attempt: %v", err)
	}
	if !result.Fizzle() {
		t.Fatalf("expected fumble to fizzle, got %+v", result)
	}
	if f.score(t, "guild", "victim") != 200 || f.score(t, "guild", "thief") != 50 {
		t.Fatal("fizzle must not move credit")
	}

	if _, err := f.engine.AttemptAction(ctx, credit.ActionSteal, "guild", "thief", "victim"); !errors.Is(err, errors.CodeActionCooldownActive) {
		t.Fatalf("fizzle must still burn the cooldown, got %v", err)
	}
}

func TestBackfireLocksInitiatorOut(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &random.Script{Rolls: []int{5}, Percents: []int{20}})
	f.seed(t, "guild", "rival", 80)
	f.seed(t, "guild", "target", 100)

	result, err := f.engine.AttemptAction(ctx, credit.ActionSabotage, "guild", "rival", "target")
	if err != nil {
		t.Fatalf("attempt: %v", err)
	}
	if result.Label != "backfire" {
		t.Fatalf("expected backfire for roll 5, got %s", result.Label)
	}
	if result.InitiatorDelta != -20 || result.InitiatorAfter != 60 {
		t.Fatalf("backfire should cost the rival 20, got %+v", result)
	}
	if result.TargetAfter != 100 {
		t.Fatalf("backfire must not touch the target, got %+v", result)
	}
	if result.Penalty != 45*time.Minute {
		t.Fatalf("expected 45m penalty, got %v", result.Penalty)
	}

	// The 45m cooldown and the 45m penalty both lapse together.
	f.clock.Advance(46 * time.Minute)
	if _, err := f.engine.AttemptAction(ctx, credit.ActionSabotage, "guild", "rival", "target"); err != nil {
		t.Fatalf("both windows elapsed, expected success, got %v", err)
	}
}

func TestLockoutRejectsBeforeAnythingElse(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &random.Script{Rolls: []int{5}, Percents: []int{20}})
	f.seed(t, "guild", "rival", 80)
	f.seed(t, "guild", "target", 100)

	if _, err := f.engine.AttemptAction(ctx, credit.ActionSabotage, "guild", "rival", "target"); err != nil {
		t.Fatalf("attempt: %v", err)
	}

	f.clock.Advance(10 * time.Minute)

	_, err := f.engine.AttemptAction(ctx, credit.ActionSabotage, "guild", "rival", "target")
	if !errors.Is(err, errors.CodeActionLockedOut) {
		t.Fatalf("expected lockout rejection, got %v", err)
	}
	var domainErr *errors.Error
	if !asDomain(err, &domainErr) || domainErr.Remaining() != 35*time.Minute {
		t.Fatalf("expected 35m remaining, got %v", err)
	}
}

func TestSelfTargetRejected(t *testing.T) {
	f := newFixture(t, &random.Script{})
	f.seed(t, "guild", "thief", 50)

	_, err := f.engine.AttemptAction(context.Background(), credit.ActionSteal, "guild", "thief", "thief")
	if !errors.Is(err, errors.CodeActionSelfTarget) {
		t.Fatalf("expected self-target rejection, got %v", err)
	}
}

func TestInvalidKindRejected(t *testing.T) {
	f := newFixture(t, &random.Script{})

	_, err := f.engine.AttemptAction(context.Background(), credit.ActionKind("bribe"), "guild", "a", "b")
	if !errors.Is(err, errors.CodeActionInvalidKind) {
		t.Fatalf("expected invalid kind rejection, got %v", err)
	}
}

func TestBlankIdentifiersRejected(t *testing.T) {
	f := newFixture(t, &random.Script{})

	if _, err := f.engine.AttemptAction(context.Background(), credit.ActionSteal, "guild", "thief", "  "); !errors.Is(err, errors.CodeActionTargetIneligible) {
		t.Fatalf("expected ineligible target, got %v", err)
	}
	if _, err := f.engine.AttemptAction(context.Background(), credit.ActionSteal, "", "thief", "victim"); !errors.Is(err, errors.CodeActionTargetIneligible) {
		t.Fatalf("expected ineligible initiator, got %v", err)
	}
}

func TestPardonRestoresBothKinds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &random.Script{Rolls: []int{50, 50, 50}, Percents: []int{10, 10, 10}})
	f.seed(t, "guild", "rival", 80)
	f.seed(t, "guild", "target", 100)

	until := f.engine.ImposeSentence("guild", "rival", 2*time.Hour)
	if want := f.clock.Now().Add(2 * time.Hour); !until.Equal(want) {
		t.Fatalf("expected sentence until %v, got %v", want, until)
	}
	for _, kind := range credit.PlayerActionKinds() {
		if _, err := f.engine.AttemptAction(ctx, kind, "guild", "rival", "target"); !errors.Is(err, errors.CodeActionLockedOut) {
			t.Fatalf("kind %s should be locked, got %v", kind, err)
		}
	}

	f.engine.Pardon("guild", "rival")

	for _, kind := range credit.PlayerActionKinds() {
		if _, err := f.engine.AttemptAction(ctx, kind, "guild", "rival", "target"); err != nil {
			t.Fatalf("kind %s should be free after pardon, got %v", kind, err)
		}
		// Clear the fresh cooldown so the next kind's attempt also runs.
		f.engine.Pardon("guild", "rival")
	}
}

func TestPaddedIdentifiersShareOneCooldown(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &random.Script{Rolls: []int{50, 50}, Percents: []int{12, 12}})
	f.seed(t, "guild", "thief", 50)
	f.seed(t, "guild", "victim", 200)

	if _, err := f.engine.AttemptAction(ctx, credit.ActionSteal, "guild", "thief", "victim"); err != nil {
		t.Fatalf("first attempt: %v", err)
	}

	// The ledger trims identifiers, so "thief " is the same account as
	// "thief" and must hit the same cooldown record.
	if _, err := f.engine.AttemptAction(ctx, credit.ActionSteal, "guild", "thief ", " victim"); !errors.Is(err, errors.CodeActionCooldownActive) {
		t.Fatalf("padded retry should cool down, got %v", err)
	}
	if got := f.score(t, "guild", "thief"); got != 74 {
		t.Fatalf("thief score should stay at 74 after one heist, got %d", got)
	}

	if _, err := f.engine.AttemptAction(ctx, credit.ActionSteal, "guild", " thief", "thief"); !errors.Is(err, errors.CodeActionSelfTarget) {
		t.Fatalf("padded self-target should be rejected, got %v", err)
	}
}

func asDomain(err error, target **errors.Error) bool {
	e, ok := err.(*errors.Error)
	if !ok {
		return false
	}
	*target = e
	return true
}
