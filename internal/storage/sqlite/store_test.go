package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/louisbranch/standing.credit/internal/storage"
)

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestGetScoreDefaultsToZero(t *testing.T) {
	store := openTempStore(t)

	score, err := store.GetScore(context.Background(), "guild-1", "member-unknown")
	if err != nil {
		t.Fatalf("get score: %v", err)
	}
	if score != 0 {
		t.Fatalf("expected absent account to read 0, got %d", score)
	}
}

func TestAdjustScoreCreatesPairedEntry(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	adj, err := store.AdjustScore(ctx, "guild-1", "member-a", "member-b", 25, "steal:standard_heist", at)
	if err != nil {
		t.Fatalf("adjust score: %v", err)
	}
	if adj.Previous != 0 || adj.Current != 25 {
		t.Fatalf("expected 0 -> 25, got %d -> %d", adj.Previous, adj.Current)
	}

	score, err := store.GetScore(ctx, "guild-1", "member-b")
	if err != nil {
		t.Fatalf("get score: %v", err)
	}
	if score != 25 {
		t.Fatalf("expected score 25, got %d", score)
	}

	entries, err := store.RecentEntries(ctx, "guild-1", "member-b", 10)
	if err != nil {
		t.Fatalf("recent entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Delta != 25 || entry.Actor != "member-a" || entry.Reason != "steal:standard_heist" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if !entry.CreatedAt.Equal(at) {
		t.Fatalf("expected entry timestamp %v, got %v", at, entry.CreatedAt)
	}
}

func TestAdjustScoreAccumulates(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	if _, err := store.AdjustScore(ctx, "guild-1", "", "member-b", 40, "", time.Now()); err != nil {
		t.Fatalf("first adjust: %v", err)
	}
	adj, err := store.AdjustScore(ctx, "guild-1", "", "member-b", -15, "", time.Now())
	if err != nil {
		t.Fatalf("second adjust: %v", err)
	}
	if adj.Previous != 40 || adj.Current != 25 {
		t.Fatalf("expected 40 -> 25, got %d -> %d", adj.Previous, adj.Current)
	}
}

func TestAdjustScoreZeroDeltaStillLogged(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	adj, err := store.AdjustScore(ctx, "guild-1", "admin-1", "member-b", 0, "manual correction", time.Now())
	if err != nil {
		t.Fatalf("adjust score: %v", err)
	}
	if adj.Previous != 0 || adj.Current != 0 {
		t.Fatalf("expected no-op adjustment, got %d -> %d", adj.Previous, adj.Current)
	}

	entries, err := store.RecentEntries(ctx, "guild-1", "member-b", 10)
	if err != nil {
		t.Fatalf("recent entries: %v", err)
	}
	if len(entries) != 1 || entries[0].Delta != 0 {
		t.Fatalf("expected one zero-delta audit entry, got %+v", entries)
	}
}

func TestSystemEntryStoresNullActor(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	if _, err := store.AdjustScore(ctx, "guild-1", "", "member-b", -10, "disaster:tremor", time.Now()); err != nil {
		t.Fatalf("adjust score: %v", err)
	}

	var actor sql.NullString
	row := store.sqlDB.QueryRow("SELECT actor_id FROM entries WHERE target_id = ?", "member-b")
	if err := row.Scan(&actor); err != nil {
		t.Fatalf("scan actor: %v", err)
	}
	if actor.Valid {
		t.Fatalf("expected NULL actor for system entry, got %q", actor.String)
	}
}

func TestLeaderboardOrdering(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	scores := map[string]int64{
		"member-a": 10,
		"member-b": -5,
		"member-c": 100,
		"member-d": 0,
	}
	for _, member := range []string{"member-a", "member-b", "member-c", "member-d"} {
		if _, err := store.AdjustScore(ctx, "guild-1", "", member, scores[member], "", time.Now()); err != nil {
			t.Fatalf("seed %s: %v", member, err)
		}
	}

	top, err := store.Leaderboard(ctx, "guild-1", storage.DirectionTop, 3)
	if err != nil {
		t.Fatalf("top leaderboard: %v", err)
	}
	wantTop := []int64{100, 10, 0}
	if len(top) != len(wantTop) {
		t.Fatalf("expected %d accounts, got %d", len(wantTop), len(top))
	}
	for i, account := range top {
		if account.Score != wantTop[i] {
			t.Fatalf("top[%d]: expected score %d, got %d", i, wantTop[i], account.Score)
		}
	}

	bottom, err := store.Leaderboard(ctx, "guild-1", storage.DirectionBottom, 10)
	if err != nil {
		t.Fatalf("bottom leaderboard: %v", err)
	}
	wantBottom := []int64{-5, 0, 10, 100}
	if len(bottom) != len(wantBottom) {
		t.Fatalf("expected %d accounts, got %d", len(wantBottom), len(bottom))
	}
	for i, account := range bottom {
		if account.Score != wantBottom[i] {
			t.Fatalf("bottom[%d]: expected score %d, got %d", i, wantBottom[i], account.Score)
		}
	}
}

func TestLeaderboardTiesByCreationOrder(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	for _, member := range []string{"member-x", "member-y"} {
		if _, err := store.AdjustScore(ctx, "guild-1", "", member, 50, "", time.Now()); err != nil {
			t.Fatalf("seed %s: %v", member, err)
		}
	}

	top, err := store.Leaderboard(ctx, "guild-1", storage.DirectionTop, 2)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if top[0].Member != "member-x" || top[1].Member != "member-y" {
		t.Fatalf("expected insertion-order tie break, got %s then %s", top[0].Member, top[1].Member)
	}
}

func TestRecentEntriesNewestFirst(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	for i, reason := range []string{"first", "second", "third"} {
		at := time.Date(2026, 3, 1, 12, i, 0, 0, time.UTC)
		if _, err := store.AdjustScore(ctx, "guild-1", "", "member-b", 1, reason, at); err != nil {
			t.Fatalf("seed entry %d: %v", i, err)
		}
	}

	entries, err := store.RecentEntries(ctx, "guild-1", "member-b", 2)
	if err != nil {
		t.Fatalf("recent entries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Reason != "third" || entries[1].Reason != "second" {
		t.Fatalf("expected newest first, got %q then %q", entries[0].Reason, entries[1].Reason)
	}
}

func TestAggregateSinceGroupsAndFilters(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	seed := []struct {
		target string
		delta  int64
		reason string
		at     time.Time
	}{
		{"member-b", -30, "sabotage:effective_sabotage", base.Add(1 * time.Hour)},
		{"member-b", -10, "sabotage:effective_sabotage", base.Add(2 * time.Hour)},
		{"member-c", -50, "sabotage:devastating_sabotage", base.Add(3 * time.Hour)},
		{"member-c", -50, "steal:standard_heist", base.Add(3 * time.Hour)},
		{"member-d", -99, "sabotage:effective_sabotage", base.Add(-48 * time.Hour)}, // outside window
	}
	for i, row := range seed {
		if _, err := store.AdjustScore(ctx, "guild-1", "member-a", row.target, row.delta, row.reason, row.at); err != nil {
			t.Fatalf("seed %d: %v", i, err)
		}
	}

	aggregates, err := store.AggregateSince(ctx, "guild-1", base, "sabotage", 10)
	if err != nil {
		t.Fatalf("aggregate since: %v", err)
	}
	if len(aggregates) != 2 {
		t.Fatalf("expected 2 aggregates, got %d", len(aggregates))
	}
	first := aggregates[0]
	if first.Target != "member-b" || first.Hits != 2 || first.TotalLoss != 40 || first.Net != -40 {
		t.Fatalf("unexpected first aggregate: %+v", first)
	}
	second := aggregates[1]
	if second.Target != "member-c" || second.Hits != 1 || second.TotalLoss != 50 {
		t.Fatalf("unexpected second aggregate: %+v", second)
	}
}

func TestSumEntryDeltasMatchesScore(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	for _, delta := range []int64{40, -15, 0, 7} {
		if _, err := store.AdjustScore(ctx, "guild-1", "", "member-b", delta, "", time.Now()); err != nil {
			t.Fatalf("adjust %d: %v", delta, err)
		}
	}

	sum, err := store.SumEntryDeltas(ctx, "guild-1", "member-b")
	if err != nil {
		t.Fatalf("sum entry deltas: %v", err)
	}
	score, err := store.GetScore(ctx, "guild-1", "member-b")
	if err != nil {
		t.Fatalf("get score: %v", err)
	}
	if sum != score || sum != 32 {
		t.Fatalf("expected replayed sum to equal score 32, got sum %d score %d", sum, score)
	}
}

func TestListCommunitiesAndAccounts(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	if _, err := store.AdjustScore(ctx, "guild-2", "", "member-a", 1, "", time.Now()); err != nil {
		t.Fatalf("seed guild-2: %v", err)
	}
	if _, err := store.AdjustScore(ctx, "guild-1", "", "member-b", 1, "", time.Now()); err != nil {
		t.Fatalf("seed guild-1: %v", err)
	}

	communities, err := store.ListCommunities(ctx)
	if err != nil {
		t.Fatalf("list communities: %v", err)
	}
	if len(communities) != 2 || communities[0] != "guild-1" || communities[1] != "guild-2" {
		t.Fatalf("unexpected communities: %v", communities)
	}

	accounts, err := store.ListAccounts(ctx, "guild-1")
	if err != nil {
		t.Fatalf("list accounts: %v", err)
	}
	if len(accounts) != 1 || accounts[0].Member != "member-b" {
		t.Fatalf("unexpected accounts: %+v", accounts)
	}
}

func openTempStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil && err != sql.ErrConnDone {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}

func TestOpenAppliesPragmas(t *testing.T) {
	store := openTempStore(t)

	var mode string
	if err := store.sqlDB.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("query journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Fatalf("expected wal journal mode, got %q", mode)
	}

	var fk int
	if err := store.sqlDB.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("query foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Fatalf("expected foreign keys on, got %d", fk)
	}
}
