package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/standing.credit/internal/storage"
)

// GetScore returns the current score, or 0 when no account exists.
func (s *Store) GetScore(ctx context.Context, community, member string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	community = strings.TrimSpace(community)
	member = strings.TrimSpace(member)
	if community == "" {
		return 0, fmt.Errorf("community id is required")
	}
	if member == "" {
		return 0, fmt.Errorf("member id is required")
	}

	var score int64
	err := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT score FROM accounts WHERE community_id = ? AND member_id = ?`,
		community, member,
	).Scan(&score)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get score: %w", err)
	}
	return score, nil
}

// AdjustScore applies delta to the target's account and appends the matching
// audit entry in one transaction. The account row is created on first touch.
func (s *Store) AdjustScore(ctx context.Context, community, actor, target string, delta int64, reason string, at time.Time) (storage.Adjustment, error) {
	if err := ctx.Err(); err != nil {
		return storage.Adjustment{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Adjustment{}, fmt.Errorf("storage is not configured")
	}
	community = strings.TrimSpace(community)
	target = strings.TrimSpace(target)
	if community == "" {
		return storage.Adjustment{}, fmt.Errorf("community id is required")
	}
	if target == "" {
		return storage.Adjustment{}, fmt.Errorf("target id is required")
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}
	atMillis := toMillis(at)

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.Adjustment{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var previous int64
	err = tx.QueryRowContext(
		ctx,
		`SELECT score FROM accounts WHERE community_id = ? AND member_id = ?`,
		community, target,
	).Scan(&previous)
	switch {
	case err == sql.ErrNoRows:
		previous = 0
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO accounts (community_id, member_id, score, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?)`,
			community, target, delta, atMillis, atMillis,
		); err != nil {
			return storage.Adjustment{}, fmt.Errorf("create account: %w", err)
		}
	case err != nil:
		return storage.Adjustment{}, fmt.Errorf("read account: %w", err)
	default:
		if _, err := tx.ExecContext(
			ctx,
			`UPDATE accounts SET score = ?, updated_at = ?
			 WHERE community_id = ? AND member_id = ?`,
			previous+delta, atMillis, community, target,
		); err != nil {
			return storage.Adjustment{}, fmt.Errorf("update account: %w", err)
		}
	}

	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO entries (community_id, actor_id, target_id, delta, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		community, toNullString(actor), target, delta, toNullString(reason), atMillis,
	); err != nil {
		return storage.Adjustment{}, fmt.Errorf("append entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return storage.Adjustment{}, fmt.Errorf("commit: %w", err)
	}

	return storage.Adjustment{Previous: previous, Current: previous + delta}, nil
}

// Leaderboard returns up to limit accounts ordered by score, ties broken by
// account creation order.
func (s *Store) Leaderboard(ctx context.Context, community string, direction storage.Direction, limit int) ([]storage.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	community = strings.TrimSpace(community)
	if community == "" {
		return nil, fmt.Errorf("community id is required")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	order := "DESC"
	if direction == storage.DirectionBottom {
		order = "ASC"
	}

	query := fmt.Sprintf(
		`SELECT community_id, member_id, score, created_at, updated_at
		 FROM accounts WHERE community_id = ?
		 ORDER BY score %s, rowid ASC LIMIT ?`, order)
	rows, err := s.sqlDB.QueryContext(ctx, query, community, limit)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	return scanAccounts(rows)
}

// RecentEntries returns up to limit entries targeting a member, newest first.
func (s *Store) RecentEntries(ctx context.Context, community, member string, limit int) ([]storage.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	community = strings.TrimSpace(community)
	member = strings.TrimSpace(member)
	if community == "" {
		return nil, fmt.Errorf("community id is required")
	}
	if member == "" {
		return nil, fmt.Errorf("member id is required")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, community_id, actor_id, target_id, delta, reason, created_at
		 FROM entries WHERE community_id = ? AND target_id = ?
		 ORDER BY id DESC LIMIT ?`,
		community, member, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent entries: %w", err)
	}
	defer rows.Close()

	var entries []storage.Entry
	for rows.Next() {
		var entry storage.Entry
		var actor, reason sql.NullString
		var createdAt int64
		if err := rows.Scan(&entry.ID, &entry.Community, &actor, &entry.Target, &entry.Delta, &reason, &createdAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entry.Actor = fromNullString(actor)
		entry.Reason = fromNullString(reason)
		entry.CreatedAt = fromMillis(createdAt)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// AggregateSince groups entries by target over a window, optionally filtered
// by the "kind:" reason prefix convention used by the action engine.
func (s *Store) AggregateSince(ctx context.Context, community string, since time.Time, actionFilter string, limit int) ([]storage.TargetAggregate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	community = strings.TrimSpace(community)
	if community == "" {
		return nil, fmt.Errorf("community id is required")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	query := `SELECT target_id,
	        COUNT(*) AS hits,
	        COALESCE(SUM(CASE WHEN delta < 0 THEN -delta ELSE 0 END), 0) AS total_loss,
	        COALESCE(SUM(delta), 0) AS net
	 FROM entries WHERE community_id = ? AND created_at >= ?`
	args := []any{community, toMillis(since)}

	if filter := strings.TrimSpace(actionFilter); filter != "" {
		query += ` AND reason LIKE ? ESCAPE '\'`
		args = append(args, escapeLike(filter)+":%")
	}

	query += ` GROUP BY target_id ORDER BY hits DESC, total_loss DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query aggregates: %w", err)
	}
	defer rows.Close()

	var aggregates []storage.TargetAggregate
	for rows.Next() {
		var agg storage.TargetAggregate
		if err := rows.Scan(&agg.Target, &agg.Hits, &agg.TotalLoss, &agg.Net); err != nil {
			return nil, fmt.Errorf("scan aggregate: %w", err)
		}
		aggregates = append(aggregates, agg)
	}
	return aggregates, rows.Err()
}

// ListCommunities returns every community with at least one account.
func (s *Store) ListCommunities(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `SELECT DISTINCT community_id FROM accounts ORDER BY community_id`)
	if err != nil {
		return nil, fmt.Errorf("query communities: %w", err)
	}
	defer rows.Close()

	var communities []string
	for rows.Next() {
		var community string
		if err := rows.Scan(&community); err != nil {
			return nil, fmt.Errorf("scan community: %w", err)
		}
		communities = append(communities, community)
	}
	return communities, rows.Err()
}

// ListAccounts returns all accounts in a community in creation order.
func (s *Store) ListAccounts(ctx context.Context, community string) ([]storage.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	community = strings.TrimSpace(community)
	if community == "" {
		return nil, fmt.Errorf("community id is required")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT community_id, member_id, score, created_at, updated_at
		 FROM accounts WHERE community_id = ? ORDER BY rowid ASC`,
		community,
	)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	return scanAccounts(rows)
}

// SumEntryDeltas replays the log for one member and returns the delta sum.
func (s *Store) SumEntryDeltas(ctx context.Context, community, member string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	community = strings.TrimSpace(community)
	member = strings.TrimSpace(member)
	if community == "" {
		return 0, fmt.Errorf("community id is required")
	}
	if member == "" {
		return 0, fmt.Errorf("member id is required")
	}

	var sum int64
	err := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT COALESCE(SUM(delta), 0) FROM entries WHERE community_id = ? AND target_id = ?`,
		community, member,
	).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum entry deltas: %w", err)
	}
	return sum, nil
}

func scanAccounts(rows *sql.Rows) ([]storage.Account, error) {
	var accounts []storage.Account
	for rows.Next() {
		var account storage.Account
		var createdAt, updatedAt int64
		if err := rows.Scan(&account.Community, &account.Member, &account.Score, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		account.CreatedAt = fromMillis(createdAt)
		account.UpdatedAt = fromMillis(updatedAt)
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

// escapeLike escapes LIKE wildcards so reason prefixes match literally.
func escapeLike(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	value = strings.ReplaceAll(value, "%", `\%`)
	value = strings.ReplaceAll(value, "_", `\_`)
	return value
}
