package bbolt

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	"github.com/louisbranch/standing.credit/internal/storage"
)

// GetScore returns the current score, or 0 when no account exists.
func (s *Store) GetScore(ctx context.Context, community, member string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.db == nil {
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
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(accountsBucket)).Bucket([]byte(community))
		if bucket == nil {
			return nil
		}
		raw := bucket.Get([]byte(member))
		if raw == nil {
			return nil
		}
		account, err := decodeAccount(raw)
		if err != nil {
			return err
		}
		score = account.Score
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("get score: %w", err)
	}
	return score, nil
}

// AdjustScore applies delta to the target's account and appends the matching
// audit entry in one transaction. The account is created on first touch.
func (s *Store) AdjustScore(ctx context.Context, community, actor, target string, delta int64, reason string, at time.Time) (storage.Adjustment, error) {
	if err := ctx.Err(); err != nil {
		return storage.Adjustment{}, err
	}
	if s == nil || s.db == nil {
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

	var previous int64
	err := s.db.Update(func(tx *bbolt.Tx) error {
		accounts, err := tx.Bucket([]byte(accountsBucket)).CreateBucketIfNotExists([]byte(community))
		if err != nil {
			return fmt.Errorf("create community accounts: %w", err)
		}

		account := boltAccount{Member: target, CreatedAt: atMillis}
		if raw := accounts.Get([]byte(target)); raw != nil {
			if account, err = decodeAccount(raw); err != nil {
				return err
			}
		} else {
			seq, err := accounts.NextSequence()
			if err != nil {
				return fmt.Errorf("account sequence: %w", err)
			}
			account.Seq = seq
		}
		previous = account.Score
		account.Score = previous + delta
		account.UpdatedAt = atMillis

		rawAccount, err := json.Marshal(account)
		if err != nil {
			return fmt.Errorf("encode account: %w", err)
		}
		if err := accounts.Put([]byte(target), rawAccount); err != nil {
			return fmt.Errorf("write account: %w", err)
		}

		entries, err := tx.Bucket([]byte(entriesBucket)).CreateBucketIfNotExists([]byte(community))
		if err != nil {
			return fmt.Errorf("create community entries: %w", err)
		}
		seq, err := entries.NextSequence()
		if err != nil {
			return fmt.Errorf("entry sequence: %w", err)
		}
		rawEntry, err := json.Marshal(boltEntry{
			ID:        int64(seq),
			Actor:     strings.TrimSpace(actor),
			Target:    target,
			Delta:     delta,
			Reason:    reason,
			CreatedAt: atMillis,
		})
		if err != nil {
			return fmt.Errorf("encode entry: %w", err)
		}
		return entries.Put(entryKey(seq), rawEntry)
	})
	if err != nil {
		return storage.Adjustment{}, fmt.Errorf("adjust score: %w", err)
	}

	return storage.Adjustment{Previous: previous, Current: previous + delta}, nil
}

// Leaderboard returns up to limit accounts ordered by score, ties broken by
// account creation order.
func (s *Store) Leaderboard(ctx context.Context, community string, direction storage.Direction, limit int) ([]storage.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	community = strings.TrimSpace(community)
	if community == "" {
		return nil, fmt.Errorf("community id is required")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	accounts, err := s.communityAccounts(community)
	if err != nil {
		return nil, err
	}

	sort.Slice(accounts, func(i, j int) bool {
		if accounts[i].Score != accounts[j].Score {
			if direction == storage.DirectionBottom {
				return accounts[i].Score < accounts[j].Score
			}
			return accounts[i].Score > accounts[j].Score
		}
		return accounts[i].Seq < accounts[j].Seq
	})
	if len(accounts) > limit {
		accounts = accounts[:limit]
	}

	result := make([]storage.Account, len(accounts))
	for i, account := range accounts {
		result[i] = account.toAccount(community)
	}
	return result, nil
}

// RecentEntries returns up to limit entries targeting a member, newest first.
func (s *Store) RecentEntries(ctx context.Context, community, member string, limit int) ([]storage.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.db == nil {
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

	var entries []storage.Entry
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(entriesBucket)).Bucket([]byte(community))
		if bucket == nil {
			return nil
		}
		cursor := bucket.Cursor()
		for key, raw := cursor.Last(); key != nil && len(entries) < limit; key, raw = cursor.Prev() {
			entry, err := decodeEntry(raw)
			if err != nil {
				return err
			}
			if entry.Target != member {
				continue
			}
			entries = append(entries, entry.toEntry(community))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("recent entries: %w", err)
	}
	return entries, nil
}

// AggregateSince groups entries by target over a window, optionally filtered
// by the "kind:" reason prefix convention used by the action engine.
func (s *Store) AggregateSince(ctx context.Context, community string, since time.Time, actionFilter string, limit int) ([]storage.TargetAggregate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	community = strings.TrimSpace(community)
	if community == "" {
		return nil, fmt.Errorf("community id is required")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	prefix := ""
	if filter := strings.TrimSpace(actionFilter); filter != "" {
		prefix = filter + ":"
	}
	sinceMillis := toMillis(since)

	grouped := make(map[string]*storage.TargetAggregate)
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(entriesBucket)).Bucket([]byte(community))
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(_, raw []byte) error {
			entry, err := decodeEntry(raw)
			if err != nil {
				return err
			}
			if entry.CreatedAt < sinceMillis {
				return nil
			}
			if prefix != "" && !strings.HasPrefix(entry.Reason, prefix) {
				return nil
			}
			agg, ok := grouped[entry.Target]
			if !ok {
				agg = &storage.TargetAggregate{Target: entry.Target}
				grouped[entry.Target] = agg
			}
			agg.Hits++
			agg.Net += entry.Delta
			if entry.Delta < 0 {
				agg.TotalLoss -= entry.Delta
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("aggregate entries: %w", err)
	}

	aggregates := make([]storage.TargetAggregate, 0, len(grouped))
	for _, agg := range grouped {
		aggregates = append(aggregates, *agg)
	}
	sort.Slice(aggregates, func(i, j int) bool {
		if aggregates[i].Hits != aggregates[j].Hits {
			return aggregates[i].Hits > aggregates[j].Hits
		}
		return aggregates[i].TotalLoss > aggregates[j].TotalLoss
	})
	if len(aggregates) > limit {
		aggregates = aggregates[:limit]
	}
	return aggregates, nil
}

// ListCommunities returns every community with at least one account.
func (s *Store) ListCommunities(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	var communities []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		cursor := tx.Bucket([]byte(accountsBucket)).Cursor()
		for key, value := cursor.First(); key != nil; key, value = cursor.Next() {
			if value == nil {
				communities = append(communities, string(key))
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list communities: %w", err)
	}
	return communities, nil
}

// ListAccounts returns all accounts in a community in creation order.
func (s *Store) ListAccounts(ctx context.Context, community string) ([]storage.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	community = strings.TrimSpace(community)
	if community == "" {
		return nil, fmt.Errorf("community id is required")
	}

	accounts, err := s.communityAccounts(community)
	if err != nil {
		return nil, err
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Seq < accounts[j].Seq })

	result := make([]storage.Account, len(accounts))
	for i, account := range accounts {
		result[i] = account.toAccount(community)
	}
	return result, nil
}

// SumEntryDeltas replays the log for one member and returns the delta sum.
func (s *Store) SumEntryDeltas(ctx context.Context, community, member string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.db == nil {
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
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(entriesBucket)).Bucket([]byte(community))
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(_, raw []byte) error {
			entry, err := decodeEntry(raw)
			if err != nil {
				return err
			}
			if entry.Target == member {
				sum += entry.Delta
			}
			return nil
		})
	})
	if err != nil {
		return 0, fmt.Errorf("sum entry deltas: %w", err)
	}
	return sum, nil
}

func (s *Store) communityAccounts(community string) ([]boltAccount, error) {
	var accounts []boltAccount
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(accountsBucket)).Bucket([]byte(community))
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(_, raw []byte) error {
			account, err := decodeAccount(raw)
			if err != nil {
				return err
			}
			accounts = append(accounts, account)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return accounts, nil
}
