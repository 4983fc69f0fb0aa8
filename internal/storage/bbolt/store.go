// Package bbolt provides a BoltDB-backed ledger store. It trades the SQL
// store's query pushdown for a single-file embedded database with no SQL
// runtime, which suits small deployments and tests.
package bbolt

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	"github.com/louisbranch/standing.credit/internal/storage"
)

const (
	accountsBucket = "accounts"
	entriesBucket  = "entries"
)

// Store provides a BoltDB-backed ledger store.
type Store struct {
	db *bbolt.DB
}

var _ storage.LedgerStore = (*Store)(nil)

// Open opens a BoltDB-backed store at the provided path, creating the root
// buckets on first use.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	db, err := bbolt.Open(filepath.Clean(path), 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{accountsBucket, entriesBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database. Safe to call on a nil store.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// boltAccount is the stored account shape. Seq preserves creation order for
// leaderboard tie-breaks.
type boltAccount struct {
	Member    string `json:"member"`
	Score     int64  `json:"score"`
	Seq       uint64 `json:"seq"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// boltEntry is the stored audit entry shape.
type boltEntry struct {
	ID        int64  `json:"id"`
	Actor     string `json:"actor,omitempty"`
	Target    string `json:"target"`
	Delta     int64  `json:"delta"`
	Reason    string `json:"reason,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

func (a boltAccount) toAccount(community string) storage.Account {
	return storage.Account{
		Community: community,
		Member:    a.Member,
		Score:     a.Score,
		CreatedAt: fromMillis(a.CreatedAt),
		UpdatedAt: fromMillis(a.UpdatedAt),
	}
}

func (e boltEntry) toEntry(community string) storage.Entry {
	return storage.Entry{
		ID:        e.ID,
		Community: community,
		Actor:     e.Actor,
		Target:    e.Target,
		Delta:     e.Delta,
		Reason:    e.Reason,
		CreatedAt: fromMillis(e.CreatedAt),
	}
}

func entryKey(seq uint64) []byte {
	var key [8]byte
	binary.BigEndian.PutUint64(key[:], seq)
	return key[:]
}

func decodeAccount(raw []byte) (boltAccount, error) {
	var account boltAccount
	if err := json.Unmarshal(raw, &account); err != nil {
		return boltAccount{}, fmt.Errorf("decode account: %w", err)
	}
	return account, nil
}

func decodeEntry(raw []byte) (boltEntry, error) {
	var entry boltEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return boltEntry{}, fmt.Errorf("decode entry: %w", err)
	}
	return entry, nil
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(millis int64) time.Time {
	return time.UnixMilli(millis).UTC()
}
