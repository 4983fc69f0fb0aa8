package maintenance

import (
	"fmt"

	"github.com/louisbranch/standing.credit/internal/storage"
	"github.com/louisbranch/standing.credit/internal/storage/bbolt"
	"github.com/louisbranch/standing.credit/internal/storage/sqlite"
)

// closableLedgerStore extends LedgerStore with a Close method for resource
// cleanup.
type closableLedgerStore interface {
	storage.LedgerStore
	Close() error
}

// openLedgerStore opens the configured store backend.
func openLedgerStore(kind, path string) (closableLedgerStore, error) {
	switch kind {
	case "sqlite":
		return sqlite.Open(path)
	case "bbolt":
		return bbolt.Open(path)
	}
	return nil, fmt.Errorf("unknown store backend %q", kind)
}
