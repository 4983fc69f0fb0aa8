// Package migrations embeds the SQLite schema for ledger storage.
package migrations

import "embed"

// FS contains embedded SQLite migrations for the ledger store.
//
//go:embed *.sql
var FS embed.FS
