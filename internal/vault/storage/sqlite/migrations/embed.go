// Package migrations embeds the SQLite schema migrations for the ledger store.
package migrations

import "embed"

// FS contains embedded SQLite migrations for vault storage.
//
//go:embed *.sql
var FS embed.FS
