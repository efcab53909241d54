// Package migrations embeds the PostgreSQL schema migrations so binaries can apply
// them without a checkout on disk.
package migrations

import "embed"

// FS holds the *.up.sql and *.down.sql files.
//
//go:embed *.sql
var FS embed.FS
