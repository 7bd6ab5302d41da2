package migrations

import "embed"

// FS contains the embedded identity store migrations.
//
//go:embed *.sql
var FS embed.FS
