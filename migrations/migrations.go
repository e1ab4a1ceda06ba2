// Package migrations embeds the SQLite schema so binaries do not depend on
// the working directory.
package migrations

import "embed"

// FS holds the numbered .sql migration files
//
//go:embed *.sql
var FS embed.FS
