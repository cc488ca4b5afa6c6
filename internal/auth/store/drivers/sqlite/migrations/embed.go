// Package migrations holds the SQLite schema, applied in order by
// golang-migrate.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
