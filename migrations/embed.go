// Package migrations embeds the SQL migrations for the devstub backend.
package migrations

import "embed"

// Files holds every .sql file in this directory (order matters: 001, 002, ...).
//
//go:embed *.sql
var Files embed.FS
