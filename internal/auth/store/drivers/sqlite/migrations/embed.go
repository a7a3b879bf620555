// Package migrations embeds the sqlite schema migration files so the
// binary can bring its database up to date without shipping loose files.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
