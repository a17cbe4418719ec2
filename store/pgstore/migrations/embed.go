// Package migrations embeds the goose SQL migrations for store/pgstore.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
