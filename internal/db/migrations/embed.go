// Package migrations embeds the cache schema so the binary carries its own migrations.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
