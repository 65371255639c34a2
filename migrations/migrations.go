// Package migrations embeds the goose SQL migrations the service applies
// at startup.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
