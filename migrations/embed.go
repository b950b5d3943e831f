// Package migrations embeds the SQL schema files the migration runner
// applies in lexical order.
package migrations

import (
	"embed"
	"io/fs"
)

//go:embed *.sql
var Files embed.FS

// GetFS exposes the embedded schema files
func GetFS() fs.FS {
	return Files
}
