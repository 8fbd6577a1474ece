// Package migrations embeds the SQL schema files for the document
// store. Files are named NNN_name.up.sql and applied in order.
package migrations

import "embed"

// FS holds the migration files embedded at compile time.
//
//go:embed *.sql
var FS embed.FS
