// Package migrations embeds the SQL schema for both record-store dialects.
package migrations

import "embed"

// Postgres holds golang-migrate files (NNNNNN_name.up.sql / .down.sql).
//
//go:embed postgres/*.sql
var Postgres embed.FS

// SQLite holds forward-only files applied in lexical order.
//
//go:embed sqlite/*.sql
var SQLite embed.FS
