// Package db embeds the database schema applied at startup.
package db

import _ "embed"

// Schema holds the DDL for every application table. Statements are idempotent
// so re-applying on boot is safe.
//
//go:embed migrations/001_schema.sql
var Schema string
