// Package db embeds the database schema applied on startup.
package db

import _ "embed"

// Schema holds the idempotent DDL for the checkout tables.
//
//go:embed migrations/001_schema.sql
var Schema string
