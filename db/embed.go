// Package db embeds the storefront schema and seed catalog.
package db

import _ "embed"

// Schema holds idempotent DDL for every table.
//
//go:embed migrations/001_schema.sql
var Schema string

// Products is the default seed catalog as a JSON array.
//
//go:embed seed/products.json
var Products []byte
