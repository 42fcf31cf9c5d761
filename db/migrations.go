// Package db holds the SQL schema for the delivery journal.
package db

import "embed"

// Migrations contains migrations/<dialect>/*.sql, applied in name order.
//
//go:embed migrations
var Migrations embed.FS
