package db

import "embed"

// MigrationFS holds the versioned SQL migrations applied by cmd/migrate.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
