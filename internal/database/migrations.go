package database

import "embed"

// migrationFiles holds the Postgres schema, applied in file name order by PostgresDB.Migrate.
//
//go:embed migrations/*.sql
var migrationFiles embed.FS
