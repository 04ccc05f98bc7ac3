package internal

import (
	"database/sql"
	"embed"

	"github.com/pressly/goose/v3"
)

// The media-table migrations are embedded so a deployed binary can bring its
// schema up to date at startup without shipping SQL files alongside it.
//
//go:embed migrations/*.sql
var migrationsFS embed.FS

// RunMigrations applies any pending migrations. The registry layer only
// verifies schema; this is the sole place DDL runs.
func RunMigrations(db *sql.DB) error {
	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	return goose.Up(db, "migrations")
}
