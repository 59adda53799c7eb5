package migrations

import (
	"context"
	"embed"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/migrate"
)

//go:embed sql
var sqlFiles embed.FS

var (
	// SQLite holds the offline schema.
	SQLite = migrate.NewMigrations()
	// Postgres holds the online schema.
	Postgres = migrate.NewMigrations()
)

// For returns the migration set matching a bun dialect.
func For(name dialect.Name) *migrate.Migrations {
	if name == dialect.PG {
		return Postgres
	}
	return SQLite
}

func init() {
	SQLite.MustRegister(script("sql/sqlite_create_quiz_tables.sql"), script("sql/drop_quiz_tables.sql"))
	Postgres.MustRegister(script("sql/postgres_create_quiz_tables.sql"), script("sql/drop_quiz_tables.sql"))
}

// script runs the statements of an embedded file one by one; drivers differ
// in whether they accept several statements per Exec.
func script(name string) migrate.MigrationFunc {
	return func(ctx context.Context, db *bun.DB) error {
		raw, err := sqlFiles.ReadFile(name)
		if err != nil {
			return err
		}
		for _, stmt := range strings.Split(string(raw), ";") {
			if strings.TrimSpace(stmt) == "" {
				continue
			}
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	}
}
