// Package sqldb persists quizzes with bun, on SQLite for the offline build
// and on Postgres for the online one. Both share the same schema and Store.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"daypo-quiz-service/internal/infra/sqldb/migrations"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
	_ "modernc.org/sqlite" // driver: sqlite
)

// OpenSQLite opens (creating if needed) a SQLite database file. ":memory:"
// yields a private in-memory database.
func OpenSQLite(path string) (*bun.DB, error) {
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?mode=rwc&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	}
	sqldb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer at a time; also keeps an in-memory database on one connection
	sqldb.SetMaxOpenConns(1)
	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

// OpenPostgres opens a Postgres database through bun's pgdriver.
func OpenPostgres(dsn string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}

// Migrate applies every pending migration for the database's dialect.
func Migrate(ctx context.Context, db *bun.DB) error {
	migrator := migrate.NewMigrator(db, migrations.For(db.Dialect().Name()))

	if err := migrator.Init(ctx); err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	group, err := migrator.Migrate(ctx)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if group.IsZero() {
		log.Printf("database schema up to date")
		return nil
	}
	log.Printf("migrated to %s", group)
	return nil
}
