package cli

import (
	"fmt"

	"daypo-quiz-service/internal/config"
	"daypo-quiz-service/internal/infra/sqldb"
	"github.com/spf13/cobra"
)

// NewMigrateCmd applies database migrations.
func NewMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, *configPath)
			if err != nil {
				return err
			}
			switch cfg.Backend() {
			case config.BackendPostgres:
				db := sqldb.OpenPostgres(cfg.Postgres.URL)
				defer db.Close()
				return sqldb.Migrate(cmd.Context(), db)
			case config.BackendSQLite:
				// openSQLite migrates on open
				db, err := openSQLite(cmd.Context(), cfg.SQLite.Path)
				if err != nil {
					return err
				}
				return db.Close()
			default:
				return fmt.Errorf("no database configured: set postgres.url or sqlite.path")
			}
		},
	}
}
