/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/corn-moisture/platform/config"
	"github.com/corn-moisture/platform/internal/db"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"
)

// migrateCmd represents the migrate command.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long: `Run database migrations for one service database. Usage:

	moisture migrate up users
	moisture migrate down data
`,
}

var migrateUpCmd = &cobra.Command{
	Use:       "up [users|data]",
	Short:     "Apply all up migrations",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"users", "data"},
	RunE: func(cmd *cobra.Command, args []string) error {
		migrator, err := newMigrator(args[0])
		if err != nil {
			return err
		}
		defer func() {
			_, _ = migrator.Close()
		}()

		if err := migrator.Up(); err != nil {
			if errors.Is(err, migrate.ErrNoChange) {
				return nil
			}
			return fmt.Errorf("migrate up failed: %w", err)
		}
		return nil
	},
}

var migrateDownCmd = &cobra.Command{
	Use:       "down [users|data]",
	Short:     "Roll back the most recent migration",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"users", "data"},
	RunE: func(cmd *cobra.Command, args []string) error {
		migrator, err := newMigrator(args[0])
		if err != nil {
			return err
		}
		defer func() {
			_, _ = migrator.Close()
		}()

		if err := migrator.Steps(-1); err != nil {
			if errors.Is(err, migrate.ErrNoChange) {
				return nil
			}
			return fmt.Errorf("migrate down failed: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
}

// migrationTarget names the migrations directory and bookkeeping table of
// one service database.
type migrationTarget struct {
	dir   string
	table string
}

var migrationTargets = map[string]migrationTarget{
	"users": {dir: "internal/db/migrations/users", table: "users_schema_migrations"},
	"data":  {dir: "internal/db/migrations/moisture", table: "moisture_schema_migrations"},
}

func newMigrator(service string) (*migrate.Migrate, error) {
	target, ok := migrationTargets[service]
	if !ok {
		return nil, fmt.Errorf("unknown service %q", service)
	}

	load := config.LoadDataDatabaseConfig
	if service == "users" {
		load = config.LoadUsersDatabaseConfig
	}
	dbCfg, err := load()
	if err != nil {
		return nil, err
	}

	migrator, err := migrate.New("file://"+target.dir, migrationDSN(dbCfg, target.table))
	if err != nil {
		return nil, fmt.Errorf("init migrator failed: %w", err)
	}
	return migrator, nil
}

func migrationDSN(cfg config.DatabaseConfig, table string) string {
	u, err := url.Parse(db.URL(cfg))
	if err != nil {
		return db.URL(cfg)
	}
	q := u.Query()
	q.Set("x-migrations-table", table)
	u.RawQuery = q.Encode()
	return u.String()
}
