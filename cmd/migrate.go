/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"

	"github.com/accounthub/apiserver/config"
	"github.com/accounthub/apiserver/internal/db"
)

const migrationsURL = "file://internal/db/migrations"

// migrateCmd represents the migrate command.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all up migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		migrator, err := newMigrator()
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
	Use:   "down",
	Short: "Roll back the most recent migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		migrator, err := newMigrator()
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

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current migration version",
	RunE: func(cmd *cobra.Command, args []string) error {
		migrator, err := newMigrator()
		if err != nil {
			return err
		}
		defer func() {
			_, _ = migrator.Close()
		}()

		version, dirty, err := migrator.Version()
		if err != nil {
			if errors.Is(err, migrate.ErrNilVersion) {
				fmt.Println("no migrations applied")
				return nil
			}
			return err
		}
		fmt.Printf("version: %d dirty: %v\n", version, dirty)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	migrateCmd.AddCommand(migrateVersionCmd)
}

func newMigrator() (*migrate.Migrate, error) {
	cfg := config.LoadConfig()
	migrator, err := migrate.New(migrationsURL, db.DSN(cfg.Database))
	if err != nil {
		return nil, fmt.Errorf("init migrator failed: %w", err)
	}
	return migrator, nil
}
