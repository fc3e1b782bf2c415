package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ledger/internal/storage"
)

func (a *app) migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the SQLite schema",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if err := storage.RunMigrations(a.cfg.SQLiteDBPath); err != nil {
					return err
				}
				a.logger.Info("Migrations applied", "database", a.cfg.SQLiteDBPath)
				return a.printVersion(cmd)
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back every migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if err := storage.RollbackMigrations(a.cfg.SQLiteDBPath); err != nil {
					return err
				}
				a.logger.Info("Migrations rolled back", "database", a.cfg.SQLiteDBPath)
				return a.printVersion(cmd)
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.printVersion(cmd)
			},
		},
	)
	return cmd
}

func (a *app) printVersion(cmd *cobra.Command) error {
	version, dirty, err := storage.SchemaVersion(a.cfg.SQLiteDBPath)
	if err != nil {
		return err
	}
	state := "clean"
	if dirty {
		state = "dirty"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (%s)\n", version, state)
	return nil
}
