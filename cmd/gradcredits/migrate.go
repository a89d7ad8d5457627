package main

import (
	"fmt"

	"github.com/rpggio/gradcredits/internal/sqlite"
	"github.com/rpggio/gradcredits/migrations"
	"github.com/spf13/cobra"
)

func newMigrateCmd(a *app) *cobra.Command {
	var set string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}
	cmd.PersistentFlags().StringVar(&set, "set", string(migrations.Local), "Migration set: local or store")

	open := func() (*sqlite.DB, migrations.Set, error) {
		var path string
		switch migrations.Set(set) {
		case migrations.Local:
			path = a.cfg.DB.Path
		case migrations.Store:
			path = a.cfg.Store.DBPath
		default:
			return nil, "", fmt.Errorf("unknown migration set %q", set)
		}
		if err := ensureParentDir(path); err != nil {
			return nil, "", err
		}
		db, err := sqlite.New(path)
		if err != nil {
			return nil, "", err
		}
		return db, migrations.Set(set), nil
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, s, err := open()
			if err != nil {
				return err
			}
			defer db.Close()
			if err := db.RunMigrations(s); err != nil {
				return err
			}
			return printVersion(cmd, db, s)
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if steps < 1 {
				return fmt.Errorf("--steps must be at least 1")
			}
			db, s, err := open()
			if err != nil {
				return err
			}
			defer db.Close()
			if err := db.RollbackMigrations(s, steps); err != nil {
				return err
			}
			return printVersion(cmd, db, s)
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "Number of migrations to roll back")

	ver := &cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, s, err := open()
			if err != nil {
				return err
			}
			defer db.Close()
			return printVersion(cmd, db, s)
		},
	}

	cmd.AddCommand(up, down, ver)
	return cmd
}

func printVersion(cmd *cobra.Command, db *sqlite.DB, set migrations.Set) error {
	v, dirty, err := db.MigrationVersion(set)
	if err != nil {
		return err
	}
	out := fmt.Sprintf("%s: version %d", set, v)
	if dirty {
		out += " (dirty)"
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}
