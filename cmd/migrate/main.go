package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/stemsi/ielts-mock/internal/config"
	"github.com/stemsi/ielts-mock/internal/database"
	"github.com/stemsi/ielts-mock/internal/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := config.Load()
	var dir string

	open := func() (*database.Migrator, error) {
		log := logger.Setup(cfg.LogLevel, cfg.LogFormat, "")
		return database.NewMigrator(dir, cfg.DatabaseURL, log)
	}

	root := &cobra.Command{
		Use:          "migrate",
		Short:        "Manage the results database schema",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&dir, "path", cfg.MigrationsDir, "path to migration files")

	root.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				m, err := open()
				if err != nil {
					return err
				}
				defer m.Close()
				return m.Up()
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back all migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				m, err := open()
				if err != nil {
					return err
				}
				defer m.Close()
				return m.Down()
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the applied migration version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				m, err := open()
				if err != nil {
					return err
				}
				defer m.Close()
				v, dirty, err := m.Version()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Version: %d, Dirty: %t\n", v, dirty)
				return nil
			},
		},
		&cobra.Command{
			Use:   "force <version>",
			Short: "Set the migration version without running it",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				v, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid version %q: %w", args[0], err)
				}
				m, err := open()
				if err != nil {
					return err
				}
				defer m.Close()
				return m.Force(v)
			},
		},
	)
	return root
}
