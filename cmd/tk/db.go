package main

import (
	"github.com/spf13/cobra"

	"github.com/zulandar/tracker/internal/db"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}
	cmd.AddCommand(newDBMigrateCmd())
	return cmd
}

func newDBMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the tracker tables",
		Long:  "Creates the MySQL database if needed, then migrates every table. For sqlite the file is created on first use.",
		RunE:  runDBMigrate,
	}
}

func runDBMigrate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := db.CreateDatabase(cfg.Database); err != nil {
		return err
	}
	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close(gormDB)

	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	success(out, "Migrated %d tables (%s)", len(db.AllModels()), cfg.Database.Driver)
	return nil
}
