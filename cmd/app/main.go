// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"

	"codeberg.org/oliverandrich/hookpanel/internal/config"
	"codeberg.org/oliverandrich/hookpanel/internal/database"
	"codeberg.org/oliverandrich/hookpanel/internal/server"
	"github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:   "hookpanel",
		Usage:  "Manage store webhooks through a small JSON API",
		Flags:  config.Flags(),
		Action: server.Run,
		Commands: []*cli.Command{
			{
				Name:  "migrate",
				Usage: "Inspect or roll back the database schema",
				Commands: []*cli.Command{
					{
						Name:   "up",
						Usage:  "Apply all pending migrations",
						Action: migrateUp,
					},
					{
						Name:   "status",
						Usage:  "Print the applied schema version",
						Action: migrateStatus,
					},
					{
						Name:   "down",
						Usage:  "Roll back the most recent migration",
						Action: migrateDown,
					},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func migrateUp(ctx context.Context, cmd *cli.Command) error {
	return withSchema(cmd, "migrated to schema version %d\n", database.RunMigrations)
}

func migrateStatus(ctx context.Context, cmd *cli.Command) error {
	return withSchema(cmd, "schema version %d\n", nil)
}

func migrateDown(ctx context.Context, cmd *cli.Command) error {
	return withSchema(cmd, "rolled back to schema version %d\n", database.MigrateDown)
}

// withSchema connects without migrating, runs step if given and prints the
// resulting schema version.
func withSchema(cmd *cli.Command, format string, step func(*sql.DB) error) error {
	cfg := config.NewFromCLI(cmd)
	db, err := database.Connect(cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	if step != nil {
		if err := step(db.DB); err != nil {
			return err
		}
	}
	version, err := database.MigrationVersion(db.DB)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.Root().Writer, format, version)
	return err
}
