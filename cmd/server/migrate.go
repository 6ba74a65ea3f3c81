package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sujalbistaa/payboard/internal/db"
)

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := configFromCommand(cmd)
			logger := commonRun()

			database, err := db.Open(db.Config{URL: cfg.DatabaseURL, Logger: logger})
			if err != nil {
				logger.Error("failed to initialize database", "component", "db", "error", err)
				os.Exit(1)
			}
			defer db.Close(database)

			if err := db.Migrate(cmd.Context(), database); err != nil {
				logger.Error("failed to run migrations", "component", "db", "error", err)
				os.Exit(1)
			}
			logger.Info("migrations complete", "component", "db")
		},
	}
}
