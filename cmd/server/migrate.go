package main

import (
	"living-science-documents/internal/db"
	"living-science-documents/internal/logger"
	"living-science-documents/internal/version"

	"github.com/spf13/cobra"
)

var seedOwner uint64

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.StoreDriver == "memory" {
			log.Info().Msg("memory store has no schema, nothing to migrate")
			return nil
		}
		conn, err := db.Connect(cfg, logger.Component("db"))
		if err != nil {
			return err
		}
		defer db.Close(conn, logger.Component("db"))

		if err := db.Migrate(conn, log); err != nil {
			return err
		}
		if seedOwner != 0 {
			db.SeedData(cmd.Context(), version.NewRepository(conn), seedOwner, log)
		}
		return nil
	},
}

func init() {
	migrateCmd.Flags().Uint64Var(&seedOwner, "seed-owner", 0, "create a sample publication owned by this user id")
}
