package main

import (
	"fmt"

	"living-science-documents/internal/config"
	"living-science-documents/internal/logger"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	cfg config.Config
	log zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "lsd",
	Short:         "Living science documents: version lifecycle and DOI synchronization",
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config.LoadConfig()
		cfg = config.AppConfig
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		log = logger.Init(logger.Config{
			Level:  cfg.LogLevel,
			Pretty: cfg.Environment == "development",
		})
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, retryCmd, tokenCmd)
}
