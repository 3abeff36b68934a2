package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var retryLimit int

var retryCmd = &cobra.Command{
	Use:   "retry-registrations",
	Short: "Re-send pending withdraw registrations to the DOI authority",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close(context.Background())

		pending, err := a.repo.ListRetryPending(ctx, retryLimit)
		if err != nil {
			return err
		}
		n, err := a.versionService().RetryPending(ctx, retryLimit)
		if err != nil {
			return err
		}
		log.Info().Int("pending", len(pending)).Int("recovered", n).Msg("registration sweep done")
		fmt.Fprintf(cmd.OutOrStdout(), "%d of %d pending registrations recovered\n", n, len(pending))
		return nil
	},
}

func init() {
	retryCmd.Flags().IntVar(&retryLimit, "limit", 500, "maximum number of versions to retry")
}
