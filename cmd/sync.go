package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/theapemachine/conscious-go/pkg/logging"
)

var (
	fullFlag bool

	syncCmd = &cobra.Command{
		Use:   "sync",
		Short: "Run one graph reconciliation pass and exit",
		Long:  longSync,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			service, graph, err := buildService(ctx)
			if err != nil {
				return err
			}
			defer service.Close()
			defer graph.Close(ctx)

			report, err := service.TriggerSync(ctx, fullFlag)
			if err != nil {
				return err
			}

			logging.Named("sync").Info("sync pass finished",
				"processed", report.Processed,
				"errors", report.Errors,
				"full", fullFlag,
			)

			return nil
		},
	}
)

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().BoolVar(
		&fullFlag, "full", false,
		"re-project every memory instead of only unsynced ones",
	)
}

var longSync = `
Run a single reconciliation pass against the knowledge graph.

Examples:
  # Project memories that are new or changed since the last sync
  conscious-go sync

  # Rebuild the whole projection
  conscious-go sync --full
`
