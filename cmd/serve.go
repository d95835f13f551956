package cmd

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/theapemachine/conscious-go/pkg/logging"
	"github.com/theapemachine/conscious-go/pkg/memory"
)

var (
	intervalFlag time.Duration

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the memory service with its background graph sync",
		Long:  longServe,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(
				context.Background(), syscall.SIGINT, syscall.SIGTERM,
			)
			defer stop()

			service, graph, err := buildService(ctx)
			if err != nil {
				return err
			}
			defer service.Close()
			defer graph.Close(context.Background())

			interval := intervalFlag
			if interval <= 0 {
				interval = viper.GetDuration("sync.interval")
			}

			logging.Named("serve").Info("memory service running", "interval", interval)

			// Blocks until a signal cancels the context.
			memory.NewScheduler(service.SyncEngine(), interval).Start(ctx)

			return nil
		},
	}
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().DurationVarP(
		&intervalFlag, "interval", "i", 0,
		"sync interval (overrides the configured value)",
	)
}

var longServe = `
Run the conscious memory service. The vector store must be reachable at
startup; the graph store may come and go, with projections caught up on the
next sync interval.

Examples:
  # Run with the configured sync interval
  conscious-go serve

  # Sync every thirty seconds
  conscious-go serve --interval 30s
`
