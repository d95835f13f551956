package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print collection statistics and tag usage",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		service, graph, err := buildService(ctx)
		if err != nil {
			return err
		}
		defer service.Close()
		defer graph.Close(ctx)

		stats, err := service.GetStats(ctx)
		if err != nil {
			return err
		}

		tags, err := service.ListTags(ctx)
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(map[string]any{
			"stats": stats,
			"tags":  tags,
		}, "", "  ")
		if err != nil {
			return err
		}

		fmt.Println(string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
