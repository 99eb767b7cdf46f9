package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"rss_glue/internal/config"
)

func newValidateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the feed graph file without touching the cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := config.LoadGraph(opts.cfg.GraphPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s: %d feeds, %d outputs\n", opts.cfg.GraphPath, len(g.Feeds), len(g.Outputs))
			return nil
		},
	}
}
