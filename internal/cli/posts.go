package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"rss_glue/internal/storage"
)

func newPostsCommand(opts *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "posts <namespace>",
		Short: "Show the newest posts of a feed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			f, err := a.lookup(args[0])
			if err != nil {
				return err
			}
			posts, err := f.Posts(cmd.Context(), storage.Query{Limit: limit})
			if err != nil {
				return fmt.Errorf("load posts: %w", err)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			for _, p := range posts {
				info := p.Info()
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", shortTime(info.PostedTime), info.ID, info.Title, info.OriginURL)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of posts to show")

	return cmd
}
