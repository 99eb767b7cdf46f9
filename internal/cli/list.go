package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"rss_glue/internal/feed"
)

func newListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List feeds with their lock state, last update and next due time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "\tNAMESPACE\tTITLE\tUPDATED\tNEXT")
			for _, f := range a.env.Registry.All() {
				st, err := feed.Describe(cmd.Context(), f)
				if err != nil {
					return fmt.Errorf("describe %s: %w", f.Namespace(), err)
				}
				marker := ""
				if st.Locked {
					marker = "🔒"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", marker, st.Namespace, st.Title, shortTime(st.LastUpdated), next(st))
			}
			return tw.Flush()
		},
	}
}

func shortTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.UTC().Format(time.RFC3339)
}

func next(st feed.Status) string {
	switch {
	case st.Locked:
		return "locked"
	case st.Due:
		return "due"
	case st.Next.IsZero():
		return "manual"
	default:
		return shortTime(st.Next)
	}
}
