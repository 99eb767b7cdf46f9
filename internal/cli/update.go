package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"rss_glue/internal/scheduler"
)

func newUpdateCommand(opts *RootOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "update [namespace...]",
		Short: "Run one update pass and regenerate outputs",
		Long: `Run one update pass over the feed graph, then regenerate every output.

With namespaces, only those feeds are considered. --force runs feeds even when
they are not due or are locked.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			for _, ns := range args {
				if _, err := a.lookup(ns); err != nil {
					return err
				}
			}

			outcomes := a.sched.Pass(cmd.Context(), force, scheduler.Namespaces(args...))
			printOutcomes(cmd.OutOrStdout(), outcomes)
			for _, o := range outcomes {
				if o.Status == scheduler.StatusFailed {
					return fmt.Errorf("%s failed: %w", o.Namespace, o.Err)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "update feeds even when not due or locked")

	return cmd
}

func printOutcomes(w io.Writer, outcomes []scheduler.Outcome) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, o := range outcomes {
		detail := ""
		switch {
		case o.Err != nil:
			detail = o.Err.Error()
		case o.Duration > 0:
			detail = o.Duration.Round(time.Millisecond).String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", o.Namespace, o.Status, detail)
	}
	_ = tw.Flush()
}
