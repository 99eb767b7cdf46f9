package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLockCommand(opts *RootOptions, lock bool) *cobra.Command {
	use, short := "unlock", "Allow automatic updates of a feed again"
	if lock {
		use, short = "lock", "Stop automatic updates of a feed"
	}

	return &cobra.Command{
		Use:   use + " <namespace>",
		Short: short,
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
			if lock {
				err = f.Lock(cmd.Context())
			} else {
				err = f.Unlock(cmd.Context())
			}
			if err != nil {
				return fmt.Errorf("%s %s: %w", use, f.Namespace(), err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%sed %s\n", use, f.Namespace())
			return nil
		},
	}
}
