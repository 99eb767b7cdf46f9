// Package cli implements the rssglue command line.
package cli

import (
	"github.com/spf13/cobra"

	"rss_glue/internal/config"
	"rss_glue/internal/fetcher"
)

// RootOptions holds global flags and the loaded process configuration.
type RootOptions struct {
	GraphPath string
	LogLevel  string

	// HTTP overrides the client used for feed downloads.
	HTTP fetcher.HTTPClient

	cfg *config.Config
}

// NewRootCommand creates the root command for the rssglue CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rssglue",
		Short: "Compose RSS feeds into filtered, merged and digested feeds",
		Long: `rssglue fetches RSS feeds, runs them through a graph of aliases, filters,
merges and digests declared in a YAML file, and writes the results as JSON Feed
files. Configuration is read from RSSGLUE_* environment variables.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if opts.GraphPath != "" {
				cfg.GraphPath = opts.GraphPath
			}
			if opts.LogLevel != "" {
				cfg.LogLevel = opts.LogLevel
			}
			opts.cfg = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.GraphPath, "config", "c", "", "path to the feed graph file (overrides RSSGLUE_CONFIG)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "debug, info, warn or error (overrides RSSGLUE_LOG_LEVEL)")

	cmd.AddCommand(newValidateCommand(opts))
	cmd.AddCommand(newUpdateCommand(opts))
	cmd.AddCommand(newWatchCommand(opts))
	cmd.AddCommand(newListCommand(opts))
	cmd.AddCommand(newLockCommand(opts, true))
	cmd.AddCommand(newLockCommand(opts, false))
	cmd.AddCommand(newPostsCommand(opts))
	cmd.AddCommand(newBotCommand(opts))

	return cmd
}
