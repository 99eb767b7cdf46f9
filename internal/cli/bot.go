package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"rss_glue/internal/bot"
)

func newBotCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "bot",
		Short: "Run the Telegram operator bot",
		Long: `Run the Telegram operator bot until interrupted. The bot lists feeds, shows
recent posts, locks and unlocks feeds and forces updates.

Requires RSSGLUE_TELEGRAM_BOT_TOKEN. RSSGLUE_ALLOWED_USERS restricts who may
use it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.cfg.Telegram.BotToken == "" {
				return errors.New("RSSGLUE_TELEGRAM_BOT_TOKEN is required")
			}
			a, err := openApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			b, err := bot.New(a.cfg.Telegram.BotToken, a.env.Registry, a.sched, a.cfg, a.log)
			if err != nil {
				return err
			}

			a.log.Info("starting bot")
			b.Run(cmd.Context())
			a.log.Info("bot stopped")
			return nil
		},
	}
}
