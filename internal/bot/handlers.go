package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"rss_glue/internal/feed"
	"rss_glue/internal/storage"
)

func (b *Bot) handleHelp(chatID int64) {
	b.reply(chatID, `rss-glue operator bot

/list - show all feeds (🔒 = locked)
/info <ns> - feed details
/lock <ns> - stop automatic updates
/unlock <ns> - resume automatic updates
/update <ns> - force an update now
/posts <ns> [n] - show the newest posts (default 5)`)
}

// lookup resolves a namespace argument, replying on failure.
func (b *Bot) lookup(chatID int64, args, usage string) (feed.Feed, bool) {
	ns, err := ParseNamespaceArg(args)
	if err != nil {
		b.reply(chatID, "Usage: "+usage)
		return nil, false
	}
	f, ok := b.feeds.Get(ns)
	if !ok {
		b.reply(chatID, fmt.Sprintf("Feed %s not found.", ns))
		return nil, false
	}
	return f, true
}

func (b *Bot) handleList(ctx context.Context, chatID int64) {
	var statuses []feed.Status
	for _, f := range b.feeds.All() {
		st, err := feed.Describe(ctx, f)
		if err != nil {
			b.log.Warn("describe feed", "ns", f.Namespace(), "error", err)
			continue
		}
		statuses = append(statuses, st)
	}
	b.reply(chatID, FormatFeedList(statuses))
}

func (b *Bot) handleInfo(ctx context.Context, chatID int64, args string) {
	f, ok := b.lookup(chatID, args, "/info <ns>")
	if !ok {
		return
	}
	st, err := feed.Describe(ctx, f)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}

	var sources []string
	for _, src := range f.Sources() {
		sources = append(sources, src.Namespace())
	}

	msg := tgbotapi.NewMessage(chatID, FormatFeedInfo(st, sources))
	msg.DisableWebPagePreview = true
	msg.ReplyMarkup = infoKeyboard(st)
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send feed info", "error", err)
	}
}

func (b *Bot) handleLock(ctx context.Context, chatID int64, args string) {
	f, ok := b.lookup(chatID, args, "/lock <ns>")
	if !ok {
		return
	}
	if err := f.Lock(ctx); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.log.Info("feed locked", "ns", f.Namespace(), "chat_id", chatID)
	b.reply(chatID, fmt.Sprintf("🔒 %s locked. It will not update until /unlock.", f.Namespace()))
}

func (b *Bot) handleUnlock(ctx context.Context, chatID int64, args string) {
	f, ok := b.lookup(chatID, args, "/unlock <ns>")
	if !ok {
		return
	}
	if err := f.Unlock(ctx); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.log.Info("feed unlocked", "ns", f.Namespace(), "chat_id", chatID)
	b.reply(chatID, fmt.Sprintf("%s unlocked.", f.Namespace()))
}

func (b *Bot) handleUpdate(ctx context.Context, chatID int64, args string) {
	f, ok := b.lookup(chatID, args, "/update <ns>")
	if !ok {
		return
	}
	b.reply(chatID, fmt.Sprintf("Updating %s...", f.Namespace()))

	o, err := b.updater.UpdateOne(ctx, f.Namespace(), true)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, FormatOutcome(o))
}

func (b *Bot) handlePosts(ctx context.Context, chatID int64, args string) {
	ns, n, err := ParsePostsArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}
	f, ok := b.feeds.Get(ns)
	if !ok {
		b.reply(chatID, fmt.Sprintf("Feed %s not found.", ns))
		return
	}

	posts, err := f.Posts(ctx, storage.Query{Limit: n})
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, FormatPosts(ns, posts))
}
