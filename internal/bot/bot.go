// Package bot implements the Telegram operator bot.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"rss_glue/internal/config"
	"rss_glue/internal/feed"
	"rss_glue/internal/scheduler"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Updater runs a single feed on demand.
type Updater interface {
	UpdateOne(ctx context.Context, namespace string, force bool) (scheduler.Outcome, error)
}

// Bot is the Telegram bot operators use to inspect and control feeds.
type Bot struct {
	api     telegramAPI
	feeds   *feed.Registry
	updater Updater
	cfg     *config.Config
	log     *slog.Logger
}

// New creates a Bot with the given Telegram token.
func New(token string, feeds *feed.Registry, updater Updater, cfg *config.Config, log *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	return &Bot{
		api:     api,
		feeds:   feeds,
		updater: updater,
		cfg:     cfg,
		log:     log,
	}, nil
}

// Run starts the bot's long-polling loop, blocking until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update := <-updates:
			if update.CallbackQuery != nil {
				if !b.cfg.IsUserAllowed(update.CallbackQuery.From.ID) {
					continue
				}
				b.handleCallback(ctx, update.CallbackQuery)
				continue
			}
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			if !b.cfg.IsUserAllowed(update.Message.From.ID) {
				b.reply(update.Message.Chat.ID, "Access denied.")
				continue
			}
			b.handleCommand(ctx, update.Message)
		}
	}
}

// SendMessage sends a text message to the given chat.
func (b *Bot) SendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send message", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) reply(chatID int64, text string) {
	b.SendMessage(chatID, text)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cmd := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())
	chatID := msg.Chat.ID

	b.log.Debug("command", "cmd", cmd, "args", args, "chat_id", chatID)
	b.dispatch(ctx, chatID, cmd, args)
}

func (b *Bot) dispatch(ctx context.Context, chatID int64, cmd, args string) {
	switch cmd {
	case "start", "help":
		b.handleHelp(chatID)
	case cmdList:
		b.handleList(ctx, chatID)
	case cmdInfo:
		b.handleInfo(ctx, chatID, args)
	case cmdLock:
		b.handleLock(ctx, chatID, args)
	case cmdUnlock:
		b.handleUnlock(ctx, chatID, args)
	case cmdUpdate:
		b.handleUpdate(ctx, chatID, args)
	case cmdPosts:
		b.handlePosts(ctx, chatID, args)
	default:
		b.reply(chatID, "Unknown command. Use /help for a list of commands.")
	}
}
