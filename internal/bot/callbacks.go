package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"rss_glue/internal/feed"
)

const (
	cmdList   = "list"
	cmdInfo   = "info"
	cmdLock   = "lock"
	cmdUnlock = "unlock"
	cmdUpdate = "update"
	cmdPosts  = "posts"
)

func infoKeyboard(st feed.Status) tgbotapi.InlineKeyboardMarkup {
	toggle := tgbotapi.NewInlineKeyboardButtonData("Lock", cmdLock+":"+st.Namespace)
	if st.Locked {
		toggle = tgbotapi.NewInlineKeyboardButtonData("Unlock", cmdUnlock+":"+st.Namespace)
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			toggle,
			tgbotapi.NewInlineKeyboardButtonData("Update now", cmdUpdate+":"+st.Namespace),
			tgbotapi.NewInlineKeyboardButtonData("Posts", cmdPosts+":"+st.Namespace),
		),
	)
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil {
		return
	}
	chatID := cb.Message.Chat.ID

	callback := tgbotapi.NewCallback(cb.ID, "")
	if _, err := b.api.Send(callback); err != nil {
		b.log.Error("send callback ack", "error", err)
	}

	action, ns, ok := strings.Cut(cb.Data, ":")
	if !ok || ns == "" {
		return
	}

	b.log.Info("callback",
		"action", action,
		"ns", ns,
		"chat_id", chatID,
		"user_id", cb.From.ID,
		"username", cb.From.UserName,
	)

	switch action {
	case cmdLock:
		b.handleLock(ctx, chatID, ns)
	case cmdUnlock:
		b.handleUnlock(ctx, chatID, ns)
	case cmdUpdate:
		b.handleUpdate(ctx, chatID, ns)
	case cmdPosts:
		b.handlePosts(ctx, chatID, ns)
	}
}
