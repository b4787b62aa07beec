// Package notifier sends free-form Markdown alerts to a Telegram chat.
// Every caller (copy engine, position monitor, resolution poller)
// formats its own message and calls Notify — this package owns only
// delivery, grounded on the teacher's bot/telegram.go send/sendMarkdown
// pattern and original_source/src/services/notifier.rs's "failures are
// logged, never block the main flow" contract.
package notifier

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
)

// Notifier sends Markdown-formatted messages to a single Telegram chat.
type Notifier struct {
	api    *tgbotapi.BotAPI
	chatID int64
}

// New builds a Notifier against a bot token and chat id.
func New(token string, chatID int64) (*Notifier, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	log.Info().Str("username", api.Self.UserName).Msg("🔔 notifier initialized")
	return &Notifier{api: api, chatID: chatID}, nil
}

// Notify sends message as Markdown. A delivery failure is logged as a
// warning and never propagated — notifications must never block the
// pipeline, copy engine, or any other caller.
func (n *Notifier) Notify(message string) {
	msg := tgbotapi.NewMessage(n.chatID, message)
	msg.ParseMode = "Markdown"
	if _, err := n.api.Send(msg); err != nil {
		log.Warn().Err(err).Msg("notifier: failed to send Telegram message")
	}
}

// NoopNotifier discards every message. main wires this in whenever
// TELEGRAM_BOT_TOKEN is unset so callers never need a nil check.
type NoopNotifier struct{}

func (NoopNotifier) Notify(string) {}
