package telegram

import (
	"DocVerify/internal/core/ports"
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// notifier implements the AlertNotifier port over a Telegram bot.
// Batch summaries and pass aborts land in the ops channel.
type notifier struct {
	api    *tgbotapi.BotAPI
	chatID int64
	log    zerolog.Logger
}

var _ ports.AlertNotifier = (*notifier)(nil) // Ensure compliance

// NewNotifier creates a Telegram alert notifier.
func NewNotifier(token string, chatID int64, baseLogger *zerolog.Logger) (ports.AlertNotifier, error) {
	log := baseLogger.With().Str("component", "tg_notifier").Logger()

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		log.Error().Err(err).Msg("Failed to connect alert bot")
		return nil, err
	}
	log.Info().Str("username", api.Self.UserName).Msg("Alert bot connected")

	return &notifier{api: api, chatID: chatID, log: log}, nil
}

// Notify sends one plain-text message to the ops channel.
func (n *notifier) Notify(ctx context.Context, message string) error {
	msg := tgbotapi.NewMessage(n.chatID, message)
	if _, err := n.api.Send(msg); err != nil {
		n.log.Error().Err(err).Int64("chat_id", n.chatID).Msg("Failed to send alert")
		return err
	}
	return nil
}
