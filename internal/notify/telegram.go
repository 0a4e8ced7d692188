package notify

import (
	"context"
	"fmt"

	"didauday/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Sender is the telegram surface the notifier needs; satisfied by
// *tgbotapi.BotAPI.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier delivers buyer receipts and partner payout notices.
// Delivery is fire-and-forget: errors are logged and swallowed so the
// settlement path never depends on a chat API.
type TelegramNotifier struct {
	bot       Sender
	opsChatID int64
	logger    *zerolog.Logger
}

func NewTelegramNotifier(bot Sender, opsChatID int64, logger *zerolog.Logger) *TelegramNotifier {
	return &TelegramNotifier{bot: bot, opsChatID: opsChatID, logger: logger}
}

func (n *TelegramNotifier) NotifyBuyer(ctx context.Context, buyer *models.Profile, booking *models.Booking) error {
	chatID := buyer.TelegramChatID
	if chatID == 0 {
		chatID = n.opsChatID
	}
	if chatID == 0 {
		return nil
	}

	text := fmt.Sprintf("Payment received: booking #%d, total $%d.%02d. Thank you, %s!",
		booking.ID, booking.TotalPrice/100, booking.TotalPrice%100, buyer.FirstName)
	n.send(chatID, text, "buyer")
	return nil
}

func (n *TelegramNotifier) NotifyPartner(ctx context.Context, partner *models.Profile, amount int64, sessionID string) error {
	chatID := partner.TelegramChatID
	if chatID == 0 {
		chatID = n.opsChatID
	}
	if chatID == 0 {
		return nil
	}

	text := fmt.Sprintf("You have a new booking. Payout $%d.%02d (platform commission deducted), payment %s.",
		amount/100, amount%100, sessionID)
	n.send(chatID, text, "partner")
	return nil
}

func (n *TelegramNotifier) send(chatID int64, text, kind string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := n.bot.Send(msg); err != nil {
		n.logger.Warn().Err(err).Str("kind", kind).Int64("chat_id", chatID).
			Msg("notification delivery failed")
	}
}
