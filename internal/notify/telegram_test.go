package notify

import (
	"context"
	"errors"
	"testing"

	"didauday/internal/logging"
	"didauday/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, f.err
}

func TestNotifyBuyerUsesProfileChat(t *testing.T) {
	sender := &fakeSender{}
	n := NewTelegramNotifier(sender, 99, logging.Nop())

	buyer := &models.Profile{FirstName: "An", TelegramChatID: 7}
	booking := &models.Booking{ID: 3, TotalPrice: 12550}

	require.NoError(t, n.NotifyBuyer(context.Background(), buyer, booking))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, int64(7), sender.sent[0].ChatID)
	assert.Contains(t, sender.sent[0].Text, "$125.50")
}

func TestNotifyPartnerFallsBackToOpsChat(t *testing.T) {
	sender := &fakeSender{}
	n := NewTelegramNotifier(sender, 99, logging.Nop())

	partner := &models.Profile{FirstName: "Binh"}
	require.NoError(t, n.NotifyPartner(context.Background(), partner, 5400, "PAY-1"))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, int64(99), sender.sent[0].ChatID)
}

func TestNotifySwallowsDeliveryErrors(t *testing.T) {
	sender := &fakeSender{err: errors.New("chat not found")}
	n := NewTelegramNotifier(sender, 99, logging.Nop())

	err := n.NotifyPartner(context.Background(), &models.Profile{TelegramChatID: 5}, 100, "PAY-2")
	assert.NoError(t, err)
}

func TestNotifyWithoutAnyChatIsNoop(t *testing.T) {
	sender := &fakeSender{}
	n := NewTelegramNotifier(sender, 0, logging.Nop())

	require.NoError(t, n.NotifyBuyer(context.Background(), &models.Profile{}, &models.Booking{}))
	assert.Empty(t, sender.sent)
}
