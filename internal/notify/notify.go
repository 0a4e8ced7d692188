package notify

import (
	"context"

	"didauday/internal/models"
)

// Noop satisfies the notifier interface when no channel is configured.
type Noop struct{}

func (Noop) NotifyBuyer(ctx context.Context, buyer *models.Profile, booking *models.Booking) error {
	return nil
}

func (Noop) NotifyPartner(ctx context.Context, partner *models.Profile, amount int64, sessionID string) error {
	return nil
}
