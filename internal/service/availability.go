package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"didauday/internal/database"
	"didauday/internal/domain"
	"didauday/internal/models"
)

// AvailabilityError aggregates availability failures by item type, so a
// cart with a sold-out tour and a taken room reports both at once.
type AvailabilityError struct {
	Reasons map[string]string
}

func (e *AvailabilityError) Error() string {
	parts := make([]string, 0, len(e.Reasons))
	for _, typ := range []string{models.ItemTypeTour, models.ItemTypeRoom, models.ItemTypeFlight} {
		if msg, ok := e.Reasons[typ]; ok {
			parts = append(parts, typ+": "+msg)
		}
	}
	return "items not available: " + strings.Join(parts, "; ")
}

// AvailabilityChecker answers whether cart items can still be served.
// Its answers are advisory: the hard guarantees live in the guarded
// capacity updates and the booking transaction.
type AvailabilityChecker struct {
	store domain.Store
}

func NewAvailabilityChecker(store domain.Store) *AvailabilityChecker {
	return &AvailabilityChecker{store: store}
}

// CheckItem verifies one cart item against live inventory.
func (c *AvailabilityChecker) CheckItem(ctx context.Context, item *models.BookingItem) error {
	switch item.Type {
	case models.ItemTypeTour:
		tour, err := c.store.GetTour(ctx, item.TourID)
		if err != nil {
			return err
		}
		if tour.Available < item.Quantity {
			return database.ErrNotAvailable
		}
	case models.ItemTypeRoom:
		count, err := c.store.CountRoomOverlaps(ctx, item.RoomID, item.DateStart, item.DateEnd)
		if err != nil {
			return err
		}
		if count > 0 {
			return database.ErrNotAvailable
		}
	case models.ItemTypeFlight:
		count, err := c.store.CountActiveFlightBookings(ctx, item.FlightID)
		if err != nil {
			return err
		}
		if count > 0 {
			return database.ErrNotAvailable
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidItem, item.Type)
	}
	return nil
}

// CheckCart verifies every item and collects the failures per item
// type instead of stopping at the first one.
func (c *AvailabilityChecker) CheckCart(ctx context.Context, items []*models.BookingItem) error {
	reasons := make(map[string]string)
	for _, item := range items {
		err := c.CheckItem(ctx, item)
		switch {
		case err == nil:
		case errors.Is(err, database.ErrNotAvailable):
			reasons[item.Type] = item.Type + " not available"
		default:
			return err
		}
	}
	if len(reasons) > 0 {
		return &AvailabilityError{Reasons: reasons}
	}
	return nil
}
