package models

import "time"

// Booking ties a paid (or pending) cart to its payment session.
// Captured flips exactly once, pending -> captured, during settlement.
// HoldActive marks whether the inventory hold is still in force; it is
// dropped by capture or by cancellation and never restored.
type Booking struct {
	ID               int64          `json:"id"`
	BuyerID          int64          `json:"buyer_id"`
	TotalPrice       int64          `json:"total_price"` // cents
	Captured         bool           `json:"captured"`
	HoldActive       bool           `json:"hold_active"`
	PaymentSessionID string         `json:"payment_session_id"`
	PayerToken       string         `json:"payer_token"`
	RedirectURL      string         `json:"redirect_url"`
	Items            []*BookingItem `json:"items,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// BookingItem is immutable once written: Price is the price at booking
// time, not a reference into current inventory pricing. Exactly one of
// TourID/RoomID/FlightID is non-zero, matching Type.
type BookingItem struct {
	ID         int64      `json:"id"`
	BookingID  int64      `json:"booking_id"`
	Type       string     `json:"type"`
	TourID     int64      `json:"tour_id,omitempty"`
	RoomID     int64      `json:"room_id,omitempty"`
	FlightID   int64      `json:"flight_id,omitempty"`
	Price      int64      `json:"price"` // cents per unit at booking time
	Quantity   int64      `json:"quantity"`
	CouponCode string     `json:"coupon_code,omitempty"`
	DateStart  *time.Time `json:"date_start,omitempty"`
	DateEnd    *time.Time `json:"date_end,omitempty"`
	Customers  []Customer `json:"customers"`
}

// Customer is a contact record attached to a booking item.
type Customer struct {
	Email     string `json:"email"`
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
	Phone     string `json:"phone_number"`
}

// Subtotal returns price*quantity for the item in cents.
func (i *BookingItem) Subtotal() int64 {
	return i.Price * i.Quantity
}

// ItemRef returns the inventory id matching the item type.
func (i *BookingItem) ItemRef() int64 {
	switch i.Type {
	case ItemTypeTour:
		return i.TourID
	case ItemTypeRoom:
		return i.RoomID
	case ItemTypeFlight:
		return i.FlightID
	}
	return 0
}
