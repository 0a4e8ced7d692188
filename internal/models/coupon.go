package models

import "time"

// CouponCode is a limited discount bound to one tour or one hotel.
// Available is decremented by guarded atomic updates only and never
// goes below zero. Active=false is terminal.
type CouponCode struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Type      string    `json:"type"` // tour, hotel
	TourID    int64     `json:"tour_id,omitempty"`
	HotelID   int64     `json:"hotel_id,omitempty"`
	Percent   int64     `json:"percent"`
	CreatorID int64     `json:"creator_id"`
	DateStart time.Time `json:"date_start"`
	DateEnd   time.Time `json:"date_end"`
	Quantity  int64     `json:"quantity"`
	Available int64     `json:"available"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}
