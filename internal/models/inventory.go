package models

// Tour has counted capacity: Available units remain bookable.
type Tour struct {
	ID        int64  `json:"id" yaml:"id"`
	OwnerID   int64  `json:"owner_id" yaml:"owner_id"`
	Name      string `json:"name" yaml:"name"`
	Price     int64  `json:"price" yaml:"price"` // cents per seat
	Available int64  `json:"available" yaml:"available"`
}

// Hotel owns rooms; payouts for room bookings go to the hotel owner.
type Hotel struct {
	ID      int64  `json:"id" yaml:"id"`
	OwnerID int64  `json:"owner_id" yaml:"owner_id"`
	Name    string `json:"name" yaml:"name"`
}

// Room is booked by date range, exclusive per interval.
type Room struct {
	ID      int64  `json:"id" yaml:"id"`
	HotelID int64  `json:"hotel_id" yaml:"hotel_id"`
	Name    string `json:"name" yaml:"name"`
	Price   int64  `json:"price" yaml:"price"` // cents per night
}

// Flight is a single-use slot: one active booking consumes the record.
type Flight struct {
	ID      int64  `json:"id" yaml:"id"`
	OwnerID int64  `json:"owner_id" yaml:"owner_id"`
	Name    string `json:"name" yaml:"name"`
	Price   int64  `json:"price" yaml:"price"` // cents per seat
}
