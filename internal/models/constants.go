package models

const (
	ItemTypeTour   = "tour"
	ItemTypeRoom   = "room"
	ItemTypeFlight = "flight"
)

const (
	CouponTypeTour  = "tour"
	CouponTypeHotel = "hotel"
)

const (
	PaymentKindSale   = "SALE"
	PaymentKindPayout = "PAYOUT"
	PaymentKindRefund = "REFUND"
)

const (
	PayoutStatusPending   = "pending"
	PayoutStatusRetry     = "retry"
	PayoutStatusCompleted = "completed"
	PayoutStatusFailed    = "failed"
)

const (
	// DefaultCommissionRate платформенная комиссия по умолчанию
	DefaultCommissionRate = 0.10

	// DefaultCurrency валюта всех платежей
	DefaultCurrency = "USD"

	// DefaultPageSize размер страницы списков
	DefaultPageSize = 12

	// RoomLockTTL время жизни блокировки номера при оформлении (секунды)
	RoomLockTTL = 30

	// WireDateLayout формат дат во входящем JSON
	WireDateLayout = "02/01/2006"
)
