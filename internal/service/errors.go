package service

import "errors"

var (
	ErrEmptyCart        = errors.New("cart has no items")
	ErrInvalidItem      = errors.New("invalid cart item")
	ErrInvalidDates     = errors.New("invalid stay dates")
	ErrLockBusy         = errors.New("resource is being booked by another request")
	ErrPermissionDenied = errors.New("permission denied")
)
