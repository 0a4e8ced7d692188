package database

import "errors"

var (
	// ErrNotAvailable means the guarded capacity update found too few units.
	ErrNotAvailable = errors.New("not enough capacity available")

	// ErrNotFound is returned for missing inventory or booking records.
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyCaptured guards duplicate settlement of one session.
	ErrAlreadyCaptured = errors.New("booking already captured")

	// ErrDuplicateCode is returned when a coupon code already exists.
	ErrDuplicateCode = errors.New("coupon code already exists")
)
