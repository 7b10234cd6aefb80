package domain

import "errors"

var (
	ErrSerializationFailure = errors.New("serialization failure")
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("conflict")
	ErrInvalidInput         = errors.New("invalid input")
	ErrAmountMismatch       = errors.New("asserted total does not match computed total")
	ErrAlreadyCheckedIn     = errors.New("participant already checked in")
	ErrCouponExhausted      = errors.New("coupon usage limit reached")
	ErrOrderNotPaid         = errors.New("order not paid")
)
