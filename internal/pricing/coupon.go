package pricing

import (
	"strings"
	"time"
)

type DiscountType string

const (
	DiscountAmount     DiscountType = "AMOUNT"
	DiscountPercentage DiscountType = "PERCENTAGE"
)

// Coupon is a discount rule identified by a redemption code. UsageCount is a
// snapshot; the storage layer owns the race-free increment at redemption time.
type Coupon struct {
	Code          string
	DiscountType  DiscountType
	DiscountValue int64
	UsageLimit    *int64
	UsageCount    int64
	ValidFrom     time.Time
	ValidUntil    time.Time
	MinAmount     *int64
	IsActive      bool
}

// NewCoupon validates a coupon definition at creation time. Internally
// inconsistent records are rejected here, not at apply time.
func NewCoupon(code string, discountType DiscountType, discountValue int64, usageLimit *int64, validFrom, validUntil time.Time, minAmount *int64) (Coupon, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return Coupon{}, ErrInvalidCoupon
	}
	if discountValue <= 0 {
		return Coupon{}, ErrInvalidCoupon
	}
	switch discountType {
	case DiscountAmount:
	case DiscountPercentage:
		if discountValue > 100 {
			return Coupon{}, ErrInvalidCoupon
		}
	default:
		return Coupon{}, ErrInvalidCoupon
	}
	if !validFrom.Before(validUntil) {
		return Coupon{}, ErrInvalidCoupon
	}
	if usageLimit != nil && *usageLimit <= 0 {
		return Coupon{}, ErrInvalidCoupon
	}
	if minAmount != nil && *minAmount < 0 {
		return Coupon{}, ErrInvalidCoupon
	}
	return Coupon{
		Code:          code,
		DiscountType:  discountType,
		DiscountValue: discountValue,
		UsageLimit:    usageLimit,
		ValidFrom:     validFrom,
		ValidUntil:    validUntil,
		MinAmount:     minAmount,
		IsActive:      true,
	}, nil
}
