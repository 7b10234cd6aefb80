package pricing

import (
	"errors"
	"time"
)

var (
	ErrInvalidInput       = errors.New("invalid pricing input")
	ErrInvalidCoupon      = errors.New("invalid coupon definition")
	ErrCouponInapplicable = errors.New("coupon not applicable")
)

// OrderItem is one ticket-type selection within an order. Prices are in minor
// currency units (yen), so all arithmetic stays on integers.
type OrderItem struct {
	TicketTypeID   string
	Quantity       int
	UnitPrice      int64
	TaxRatePercent int
}

// PriceBreakdown is the authoritative server-side price of an order.
// Total = Subtotal - Discount + Tax, all fields non-negative.
type PriceBreakdown struct {
	Subtotal int64 `json:"subtotal"`
	Discount int64 `json:"discount"`
	Tax      int64 `json:"tax"`
	Total    int64 `json:"total"`
}

// ComputeLineSubtotal prices a single line. Tax is floored per line rather
// than on the aggregate so repeated reports reproduce the same figures.
func ComputeLineSubtotal(unitPrice int64, quantity int, taxRatePercent int) (subtotal, tax int64, err error) {
	if quantity < 1 || unitPrice < 0 || taxRatePercent < 0 || taxRatePercent > 100 {
		return 0, 0, ErrInvalidInput
	}
	subtotal = unitPrice * int64(quantity)
	tax = subtotal * int64(taxRatePercent) / 100
	return subtotal, tax, nil
}

// ApplyCoupon returns the discount a coupon yields on orderSubtotal at the
// given time. ErrCouponInapplicable is a soft failure: the caller proceeds
// with zero discount instead of rejecting the order.
func ApplyCoupon(orderSubtotal int64, c Coupon, now time.Time) (int64, error) {
	if !c.IsActive {
		return 0, ErrCouponInapplicable
	}
	if now.Before(c.ValidFrom) || !now.Before(c.ValidUntil) {
		return 0, ErrCouponInapplicable
	}
	if c.MinAmount != nil && orderSubtotal < *c.MinAmount {
		return 0, ErrCouponInapplicable
	}
	if c.UsageLimit != nil && c.UsageCount >= *c.UsageLimit {
		return 0, ErrCouponInapplicable
	}

	var discount int64
	switch c.DiscountType {
	case DiscountAmount:
		discount = c.DiscountValue
	case DiscountPercentage:
		discount = orderSubtotal * c.DiscountValue / 100
	default:
		return 0, ErrInvalidCoupon
	}
	if discount > orderSubtotal {
		discount = orderSubtotal
	}
	return discount, nil
}

// ComputeOrderTotal computes the full breakdown for a set of items and an
// optional coupon. Tax is summed over pre-discount line amounts; the discount
// is not re-taxed. Pure function: same inputs, including now, same output.
func ComputeOrderTotal(items []OrderItem, coupon *Coupon, now time.Time) (PriceBreakdown, error) {
	var b PriceBreakdown
	for _, it := range items {
		subtotal, tax, err := ComputeLineSubtotal(it.UnitPrice, it.Quantity, it.TaxRatePercent)
		if err != nil {
			return PriceBreakdown{}, err
		}
		b.Subtotal += subtotal
		b.Tax += tax
	}

	if coupon != nil {
		discount, err := ApplyCoupon(b.Subtotal, *coupon, now)
		if err != nil && !errors.Is(err, ErrCouponInapplicable) {
			return PriceBreakdown{}, err
		}
		b.Discount = discount
	}

	b.Total = b.Subtotal - b.Discount + b.Tax
	if b.Total < 0 {
		b.Total = 0
	}
	return b, nil
}
