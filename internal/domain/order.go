package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/semflow/seminar-registrations/internal/pricing"
)

// NewOrder builds a PENDING order with the authoritative server-side price
// breakdown. The coupon may be nil; an inapplicable coupon yields zero
// discount rather than an error.
func NewOrder(sessionID uuid.UUID, email string, items []OrderItem, coupon *pricing.Coupon, now time.Time) (Order, error) {
	priced := make([]pricing.OrderItem, len(items))
	for i, it := range items {
		priced[i] = pricing.OrderItem{
			TicketTypeID:   it.TicketTypeID.String(),
			Quantity:       it.Quantity,
			UnitPrice:      it.UnitPrice,
			TaxRatePercent: it.TaxRatePercent,
		}
	}
	breakdown, err := pricing.ComputeOrderTotal(priced, coupon, now)
	if err != nil {
		return Order{}, ErrInvalidInput
	}

	couponCode := ""
	if coupon != nil && breakdown.Discount > 0 {
		couponCode = coupon.Code
	}
	return Order{
		ID:         uuid.New(),
		SessionID:  sessionID,
		Email:      email,
		Status:     OrderPending,
		CouponCode: couponCode,
		Subtotal:   breakdown.Subtotal,
		Discount:   breakdown.Discount,
		Tax:        breakdown.Tax,
		Total:      breakdown.Total,
		CreatedAt:  now,
		Items:      items,
	}, nil
}
