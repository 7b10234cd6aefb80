package pricing_test

import (
	"errors"
	"testing"
	"time"

	"github.com/semflow/seminar-registrations/internal/pricing"
)

var (
	windowStart = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	windowEnd   = time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)
	inWindow    = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
)

func i64(v int64) *int64 { return &v }

func activeCoupon(t pricing.DiscountType, value int64) pricing.Coupon {
	return pricing.Coupon{
		Code:          "SPRING",
		DiscountType:  t,
		DiscountValue: value,
		ValidFrom:     windowStart,
		ValidUntil:    windowEnd,
		IsActive:      true,
	}
}

func TestComputeLineSubtotal(t *testing.T) {
	tests := []struct {
		name         string
		unitPrice    int64
		quantity     int
		taxRate      int
		wantSubtotal int64
		wantTax      int64
		wantErr      bool
	}{
		{"basic", 1000, 3, 10, 3000, 300, false},
		{"zero tax", 500, 2, 0, 1000, 0, false},
		{"full tax", 100, 1, 100, 100, 100, false},
		{"tax floors down", 999, 1, 10, 999, 99, false},
		{"free ticket", 0, 5, 10, 0, 0, false},
		{"zero quantity", 1000, 0, 10, 0, 0, true},
		{"negative quantity", 1000, -1, 10, 0, 0, true},
		{"negative price", -100, 1, 10, 0, 0, true},
		{"tax rate over 100", 1000, 1, 101, 0, 0, true},
		{"negative tax rate", 1000, 1, -1, 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subtotal, tax, err := pricing.ComputeLineSubtotal(tt.unitPrice, tt.quantity, tt.taxRate)
			if tt.wantErr {
				if !errors.Is(err, pricing.ErrInvalidInput) {
					t.Fatalf("expected ErrInvalidInput, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if subtotal != tt.wantSubtotal || tax != tt.wantTax {
				t.Errorf("got subtotal=%d tax=%d, want subtotal=%d tax=%d", subtotal, tax, tt.wantSubtotal, tt.wantTax)
			}
		})
	}
}

func TestApplyCoupon_Amount(t *testing.T) {
	c := activeCoupon(pricing.DiscountAmount, 500)

	discount, err := pricing.ApplyCoupon(3000, c, inWindow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if discount != 500 {
		t.Errorf("expected discount 500, got %d", discount)
	}
}

func TestApplyCoupon_AmountCappedAtSubtotal(t *testing.T) {
	c := activeCoupon(pricing.DiscountAmount, 5000)

	discount, err := pricing.ApplyCoupon(3000, c, inWindow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if discount != 3000 {
		t.Errorf("expected discount capped at 3000, got %d", discount)
	}
}

func TestApplyCoupon_Percentage(t *testing.T) {
	c := activeCoupon(pricing.DiscountPercentage, 10)

	discount, err := pricing.ApplyCoupon(3333, c, inWindow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if discount != 333 {
		t.Errorf("expected discount 333 (floored), got %d", discount)
	}
}

func TestApplyCoupon_Inapplicable(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*pricing.Coupon)
		subtotal int64
		now      time.Time
	}{
		{"inactive", func(c *pricing.Coupon) { c.IsActive = false }, 3000, inWindow},
		{"before window", func(c *pricing.Coupon) {}, 3000, windowStart.Add(-time.Hour)},
		{"at window end", func(c *pricing.Coupon) {}, 3000, windowEnd},
		{"after window", func(c *pricing.Coupon) {}, 3000, windowEnd.Add(time.Hour)},
		{"below min amount", func(c *pricing.Coupon) { c.MinAmount = i64(5000) }, 3000, inWindow},
		{"usage limit reached", func(c *pricing.Coupon) { c.UsageLimit = i64(2); c.UsageCount = 2 }, 3000, inWindow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := activeCoupon(pricing.DiscountAmount, 500)
			tt.mutate(&c)
			discount, err := pricing.ApplyCoupon(tt.subtotal, c, tt.now)
			if !errors.Is(err, pricing.ErrCouponInapplicable) {
				t.Fatalf("expected ErrCouponInapplicable, got %v", err)
			}
			if discount != 0 {
				t.Errorf("expected zero discount, got %d", discount)
			}
		})
	}
}

func TestApplyCoupon_WindowStartIsInclusive(t *testing.T) {
	c := activeCoupon(pricing.DiscountAmount, 500)

	discount, err := pricing.ApplyCoupon(3000, c, windowStart)
	if err != nil {
		t.Fatalf("unexpected error at validFrom: %v", err)
	}
	if discount != 500 {
		t.Errorf("expected discount 500, got %d", discount)
	}
}

func TestNewCoupon_Validation(t *testing.T) {
	tests := []struct {
		name       string
		code       string
		dt         pricing.DiscountType
		value      int64
		usageLimit *int64
		from, to   time.Time
		minAmount  *int64
		wantErr    bool
	}{
		{"valid amount", "save500", pricing.DiscountAmount, 500, nil, windowStart, windowEnd, nil, false},
		{"valid percentage", "TEN", pricing.DiscountPercentage, 10, i64(100), windowStart, windowEnd, i64(1000), false},
		{"empty code", "", pricing.DiscountAmount, 500, nil, windowStart, windowEnd, nil, true},
		{"zero value", "X", pricing.DiscountAmount, 0, nil, windowStart, windowEnd, nil, true},
		{"negative value", "X", pricing.DiscountAmount, -1, nil, windowStart, windowEnd, nil, true},
		{"percentage over 100", "X", pricing.DiscountPercentage, 101, nil, windowStart, windowEnd, nil, true},
		{"unknown type", "X", pricing.DiscountType("BOGOF"), 10, nil, windowStart, windowEnd, nil, true},
		{"window inverted", "X", pricing.DiscountAmount, 500, nil, windowEnd, windowStart, nil, true},
		{"window empty", "X", pricing.DiscountAmount, 500, nil, windowStart, windowStart, nil, true},
		{"zero usage limit", "X", pricing.DiscountAmount, 500, i64(0), windowStart, windowEnd, nil, true},
		{"negative min amount", "X", pricing.DiscountAmount, 500, nil, windowStart, windowEnd, i64(-1), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := pricing.NewCoupon(tt.code, tt.dt, tt.value, tt.usageLimit, tt.from, tt.to, tt.minAmount)
			if tt.wantErr {
				if !errors.Is(err, pricing.ErrInvalidCoupon) {
					t.Fatalf("expected ErrInvalidCoupon, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !c.IsActive {
				t.Error("new coupon should be active")
			}
		})
	}
}

func TestNewCoupon_NormalizesCode(t *testing.T) {
	c, err := pricing.NewCoupon("  spring2026 ", pricing.DiscountAmount, 500, nil, windowStart, windowEnd, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Code != "SPRING2026" {
		t.Errorf("expected code SPRING2026, got %q", c.Code)
	}
}

func TestComputeOrderTotal_NoCoupon(t *testing.T) {
	items := []pricing.OrderItem{
		{TicketTypeID: "tt1", Quantity: 3, UnitPrice: 1000, TaxRatePercent: 10},
	}
	b, err := pricing.ComputeOrderTotal(items, nil, inWindow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := pricing.PriceBreakdown{Subtotal: 3000, Discount: 0, Tax: 300, Total: 3300}
	if b != want {
		t.Errorf("got %+v, want %+v", b, want)
	}
}

func TestComputeOrderTotal_AmountCoupon(t *testing.T) {
	items := []pricing.OrderItem{
		{TicketTypeID: "tt1", Quantity: 3, UnitPrice: 1000, TaxRatePercent: 10},
	}
	c := activeCoupon(pricing.DiscountAmount, 500)
	c.MinAmount = i64(1000)

	b, err := pricing.ComputeOrderTotal(items, &c, inWindow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := pricing.PriceBreakdown{Subtotal: 3000, Discount: 500, Tax: 300, Total: 2800}
	if b != want {
		t.Errorf("got %+v, want %+v", b, want)
	}
}

func TestComputeOrderTotal_InapplicableCouponFallsBackToZeroDiscount(t *testing.T) {
	items := []pricing.OrderItem{
		{TicketTypeID: "tt1", Quantity: 3, UnitPrice: 1000, TaxRatePercent: 10},
	}
	c := activeCoupon(pricing.DiscountAmount, 500)
	c.MinAmount = i64(5000)

	b, err := pricing.ComputeOrderTotal(items, &c, inWindow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := pricing.PriceBreakdown{Subtotal: 3000, Discount: 0, Tax: 300, Total: 3300}
	if b != want {
		t.Errorf("got %+v, want %+v", b, want)
	}
}

func TestComputeOrderTotal_FullDiscountLeavesTax(t *testing.T) {
	// Tax is computed on pre-discount line amounts, so a 100% coupon still
	// leaves the tax due.
	items := []pricing.OrderItem{
		{TicketTypeID: "tt1", Quantity: 2, UnitPrice: 1000, TaxRatePercent: 10},
	}
	c := activeCoupon(pricing.DiscountPercentage, 100)

	b, err := pricing.ComputeOrderTotal(items, &c, inWindow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := pricing.PriceBreakdown{Subtotal: 2000, Discount: 2000, Tax: 200, Total: 200}
	if b != want {
		t.Errorf("got %+v, want %+v", b, want)
	}
}

func TestComputeOrderTotal_TotalNeverNegative(t *testing.T) {
	items := []pricing.OrderItem{
		{TicketTypeID: "tt1", Quantity: 1, UnitPrice: 100, TaxRatePercent: 0},
	}
	c := activeCoupon(pricing.DiscountAmount, 10000)

	b, err := pricing.ComputeOrderTotal(items, &c, inWindow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Total < 0 {
		t.Errorf("total must never be negative, got %d", b.Total)
	}
	if b.Discount != 100 {
		t.Errorf("discount must be capped at subtotal, got %d", b.Discount)
	}
}

func TestComputeOrderTotal_PerLineTaxAvoidsAggregateDrift(t *testing.T) {
	// Two lines of 999 at 10%: per-line flooring gives 99+99, not
	// floor(1998*0.10)=199.
	items := []pricing.OrderItem{
		{TicketTypeID: "tt1", Quantity: 1, UnitPrice: 999, TaxRatePercent: 10},
		{TicketTypeID: "tt2", Quantity: 1, UnitPrice: 999, TaxRatePercent: 10},
	}
	b, err := pricing.ComputeOrderTotal(items, nil, inWindow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Tax != 198 {
		t.Errorf("expected per-line floored tax 198, got %d", b.Tax)
	}
}

func TestComputeOrderTotal_Pure(t *testing.T) {
	items := []pricing.OrderItem{
		{TicketTypeID: "tt1", Quantity: 3, UnitPrice: 1000, TaxRatePercent: 10},
		{TicketTypeID: "tt2", Quantity: 1, UnitPrice: 2500, TaxRatePercent: 8},
	}
	c := activeCoupon(pricing.DiscountPercentage, 15)

	first, err := pricing.ComputeOrderTotal(items, &c, inWindow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := pricing.ComputeOrderTotal(items, &c, inWindow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != second {
		t.Errorf("expected identical breakdowns, got %+v then %+v", first, second)
	}
	if first.Total != first.Subtotal-first.Discount+first.Tax {
		t.Errorf("breakdown invariant violated: %+v", first)
	}
}

func TestComputeOrderTotal_InvalidItem(t *testing.T) {
	items := []pricing.OrderItem{
		{TicketTypeID: "tt1", Quantity: 0, UnitPrice: 1000, TaxRatePercent: 10},
	}
	_, err := pricing.ComputeOrderTotal(items, nil, inWindow)
	if !errors.Is(err, pricing.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
