// Package checkout creates payment-provider sessions for ticket selections
// and finalizes orders when the provider reports back. The server-computed
// total is authoritative; a client-asserted total is only accepted when it
// matches exactly.
package checkout

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/semflow/seminar-registrations/internal/domain"
	"github.com/semflow/seminar-registrations/internal/observability"
	"github.com/semflow/seminar-registrations/internal/payment"
	"github.com/semflow/seminar-registrations/internal/pricing"
)

type Store interface {
	GetTicketTypes(ctx context.Context, ids []uuid.UUID) ([]domain.TicketType, error)
	GetCoupon(ctx context.Context, code string) (pricing.Coupon, error)
	CreateOrder(ctx context.Context, order domain.Order) error
	GetOrderByProviderSession(ctx context.Context, providerSessionID string) (*domain.Order, error)
	MarkOrderPaid(ctx context.Context, order *domain.Order, parts []domain.Participant) (bool, error)
	MarkOrderFailed(ctx context.Context, orderID uuid.UUID) error
}

type PaymentClient interface {
	CreateSession(ctx context.Context, orderID uuid.UUID, amount int64, email string) (*payment.Session, error)
}

type Auditor interface {
	LogOrder(ctx context.Context, action string, order domain.Order) error
	LogCouponRedemption(ctx context.Context, orderID uuid.UUID, code string, redeemed bool) error
}

type Service struct {
	store    Store
	payments PaymentClient
	audit    Auditor
	logger   observability.Logger
}

func NewService(store Store, payments PaymentClient, audit Auditor, logger observability.Logger) *Service {
	return &Service{store: store, payments: payments, audit: audit, logger: logger}
}

// ItemSelection is what the client sends: which ticket type, how many.
// Prices always come from storage, never from the request.
type ItemSelection struct {
	TicketTypeID uuid.UUID
	Quantity     int
}

type Session struct {
	Order       domain.Order
	RedirectURL string
}

// CreateSession prices the selection, verifies the client-asserted total and
// hands off to the payment provider. A mismatched total aborts before the
// provider is contacted.
func (s *Service) CreateSession(ctx context.Context, sessionID uuid.UUID, email string, selections []ItemSelection, couponCode string, assertedTotal int64) (*Session, error) {
	if email == "" || len(selections) == 0 {
		return nil, domain.ErrInvalidInput
	}

	ids := make([]uuid.UUID, len(selections))
	for i, sel := range selections {
		ids[i] = sel.TicketTypeID
	}
	ticketTypes, err := s.store.GetTicketTypes(ctx, ids)
	if err != nil {
		return nil, err
	}

	items := make([]domain.OrderItem, len(selections))
	for i, sel := range selections {
		tt := ticketTypes[i]
		if tt.SessionID != sessionID {
			return nil, domain.ErrInvalidInput
		}
		items[i] = domain.OrderItem{
			TicketTypeID:   tt.ID,
			Quantity:       sel.Quantity,
			UnitPrice:      tt.UnitPrice,
			TaxRatePercent: tt.TaxRatePercent,
		}
	}

	var coupon *pricing.Coupon
	if couponCode != "" {
		c, err := s.store.GetCoupon(ctx, strings.ToUpper(strings.TrimSpace(couponCode)))
		switch {
		case errors.Is(err, domain.ErrNotFound):
			s.logger.WithField("coupon_code", couponCode).Warn("unknown coupon code, pricing without discount")
		case err != nil:
			return nil, err
		default:
			coupon = &c
		}
	}

	order, err := domain.NewOrder(sessionID, email, items, coupon, time.Now())
	if err != nil {
		return nil, err
	}

	if order.Total != assertedTotal {
		observability.AmountMismatch.Inc()
		s.logger.WithField("order_id", order.ID).
			WithField("computed", order.Total).
			WithField("asserted", assertedTotal).
			Warn("checkout amount mismatch")
		return nil, domain.ErrAmountMismatch
	}

	providerSession, err := s.payments.CreateSession(ctx, order.ID, order.Total, email)
	if err != nil {
		return nil, err
	}
	order.ProviderSessionID = providerSession.ID

	if err := s.store.CreateOrder(ctx, order); err != nil {
		return nil, err
	}
	if err := s.audit.LogOrder(ctx, "order.created", order); err != nil {
		s.logger.WithError(err).Warn("audit write failed")
	}

	return &Session{Order: order, RedirectURL: providerSession.RedirectURL}, nil
}

// ConfirmPayment handles the provider callback. Success moves the order to
// PAID, consumes the coupon and creates participants in one transaction.
// Repeated callbacks for an already-settled order are no-ops.
func (s *Service) ConfirmPayment(ctx context.Context, providerSessionID, status string) (*domain.Order, error) {
	order, err := s.store.GetOrderByProviderSession(ctx, providerSessionID)
	if err != nil {
		return nil, err
	}
	if order.Status != domain.OrderPending {
		return order, nil
	}

	if status != payment.StatusSucceeded {
		if err := s.store.MarkOrderFailed(ctx, order.ID); err != nil {
			return nil, err
		}
		order.Status = domain.OrderFailed
		if err := s.audit.LogOrder(ctx, "order.failed", *order); err != nil {
			s.logger.WithError(err).Warn("audit write failed")
		}
		return order, nil
	}

	order.Status = domain.OrderPaid
	parts := domain.NewParticipants(*order)
	redeemed, err := s.store.MarkOrderPaid(ctx, order, parts)
	if err != nil {
		return nil, err
	}

	if order.CouponCode != "" {
		if !redeemed {
			// Race loss on the usage limit: the customer keeps the discount
			// they were quoted, the shortfall is visible in the audit trail.
			s.logger.WithField("order_id", order.ID).
				WithField("coupon_code", order.CouponCode).
				Warn(domain.ErrCouponExhausted.Error())
		}
		if err := s.audit.LogCouponRedemption(ctx, order.ID, order.CouponCode, redeemed); err != nil {
			s.logger.WithError(err).Warn("audit write failed")
		}
	}
	if err := s.audit.LogOrder(ctx, "order.paid", *order); err != nil {
		s.logger.WithError(err).Warn("audit write failed")
	}
	return order, nil
}
