// Package checkin issues scannable tickets and processes door scans. A
// decoded code only identifies a participant; payment state and the one-shot
// check-in transition are enforced against storage.
package checkin

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/semflow/seminar-registrations/internal/domain"
	"github.com/semflow/seminar-registrations/internal/observability"
	"github.com/semflow/seminar-registrations/internal/qrcode"
)

type Store interface {
	GetParticipant(ctx context.Context, id uuid.UUID) (*domain.Participant, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	CheckInParticipant(ctx context.Context, id uuid.UUID, now time.Time) error
}

type Auditor interface {
	LogCheckIn(ctx context.Context, p domain.Participant) error
}

type Publisher interface {
	Publish(ctx context.Context, key string, msg amqp.Publishing) error
}

type TicketCache interface {
	GetIssuedTicket(ctx context.Context, participantID string) (string, error)
	SetIssuedTicket(ctx context.Context, participantID, encoded string, ttl time.Duration) error
}

type Service struct {
	store  Store
	audit  Auditor
	pub    Publisher
	cache  TicketCache
	logger observability.Logger
}

func NewService(store Store, audit Auditor, pub Publisher, cache TicketCache, logger observability.Logger) *Service {
	return &Service{store: store, audit: audit, pub: pub, cache: cache, logger: logger}
}

// IssueTicket returns the encoded code for a paid participant. The code is
// cached for its validity window so reissues render the same QR image.
func (s *Service) IssueTicket(ctx context.Context, participantID uuid.UUID) (string, error) {
	p, err := s.store.GetParticipant(ctx, participantID)
	if err != nil {
		return "", err
	}
	order, err := s.store.GetOrder(ctx, p.OrderID)
	if err != nil {
		return "", err
	}
	if order.Status != domain.OrderPaid {
		return "", domain.ErrOrderNotPaid
	}

	if cached, err := s.cache.GetIssuedTicket(ctx, p.ID.String()); err == nil && cached != "" {
		return cached, nil
	}

	encoded := qrcode.Encode(qrcode.KindParticipant, p.ID.String(), p.SessionID.String())
	if err := s.cache.SetIssuedTicket(ctx, p.ID.String(), encoded, qrcode.TTL); err != nil {
		s.logger.WithError(err).Warn("ticket cache write failed")
	}
	return encoded, nil
}

// Scan decodes a scanned code and performs the NOT_CHECKED_IN to CHECKED_IN
// transition. All decode and lookup failures surface to the operator as one
// generic "invalid or expired code".
func (s *Service) Scan(ctx context.Context, encoded string) (*domain.Participant, error) {
	now := time.Now()

	payload, err := qrcode.Decode(encoded, now)
	if err != nil {
		observability.CheckinScans.WithLabelValues("invalid").Inc()
		return nil, err
	}
	// Order-kind codes identify an order for support lookups, not a single
	// attendee at the door.
	if payload.Kind != qrcode.KindParticipant {
		observability.CheckinScans.WithLabelValues("invalid").Inc()
		return nil, qrcode.ErrMalformedPayload
	}
	participantID, err := uuid.Parse(payload.SubjectID)
	if err != nil {
		observability.CheckinScans.WithLabelValues("invalid").Inc()
		return nil, qrcode.ErrMalformedPayload
	}

	p, err := s.store.GetParticipant(ctx, participantID)
	if err != nil {
		observability.CheckinScans.WithLabelValues("unknown").Inc()
		return nil, err
	}
	if p.SessionID.String() != payload.SessionID {
		observability.CheckinScans.WithLabelValues("unknown").Inc()
		return nil, domain.ErrNotFound
	}
	order, err := s.store.GetOrder(ctx, p.OrderID)
	if err != nil {
		return nil, err
	}
	if order.Status != domain.OrderPaid {
		observability.CheckinScans.WithLabelValues("unpaid").Inc()
		return nil, domain.ErrOrderNotPaid
	}

	if err := s.store.CheckInParticipant(ctx, p.ID, now); err != nil {
		if err == domain.ErrAlreadyCheckedIn {
			observability.CheckinScans.WithLabelValues("already").Inc()
		}
		return nil, err
	}
	p.State = domain.CheckedIn
	p.CheckedInAt = &now
	observability.CheckinScans.WithLabelValues("ok").Inc()

	if err := s.audit.LogCheckIn(ctx, *p); err != nil {
		s.logger.WithError(err).Warn("audit write failed")
	}
	s.publishCheckedIn(ctx, *p)
	return p, nil
}

func (s *Service) publishCheckedIn(ctx context.Context, p domain.Participant) {
	payload, _ := json.Marshal(map[string]interface{}{
		"participant_id": p.ID,
		"order_id":       p.OrderID,
		"session_id":     p.SessionID,
		"checked_in_at":  p.CheckedInAt,
	})
	msg := amqp.Publishing{
		MessageId:   uuid.New().String(),
		ContentType: "application/json",
		Body:        payload,
	}
	if err := s.pub.Publish(ctx, "participant.checked_in", msg); err != nil {
		s.logger.WithError(err).Warn("failed to publish check-in event")
	}
}
