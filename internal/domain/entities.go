package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	OrderPending = "PENDING"
	OrderPaid    = "PAID"
	OrderFailed  = "FAILED"
	OrderExpired = "EXPIRED"
)

const (
	NotCheckedIn = "NOT_CHECKED_IN"
	CheckedIn    = "CHECKED_IN"
)

type Session struct {
	ID          uuid.UUID
	SeminarID   uuid.UUID
	Title       string
	Venue       string
	StartsAt    time.Time
	Capacity    int
	ZoomJoinURL string
}

type TicketType struct {
	ID             uuid.UUID
	SessionID      uuid.UUID
	Name           string
	UnitPrice      int64
	TaxRatePercent int
}

type Order struct {
	ID                uuid.UUID
	SessionID         uuid.UUID
	Email             string
	Status            string
	CouponCode        string
	Subtotal          int64
	Discount          int64
	Tax               int64
	Total             int64
	ProviderSessionID string
	CreatedAt         time.Time
	Items             []OrderItem
}

type OrderItem struct {
	TicketTypeID   uuid.UUID
	Quantity       int
	UnitPrice      int64
	TaxRatePercent int
}

type Participant struct {
	ID           uuid.UUID
	OrderID      uuid.UUID
	SessionID    uuid.UUID
	TicketTypeID uuid.UUID
	Email        string
	State        string
	CheckedInAt  *time.Time
}
