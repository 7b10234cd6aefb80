package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/semflow/seminar-registrations/internal/adapters/postgres"
	"github.com/semflow/seminar-registrations/internal/domain"
	"github.com/semflow/seminar-registrations/internal/pricing"
)

const schema = `
	CREATE TABLE IF NOT EXISTS ticket_types (
		id UUID PRIMARY KEY,
		session_id UUID NOT NULL,
		name TEXT NOT NULL,
		unit_price BIGINT NOT NULL,
		tax_rate_percent INT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS orders (
		id UUID PRIMARY KEY,
		session_id UUID NOT NULL,
		email TEXT NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('PENDING', 'PAID', 'FAILED', 'EXPIRED')),
		coupon_code TEXT,
		subtotal BIGINT NOT NULL,
		discount BIGINT NOT NULL,
		tax BIGINT NOT NULL,
		total BIGINT NOT NULL,
		provider_session_id TEXT,
		created_at TIMESTAMPTZ NOT NULL
	);
	CREATE TABLE IF NOT EXISTS order_items (
		order_id UUID NOT NULL,
		ticket_type_id UUID NOT NULL,
		quantity INT NOT NULL,
		unit_price BIGINT NOT NULL,
		tax_rate_percent INT NOT NULL,
		PRIMARY KEY (order_id, ticket_type_id)
	);
	CREATE TABLE IF NOT EXISTS participants (
		id UUID PRIMARY KEY,
		order_id UUID NOT NULL,
		session_id UUID NOT NULL,
		ticket_type_id UUID NOT NULL,
		email TEXT NOT NULL,
		state TEXT NOT NULL CHECK (state IN ('NOT_CHECKED_IN', 'CHECKED_IN')),
		checked_in_at TIMESTAMPTZ
	);
	CREATE TABLE IF NOT EXISTS coupons (
		code TEXT PRIMARY KEY,
		discount_type TEXT NOT NULL CHECK (discount_type IN ('AMOUNT', 'PERCENTAGE')),
		discount_value BIGINT NOT NULL,
		usage_limit BIGINT,
		usage_count BIGINT NOT NULL DEFAULT 0,
		valid_from TIMESTAMPTZ NOT NULL,
		valid_until TIMESTAMPTZ NOT NULL,
		min_amount BIGINT,
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	);
	CREATE TABLE IF NOT EXISTS outbox (
		id UUID PRIMARY KEY,
		aggregate_type TEXT NOT NULL,
		aggregate_id UUID NOT NULL,
		event_type TEXT NOT NULL,
		payload_json JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		published_at TIMESTAMPTZ,
		status TEXT NOT NULL CHECK (status IN ('NEW', 'PUBLISHED', 'FAILED')),
		dedupe_key TEXT NOT NULL
	);
`

func newTestRepo(t *testing.T) *postgres.Repository {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			Env:          map[string]string{"POSTGRES_USER": "semreg", "POSTGRES_PASSWORD": "semreg", "POSTGRES_DB": "semreg"},
			ExposedPorts: []string{"5432/tcp"},
			WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { pgContainer.Terminate(ctx) })

	host, err := pgContainer.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	port, err := pgContainer.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatal(err)
	}

	pool, err := pgxpool.New(ctx, "postgres://semreg:semreg@"+host+":"+port.Port()+"/semreg?sslmode=disable")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(pool.Close)

	if _, err := pool.Exec(ctx, schema); err != nil {
		t.Fatal(err)
	}
	return postgres.NewRepository(pool)
}

func pendingOrder() domain.Order {
	ttID := uuid.New()
	return domain.Order{
		ID:                uuid.New(),
		SessionID:         uuid.New(),
		Email:             "a@example.com",
		Status:            domain.OrderPending,
		Subtotal:          3000,
		Tax:               300,
		Total:             3300,
		ProviderSessionID: "ps_" + uuid.New().String(),
		CreatedAt:         time.Now().UTC(),
		Items: []domain.OrderItem{
			{TicketTypeID: ttID, Quantity: 3, UnitPrice: 1000, TaxRatePercent: 10},
		},
	}
}

func validCoupon(code string, limit *int64) pricing.Coupon {
	return pricing.Coupon{
		Code:          code,
		DiscountType:  pricing.DiscountAmount,
		DiscountValue: 500,
		UsageLimit:    limit,
		ValidFrom:     time.Now().Add(-time.Hour),
		ValidUntil:    time.Now().Add(time.Hour),
		IsActive:      true,
	}
}

func TestRepository_OrderLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}
	repo := newTestRepo(t)
	ctx := context.Background()

	order := pendingOrder()
	if err := repo.CreateOrder(ctx, order); err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	fetched, err := repo.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if fetched.Status != domain.OrderPending || fetched.Total != 3300 || len(fetched.Items) != 1 {
		t.Errorf("unexpected order: %+v", fetched)
	}

	byProvider, err := repo.GetOrderByProviderSession(ctx, order.ProviderSessionID)
	if err != nil {
		t.Fatalf("GetOrderByProviderSession: %v", err)
	}
	if byProvider.ID != order.ID {
		t.Errorf("expected order %s, got %s", order.ID, byProvider.ID)
	}

	parts := domain.NewParticipants(order)
	if _, err := repo.MarkOrderPaid(ctx, &order, parts); err != nil {
		t.Fatalf("MarkOrderPaid: %v", err)
	}

	fetched, err = repo.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatal(err)
	}
	if fetched.Status != domain.OrderPaid {
		t.Errorf("expected PAID, got %s", fetched.Status)
	}

	p, err := repo.GetParticipant(ctx, parts[0].ID)
	if err != nil {
		t.Fatalf("GetParticipant: %v", err)
	}
	if p.State != domain.NotCheckedIn {
		t.Errorf("expected NOT_CHECKED_IN, got %s", p.State)
	}

	// second settle attempt hits the conditional update
	if _, err := repo.MarkOrderPaid(ctx, &order, nil); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("expected ErrConflict on double settle, got %v", err)
	}

	// both order.created and order.paid should be waiting in the outbox
	records, err := repo.GetUnpublishedOutbox(ctx, 10)
	if err != nil {
		t.Fatalf("GetUnpublishedOutbox: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 outbox records, got %d", len(records))
	}
	if err := repo.MarkPublished(ctx, records[0].ID, time.Now()); err != nil {
		t.Fatalf("MarkPublished: %v", err)
	}
	records, err = repo.GetUnpublishedOutbox(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Errorf("expected 1 unpublished record after MarkPublished, got %d", len(records))
	}
}

func TestRepository_ExpireOrder(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}
	repo := newTestRepo(t)
	ctx := context.Background()

	order := pendingOrder()
	order.CreatedAt = time.Now().Add(-time.Hour)
	if err := repo.CreateOrder(ctx, order); err != nil {
		t.Fatal(err)
	}

	stale, err := repo.GetExpiredPendingOrders(ctx, time.Now().Add(-30*time.Minute))
	if err != nil {
		t.Fatalf("GetExpiredPendingOrders: %v", err)
	}
	if len(stale) != 1 || stale[0].ID != order.ID {
		t.Fatalf("expected the stale order, got %+v", stale)
	}

	if err := repo.ExpireOrder(ctx, order.ID); err != nil {
		t.Fatalf("ExpireOrder: %v", err)
	}
	fetched, err := repo.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatal(err)
	}
	if fetched.Status != domain.OrderExpired {
		t.Errorf("expected EXPIRED, got %s", fetched.Status)
	}

	// already settled: the conditional update misses
	if err := repo.ExpireOrder(ctx, order.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second expire, got %v", err)
	}
}

func TestRepository_CouponUsageLimit(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}
	repo := newTestRepo(t)
	ctx := context.Background()

	limit := int64(1)
	if err := repo.CreateCoupon(ctx, validCoupon("LIMIT1", &limit)); err != nil {
		t.Fatalf("CreateCoupon: %v", err)
	}
	if err := repo.CreateCoupon(ctx, validCoupon("LIMIT1", &limit)); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("expected ErrConflict on duplicate code, got %v", err)
	}

	first := pendingOrder()
	first.CouponCode = "LIMIT1"
	if err := repo.CreateOrder(ctx, first); err != nil {
		t.Fatal(err)
	}
	redeemed, err := repo.MarkOrderPaid(ctx, &first, nil)
	if err != nil {
		t.Fatalf("MarkOrderPaid: %v", err)
	}
	if !redeemed {
		t.Error("first redemption should succeed")
	}

	second := pendingOrder()
	second.CouponCode = "LIMIT1"
	if err := repo.CreateOrder(ctx, second); err != nil {
		t.Fatal(err)
	}
	redeemed, err = repo.MarkOrderPaid(ctx, &second, nil)
	if err != nil {
		t.Fatalf("MarkOrderPaid past the limit must not fail: %v", err)
	}
	if redeemed {
		t.Error("redemption past the usage limit should report false")
	}

	c, err := repo.GetCoupon(ctx, "LIMIT1")
	if err != nil {
		t.Fatal(err)
	}
	if c.UsageCount != 1 {
		t.Errorf("usage count must never exceed the limit, got %d", c.UsageCount)
	}
}

func TestRepository_DeleteCoupon(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.DeleteCoupon(ctx, "NOSUCH"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if err := repo.CreateCoupon(ctx, validCoupon("FRESH", nil)); err != nil {
		t.Fatal(err)
	}
	if err := repo.DeleteCoupon(ctx, "FRESH"); err != nil {
		t.Errorf("unused coupon should delete, got %v", err)
	}

	if err := repo.CreateCoupon(ctx, validCoupon("USED", nil)); err != nil {
		t.Fatal(err)
	}
	order := pendingOrder()
	order.CouponCode = "USED"
	if err := repo.CreateOrder(ctx, order); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.MarkOrderPaid(ctx, &order, nil); err != nil {
		t.Fatal(err)
	}
	if err := repo.DeleteCoupon(ctx, "USED"); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("redeemed coupon must not delete, got %v", err)
	}
}

func TestRepository_CheckInParticipant(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}
	repo := newTestRepo(t)
	ctx := context.Background()

	order := pendingOrder()
	if err := repo.CreateOrder(ctx, order); err != nil {
		t.Fatal(err)
	}
	parts := domain.NewParticipants(order)
	if _, err := repo.MarkOrderPaid(ctx, &order, parts); err != nil {
		t.Fatal(err)
	}

	now := time.Now().UTC()
	if err := repo.CheckInParticipant(ctx, parts[0].ID, now); err != nil {
		t.Fatalf("CheckInParticipant: %v", err)
	}

	p, err := repo.GetParticipant(ctx, parts[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if p.State != domain.CheckedIn || p.CheckedInAt == nil {
		t.Errorf("expected CHECKED_IN with timestamp, got %+v", p)
	}

	if err := repo.CheckInParticipant(ctx, parts[0].ID, now); !errors.Is(err, domain.ErrAlreadyCheckedIn) {
		t.Errorf("expected ErrAlreadyCheckedIn on second scan, got %v", err)
	}
	if err := repo.CheckInParticipant(ctx, uuid.New(), now); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown participant, got %v", err)
	}
}

func TestRepository_GetTicketTypes(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}
	repo := newTestRepo(t)
	ctx := context.Background()

	sessionID := uuid.New()
	ttA := domain.TicketType{ID: uuid.New(), SessionID: sessionID, Name: "General", UnitPrice: 1000, TaxRatePercent: 10}
	ttB := domain.TicketType{ID: uuid.New(), SessionID: sessionID, Name: "Student", UnitPrice: 500, TaxRatePercent: 10}
	if err := repo.UpsertTicketType(ctx, ttA); err != nil {
		t.Fatal(err)
	}
	if err := repo.UpsertTicketType(ctx, ttB); err != nil {
		t.Fatal(err)
	}

	got, err := repo.GetTicketTypes(ctx, []uuid.UUID{ttB.ID, ttA.ID})
	if err != nil {
		t.Fatalf("GetTicketTypes: %v", err)
	}
	if len(got) != 2 || got[0].ID != ttB.ID || got[1].ID != ttA.ID {
		t.Errorf("result must follow request order, got %+v", got)
	}

	if _, err := repo.GetTicketTypes(ctx, []uuid.UUID{uuid.New()}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown ticket type, got %v", err)
	}
}
