package postgres

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/semflow/seminar-registrations/internal/domain"
	"github.com/semflow/seminar-registrations/internal/observability"
	"github.com/semflow/seminar-registrations/internal/pricing"
)

const (
	serializationFailureCode = "40001"
	uniqueViolationCode      = "23505"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	start := time.Now()
	defer func() {
		observability.DBTxDuration.Observe(time.Since(start).Seconds())
	}()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, "SET TRANSACTION ISOLATION LEVEL SERIALIZABLE")
	if err != nil {
		return err
	}

	err = fn(tx)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == serializationFailureCode {
			return domain.ErrSerializationFailure
		}
		return err
	}

	return tx.Commit(ctx)
}

func (r *Repository) GetTicketTypes(ctx context.Context, ids []uuid.UUID) ([]domain.TicketType, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, session_id, name, unit_price, tax_rate_percent
		FROM ticket_types WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[uuid.UUID]domain.TicketType)
	for rows.Next() {
		var tt domain.TicketType
		if err := rows.Scan(&tt.ID, &tt.SessionID, &tt.Name, &tt.UnitPrice, &tt.TaxRatePercent); err != nil {
			return nil, err
		}
		byID[tt.ID] = tt
	}

	out := make([]domain.TicketType, 0, len(ids))
	for _, id := range ids {
		tt, ok := byID[id]
		if !ok {
			return nil, domain.ErrNotFound
		}
		out = append(out, tt)
	}
	return out, nil
}

func (r *Repository) UpsertTicketType(ctx context.Context, tt domain.TicketType) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO ticket_types (id, session_id, name, unit_price, tax_rate_percent)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			session_id = EXCLUDED.session_id,
			name = EXCLUDED.name,
			unit_price = EXCLUDED.unit_price,
			tax_rate_percent = EXCLUDED.tax_rate_percent
	`, tt.ID, tt.SessionID, tt.Name, tt.UnitPrice, tt.TaxRatePercent)
	return err
}

func (r *Repository) CreateOrder(ctx context.Context, order domain.Order) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO orders (id, session_id, email, status, coupon_code, subtotal, discount, tax, total, provider_session_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, order.ID, order.SessionID, order.Email, order.Status, nullIfEmpty(order.CouponCode),
			order.Subtotal, order.Discount, order.Tax, order.Total, order.ProviderSessionID, order.CreatedAt)
		if err != nil {
			return err
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, item := range order.Items {
			item := item
			g.Go(func() error {
				_, err := tx.Exec(gctx, `
					INSERT INTO order_items (order_id, ticket_type_id, quantity, unit_price, tax_rate_percent)
					VALUES ($1, $2, $3, $4, $5)
				`, order.ID, item.TicketTypeID, item.Quantity, item.UnitPrice, item.TaxRatePercent)
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		return r.insertOutbox(ctx, tx, newOutboxRecord("order", order.ID, "order.created", orderEventPayload(order)))
	})
}

func (r *Repository) GetOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	return r.getOrder(ctx, `
		SELECT id, session_id, email, status, coupon_code, subtotal, discount, tax, total, provider_session_id, created_at
		FROM orders WHERE id = $1
	`, orderID)
}

func (r *Repository) GetOrderByProviderSession(ctx context.Context, providerSessionID string) (*domain.Order, error) {
	return r.getOrder(ctx, `
		SELECT id, session_id, email, status, coupon_code, subtotal, discount, tax, total, provider_session_id, created_at
		FROM orders WHERE provider_session_id = $1
	`, providerSessionID)
}

func (r *Repository) getOrder(ctx context.Context, query string, arg interface{}) (*domain.Order, error) {
	var order domain.Order
	var couponCode *string
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&order.ID, &order.SessionID, &order.Email, &order.Status, &couponCode,
		&order.Subtotal, &order.Discount, &order.Tax, &order.Total,
		&order.ProviderSessionID, &order.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if couponCode != nil {
		order.CouponCode = *couponCode
	}

	rows, err := r.pool.Query(ctx, `
		SELECT ticket_type_id, quantity, unit_price, tax_rate_percent
		FROM order_items WHERE order_id = $1
	`, order.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.TicketTypeID, &item.Quantity, &item.UnitPrice, &item.TaxRatePercent); err != nil {
			return nil, err
		}
		order.Items = append(order.Items, item)
	}
	return &order, nil
}

// MarkOrderPaid transitions a PENDING order to PAID, consumes coupon usage,
// and creates the participants, all in one serializable transaction. The
// coupon increment is conditional on the usage limit; a race loss reports
// couponRedeemed=false while the order still completes as priced.
func (r *Repository) MarkOrderPaid(ctx context.Context, order *domain.Order, parts []domain.Participant) (couponRedeemed bool, err error) {
	err = r.WithTx(ctx, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, `
			UPDATE orders SET status = $2 WHERE id = $1 AND status = $3
		`, order.ID, domain.OrderPaid, domain.OrderPending)
		if err != nil {
			return err
		}
		if result.RowsAffected() == 0 {
			return domain.ErrConflict
		}

		if order.CouponCode != "" {
			couponRedeemed, err = r.redeemCoupon(ctx, tx, order.CouponCode)
			if err != nil {
				return err
			}
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, p := range parts {
			p := p
			g.Go(func() error {
				_, err := tx.Exec(gctx, `
					INSERT INTO participants (id, order_id, session_id, ticket_type_id, email, state)
					VALUES ($1, $2, $3, $4, $5, $6)
				`, p.ID, p.OrderID, p.SessionID, p.TicketTypeID, p.Email, p.State)
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		return r.insertOutbox(ctx, tx, newOutboxRecord("order", order.ID, "order.paid", orderEventPayload(*order)))
	})
	return couponRedeemed, err
}

func (r *Repository) MarkOrderFailed(ctx context.Context, orderID uuid.UUID) error {
	return r.updateOrderStatus(ctx, orderID, domain.OrderFailed, domain.OrderPending)
}

func (r *Repository) ExpireOrder(ctx context.Context, orderID uuid.UUID) error {
	return r.updateOrderStatus(ctx, orderID, domain.OrderExpired, domain.OrderPending)
}

func (r *Repository) updateOrderStatus(ctx context.Context, orderID uuid.UUID, status, fromStatus string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE orders SET status = $2 WHERE id = $1 AND status = $3
	`, orderID, status, fromStatus)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *Repository) GetExpiredPendingOrders(ctx context.Context, cutoff time.Time) ([]domain.Order, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, session_id, email, created_at
		FROM orders WHERE status = $1 AND created_at <= $2
	`, domain.OrderPending, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(&o.ID, &o.SessionID, &o.Email, &o.CreatedAt); err != nil {
			return nil, err
		}
		o.Status = domain.OrderPending
		orders = append(orders, o)
	}
	return orders, nil
}

func (r *Repository) CreateCoupon(ctx context.Context, c pricing.Coupon) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO coupons (code, discount_type, discount_value, usage_limit, usage_count, valid_from, valid_until, min_amount, is_active)
		VALUES ($1, $2, $3, $4, 0, $5, $6, $7, $8)
	`, c.Code, string(c.DiscountType), c.DiscountValue, c.UsageLimit, c.ValidFrom, c.ValidUntil, c.MinAmount, c.IsActive)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

func (r *Repository) GetCoupon(ctx context.Context, code string) (pricing.Coupon, error) {
	var c pricing.Coupon
	var discountType string
	err := r.pool.QueryRow(ctx, `
		SELECT code, discount_type, discount_value, usage_limit, usage_count, valid_from, valid_until, min_amount, is_active
		FROM coupons WHERE code = $1
	`, code).Scan(&c.Code, &discountType, &c.DiscountValue, &c.UsageLimit, &c.UsageCount,
		&c.ValidFrom, &c.ValidUntil, &c.MinAmount, &c.IsActive)
	if err == pgx.ErrNoRows {
		return pricing.Coupon{}, domain.ErrNotFound
	}
	if err != nil {
		return pricing.Coupon{}, err
	}
	c.DiscountType = pricing.DiscountType(discountType)
	return c, nil
}

// DeleteCoupon removes a coupon that has never been redeemed. Redeemed
// coupons are kept for financial reporting.
func (r *Repository) DeleteCoupon(ctx context.Context, code string) error {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM coupons WHERE code = $1 AND usage_count = 0
	`, code)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		var count int64
		err := r.pool.QueryRow(ctx, `SELECT usage_count FROM coupons WHERE code = $1`, code).Scan(&count)
		if err == pgx.ErrNoRows {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}
		return domain.ErrConflict
	}
	return nil
}

// redeemCoupon is the compare-and-increment: the row is only updated while
// usage_count is still below the limit, so concurrent redemptions cannot
// overshoot it.
func (r *Repository) redeemCoupon(ctx context.Context, tx pgx.Tx, code string) (bool, error) {
	result, err := tx.Exec(ctx, `
		UPDATE coupons SET usage_count = usage_count + 1
		WHERE code = $1 AND is_active AND (usage_limit IS NULL OR usage_count < usage_limit)
	`, code)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}

func (r *Repository) GetParticipant(ctx context.Context, id uuid.UUID) (*domain.Participant, error) {
	var p domain.Participant
	err := r.pool.QueryRow(ctx, `
		SELECT id, order_id, session_id, ticket_type_id, email, state, checked_in_at
		FROM participants WHERE id = $1
	`, id).Scan(&p.ID, &p.OrderID, &p.SessionID, &p.TicketTypeID, &p.Email, &p.State, &p.CheckedInAt)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CheckInParticipant transitions NOT_CHECKED_IN to CHECKED_IN exactly once.
func (r *Repository) CheckInParticipant(ctx context.Context, id uuid.UUID, now time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE participants SET state = $2, checked_in_at = $3
		WHERE id = $1 AND state = $4
	`, id, domain.CheckedIn, now, domain.NotCheckedIn)
	if err != nil {
		return err
	}
	if result.RowsAffected() > 0 {
		return nil
	}

	var state string
	err = r.pool.QueryRow(ctx, `SELECT state FROM participants WHERE id = $1`, id).Scan(&state)
	if err == pgx.ErrNoRows {
		return domain.ErrNotFound
	}
	if err != nil {
		return err
	}
	if state == domain.CheckedIn {
		return domain.ErrAlreadyCheckedIn
	}
	return domain.ErrConflict
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
