package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	mongoadapter "github.com/semflow/seminar-registrations/internal/adapters/mongo"
	"github.com/semflow/seminar-registrations/internal/adapters/postgres"
	"github.com/semflow/seminar-registrations/internal/checkin"
	"github.com/semflow/seminar-registrations/internal/checkout"
	"github.com/semflow/seminar-registrations/internal/config"
	"github.com/semflow/seminar-registrations/internal/domain"
	"github.com/semflow/seminar-registrations/internal/idempotency"
	"github.com/semflow/seminar-registrations/internal/pricing"
	"github.com/semflow/seminar-registrations/internal/qrcode"
)

type Handlers struct {
	cfg      *config.Config
	repo     *postgres.Repository
	catalog  *mongoadapter.CatalogRepository
	audit    *mongoadapter.AuditLogger
	checkout *checkout.Service
	checkin  *checkin.Service
	idemp    *idempotency.Idempotency
}

func NewHandlers(cfg *config.Config, repo *postgres.Repository, catalog *mongoadapter.CatalogRepository, audit *mongoadapter.AuditLogger, checkoutSvc *checkout.Service, checkinSvc *checkin.Service, idemp *idempotency.Idempotency) *Handlers {
	return &Handlers{
		cfg:      cfg,
		repo:     repo,
		catalog:  catalog,
		audit:    audit,
		checkout: checkoutSvc,
		checkin:  checkinSvc,
		idemp:    idemp,
	}
}

func (h *Handlers) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.catalog.ListUpcomingSessions(r.Context(), time.Now())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"sessions": sessions})
}

func (h *Handlers) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("Idempotency-Key")
	existing, err := h.idemp.Get(r.Context(), key)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if existing != nil {
		w.WriteHeader(existing.Status)
		w.Write(existing.Result)
		return
	}

	var req struct {
		SessionID uuid.UUID `json:"session_id"`
		Email     string    `json:"email"`
		Items     []struct {
			TicketTypeID uuid.UUID `json:"ticket_type_id"`
			Quantity     int       `json:"quantity"`
		} `json:"items"`
		CouponCode    string `json:"coupon_code"`
		AssertedTotal int64  `json:"asserted_total"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	selections := make([]checkout.ItemSelection, len(req.Items))
	for i, it := range req.Items {
		selections[i] = checkout.ItemSelection{TicketTypeID: it.TicketTypeID, Quantity: it.Quantity}
	}

	session, err := h.checkout.CreateSession(r.Context(), req.SessionID, req.Email, selections, req.CouponCode, req.AssertedTotal)
	if errors.Is(err, domain.ErrAmountMismatch) {
		http.Error(w, "asserted total does not match", http.StatusBadRequest)
		return
	}
	if errors.Is(err, domain.ErrInvalidInput) || errors.Is(err, pricing.ErrInvalidInput) {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if errors.Is(err, domain.ErrNotFound) {
		http.Error(w, "ticket type not found", http.StatusNotFound)
		return
	}
	if errors.Is(err, domain.ErrSerializationFailure) {
		http.Error(w, "conflict, try again", http.StatusConflict)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := map[string]interface{}{
		"order_id":     session.Order.ID,
		"status":       session.Order.Status,
		"subtotal":     session.Order.Subtotal,
		"discount":     session.Order.Discount,
		"tax":          session.Order.Tax,
		"total":        session.Order.Total,
		"redirect_url": session.RedirectURL,
	}
	data, _ := json.Marshal(resp)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	w.Write(data)

	h.idemp.Set(r.Context(), key, idempotency.Response{Status: http.StatusCreated, Result: data})
}

func (h *Handlers) PaymentCallback(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProviderSessionID string `json:"provider_session_id"`
		Status            string `json:"status"`
		TransactionID     string `json:"transaction_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	order, err := h.checkout.ConfirmPayment(r.Context(), req.ProviderSessionID, req.Status)
	if errors.Is(err, domain.ErrNotFound) {
		http.Error(w, "order not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"order_id": order.ID,
		"status":   order.Status,
	})
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	order, err := h.repo.GetOrder(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "order not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := map[string]interface{}{
		"order_id": order.ID,
		"status":   order.Status,
		"subtotal": order.Subtotal,
		"discount": order.Discount,
		"tax":      order.Tax,
		"total":    order.Total,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (h *Handlers) IssueTicket(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	encoded, err := h.checkin.IssueTicket(r.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		http.Error(w, "participant not found", http.StatusNotFound)
		return
	}
	if errors.Is(err, domain.ErrOrderNotPaid) {
		http.Error(w, "order not paid", http.StatusConflict)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"ticket": encoded})
}

func (h *Handlers) CheckIn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	p, err := h.checkin.Scan(r.Context(), req.Code)
	if errors.Is(err, domain.ErrAlreadyCheckedIn) {
		http.Error(w, "already checked in", http.StatusConflict)
		return
	}
	// The operator only ever sees one generic message; which field failed
	// stays in the logs.
	if errors.Is(err, qrcode.ErrMalformedPayload) || errors.Is(err, qrcode.ErrExpiredPayload) ||
		errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrOrderNotPaid) {
		http.Error(w, "invalid or expired code", http.StatusUnprocessableEntity)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"participant_id": p.ID,
		"session_id":     p.SessionID,
		"state":          p.State,
		"checked_in_at":  p.CheckedInAt,
	})
}

func (h *Handlers) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code          string    `json:"code"`
		DiscountType  string    `json:"discount_type"`
		DiscountValue int64     `json:"discount_value"`
		UsageLimit    *int64    `json:"usage_limit"`
		ValidFrom     time.Time `json:"valid_from"`
		ValidUntil    time.Time `json:"valid_until"`
		MinAmount     *int64    `json:"min_amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	coupon, err := pricing.NewCoupon(req.Code, pricing.DiscountType(req.DiscountType), req.DiscountValue,
		req.UsageLimit, req.ValidFrom, req.ValidUntil, req.MinAmount)
	if err != nil {
		http.Error(w, "invalid coupon definition", http.StatusBadRequest)
		return
	}

	if err := h.repo.CreateCoupon(r.Context(), coupon); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			http.Error(w, "coupon code already exists", http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.audit.LogEvent(r.Context(), "coupon.created", coupon.Code, map[string]interface{}{
		"code":           coupon.Code,
		"discount_type":  coupon.DiscountType,
		"discount_value": coupon.DiscountValue,
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{"code": coupon.Code})
}

func (h *Handlers) DeleteCoupon(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	err := h.repo.DeleteCoupon(r.Context(), code)
	if errors.Is(err, domain.ErrNotFound) {
		http.Error(w, "coupon not found", http.StatusNotFound)
		return
	}
	if errors.Is(err, domain.ErrConflict) {
		http.Error(w, "coupon has been redeemed and cannot be deleted", http.StatusConflict)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}
