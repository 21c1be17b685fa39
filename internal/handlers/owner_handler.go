package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rentledger/backend/internal/models"
	"github.com/rentledger/backend/internal/services"
)

type PayoutService interface {
	MarkPayment(ctx context.Context, actor *models.Actor, in services.MarkPaymentInput) (*models.OwnerPayment, error)
	Balance(ctx context.Context, actor *models.Actor, tenantID, ownerID uuid.UUID) (*models.OwnerBalance, error)
	ListPayments(ctx context.Context, actor *models.Actor, tenantID, ownerID uuid.UUID) ([]*models.OwnerPayment, error)
}

// OwnerHandler serves /api/v1/owners/{id}/... endpoints.
type OwnerHandler struct {
	Payouts PayoutService
	Logger  *slog.Logger
}

type markPaymentRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method"`
	PaymentDate   string          `json:"payment_date,omitempty"`
	TransactionID string          `json:"transaction_id,omitempty"`
	Notes         string          `json:"notes,omitempty"`
}

// MarkPayment handles POST /api/v1/owners/{id}/payments.
func (h *OwnerHandler) MarkPayment(w http.ResponseWriter, r *http.Request) {
	actor, tenantID, ownerID, ok := h.scope(w, r)
	if !ok {
		return
	}
	var req markPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	in := services.MarkPaymentInput{
		TenantID:      tenantID,
		OwnerID:       ownerID,
		Amount:        req.Amount,
		PaymentMethod: req.PaymentMethod,
		TransactionID: req.TransactionID,
		Notes:         req.Notes,
	}
	if req.PaymentDate != "" {
		d, err := parseTimestamp(req.PaymentDate)
		if err != nil {
			writeError(w, h.Logger, err)
			return
		}
		in.PaymentDate = &d
	}
	p, err := h.Payouts.MarkPayment(r.Context(), actor, in)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// Balance handles GET /api/v1/owners/{id}/balance.
func (h *OwnerHandler) Balance(w http.ResponseWriter, r *http.Request) {
	actor, tenantID, ownerID, ok := h.scope(w, r)
	if !ok {
		return
	}
	b, err := h.Payouts.Balance(r.Context(), actor, tenantID, ownerID)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// ListPayments handles GET /api/v1/owners/{id}/payments.
func (h *OwnerHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	actor, tenantID, ownerID, ok := h.scope(w, r)
	if !ok {
		return
	}
	list, err := h.Payouts.ListPayments(r.Context(), actor, tenantID, ownerID)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"payments": list})
}

func (h *OwnerHandler) scope(w http.ResponseWriter, r *http.Request) (*models.Actor, uuid.UUID, uuid.UUID, bool) {
	actor, ok := requireActor(w, r)
	if !ok {
		return nil, uuid.Nil, uuid.Nil, false
	}
	ownerID, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.Logger, err)
		return nil, uuid.Nil, uuid.Nil, false
	}
	tenantID, err := tenantScope(r, actor)
	if err != nil {
		writeError(w, h.Logger, err)
		return nil, uuid.Nil, uuid.Nil, false
	}
	return actor, tenantID, ownerID, true
}

// parseTimestamp accepts RFC 3339 or a bare date.
func parseTimestamp(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, models.Fail(models.ErrValidation, "payment_date must be YYYY-MM-DD or RFC 3339")
	}
	return t, nil
}
