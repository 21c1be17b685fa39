package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rentledger/backend/internal/models"
	"github.com/rentledger/backend/internal/services"
)

// CashoutService is the subset of services.CashoutService used here.
type CashoutService interface {
	CreateRequest(ctx context.Context, actor *models.Actor, in services.CreateCashoutInput) (*models.CashoutRequest, error)
	Approve(ctx context.Context, actor *models.Actor, id uuid.UUID) (*models.CashoutRequest, error)
	Reject(ctx context.Context, actor *models.Actor, id uuid.UUID, reason string) (*models.CashoutRequest, error)
	Process(ctx context.Context, actor *models.Actor, id uuid.UUID, transactionID string) (*models.CashoutRequest, error)
	Get(ctx context.Context, actor *models.Actor, id uuid.UUID) (*models.CashoutRequest, error)
	ListByTenant(ctx context.Context, actor *models.Actor, tenantID uuid.UUID, status models.CashoutStatus) ([]*models.CashoutRequest, error)
	Balance(ctx context.Context, actor *models.Actor, tenantID uuid.UUID) (*models.CompanyBalance, error)
}

type CashoutHandler struct {
	Cashouts CashoutService
	Logger   *slog.Logger
}

type createCashoutRequest struct {
	TenantID       *uuid.UUID      `json:"tenant_id,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	PaymentMethod  string          `json:"payment_method"`
	PaymentDetails json.RawMessage `json:"payment_details"`
}

// Create handles POST /api/v1/cashouts.
func (h *CashoutHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req createCashoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	tenantID := actor.TenantID
	if req.TenantID != nil {
		tenantID = *req.TenantID
	}
	if tenantID == uuid.Nil {
		badRequest(w, "tenant_id is required")
		return
	}
	c, err := h.Cashouts.CreateRequest(r.Context(), actor, services.CreateCashoutInput{
		TenantID:       tenantID,
		Amount:         req.Amount,
		PaymentMethod:  req.PaymentMethod,
		PaymentDetails: req.PaymentDetails,
	})
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// List handles GET /api/v1/cashouts?status=.
func (h *CashoutHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	tenantID, err := tenantScope(r, actor)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	list, err := h.Cashouts.ListByTenant(r.Context(), actor, tenantID, models.CashoutStatus(r.URL.Query().Get("status")))
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cashouts": list})
}

// Get handles GET /api/v1/cashouts/{id}.
func (h *CashoutHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.withID(w, r, func(ctx context.Context, actor *models.Actor, id uuid.UUID) (*models.CashoutRequest, error) {
		return h.Cashouts.Get(ctx, actor, id)
	})
}

// Approve handles POST /api/v1/cashouts/{id}/approve.
func (h *CashoutHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.withID(w, r, func(ctx context.Context, actor *models.Actor, id uuid.UUID) (*models.CashoutRequest, error) {
		return h.Cashouts.Approve(ctx, actor, id)
	})
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

// Reject handles POST /api/v1/cashouts/{id}/reject.
func (h *CashoutHandler) Reject(w http.ResponseWriter, r *http.Request) {
	var req rejectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	h.withID(w, r, func(ctx context.Context, actor *models.Actor, id uuid.UUID) (*models.CashoutRequest, error) {
		return h.Cashouts.Reject(ctx, actor, id, req.Reason)
	})
}

type processRequest struct {
	TransactionID string `json:"transaction_id"`
}

// Process handles POST /api/v1/cashouts/{id}/process.
func (h *CashoutHandler) Process(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	h.withID(w, r, func(ctx context.Context, actor *models.Actor, id uuid.UUID) (*models.CashoutRequest, error) {
		return h.Cashouts.Process(ctx, actor, id, req.TransactionID)
	})
}

// CompanyBalance handles GET /api/v1/balances/company.
func (h *CashoutHandler) CompanyBalance(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	tenantID, err := tenantScope(r, actor)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	b, err := h.Cashouts.Balance(r.Context(), actor, tenantID)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *CashoutHandler) withID(w http.ResponseWriter, r *http.Request, fn func(context.Context, *models.Actor, uuid.UUID) (*models.CashoutRequest, error)) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	c, err := fn(r.Context(), actor, id)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}
