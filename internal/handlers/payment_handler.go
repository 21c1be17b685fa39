package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/rentledger/backend/internal/ledger"
	"github.com/rentledger/backend/internal/models"
)

// PaymentPoster posts a completed payment into the ledger.
type PaymentPoster interface {
	PostPayment(ctx context.Context, actor *models.Actor, paymentID uuid.UUID) (*ledger.PostResult, error)
}

type PaymentHandler struct {
	Ledger PaymentPoster
	Logger *slog.Logger
}

// Post handles POST /api/v1/payments/{id}/post. A replay of an already
// posted payment answers 200 with the original fee, a new posting 201.
func (h *PaymentHandler) Post(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	res, err := h.Ledger.PostPayment(r.Context(), actor, id)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	status := http.StatusCreated
	if res.AlreadyPosted {
		status = http.StatusOK
	}
	writeJSON(w, status, res)
}
