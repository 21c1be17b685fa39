package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/rentledger/backend/internal/models"
	"github.com/rentledger/backend/internal/services"
)

type ReportService interface {
	Financial(ctx context.Context, actor *models.Actor, tenantID uuid.UUID, p models.Period) (*services.FinancialReport, error)
	Occupancy(ctx context.Context, actor *models.Actor, tenantID uuid.UUID, p models.Period) (*services.OccupancyReport, error)
	Payments(ctx context.Context, actor *models.Actor, tenantID uuid.UUID, p models.Period) (*services.PaymentReport, error)
	OwnerStatement(ctx context.Context, actor *models.Actor, tenantID, ownerID uuid.UUID, p models.Period) (*services.OwnerStatement, error)
}

// ReportHandler serves /api/v1/reports/... endpoints. Every report takes
// from and to as YYYY-MM-DD.
type ReportHandler struct {
	Reports ReportService
	Logger  *slog.Logger
}

func (h *ReportHandler) Financial(w http.ResponseWriter, r *http.Request) {
	serveReport(w, r, h.Logger, h.Reports.Financial)
}

func (h *ReportHandler) Occupancy(w http.ResponseWriter, r *http.Request) {
	serveReport(w, r, h.Logger, h.Reports.Occupancy)
}

func (h *ReportHandler) Payments(w http.ResponseWriter, r *http.Request) {
	serveReport(w, r, h.Logger, h.Reports.Payments)
}

// OwnerStatement handles GET /api/v1/reports/owners/{id}/statement.
func (h *ReportHandler) OwnerStatement(w http.ResponseWriter, r *http.Request) {
	ownerID, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	serveReport(w, r, h.Logger, func(ctx context.Context, actor *models.Actor, tenantID uuid.UUID, p models.Period) (*services.OwnerStatement, error) {
		return h.Reports.OwnerStatement(ctx, actor, tenantID, ownerID, p)
	})
}

func serveReport[T any](w http.ResponseWriter, r *http.Request, log *slog.Logger, build func(context.Context, *models.Actor, uuid.UUID, models.Period) (T, error)) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	tenantID, err := tenantScope(r, actor)
	if err != nil {
		writeError(w, log, err)
		return
	}
	p, err := periodFromQuery(r)
	if err != nil {
		writeError(w, log, err)
		return
	}
	report, err := build(r.Context(), actor, tenantID, p)
	if err != nil {
		writeError(w, log, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
