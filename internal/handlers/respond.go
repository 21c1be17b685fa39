package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/rentledger/backend/internal/middleware"
	"github.com/rentledger/backend/internal/models"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Ref   string `json:"ref,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps a domain error kind to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInsufficientFunds),
		errors.Is(err, models.ErrBelowMinimumAmount),
		errors.Is(err, models.ErrExceedsAmountOwed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrInvalidStateTransition):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as {"error","code"}. Storage failures are logged and
// reported without their cause.
func writeError(w http.ResponseWriter, log *slog.Logger, err error) {
	status := statusFor(err)
	resp := errorResponse{Error: err.Error(), Code: models.Code(err)}
	var de *models.Error
	if errors.As(err, &de) {
		resp.Ref = de.Ref
		if de.Reason != "" {
			resp.Error = de.Reason
		}
	}
	if status == http.StatusInternalServerError {
		if log == nil {
			log = slog.Default()
		}
		log.Error("request failed", "error", err, "ref", resp.Ref)
		resp.Error = "internal error"
	}
	writeJSON(w, status, resp)
}

func badRequest(w http.ResponseWriter, format string, args ...any) {
	writeError(w, nil, models.Fail(models.ErrValidation, format, args...))
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return models.Fail(models.ErrValidation, "invalid JSON: %v", err)
	}
	return nil
}

// pathID parses the {name} path segment as a UUID.
func pathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, models.Fail(models.ErrValidation, "invalid %s", name)
	}
	return id, nil
}

// requireActor returns the authenticated actor, writing 401 if there is none.
func requireActor(w http.ResponseWriter, r *http.Request) (*models.Actor, bool) {
	a := middleware.ActorFromCtx(r.Context())
	if a == nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized", Code: "unauthorized"})
		return nil, false
	}
	return a, true
}

// tenantScope picks the tenant a request acts on: the tenant_id query
// parameter when given (platform admins), otherwise the actor's own tenant.
func tenantScope(r *http.Request, actor *models.Actor) (uuid.UUID, error) {
	if raw := r.URL.Query().Get("tenant_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return uuid.Nil, models.Fail(models.ErrValidation, "invalid tenant_id")
		}
		return id, nil
	}
	if actor.TenantID == uuid.Nil {
		return uuid.Nil, models.Fail(models.ErrValidation, "tenant_id is required")
	}
	return actor.TenantID, nil
}

// periodFromQuery reads from/to as dates. The period covers the whole of the
// to date.
func periodFromQuery(r *http.Request) (models.Period, error) {
	q := r.URL.Query()
	from, err := parseDate("from", q.Get("from"))
	if err != nil {
		return models.Period{}, err
	}
	to, err := parseDate("to", q.Get("to"))
	if err != nil {
		return models.Period{}, err
	}
	p := models.Period{From: from, To: to.Add(24*time.Hour - time.Nanosecond)}
	return p, p.Validate()
}

func parseDate(name, raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, models.Fail(models.ErrValidation, "%s is required", name)
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, models.Fail(models.ErrValidation, "%s must be YYYY-MM-DD", name)
	}
	return t, nil
}
