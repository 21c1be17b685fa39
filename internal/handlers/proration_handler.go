package handlers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/rentledger/backend/internal/services"
)

// Proration handles GET /api/v1/proration?move_in=&monthly_rent=&deposit=.
// Without a deposit it returns the first month's rent only.
func Proration(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireActor(w, r); !ok {
		return
	}
	q := r.URL.Query()
	moveIn, err := parseDate("move_in", q.Get("move_in"))
	if err != nil {
		writeError(w, nil, err)
		return
	}
	rent, err := decimal.NewFromString(q.Get("monthly_rent"))
	if err != nil {
		badRequest(w, "monthly_rent must be a number")
		return
	}
	if raw := q.Get("deposit"); raw != "" {
		deposit, err := decimal.NewFromString(raw)
		if err != nil {
			badRequest(w, "deposit must be a number")
			return
		}
		first, err := services.CalculateFirstPayment(moveIn, rent, deposit)
		if err != nil {
			writeError(w, nil, err)
			return
		}
		writeJSON(w, http.StatusOK, first)
		return
	}
	pr, err := services.CalculateProratedRent(moveIn, rent)
	if err != nil {
		writeError(w, nil, err)
		return
	}
	writeJSON(w, http.StatusOK, pr)
}
