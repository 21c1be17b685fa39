package services

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rentledger/backend/internal/models"
)

// FullRentCutoffDay is the last move-in day of the month that is charged full rent.
const FullRentCutoffDay = 15

var two = decimal.NewFromInt(2)

type ProratedRent struct {
	Amount       decimal.Decimal `json:"amount"`
	IsProrated   bool            `json:"is_prorated"`
	ProratedDays int             `json:"prorated_days"`
	DaysInMonth  int             `json:"days_in_month"`
	Note         string          `json:"note"`
}

type FirstPayment struct {
	Rent    ProratedRent    `json:"rent"`
	Deposit decimal.Decimal `json:"deposit"`
	Total   decimal.Decimal `json:"total"`
}

// DaysIn returns the number of days in t's calendar month.
func DaysIn(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// CalculateProratedRent charges full rent for a move-in on days 1..15 and half
// rent from day 16 to the end of the month.
func CalculateProratedRent(moveIn time.Time, monthlyRent decimal.Decimal) (ProratedRent, error) {
	if err := models.ValidateAmount("monthly rent", monthlyRent); err != nil {
		return ProratedRent{}, err
	}
	if monthlyRent.IsNegative() {
		return ProratedRent{}, models.Fail(models.ErrValidation, "monthly rent must not be negative")
	}
	rent := models.RoundMoney(monthlyRent)
	day, days := moveIn.Day(), DaysIn(moveIn)
	if day <= FullRentCutoffDay {
		return ProratedRent{
			Amount:      rent,
			DaysInMonth: days,
			Note:        fmt.Sprintf("Full month rent for move-in on day %d", day),
		}, nil
	}
	remaining := days - day + 1
	return ProratedRent{
		Amount:       models.RoundMoney(rent.Div(two)),
		IsProrated:   true,
		ProratedDays: remaining,
		DaysInMonth:  days,
		Note:         fmt.Sprintf("Half month rent for move-in on day %d (%d of %d days remaining)", day, remaining, days),
	}, nil
}

// CalculateFirstPayment is the amount due at signing: first-month rent plus deposit.
func CalculateFirstPayment(moveIn time.Time, monthlyRent, deposit decimal.Decimal) (FirstPayment, error) {
	if err := models.ValidateAmount("deposit", deposit); err != nil {
		return FirstPayment{}, err
	}
	if deposit.IsNegative() {
		return FirstPayment{}, models.Fail(models.ErrValidation, "deposit must not be negative")
	}
	rent, err := CalculateProratedRent(moveIn, monthlyRent)
	if err != nil {
		return FirstPayment{}, err
	}
	deposit = models.RoundMoney(deposit)
	return FirstPayment{Rent: rent, Deposit: deposit, Total: rent.Amount.Add(deposit)}, nil
}
