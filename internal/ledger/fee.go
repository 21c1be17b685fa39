package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/rentledger/backend/internal/models"
)

// DefaultPlatformFeePercentage is the usual global commission. Configuration
// supplies the global value explicitly; zero means no commission.
var DefaultPlatformFeePercentage = decimal.NewFromInt(10)

// FeeEngine computes the platform commission on a payment. It holds no state
// beyond the global default and is safe for concurrent use.
type FeeEngine struct {
	GlobalPercentage decimal.Decimal
}

func NewFeeEngine(global decimal.Decimal) FeeEngine {
	return FeeEngine{GlobalPercentage: global}
}

// Resolve picks the fee percentage: property commission, then tenant default,
// then the global default. It returns the source that won.
func (e FeeEngine) Resolve(property *models.Property, tenant *models.Tenant) (decimal.Decimal, string, error) {
	pct, source := e.GlobalPercentage, models.FeeSourceGlobal
	switch {
	case property != nil && property.CommissionPercentage != nil:
		pct, source = *property.CommissionPercentage, models.FeeSourceProperty
	case tenant != nil && tenant.DefaultPlatformFeePercentage != nil:
		pct, source = *tenant.DefaultPlatformFeePercentage, models.FeeSourceTenant
	}
	if err := validPercentage(pct); err != nil {
		return decimal.Zero, "", err
	}
	return pct, source, nil
}

// Compute returns fee = round(amount*pct/100, 2) and net = amount - fee.
func (e FeeEngine) Compute(amount, pct decimal.Decimal) (fee, net decimal.Decimal, err error) {
	if err := validPercentage(pct); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	amount = models.RoundMoney(amount)
	fee = models.PercentOf(amount, pct)
	return fee, amount.Sub(fee), nil
}

var hundred = decimal.NewFromInt(100)

func validPercentage(pct decimal.Decimal) error {
	if pct.IsNegative() || pct.GreaterThan(hundred) {
		return models.Fail(models.ErrValidation, "fee percentage %s is outside 0..100", pct)
	}
	return nil
}
