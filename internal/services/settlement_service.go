package services

import (
	"fmt"
	"math"

	"grain-backend/internal/models"

	"github.com/shopspring/decimal"
)

// BagsPerQuintal is fixed: one bag is 50 kg
const BagsPerQuintal = 2.0

// SettlementService turns a transaction record into settlement figures.
// An instance is bound to exactly one formula for its lifetime.
type SettlementService struct {
	formula models.Formula
}

// NewSettlementService returns a calculator for the named formula
func NewSettlementService(formula models.Formula) (*SettlementService, error) {
	switch formula {
	case models.FormulaPerQuintal, models.FormulaFlat:
	default:
		return nil, fmt.Errorf("unknown settlement formula %q", formula)
	}
	return &SettlementService{formula: formula}, nil
}

// Formula returns the formula this calculator applies
func (s *SettlementService) Formula() models.Formula {
	return s.formula
}

// Calculate is total over every record: blank or malformed numbers count as zero.
func (s *SettlementService) Calculate(rec models.TransactionRecord) models.SettlementResult {
	if s.formula == models.FormulaFlat {
		return calculateFlat(rec)
	}
	return calculatePerQuintal(rec)
}

// Respond bundles the raw result with its two-decimal display form
func (s *SettlementService) Respond(rec models.TransactionRecord) models.SettlementResponse {
	res := s.Calculate(rec)
	return models.SettlementResponse{Result: res, Display: Display(res)}
}

func calculatePerQuintal(rec models.TransactionRecord) models.SettlementResult {
	quantity := rec.Bags.Float() / BagsPerQuintal
	rough := quantity * rec.Rate.Float()
	total := rough + quantity*rec.Hammali.Float()

	return deductions(models.FormulaPerQuintal, quantity, rough, total, rec)
}

func calculateFlat(rec models.TransactionRecord) models.SettlementResult {
	quantity := rec.Bags.Float() / BagsPerQuintal
	rough := rec.Bags.Float() * rec.Rate.Float()
	total := rough - rec.Bharti.Float() - rec.Hammali.Float()

	return deductions(models.FormulaFlat, quantity, rough, total, rec)
}

// deductions applies hold then advance as flat amounts, never clamped
func deductions(f models.Formula, quantity, rough, total float64, rec models.TransactionRecord) models.SettlementResult {
	afterHold := total - rec.AmountOnHold.Float()
	return models.SettlementResult{
		Formula:             f,
		Quantity:            finite(quantity),
		RoughCost:           finite(rough),
		TotalRoughCost:      finite(total),
		EstimateWithoutHold: finite(total),
		EstimateAfterHold:   finite(afterHold),
		BalanceAfterAdvance: finite(afterHold - rec.AdvanceAmount.Float()),
	}
}

// finite maps overflowed figures to zero so NaN and Inf never reach a document
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// FormatAmount renders v with exactly two decimals
func FormatAmount(v float64) string {
	v = finite(v)
	return decimal.NewFromFloat(v).StringFixed(2)
}

// Display rounds every figure of res for presentation
func Display(res models.SettlementResult) models.SettlementDisplay {
	return models.SettlementDisplay{
		Quantity:            FormatAmount(res.Quantity),
		RoughCost:           FormatAmount(res.RoughCost),
		TotalRoughCost:      FormatAmount(res.TotalRoughCost),
		EstimateWithoutHold: FormatAmount(res.EstimateWithoutHold),
		EstimateAfterHold:   FormatAmount(res.EstimateAfterHold),
		BalanceAfterAdvance: FormatAmount(res.BalanceAfterAdvance),
	}
}
