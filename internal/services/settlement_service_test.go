package services

import (
	"math"
	"testing"

	"grain-backend/internal/models"
)

func mustSettlement(t *testing.T, f models.Formula) *SettlementService {
	t.Helper()
	s, err := NewSettlementService(f)
	if err != nil {
		t.Fatalf("NewSettlementService(%q): %v", f, err)
	}
	return s
}

func TestPerQuintalSettlement(t *testing.T) {
	s := mustSettlement(t, models.FormulaPerQuintal)
	rec := models.TransactionRecord{
		Bags:          models.NewNumber(20),
		Rate:          models.NewNumber(2000),
		Hammali:       models.NewNumber(50),
		AmountOnHold:  models.NewNumber(500),
		AdvanceAmount: models.NewNumber(1000),
	}

	got := Display(s.Calculate(rec))
	want := models.SettlementDisplay{
		Quantity:            "10.00",
		RoughCost:           "20000.00",
		TotalRoughCost:      "20500.00",
		EstimateWithoutHold: "20500.00",
		EstimateAfterHold:   "20000.00",
		BalanceAfterAdvance: "19000.00",
	}
	if got != want {
		t.Errorf("got %+v\nwant %+v", got, want)
	}
}

func TestBhartiIsInformationalPerQuintal(t *testing.T) {
	s := mustSettlement(t, models.FormulaPerQuintal)
	base := models.TransactionRecord{Bags: models.NewNumber(20), Rate: models.NewNumber(2000)}
	withBharti := base
	withBharti.Bharti = models.NewNumber(300)

	if s.Calculate(base) != s.Calculate(withBharti) {
		t.Error("bharti changed the per-quintal settlement")
	}
}

func TestFlatSettlement(t *testing.T) {
	s := mustSettlement(t, models.FormulaFlat)
	rec := models.TransactionRecord{
		Bags:          models.NewNumber(20),
		Rate:          models.NewNumber(100),
		Bharti:        models.NewNumber(30),
		Hammali:       models.NewNumber(70),
		AmountOnHold:  models.NewNumber(100),
		AdvanceAmount: models.NewNumber(200),
	}

	res := s.Calculate(rec)
	if res.Formula != models.FormulaFlat {
		t.Errorf("formula = %q", res.Formula)
	}
	if res.RoughCost != 2000 || res.TotalRoughCost != 1900 || res.EstimateAfterHold != 1800 || res.BalanceAfterAdvance != 1600 {
		t.Errorf("unexpected flat result %+v", res)
	}
}

func TestBlankRecordSettlesToZero(t *testing.T) {
	for _, f := range []models.Formula{models.FormulaPerQuintal, models.FormulaFlat} {
		got := mustSettlement(t, f).Respond(models.TransactionRecord{}).Display
		for _, v := range []string{got.Quantity, got.RoughCost, got.TotalRoughCost, got.EstimateWithoutHold, got.EstimateAfterHold, got.BalanceAfterAdvance} {
			if v != "0.00" {
				t.Errorf("%s: blank record gave %+v", f, got)
				break
			}
		}
	}
}

func TestHoldGreaterThanTotalGoesNegative(t *testing.T) {
	s := mustSettlement(t, models.FormulaPerQuintal)
	rec := models.TransactionRecord{
		Bags:         models.NewNumber(2),
		Rate:         models.NewNumber(100),
		AmountOnHold: models.NewNumber(500),
	}

	got := Display(s.Calculate(rec))
	if got.EstimateAfterHold != "-400.00" || got.BalanceAfterAdvance != "-400.00" {
		t.Errorf("expected unclamped negatives, got %+v", got)
	}
}

func TestOverflowNeverReachesDisplay(t *testing.T) {
	s := mustSettlement(t, models.FormulaPerQuintal)
	rec := models.TransactionRecord{
		Bags: models.NewNumber(math.MaxFloat64),
		Rate: models.NewNumber(math.MaxFloat64),
	}

	res := s.Calculate(rec)
	if math.IsInf(res.RoughCost, 0) || math.IsNaN(res.RoughCost) {
		t.Errorf("rough cost not finite: %v", res.RoughCost)
	}
	_ = Display(res)
}

func TestFormatAmount(t *testing.T) {
	tests := map[float64]string{
		0:       "0.00",
		10:      "10.00",
		2.005:   "2.01",
		1234.5:  "1234.50",
		-0.5:    "-0.50",
		1.0 / 3: "0.33",
	}
	for in, want := range tests {
		if got := FormatAmount(in); got != want {
			t.Errorf("FormatAmount(%v) = %q, want %q", in, got, want)
		}
	}
}

// Ties are taken from the shortest decimal form of the float and rounded
// half away from zero, so 1.005 is 1.01 even though its binary value is
// slightly below the tie.
func TestFormatAmountRoundsDecimalTies(t *testing.T) {
	tests := map[float64]string{
		1.005:  "1.01",
		2.675:  "2.68",
		-1.005: "-1.01",
		0.125:  "0.13",
	}
	for in, want := range tests {
		if got := FormatAmount(in); got != want {
			t.Errorf("FormatAmount(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestUnknownFormula(t *testing.T) {
	if _, err := NewSettlementService("combined"); err == nil {
		t.Error("expected an error for an unknown formula")
	}
}
