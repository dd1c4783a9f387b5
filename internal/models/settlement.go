package models

// Formula names the settlement arithmetic a deployment uses
type Formula string

const (
	// FormulaPerQuintal prices rate and hammali per quintal (bags / 2)
	FormulaPerQuintal Formula = "per_quintal"
	// FormulaFlat prices bags x rate and subtracts bharti and hammali as flat amounts
	FormulaFlat Formula = "flat"
)

// SettlementResult holds the derived figures at full precision
type SettlementResult struct {
	Formula             Formula `json:"formula"`
	Quantity            float64 `json:"quantity_qtl"`
	RoughCost           float64 `json:"rough_cost"`
	TotalRoughCost      float64 `json:"total_rough_cost"`
	EstimateWithoutHold float64 `json:"estimate_without_hold"`
	EstimateAfterHold   float64 `json:"estimate_after_hold"`
	BalanceAfterAdvance float64 `json:"balance_after_advance"`
}

// SettlementDisplay is the same result rounded to two decimals for display
type SettlementDisplay struct {
	Quantity            string `json:"quantity_qtl"`
	RoughCost           string `json:"rough_cost"`
	TotalRoughCost      string `json:"total_rough_cost"`
	EstimateWithoutHold string `json:"estimate_without_hold"`
	EstimateAfterHold   string `json:"estimate_after_hold"`
	BalanceAfterAdvance string `json:"balance_after_advance"`
}

// SettlementResponse is returned by the settlement endpoint and the live channel
type SettlementResponse struct {
	Result  SettlementResult  `json:"result"`
	Display SettlementDisplay `json:"display"`
}
