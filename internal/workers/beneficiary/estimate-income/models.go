package estimateincome

import (
	"encoding/json"
	"fmt"

	"credit-eligibility-workers/internal/common/errors"
	"credit-eligibility-workers/internal/scoring"
)

type Input struct {
	BeneficiaryID         string        `json:"beneficiaryId,omitempty"`
	Bills                 scoring.Bills `json:"bills"`
	DeclaredMonthlyIncome float64       `json:"declaredMonthlyIncome"`
}

type Output struct {
	EstimatedMonthlyIncome float64             `json:"estimatedMonthlyIncome"`
	IncomeCategory         string              `json:"incomeCategory"`
	UtilityBand            scoring.UtilityBand `json:"utilityBand"`
	ScoreReset             bool                `json:"scoreReset"`
}

// ParseInput reads bill amounts from either the top level or a nested
// "bills" object. Amounts may arrive as form strings ("1,200").
func ParseInput(variables string) (*Input, error) {
	var vars map[string]interface{}
	if err := json.Unmarshal([]byte(variables), &vars); err != nil {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("parse input: %v", err))
	}

	input := &Input{}
	if id, ok := vars["beneficiaryId"].(string); ok {
		input.BeneficiaryID = id
	}

	source := vars
	if nested, ok := vars["bills"].(map[string]interface{}); ok {
		source = nested
	}

	fields := []struct {
		key  string
		dest *float64
		from map[string]interface{}
	}{
		{"electricityBill", &input.Bills.Electricity, source},
		{"mobileBill", &input.Bills.Mobile, source},
		{"gasBill", &input.Bills.Gas, source},
		{"declaredMonthlyIncome", &input.DeclaredMonthlyIncome, vars},
	}
	for _, f := range fields {
		raw, ok := f.from[f.key]
		if !ok || raw == nil {
			continue
		}
		v, err := scoring.ParseFloat(raw)
		if err != nil {
			return nil, errors.NewInvalidInputError(fmt.Sprintf("%s: %v", f.key, err))
		}
		*f.dest = v
	}
	return input, nil
}
