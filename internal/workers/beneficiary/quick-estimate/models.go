package quickestimate

import (
	"encoding/json"
	"fmt"

	"credit-eligibility-workers/internal/common/errors"
	"credit-eligibility-workers/internal/scoring"
)

type Input struct {
	LoanAmount      float64 `json:"loanAmount"`
	TenureMonths    int     `json:"tenureMonths"`
	ElectricityBill float64 `json:"electricityBill"`
	MobileBill      float64 `json:"mobileBill"`
}

type Output struct {
	scoring.Estimate
	Indicative bool `json:"indicative"`
}

func ParseInput(variables string) (*Input, error) {
	var vars map[string]interface{}
	if err := json.Unmarshal([]byte(variables), &vars); err != nil {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("parse input: %v", err))
	}

	input := &Input{}
	var tenure float64
	fields := []struct {
		key  string
		dest *float64
	}{
		{"loanAmount", &input.LoanAmount},
		{"tenureMonths", &tenure},
		{"electricityBill", &input.ElectricityBill},
		{"mobileBill", &input.MobileBill},
	}
	for _, f := range fields {
		raw, ok := vars[f.key]
		if !ok || raw == nil {
			continue
		}
		v, err := scoring.ParseFloat(raw)
		if err != nil {
			return nil, errors.NewInvalidInputError(fmt.Sprintf("%s: %v", f.key, err))
		}
		*f.dest = v
	}
	input.TenureMonths = int(tenure)
	return input, nil
}
