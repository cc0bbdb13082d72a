// internal/scoring/applicant.go
package scoring

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Applicant is the financial and behavioural profile of a beneficiary.
// Every field is optional; the zero value stands for "not reported" and
// contributes a neutral or minimal amount to the score.
type Applicant struct {
	OnTimePaymentRatio12m float64 `json:"onTimePaymentRatio12m"`
	MaxDPD                int     `json:"maxDpd"`
	MissedEMICount12m     int     `json:"missedEmiCount12m"`
	DefaultFlag           bool    `json:"defaultFlag"`

	// CIBILScore is nil when no bureau score was reported.
	CIBILScore *int `json:"cibilScore,omitempty"`

	DebtToIncomeRatio   float64 `json:"debtToIncomeRatio"`
	NumberOfActiveLoans int     `json:"numberOfActiveLoans"`

	EstimatedMonthlyIncome float64 `json:"estimatedMonthlyIncome"`
	IncomeEstimate         float64 `json:"incomeEst"`

	AverageBankBalance       float64 `json:"averageBankBalance"`
	UtilityBillsOnTimeRatio  float64 `json:"utilityBillsOntimeRatio"`
	DigitalPaymentsFrequency int     `json:"digitalPaymentsFrequency"`
	TransactionsCount        int     `json:"transactionsCount"`

	FraudFlag                bool `json:"fraudFlag"`
	HardInquiriesLast6Months int  `json:"hardInquiriesLast6Months"`

	EmploymentType       string `json:"employmentType"`
	WorkConsistencyDays  int    `json:"workConsistencyDays"`
	YearsInBusiness      int    `json:"yearsInBusiness"`
	SeasonalBusinessFlag bool   `json:"seasonalBusinessFlag"`
}

// Income returns the declared monthly income, falling back to the
// derived income estimate when nothing was declared.
func (a Applicant) Income() float64 {
	if a.EstimatedMonthlyIncome != 0 {
		return a.EstimatedMonthlyIncome
	}
	return a.IncomeEstimate
}

// ParseApplicant builds an Applicant from loosely typed workflow variables.
// Keys are accepted in camelCase or snake_case. Values that cannot be
// interpreted are treated as missing.
func ParseApplicant(data map[string]interface{}) Applicant {
	if data == nil {
		return Applicant{}
	}
	a := Applicant{
		OnTimePaymentRatio12m:    floatField(data, "onTimePaymentRatio12m", "on_time_payment_ratio_12m"),
		MaxDPD:                   intField(data, "maxDpd", "max_dpd"),
		MissedEMICount12m:        intField(data, "missedEmiCount12m", "missed_emi_count_12m"),
		DefaultFlag:              boolField(data, "defaultFlag", "default_flag"),
		DebtToIncomeRatio:        floatField(data, "debtToIncomeRatio", "debt_to_income_ratio"),
		NumberOfActiveLoans:      intField(data, "numberOfActiveLoans", "number_of_active_loans"),
		EstimatedMonthlyIncome:   floatField(data, "estimatedMonthlyIncome", "estimated_monthly_income"),
		IncomeEstimate:           floatField(data, "incomeEst", "income_est"),
		AverageBankBalance:       floatField(data, "averageBankBalance", "average_bank_balance"),
		UtilityBillsOnTimeRatio:  floatField(data, "utilityBillsOntimeRatio", "utility_bills_ontime_ratio"),
		DigitalPaymentsFrequency: intField(data, "digitalPaymentsFrequency", "digital_payments_frequency"),
		TransactionsCount:        intField(data, "transactionsCount", "transactions_count"),
		FraudFlag:                boolField(data, "fraudFlag", "fraud_flag"),
		HardInquiriesLast6Months: intField(data, "hardInquiriesLast6Months", "hard_inquiries_last_6_months"),
		EmploymentType:           stringField(data, "employmentType", "employment_type"),
		WorkConsistencyDays:      intField(data, "workConsistencyDays", "work_consistency_days"),
		YearsInBusiness:          intField(data, "yearsInBusiness", "years_in_business"),
		SeasonalBusinessFlag:     boolField(data, "seasonalBusinessFlag", "seasonal_business_flag"),
	}
	if raw, ok := lookup(data, "cibilScore", "cibil_score"); ok {
		if v, err := ParseFloat(raw); err == nil {
			if cibil, ok := toInt(v); ok {
				a.CIBILScore = &cibil
			}
		}
	}
	return a
}

func lookup(data map[string]interface{}, keys ...string) (interface{}, bool) {
	for _, k := range keys {
		if v, ok := data[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func floatField(data map[string]interface{}, keys ...string) float64 {
	raw, ok := lookup(data, keys...)
	if !ok {
		return 0
	}
	v, err := ParseFloat(raw)
	if err != nil {
		return 0
	}
	return v
}

func intField(data map[string]interface{}, keys ...string) int {
	n, ok := toInt(floatField(data, keys...))
	if !ok {
		return 0
	}
	return n
}

// toInt truncates v, rejecting values an int cannot hold.
func toInt(v float64) (int, bool) {
	if v >= math.MaxInt || v <= math.MinInt {
		return 0, false
	}
	return int(v), true
}

func boolField(data map[string]interface{}, keys ...string) bool {
	raw, ok := lookup(data, keys...)
	if !ok {
		return false
	}
	return ParseBool(raw)
}

func stringField(data map[string]interface{}, keys ...string) string {
	raw, ok := lookup(data, keys...)
	if !ok {
		return ""
	}
	if s, ok := raw.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", raw)
}

// ParseFloat accepts JSON numbers, Go integer types and numeric strings
// with optional thousands separators ("1,00,000"). NaN and infinities are
// rejected.
func ParseFloat(raw interface{}) (float64, error) {
	v, err := parseNumber(raw)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("not a finite number: %v", raw)
	}
	return v, nil
}

func parseNumber(raw interface{}) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		cleaned := strings.TrimSpace(strings.ReplaceAll(v, ",", ""))
		if cleaned == "" {
			return 0, fmt.Errorf("empty number")
		}
		return strconv.ParseFloat(cleaned, 64)
	default:
		return 0, fmt.Errorf("not a number: %T", raw)
	}
}

// ParseBool treats true, "true", "yes", "y" and "1" as true.
func ParseBool(raw interface{}) bool {
	switch v := raw.(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes", "y", "1":
			return true
		}
		return false
	case float64:
		return v != 0
	case int:
		return v != 0
	default:
		return false
	}
}
