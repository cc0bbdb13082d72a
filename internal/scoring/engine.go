// internal/scoring/engine.go
package scoring

import (
	"math"
	"strings"
)

// RiskBand is the categorical risk level derived from the credit score.
type RiskBand string

const (
	RiskVeryLow  RiskBand = "Very_Low_Risk"
	RiskLow      RiskBand = "Low_Risk"
	RiskMedium   RiskBand = "Medium_Risk"
	RiskHigh     RiskBand = "High_Risk"
	RiskVeryHigh RiskBand = "Very_High_Risk"
)

// EligibilityLabel tells the loan workflow how an applicant may proceed.
type EligibilityLabel string

const (
	EligibleAuto   EligibilityLabel = "Eligible_Auto"
	EligibleManual EligibilityLabel = "Eligible_Manual"
	NotEligible    EligibilityLabel = "Not_Eligible"
)

const (
	MinScore = 300
	MaxScore = 900

	// ModelName identifies this rule set in persisted score logs.
	ModelName = "rule-based-v1"
)

// Block weights; they sum to 1.
const (
	weightRepayment = 0.35
	weightDebt      = 0.20
	weightIncome    = 0.20
	weightBanking   = 0.15
	weightFlags     = 0.10
)

// Breakdown holds the five block scores, each in [0,100].
type Breakdown struct {
	Repayment int `json:"repayment"`
	Debt      int `json:"debt"`
	Income    int `json:"income"`
	Banking   int `json:"banking"`
	Flags     int `json:"flags"`
}

type Result struct {
	Score            int              `json:"score"`
	RiskBand         RiskBand         `json:"riskBand"`
	EligibilityLabel EligibilityLabel `json:"eligibilityLabel"`
	Breakdown        Breakdown        `json:"breakdown"`
}

// Compute scores an applicant on the 300-900 scale. It never fails:
// missing attributes fall through to their lowest-risk-neutral branch.
func Compute(a Applicant) Result {
	b := Breakdown{
		Repayment: RepaymentBlock(a),
		Debt:      DebtBlock(a),
		Income:    IncomeBlock(a),
		Banking:   BankingBlock(a),
		Flags:     FlagsBlock(a),
	}

	score := ScaleScore(b)
	band := BandFor(score)

	return Result{
		Score:            score,
		RiskBand:         band,
		EligibilityLabel: LabelFor(band),
		Breakdown:        b,
	}
}

// RepaymentBlock combines repayment behaviour (max 60) with the bureau score (max 40).
func RepaymentBlock(a Applicant) int {
	return clamp(repaymentPart(a)+cibilPart(a.CIBILScore), 0, 100)
}

func repaymentPart(a Applicant) int {
	if a.DefaultFlag {
		return 0
	}

	score := 10
	if a.OnTimePaymentRatio12m >= 0.95 {
		score = 40
	} else if a.OnTimePaymentRatio12m >= 0.80 {
		score = 25
	}

	// Days past due penalty
	if a.MaxDPD > 90 {
		score -= 25
	} else if a.MaxDPD > 30 {
		score -= 15
	} else if a.MaxDPD > 0 {
		score -= 5
	}

	if a.MissedEMICount12m >= 3 {
		score -= 10
	}

	return clamp(score, 0, 60)
}

func cibilPart(cibil *int) int {
	if cibil == nil {
		return 0
	}
	switch {
	case *cibil >= 780:
		return 40
	case *cibil >= 720:
		return 30
	case *cibil >= 650:
		return 20
	case *cibil >= 600:
		return 10
	default:
		return 0
	}
}

// DebtBlock starts at 100 and deducts for leverage and loan count.
func DebtBlock(a Applicant) int {
	score := 100

	if a.DebtToIncomeRatio > 0.60 {
		score -= 50
	} else if a.DebtToIncomeRatio > 0.40 {
		score -= 30
	} else if a.DebtToIncomeRatio > 0.25 {
		score -= 15
	}

	if a.NumberOfActiveLoans > 5 {
		score -= 30
	} else if a.NumberOfActiveLoans > 3 {
		score -= 20
	} else if a.NumberOfActiveLoans > 1 {
		score -= 10
	}

	return clamp(score, 0, 100)
}

// IncomeBlock scores income level (max 60) and employment stability (max 40).
func IncomeBlock(a Applicant) int {
	income := a.Income()

	inc := 60
	switch {
	case income < 8000:
		inc = 10
	case income < 15000:
		inc = 25
	case income < 30000:
		inc = 40
	case income < 60000:
		inc = 50
	}

	return clamp(inc+stabilityPart(a), 0, 100)
}

func stabilityPart(a Applicant) int {
	emp := strings.ToLower(strings.TrimSpace(a.EmploymentType))
	switch {
	case (emp == "salaried" || emp == "government") && a.WorkConsistencyDays >= 25:
		return 40
	case (emp == "self-employed" || emp == "business") && a.YearsInBusiness >= 3:
		return 30
	case a.SeasonalBusinessFlag || a.WorkConsistencyDays < 20:
		return 15
	default:
		return 20
	}
}

// BankingBlock scores liquidity (max 40), utility discipline (max 40) and
// digital activity (max 20).
func BankingBlock(a Applicant) int {
	denom := a.Income()
	if denom == 0 {
		denom = 1
	}
	liquidity := a.AverageBankBalance / denom

	liq := 10
	switch {
	case liquidity >= 1.0:
		liq = 40
	case liquidity >= 0.5:
		liq = 30
	case liquidity >= 0.2:
		liq = 20
	}

	util := 10
	switch {
	case a.UtilityBillsOnTimeRatio >= 0.9:
		util = 40
	case a.UtilityBillsOnTimeRatio >= 0.7:
		util = 25
	}

	digi := 5
	switch {
	case a.DigitalPaymentsFrequency >= 15 && a.TransactionsCount >= 20:
		digi = 20
	case a.DigitalPaymentsFrequency >= 5:
		digi = 10
	}

	return clamp(liq+util+digi, 0, 100)
}

// FlagsBlock zeroes out on fraud and deducts for recent hard inquiries.
func FlagsBlock(a Applicant) int {
	if a.FraudFlag {
		return 0
	}

	score := 100
	if a.HardInquiriesLast6Months > 4 {
		score -= 40
	} else if a.HardInquiriesLast6Months > 1 {
		score -= 20
	}
	return clamp(score, 0, 100)
}

// ScaleScore applies the block weights and maps the 0-100 composite onto
// 300-900. Halves round to even.
func ScaleScore(b Breakdown) int {
	overall := weightRepayment*float64(b.Repayment) +
		weightDebt*float64(b.Debt) +
		weightIncome*float64(b.Income) +
		weightBanking*float64(b.Banking) +
		weightFlags*float64(b.Flags)

	score := int(math.RoundToEven(MinScore + (overall/100.0)*(MaxScore-MinScore)))
	return clamp(score, MinScore, MaxScore)
}

func BandFor(score int) RiskBand {
	switch {
	case score >= 800:
		return RiskVeryLow
	case score >= 750:
		return RiskLow
	case score >= 700:
		return RiskMedium
	case score >= 650:
		return RiskHigh
	default:
		return RiskVeryHigh
	}
}

func LabelFor(band RiskBand) EligibilityLabel {
	switch band {
	case RiskVeryLow, RiskLow:
		return EligibleAuto
	case RiskMedium:
		return EligibleManual
	default:
		return NotEligible
	}
}

func clamp(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
