// internal/scoring/heuristics.go
package scoring

// CaseType groups beneficiaries by loan history before detailed scoring.
type CaseType string

const (
	CaseNewToCredit   CaseType = "CASE1"
	CaseFewLoans      CaseType = "CASE2"
	CaseManyLoans     CaseType = "CASE3"
	CaseDelaysNoLoans CaseType = "CASE4"
	CaseUnclassified  CaseType = ""
)

// ClassifyCase assigns a case type from the number of loans and EMI delays.
// Rules are checked in order; the first match wins.
func ClassifyCase(numberOfLoans, emiDueDelays int) CaseType {
	switch {
	case numberOfLoans == 0 && emiDueDelays == 0:
		return CaseNewToCredit
	case numberOfLoans == 0 && emiDueDelays > 0:
		return CaseDelaysNoLoans
	case numberOfLoans <= 3 && emiDueDelays <= 2:
		return CaseFewLoans
	case numberOfLoans > 3:
		return CaseManyLoans
	default:
		return CaseUnclassified
	}
}

var baseDetailFields = []string{
	"electricityUnits", "electricityBill", "paymentsRegularity",
	"averageMobileBill", "gasBill", "gasFrequency",
	"employmentType", "workingDaysPerMonth", "digitalPaymentFrequency",
	"averageBankBalance", "cashInflow", "cashOutflow",
	"transactionsPerMonth",
}

var caseDetailFields = map[CaseType][]string{
	CaseNewToCredit: nil,
	CaseFewLoans:    {"last6MonthsAvgBankBalance", "numberOfActiveLoans"},
	CaseManyLoans: {
		"last6MonthsAvgBankBalance", "numberOfActiveLoans", "totalPropertiesValue",
		"wealthIndex", "anyBusiness", "insuranceCoverage", "luxuryExpenditures",
		"outstandingBankBalance", "loanPurpose", "loanHistoryCibil",
	},
	CaseDelaysNoLoans: {"last6MonthsAvgBankBalance", "numberOfActiveLoans", "reasonsForDelay"},
}

// DetailFields lists the profile fields collected for a case type. An
// unclassified case has none.
func DetailFields(c CaseType) []string {
	extra, ok := caseDetailFields[c]
	if !ok {
		return nil
	}
	fields := make([]string, 0, len(baseDetailFields)+len(extra))
	fields = append(fields, baseDetailFields...)
	return append(fields, extra...)
}

// Bills are the monthly utility amounts reported for a beneficiary.
type Bills struct {
	Electricity float64 `json:"electricityBill"`
	Mobile      float64 `json:"mobileBill"`
	Gas         float64 `json:"gasBill"`
}

func (b Bills) Total() float64 {
	return b.Electricity + b.Mobile + b.Gas
}

// IncomeFromBills maps total monthly bills to a coarse income figure.
func IncomeFromBills(total float64) float64 {
	switch {
	case total <= 0:
		return 0
	case total <= 1000:
		return 6000
	case total <= 2000:
		return 10000
	case total <= 4000:
		return 16000
	default:
		return 25000
	}
}

// EstimateIncome returns the larger of the declared income and the
// bill-derived income. Zero means no estimate is possible.
func EstimateIncome(bills Bills, declaredMonthlyIncome float64) float64 {
	fromBills := IncomeFromBills(bills.Total())
	if declaredMonthlyIncome > fromBills {
		return declaredMonthlyIncome
	}
	return fromBills
}

// IncomeCategory labels a monthly income. Zero income has no category.
func IncomeCategory(income float64) string {
	switch {
	case income == 0:
		return ""
	case income < 10000:
		return "very low"
	case income < 25000:
		return "low"
	case income < 40000:
		return "lower medium"
	case income < 75000:
		return "medium"
	case income <= 100000:
		return "upper medium"
	default:
		return "high"
	}
}

// UtilityBand is the income band implied by utility spending points.
type UtilityBand struct {
	Points int     `json:"points"`
	Band   string  `json:"band"`
	Income float64 `json:"income"`
}

// UtilityIncomeBand scores each bill and maps the total points onto an
// income band with a representative monthly income.
func UtilityIncomeBand(bills Bills) UtilityBand {
	ele := 30
	if bills.Electricity <= 300 {
		ele = 5
	} else if bills.Electricity <= 600 {
		ele = 15
	}

	mob := 25
	if bills.Mobile <= 100 {
		mob = 5
	} else if bills.Mobile <= 200 {
		mob = 15
	}

	uti := 10
	if total := bills.Total(); total <= 200 {
		uti = 3
	} else if total <= 500 {
		uti = 7
	}

	points := ele + mob + uti
	switch {
	case points <= 20:
		return UtilityBand{Points: points, Band: "< 10,000", Income: 8000}
	case points <= 40:
		return UtilityBand{Points: points, Band: "10,000 - 25,000", Income: 18000}
	case points <= 60:
		return UtilityBand{Points: points, Band: "25,000 - 40,000", Income: 32000}
	case points <= 80:
		return UtilityBand{Points: points, Band: "40,000 - 75,000", Income: 55000}
	default:
		return UtilityBand{Points: points, Band: "75,000 - 1,00,000", Income: 90000}
	}
}

// Estimate is an indicative score computed from a handful of loan form fields.
type Estimate struct {
	Score    int    `json:"estimatedScore"`
	RiskBand string `json:"riskBand"`
	NeedBand string `json:"needBand"`
}

// QuickEstimate gives a rough score before a full profile exists.
func QuickEstimate(loanAmount float64, tenureMonths int, electricityBill, mobileBill float64) Estimate {
	score := 600
	if loanAmount > 100000 {
		score -= 20
	}

	if tenureMonths >= 24 {
		score += 30
	} else if tenureMonths >= 12 {
		score += 15
	}

	bills := electricityBill + mobileBill
	if bills > 5000 {
		score += 40
	} else if bills > 2000 {
		score += 20
	}

	score = clamp(score, MinScore, MaxScore)

	est := Estimate{Score: score, RiskBand: "High Risk", NeedBand: "Low Need"}
	if score > 650 {
		est.RiskBand = "Low Risk"
	}
	if loanAmount > 50000 {
		est.NeedBand = "High Need"
	}
	return est
}
