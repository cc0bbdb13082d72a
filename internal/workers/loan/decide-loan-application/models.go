package decideloanapplication

type Input struct {
	ApplicationID string `json:"applicationId"`
	Decision      string `json:"decision"`
	OfficerID     string `json:"officerId"`
	Notes         string `json:"decisionNotes"`
}

// Output carries the applicant's contact details so the notification task
// does not have to read the application again.
type Output struct {
	ApplicationID     string  `json:"applicationId"`
	ApplicationStatus string  `json:"applicationStatus"`
	Decision          string  `json:"decision"`
	DecidedAt         string  `json:"decidedAt"`
	LoanHistoryID     string  `json:"loanHistoryId,omitempty"`
	BeneficiaryID     string  `json:"beneficiaryId"`
	LoanAmount        float64 `json:"loanAmount"`
	TenureMonths      int     `json:"tenureMonths"`
	Phone             string  `json:"phone"`
	Email             string  `json:"email"`
}

const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
)

const (
	StatusPending  = "PENDING"
	StatusApproved = "APPROVED"
	StatusRejected = "REJECTED"
)

// RepaymentPending is the repayment status of a newly approved loan.
const RepaymentPending = "Pending"

type application struct {
	beneficiaryID string
	amount        float64
	tenure        int
	phone         string
	email         string
	status        string
}
