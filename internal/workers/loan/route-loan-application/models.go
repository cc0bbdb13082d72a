package routeloanapplication

type Input struct {
	ApplicationID    string  `json:"applicationId,omitempty"`
	BeneficiaryID    string  `json:"beneficiaryId"`
	LoanAmount       float64 `json:"loanAmount"`
	EligibilityLabel string  `json:"eligibilityLabel"`
	RiskBand         string  `json:"riskBand,omitempty"`
}

type Output struct {
	Route            string `json:"route"`
	Priority         string `json:"priority"`
	QueuePosition    int64  `json:"queuePosition"`
	OfficerQueueBusy bool   `json:"officerQueueBusy"`
}

const (
	RouteAutoApprove   = "auto_approve"
	RouteOfficerReview = "officer_review"
	RouteReject        = "reject"
)

const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

type queueEntry struct {
	ApplicationID string  `json:"applicationId,omitempty"`
	BeneficiaryID string  `json:"beneficiaryId"`
	LoanAmount    float64 `json:"loanAmount"`
	Priority      string  `json:"priority"`
	QueuedAt      string  `json:"queuedAt"`
}
