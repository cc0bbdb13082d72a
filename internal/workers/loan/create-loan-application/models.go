package createloanapplication

type Input struct {
	BeneficiaryID string  `json:"beneficiaryId"`
	LoanAmount    float64 `json:"loanAmount"`
	TenureMonths  int     `json:"tenureMonths"`
	Phone         string  `json:"phone"`
	Email         string  `json:"email"`
	Route         string  `json:"route,omitempty"`
}

type Output struct {
	ApplicationID     string `json:"applicationId"`
	ApplicationStatus string `json:"applicationStatus"`
	CreatedAt         string `json:"createdAt"`
}

const StatusPending = "PENDING"
