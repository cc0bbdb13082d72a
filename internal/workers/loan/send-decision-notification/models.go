package senddecisionnotification

type Input struct {
	ApplicationID     string  `json:"applicationId"`
	BeneficiaryID     string  `json:"beneficiaryId"`
	ApplicationStatus string  `json:"applicationStatus"`
	LoanAmount        float64 `json:"loanAmount"`
	TenureMonths      int     `json:"tenureMonths"`
	Email             string  `json:"email"`
	Phone             string  `json:"phone"`
	Notes             string  `json:"decisionNotes,omitempty"`
}

type Output struct {
	NotificationID string `json:"notificationId"`
	Status         string `json:"notificationStatus"`
	EmailStatus    string `json:"emailStatus"`
	SMSStatus      string `json:"smsStatus"`
	EmailMessageID string `json:"emailMessageId,omitempty"`
	SMSMessageID   string `json:"smsMessageId,omitempty"`
	SentAt         string `json:"sentAt"`
}

// Statuses
const (
	StatusSent     = "sent"
	StatusFailed   = "failed"
	StatusDisabled = "disabled"
	StatusSkipped  = "skipped"
)

const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)
