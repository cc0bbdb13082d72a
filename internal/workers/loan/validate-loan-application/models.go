package validateloanapplication

import (
	"credit-eligibility-workers/internal/common/validation"
)

type Input struct {
	BeneficiaryID string  `json:"beneficiaryId"`
	LoanAmount    float64 `json:"loanAmount"`
	TenureMonths  int     `json:"tenureMonths"`
	Phone         string  `json:"phone"`
	Email         string  `json:"email"`
}

type Output struct {
	Valid            bool                         `json:"valid"`
	Errors           []validation.ValidationError `json:"errors"`
	MissingDocuments []string                     `json:"missingDocuments"`
}

// Error codes reported per field.
const (
	CodeInvalidFormat   = "INVALID_FORMAT"
	CodeMissingDocument = "MISSING_DOCUMENT"
	CodeInvalidDocument = "INVALID_DOCUMENT_NUMBER"
)

var loanFormSchema = validation.MustCompileSchema(`{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["beneficiaryId", "loanAmount", "tenureMonths", "phone", "email"],
	"properties": {
		"beneficiaryId": {"type": "string", "minLength": 1, "maxLength": 32},
		"loanAmount":    {"type": "number", "exclusiveMinimum": 0},
		"tenureMonths":  {"type": "integer", "minimum": 1, "maximum": 360},
		"phone":         {"type": "string", "minLength": 1},
		"email":         {"type": "string", "minLength": 1, "maxLength": 254}
	}
}`)

type document struct {
	docType   string
	number    string
	imagePath string
}
