package calculatecreditscore

import (
	"encoding/json"
	"fmt"

	"credit-eligibility-workers/internal/common/errors"
	"credit-eligibility-workers/internal/scoring"
)

// Input is decoded by hand because applicant fields arrive loosely typed
// from forms and imports. The applicant may be nested under "applicant" or
// sit at the top level of the job variables.
type Input struct {
	BeneficiaryID  string
	ForceRecompute bool
	Applicant      scoring.Applicant
}

type Output struct {
	BeneficiaryID    string            `json:"beneficiaryId,omitempty"`
	Score            int               `json:"score"`
	RiskBand         string            `json:"riskBand"`
	EligibilityLabel string            `json:"eligibilityLabel"`
	Breakdown        scoring.Breakdown `json:"breakdown"`
	ModelUsed        string            `json:"modelUsed"`
	ScoredAt         string            `json:"scoredAt"` // ISO 8601
	Cached           bool              `json:"cached"`
}

// cacheEntry ties a cached output to the applicant data it was computed from.
type cacheEntry struct {
	Fingerprint string `json:"fingerprint"`
	Output      Output `json:"output"`
}

func ParseInput(variables string) (*Input, error) {
	var vars map[string]interface{}
	if err := json.Unmarshal([]byte(variables), &vars); err != nil {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("parse input: %v", err))
	}

	input := &Input{
		BeneficiaryID:  idField(vars, "beneficiaryId", "beneficiary_id"),
		ForceRecompute: scoring.ParseBool(vars["forceRecompute"]),
	}

	applicant := vars
	if nested, ok := vars["applicant"].(map[string]interface{}); ok {
		applicant = nested
	}
	input.Applicant = scoring.ParseApplicant(applicant)
	return input, nil
}

func idField(vars map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		switch v := vars[k].(type) {
		case string:
			return v
		case float64:
			return fmt.Sprintf("%.0f", v)
		}
	}
	return ""
}
