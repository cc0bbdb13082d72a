package recordscoreresult

import "credit-eligibility-workers/internal/scoring"

type Input struct {
	BeneficiaryID    string            `json:"beneficiaryId"`
	Score            int               `json:"score"`
	RiskBand         string            `json:"riskBand,omitempty"`
	EligibilityLabel string            `json:"eligibilityLabel,omitempty"`
	Breakdown        scoring.Breakdown `json:"breakdown"`
	ModelUsed        string            `json:"modelUsed,omitempty"`
}

type Output struct {
	ScoreLogID string `json:"scoreLogId"`
	RecordedAt string `json:"recordedAt"` // ISO 8601
	Indexed    bool   `json:"scoreIndexed"`
}

// ScoreDocument is the search index representation of a beneficiary's
// latest score.
type ScoreDocument struct {
	BeneficiaryID    string            `json:"beneficiaryId"`
	Score            int               `json:"score"`
	RiskBand         string            `json:"riskBand"`
	EligibilityLabel string            `json:"eligibilityLabel"`
	Breakdown        scoring.Breakdown `json:"breakdown"`
	ModelUsed        string            `json:"modelUsed"`
	ScoreLogID       string            `json:"scoreLogId"`
	ScoredAt         string            `json:"scoredAt"`
}

// IndexMapping keeps the band and label fields aggregatable.
var IndexMapping = map[string]interface{}{
	"properties": map[string]interface{}{
		"beneficiaryId":    map[string]string{"type": "keyword"},
		"score":            map[string]string{"type": "integer"},
		"riskBand":         map[string]string{"type": "keyword"},
		"eligibilityLabel": map[string]string{"type": "keyword"},
		"modelUsed":        map[string]string{"type": "keyword"},
		"scoreLogId":       map[string]string{"type": "keyword"},
		"scoredAt":         map[string]string{"type": "date"},
		"breakdown":        map[string]string{"type": "object"},
	},
}
