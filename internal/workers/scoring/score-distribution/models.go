package scoredistribution

import "credit-eligibility-workers/internal/scoring"

type Input struct {
	// Since limits the distribution to scores recorded at or after this
	// RFC 3339 time. Empty means all scores.
	Since string `json:"since,omitempty"`
}

type Output struct {
	Total             int              `json:"total"`
	AverageScore      float64          `json:"averageScore"`
	Buckets           []scoring.Bucket `json:"buckets"`
	RiskBands         map[string]int   `json:"riskBands"`
	EligibilityLabels map[string]int   `json:"eligibilityLabels"`
	Source            string           `json:"source"`
	GeneratedAt       string           `json:"generatedAt"`
}

const (
	SourceSearchIndex = "elasticsearch"
	SourceDatabase    = "postgres"
)

type termsAggregation struct {
	Buckets []struct {
		Key      string `json:"key"`
		DocCount int    `json:"doc_count"`
	} `json:"buckets"`
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
	} `json:"hits"`
	Aggregations struct {
		ScoreRanges struct {
			Buckets []struct {
				Key      string `json:"key"`
				DocCount int    `json:"doc_count"`
			} `json:"buckets"`
		} `json:"score_ranges"`
		AverageScore struct {
			Value *float64 `json:"value"`
		} `json:"avg_score"`
		RiskBands         termsAggregation `json:"risk_bands"`
		EligibilityLabels termsAggregation `json:"eligibility_labels"`
	} `json:"aggregations"`
}
