package classifycasetype

type Input struct {
	BeneficiaryID string `json:"beneficiaryId,omitempty"`
	NumberOfLoans int    `json:"numberOfLoans"`
	EmiDueDelays  int    `json:"emiDueDelays"`
}

type Output struct {
	CaseType     string   `json:"caseType"`
	Category     string   `json:"category"`
	Classified   bool     `json:"classified"`
	DetailFields []string `json:"detailFields"`
}

const CategoryUncategorized = "Uncategorized"
