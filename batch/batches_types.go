package batch

// CreateInput aggregates completed harvest requests into one batch.
type CreateInput struct {
	RequestIDs   []int64 `json:"requestIds"`
	QualityGrade string  `json:"qualityGrade"`
	TargetMarket string  `json:"targetMarket"`
}
