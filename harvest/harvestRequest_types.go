package harvest

import "time"

// SubmitInput creates a new request. Submission is the safety gate: an
// unsafe tree rejects the request synchronously, so a pending request
// is always one whose expected harvest date passed the PHI check.
type SubmitInput struct {
	TreeID              int64     `json:"treeId"`
	ExpectedHarvestDate time.Time `json:"expectedHarvestDate"`
	EstimatedQuantity   float64   `json:"estimatedQuantity"`
}

// CheckInInput records the weighed result of a harvest. The three grade
// buckets must sum to the actual quantity to within 0.01 kg.
type CheckInInput struct {
	ActualQuantity float64 `json:"actualQuantity"`
	GradeA         float64 `json:"gradeA"`
	GradeB         float64 `json:"gradeB"`
	GradeC         float64 `json:"gradeC"`
}
