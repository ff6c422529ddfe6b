package trace

import "time"

// Record is the assembled provenance view for one batch. It is derived
// on every query and never persisted.
type Record struct {
	Batch     BatchInfo       `json:"batch"`
	Members   []MemberInfo    `json:"members"`
	Timeline  []TimelineEntry `json:"timeline"`
	QR        *QRInfo         `json:"qr,omitempty"`
	QueriedAt time.Time       `json:"queriedAt"`
}

type BatchInfo struct {
	Code         string    `json:"code"`
	QualityGrade string    `json:"qualityGrade"`
	TargetMarket string    `json:"targetMarket,omitempty"`
	TotalWeight  float64   `json:"totalWeight"`
	IsSafe       bool      `json:"isSafe"`
	CreatedAt    time.Time `json:"createdAt"`
}

type MemberInfo struct {
	RequestID      int64      `json:"requestId"`
	ActualQuantity float64    `json:"actualQuantity"`
	GradeA         float64    `json:"gradeA"`
	GradeB         float64    `json:"gradeB"`
	GradeC         float64    `json:"gradeC"`
	CheckedInAt    *time.Time `json:"checkedInAt,omitempty"`
	Tree           TreeInfo   `json:"tree"`
}

type TreeInfo struct {
	Code         string `json:"code"`
	Variety      string `json:"variety"`
	PlantingYear int    `json:"plantingYear,omitempty"`
	FarmCode     string `json:"farmCode"`
	FarmName     string `json:"farmName"`
	FarmLocation string `json:"farmLocation,omitempty"`
	FarmerName   string `json:"farmerName"`
	FarmerRegion string `json:"farmerRegion,omitempty"`
}

// TimelineEntry is one farming activity, labeled for consumers.
// Chemical and dosage are present on pesticide entries only.
type TimelineEntry struct {
	TreeCode string    `json:"treeCode"`
	Date     time.Time `json:"date"`
	Activity string    `json:"activity"`
	Chemical string    `json:"chemical,omitempty"`
	Dosage   string    `json:"dosage,omitempty"`
}

// QRInfo is only present once an identifier has been issued; absence
// means absent, never a zero count.
type QRInfo struct {
	Payload     string    `json:"payload"`
	GeneratedAt time.Time `json:"generatedAt"`
	ScanCount   int64     `json:"scanCount"`
}
