package orchard

import "time"

type FarmerInput struct {
	Name   string `json:"name"`
	Phone  string `json:"phone"`
	Region string `json:"region"`
}

type FarmInput struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Location string `json:"location"`
	FarmerID int64  `json:"farmerId"`
}

type TreeInput struct {
	Code         string `json:"code"`
	Variety      string `json:"variety"`
	PlantingYear int    `json:"plantingYear"`
	FarmID       int64  `json:"farmId"`
}

// ActivityInput is one append-only log entry. ChemicalName is required
// for pesticide activities and rejected for every other type.
type ActivityInput struct {
	ActivityType    string    `json:"activityType"`
	ActivityDate    time.Time `json:"activityDate"`
	ChemicalName    string    `json:"chemicalName"`
	Dosage          string    `json:"dosage"`
	PHIDaysOverride *int      `json:"phiDaysOverride"`
}
