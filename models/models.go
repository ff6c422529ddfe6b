package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Harvest request lifecycle states.
const (
	StatusPending   = "pending"
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
	StatusCheckedIn = "checked_in"
	StatusCompleted = "completed"
)

// Farming activity types. ActivityPesticide is the only type that
// participates in PHI evaluation.
const (
	ActivityWatering   = "watering"
	ActivityFertilizer = "fertilizer"
	ActivityPesticide  = "pesticide"
	ActivityPruning    = "pruning"
	ActivityHarvest    = "harvest"
	ActivityOther      = "other"
)

// ChemicalRule maps a chemical name to its mandated pre-harvest interval.
// Lookups are unversioned: the evaluator always reads the row in effect now.
type ChemicalRule struct {
	bun.BaseModel `bun:"table:chemical_rules,alias:cr"`

	ID               int64     `bun:"id,pk,autoincrement" json:"id"`
	Name             string    `bun:"name,unique,notnull" json:"name"`
	ActiveIngredient string    `bun:"active_ingredient,notnull" json:"activeIngredient"`
	PHIDays          int       `bun:"phi_days,notnull" json:"phiDays"`
	Banned           bool      `bun:"banned,notnull,default:false" json:"banned"`
	TargetMarket     string    `bun:"target_market" json:"targetMarket,omitempty"`
	CreatedAt        time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt        time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`
}

// Farmer owns one or more farms.
type Farmer struct {
	bun.BaseModel `bun:"table:farmers,alias:fr"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	Name      string    `bun:"name,notnull" json:"name"`
	Phone     string    `bun:"phone" json:"phone,omitempty"`
	Region    string    `bun:"region" json:"region,omitempty"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
}

// Farm groups trees under one farmer.
type Farm struct {
	bun.BaseModel `bun:"table:farms,alias:f"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	Code      string    `bun:"code,unique,notnull" json:"code"`
	Name      string    `bun:"name,notnull" json:"name"`
	Location  string    `bun:"location" json:"location,omitempty"`
	FarmerID  int64     `bun:"farmer_id,notnull" json:"farmerId"`
	Farmer    *Farmer   `bun:"rel:belongs-to,join:farmer_id=id" json:"farmer,omitempty"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
}

// Tree owns its ordered farming-activity history. Trees are never
// deleted, only deactivated.
type Tree struct {
	bun.BaseModel `bun:"table:trees,alias:t"`

	ID           int64     `bun:"id,pk,autoincrement" json:"id"`
	Code         string    `bun:"code,unique,notnull" json:"code"`
	Variety      string    `bun:"variety,notnull" json:"variety"`
	PlantingYear int       `bun:"planting_year" json:"plantingYear"`
	FarmID       int64     `bun:"farm_id,notnull" json:"farmId"`
	Farm         *Farm     `bun:"rel:belongs-to,join:farm_id=id" json:"farm,omitempty"`
	Active       bool      `bun:"active,notnull,default:true" json:"active"`
	CreatedAt    time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
}

// FarmingActivity is one append-only log entry against a tree. Ordering
// by ActivityDate is significant for PHI evaluation and the timeline.
type FarmingActivity struct {
	bun.BaseModel `bun:"table:farming_activities,alias:fa"`

	ID              int64     `bun:"id,pk,autoincrement" json:"id"`
	TreeID          int64     `bun:"tree_id,notnull" json:"treeId"`
	ActivityType    string    `bun:"activity_type,notnull" json:"activityType"`
	ActivityDate    time.Time `bun:"activity_date,notnull" json:"activityDate"`
	ChemicalName    string    `bun:"chemical_name" json:"chemicalName,omitempty"`
	Dosage          string    `bun:"dosage" json:"dosage,omitempty"`
	PHIDaysOverride *int      `bun:"phi_days_override" json:"phiDaysOverride,omitempty"`
	RecordedBy      int64     `bun:"recorded_by,notnull" json:"recordedBy"`
	CreatedAt       time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
}

// HarvestRequest moves pending -> approved/rejected -> checked_in ->
// completed. BatchID is the explicit owning reference claimed by batch
// creation; a request belongs to at most one batch.
type HarvestRequest struct {
	bun.BaseModel `bun:"table:harvest_requests,alias:hr"`

	ID                  int64      `bun:"id,pk,autoincrement" json:"id"`
	TreeID              int64      `bun:"tree_id,notnull" json:"treeId"`
	Tree                *Tree      `bun:"rel:belongs-to,join:tree_id=id" json:"tree,omitempty"`
	RequesterID         int64      `bun:"requester_id,notnull" json:"requesterId"`
	ExpectedHarvestDate time.Time  `bun:"expected_harvest_date,notnull" json:"expectedHarvestDate"`
	EstimatedQuantity   float64    `bun:"estimated_quantity,notnull" json:"estimatedQuantity"`
	Status              string     `bun:"status,notnull" json:"status"`
	ActualQuantity      float64    `bun:"actual_quantity,notnull,default:0" json:"actualQuantity"`
	GradeA              float64    `bun:"grade_a,notnull,default:0" json:"gradeA"`
	GradeB              float64    `bun:"grade_b,notnull,default:0" json:"gradeB"`
	GradeC              float64    `bun:"grade_c,notnull,default:0" json:"gradeC"`
	CheckedInBy         *int64     `bun:"checked_in_by" json:"checkedInBy,omitempty"`
	CheckedInAt         *time.Time `bun:"checked_in_at" json:"checkedInAt,omitempty"`
	BatchID             *int64     `bun:"batch_id" json:"batchId,omitempty"`
	CreatedAt           time.Time  `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt           time.Time  `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`
}

// Batch is an exportable aggregate of completed harvest requests.
// Immutable after creation except for the attached QR record.
type Batch struct {
	bun.BaseModel `bun:"table:batches,alias:b"`

	ID           int64     `bun:"id,pk,autoincrement" json:"id"`
	Code         string    `bun:"code,unique,notnull" json:"code"`
	QualityGrade string    `bun:"quality_grade,notnull" json:"qualityGrade"`
	TargetMarket string    `bun:"target_market" json:"targetMarket,omitempty"`
	TotalWeight  float64   `bun:"total_weight,notnull" json:"totalWeight"`
	IsSafe       bool      `bun:"is_safe,notnull" json:"isSafe"`
	CreatedBy    int64     `bun:"created_by,notnull" json:"createdBy"`
	CreatedAt    time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
}

// QRRecord is the scannable identifier bound 1:1 to a batch. ScanCount
// only ever increases.
type QRRecord struct {
	bun.BaseModel `bun:"table:qr_records,alias:qr"`

	ID          int64     `bun:"id,pk,autoincrement" json:"id"`
	BatchID     int64     `bun:"batch_id,unique,notnull" json:"batchId"`
	Payload     string    `bun:"payload,notnull" json:"payload"`
	ImagePNG    []byte    `bun:"image_png,notnull" json:"-"`
	GeneratedAt time.Time `bun:"generated_at,notnull,default:current_timestamp" json:"generatedAt"`
	ScanCount   int64     `bun:"scan_count,notnull,default:0" json:"scanCount"`
}

// AuditLog captures immutable change history for state transitions.
type AuditLog struct {
	bun.BaseModel `bun:"table:audit_logs,alias:al"`

	ID         int64     `bun:"id,pk,autoincrement"`
	ActorID    int64     `bun:"actor_id,notnull"`
	Action     string    `bun:"action,notnull"`
	EntityType string    `bun:"entity_type,notnull"`
	EntityID   string    `bun:"entity_id,notnull"`
	BeforeJSON string    `bun:"before_json"`
	AfterJSON  string    `bun:"after_json"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:current_timestamp"`
}
