// Package trace assembles the read-only provenance record behind the
// public trace endpoint. Resolving is pure read: it never touches the
// scan counter, which belongs to the separate scan operation.
package trace

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"orchardtrace/faults"
	"orchardtrace/infrastructure/sqlite"
	"orchardtrace/models"
	"orchardtrace/qrlabel"
)

var activityLabels = map[string]string{
	models.ActivityWatering:   "Watering",
	models.ActivityFertilizer: "Fertilizer application",
	models.ActivityPesticide:  "Pesticide application",
	models.ActivityPruning:    "Pruning",
	models.ActivityHarvest:    "Harvest",
	models.ActivityOther:      "Other activity",
}

// Resolve builds the traceability record for a batch code or a scanned
// locator. Inputs matching the locator pattern have the code extracted
// from the final path segment; anything else is treated as the code.
func Resolve(ctx context.Context, db *sqlite.DB, codeOrLocator string) (Record, error) {
	code := qrlabel.ExtractCode(codeOrLocator)
	if code == "" {
		return Record{}, faults.NotFound("empty trace reference")
	}

	var record Record
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var target models.Batch
		err := tx.NewSelect().Model(&target).Where("code = ?", code).Limit(1).Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return faults.NotFound("batch %q", code)
		}
		if err != nil {
			return err
		}
		record.Batch = BatchInfo{
			Code:         target.Code,
			QualityGrade: target.QualityGrade,
			TargetMarket: target.TargetMarket,
			TotalWeight:  target.TotalWeight,
			IsSafe:       target.IsSafe,
			CreatedAt:    target.CreatedAt,
		}

		members, treeIDs, err := loadMembers(ctx, tx, target.ID)
		if err != nil {
			return err
		}
		record.Members = members

		record.Timeline, err = loadTimeline(ctx, tx, treeIDs)
		if err != nil {
			return err
		}

		var qrRecord models.QRRecord
		err = tx.NewSelect().Model(&qrRecord).Where("batch_id = ?", target.ID).Limit(1).Scan(ctx)
		if err == nil {
			record.QR = &QRInfo{
				Payload:     qrRecord.Payload,
				GeneratedAt: qrRecord.GeneratedAt,
				ScanCount:   qrRecord.ScanCount,
			}
		} else if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		return nil
	})
	if err != nil {
		return Record{}, err
	}
	record.QueriedAt = time.Now()
	return record, nil
}

func loadMembers(ctx context.Context, tx bun.Tx, batchID int64) ([]MemberInfo, []int64, error) {
	type row struct {
		RequestID      int64      `bun:"request_id"`
		ActualQuantity float64    `bun:"actual_quantity"`
		GradeA         float64    `bun:"grade_a"`
		GradeB         float64    `bun:"grade_b"`
		GradeC         float64    `bun:"grade_c"`
		CheckedInAt    *time.Time `bun:"checked_in_at"`
		TreeID         int64      `bun:"tree_id"`
		TreeCode       string     `bun:"tree_code"`
		Variety        string     `bun:"variety"`
		PlantingYear   int        `bun:"planting_year"`
		FarmCode       string     `bun:"farm_code"`
		FarmName       string     `bun:"farm_name"`
		FarmLocation   string     `bun:"farm_location"`
		FarmerName     string     `bun:"farmer_name"`
		FarmerRegion   string     `bun:"farmer_region"`
	}
	rows := make([]row, 0)
	err := tx.NewRaw(`
SELECT hr.id AS request_id, hr.actual_quantity, hr.grade_a, hr.grade_b, hr.grade_c,
       hr.checked_in_at, t.id AS tree_id, t.code AS tree_code, t.variety,
       COALESCE(t.planting_year, 0) AS planting_year,
       f.code AS farm_code, f.name AS farm_name, COALESCE(f.location, '') AS farm_location,
       fr.name AS farmer_name, COALESCE(fr.region, '') AS farmer_region
FROM harvest_requests hr
JOIN trees t ON t.id = hr.tree_id
JOIN farms f ON f.id = t.farm_id
JOIN farmers fr ON fr.id = f.farmer_id
WHERE hr.batch_id = ?
ORDER BY hr.id ASC`, batchID).Scan(ctx, &rows)
	if err != nil {
		return nil, nil, err
	}

	members := make([]MemberInfo, 0, len(rows))
	treeIDs := make([]int64, 0, len(rows))
	seen := make(map[int64]bool)
	for _, r := range rows {
		members = append(members, MemberInfo{
			RequestID:      r.RequestID,
			ActualQuantity: r.ActualQuantity,
			GradeA:         r.GradeA,
			GradeB:         r.GradeB,
			GradeC:         r.GradeC,
			CheckedInAt:    r.CheckedInAt,
			Tree: TreeInfo{
				Code:         r.TreeCode,
				Variety:      r.Variety,
				PlantingYear: r.PlantingYear,
				FarmCode:     r.FarmCode,
				FarmName:     r.FarmName,
				FarmLocation: r.FarmLocation,
				FarmerName:   r.FarmerName,
				FarmerRegion: r.FarmerRegion,
			},
		})
		if !seen[r.TreeID] {
			seen[r.TreeID] = true
			treeIDs = append(treeIDs, r.TreeID)
		}
	}
	return members, treeIDs, nil
}

// loadTimeline merges the activity logs of every member tree into one
// date-ascending sequence.
func loadTimeline(ctx context.Context, tx bun.Tx, treeIDs []int64) ([]TimelineEntry, error) {
	if len(treeIDs) == 0 {
		return []TimelineEntry{}, nil
	}

	type row struct {
		TreeCode     string    `bun:"tree_code"`
		ActivityType string    `bun:"activity_type"`
		ActivityDate time.Time `bun:"activity_date"`
		ChemicalName string    `bun:"chemical_name"`
		Dosage       string    `bun:"dosage"`
	}
	rows := make([]row, 0)
	err := tx.NewRaw(`
SELECT t.code AS tree_code, fa.activity_type, fa.activity_date,
       COALESCE(fa.chemical_name, '') AS chemical_name,
       COALESCE(fa.dosage, '') AS dosage
FROM farming_activities fa
JOIN trees t ON t.id = fa.tree_id
WHERE fa.tree_id IN (?)
ORDER BY fa.activity_date ASC, fa.id ASC`, bun.In(treeIDs)).Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}

	timeline := make([]TimelineEntry, 0, len(rows))
	for _, r := range rows {
		entry := TimelineEntry{
			TreeCode: r.TreeCode,
			Date:     r.ActivityDate,
			Activity: label(r.ActivityType),
		}
		if r.ActivityType == models.ActivityPesticide {
			entry.Chemical = r.ChemicalName
			entry.Dosage = r.Dosage
		}
		timeline = append(timeline, entry)
	}
	return timeline, nil
}

func label(activityType string) string {
	if l, ok := activityLabels[activityType]; ok {
		return l
	}
	return activityType
}
