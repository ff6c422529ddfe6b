package orchard

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/uptrace/bun"

	"orchardtrace/faults"
	"orchardtrace/infrastructure/audit"
	"orchardtrace/infrastructure/sqlite"
	"orchardtrace/models"
)

var activityTypes = map[string]bool{
	models.ActivityWatering:   true,
	models.ActivityFertilizer: true,
	models.ActivityPesticide:  true,
	models.ActivityPruning:    true,
	models.ActivityHarvest:    true,
	models.ActivityOther:      true,
}

func CreateFarmer(ctx context.Context, db *sqlite.DB, input FarmerInput) (models.Farmer, error) {
	farmer := models.Farmer{Name: strings.TrimSpace(input.Name), Phone: input.Phone, Region: input.Region}
	if farmer.Name == "" {
		return farmer, faults.Validation("farmer name is required")
	}
	err := db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().Model(&farmer).Exec(ctx)
		return err
	})
	return farmer, err
}

func CreateFarm(ctx context.Context, db *sqlite.DB, input FarmInput) (models.Farm, error) {
	farm := models.Farm{
		Code:     strings.TrimSpace(input.Code),
		Name:     strings.TrimSpace(input.Name),
		Location: input.Location,
		FarmerID: input.FarmerID,
	}
	if farm.Code == "" || farm.Name == "" {
		return farm, faults.Validation("farm code and name are required")
	}
	err := db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().Model((*models.Farmer)(nil)).Where("id = ?", farm.FarmerID).Exists(ctx)
		if err != nil {
			return err
		}
		if !exists {
			return faults.NotFound("farmer %d", farm.FarmerID)
		}
		_, err = tx.NewInsert().Model(&farm).Exec(ctx)
		return err
	})
	return farm, err
}

func CreateTree(ctx context.Context, db *sqlite.DB, input TreeInput) (models.Tree, error) {
	tree := models.Tree{
		Code:         strings.TrimSpace(input.Code),
		Variety:      strings.TrimSpace(input.Variety),
		PlantingYear: input.PlantingYear,
		FarmID:       input.FarmID,
		Active:       true,
	}
	if tree.Code == "" || tree.Variety == "" {
		return tree, faults.Validation("tree code and variety are required")
	}
	err := db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().Model((*models.Farm)(nil)).Where("id = ?", tree.FarmID).Exists(ctx)
		if err != nil {
			return err
		}
		if !exists {
			return faults.NotFound("farm %d", tree.FarmID)
		}
		_, err = tx.NewInsert().Model(&tree).Exec(ctx)
		return err
	})
	return tree, err
}

func GetTree(ctx context.Context, db *sqlite.DB, treeID int64) (models.Tree, error) {
	var tree models.Tree
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&tree).
			Relation("Farm").Relation("Farm.Farmer").
			Where("t.id = ?", treeID).Limit(1).Scan(ctx)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return tree, faults.NotFound("tree %d", treeID)
	}
	return tree, err
}

// DeactivateTree marks a tree inactive. Trees are never deleted, so the
// activity history behind issued batches stays resolvable.
func DeactivateTree(ctx context.Context, db *sqlite.DB, auditSvc *audit.Service, actorID, treeID int64) error {
	return db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var tree models.Tree
		err := tx.NewSelect().Model(&tree).Where("id = ?", treeID).Limit(1).Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return faults.NotFound("tree %d", treeID)
		}
		if err != nil {
			return err
		}
		if !tree.Active {
			return nil
		}
		before := tree
		tree.Active = false
		if _, err := tx.NewUpdate().Model(&tree).WherePK().Exec(ctx); err != nil {
			return err
		}
		if auditSvc != nil {
			return auditSvc.Write(ctx, tx, actorID, "tree.deactivate", "trees", fmt.Sprintf("%d", treeID), before, tree)
		}
		return nil
	})
}

// AppendActivity adds one entry to a tree's log. The log is append-only:
// there is no update or delete path anywhere in the engine.
func AppendActivity(ctx context.Context, db *sqlite.DB, recordedBy, treeID int64, input ActivityInput) (models.FarmingActivity, error) {
	input.ActivityType = strings.ToLower(strings.TrimSpace(input.ActivityType))
	input.ChemicalName = strings.TrimSpace(input.ChemicalName)

	if !activityTypes[input.ActivityType] {
		return models.FarmingActivity{}, faults.Validation("unknown activity type %q", input.ActivityType)
	}
	if input.ActivityDate.IsZero() {
		return models.FarmingActivity{}, faults.Validation("activity date is required")
	}
	if input.ActivityType == models.ActivityPesticide {
		if input.ChemicalName == "" {
			return models.FarmingActivity{}, faults.Validation("pesticide activity requires a chemical name")
		}
		if input.PHIDaysOverride != nil && *input.PHIDaysOverride < 0 {
			return models.FarmingActivity{}, faults.Validation("phiDaysOverride must not be negative")
		}
	} else {
		if input.ChemicalName != "" {
			return models.FarmingActivity{}, faults.Validation("chemical name is only valid on pesticide activities")
		}
		if input.PHIDaysOverride != nil {
			return models.FarmingActivity{}, faults.Validation("phiDaysOverride is only valid on pesticide activities")
		}
	}
	if recordedBy <= 0 {
		return models.FarmingActivity{}, faults.Validation("actorId is required")
	}

	activity := models.FarmingActivity{
		TreeID:          treeID,
		ActivityType:    input.ActivityType,
		ActivityDate:    input.ActivityDate,
		ChemicalName:    input.ChemicalName,
		Dosage:          input.Dosage,
		PHIDaysOverride: input.PHIDaysOverride,
		RecordedBy:      recordedBy,
	}
	err := db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var tree models.Tree
		err := tx.NewSelect().Model(&tree).Where("id = ?", treeID).Limit(1).Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return faults.NotFound("tree %d", treeID)
		}
		if err != nil {
			return err
		}
		if !tree.Active {
			return faults.InvalidState("tree %s is deactivated", tree.Code)
		}
		_, err = tx.NewInsert().Model(&activity).Exec(ctx)
		return err
	})
	return activity, err
}

// ListActivities returns a tree's log ordered by date ascending.
func ListActivities(ctx context.Context, db *sqlite.DB, treeID int64) ([]models.FarmingActivity, error) {
	activities := make([]models.FarmingActivity, 0)
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().Model((*models.Tree)(nil)).Where("id = ?", treeID).Exists(ctx)
		if err != nil {
			return err
		}
		if !exists {
			return faults.NotFound("tree %d", treeID)
		}
		return tx.NewSelect().Model(&activities).
			Where("tree_id = ?", treeID).
			OrderExpr("activity_date ASC, id ASC").
			Scan(ctx)
	})
	return activities, err
}
