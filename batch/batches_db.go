// Package batch merges completed harvest requests into exportable
// batches. Membership is exclusive: a request belongs to at most one
// batch, claimed atomically at creation.
package batch

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"orchardtrace/faults"
	"orchardtrace/infrastructure/audit"
	"orchardtrace/infrastructure/sqlite"
	"orchardtrace/models"
	"orchardtrace/safety"
)

// Create builds a batch from completed, unclaimed requests. The whole
// operation is one transaction: member validation, weight aggregation,
// the frozen safety verdict, code allocation, batch insert and the
// membership claim all commit together or not at all.
func Create(ctx context.Context, db *sqlite.DB, auditSvc *audit.Service, actorID int64, input CreateInput) (models.Batch, error) {
	if actorID <= 0 {
		return models.Batch{}, faults.Validation("actorId is required")
	}
	if strings.TrimSpace(input.QualityGrade) == "" {
		return models.Batch{}, faults.Validation("qualityGrade is required")
	}
	ids := dedupe(input.RequestIDs)
	if len(ids) == 0 {
		return models.Batch{}, faults.Validation("requestIds must not be empty")
	}

	var created models.Batch
	err := db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		members := make([]models.HarvestRequest, 0, len(ids))
		err := tx.NewSelect().Model(&members).Where("id IN (?)", bun.In(ids)).Scan(ctx)
		if err != nil {
			return err
		}
		if len(members) != len(ids) {
			return faults.NotFound("%d of %d harvest requests", len(ids)-len(members), len(ids))
		}

		treeIDs := make([]int64, 0, len(members))
		seenTrees := make(map[int64]bool)
		totalWeight := 0.0
		for _, member := range members {
			if member.Status != models.StatusCompleted {
				return faults.InvalidState("request %d is %s, not completed", member.ID, member.Status)
			}
			if member.BatchID != nil {
				return faults.Conflict("request %d already belongs to batch %d", member.ID, *member.BatchID)
			}
			totalWeight += member.ActualQuantity
			if !seenTrees[member.TreeID] {
				seenTrees[member.TreeID] = true
				treeIDs = append(treeIDs, member.TreeID)
			}
		}

		// Frozen at creation: harvested material does not un-ripen, so
		// the verdict is never re-evaluated afterwards.
		verdict, err := safety.EvaluateTreesTx(ctx, tx, treeIDs, time.Now())
		if err != nil {
			return err
		}

		code, err := nextCode(ctx, tx, time.Now())
		if err != nil {
			return err
		}

		created = models.Batch{
			Code:         code,
			QualityGrade: strings.TrimSpace(input.QualityGrade),
			TargetMarket: strings.TrimSpace(input.TargetMarket),
			TotalWeight:  math.Round(totalWeight*100) / 100,
			IsSafe:       verdict.Safe,
			CreatedBy:    actorID,
		}
		if _, err := tx.NewInsert().Model(&created).Exec(ctx); err != nil {
			return err
		}

		res, err := tx.NewUpdate().Model((*models.HarvestRequest)(nil)).
			Set("batch_id = ?", created.ID).
			Set("updated_at = CURRENT_TIMESTAMP").
			Where("id IN (?)", bun.In(ids)).
			Where("batch_id IS NULL").
			Where("status = ?", models.StatusCompleted).
			Exec(ctx)
		if err != nil {
			return err
		}
		claimed, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if claimed != int64(len(ids)) {
			// A member changed under us; roll everything back.
			return faults.Conflict("claimed %d of %d requests", claimed, len(ids))
		}

		if auditSvc != nil {
			return auditSvc.Write(ctx, tx, actorID, "batch.create", "batches", created.Code, nil, created)
		}
		return nil
	})
	if err != nil {
		return models.Batch{}, err
	}
	return created, nil
}

// nextCode allocates BATCH-{year}-{seq} from a per-year sequence read
// inside the caller's transaction.
func nextCode(ctx context.Context, tx bun.Tx, now time.Time) (string, error) {
	year := now.UTC().Year()
	prefix := fmt.Sprintf("BATCH-%d-", year)
	var count int64
	if err := tx.NewRaw(`SELECT COUNT(*) FROM batches WHERE code LIKE ?`, prefix+"%").Scan(ctx, &count); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%04d", prefix, count+1), nil
}

// Get returns one batch by id.
func Get(ctx context.Context, db *sqlite.DB, batchID int64) (models.Batch, error) {
	var found models.Batch
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&found).Where("id = ?", batchID).Limit(1).Scan(ctx)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return found, faults.NotFound("batch %d", batchID)
	}
	return found, err
}

// GetByCode returns one batch by its public code.
func GetByCode(ctx context.Context, db *sqlite.DB, code string) (models.Batch, error) {
	var found models.Batch
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&found).Where("code = ?", code).Limit(1).Scan(ctx)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return found, faults.NotFound("batch %q", code)
	}
	return found, err
}

// Members returns the requests claimed by a batch with their trees.
func Members(ctx context.Context, db *sqlite.DB, batchID int64) ([]models.HarvestRequest, error) {
	members := make([]models.HarvestRequest, 0)
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&members).
			Relation("Tree").
			Where("hr.batch_id = ?", batchID).
			OrderExpr("hr.id ASC").
			Scan(ctx)
	})
	return members, err
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
