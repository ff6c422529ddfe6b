package safety

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"orchardtrace/faults"
	"orchardtrace/infrastructure/sqlite"
	"orchardtrace/models"
	"orchardtrace/registry"
)

// EvaluateTreeTx evaluates one tree inside the caller's transaction.
// Mutating flows (harvest submission, batch creation) use this so the
// verdict and the state change commit together.
func EvaluateTreeTx(ctx context.Context, tx bun.Tx, treeID int64, asOf time.Time) (Verdict, error) {
	exists, err := tx.NewSelect().Model((*models.Tree)(nil)).Where("id = ?", treeID).Exists(ctx)
	if err != nil {
		return Verdict{}, err
	}
	if !exists {
		return Verdict{}, faults.NotFound("tree %d", treeID)
	}

	activities := make([]models.FarmingActivity, 0)
	err = tx.NewSelect().Model(&activities).
		Where("tree_id = ?", treeID).
		Where("activity_type = ?", models.ActivityPesticide).
		OrderExpr("activity_date ASC, id ASC").
		Scan(ctx)
	if err != nil {
		return Verdict{}, err
	}

	lookup := func(ctx context.Context, name string) (models.ChemicalRule, error) {
		return registry.GetRuleTx(ctx, tx, name)
	}
	return Evaluate(ctx, activities, lookup, asOf)
}

// EvaluateTreesTx evaluates every tree independently and merges the
// verdicts. The first configuration fault aborts the evaluation.
func EvaluateTreesTx(ctx context.Context, tx bun.Tx, treeIDs []int64, asOf time.Time) (Verdict, error) {
	verdicts := make([]Verdict, 0, len(treeIDs))
	for _, id := range treeIDs {
		v, err := EvaluateTreeTx(ctx, tx, id, asOf)
		if err != nil {
			return Verdict{}, err
		}
		verdicts = append(verdicts, v)
	}
	return Merge(verdicts), nil
}

// EvaluateTree is the read-only variant backing the early-feedback
// endpoint. It shares Evaluate with the mutating paths, so there is
// exactly one PHI implementation in the system.
func EvaluateTree(ctx context.Context, db *sqlite.DB, treeID int64, asOf time.Time) (Verdict, error) {
	var verdict Verdict
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var innerErr error
		verdict, innerErr = EvaluateTreeTx(ctx, tx, treeID, asOf)
		return innerErr
	})
	if err != nil && errors.Is(err, sql.ErrNoRows) {
		return verdict, faults.NotFound("tree %d", treeID)
	}
	return verdict, err
}
