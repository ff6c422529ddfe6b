// Package harvest implements the request state machine:
// pending -> approved/rejected -> checked_in -> completed.
// Every transition runs in one write transaction with an in-transaction
// status re-read, takes an explicit actor ID, and writes an audit row.
package harvest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/uptrace/bun"

	"orchardtrace/faults"
	"orchardtrace/infrastructure/audit"
	"orchardtrace/infrastructure/sqlite"
	"orchardtrace/models"
	"orchardtrace/safety"
)

// Submit creates a pending request after running the PHI gate against
// the expected harvest date. An unsafe verdict rejects the submission
// with the computed wait (or the banned condition); nothing is stored.
func Submit(ctx context.Context, db *sqlite.DB, auditSvc *audit.Service, requesterID int64, input SubmitInput) (models.HarvestRequest, error) {
	if requesterID <= 0 {
		return models.HarvestRequest{}, faults.Validation("actorId is required")
	}
	if input.TreeID <= 0 {
		return models.HarvestRequest{}, faults.Validation("treeId is required")
	}
	if input.ExpectedHarvestDate.IsZero() {
		return models.HarvestRequest{}, faults.Validation("expectedHarvestDate is required")
	}
	if input.EstimatedQuantity <= 0 {
		return models.HarvestRequest{}, faults.Validation("estimatedQuantity must be positive")
	}

	request := models.HarvestRequest{
		TreeID:              input.TreeID,
		RequesterID:         requesterID,
		ExpectedHarvestDate: input.ExpectedHarvestDate,
		EstimatedQuantity:   input.EstimatedQuantity,
		Status:              models.StatusPending,
	}
	err := db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var tree models.Tree
		err := tx.NewSelect().Model(&tree).Where("id = ?", input.TreeID).Limit(1).Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return faults.NotFound("tree %d", input.TreeID)
		}
		if err != nil {
			return err
		}
		if !tree.Active {
			return faults.InvalidState("tree %s is deactivated", tree.Code)
		}

		verdict, err := safety.EvaluateTreeTx(ctx, tx, input.TreeID, input.ExpectedHarvestDate)
		if err != nil {
			return err
		}
		if !verdict.Safe {
			return &faults.NotSafeError{
				DaysRemaining: verdict.DaysRemaining,
				Banned:        verdict.Banned,
				Chemical:      verdict.BindingChemical,
			}
		}

		if _, err := tx.NewInsert().Model(&request).Exec(ctx); err != nil {
			return err
		}
		if auditSvc != nil {
			return auditSvc.Write(ctx, tx, requesterID, "harvest.submit", "harvest_requests", fmt.Sprintf("%d", request.ID), nil, request)
		}
		return nil
	})
	return request, err
}

// Approve moves a pending request to approved.
func Approve(ctx context.Context, db *sqlite.DB, auditSvc *audit.Service, actorID, requestID int64) (models.HarvestRequest, error) {
	return transition(ctx, db, auditSvc, actorID, requestID, "harvest.approve", func(request *models.HarvestRequest) error {
		if request.Status != models.StatusPending {
			return faults.InvalidState("cannot approve a %s request", request.Status)
		}
		request.Status = models.StatusApproved
		return nil
	})
}

// Reject moves a pending request to rejected.
func Reject(ctx context.Context, db *sqlite.DB, auditSvc *audit.Service, actorID, requestID int64) (models.HarvestRequest, error) {
	return transition(ctx, db, auditSvc, actorID, requestID, "harvest.reject", func(request *models.HarvestRequest) error {
		if request.Status != models.StatusPending {
			return faults.InvalidState("cannot reject a %s request", request.Status)
		}
		request.Status = models.StatusRejected
		return nil
	})
}

// CheckIn records the weighed quantities against an approved request.
// It happens exactly once: repeating it on a checked-in or completed
// request is an invalid-state fault, never a silent overwrite.
func CheckIn(ctx context.Context, db *sqlite.DB, auditSvc *audit.Service, actorID, requestID int64, input CheckInInput) (models.HarvestRequest, error) {
	if input.ActualQuantity <= 0 {
		return models.HarvestRequest{}, faults.Validation("actualQuantity must be positive")
	}
	if input.GradeA < 0 || input.GradeB < 0 || input.GradeC < 0 {
		return models.HarvestRequest{}, faults.Validation("grade quantities must not be negative")
	}
	if !gradeSumMatches(input) {
		return models.HarvestRequest{}, faults.Validation(
			"grade sum %.2f does not equal actual quantity %.2f",
			input.GradeA+input.GradeB+input.GradeC, input.ActualQuantity)
	}

	now := time.Now()
	return transition(ctx, db, auditSvc, actorID, requestID, "harvest.check_in", func(request *models.HarvestRequest) error {
		switch request.Status {
		case models.StatusApproved:
		case models.StatusCheckedIn, models.StatusCompleted:
			return faults.InvalidState("request %d is already checked in", request.ID)
		default:
			return faults.InvalidState("cannot check in a %s request", request.Status)
		}
		request.Status = models.StatusCheckedIn
		request.ActualQuantity = input.ActualQuantity
		request.GradeA = input.GradeA
		request.GradeB = input.GradeB
		request.GradeC = input.GradeC
		request.CheckedInBy = &actorID
		request.CheckedInAt = &now
		return nil
	})
}

// Complete marks a checked-in request eligible for batching. Completing
// an already-completed request is a no-op.
func Complete(ctx context.Context, db *sqlite.DB, auditSvc *audit.Service, actorID, requestID int64) (models.HarvestRequest, error) {
	return transition(ctx, db, auditSvc, actorID, requestID, "harvest.complete", func(request *models.HarvestRequest) error {
		switch request.Status {
		case models.StatusCompleted:
			return errSkipTransition
		case models.StatusCheckedIn:
			request.Status = models.StatusCompleted
			return nil
		default:
			return faults.InvalidState("cannot complete a %s request", request.Status)
		}
	})
}

// errSkipTransition makes a transition an observable no-op.
var errSkipTransition = errors.New("skip transition")

func transition(ctx context.Context, db *sqlite.DB, auditSvc *audit.Service, actorID, requestID int64, action string, mutate func(*models.HarvestRequest) error) (models.HarvestRequest, error) {
	if actorID <= 0 {
		return models.HarvestRequest{}, faults.Validation("actorId is required")
	}
	var request models.HarvestRequest
	err := db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		err := tx.NewSelect().Model(&request).Where("id = ?", requestID).Limit(1).Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return faults.NotFound("harvest request %d", requestID)
		}
		if err != nil {
			return err
		}

		before := request
		if err := mutate(&request); err != nil {
			if errors.Is(err, errSkipTransition) {
				return nil
			}
			return err
		}
		request.UpdatedAt = time.Now()
		if _, err := tx.NewUpdate().Model(&request).WherePK().Exec(ctx); err != nil {
			return err
		}
		if auditSvc != nil {
			return auditSvc.Write(ctx, tx, actorID, action, "harvest_requests", fmt.Sprintf("%d", request.ID), before, request)
		}
		return nil
	})
	return request, err
}

// gradeSumMatches compares after rounding to the smallest tracked unit
// of 0.01 kg, so float arithmetic noise does not reject honest input.
func gradeSumMatches(input CheckInInput) bool {
	return toCentiKg(input.GradeA)+toCentiKg(input.GradeB)+toCentiKg(input.GradeC) == toCentiKg(input.ActualQuantity)
}

func toCentiKg(kg float64) int64 {
	return int64(math.Round(kg * 100))
}

// Get returns one request with its tree.
func Get(ctx context.Context, db *sqlite.DB, requestID int64) (models.HarvestRequest, error) {
	var request models.HarvestRequest
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&request).Relation("Tree").Where("hr.id = ?", requestID).Limit(1).Scan(ctx)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return request, faults.NotFound("harvest request %d", requestID)
	}
	return request, err
}

// List returns requests, optionally filtered by status, newest first.
func List(ctx context.Context, db *sqlite.DB, status string) ([]models.HarvestRequest, error) {
	requests := make([]models.HarvestRequest, 0)
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		q := tx.NewSelect().Model(&requests).Relation("Tree").OrderExpr("hr.id DESC")
		if status != "" {
			q = q.Where("hr.status = ?", status)
		}
		return q.Scan(ctx)
	})
	return requests, err
}
