// Package qrlabel issues the scannable identifier bound 1:1 to a batch
// and tracks scan provenance. Issuance is idempotent and refuses unsafe
// batches; the scan counter only ever increases.
package qrlabel

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	"orchardtrace/faults"
	"orchardtrace/infrastructure/audit"
	"orchardtrace/infrastructure/sqlite"
	"orchardtrace/models"
)

// Issue creates the QR record for a batch, or returns the existing one.
// Concurrent callers race on the unique batch_id index; the loser reads
// the winner's record instead of failing, and never resets the scan
// counter. An unsafe batch never gets an identifier.
func Issue(ctx context.Context, db *sqlite.DB, auditSvc *audit.Service, actorID, batchID int64, baseURL string) (models.QRRecord, error) {
	if actorID <= 0 {
		return models.QRRecord{}, faults.Validation("actorId is required")
	}

	var record models.QRRecord
	err := db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var target models.Batch
		err := tx.NewSelect().Model(&target).Where("id = ?", batchID).Limit(1).Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return faults.NotFound("batch %d", batchID)
		}
		if err != nil {
			return err
		}
		if !target.IsSafe {
			return &faults.NotSafeError{Reason: "batch " + target.Code + " failed its safety check"}
		}

		err = tx.NewSelect().Model(&record).Where("batch_id = ?", batchID).Limit(1).Scan(ctx)
		if err == nil {
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		imagePNG, err := renderQRPNG(BuildPayload(baseURL, target.Code))
		if err != nil {
			return err
		}
		record = models.QRRecord{
			BatchID:  batchID,
			Payload:  BuildPayload(baseURL, target.Code),
			ImagePNG: imagePNG,
		}
		// Compare-and-set on the unique batch_id index: if another
		// writer got here first, keep its record.
		res, err := tx.NewInsert().Model(&record).On("CONFLICT (batch_id) DO NOTHING").Exec(ctx)
		if err != nil {
			return err
		}
		inserted, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if inserted == 0 {
			return tx.NewSelect().Model(&record).Where("batch_id = ?", batchID).Limit(1).Scan(ctx)
		}
		if auditSvc != nil {
			return auditSvc.Write(ctx, tx, actorID, "qr.issue", "qr_records", target.Code, nil, record)
		}
		return nil
	})
	if err != nil {
		return models.QRRecord{}, err
	}
	return record, nil
}

// GetByBatch returns the record for a batch, if one was issued.
func GetByBatch(ctx context.Context, db *sqlite.DB, batchID int64) (models.QRRecord, error) {
	var record models.QRRecord
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&record).Where("batch_id = ?", batchID).Limit(1).Scan(ctx)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return record, faults.NotFound("qr record for batch %d", batchID)
	}
	return record, err
}

// RecordScan atomically increments the scan counter for the identifier
// referenced by a scanned payload or bare batch code, and returns the
// new count. It has no other observable effect.
func RecordScan(ctx context.Context, db *sqlite.DB, ref string) (int64, error) {
	code := ExtractCode(ref)
	if code == "" {
		return 0, faults.Validation("scan reference is required")
	}

	var count int64
	err := db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		err := tx.NewRaw(`
UPDATE qr_records
SET scan_count = scan_count + 1
WHERE batch_id = (SELECT id FROM batches WHERE code = ?)
RETURNING scan_count`, code).Scan(ctx, &count)
		if errors.Is(err, sql.ErrNoRows) {
			return faults.NotFound("qr record for code %q", code)
		}
		return err
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}
