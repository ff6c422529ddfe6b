package batch

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"

	"github.com/uptrace/bun"

	"orchardtrace/infrastructure/sqlite"
)

// writeManifestCSV streams the batch manifest: one row per member
// request with its tree, farm and graded quantities.
func writeManifestCSV(ctx context.Context, db *sqlite.DB, w io.Writer, batchID int64) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	header := []string{"batch_code", "request_id", "tree_code", "variety", "farm_code", "actual_kg", "grade_a_kg", "grade_b_kg", "grade_c_kg", "checked_in_at"}
	if err := writer.Write(header); err != nil {
		return err
	}

	type row struct {
		BatchCode   string  `bun:"batch_code"`
		RequestID   int64   `bun:"request_id"`
		TreeCode    string  `bun:"tree_code"`
		Variety     string  `bun:"variety"`
		FarmCode    string  `bun:"farm_code"`
		ActualKg    float64 `bun:"actual_kg"`
		GradeA      float64 `bun:"grade_a"`
		GradeB      float64 `bun:"grade_b"`
		GradeC      float64 `bun:"grade_c"`
		CheckedInAt string  `bun:"checked_in_at"`
	}

	rows := make([]row, 0)
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewRaw(`
SELECT b.code AS batch_code, hr.id AS request_id, t.code AS tree_code, t.variety,
       f.code AS farm_code, hr.actual_quantity AS actual_kg,
       hr.grade_a, hr.grade_b, hr.grade_c,
       COALESCE(strftime('%Y-%m-%d %H:%M', hr.checked_in_at), '') AS checked_in_at
FROM harvest_requests hr
JOIN batches b ON b.id = hr.batch_id
JOIN trees t ON t.id = hr.tree_id
JOIN farms f ON f.id = t.farm_id
WHERE hr.batch_id = ?
ORDER BY hr.id ASC`, batchID).Scan(ctx, &rows)
	})
	if err != nil {
		return err
	}

	for _, r := range rows {
		record := []string{
			r.BatchCode,
			strconv.FormatInt(r.RequestID, 10),
			r.TreeCode,
			r.Variety,
			r.FarmCode,
			strconv.FormatFloat(r.ActualKg, 'f', 2, 64),
			strconv.FormatFloat(r.GradeA, 'f', 2, 64),
			strconv.FormatFloat(r.GradeB, 'f', 2, 64),
			strconv.FormatFloat(r.GradeC, 'f', 2, 64),
			r.CheckedInAt,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	return nil
}
