package trace

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"orchardtrace/batch"
	"orchardtrace/faults"
	"orchardtrace/harvest"
	"orchardtrace/infrastructure/sqlite"
	"orchardtrace/models"
	"orchardtrace/orchard"
	"orchardtrace/qrlabel"
	"orchardtrace/registry"
)

func openTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "trace-test.db")
	db, err := sqlite.OpenDB(dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	if err := sqlite.ApplyEmbeddedMigrations(context.Background(), db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return db
}

func daysAgo(n int) time.Time {
	return time.Now().AddDate(0, 0, -n)
}

func seedTree(t *testing.T, db *sqlite.DB, farmID int64, code string) models.Tree {
	t.Helper()
	tree, err := orchard.CreateTree(context.Background(), db, orchard.TreeInput{
		Code: code, Variety: "Monthong", PlantingYear: 2015, FarmID: farmID,
	})
	if err != nil {
		t.Fatalf("seed tree %s: %v", code, err)
	}
	return tree
}

func completeRequest(t *testing.T, db *sqlite.DB, treeID int64, kg float64) int64 {
	t.Helper()
	ctx := context.Background()
	request, err := harvest.Submit(ctx, db, nil, 7, harvest.SubmitInput{
		TreeID:              treeID,
		ExpectedHarvestDate: time.Now().AddDate(0, 0, 7),
		EstimatedQuantity:   kg,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := harvest.Approve(ctx, db, nil, 2, request.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := harvest.CheckIn(ctx, db, nil, 3, request.ID, harvest.CheckInInput{ActualQuantity: kg, GradeA: kg}); err != nil {
		t.Fatalf("check in: %v", err)
	}
	if _, err := harvest.Complete(ctx, db, nil, 3, request.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	return request.ID
}

// seedTracedBatch builds a two-tree batch with interleaved activity
// history so the merged timeline ordering is observable.
func seedTracedBatch(t *testing.T, db *sqlite.DB) models.Batch {
	t.Helper()
	ctx := context.Background()

	farmer, err := orchard.CreateFarmer(ctx, db, orchard.FarmerInput{Name: "Somchai", Region: "Chanthaburi"})
	if err != nil {
		t.Fatalf("seed farmer: %v", err)
	}
	farm, err := orchard.CreateFarm(ctx, db, orchard.FarmInput{Code: "FARM-01", Name: "Hill Farm", Location: "Khao Khitchakut", FarmerID: farmer.ID})
	if err != nil {
		t.Fatalf("seed farm: %v", err)
	}
	treeA := seedTree(t, db, farm.ID, "T-301")
	treeB := seedTree(t, db, farm.ID, "T-302")

	if _, err := registry.UpsertRule(ctx, db, nil, 1, registry.RuleInput{
		Name: "Abamectin", ActiveIngredient: "abamectin", PHIDays: 7,
	}); err != nil {
		t.Fatalf("seed rule: %v", err)
	}

	// Interleave the two trees' logs so date order crosses trees.
	add := func(treeID int64, input orchard.ActivityInput) {
		t.Helper()
		if _, err := orchard.AppendActivity(ctx, db, 1, treeID, input); err != nil {
			t.Fatalf("append activity: %v", err)
		}
	}
	add(treeA.ID, orchard.ActivityInput{ActivityType: models.ActivityWatering, ActivityDate: daysAgo(90)})
	add(treeB.ID, orchard.ActivityInput{
		ActivityType: models.ActivityPesticide, ActivityDate: daysAgo(60),
		ChemicalName: "Abamectin", Dosage: "20 ml / 20 L",
	})
	add(treeA.ID, orchard.ActivityInput{ActivityType: models.ActivityPruning, ActivityDate: daysAgo(30)})

	requestA := completeRequest(t, db, treeA.ID, 120)
	requestB := completeRequest(t, db, treeB.ID, 80)

	created, err := batch.Create(ctx, db, nil, 5, batch.CreateInput{
		RequestIDs: []int64{requestA, requestB}, QualityGrade: "A", TargetMarket: "export",
	})
	if err != nil {
		t.Fatalf("create batch: %v", err)
	}
	return created
}

func TestResolve_AssemblesFullRecord(t *testing.T) {
	db := openTestDB(t)
	created := seedTracedBatch(t, db)

	record, err := Resolve(context.Background(), db, created.Code)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if record.Batch.Code != created.Code {
		t.Fatalf("expected batch code %s, got %s", created.Code, record.Batch.Code)
	}
	if record.Batch.TotalWeight != 200 {
		t.Fatalf("expected total weight 200, got %v", record.Batch.TotalWeight)
	}
	if len(record.Members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(record.Members))
	}
	first := record.Members[0]
	if first.Tree.Code != "T-301" || first.Tree.FarmCode != "FARM-01" || first.Tree.FarmerName != "Somchai" {
		t.Fatalf("unexpected first member tree: %+v", first.Tree)
	}
	if first.CheckedInAt == nil {
		t.Fatalf("expected checked-in timestamp on member")
	}
	if record.QueriedAt.IsZero() {
		t.Fatalf("expected queriedAt to be set")
	}
}

func TestResolve_TimelineMergedDateAscending(t *testing.T) {
	db := openTestDB(t)
	created := seedTracedBatch(t, db)

	record, err := Resolve(context.Background(), db, created.Code)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(record.Timeline) < 3 {
		t.Fatalf("expected at least 3 timeline entries, got %d", len(record.Timeline))
	}
	for i := 1; i < len(record.Timeline); i++ {
		if record.Timeline[i].Date.Before(record.Timeline[i-1].Date) {
			t.Fatalf("timeline out of order at %d: %v before %v", i, record.Timeline[i].Date, record.Timeline[i-1].Date)
		}
	}

	// The pesticide entry from the second tree sits between the first
	// tree's watering and pruning entries.
	var pesticide *TimelineEntry
	for i := range record.Timeline {
		if record.Timeline[i].Chemical != "" {
			pesticide = &record.Timeline[i]
			break
		}
	}
	if pesticide == nil {
		t.Fatalf("expected a pesticide entry in the timeline")
	}
	if pesticide.TreeCode != "T-302" || pesticide.Chemical != "Abamectin" || pesticide.Dosage != "20 ml / 20 L" {
		t.Fatalf("unexpected pesticide entry: %+v", pesticide)
	}
	for _, entry := range record.Timeline {
		if entry.Chemical == "" && entry.Dosage != "" {
			t.Fatalf("non-pesticide entry carries dosage: %+v", entry)
		}
	}
}

func TestResolve_ByLocatorMatchesByCode(t *testing.T) {
	db := openTestDB(t)
	created := seedTracedBatch(t, db)

	byCode, err := Resolve(context.Background(), db, created.Code)
	if err != nil {
		t.Fatalf("resolve by code: %v", err)
	}
	byLocator, err := Resolve(context.Background(), db, qrlabel.BuildPayload("https://trace.example.com", created.Code))
	if err != nil {
		t.Fatalf("resolve by locator: %v", err)
	}
	if byLocator.Batch != byCode.Batch {
		t.Fatalf("locator and code resolved different batches: %+v vs %+v", byLocator.Batch, byCode.Batch)
	}
	if len(byLocator.Members) != len(byCode.Members) || len(byLocator.Timeline) != len(byCode.Timeline) {
		t.Fatalf("locator and code resolved different records")
	}
}

func TestResolve_QRSectionReflectsIssuanceAndScans(t *testing.T) {
	db := openTestDB(t)
	created := seedTracedBatch(t, db)
	ctx := context.Background()

	before, err := Resolve(ctx, db, created.Code)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if before.QR != nil {
		t.Fatalf("expected no QR section before issuance, got %+v", before.QR)
	}

	issued, err := qrlabel.Issue(ctx, db, nil, 5, created.ID, "https://trace.example.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := qrlabel.RecordScan(ctx, db, created.Code); err != nil {
			t.Fatalf("scan: %v", err)
		}
	}

	after, err := Resolve(ctx, db, created.Code)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if after.QR == nil {
		t.Fatalf("expected QR section after issuance")
	}
	if after.QR.Payload != issued.Payload {
		t.Fatalf("expected payload %s, got %s", issued.Payload, after.QR.Payload)
	}
	if after.QR.ScanCount != 2 {
		t.Fatalf("expected scan count 2, got %d", after.QR.ScanCount)
	}

	// Resolving is a pure read and must not advance the counter.
	again, err := Resolve(ctx, db, created.Code)
	if err != nil {
		t.Fatalf("resolve again: %v", err)
	}
	if again.QR.ScanCount != 2 {
		t.Fatalf("resolve incremented scan count to %d", again.QR.ScanCount)
	}
}

func TestResolve_UnknownCodeNotFound(t *testing.T) {
	db := openTestDB(t)
	if _, err := Resolve(context.Background(), db, "BATCH-1999-9999"); !errors.Is(err, faults.ErrNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}
