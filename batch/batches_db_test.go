package batch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"orchardtrace/faults"
	"orchardtrace/harvest"
	"orchardtrace/infrastructure/sqlite"
	"orchardtrace/models"
	"orchardtrace/orchard"
	"orchardtrace/registry"
)

func openTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "batch-test.db")
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

func seedTree(t *testing.T, db *sqlite.DB, code string) int64 {
	t.Helper()
	ctx := context.Background()
	farmer, err := orchard.CreateFarmer(ctx, db, orchard.FarmerInput{Name: "Somchai", Region: "Chanthaburi"})
	if err != nil {
		t.Fatalf("seed farmer: %v", err)
	}
	farm, err := orchard.CreateFarm(ctx, db, orchard.FarmInput{Code: "FARM-" + code, Name: "Hill Farm", FarmerID: farmer.ID})
	if err != nil {
		t.Fatalf("seed farm: %v", err)
	}
	tree, err := orchard.CreateTree(ctx, db, orchard.TreeInput{Code: code, Variety: "Monthong", FarmID: farm.ID})
	if err != nil {
		t.Fatalf("seed tree: %v", err)
	}
	return tree.ID
}

// seedCompletedRequest walks a request through the full state machine
// and returns it ready for batching.
func seedCompletedRequest(t *testing.T, db *sqlite.DB, treeID int64, actualKg float64) int64 {
	t.Helper()
	ctx := context.Background()
	request, err := harvest.Submit(ctx, db, nil, 7, harvest.SubmitInput{
		TreeID:              treeID,
		ExpectedHarvestDate: time.Now().AddDate(0, 0, 7),
		EstimatedQuantity:   actualKg,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := harvest.Approve(ctx, db, nil, 2, request.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := harvest.CheckIn(ctx, db, nil, 3, request.ID, harvest.CheckInInput{
		ActualQuantity: actualKg, GradeA: actualKg,
	}); err != nil {
		t.Fatalf("check in: %v", err)
	}
	if _, err := harvest.Complete(ctx, db, nil, 3, request.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	return request.ID
}

func TestCreate_AggregatesWeightAndSafety(t *testing.T) {
	db := openTestDB(t)
	treeA := seedTree(t, db, "T-100")
	treeB := seedTree(t, db, "T-101")
	reqA := seedCompletedRequest(t, db, treeA, 120.5)
	reqB := seedCompletedRequest(t, db, treeB, 79.5)

	created, err := Create(context.Background(), db, nil, 5, CreateInput{
		RequestIDs:   []int64{reqA, reqB},
		QualityGrade: "A",
		TargetMarket: "EU",
	})
	if err != nil {
		t.Fatalf("create batch: %v", err)
	}
	if created.TotalWeight != 200 {
		t.Fatalf("expected total weight 200, got %.2f", created.TotalWeight)
	}
	if !created.IsSafe {
		t.Fatalf("expected safe batch with clean trees")
	}
	wantPrefix := fmt.Sprintf("BATCH-%d-", time.Now().UTC().Year())
	if !strings.HasPrefix(created.Code, wantPrefix) {
		t.Fatalf("expected code prefix %s, got %s", wantPrefix, created.Code)
	}

	members, err := Members(context.Background(), db, created.ID)
	if err != nil {
		t.Fatalf("members: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}
	for _, member := range members {
		if member.BatchID == nil || *member.BatchID != created.ID {
			t.Fatalf("expected member %d claimed by batch %d", member.ID, created.ID)
		}
	}
}

func TestCreate_UnsafeTreeFreezesUnsafeVerdict(t *testing.T) {
	db := openTestDB(t)
	treeID := seedTree(t, db, "T-102")
	requestID := seedCompletedRequest(t, db, treeID, 100)

	// The pesticide lands after completion, so the batch-time verdict
	// sees it even though submission did not.
	if _, err := registry.UpsertRule(context.Background(), db, nil, 1, registry.RuleInput{
		Name: "Cypermethrin", ActiveIngredient: "cypermethrin", PHIDays: 14,
	}); err != nil {
		t.Fatalf("seed rule: %v", err)
	}
	if _, err := orchard.AppendActivity(context.Background(), db, 1, treeID, orchard.ActivityInput{
		ActivityType: models.ActivityPesticide,
		ActivityDate: time.Now().AddDate(0, 0, -1),
		ChemicalName: "Cypermethrin",
	}); err != nil {
		t.Fatalf("add pesticide: %v", err)
	}

	created, err := Create(context.Background(), db, nil, 5, CreateInput{
		RequestIDs: []int64{requestID}, QualityGrade: "B",
	})
	if err != nil {
		t.Fatalf("create batch: %v", err)
	}
	if created.IsSafe {
		t.Fatalf("expected unsafe batch verdict")
	}
}

func TestCreate_MembershipIsExclusive(t *testing.T) {
	db := openTestDB(t)
	treeID := seedTree(t, db, "T-103")
	requestID := seedCompletedRequest(t, db, treeID, 50)

	if _, err := Create(context.Background(), db, nil, 5, CreateInput{
		RequestIDs: []int64{requestID}, QualityGrade: "A",
	}); err != nil {
		t.Fatalf("first batch: %v", err)
	}

	_, err := Create(context.Background(), db, nil, 5, CreateInput{
		RequestIDs: []int64{requestID}, QualityGrade: "A",
	})
	if !errors.Is(err, faults.ErrConflict) {
		t.Fatalf("expected conflict claiming owned request, got %v", err)
	}
}

func TestCreate_AllOrNothingOnPartialConflict(t *testing.T) {
	db := openTestDB(t)
	treeA := seedTree(t, db, "T-104")
	treeB := seedTree(t, db, "T-105")
	claimed := seedCompletedRequest(t, db, treeA, 40)
	free := seedCompletedRequest(t, db, treeB, 60)

	if _, err := Create(context.Background(), db, nil, 5, CreateInput{
		RequestIDs: []int64{claimed}, QualityGrade: "A",
	}); err != nil {
		t.Fatalf("first batch: %v", err)
	}

	_, err := Create(context.Background(), db, nil, 5, CreateInput{
		RequestIDs: []int64{claimed, free}, QualityGrade: "A",
	})
	if !errors.Is(err, faults.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	// The free request must not be half-claimed.
	current, err := harvest.Get(context.Background(), db, free)
	if err != nil {
		t.Fatalf("get free request: %v", err)
	}
	if current.BatchID != nil {
		t.Fatalf("expected free request unclaimed after failed create, got batch %d", *current.BatchID)
	}
}

func TestCreate_RejectsNonCompletedRequests(t *testing.T) {
	db := openTestDB(t)
	treeID := seedTree(t, db, "T-106")
	request, err := harvest.Submit(context.Background(), db, nil, 7, harvest.SubmitInput{
		TreeID:              treeID,
		ExpectedHarvestDate: time.Now().AddDate(0, 0, 7),
		EstimatedQuantity:   10,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	_, err = Create(context.Background(), db, nil, 5, CreateInput{
		RequestIDs: []int64{request.ID}, QualityGrade: "A",
	})
	if !errors.Is(err, faults.ErrInvalidState) {
		t.Fatalf("expected invalid-state for pending member, got %v", err)
	}
}

func TestCreate_UnknownRequestNotFound(t *testing.T) {
	db := openTestDB(t)
	_, err := Create(context.Background(), db, nil, 5, CreateInput{
		RequestIDs: []int64{12345}, QualityGrade: "A",
	})
	if !errors.Is(err, faults.ErrNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestCreate_CodeSequencePerYear(t *testing.T) {
	db := openTestDB(t)
	treeA := seedTree(t, db, "T-107")
	treeB := seedTree(t, db, "T-108")
	reqA := seedCompletedRequest(t, db, treeA, 10)
	reqB := seedCompletedRequest(t, db, treeB, 20)

	first, err := Create(context.Background(), db, nil, 5, CreateInput{RequestIDs: []int64{reqA}, QualityGrade: "A"})
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := Create(context.Background(), db, nil, 5, CreateInput{RequestIDs: []int64{reqB}, QualityGrade: "A"})
	if err != nil {
		t.Fatalf("second: %v", err)
	}

	year := time.Now().UTC().Year()
	if first.Code != fmt.Sprintf("BATCH-%d-0001", year) || second.Code != fmt.Sprintf("BATCH-%d-0002", year) {
		t.Fatalf("unexpected code sequence: %s, %s", first.Code, second.Code)
	}
}

func TestWriteManifestCSV(t *testing.T) {
	db := openTestDB(t)
	treeID := seedTree(t, db, "T-109")
	requestID := seedCompletedRequest(t, db, treeID, 75.25)

	created, err := Create(context.Background(), db, nil, 5, CreateInput{
		RequestIDs: []int64{requestID}, QualityGrade: "A",
	})
	if err != nil {
		t.Fatalf("create batch: %v", err)
	}

	var buf bytes.Buffer
	if err := writeManifestCSV(context.Background(), db, &buf, created.ID); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	out := buf.String()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 row, got %d lines:\n%s", len(lines), out)
	}
	if !strings.Contains(lines[1], created.Code) || !strings.Contains(lines[1], "T-109") || !strings.Contains(lines[1], "75.25") {
		t.Fatalf("unexpected manifest row: %s", lines[1])
	}
}
