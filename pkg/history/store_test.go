package history

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/riskgate/riskgate/pkg/policy"
	"github.com/riskgate/riskgate/pkg/scoring"
)

func record(id, app string, ts time.Time, status policy.Status, score int) *RunRecord {
	return &RunRecord{
		ID:                 id,
		Timestamp:          ts,
		AppName:            app,
		Status:             status,
		RiskScore:          score,
		TotalFindings:      score / 4,
		SeverityCounts:     scoring.Counts{Medium: score / 4},
		RegressionAccepted: true,
	}
}

func TestStore_SaveGet(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	want := record("run-1", "payments-api", time.Now().UTC(), policy.StatusPass, 8)
	want.Tags = []string{"nightly"}
	if err := store.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Get("run-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.AppName != "payments-api" || got.RiskScore != 8 || got.Status != policy.StatusPass {
		t.Errorf("unexpected record: %+v", got)
	}

	// Mutating the copy must not leak into the store.
	got.Tags[0] = "mutated"
	again, err := store.Get("run-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if again.Tags[0] != "nightly" {
		t.Error("Get should return a defensive copy")
	}
}

func TestStore_Get_NotFound(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	if _, err := store.Get("missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("error should wrap ErrRunNotFound, got: %v", err)
	}
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := store.Save(record("run-1", "api", time.Now().UTC(), policy.StatusWarn, 16)); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reopened, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore (reopen): %v", err)
	}
	got, err := reopened.Get("run-1")
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if got.Status != policy.StatusWarn || got.RiskScore != 16 {
		t.Errorf("unexpected record after reopen: %+v", got)
	}
}

func TestStore_List(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	now := time.Now().UTC()
	runs := []*RunRecord{
		record("run-1", "api", now.Add(-3*time.Hour), policy.StatusPass, 4),
		record("run-2", "api", now.Add(-2*time.Hour), policy.StatusWarn, 16),
		record("run-3", "api", now.Add(-1*time.Hour), policy.StatusFail, 30),
		record("run-4", "other", now, policy.StatusPass, 0),
	}
	for _, r := range runs {
		if err := store.Save(r); err != nil {
			t.Fatalf("Save(%s): %v", r.ID, err)
		}
	}

	got, err := store.List("api", time.Time{}, now.Add(time.Hour), 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d records, want 3", len(got))
	}
	// Newest first
	if got[0].ID != "run-3" || got[2].ID != "run-1" {
		t.Errorf("unexpected order: %s, %s, %s", got[0].ID, got[1].ID, got[2].ID)
	}

	limited, err := store.List("api", time.Time{}, now.Add(time.Hour), 2)
	if err != nil {
		t.Fatalf("List limited: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("got %d records, want 2", len(limited))
	}
}

func TestStore_GetTrend(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	now := time.Now().UTC()
	for i, score := range []int{4, 8, 16, 30} {
		r := record(fmt.Sprintf("run-%d", i), "api", now.Add(time.Duration(i)*time.Hour), policy.StatusPass, score)
		if err := store.Save(r); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	points, err := store.GetTrend("api", time.Time{}, 0)
	if err != nil {
		t.Fatalf("GetTrend: %v", err)
	}
	if len(points) != 4 {
		t.Fatalf("got %d points, want 4", len(points))
	}
	// Oldest first
	if points[0].RiskScore != 4 || points[3].RiskScore != 30 {
		t.Errorf("unexpected trend order: %+v", points)
	}

	capped, err := store.GetTrend("api", time.Time{}, 2)
	if err != nil {
		t.Fatalf("GetTrend capped: %v", err)
	}
	if len(capped) != 2 || capped[1].RiskScore != 30 {
		t.Errorf("capped trend should keep the most recent points: %+v", capped)
	}
}

func TestStore_Compare(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	now := time.Now().UTC()
	base := record("base", "api", now.Add(-time.Hour), policy.StatusWarn, 20)
	base.SeverityCounts = scoring.Counts{Medium: 5}
	curr := record("curr", "api", now, policy.StatusPass, 8)
	curr.SeverityCounts = scoring.Counts{Medium: 2}
	for _, r := range []*RunRecord{base, curr} {
		if err := store.Save(r); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	result, err := store.Compare("base", "curr")
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if result.RiskScoreDelta != -12 {
		t.Errorf("got score delta %d, want -12", result.RiskScoreDelta)
	}
	if result.MediumDelta != -3 {
		t.Errorf("got medium delta %d, want -3", result.MediumDelta)
	}
	if result.StatusChange <= 0 {
		t.Errorf("WARN to PASS should be a positive status change, got %d", result.StatusChange)
	}
	if !result.Improved {
		t.Error("score drop without verdict decline should count as improved")
	}

	if _, err := store.Compare("base", "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("error should wrap ErrRunNotFound, got: %v", err)
	}
}

func TestStore_DeletePrune(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	now := time.Now().UTC()
	if err := store.Save(record("old", "api", now.Add(-48*time.Hour), policy.StatusPass, 4)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Save(record("new", "api", now, policy.StatusPass, 4)); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := store.Delete("missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("error should wrap ErrRunNotFound, got: %v", err)
	}

	pruned, err := store.Prune(24 * time.Hour)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if pruned != 1 {
		t.Errorf("got %d pruned, want 1", pruned)
	}
	if _, err := store.Get("old"); !errors.Is(err, ErrRunNotFound) {
		t.Error("pruned record should be gone")
	}
	if _, err := store.Get("new"); err != nil {
		t.Errorf("recent record should survive pruning: %v", err)
	}
}

func TestStore_StatsAndLatest(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	now := time.Now().UTC()
	if err := store.Save(record("r1", "api", now.Add(-time.Hour), policy.StatusPass, 4)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Save(record("r2", "api", now, policy.StatusWarn, 16)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Save(record("r3", "web", now, policy.StatusPass, 0)); err != nil {
		t.Fatalf("Save: %v", err)
	}

	stats, err := store.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalRuns != 3 || stats.UniqueApps != 2 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats.StorageSizeBytes == 0 {
		t.Error("storage size should be non-zero after saves")
	}

	latest, err := store.GetLatest("api")
	if err != nil {
		t.Fatalf("GetLatest: %v", err)
	}
	if latest.ID != "r2" {
		t.Errorf("got latest %s, want r2", latest.ID)
	}

	if _, err := store.GetLatest("ghost"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("error should wrap ErrRunNotFound, got: %v", err)
	}
}
