// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
)

func boolPtr(v bool) *bool { return &v }

func TestMemoryTrailStoreFilter(t *testing.T) {
	store := NewMemoryTrailStore()
	ctx := context.Background()

	entries := []Entry{
		{RunID: "r1", PlanID: "p1", Success: true, Steps: 2},
		{RunID: "r2", PlanID: "p1", Success: false, Steps: 1, Error: "step failed"},
		{RunID: "r3", PlanID: "p2", Success: true, Steps: 3},
	}
	for _, entry := range entries {
		if err := store.Record(ctx, entry); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	byPlan, err := store.List(ctx, Filter{PlanID: "p1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(byPlan) != 2 {
		t.Errorf("expected 2 entries for p1, got %d", len(byPlan))
	}

	failed, err := store.List(ctx, Filter{Success: boolPtr(false)})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(failed) != 1 || failed[0].RunID != "r2" {
		t.Errorf("expected the failed run, got %v", failed)
	}

	limited, err := store.List(ctx, Filter{Limit: 1})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(limited) != 1 || limited[0].RunID != "r1" {
		t.Errorf("expected oldest entry first, got %v", limited)
	}
}

func TestMemoryTrailStoreStampsCreatedAt(t *testing.T) {
	store := NewMemoryTrailStore()
	if err := store.Record(context.Background(), Entry{RunID: "r1", PlanID: "p1"}); err != nil {
		t.Fatalf("record: %v", err)
	}
	entries, _ := store.List(context.Background(), Filter{})
	if len(entries) != 1 || entries[0].CreatedAt.IsZero() {
		t.Errorf("expected created_at to be stamped")
	}
}

func TestSQLiteTrailStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trail.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	store, err := NewSQLiteTrailStore(db)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()

	if err := store.Record(ctx, Entry{
		RunID: "r1", PlanID: "p1", Success: true,
		Steps: 3, Verifications: 3, DurationMs: 120,
	}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := store.Record(ctx, Entry{
		RunID: "r2", PlanID: "p1", Success: false,
		Steps: 1, Verifications: 0, DurationMs: 40, Error: "executor down",
	}); err != nil {
		t.Fatalf("record: %v", err)
	}

	all, err := store.List(ctx, Filter{PlanID: "p1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(all))
	}
	if all[0].RunID != "r1" || all[1].RunID != "r2" {
		t.Errorf("expected insertion order, got %v then %v", all[0].RunID, all[1].RunID)
	}
	if all[1].Error != "executor down" {
		t.Errorf("error text lost: %q", all[1].Error)
	}
	if all[0].Steps != 3 || all[0].Verifications != 3 || all[0].DurationMs != 120 {
		t.Errorf("counts lost: %+v", all[0])
	}

	failed, err := store.List(ctx, Filter{Success: boolPtr(false), Limit: 5})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(failed) != 1 || failed[0].RunID != "r2" {
		t.Errorf("expected only the failed run, got %v", failed)
	}
}

func TestSQLiteTrailStoreNilDB(t *testing.T) {
	if _, err := NewSQLiteTrailStore(nil); err == nil {
		t.Errorf("expected error for nil db")
	}
}
