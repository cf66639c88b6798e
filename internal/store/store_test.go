package store_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/barakshechter/clockadoodledoo/internal/store"
)

func openTestDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.OpenAt(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestInsertAndQueryToday(t *testing.T) {
	db := openTestDB(t)

	now := time.Now()
	start := now.Add(-time.Minute)
	id, err := db.InsertInterval(&store.Interval{
		ClockifyID:  "e1",
		ProjectID:   "p1",
		ProjectName: "Backend",
		Description: "reviewing",
		StartTime:   start,
		EndTime:     now,
		Minutes:     60,
	})
	if err != nil {
		t.Fatal(err)
	}
	if id == 0 {
		t.Error("got id 0, want assigned row id")
	}

	// Yesterday's interval must not appear in today's listing.
	if _, err := db.InsertInterval(&store.Interval{
		ProjectID:   "p1",
		ProjectName: "Backend",
		Description: "old",
		StartTime:   start.Add(-48 * time.Hour),
		EndTime:     now.Add(-48 * time.Hour),
		Minutes:     60,
	}); err != nil {
		t.Fatal(err)
	}

	intervals, err := db.GetTodayIntervals()
	if err != nil {
		t.Fatal(err)
	}
	if len(intervals) != 1 {
		t.Fatalf("got %d intervals, want 1", len(intervals))
	}

	iv := intervals[0]
	if iv.ClockifyID != "e1" || iv.ProjectName != "Backend" || iv.Minutes != 60 {
		t.Errorf("got %+v", iv)
	}
	if !iv.StartTime.Equal(start.Truncate(time.Second)) {
		t.Errorf("got start %v, want %v", iv.StartTime, start.Truncate(time.Second))
	}
}

func TestTodayEmpty(t *testing.T) {
	db := openTestDB(t)

	intervals, err := db.GetTodayIntervals()
	if err != nil {
		t.Fatal(err)
	}
	if len(intervals) != 0 {
		t.Errorf("got %d intervals from empty database, want 0", len(intervals))
	}
}
