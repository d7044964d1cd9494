package db

import (
	"context"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/LArkema/dctransistor-project/internal/metrics"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := Connect(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := database.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema failed: %v", err)
	}
	return database
}

func TestEnsureSchema_Idempotent(t *testing.T) {
	database := openTestDB(t)
	if err := database.EnsureSchema(context.Background()); err != nil {
		t.Errorf("second EnsureSchema failed: %v", err)
	}
}

func TestRecordCycle_RoundTrip(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)

	base := time.Now().UTC().Truncate(time.Second)
	first := CycleRecord{
		CycleNumber:      1,
		PolledAt:         base.Add(-time.Minute),
		ReadingsReceived: 3,
		ReadingsResolved: 2,
		Lines: []LineRecord{
			{LineID: "RD", Trains: 2, ForwardOccupancy: 1 << 4, ReverseOccupancy: 1 << 26, ForwardDwell: 1},
			{LineID: "SV", Trains: 0, ForwardOccupancy: 1 << 63},
		},
	}
	second := CycleRecord{
		CycleNumber: 2,
		PolledAt:    base,
		FetchError:  "connection refused",
		Lines:       []LineRecord{},
	}

	id1, err := database.RecordCycle(ctx, first)
	if err != nil {
		t.Fatalf("RecordCycle failed: %v", err)
	}
	if id1 == "" {
		t.Fatal("RecordCycle returned empty id")
	}
	if _, err := database.RecordCycle(ctx, second); err != nil {
		t.Fatalf("RecordCycle failed: %v", err)
	}

	cycles, err := database.RecentCycles(ctx, 10)
	if err != nil {
		t.Fatalf("RecentCycles failed: %v", err)
	}

	first.CycleID = id1
	expected := []CycleRecord{second, first}
	if diff := cmp.Diff(expected, cycles, cmpopts.IgnoreFields(CycleRecord{}, "CycleID")); diff != "" {
		t.Errorf("cycles mismatch (-want +got):\n%s", diff)
	}
	if cycles[1].CycleID != id1 {
		t.Errorf("cycle id = %s, expected %s", cycles[1].CycleID, id1)
	}

	limited, err := database.RecentCycles(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 || limited[0].CycleNumber != 2 {
		t.Errorf("RecentCycles(1) = %+v", limited)
	}
}

func TestCleanup(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)

	old := CycleRecord{CycleNumber: 1, PolledAt: time.Now().Add(-3 * time.Hour), Lines: []LineRecord{{LineID: "RD"}}}
	recent := CycleRecord{CycleNumber: 2, PolledAt: time.Now(), Lines: []LineRecord{{LineID: "RD"}}}
	for _, rec := range []CycleRecord{old, recent} {
		if _, err := database.RecordCycle(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	if err := database.Cleanup(ctx, time.Hour); err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}

	cycles, err := database.RecentCycles(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(cycles) != 1 || cycles[0].CycleNumber != 2 {
		t.Errorf("cycles after cleanup = %+v", cycles)
	}

	var orphans int
	if err := database.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM cycle_lines").Scan(&orphans); err != nil {
		t.Fatal(err)
	}
	if orphans != 1 {
		t.Errorf("cycle_lines rows = %d, expected 1", orphans)
	}
}

func TestBaselines(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)

	missing, err := database.GetBaseline(ctx, "RD", 8, 3)
	if err != nil || missing != nil {
		t.Fatalf("GetBaseline on empty table = %v, %v", missing, err)
	}

	b := metrics.TrainBaseline{
		LineID:      "RD",
		HourOfDay:   8,
		DayOfWeek:   3,
		TrainsMean:  11.5,
		TrainsStd:   1.5,
		SampleCount: 4,
		UpdatedAt:   time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC),
	}
	if err := database.SaveBaseline(ctx, b); err != nil {
		t.Fatalf("SaveBaseline failed: %v", err)
	}
	b.SampleCount = 5
	if err := database.SaveBaseline(ctx, b); err != nil {
		t.Fatalf("SaveBaseline upsert failed: %v", err)
	}

	got, err := database.GetBaseline(ctx, "RD", 8, 3)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(&b, got); diff != "" {
		t.Errorf("baseline mismatch (-want +got):\n%s", diff)
	}
}

func TestBaselineLearnerWithSQLite(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	learner := metrics.NewBaselineLearner(database)

	learner.Observe(ctx, map[string]int{"RD": 6})
	learner.Observe(ctx, map[string]int{"RD": 8})

	now := time.Now()
	got, err := database.GetBaseline(ctx, "RD", now.Hour(), int(now.Weekday()))
	if err != nil {
		t.Fatal(err)
	}
	// An hour boundary between the two observations splits the samples.
	if got == nil {
		t.Skip("observations straddled an hour boundary")
	}
	if got.SampleCount == 2 && got.TrainsMean != 7 {
		t.Errorf("mean = %f, expected 7", got.TrainsMean)
	}
}

func TestConnect_AppliesCyclePragmas(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	tests := []struct {
		pragma   string
		expected string
	}{
		{"journal_mode", "wal"},
		{"foreign_keys", "1"},
		{"busy_timeout", "5000"},
		{"synchronous", "1"},
		{"temp_store", "2"},
	}
	for _, tc := range tests {
		t.Run(tc.pragma, func(t *testing.T) {
			var got string
			if err := database.conn.QueryRowContext(ctx, "PRAGMA "+tc.pragma).Scan(&got); err != nil {
				t.Fatalf("PRAGMA %s failed: %v", tc.pragma, err)
			}
			if got != tc.expected {
				t.Errorf("PRAGMA %s = %q, expected %q", tc.pragma, got, tc.expected)
			}
		})
	}
}

func TestSqliteDSN(t *testing.T) {
	dsn := sqliteDSN("/var/lib/cycles.db")
	if !strings.HasPrefix(dsn, "/var/lib/cycles.db?") {
		t.Fatalf("dsn %q does not start with the path", dsn)
	}
	q, err := url.ParseQuery(strings.TrimPrefix(dsn, "/var/lib/cycles.db?"))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(cyclePragmas, q["_pragma"]); diff != "" {
		t.Errorf("dsn pragmas mismatch (-want +got):\n%s", diff)
	}
}
