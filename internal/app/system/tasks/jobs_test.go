package tasks

import (
	"testing"
	"time"

	"github.com/stockboard/stockboard/internal/app/store/archive"
	"github.com/stockboard/stockboard/internal/app/store/dailysessions"
	"github.com/stockboard/stockboard/internal/testutil"
)

var base = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

func TestArchiveDailyRecords(t *testing.T) {
	db := testutil.SetupTestDB(t)
	daily := dailysessions.New(db)
	arch := archive.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	old := base.AddDate(0, 0, -120)
	d := dailysessions.Delta{ActiveMs: 4000, IdleMs: 500, Interactions: 9}
	if err := daily.ApplyDelta(ctx, "u1", "alice", "Downtown", "s1", d, old); err != nil {
		t.Fatalf("ApplyDelta() error = %v", err)
	}
	if err := daily.ApplyDelta(ctx, "u1", "alice", "Downtown", "s2", d, base); err != nil {
		t.Fatalf("ApplyDelta() error = %v", err)
	}

	archived, err := ArchiveDailyRecords(ctx, daily, arch, 90, base)
	if err != nil {
		t.Fatalf("ArchiveDailyRecords() error = %v", err)
	}
	if archived != 1 {
		t.Errorf("archived = %d, want 1", archived)
	}

	// Counters survive in the summary, the live record is gone.
	sums, err := arch.ListByDateRange(ctx, "2025-01-01", "2025-12-31")
	if err != nil {
		t.Fatalf("ListByDateRange() error = %v", err)
	}
	if len(sums) != 1 {
		t.Fatalf("archive holds %d summaries, want 1", len(sums))
	}
	if sums[0].TotalActiveTime != 4000 || sums[0].SessionDate != dailysessions.DateKey(old) {
		t.Errorf("summary = %+v, want counters from the old record", sums[0])
	}
	live, _ := daily.Get(ctx, "u1", "Downtown", dailysessions.DateKey(old))
	if live != nil {
		t.Error("archived record should be deleted from the live collection")
	}
	recent, _ := daily.Get(ctx, "u1", "Downtown", dailysessions.DateKey(base))
	if recent == nil {
		t.Error("record inside the retention window must stay live")
	}
}

func TestArchiveDailyRecords_RerunConverges(t *testing.T) {
	db := testutil.SetupTestDB(t)
	daily := dailysessions.New(db)
	arch := archive.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := arch.EnsureIndexes(ctx); err != nil {
		t.Fatalf("EnsureIndexes() error = %v", err)
	}

	old := base.AddDate(0, 0, -120)
	d := dailysessions.Delta{ActiveMs: 1000}
	_ = daily.ApplyDelta(ctx, "u1", "alice", "Downtown", "s1", d, old)

	// Simulate a crash after the summary write but before the delete:
	// the summary exists, the live record is still there.
	rec, _ := daily.Get(ctx, "u1", "Downtown", dailysessions.DateKey(old))
	if err := arch.Insert(ctx, archive.Summarize(*rec, base)); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	archived, err := ArchiveDailyRecords(ctx, daily, arch, 90, base)
	if err != nil {
		t.Fatalf("ArchiveDailyRecords() error = %v", err)
	}
	if archived != 1 {
		t.Errorf("archived = %d, want 1", archived)
	}

	count, _ := arch.Count(ctx)
	if count != 1 {
		t.Errorf("archive holds %d summaries after re-run, want 1", count)
	}
	live, _ := daily.Get(ctx, "u1", "Downtown", dailysessions.DateKey(old))
	if live != nil {
		t.Error("re-run should finish the interrupted pass")
	}
}

func TestArchiveDailyRecords_NothingToDo(t *testing.T) {
	db := testutil.SetupTestDB(t)
	daily := dailysessions.New(db)
	arch := archive.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	archived, err := ArchiveDailyRecords(ctx, daily, arch, 90, base)
	if err != nil {
		t.Fatalf("ArchiveDailyRecords() error = %v", err)
	}
	if archived != 0 {
		t.Errorf("archived = %d, want 0", archived)
	}
}
