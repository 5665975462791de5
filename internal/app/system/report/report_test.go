package report

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/stockboard/stockboard/internal/app/store/actions"
	"github.com/stockboard/stockboard/internal/app/store/dailysessions"
	"github.com/stockboard/stockboard/internal/app/store/errorlog"
	"github.com/stockboard/stockboard/internal/app/store/predictions"
	"github.com/stockboard/stockboard/internal/app/store/rawsessions"
	"github.com/stockboard/stockboard/internal/testutil"
)

var end = time.Date(2025, 6, 2, 18, 0, 0, 0, time.UTC)

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		ms   int64
		want string
	}{
		{0, "0s"},
		{38000, "38s"},
		{7 * 60 * 1000, "7m"},
		{(4*60 + 12) * 60 * 1000, "4h 12m"},
		{60 * 60 * 1000, "1h 0m"},
	}
	for _, c := range cases {
		if got := FormatDuration(c.ms); got != c.want {
			t.Errorf("FormatDuration(%d) = %q, want %q", c.ms, got, c.want)
		}
	}
}

func newTestGenerator(t *testing.T) (*Generator, *dailysessions.Store, *rawsessions.Store, *actions.Store, *predictions.Store, *errorlog.Store) {
	db := testutil.SetupTestDB(t)
	daily := dailysessions.New(db)
	raw := rawsessions.New(db, 7*24*time.Hour)
	acts := actions.New(db)
	preds := predictions.New(db)
	errs := errorlog.New(db)
	gen := NewGenerator(daily, raw, acts, preds, errs, zap.NewNop())
	return gen, daily, raw, acts, preds, errs
}

func TestGenerate_Totals(t *testing.T) {
	gen, daily, _, _, _, _ := newTestGenerator(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	in := end.Add(-time.Hour)
	_ = daily.StartSession(ctx, "u1", "alice", "Downtown", "s1", in)
	_ = daily.ApplyDelta(ctx, "u1", "alice", "Downtown", "s1", dailysessions.Delta{ActiveMs: 5000}, in)
	_ = daily.StartSession(ctx, "u2", "bob", "Uptown", "s2", in)
	_ = daily.ApplyDelta(ctx, "u2", "bob", "Uptown", "s2", dailysessions.Delta{ActiveMs: 3000}, in)
	// Activity outside the window stays out of the totals.
	_ = daily.ApplyDelta(ctx, "u3", "carol", "Downtown", "s3", dailysessions.Delta{ActiveMs: 9999}, end.Add(-25*time.Hour))

	rep, err := gen.Generate(ctx, end)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if rep.TotalUsers != 2 {
		t.Errorf("TotalUsers = %d, want 2", rep.TotalUsers)
	}
	if rep.TotalSessions != 2 {
		t.Errorf("TotalSessions = %d, want 2", rep.TotalSessions)
	}
	if rep.ActiveTimeMs != 8000 {
		t.Errorf("ActiveTimeMs = %d, want 8000", rep.ActiveTimeMs)
	}
	if !rep.WindowStart.Equal(end.Add(-Window)) {
		t.Errorf("WindowStart = %v, want %v", rep.WindowStart, end.Add(-Window))
	}
}

func TestGenerate_BranchMergeThreeSources(t *testing.T) {
	gen, daily, raw, acts, _, _ := newTestGenerator(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	in := end.Add(-time.Hour)

	// Downtown has consolidated time and one live session.
	_ = daily.ApplyDelta(ctx, "u1", "alice", "Downtown", "s1", dailysessions.Delta{ActiveMs: 5000}, in)
	_ = raw.Start(ctx, "s1", "u1", "alice", "Downtown", "dashboard", in)

	// Uptown only has a closed raw session.
	_ = raw.Start(ctx, "s2", "u2", "bob", "Uptown", "", in)
	_ = raw.End(ctx, "s2", 0, 0, 0, in.Add(time.Minute))

	// Harbor produced an action but no measurable time yet.
	_ = acts.Insert(ctx, actions.Event{
		UserID: "u3", Username: "carol", Branch: "Harbor",
		ActionType: actions.TypePageView, Timestamp: in,
	})

	rep, err := gen.Generate(ctx, end)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	byBranch := map[string]BranchActivity{}
	for _, b := range rep.Branches {
		byBranch[b.Branch] = b
	}
	if len(byBranch) != 3 {
		t.Fatalf("Branches = %v, want Downtown, Uptown, Harbor", rep.Branches)
	}

	dt := byBranch["Downtown"]
	if dt.ActiveTimeMs != 5000 || dt.Users != 1 || dt.OnlineNow != 1 {
		t.Errorf("Downtown = %+v, want 5000ms, 1 user, 1 online", dt)
	}
	up := byBranch["Uptown"]
	if up.OnlineNow != 0 {
		t.Errorf("Uptown OnlineNow = %d, want 0 (session closed)", up.OnlineNow)
	}
	if _, ok := byBranch["Harbor"]; !ok {
		t.Error("Harbor should appear from the action stream alone")
	}

	// Sorted by active time, most active branch first.
	if rep.Branches[0].Branch != "Downtown" {
		t.Errorf("first branch = %s, want Downtown", rep.Branches[0].Branch)
	}
}

func TestGenerate_BranchActionCounters(t *testing.T) {
	gen, daily, _, acts, _, _ := newTestGenerator(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	in := end.Add(-time.Hour)
	_ = daily.ApplyDelta(ctx, "u1", "alice", "Downtown", "s1", dailysessions.Delta{ActiveMs: 5000}, in)

	seed := []struct {
		at     string
		offset time.Duration
	}{
		{actions.TypeExportExcel, 0},
		{actions.TypeExportExcel, time.Minute},
		{actions.TypeDownloadReport, 2 * time.Minute},
		{actions.TypePredictionGenerated, 3 * time.Minute},
		{actions.TypePredictionViewed, 4 * time.Minute},
		{actions.TypePageView, 5 * time.Minute},
	}
	for _, s := range seed {
		_ = acts.Insert(ctx, actions.Event{
			UserID: "u1", Username: "alice", Branch: "Downtown",
			ActionType: s.at, Timestamp: in.Add(s.offset),
		})
	}

	rep, err := gen.Generate(ctx, end)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(rep.Branches) != 1 {
		t.Fatalf("Branches = %v, want Downtown only", rep.Branches)
	}

	b := rep.Branches[0]
	if b.Exports != 2 || b.Downloads != 1 || b.Predictions != 2 || b.Views != 1 {
		t.Errorf("counters = %+v, want 2 exports, 1 download, 2 predictions, 1 view", b)
	}
	if b.LastAction != actions.TypePageView {
		t.Errorf("LastAction = %s, want the newest event type %s", b.LastAction, actions.TypePageView)
	}
	// The newest action is later than the daily record's activity, so it
	// wins the last-connection reconciliation.
	if !b.LastActivity.Equal(in.Add(5 * time.Minute)) {
		t.Errorf("LastActivity = %v, want %v", b.LastActivity, in.Add(5*time.Minute))
	}
}

func TestGenerate_OnlineNowDedupesUser(t *testing.T) {
	gen, _, raw, _, _, _ := newTestGenerator(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	in := end.Add(-time.Hour)
	// One user with two open sessions (two browser tabs) counts once.
	_ = raw.Start(ctx, "s1", "u1", "alice", "Downtown", "", in)
	_ = raw.Start(ctx, "s2", "u1", "alice", "Downtown", "", in.Add(time.Minute))

	rep, err := gen.Generate(ctx, end)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(rep.Branches) != 1 || rep.Branches[0].OnlineNow != 1 {
		t.Errorf("Branches = %+v, want one branch with OnlineNow 1", rep.Branches)
	}
}

func TestGenerate_ActionAndExportCounts(t *testing.T) {
	gen, _, _, acts, preds, _ := newTestGenerator(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	in := end.Add(-time.Hour)
	for _, at := range []string{
		actions.TypePageView, actions.TypePageView,
		actions.TypeExportExcel, actions.TypeDownloadReport,
	} {
		_ = acts.Insert(ctx, actions.Event{
			UserID: "u1", Username: "alice", ActionType: at, Timestamp: in,
		})
	}
	_, _ = preds.Insert(ctx, predictions.Prediction{
		UserID: "u1", Username: "alice", Branch: "Downtown",
		ProductCount: 3, GeneratedAt: in,
	})

	rep, err := gen.Generate(ctx, end)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if rep.ExportCount != 2 {
		t.Errorf("ExportCount = %d, want 2", rep.ExportCount)
	}
	if rep.PredictionCount != 1 {
		t.Errorf("PredictionCount = %d, want 1", rep.PredictionCount)
	}
	counts := map[string]int64{}
	for _, a := range rep.Actions {
		counts[a.ActionType] = a.Count
	}
	if counts[actions.TypePageView] != 2 {
		t.Errorf("page_view count = %d, want 2", counts[actions.TypePageView])
	}
}

func TestGenerate_ErrorListCapped(t *testing.T) {
	gen, _, _, _, _, errs := newTestGenerator(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	in := end.Add(-time.Hour)
	for i := 0; i < ErrorLimit+5; i++ {
		_ = errs.Insert(ctx, errorlog.Entry{
			Source:    "activity-session",
			Message:   "write failed",
			Timestamp: in.Add(time.Duration(i) * time.Second),
		})
	}

	rep, err := gen.Generate(ctx, end)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(rep.Errors) != ErrorLimit {
		t.Errorf("Errors = %d entries, want %d", len(rep.Errors), ErrorLimit)
	}
}

func TestGenerate_TopUsersCapped(t *testing.T) {
	gen, daily, _, _, _, _ := newTestGenerator(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	for i := 0; i < TopUserLimit+3; i++ {
		uid := string(rune('a' + i))
		at := end.Add(-time.Hour).Add(time.Duration(i) * time.Minute)
		_ = daily.ApplyDelta(ctx, uid, uid, "Downtown", "s-"+uid, dailysessions.Delta{ActiveMs: 100}, at)
	}

	rep, err := gen.Generate(ctx, end)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(rep.TopUsers) != TopUserLimit {
		t.Fatalf("TopUsers = %d entries, want %d", len(rep.TopUsers), TopUserLimit)
	}
	// Most recently active user leads the list.
	if rep.TopUsers[0].UserID != string(rune('a'+TopUserLimit+2)) {
		t.Errorf("top user = %s, want the most recently active", rep.TopUsers[0].UserID)
	}
}
