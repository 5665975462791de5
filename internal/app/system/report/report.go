// internal/app/system/report/report.go

// Package report builds the 24-hour activity report. The same report
// feeds the JSON endpoint and the daily email.
package report

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/stockboard/stockboard/internal/app/store/actions"
	"github.com/stockboard/stockboard/internal/app/store/dailysessions"
	"github.com/stockboard/stockboard/internal/app/store/errorlog"
	"github.com/stockboard/stockboard/internal/app/store/predictions"
	"github.com/stockboard/stockboard/internal/app/store/rawsessions"
)

// Window is the reporting lookback.
const Window = 24 * time.Hour

// TopUserLimit caps the per-user listing.
const TopUserLimit = 10

// ErrorLimit caps the error listing.
const ErrorLimit = 10

// BranchActivity is one branch's merged view over the window. Data
// comes from three places: the consolidated daily records, the raw
// session rows, and the action stream. A branch that shows up in any
// of them gets a row; branch names are compared exactly.
type BranchActivity struct {
	Branch       string    `json:"branch"`
	Users        int       `json:"users"`
	OnlineNow    int       `json:"onlineNow"`
	ActiveTimeMs int64     `json:"activeTimeMs"`
	LastActivity time.Time `json:"lastActivity"`

	Exports      int64     `json:"exports"`
	Downloads    int64     `json:"downloads"`
	Predictions  int64     `json:"predictions"`
	Views        int64     `json:"views"`
	LastAction   string    `json:"lastAction,omitempty"`
	LastActionAt time.Time `json:"lastActionAt,omitempty"`
}

// UserActivity is one user's totals over the window.
type UserActivity struct {
	UserID       string    `json:"userId"`
	Username     string    `json:"username"`
	ActiveTimeMs int64     `json:"activeTimeMs"`
	IdleTimeMs   int64     `json:"idleTimeMs"`
	LastActivity time.Time `json:"lastActivity"`
}

// ActionCount is one action type's tally over the window.
type ActionCount struct {
	ActionType string `json:"actionType"`
	Count      int64  `json:"count"`
}

// ErrorEntry is one server error surfaced in the report.
type ErrorEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Message   string    `json:"message"`
}

// Report is the assembled 24-hour activity report.
type Report struct {
	GeneratedAt time.Time `json:"generatedAt"`
	WindowStart time.Time `json:"windowStart"`
	WindowEnd   time.Time `json:"windowEnd"`

	TotalUsers      int   `json:"totalUsers"`
	TotalSessions   int64 `json:"totalSessions"`
	ActiveTimeMs    int64 `json:"activeTimeMs"`
	PredictionCount int64 `json:"predictionCount"`
	ExportCount     int64 `json:"exportCount"`

	Branches []BranchActivity `json:"branches"`
	TopUsers []UserActivity   `json:"topUsers"`
	Actions  []ActionCount    `json:"actions"`
	Errors   []ErrorEntry     `json:"errors"`
}

// Generator assembles reports from the activity stores.
type Generator struct {
	daily *dailysessions.Store
	raw   *rawsessions.Store
	acts  *actions.Store
	preds *predictions.Store
	errs  *errorlog.Store
	log   *zap.Logger
}

// NewGenerator creates a report Generator.
func NewGenerator(daily *dailysessions.Store, raw *rawsessions.Store, acts *actions.Store, preds *predictions.Store, errs *errorlog.Store, logger *zap.Logger) *Generator {
	return &Generator{
		daily: daily,
		raw:   raw,
		acts:  acts,
		preds: preds,
		errs:  errs,
		log:   logger,
	}
}

// Generate builds the report for the 24 hours ending at end.
func (g *Generator) Generate(ctx context.Context, end time.Time) (*Report, error) {
	start := end.Add(-Window)
	rep := &Report{
		GeneratedAt: time.Now(),
		WindowStart: start,
		WindowEnd:   end,
	}

	recs, err := g.daily.InWindow(ctx, start, end, "")
	if err != nil {
		return nil, fmt.Errorf("daily records: %w", err)
	}
	users := map[string]bool{}
	for _, r := range recs {
		users[r.UserID] = true
		rep.TotalSessions += r.SessionCount
		rep.ActiveTimeMs += r.TotalActiveTime
	}
	rep.TotalUsers = len(users)

	rep.Branches, err = g.mergeBranches(ctx, start, end)
	if err != nil {
		return nil, err
	}

	top, err := g.daily.TopUsers(ctx, start, end, TopUserLimit)
	if err != nil {
		return nil, fmt.Errorf("top users: %w", err)
	}
	for _, u := range top {
		rep.TopUsers = append(rep.TopUsers, UserActivity{
			UserID:       u.UserID,
			Username:     u.Username,
			ActiveTimeMs: u.ActiveMs,
			IdleTimeMs:   u.IdleMs,
			LastActivity: u.LastActivity,
		})
	}

	counts, err := g.acts.CountByType(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("action counts: %w", err)
	}
	for _, c := range counts {
		rep.Actions = append(rep.Actions, ActionCount{ActionType: c.ActionType, Count: c.Count})
		switch c.ActionType {
		case actions.TypeExportExcel, actions.TypeDownloadReport:
			rep.ExportCount += c.Count
		}
	}

	rep.PredictionCount, err = g.preds.CountInWindow(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("prediction count: %w", err)
	}

	entries, err := g.errs.RecentInWindow(ctx, start, end, ErrorLimit)
	if err != nil {
		return nil, fmt.Errorf("error log: %w", err)
	}
	for _, e := range entries {
		rep.Errors = append(rep.Errors, ErrorEntry{
			Timestamp: e.Timestamp,
			Source:    e.Source,
			Message:   e.Message,
		})
	}

	return rep, nil
}

// mergeBranches folds the three branch sources into one listing. The
// daily records contribute the time totals, the raw session rows
// contribute live presence, and the action stream contributes the
// per-branch counters and the most recent action, which also pulls in
// branches that produced events but no measurable time yet.
func (g *Generator) mergeBranches(ctx context.Context, start, end time.Time) ([]BranchActivity, error) {
	merged := map[string]*BranchActivity{}
	get := func(name string) *BranchActivity {
		if b, ok := merged[name]; ok {
			return b
		}
		b := &BranchActivity{Branch: name}
		merged[name] = b
		return b
	}

	totals, err := g.daily.BranchTotals(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("branch totals: %w", err)
	}
	for _, t := range totals {
		b := get(t.Branch)
		b.Users = len(t.UserIDs)
		b.ActiveTimeMs = t.ActiveMs
		b.LastActivity = t.LastActivity
	}

	sessions, err := g.raw.InWindow(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("raw sessions: %w", err)
	}
	seen := map[string]map[string]bool{}
	for _, s := range sessions {
		b := get(s.Branch)
		if s.EndTime == nil {
			if seen[s.Branch] == nil {
				seen[s.Branch] = map[string]bool{}
			}
			if !seen[s.Branch][s.UserID] {
				seen[s.Branch][s.UserID] = true
				b.OnlineNow++
			}
		}
		if s.LastActivity.After(b.LastActivity) {
			b.LastActivity = s.LastActivity
		}
	}

	sums, err := g.acts.BranchSummaries(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("branch actions: %w", err)
	}
	for _, a := range sums {
		b := get(a.Branch)
		b.Exports = a.Exports
		b.Downloads = a.Downloads
		b.Predictions = a.Predictions
		b.Views = a.Views
		b.LastAction = a.LastAction
		b.LastActionAt = a.LastActionAt
		if a.LastActionAt.After(b.LastActivity) {
			b.LastActivity = a.LastActionAt
		}
	}

	out := make([]BranchActivity, 0, len(merged))
	for _, b := range merged {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ActiveTimeMs != out[j].ActiveTimeMs {
			return out[i].ActiveTimeMs > out[j].ActiveTimeMs
		}
		return out[i].Branch < out[j].Branch
	})
	return out, nil
}

// FormatDuration renders a millisecond count the way the report email
// shows time, e.g. "4h 12m" or "38s".
func FormatDuration(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h == 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dh %dm", h, m)
}
