// internal/app/features/activityapi/handler.go
package activityapi

import (
	"context"
	"net/http"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/stockboard/stockboard/internal/app/store/actions"
	"github.com/stockboard/stockboard/internal/app/store/archive"
	"github.com/stockboard/stockboard/internal/app/store/dailysessions"
	"github.com/stockboard/stockboard/internal/app/store/rawsessions"
	"github.com/stockboard/stockboard/internal/app/store/userstats"
	"github.com/stockboard/stockboard/internal/app/system/errlog"
	"github.com/stockboard/stockboard/internal/app/system/jsonutil"
	"github.com/stockboard/stockboard/internal/app/system/report"
	"github.com/stockboard/stockboard/internal/app/system/tasks"
	"github.com/stockboard/stockboard/internal/app/system/timeouts"
)

// DefaultRetentionDays is how long daily records stay in the live
// collection before the archive pass moves them.
const DefaultRetentionDays = 90

// Handler serves the activity tracking endpoints.
type Handler struct {
	daily   *dailysessions.Store
	stats   *userstats.Store
	raw     *rawsessions.Store
	acts    *actions.Store
	arch    *archive.Store
	reports *report.Generator
	errs    *errlog.Logger
	logger  *zap.Logger
}

// New creates an activity API Handler.
func New(daily *dailysessions.Store, stats *userstats.Store, raw *rawsessions.Store, acts *actions.Store, arch *archive.Store, reports *report.Generator, errs *errlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		daily:   daily,
		stats:   stats,
		raw:     raw,
		acts:    acts,
		arch:    arch,
		reports: reports,
		errs:    errs,
		logger:  logger,
	}
}

// HandleSession processes a session lifecycle call: start, periodic
// delta push, or end. All three fold into the same three places: the
// raw session row, the daily record, and the user's lifetime stats.
func (h *Handler) HandleSession(w http.ResponseWriter, r *http.Request) {
	var in sessionInput
	if err := jsonutil.Decode(r, &in); err != nil {
		jsonutil.BadRequest(w, "invalid JSON body")
		return
	}
	if msg := in.validate(); msg != "" {
		jsonutil.BadRequest(w, msg)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	now := time.Now()
	delta := dailysessions.Delta{
		ActiveMs:     in.ActiveTime,
		IdleMs:       in.IdleTime,
		Interactions: in.Interactions,
	}
	date := dailysessions.DateKey(now)

	var err error
	switch in.Action {
	case actionStartSession:
		if err = h.raw.Start(ctx, in.SessionID, in.UserID, in.Username, in.Branch, in.Page, now); err == nil {
			if err = h.daily.StartSession(ctx, in.UserID, in.Username, in.Branch, in.SessionID, now); err == nil {
				err = h.stats.Fold(ctx, in.UserID, in.Username, in.Branch, date, dailysessions.Delta{}, 1, now)
			}
		}
	case actionUpdateSession:
		if err = h.raw.ApplyDelta(ctx, in.SessionID, in.Page, in.ActiveTime, in.IdleTime, in.Interactions, now); err == nil {
			if err = h.daily.ApplyDelta(ctx, in.UserID, in.Username, in.Branch, in.SessionID, delta, now); err == nil {
				err = h.stats.Fold(ctx, in.UserID, in.Username, in.Branch, date, delta, 0, now)
			}
		}
	case actionEndSession:
		if err = h.raw.End(ctx, in.SessionID, in.ActiveTime, in.IdleTime, in.Interactions, now); err == nil {
			if err = h.daily.EndSession(ctx, in.UserID, in.Username, in.Branch, in.SessionID, delta, now); err == nil {
				err = h.stats.Fold(ctx, in.UserID, in.Username, in.Branch, date, delta, 0, now)
			}
		}
	}
	if err != nil {
		h.errs.Record(ctx, "activity-session", err,
			zap.String("user_id", in.UserID),
			zap.String("action", in.Action))
		jsonutil.InternalError(w, "failed to record session activity")
		return
	}

	jsonutil.Success(w, map[string]any{"sessionId": in.SessionID})
}

func (in *sessionInput) validate() string {
	switch in.Action {
	case actionStartSession, actionUpdateSession, actionEndSession:
	case "":
		return "action is required"
	default:
		return "unknown action"
	}
	switch {
	case in.UserID == "":
		return "userId is required"
	case in.Username == "":
		return "username is required"
	case in.Branch == "":
		return "branch is required"
	case in.SessionID == "":
		return "sessionId is required"
	case in.ActiveTime < 0 || in.IdleTime < 0 || in.Interactions < 0:
		return "time and interaction counts must not be negative"
	}
	return ""
}

// HandleAction records one user action event.
func (h *Handler) HandleAction(w http.ResponseWriter, r *http.Request) {
	var in actionInput
	if err := jsonutil.Decode(r, &in); err != nil {
		jsonutil.BadRequest(w, "invalid JSON body")
		return
	}
	switch {
	case in.UserID == "":
		jsonutil.BadRequest(w, "userId is required")
		return
	case in.Username == "":
		jsonutil.BadRequest(w, "username is required")
		return
	case in.ActionType == "":
		jsonutil.BadRequest(w, "actionType is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	ev := actions.Event{
		UserID:     in.UserID,
		Username:   in.Username,
		Branch:     in.Branch,
		SessionID:  in.SessionID,
		ActionType: in.ActionType,
		Timestamp:  parseTimestamp(in.Timestamp),
	}
	if in.Metadata != nil {
		ev.Metadata = actions.Metadata{
			Page:       in.Metadata.Page,
			DurationMs: in.Metadata.Duration,
			ActionData: in.Metadata.ActionData,
		}
	}

	if err := h.acts.Insert(ctx, ev); err != nil {
		h.errs.Record(ctx, "activity-actions", err,
			zap.String("user_id", in.UserID),
			zap.String("action_type", in.ActionType))
		jsonutil.InternalError(w, "failed to record action")
		return
	}

	// Page views also feed the lifetime most-visited-pages counters.
	// The action log write already succeeded, so a counter failure is
	// recorded but does not fail the request.
	if in.ActionType == actions.TypePageView && in.Metadata != nil && in.Metadata.Page != "" {
		if err := h.stats.RecordPageView(ctx, in.UserID, in.Username, in.Metadata.Page, time.Now()); err != nil {
			h.errs.Record(ctx, "activity-actions", err,
				zap.String("user_id", in.UserID))
		}
	}

	jsonutil.Success(w, nil)
}

// parseTimestamp accepts the client's RFC 3339 timestamp, falling back
// to server time when absent or unparseable.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Now()
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Now()
	}
	return t
}

// HandleReport serves two report shapes. Without a period parameter it
// returns the trailing 24-hour summary report, the same one the daily
// email carries. With period=week|month|quarter|year|custom it returns
// a per-day per-user rollup of the daily records inside the window,
// optionally filtered to one branch.
func (h *Handler) HandleReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	period := q.Get("period")

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	if period == "" {
		rep, err := h.reports.Generate(ctx, time.Now())
		if err != nil {
			h.errs.Record(ctx, "activity-report", err)
			jsonutil.InternalError(w, "failed to generate report")
			return
		}
		jsonutil.OK(w, map[string]any{"success": true, "report": rep})
		return
	}

	start, end, msg := periodWindow(period, q.Get("startDate"), q.Get("endDate"), time.Now())
	if msg != "" {
		jsonutil.BadRequest(w, msg)
		return
	}

	recs, err := h.daily.InWindow(ctx, start, end, q.Get("branch"))
	if err != nil {
		h.errs.Record(ctx, "activity-report", err, zap.String("period", period))
		jsonutil.InternalError(w, "failed to generate report")
		return
	}

	days, branches := rollupDays(recs)
	jsonutil.OK(w, map[string]any{
		"success":   true,
		"period":    period,
		"startDate": dailysessions.DateKey(start),
		"endDate":   dailysessions.DateKey(end),
		"branches":  branches,
		"data":      days,
	})
}

// periodWindow resolves a named period to a concrete [start, end]
// window ending now. Custom periods take explicit calendar dates; the
// end date is inclusive.
func periodWindow(period, startStr, endStr string, now time.Time) (start, end time.Time, errMsg string) {
	switch period {
	case periodWeek:
		return now.AddDate(0, 0, -7), now, ""
	case periodMonth:
		return now.AddDate(0, -1, 0), now, ""
	case periodQuarter:
		return now.AddDate(0, -3, 0), now, ""
	case periodYear:
		return now.AddDate(-1, 0, 0), now, ""
	case periodCustom:
		s, err := time.Parse("2006-01-02", startStr)
		if err != nil {
			return start, end, "startDate must be YYYY-MM-DD"
		}
		e, err := time.Parse("2006-01-02", endStr)
		if err != nil {
			return start, end, "endDate must be YYYY-MM-DD"
		}
		if e.Before(s) {
			return start, end, "endDate must not precede startDate"
		}
		return s, e.AddDate(0, 0, 1).Add(-time.Millisecond), ""
	default:
		return start, end, "unknown period"
	}
}

// rollupDays groups daily records by calendar day, merging a user's
// rows across branches within the day, and collects the distinct
// branch names seen in the window. Records arrive sorted by date then
// user, so the output preserves that order.
func rollupDays(recs []dailysessions.Record) ([]reportDay, []string) {
	days := []reportDay{}
	dayIdx := map[string]int{}
	userIdx := map[string]int{}
	branchSet := map[string]bool{}

	for _, rec := range recs {
		branchSet[rec.Branch] = true

		di, ok := dayIdx[rec.SessionDate]
		if !ok {
			di = len(days)
			dayIdx[rec.SessionDate] = di
			days = append(days, reportDay{Date: rec.SessionDate})
		}

		uk := rec.SessionDate + "|" + rec.UserID
		ui, ok := userIdx[uk]
		if !ok {
			ui = len(days[di].Users)
			userIdx[uk] = ui
			days[di].Users = append(days[di].Users, reportUser{
				UserID:   rec.UserID,
				Username: rec.Username,
			})
		}

		u := &days[di].Users[ui]
		u.TotalActiveTime += rec.TotalActiveTime
		u.TotalIdleTime += rec.TotalIdleTime
		u.InteractionCount += rec.InteractionCount
		u.SessionCount += rec.SessionCount
	}

	branches := make([]string, 0, len(branchSet))
	for b := range branchSet {
		branches = append(branches, b)
	}
	sort.Strings(branches)
	return days, branches
}

// HandleArchive summarizes and moves old daily records into the
// archive collection.
func (h *Handler) HandleArchive(w http.ResponseWriter, r *http.Request) {
	var in archiveInput
	if err := jsonutil.Decode(r, &in); err != nil && err.Error() != "EOF" {
		jsonutil.BadRequest(w, "invalid JSON body")
		return
	}
	now := time.Now()
	retention := in.RetentionDays
	if in.MonthsToKeep > 0 {
		retention = int(now.Sub(now.AddDate(0, -in.MonthsToKeep, 0)).Hours() / 24)
	}
	if retention <= 0 {
		retention = DefaultRetentionDays
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Batch())
	defer cancel()

	archived, err := tasks.ArchiveDailyRecords(ctx, h.daily, h.arch, retention, now)
	if err != nil {
		h.errs.Record(ctx, "activity-archive", err)
		jsonutil.InternalError(w, "archive pass failed")
		return
	}

	h.logger.Info("archive pass completed",
		zap.Int64("archived", archived),
		zap.Int("retention_days", retention))
	jsonutil.Success(w, map[string]any{"archived": archived})
}

// HandleStats returns a user's lifetime stats. When the stored stats
// are missing or zeroed while daily history exists, they are rebuilt
// from the daily records before responding, so drift heals on read
// instead of surfacing as an error.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		jsonutil.BadRequest(w, "userId is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	st, err := h.stats.Get(ctx, userID)
	if err != nil {
		h.errs.Record(ctx, "activity-stats", err, zap.String("user_id", userID))
		jsonutil.InternalError(w, "failed to load stats")
		return
	}

	if statsDrifted(st) {
		recs, err := h.daily.ListByUser(ctx, userID)
		if err != nil {
			h.errs.Record(ctx, "activity-stats", err, zap.String("user_id", userID))
			jsonutil.InternalError(w, "failed to load daily records")
			return
		}
		if len(recs) > 0 {
			username := recs[len(recs)-1].Username
			st, err = h.stats.Recompute(ctx, userID, username, recs)
			if err != nil {
				h.errs.Record(ctx, "activity-stats", err, zap.String("user_id", userID))
				jsonutil.InternalError(w, "failed to rebuild stats")
				return
			}
			h.logger.Info("lifetime stats rebuilt on read",
				zap.String("user_id", userID),
				zap.Int("daily_records", len(recs)))
		}
	}
	if st == nil {
		jsonutil.NotFound(w, "no activity recorded for user")
		return
	}

	jsonutil.Success(w, map[string]any{
		"userId":             st.UserID,
		"username":           st.Username,
		"totalDays":          st.TotalDays,
		"totalSessions":      st.TotalSessions,
		"totalActiveTime":    st.TotalActiveTime,
		"totalIdleTime":      st.TotalIdleTime,
		"totalInteractions":  st.TotalInteractions,
		"averageActiveTime":  st.AverageActiveMs(),
		"averageSessionTime": st.AverageSessionMs(),
		"mostVisitedPages":   st.MostVisitedPages(10),
		"lastActive":         st.LastSeen,
	})
}

// statsDrifted reports the inconsistency the read path repairs: stats
// missing entirely, or zeroed while daily history may exist.
func statsDrifted(st *userstats.Stats) bool {
	return st == nil || (st.TotalDays == 0 && st.TotalActiveTime == 0)
}

// HandleRecompute rebuilds a user's lifetime stats from their daily
// records. This is the repair path for drifted counters.
func (h *Handler) HandleRecompute(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		jsonutil.BadRequest(w, "userId is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	recs, err := h.daily.ListByUser(ctx, userID)
	if err != nil {
		h.errs.Record(ctx, "activity-recompute", err, zap.String("user_id", userID))
		jsonutil.InternalError(w, "failed to load daily records")
		return
	}
	username := ""
	if len(recs) > 0 {
		username = recs[len(recs)-1].Username
	}

	st, err := h.stats.Recompute(ctx, userID, username, recs)
	if err != nil {
		h.errs.Record(ctx, "activity-recompute", err, zap.String("user_id", userID))
		jsonutil.InternalError(w, "failed to recompute stats")
		return
	}

	jsonutil.Success(w, map[string]any{
		"totalDays":         st.TotalDays,
		"totalSessions":     st.TotalSessions,
		"totalActiveTime":   st.TotalActiveTime,
		"totalIdleTime":     st.TotalIdleTime,
		"totalInteractions": st.TotalInteractions,
	})
}
