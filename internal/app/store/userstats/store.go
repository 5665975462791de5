// internal/app/store/userstats/store.go
package userstats

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/stockboard/stockboard/internal/app/store/dailysessions"
)

// CollectionName holds one lifetime stats document per user.
const CollectionName = "user_activity_stats"

// Stats is the lifetime fold of a user's daily records. SeenDates
// remembers which calendar days have already contributed a session-day,
// so re-folding the same day never inflates TotalDays. A day worked
// across several branches is still one day.
type Stats struct {
	ID       primitive.ObjectID `bson:"_id,omitempty"`
	UserID   string             `bson:"user_id"`
	Username string             `bson:"username"`

	TotalDays         int64 `bson:"total_days"`
	TotalSessions     int64 `bson:"total_sessions"`
	TotalActiveTime   int64 `bson:"total_active_time"` // milliseconds
	TotalIdleTime     int64 `bson:"total_idle_time"`   // milliseconds
	TotalInteractions int64 `bson:"total_interactions"`

	// PageViews counts views per page path. Keys are stored escaped;
	// use MostVisitedPages to read them back.
	PageViews map[string]int64 `bson:"page_views,omitempty"`

	SeenDates []string  `bson:"seen_session_dates,omitempty"`
	FirstSeen time.Time `bson:"first_seen"`
	LastSeen  time.Time `bson:"last_seen"`
}

// AverageActiveMs is the per-day mean active time, zero when no days
// have been folded yet.
func (s *Stats) AverageActiveMs() int64 {
	if s.TotalDays == 0 {
		return 0
	}
	return s.TotalActiveTime / s.TotalDays
}

// AverageSessionMs is the per-day mean session length, active plus
// idle time.
func (s *Stats) AverageSessionMs() int64 {
	if s.TotalDays == 0 {
		return 0
	}
	return (s.TotalActiveTime + s.TotalIdleTime) / s.TotalDays
}

// PageCount is one page's view tally.
type PageCount struct {
	Page  string `json:"page"`
	Views int64  `json:"views"`
}

// MostVisitedPages returns up to limit pages ordered by view count,
// ties broken by page path.
func (s *Stats) MostVisitedPages(limit int) []PageCount {
	pages := make([]PageCount, 0, len(s.PageViews))
	for k, v := range s.PageViews {
		pages = append(pages, PageCount{Page: unescapePageKey(k), Views: v})
	}
	sort.Slice(pages, func(i, j int) bool {
		if pages[i].Views != pages[j].Views {
			return pages[i].Views > pages[j].Views
		}
		return pages[i].Page < pages[j].Page
	})
	if limit > 0 && len(pages) > limit {
		pages = pages[:limit]
	}
	return pages
}

// Mongo field names cannot contain dots or dollar signs, so page paths
// are stored with the conventional fullwidth substitutes.
var (
	pageKeyEscaper   = strings.NewReplacer(".", "．", "$", "＄")
	pageKeyUnescaper = strings.NewReplacer("．", ".", "＄", "$")
)

func escapePageKey(page string) string { return pageKeyEscaper.Replace(page) }

func unescapePageKey(key string) string { return pageKeyUnescaper.Replace(key) }

// Store manages lifetime user activity stats.
type Store struct {
	c *mongo.Collection
}

// New creates a user stats Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(CollectionName)}
}

// EnsureIndexes creates the per-user uniqueness index. Fold relies on
// this index to detect the insert race between its two paths.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.c.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("idx_stats_user"),
	})
	return err
}

// Fold adds a sync delta into the user's lifetime stats. It takes two
// paths: the first matches only when this calendar day has not been
// seen for the user, incrementing TotalDays alongside the counters;
// when the day is already present the match fails, the upsert trips the
// unique user index, and the fallback applies the counters alone.
// Either path is a single atomic update, so replays and concurrent
// pushes stay exact.
func (s *Store) Fold(ctx context.Context, userID, username, branch, date string, d dailysessions.Delta, sessions int64, now time.Time) error {
	counters := bson.M{
		"total_sessions":     sessions,
		"total_active_time":  d.ActiveMs,
		"total_idle_time":    d.IdleMs,
		"total_interactions": d.Interactions,
	}

	firstSighting := bson.M{
		"$setOnInsert": bson.M{"first_seen": now},
		"$set":         bson.M{"username": username, "last_seen": now},
		"$addToSet":    bson.M{"seen_session_dates": date},
		"$inc": bson.M{
			"total_days":         int64(1),
			"total_sessions":     sessions,
			"total_active_time":  d.ActiveMs,
			"total_idle_time":    d.IdleMs,
			"total_interactions": d.Interactions,
		},
	}
	filter := bson.M{
		"user_id":            userID,
		"seen_session_dates": bson.M{"$ne": date},
	}
	res, err := s.c.UpdateOne(ctx, filter, firstSighting, options.Update().SetUpsert(true))
	if err == nil && (res.MatchedCount > 0 || res.UpsertedCount > 0) {
		return nil
	}
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return err
	}

	// Day already seen: counters only.
	repeat := bson.M{
		"$set": bson.M{"username": username, "last_seen": now},
		"$inc": counters,
	}
	_, err = s.c.UpdateOne(ctx, bson.M{"user_id": userID}, repeat)
	return err
}

// RecordPageView bumps the per-page view counter for a user. Page view
// actions are the only action kind folded into the lifetime stats.
func (s *Store) RecordPageView(ctx context.Context, userID, username, page string, now time.Time) error {
	if page == "" {
		return nil
	}
	update := bson.M{
		"$setOnInsert": bson.M{"first_seen": now},
		"$set":         bson.M{"username": username, "last_seen": now},
		"$inc":         bson.M{"page_views." + escapePageKey(page): int64(1)},
	}
	_, err := s.c.UpdateOne(ctx, bson.M{"user_id": userID}, update, options.Update().SetUpsert(true))
	return err
}

// Get retrieves a user's lifetime stats, or nil if none exist.
func (s *Store) Get(ctx context.Context, userID string) (*Stats, error) {
	var st Stats
	err := s.c.FindOne(ctx, bson.M{"user_id": userID}).Decode(&st)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// Recompute rebuilds a user's lifetime stats from their daily records,
// replacing whatever the incremental fold has accumulated. Drift can
// creep in when pushes are replayed against a restored backup, so this
// is the repair path. Page view counts are left as they are: daily
// records carry no page detail to rebuild them from.
func (s *Store) Recompute(ctx context.Context, userID, username string, recs []dailysessions.Record) (*Stats, error) {
	st := Stats{
		UserID:   userID,
		Username: username,
	}
	seen := map[string]bool{}
	for _, r := range recs {
		if !seen[r.SessionDate] {
			seen[r.SessionDate] = true
			st.TotalDays++
			st.SeenDates = append(st.SeenDates, r.SessionDate)
		}
		st.TotalSessions += r.SessionCount
		st.TotalActiveTime += r.TotalActiveTime
		st.TotalIdleTime += r.TotalIdleTime
		st.TotalInteractions += r.InteractionCount
		if st.FirstSeen.IsZero() || r.StartTime.Before(st.FirstSeen) {
			st.FirstSeen = r.StartTime
		}
		if r.LastActivity.After(st.LastSeen) {
			st.LastSeen = r.LastActivity
		}
	}

	rebuilt := bson.M{
		"$set": bson.M{
			"user_id":            st.UserID,
			"username":           st.Username,
			"total_days":         st.TotalDays,
			"total_sessions":     st.TotalSessions,
			"total_active_time":  st.TotalActiveTime,
			"total_idle_time":    st.TotalIdleTime,
			"total_interactions": st.TotalInteractions,
			"seen_session_dates": st.SeenDates,
			"first_seen":         st.FirstSeen,
			"last_seen":          st.LastSeen,
		},
	}
	_, err := s.c.UpdateOne(ctx, bson.M{"user_id": userID}, rebuilt, options.Update().SetUpsert(true))
	if err != nil {
		return nil, err
	}
	return &st, nil
}
