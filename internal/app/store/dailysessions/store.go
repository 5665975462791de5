// internal/app/store/dailysessions/store.go
package dailysessions

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionName is the live collection of per-day consolidated records.
const CollectionName = "daily_sessions"

// Record is the authoritative daily activity row, one per
// (user, branch, calendar day). The time counters only ever grow:
// every mutation below is an atomic $inc or $max, never a
// read-modify-write, so concurrent client sessions cannot lose updates.
type Record struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	UserID      string             `bson:"user_id"`
	Username    string             `bson:"username"`
	Branch      string             `bson:"branch"`
	SessionDate string             `bson:"session_date"` // YYYY-MM-DD (UTC)

	StartTime    time.Time `bson:"start_time"`
	EndTime      time.Time `bson:"end_time,omitempty"`
	SessionIDs   []string  `bson:"session_ids,omitempty"`
	SessionCount int64     `bson:"session_count"`

	TotalActiveTime  int64 `bson:"total_active_time"` // milliseconds
	TotalIdleTime    int64 `bson:"total_idle_time"`   // milliseconds
	InteractionCount int64 `bson:"interaction_count"`

	LastActivity time.Time `bson:"last_activity"`
	LastUpdated  time.Time `bson:"last_updated"`
}

// Delta is the additive increment carried by a sync push.
type Delta struct {
	ActiveMs     int64
	IdleMs       int64
	Interactions int64
}

// DateKey formats the calendar-day key for a timestamp.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// BranchTotal is one branch's aggregate over a query window.
type BranchTotal struct {
	Branch       string    `bson:"_id"`
	ActiveMs     int64     `bson:"active_ms"`
	UserIDs      []string  `bson:"user_ids"`
	LastActivity time.Time `bson:"last_activity"`
}

// UserTotal is one user's aggregate over a query window.
type UserTotal struct {
	UserID       string    `bson:"_id"`
	Username     string    `bson:"username"`
	ActiveMs     int64     `bson:"active_ms"`
	IdleMs       int64     `bson:"idle_ms"`
	LastActivity time.Time `bson:"last_activity"`
}

// Store manages daily session records.
type Store struct {
	c *mongo.Collection
}

// New creates a daily session Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(CollectionName)}
}

// EnsureIndexes creates the upsert key and the window-query indexes.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "branch", Value: 1},
				{Key: "session_date", Value: 1},
			},
			Options: options.Index().SetUnique(true).SetName("idx_daily_key"),
		},
		{
			Keys:    bson.D{{Key: "last_activity", Value: -1}},
			Options: options.Index().SetName("idx_daily_last_activity"),
		},
		{
			Keys:    bson.D{{Key: "session_date", Value: 1}},
			Options: options.Index().SetName("idx_daily_date"),
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

func key(userID, branch, date string) bson.M {
	return bson.M{"user_id": userID, "branch": branch, "session_date": date}
}

// StartSession upserts the daily record for a new client session.
// StartTime is only written on insert; repeat starts from other devices
// on the same day leave it untouched and just register the session id.
func (s *Store) StartSession(ctx context.Context, userID, username, branch, sessionID string, now time.Time) error {
	update := bson.M{
		"$setOnInsert": bson.M{
			"start_time":        now,
			"total_active_time": int64(0),
			"total_idle_time":   int64(0),
			"interaction_count": int64(0),
		},
		"$set": bson.M{
			"username":      username,
			"last_activity": now,
			"last_updated":  now,
		},
		"$addToSet": bson.M{"session_ids": sessionID},
		"$inc":      bson.M{"session_count": int64(1)},
	}
	_, err := s.c.UpdateOne(ctx, key(userID, branch, DateKey(now)), update, options.Update().SetUpsert(true))
	return err
}

// ApplyDelta additively folds a sync push into the daily record. The
// record is upserted so an update that races ahead of its start call
// still lands.
func (s *Store) ApplyDelta(ctx context.Context, userID, username, branch, sessionID string, d Delta, now time.Time) error {
	update := bson.M{
		"$setOnInsert": bson.M{"start_time": now},
		"$set": bson.M{
			"username":      username,
			"last_activity": now,
			"last_updated":  now,
		},
		"$addToSet": bson.M{"session_ids": sessionID},
		"$inc": bson.M{
			"total_active_time": d.ActiveMs,
			"total_idle_time":   d.IdleMs,
			"interaction_count": d.Interactions,
		},
	}
	_, err := s.c.UpdateOne(ctx, key(userID, branch, DateKey(now)), update, options.Update().SetUpsert(true))
	return err
}

// EndSession applies the final delta and advances EndTime. $max keeps
// EndTime forward-only when session ends from different devices arrive
// out of order.
func (s *Store) EndSession(ctx context.Context, userID, username, branch, sessionID string, d Delta, now time.Time) error {
	update := bson.M{
		"$setOnInsert": bson.M{"start_time": now},
		"$set": bson.M{
			"username":      username,
			"last_activity": now,
			"last_updated":  now,
		},
		"$max":      bson.M{"end_time": now},
		"$addToSet": bson.M{"session_ids": sessionID},
		"$inc": bson.M{
			"total_active_time": d.ActiveMs,
			"total_idle_time":   d.IdleMs,
			"interaction_count": d.Interactions,
		},
	}
	_, err := s.c.UpdateOne(ctx, key(userID, branch, DateKey(now)), update, options.Update().SetUpsert(true))
	return err
}

// Get retrieves one daily record, or nil if absent.
func (s *Store) Get(ctx context.Context, userID, branch, date string) (*Record, error) {
	var rec Record
	err := s.c.FindOne(ctx, key(userID, branch, date)).Decode(&rec)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListByUser retrieves all daily records for a user, oldest first.
// The stats recompute path reads these to rebuild lifetime totals.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]Record, error) {
	opts := options.Find().SetSort(bson.D{{Key: "session_date", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var recs []Record
	if err := cur.All(ctx, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// windowFilter always binds both ends of the range. Report queries must
// never silently include data outside [start, end].
func windowFilter(start, end time.Time) bson.M {
	return bson.M{"last_activity": bson.M{"$gte": start, "$lte": end}}
}

// InWindow retrieves the daily records with activity inside [start, end].
func (s *Store) InWindow(ctx context.Context, start, end time.Time, branch string) ([]Record, error) {
	filter := windowFilter(start, end)
	if branch != "" {
		filter["branch"] = branch
	}
	opts := options.Find().SetSort(bson.D{
		{Key: "session_date", Value: 1},
		{Key: "user_id", Value: 1},
	})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var recs []Record
	if err := cur.All(ctx, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// BranchTotals aggregates the window per branch: summed active time,
// distinct users, and the most recent activity timestamp.
func (s *Store) BranchTotals(ctx context.Context, start, end time.Time) ([]BranchTotal, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: windowFilter(start, end)}},
		{{Key: "$group", Value: bson.M{
			"_id":           "$branch",
			"active_ms":     bson.M{"$sum": "$total_active_time"},
			"user_ids":      bson.M{"$addToSet": "$user_id"},
			"last_activity": bson.M{"$max": "$last_activity"},
		}}},
	}
	cur, err := s.c.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var totals []BranchTotal
	if err := cur.All(ctx, &totals); err != nil {
		return nil, err
	}
	return totals, nil
}

// TopUsers aggregates the window per user and returns the most recently
// active ones first.
func (s *Store) TopUsers(ctx context.Context, start, end time.Time, limit int) ([]UserTotal, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: windowFilter(start, end)}},
		{{Key: "$group", Value: bson.M{
			"_id":           "$user_id",
			"username":      bson.M{"$last": "$username"},
			"active_ms":     bson.M{"$sum": "$total_active_time"},
			"idle_ms":       bson.M{"$sum": "$total_idle_time"},
			"last_activity": bson.M{"$max": "$last_activity"},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "last_activity", Value: -1}}}},
		{{Key: "$limit", Value: limit}},
	}
	cur, err := s.c.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var totals []UserTotal
	if err := cur.All(ctx, &totals); err != nil {
		return nil, err
	}
	return totals, nil
}

// FindOlderThan returns daily records whose day is before the cutoff
// date key, oldest first. The archive job feeds on this.
func (s *Store) FindOlderThan(ctx context.Context, cutoffDate string) ([]Record, error) {
	opts := options.Find().SetSort(bson.D{{Key: "session_date", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{"session_date": bson.M{"$lt": cutoffDate}}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var recs []Record
	if err := cur.All(ctx, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// DeleteByIDs removes archived records from the live collection.
func (s *Store) DeleteByIDs(ctx context.Context, ids []primitive.ObjectID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := s.c.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
