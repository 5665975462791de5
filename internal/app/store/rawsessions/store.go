// internal/app/store/rawsessions/store.go
package rawsessions

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionName holds one row per client tracking session.
const CollectionName = "activity_sessions"

// Session end reasons
const (
	EndReasonClient   = "client"   // Client reported end_session
	EndReasonInactive = "inactive" // Closed by the cleanup job
)

// Session is the raw per-client-session row. The daily_sessions
// collection is the consolidated source of truth for reporting; these
// rows exist for live "who is online" queries and per-session audit.
type Session struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	SessionID string             `bson:"session_id"` // client-generated UUID
	UserID    string             `bson:"user_id"`
	Username  string             `bson:"username"`
	Branch    string             `bson:"branch"`

	CurrentPage  string     `bson:"current_page,omitempty"`
	StartTime    time.Time  `bson:"start_time"`
	EndTime      *time.Time `bson:"end_time,omitempty"` // nil while active
	LastActivity time.Time  `bson:"last_activity"`
	EndReason    string     `bson:"end_reason,omitempty"`

	ActiveTime   int64 `bson:"active_time"` // milliseconds
	IdleTime     int64 `bson:"idle_time"`   // milliseconds
	Interactions int64 `bson:"interactions"`

	// TTL expiration
	ExpiresAt time.Time `bson:"expires_at"`

	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// Store manages raw activity session records.
type Store struct {
	c   *mongo.Collection
	ttl time.Duration
}

// New creates a raw session Store. Rows expire ttl after their last
// update.
func New(db *mongo.Database, ttl time.Duration) *Store {
	return &Store{c: db.Collection(CollectionName), ttl: ttl}
}

// EnsureIndexes creates lookup, TTL, and active-query indexes.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "session_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_raw_session_id"),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetName("idx_raw_user"),
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0).SetName("idx_raw_ttl"),
		},
		{
			Keys:    bson.D{{Key: "end_time", Value: 1}, {Key: "last_activity", Value: -1}},
			Options: options.Index().SetName("idx_raw_active"),
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// Start upserts the session row. The same start arriving twice (a
// retried request) leaves a single row.
func (s *Store) Start(ctx context.Context, sessionID, userID, username, branch, page string, now time.Time) error {
	update := bson.M{
		"$setOnInsert": bson.M{
			"start_time":   now,
			"created_at":   now,
			"active_time":  int64(0),
			"idle_time":    int64(0),
			"interactions": int64(0),
		},
		"$set": bson.M{
			"user_id":       userID,
			"username":      username,
			"branch":        branch,
			"current_page":  page,
			"last_activity": now,
			"updated_at":    now,
			"expires_at":    now.Add(s.ttl),
		},
	}
	_, err := s.c.UpdateOne(ctx, bson.M{"session_id": sessionID}, update, options.Update().SetUpsert(true))
	return err
}

// ApplyDelta folds a sync push into the session row.
func (s *Store) ApplyDelta(ctx context.Context, sessionID, page string, activeMs, idleMs, interactions int64, now time.Time) error {
	set := bson.M{
		"last_activity": now,
		"updated_at":    now,
		"expires_at":    now.Add(s.ttl),
	}
	if page != "" {
		set["current_page"] = page
	}
	update := bson.M{
		"$set": set,
		"$inc": bson.M{
			"active_time":  activeMs,
			"idle_time":    idleMs,
			"interactions": interactions,
		},
	}
	_, err := s.c.UpdateOne(ctx, bson.M{"session_id": sessionID}, update)
	return err
}

// End folds the final delta and closes the row. Already-closed rows are
// left alone so a duplicated end cannot double-count.
func (s *Store) End(ctx context.Context, sessionID string, activeMs, idleMs, interactions int64, now time.Time) error {
	update := bson.M{
		"$set": bson.M{
			"end_time":      now,
			"end_reason":    EndReasonClient,
			"last_activity": now,
			"updated_at":    now,
			"expires_at":    now.Add(s.ttl),
		},
		"$inc": bson.M{
			"active_time":  activeMs,
			"idle_time":    idleMs,
			"interactions": interactions,
		},
	}
	_, err := s.c.UpdateOne(ctx, bson.M{"session_id": sessionID, "end_time": nil}, update)
	return err
}

// Get retrieves a session by its client id, or nil if absent.
func (s *Store) Get(ctx context.Context, sessionID string) (*Session, error) {
	var sess Session
	err := s.c.FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&sess)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// Active retrieves open sessions, most recently active first.
func (s *Store) Active(ctx context.Context, limit int64) ([]Session, error) {
	opts := options.Find().SetSort(bson.D{{Key: "last_activity", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cur, err := s.c.Find(ctx, bson.M{"end_time": nil}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var sessions []Session
	if err := cur.All(ctx, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// InWindow retrieves sessions with activity inside [start, end].
func (s *Store) InWindow(ctx context.Context, start, end time.Time) ([]Session, error) {
	cur, err := s.c.Find(ctx, bson.M{
		"last_activity": bson.M{"$gte": start, "$lte": end},
	}, options.Find().SetSort(bson.D{{Key: "last_activity", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var sessions []Session
	if err := cur.All(ctx, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// CloseInactive closes open sessions without activity inside the
// threshold. A client that lost power never sends end_session, so this
// is how those rows get terminated. Returns the number closed.
func (s *Store) CloseInactive(ctx context.Context, threshold time.Duration, now time.Time) (int64, error) {
	res, err := s.c.UpdateMany(ctx,
		bson.M{
			"end_time":      nil,
			"last_activity": bson.M{"$lt": now.Add(-threshold)},
		},
		bson.M{
			"$set": bson.M{
				"end_time":   now,
				"end_reason": EndReasonInactive,
				"updated_at": now,
			},
		},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// CountActive counts currently open sessions.
func (s *Store) CountActive(ctx context.Context) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"end_time": nil})
}
