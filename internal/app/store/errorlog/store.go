// internal/app/store/errorlog/store.go
package errorlog

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionName holds server-side errors surfaced in the daily report.
const CollectionName = "error_log"

// Entry is one recorded server error.
type Entry struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Source    string             `bson:"source"` // component that produced the error
	Message   string             `bson:"message"`
	UserID    string             `bson:"user_id,omitempty"`
	Path      string             `bson:"path,omitempty"`
	Timestamp time.Time          `bson:"timestamp"`
}

// Store manages the error log.
type Store struct {
	c *mongo.Collection
}

// New creates an error log Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(CollectionName)}
}

// EnsureIndexes creates the time index plus a 30-day TTL so the log
// cannot grow without bound.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_errlog_time"),
		},
		{
			Keys: bson.D{{Key: "timestamp", Value: 1}},
			Options: options.Index().
				SetExpireAfterSeconds(int32((30 * 24 * time.Hour).Seconds())).
				SetName("idx_errlog_ttl"),
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// Insert appends an error entry.
func (s *Store) Insert(ctx context.Context, e Entry) error {
	if e.ID.IsZero() {
		e.ID = primitive.NewObjectID()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	_, err := s.c.InsertOne(ctx, e)
	return err
}

// RecentInWindow retrieves the newest entries inside [start, end],
// capped at limit.
func (s *Store) RecentInWindow(ctx context.Context, start, end time.Time, limit int64) ([]Entry, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(limit)
	cur, err := s.c.Find(ctx, bson.M{
		"timestamp": bson.M{"$gte": start, "$lte": end},
	}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var entries []Entry
	if err := cur.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// CountInWindow counts entries inside [start, end].
func (s *Store) CountInWindow(ctx context.Context, start, end time.Time) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{
		"timestamp": bson.M{"$gte": start, "$lte": end},
	})
}
