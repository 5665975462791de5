// internal/app/store/archive/store.go
package archive

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/stockboard/stockboard/internal/app/store/dailysessions"
)

// CollectionName holds summarized daily records moved out of the live
// collection.
const CollectionName = "daily_sessions_archive"

// Summary is the archived form of a daily record. The per-session id
// list is dropped; the counters and time bounds survive so historical
// reporting still adds up.
type Summary struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	UserID      string             `bson:"user_id"`
	Username    string             `bson:"username"`
	Branch      string             `bson:"branch"`
	SessionDate string             `bson:"session_date"`

	StartTime        time.Time `bson:"start_time"`
	EndTime          time.Time `bson:"end_time,omitempty"`
	SessionCount     int64     `bson:"session_count"`
	TotalActiveTime  int64     `bson:"total_active_time"`
	TotalIdleTime    int64     `bson:"total_idle_time"`
	InteractionCount int64     `bson:"interaction_count"`

	ArchivedAt time.Time `bson:"archived_at"`
}

// Summarize converts a live daily record into its archived form.
func Summarize(r dailysessions.Record, archivedAt time.Time) Summary {
	return Summary{
		UserID:           r.UserID,
		Username:         r.Username,
		Branch:           r.Branch,
		SessionDate:      r.SessionDate,
		StartTime:        r.StartTime,
		EndTime:          r.EndTime,
		SessionCount:     r.SessionCount,
		TotalActiveTime:  r.TotalActiveTime,
		TotalIdleTime:    r.TotalIdleTime,
		InteractionCount: r.InteractionCount,
		ArchivedAt:       archivedAt,
	}
}

// Store manages the archive collection.
type Store struct {
	c *mongo.Collection
}

// New creates an archive Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(CollectionName)}
}

// EnsureIndexes creates the archive lookup indexes. The key index is
// unique so re-running an interrupted archive pass cannot duplicate a
// summary.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "branch", Value: 1},
				{Key: "session_date", Value: 1},
			},
			Options: options.Index().SetUnique(true).SetName("idx_archive_key"),
		},
		{
			Keys:    bson.D{{Key: "session_date", Value: 1}},
			Options: options.Index().SetName("idx_archive_date"),
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// Insert upserts one summary by its (user, branch, day) key.
func (s *Store) Insert(ctx context.Context, sum Summary) error {
	filter := bson.M{
		"user_id":      sum.UserID,
		"branch":       sum.Branch,
		"session_date": sum.SessionDate,
	}
	sum.ID = primitive.NilObjectID
	_, err := s.c.ReplaceOne(ctx, filter, sum, options.Replace().SetUpsert(true))
	return err
}

// ListByDateRange retrieves summaries whose day falls inside the
// inclusive date-key range, oldest first.
func (s *Store) ListByDateRange(ctx context.Context, fromDate, toDate string) ([]Summary, error) {
	opts := options.Find().SetSort(bson.D{{Key: "session_date", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{
		"session_date": bson.M{"$gte": fromDate, "$lte": toDate},
	}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var sums []Summary
	if err := cur.All(ctx, &sums); err != nil {
		return nil, err
	}
	return sums, nil
}

// Count returns the total number of archived summaries.
func (s *Store) Count(ctx context.Context) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{})
}
