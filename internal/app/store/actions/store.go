// internal/app/store/actions/store.go
package actions

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionName holds the append-only stream of user action events.
const CollectionName = "activity_actions"

// Action types recorded by clients.
const (
	TypePageView            = "page_view"
	TypeSessionEnd          = "session_end"
	TypeExportExcel         = "export_excel"
	TypeDownloadReport      = "download_report"
	TypePredictionGenerated = "prediction_generated"
	TypePredictionViewed    = "prediction_viewed"
)

// Event is one recorded user action.
type Event struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	UserID     string             `bson:"user_id"`
	Username   string             `bson:"username"`
	Branch     string             `bson:"branch,omitempty"`
	SessionID  string             `bson:"session_id,omitempty"`
	ActionType string             `bson:"action_type"`
	Metadata   Metadata           `bson:"metadata,omitempty"`
	Timestamp  time.Time          `bson:"timestamp"`
	CreatedAt  time.Time          `bson:"created_at"`
}

// Metadata carries the per-type detail fields.
type Metadata struct {
	Page       string         `bson:"page,omitempty"`
	DurationMs int64          `bson:"duration_ms,omitempty"`
	ActionData map[string]any `bson:"action_data,omitempty"`
}

// TypeCount is one action type's tally over a query window.
type TypeCount struct {
	ActionType string `bson:"_id"`
	Count      int64  `bson:"count"`
}

// Store manages action events.
type Store struct {
	c *mongo.Collection
}

// New creates an action event Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(CollectionName)}
}

// EnsureIndexes creates the windowed-query indexes.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_actions_time"),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_actions_user_time"),
		},
		{
			Keys:    bson.D{{Key: "action_type", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_actions_type_time"),
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// Insert appends an action event.
func (s *Store) Insert(ctx context.Context, ev Event) error {
	if ev.ID.IsZero() {
		ev.ID = primitive.NewObjectID()
	}
	now := time.Now()
	ev.CreatedAt = now
	if ev.Timestamp.IsZero() {
		ev.Timestamp = now
	}
	_, err := s.c.InsertOne(ctx, ev)
	return err
}

func windowFilter(start, end time.Time) bson.M {
	return bson.M{"timestamp": bson.M{"$gte": start, "$lte": end}}
}

// InWindow retrieves events inside [start, end], newest first.
func (s *Store) InWindow(ctx context.Context, start, end time.Time, limit int64) ([]Event, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cur, err := s.c.Find(ctx, windowFilter(start, end), opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var events []Event
	if err := cur.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// CountByType tallies events per action type inside [start, end].
func (s *Store) CountByType(ctx context.Context, start, end time.Time) ([]TypeCount, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: windowFilter(start, end)}},
		{{Key: "$group", Value: bson.M{
			"_id":   "$action_type",
			"count": bson.M{"$sum": 1},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}}}},
	}
	cur, err := s.c.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var counts []TypeCount
	if err := cur.All(ctx, &counts); err != nil {
		return nil, err
	}
	return counts, nil
}

// BranchSummary is one branch's action tally over a query window,
// plus the single most recent action seen for the branch.
type BranchSummary struct {
	Branch       string    `bson:"_id"`
	Exports      int64     `bson:"exports"`
	Downloads    int64     `bson:"downloads"`
	Predictions  int64     `bson:"predictions"`
	Views        int64     `bson:"views"`
	LastAction   string    `bson:"last_action"`
	LastActionAt time.Time `bson:"last_action_at"`
}

// typeTally builds a conditional counter for the branch pipeline.
func typeTally(types ...string) bson.M {
	list := bson.A{}
	for _, t := range types {
		list = append(list, t)
	}
	return bson.M{"$sum": bson.M{"$cond": bson.A{
		bson.M{"$in": bson.A{"$action_type", list}}, 1, 0,
	}}}
}

// BranchSummaries aggregates events per non-empty branch inside
// [start, end]: counters for exports, downloads, predictions and page
// views, and the most recent action. Events are sorted newest first
// before grouping so $first picks the latest one.
func (s *Store) BranchSummaries(ctx context.Context, start, end time.Time) ([]BranchSummary, error) {
	match := windowFilter(start, end)
	match["branch"] = bson.M{"$ne": ""}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$sort", Value: bson.D{{Key: "timestamp", Value: -1}}}},
		{{Key: "$group", Value: bson.M{
			"_id":            "$branch",
			"exports":        typeTally(TypeExportExcel),
			"downloads":      typeTally(TypeDownloadReport),
			"predictions":    typeTally(TypePredictionGenerated, TypePredictionViewed),
			"views":          typeTally(TypePageView),
			"last_action":    bson.M{"$first": "$action_type"},
			"last_action_at": bson.M{"$first": "$timestamp"},
		}}},
	}
	cur, err := s.c.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var sums []BranchSummary
	if err := cur.All(ctx, &sums); err != nil {
		return nil, err
	}
	return sums, nil
}

// Exports retrieves export and download events inside [start, end],
// newest first. This is the export log.
func (s *Store) Exports(ctx context.Context, start, end time.Time, limit int64) ([]Event, error) {
	filter := windowFilter(start, end)
	filter["action_type"] = bson.M{"$in": []string{TypeExportExcel, TypeDownloadReport}}
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var events []Event
	if err := cur.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// CountType counts events of one type inside [start, end].
func (s *Store) CountType(ctx context.Context, actionType string, start, end time.Time) (int64, error) {
	filter := windowFilter(start, end)
	filter["action_type"] = actionType
	return s.c.CountDocuments(ctx, filter)
}

// DeleteOlderThan prunes events older than the cutoff. Returns the
// number removed.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"timestamp": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
