// internal/app/store/predictions/store.go
package predictions

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionName holds the history of generated demand predictions.
const CollectionName = "prediction_history"

// Prediction is one stored prediction run.
type Prediction struct {
	ID       primitive.ObjectID `bson:"_id,omitempty"`
	UserID   string             `bson:"user_id"`
	Username string             `bson:"username"`
	Branch   string             `bson:"branch,omitempty"`

	ProductCount int            `bson:"product_count"`
	Horizon      string         `bson:"horizon,omitempty"`
	Result       map[string]any `bson:"result,omitempty"`

	GeneratedAt time.Time `bson:"generated_at"`
}

// Store manages prediction history.
type Store struct {
	c *mongo.Collection
}

// New creates a prediction Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(CollectionName)}
}

// EnsureIndexes creates the history lookup indexes.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "generated_at", Value: -1}},
			Options: options.Index().SetName("idx_pred_time"),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "generated_at", Value: -1}},
			Options: options.Index().SetName("idx_pred_user_time"),
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// Insert stores a prediction run and returns its id.
func (s *Store) Insert(ctx context.Context, p Prediction) (primitive.ObjectID, error) {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	if p.GeneratedAt.IsZero() {
		p.GeneratedAt = time.Now()
	}
	_, err := s.c.InsertOne(ctx, p)
	return p.ID, err
}

// GetByID retrieves one prediction, or nil if absent.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*Prediction, error) {
	var p Prediction
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListByUser retrieves a user's predictions, newest first.
func (s *Store) ListByUser(ctx context.Context, userID string, limit int64) ([]Prediction, error) {
	opts := options.Find().SetSort(bson.D{{Key: "generated_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cur, err := s.c.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var preds []Prediction
	if err := cur.All(ctx, &preds); err != nil {
		return nil, err
	}
	return preds, nil
}

// CountInWindow counts predictions generated inside [start, end].
func (s *Store) CountInWindow(ctx context.Context, start, end time.Time) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{
		"generated_at": bson.M{"$gte": start, "$lte": end},
	})
}
