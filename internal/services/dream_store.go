package services

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/knowreal/knowreal-backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DreamCollection is the MongoDB collection holding dream records.
const DreamCollection = "dreams"

// DreamStore is the record store behind the dream service. Every method that
// touches an existing record filters on both the id and the owner.
type DreamStore interface {
	// Find returns one page of matching dreams plus the unpaged match count.
	Find(ctx context.Context, q DreamQuery) ([]models.Dream, int64, error)
	FindOne(ctx context.Context, ownerID string, id primitive.ObjectID) (*models.Dream, error)
	Insert(ctx context.Context, dream *models.Dream) error
	// Update and Delete report how many records matched the id and owner.
	Update(ctx context.Context, ownerID string, id primitive.ObjectID, fields models.DreamFields, now time.Time) (int64, error)
	Delete(ctx context.Context, ownerID string, id primitive.ObjectID) (int64, error)
}

// MongoDreamStore keeps dreams in MongoDB.
type MongoDreamStore struct {
	col *mongo.Collection
}

func NewMongoDreamStore(db *mongo.Database) *MongoDreamStore {
	return &MongoDreamStore{col: db.Collection(DreamCollection)}
}

// EnsureDreamIndexes configures indexes for the dreams collection.
// Called on startup from main after Mongo has connected.
func EnsureDreamIndexes(ctx context.Context, db *mongo.Database) error {
	col := db.Collection(DreamCollection)

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "owner_id", Value: 1},
				{Key: "occurred_at", Value: -1},
			},
			Options: options.Index().SetName("idx_owner_occurred_at"),
		},
		{
			Keys: bson.D{
				{Key: "owner_id", Value: 1},
				{Key: "mood", Value: 1},
				{Key: "lucidity", Value: 1},
			},
			Options: options.Index().SetName("idx_owner_mood_lucidity"),
		},
	}

	_, err := col.Indexes().CreateMany(ctx, indexes)
	return err
}

// dreamFilter translates q into a bson filter. The owner predicate is always present.
func dreamFilter(q DreamQuery) bson.M {
	filter := bson.M{"owner_id": q.OwnerID}

	if q.Search != "" {
		rx := primitive.Regex{Pattern: regexp.QuoteMeta(q.Search), Options: "i"}
		filter["$or"] = bson.A{
			bson.M{"title": rx},
			bson.M{"content": rx},
			bson.M{"notes": rx},
		}
	}
	if q.LucidOnly {
		filter["lucidity"] = true
	}
	if q.Mood.Valid() {
		filter["mood"] = string(q.Mood)
	}
	return filter
}

// dreamSort orders the most recent dream first; _id keeps insertion order among ties.
func dreamSort() bson.D {
	return bson.D{
		{Key: "occurred_at", Value: -1},
		{Key: "_id", Value: 1},
	}
}

func ownedDreamFilter(ownerID string, id primitive.ObjectID) bson.M {
	return bson.M{"_id": id, "owner_id": ownerID}
}

func dreamUpdate(fields models.DreamFields, now time.Time) bson.M {
	emotions := fields.Emotions
	if emotions == nil {
		emotions = models.Emotions{}
	}
	return bson.M{"$set": bson.M{
		"title":            fields.Title,
		"content":          fields.Content,
		"notes":            fields.Notes,
		"emotions":         emotions,
		"mood":             string(fields.Mood),
		"lucidity":         fields.Lucidity,
		"occurred_at":      fields.OccurredAt,
		"illustration_url": fields.IllustrationURL,
		"updated_at":       now,
	}}
}

func (s *MongoDreamStore) Find(ctx context.Context, q DreamQuery) ([]models.Dream, int64, error) {
	filter := dreamFilter(q)

	total, err := s.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	findOptions := options.Find().
		SetSort(dreamSort()).
		SetSkip(q.Offset).
		SetLimit(q.Limit)

	cursor, err := s.col.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	dreams := []models.Dream{}
	if err = cursor.All(ctx, &dreams); err != nil {
		return nil, 0, err
	}
	for i := range dreams {
		dreams[i].Normalize()
	}
	return dreams, total, nil
}

func (s *MongoDreamStore) FindOne(ctx context.Context, ownerID string, id primitive.ObjectID) (*models.Dream, error) {
	var dream models.Dream
	err := s.col.FindOne(ctx, ownedDreamFilter(ownerID, id)).Decode(&dream)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrDreamNotFound
	}
	if err != nil {
		return nil, err
	}
	dream.Normalize()
	return &dream, nil
}

func (s *MongoDreamStore) Insert(ctx context.Context, dream *models.Dream) error {
	if dream.ID.IsZero() {
		dream.ID = primitive.NewObjectID()
	}
	_, err := s.col.InsertOne(ctx, dream)
	return err
}

func (s *MongoDreamStore) Update(ctx context.Context, ownerID string, id primitive.ObjectID, fields models.DreamFields, now time.Time) (int64, error) {
	res, err := s.col.UpdateOne(ctx, ownedDreamFilter(ownerID, id), dreamUpdate(fields, now))
	if err != nil {
		return 0, err
	}
	return res.MatchedCount, nil
}

func (s *MongoDreamStore) Delete(ctx context.Context, ownerID string, id primitive.ObjectID) (int64, error) {
	res, err := s.col.DeleteOne(ctx, ownedDreamFilter(ownerID, id))
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
