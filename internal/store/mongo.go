package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ayush/rideshare/backend/internal/apperr"
)

// Collection names.
const (
	UsersCollection    = "users"
	RidesCollection    = "trips"
	BookingsCollection = "riderequests"
)

// ErrDuplicate is returned when a write violates a unique index.
var ErrDuplicate = errors.New("duplicate key")

// newestFirst orders documents by creation time, newest first, with the
// ObjectID as a tie-breaker.
var newestFirst = bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}

// MongoStore handles users, rides and bookings in MongoDB.
type MongoStore struct {
	db       *mongo.Database
	users    *mongo.Collection
	rides    *mongo.Collection
	bookings *mongo.Collection
	now      func() time.Time
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		db:       db,
		users:    db.Collection(UsersCollection),
		rides:    db.Collection(RidesCollection),
		bookings: db.Collection(BookingsCollection),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// EnsureIndexes creates the unique identity indexes and the sort indexes.
// external_id and email are only unique among documents that carry them.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "external_id", Value: 1}},
			Options: options.Index().SetName("uniq_external_id").SetUnique(true).
				SetPartialFilterExpression(bson.M{"external_id": bson.M{"$type": "string"}}),
		},
		{
			Keys: bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("uniq_email").SetUnique(true).
				SetPartialFilterExpression(bson.M{"email": bson.M{"$type": "string"}}),
		},
		{Keys: newestFirst},
	})
	if err != nil {
		return fmt.Errorf("users indexes: %w", err)
	}
	if _, err := s.rides.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: newestFirst}); err != nil {
		return fmt.Errorf("trips indexes: %w", err)
	}
	_, err = s.bookings.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: newestFirst},
		{Keys: bson.D{{Key: "ride", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("riderequests indexes: %w", err)
	}
	return nil
}

// Ping checks the server is reachable.
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, nil)
}

// objectID parses a hex id. Malformed ids cannot resolve, so they are
// reported as not found.
func objectID(entity, id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, apperr.NotFound(entity)
	}
	return oid, nil
}

// classify converts driver errors into store errors.
func classify(entity string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return apperr.NotFound(entity)
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%s: %w", entity, ErrDuplicate)
	default:
		return fmt.Errorf("mongo %s: %w", entity, err)
	}
}

func uniqueIDs(ids []primitive.ObjectID) []primitive.ObjectID {
	seen := make(map[primitive.ObjectID]struct{}, len(ids))
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if id.IsZero() {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
