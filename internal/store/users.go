package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ayush/rideshare/backend/internal/models"
)

const userEntity = "user"

func (s *MongoStore) InsertUser(ctx context.Context, u *models.User) error {
	now := s.now()
	u.ID = primitive.NilObjectID
	u.CreatedAt, u.UpdatedAt = now, now
	res, err := s.users.InsertOne(ctx, u)
	if err != nil {
		return classify(userEntity, err)
	}
	u.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (s *MongoStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	oid, err := objectID(userEntity, id)
	if err != nil {
		return nil, err
	}
	var u models.User
	if err := s.users.FindOne(ctx, bson.M{"_id": oid}).Decode(&u); err != nil {
		return nil, classify(userEntity, err)
	}
	return &u, nil
}

func (s *MongoStore) GetUserByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	var u models.User
	if err := s.users.FindOne(ctx, bson.M{"external_id": externalID}).Decode(&u); err != nil {
		return nil, classify(userEntity, err)
	}
	return &u, nil
}

// LinkExternalID attaches externalID to the user owning email, provided that
// user is not linked to an identity yet.
func (s *MongoStore) LinkExternalID(ctx context.Context, email, externalID string) (*models.User, error) {
	filter := bson.M{"email": email, "external_id": bson.M{"$exists": false}}
	update := bson.M{"$set": bson.M{"external_id": externalID, "updated_at": s.now()}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var u models.User
	if err := s.users.FindOneAndUpdate(ctx, filter, update, opts).Decode(&u); err != nil {
		return nil, classify(userEntity, err)
	}
	return &u, nil
}

// UpsertUserByExternalID inserts u unless a user with the same external id
// exists, and returns whichever record is stored. A unique index violation
// (a concurrent insert, or an email owned by another user) yields
// ErrDuplicate.
func (s *MongoStore) UpsertUserByExternalID(ctx context.Context, u *models.User) (*models.User, error) {
	now := s.now()
	doc := bson.M{"name": u.Name, "created_at": now, "updated_at": now}
	if u.Email != "" {
		doc["email"] = u.Email
	}
	if u.Avatar != "" {
		doc["avatar"] = u.Avatar
	}
	if u.Phone != "" {
		doc["phone"] = u.Phone
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var out models.User
	err := s.users.FindOneAndUpdate(ctx,
		bson.M{"external_id": u.ExternalID},
		bson.M{"$setOnInsert": doc},
		opts,
	).Decode(&out)
	if err != nil {
		return nil, classify(userEntity, err)
	}
	return &out, nil
}

func (s *MongoStore) UpdateUser(ctx context.Context, id string, patch models.UserPatch) (*models.User, error) {
	set := bson.M{}
	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.Email != nil {
		set["email"] = *patch.Email
	}
	if patch.Avatar != nil {
		set["avatar"] = *patch.Avatar
	}
	if patch.Phone != nil {
		set["phone"] = *patch.Phone
	}
	return s.setUser(ctx, id, set)
}

func (s *MongoStore) SetUserAvatar(ctx context.Context, id, url, key string) (*models.User, error) {
	return s.setUser(ctx, id, bson.M{"avatar": url, "avatar_key": key})
}

func (s *MongoStore) setUser(ctx context.Context, id string, set bson.M) (*models.User, error) {
	oid, err := objectID(userEntity, id)
	if err != nil {
		return nil, err
	}
	set["updated_at"] = s.now()
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var u models.User
	if err := s.users.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set}, opts).Decode(&u); err != nil {
		return nil, classify(userEntity, err)
	}
	return &u, nil
}

// DeleteUser removes a user and returns the deleted record.
func (s *MongoStore) DeleteUser(ctx context.Context, id string) (*models.User, error) {
	oid, err := objectID(userEntity, id)
	if err != nil {
		return nil, err
	}
	var u models.User
	if err := s.users.FindOneAndDelete(ctx, bson.M{"_id": oid}).Decode(&u); err != nil {
		return nil, classify(userEntity, err)
	}
	return &u, nil
}

func (s *MongoStore) ListUsers(ctx context.Context) ([]models.User, error) {
	cur, err := s.users.Find(ctx, bson.M{}, options.Find().SetSort(newestFirst))
	if err != nil {
		return nil, classify(userEntity, err)
	}
	defer cur.Close(ctx)

	var users []models.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, classify(userEntity, err)
	}
	return users, nil
}

func (s *MongoStore) DeleteAllUsers(ctx context.Context) (int64, error) {
	res, err := s.users.DeleteMany(ctx, bson.M{})
	if err != nil {
		return 0, classify(userEntity, err)
	}
	return res.DeletedCount, nil
}

// usersByID loads every referenced user with a single $in query.
func (s *MongoStore) usersByID(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*models.User, error) {
	out := make(map[primitive.ObjectID]*models.User)
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return out, nil
	}
	cur, err := s.users.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	defer cur.Close(ctx)

	var users []models.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	for i := range users {
		out[users[i].ID] = &users[i]
	}
	return out, nil
}
