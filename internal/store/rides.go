package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ayush/rideshare/backend/internal/apperr"
	"github.com/ayush/rideshare/backend/internal/models"
)

const rideEntity = "ride"

func (s *MongoStore) InsertRide(ctx context.Context, r *models.Ride) error {
	now := s.now()
	r.ID = primitive.NilObjectID
	r.CreatedAt, r.UpdatedAt = now, now
	res, err := s.rides.InsertOne(ctx, r)
	if err != nil {
		return classify(rideEntity, err)
	}
	r.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (s *MongoStore) GetRide(ctx context.Context, id string, inc models.Include) (*models.RideView, error) {
	oid, err := objectID(rideEntity, id)
	if err != nil {
		return nil, err
	}
	var r models.Ride
	if err := s.rides.FindOne(ctx, bson.M{"_id": oid}).Decode(&r); err != nil {
		return nil, classify(rideEntity, err)
	}
	views, err := s.withDrivers(ctx, []models.Ride{r}, inc)
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *MongoStore) ListRides(ctx context.Context, inc models.Include) ([]models.RideView, error) {
	cur, err := s.rides.Find(ctx, bson.M{}, options.Find().SetSort(newestFirst))
	if err != nil {
		return nil, classify(rideEntity, err)
	}
	defer cur.Close(ctx)

	var rides []models.Ride
	if err := cur.All(ctx, &rides); err != nil {
		return nil, classify(rideEntity, err)
	}
	return s.withDrivers(ctx, rides, inc)
}

func (s *MongoStore) UpdateRide(ctx context.Context, id string, patch models.RidePatch) (*models.Ride, error) {
	oid, err := objectID(rideEntity, id)
	if err != nil {
		return nil, err
	}
	set := bson.M{"updated_at": s.now()}
	if patch.Origin != nil {
		set["origin"] = *patch.Origin
	}
	if patch.Destination != nil {
		set["destination"] = *patch.Destination
	}
	if patch.Date != nil {
		set["date"] = *patch.Date
	}
	if patch.Time != nil {
		set["time"] = *patch.Time
	}
	if patch.AvailableSeats != nil {
		set["available_seats"] = *patch.AvailableSeats
	}
	if patch.Price != nil {
		set["price"] = *patch.Price
	}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var r models.Ride
	if err := s.rides.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set}, opts).Decode(&r); err != nil {
		return nil, classify(rideEntity, err)
	}
	return &r, nil
}

func (s *MongoStore) DeleteRide(ctx context.Context, id string) error {
	oid, err := objectID(rideEntity, id)
	if err != nil {
		return err
	}
	res, err := s.rides.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return classify(rideEntity, err)
	}
	if res.DeletedCount == 0 {
		return apperr.NotFound(rideEntity)
	}
	return nil
}

func (s *MongoStore) DeleteAllRides(ctx context.Context) (int64, error) {
	res, err := s.rides.DeleteMany(ctx, bson.M{})
	if err != nil {
		return 0, classify(rideEntity, err)
	}
	return res.DeletedCount, nil
}

// ReserveSeats decrements available_seats by n only while enough seats remain.
func (s *MongoStore) ReserveSeats(ctx context.Context, id primitive.ObjectID, n int) error {
	res, err := s.rides.UpdateOne(ctx,
		bson.M{"_id": id, "available_seats": bson.M{"$gte": n}},
		bson.M{"$inc": bson.M{"available_seats": -n}, "$set": bson.M{"updated_at": s.now()}},
	)
	if err != nil {
		return classify(rideEntity, err)
	}
	if res.MatchedCount == 1 {
		return nil
	}
	count, err := s.rides.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return classify(rideEntity, err)
	}
	if count == 0 {
		return apperr.NotFound(rideEntity)
	}
	return apperr.ErrInsufficientSeats
}

// ReleaseSeats gives back seats taken by ReserveSeats.
func (s *MongoStore) ReleaseSeats(ctx context.Context, id primitive.ObjectID, n int) error {
	_, err := s.rides.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$inc": bson.M{"available_seats": n}, "$set": bson.M{"updated_at": s.now()}},
	)
	return classify(rideEntity, err)
}

// ridesByID loads every referenced ride with a single $in query.
func (s *MongoStore) ridesByID(ctx context.Context, ids []primitive.ObjectID, inc models.Include) (map[primitive.ObjectID]*models.RideView, error) {
	out := make(map[primitive.ObjectID]*models.RideView)
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return out, nil
	}
	cur, err := s.rides.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("load rides: %w", err)
	}
	defer cur.Close(ctx)

	var rides []models.Ride
	if err := cur.All(ctx, &rides); err != nil {
		return nil, fmt.Errorf("load rides: %w", err)
	}
	views, err := s.withDrivers(ctx, rides, inc)
	if err != nil {
		return nil, err
	}
	for i := range views {
		out[views[i].ID] = &views[i]
	}
	return out, nil
}

func (s *MongoStore) withDrivers(ctx context.Context, rides []models.Ride, inc models.Include) ([]models.RideView, error) {
	views := make([]models.RideView, len(rides))
	for i, r := range rides {
		views[i].Ride = r
	}
	if !inc.Driver || len(rides) == 0 {
		return views, nil
	}
	ids := make([]primitive.ObjectID, len(rides))
	for i, r := range rides {
		ids[i] = r.DriverID
	}
	drivers, err := s.usersByID(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range views {
		views[i].Driver = drivers[views[i].DriverID]
	}
	return views, nil
}
