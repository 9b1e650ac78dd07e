package store

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ayush/rideshare/backend/internal/apperr"
	"github.com/ayush/rideshare/backend/internal/models"
)

const bookingEntity = "booking"

func (s *MongoStore) InsertBooking(ctx context.Context, b *models.Booking) error {
	now := s.now()
	b.ID = primitive.NilObjectID
	b.CreatedAt, b.UpdatedAt = now, now
	res, err := s.bookings.InsertOne(ctx, b)
	if err != nil {
		return classify(bookingEntity, err)
	}
	b.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

// GetBooking loads a booking with its ride. inc controls whether the ride's
// driver and the passenger are joined as well.
func (s *MongoStore) GetBooking(ctx context.Context, id string, inc models.Include) (*models.BookingView, error) {
	oid, err := objectID(bookingEntity, id)
	if err != nil {
		return nil, err
	}
	var b models.Booking
	if err := s.bookings.FindOne(ctx, bson.M{"_id": oid}).Decode(&b); err != nil {
		return nil, classify(bookingEntity, err)
	}
	views, err := s.joinBookings(ctx, []models.Booking{b}, inc)
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *MongoStore) ListBookings(ctx context.Context, inc models.Include) ([]models.BookingView, error) {
	cur, err := s.bookings.Find(ctx, bson.M{}, options.Find().SetSort(newestFirst))
	if err != nil {
		return nil, classify(bookingEntity, err)
	}
	defer cur.Close(ctx)

	var bookings []models.Booking
	if err := cur.All(ctx, &bookings); err != nil {
		return nil, classify(bookingEntity, err)
	}
	return s.joinBookings(ctx, bookings, inc)
}

// TransitionBooking moves a booking from one status to another. The update
// only applies while the stored status still equals from; otherwise the
// current status is reported in a TransitionError.
func (s *MongoStore) TransitionBooking(ctx context.Context, id string, from, to models.Status) (*models.Booking, error) {
	oid, err := objectID(bookingEntity, id)
	if err != nil {
		return nil, err
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var b models.Booking
	err = s.bookings.FindOneAndUpdate(ctx,
		bson.M{"_id": oid, "status": from},
		bson.M{"$set": bson.M{"status": to, "updated_at": s.now()}},
		opts,
	).Decode(&b)
	if err == nil {
		return &b, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, classify(bookingEntity, err)
	}

	var current models.Booking
	if err := s.bookings.FindOne(ctx, bson.M{"_id": oid}).Decode(&current); err != nil {
		return nil, classify(bookingEntity, err)
	}
	return nil, &apperr.TransitionError{From: string(current.Status), To: string(to)}
}

func (s *MongoStore) DeleteBooking(ctx context.Context, id string) error {
	oid, err := objectID(bookingEntity, id)
	if err != nil {
		return err
	}
	res, err := s.bookings.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return classify(bookingEntity, err)
	}
	if res.DeletedCount == 0 {
		return apperr.NotFound(bookingEntity)
	}
	return nil
}

func (s *MongoStore) DeleteAllBookings(ctx context.Context) (int64, error) {
	res, err := s.bookings.DeleteMany(ctx, bson.M{})
	if err != nil {
		return 0, classify(bookingEntity, err)
	}
	return res.DeletedCount, nil
}

// joinBookings resolves rides (and optionally drivers and passengers) with
// one query per referenced collection.
func (s *MongoStore) joinBookings(ctx context.Context, bookings []models.Booking, inc models.Include) ([]models.BookingView, error) {
	views := make([]models.BookingView, len(bookings))
	rideIDs := make([]primitive.ObjectID, len(bookings))
	passengerIDs := make([]primitive.ObjectID, len(bookings))
	for i, b := range bookings {
		views[i].Booking = b
		rideIDs[i] = b.RideID
		passengerIDs[i] = b.PassengerID
	}
	if len(bookings) == 0 {
		return views, nil
	}

	rides, err := s.ridesByID(ctx, rideIDs, inc)
	if err != nil {
		return nil, err
	}
	var passengers map[primitive.ObjectID]*models.User
	if inc.Passenger {
		if passengers, err = s.usersByID(ctx, passengerIDs); err != nil {
			return nil, err
		}
	}
	for i := range views {
		views[i].Ride = rides[views[i].RideID]
		views[i].Passenger = passengers[views[i].PassengerID]
	}
	return views, nil
}
