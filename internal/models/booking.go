package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Status is the lifecycle state of a Booking.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusDeclined Status = "declined"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusDeclined:
		return true
	}
	return false
}

// Booking is a passenger's seat request stored in the riderequests collection.
type Booking struct {
	ID          primitive.ObjectID `json:"id"          bson:"_id,omitempty"`
	RideID      primitive.ObjectID `json:"rideId"      bson:"ride"`
	PassengerID primitive.ObjectID `json:"passengerId" bson:"passenger"`
	SeatsBooked int                `json:"seatsBooked" bson:"seats_booked"`
	Status      Status             `json:"status"      bson:"status"`
	CreatedAt   time.Time          `json:"createdAt"   bson:"created_at"`
	UpdatedAt   time.Time          `json:"updatedAt"   bson:"updated_at"`
}

// BookingView is the read representation of a Booking. Contact fields are
// only populated once the booking is accepted.
type BookingView struct {
	Booking
	Ride           *RideView `json:"ride"`
	Passenger      *User     `json:"passenger"`
	TotalCost      float64   `json:"totalCost"`
	DriverEmail    *string   `json:"driverEmail"`
	DriverPhone    *string   `json:"driverPhone"`
	PassengerEmail *string   `json:"passengerEmail"`
}

// BookingEvent records one status change of a booking.
type BookingEvent struct {
	ID        int64     `json:"id"`
	BookingID string    `json:"bookingId"`
	From      Status    `json:"from"`
	To        Status    `json:"to"`
	Actor     string    `json:"actor,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// CreateBookingRequest is the JSON body for POST /api/bookings. Passenger is
// the passenger's external identity id.
type CreateBookingRequest struct {
	Ride        string `json:"ride"`
	Passenger   string `json:"passenger"`
	SeatsBooked *int   `json:"seatsBooked"`
	Status      Status `json:"status"`
}

// UpdateBookingRequest is the JSON body for PUT /api/bookings/{id}.
type UpdateBookingRequest struct {
	Status Status `json:"status"`
}
