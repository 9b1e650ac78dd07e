package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Ride is an offered trip stored in the trips collection. Date and Time are
// kept as the strings the client sent ("2006-01-02", "15:04").
type Ride struct {
	ID             primitive.ObjectID `json:"id"                    bson:"_id,omitempty"`
	Origin         string             `json:"origin"                bson:"origin"`
	Destination    string             `json:"destination"           bson:"destination"`
	Date           string             `json:"date"                  bson:"date"`
	Time           string             `json:"time"                  bson:"time"`
	AvailableSeats int                `json:"availableSeats"        bson:"available_seats"`
	Price          float64            `json:"price"                 bson:"price"`
	Description    string             `json:"description,omitempty" bson:"description,omitempty"`
	DriverID       primitive.ObjectID `json:"driverId"              bson:"driver"`
	CreatedAt      time.Time          `json:"createdAt"             bson:"created_at"`
	UpdatedAt      time.Time          `json:"updatedAt"             bson:"updated_at"`
}

// RideView is a Ride with its driver joined in.
type RideView struct {
	Ride
	Driver *User `json:"driver"`
}

// CreateRideRequest is the JSON body for POST /api/rides. Pointer fields
// distinguish "absent" from zero.
type CreateRideRequest struct {
	Origin         string   `json:"origin"`
	Destination    string   `json:"destination"`
	Date           string   `json:"date"`
	Time           string   `json:"time"`
	AvailableSeats *int     `json:"availableSeats"`
	Price          *float64 `json:"price"`
	Description    string   `json:"description"`
	Phone          string   `json:"phone"`
}

// RidePatch is the JSON body for PUT /api/rides/{id}.
type RidePatch struct {
	Origin         *string  `json:"origin"`
	Destination    *string  `json:"destination"`
	Date           *string  `json:"date"`
	Time           *string  `json:"time"`
	AvailableSeats *int     `json:"availableSeats"`
	Price          *float64 `json:"price"`
	Description    *string  `json:"description"`
}

// Empty reports whether the patch changes nothing.
func (p RidePatch) Empty() bool {
	return p.Origin == nil && p.Destination == nil && p.Date == nil && p.Time == nil &&
		p.AvailableSeats == nil && p.Price == nil && p.Description == nil
}
