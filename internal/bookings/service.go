package bookings

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ayush/rideshare/backend/internal/apperr"
	"github.com/ayush/rideshare/backend/internal/models"
	"github.com/ayush/rideshare/backend/internal/observability"
)

// SeatPolicy selects how bookings consume ride seats.
type SeatPolicy int

const (
	// Lenient never touches availableSeats; rides can be overbooked.
	Lenient SeatPolicy = iota
	// Strict rejects requests larger than the remaining seats and takes the
	// seats off the ride when a booking is accepted.
	Strict
)

// Store defines the persistence the booking ledger needs.
type Store interface {
	InsertBooking(ctx context.Context, b *models.Booking) error
	GetBooking(ctx context.Context, id string, inc models.Include) (*models.BookingView, error)
	ListBookings(ctx context.Context, inc models.Include) ([]models.BookingView, error)
	TransitionBooking(ctx context.Context, id string, from, to models.Status) (*models.Booking, error)
	DeleteBooking(ctx context.Context, id string) error
	DeleteAllBookings(ctx context.Context) (int64, error)

	GetRide(ctx context.Context, id string, inc models.Include) (*models.RideView, error)
	ReserveSeats(ctx context.Context, rideID primitive.ObjectID, n int) error
	ReleaseSeats(ctx context.Context, rideID primitive.ObjectID, n int) error
}

// Directory resolves passengers by external identity.
type Directory interface {
	ResolveExternalID(ctx context.Context, externalID string) (*models.User, error)
}

// EventLog keeps the status history of bookings.
type EventLog interface {
	Record(ctx context.Context, ev *models.BookingEvent) error
	ListByBooking(ctx context.Context, bookingID string) ([]models.BookingEvent, error)
}

// Service is the booking ledger and workflow.
type Service struct {
	store  Store
	users  Directory
	events EventLog
	policy SeatPolicy
	logger *slog.Logger
}

func NewService(s Store, users Directory, events EventLog, policy SeatPolicy, logger *slog.Logger) *Service {
	return &Service{store: s, users: users, events: events, policy: policy, logger: logger}
}

// Create stores a pending booking for the passenger identified by
// req.Passenger, an external identity id.
func (s *Service) Create(ctx context.Context, req models.CreateBookingRequest) (*models.BookingView, error) {
	req.Ride = strings.TrimSpace(req.Ride)
	req.Passenger = strings.TrimSpace(req.Passenger)

	var missing []string
	if req.Ride == "" {
		missing = append(missing, "ride")
	}
	if req.Passenger == "" {
		missing = append(missing, "passenger")
	}
	if req.SeatsBooked == nil {
		missing = append(missing, "seatsBooked")
	}
	if len(missing) > 0 {
		return nil, apperr.Missing(missing...)
	}
	if *req.SeatsBooked < 1 {
		return nil, apperr.Invalid("seatsBooked", "seatsBooked must be at least 1")
	}
	if req.Status != "" && req.Status != models.StatusPending {
		return nil, apperr.Invalid("status", "new bookings are always pending")
	}

	ride, err := s.store.GetRide(ctx, req.Ride, models.IncludeNone)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.Invalid("ride", "ride not found")
	}
	if err != nil {
		return nil, err
	}
	passenger, err := s.users.ResolveExternalID(ctx, req.Passenger)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.Invalid("passenger", "user not found for booking")
	}
	if err != nil {
		return nil, err
	}
	if s.policy == Strict && *req.SeatsBooked > ride.AvailableSeats {
		return nil, apperr.ErrInsufficientSeats
	}

	b := &models.Booking{
		RideID:      ride.ID,
		PassengerID: passenger.ID,
		SeatsBooked: *req.SeatsBooked,
		Status:      models.StatusPending,
	}
	if err := s.store.InsertBooking(ctx, b); err != nil {
		return nil, err
	}
	s.logger.Info("booking created", "booking_id", b.ID.Hex(), "ride_id", ride.ID.Hex(), "seats", b.SeatsBooked)
	return s.Get(ctx, b.ID.Hex())
}

// Get returns a booking with its ride, driver and passenger.
func (s *Service) Get(ctx context.Context, id string) (*models.BookingView, error) {
	v, err := s.store.GetBooking(ctx, id, models.IncludeAll)
	if err != nil {
		return nil, err
	}
	present(v)
	return v, nil
}

// List returns every booking, newest first, with the same decoration as Get.
func (s *Service) List(ctx context.Context) ([]models.BookingView, error) {
	views, err := s.store.ListBookings(ctx, models.IncludeAll)
	if err != nil {
		return nil, err
	}
	if views == nil {
		views = []models.BookingView{}
	}
	for i := range views {
		present(&views[i])
	}
	return views, nil
}

// present fills the derived read fields. Contacts are only shown once the
// booking is accepted; a booking whose ride is gone costs nothing.
func present(v *models.BookingView) {
	v.TotalCost = 0
	v.DriverEmail, v.DriverPhone, v.PassengerEmail = nil, nil, nil
	if v.Ride == nil {
		return
	}
	v.TotalCost = float64(v.SeatsBooked) * v.Ride.Price
	if v.Status != models.StatusAccepted {
		return
	}
	if d := v.Ride.Driver; d != nil {
		email, phone := d.Email, d.Phone
		v.DriverEmail, v.DriverPhone = &email, &phone
	}
	if p := v.Passenger; p != nil {
		email := p.Email
		v.PassengerEmail = &email
	}
}

// UpdateStatus moves a booking along the workflow on behalf of actor, the
// caller's external id or "" for anonymous callers. Of two concurrent
// changes exactly one succeeds; the other gets a TransitionError.
func (s *Service) UpdateStatus(ctx context.Context, id string, to models.Status, actor string) (*models.BookingView, error) {
	if to == "" {
		return nil, apperr.Missing("status")
	}
	if !to.Valid() {
		return nil, Transition(models.StatusPending, to)
	}

	current, err := s.store.GetBooking(ctx, id, models.IncludeNone)
	if err != nil {
		return nil, err
	}
	from := current.Status
	if err := Transition(from, to); err != nil {
		observability.BookingTransitions.WithLabelValues(string(to), "rejected").Inc()
		return nil, err
	}

	reserved := false
	if s.policy == Strict && to == models.StatusAccepted {
		if err := s.store.ReserveSeats(ctx, current.RideID, current.SeatsBooked); err != nil {
			if errors.Is(err, apperr.ErrInsufficientSeats) {
				observability.BookingTransitions.WithLabelValues(string(to), "insufficient_seats").Inc()
			}
			return nil, err
		}
		reserved = true
	}

	if _, err := s.store.TransitionBooking(ctx, id, from, to); err != nil {
		if reserved {
			if relErr := s.store.ReleaseSeats(ctx, current.RideID, current.SeatsBooked); relErr != nil {
				s.logger.Error("release seats after lost transition", "error", relErr, "booking_id", id)
			}
		}
		var terr *apperr.TransitionError
		if errors.As(err, &terr) {
			observability.BookingTransitions.WithLabelValues(string(to), "conflict").Inc()
		}
		return nil, err
	}
	observability.BookingTransitions.WithLabelValues(string(to), "applied").Inc()

	ev := &models.BookingEvent{BookingID: current.ID.Hex(), From: from, To: to, Actor: actor}
	if err := s.events.Record(ctx, ev); err != nil {
		s.logger.Warn("record booking event", "error", err, "booking_id", id)
	}
	s.logger.Info("booking status changed", "booking_id", id, "from", from, "to", to, "actor", actor)
	return s.Get(ctx, id)
}

// Delete removes a booking. Under the strict policy the seats of an
// accepted booking go back to its ride.
func (s *Service) Delete(ctx context.Context, id string) error {
	var release *models.BookingView
	if s.policy == Strict {
		current, err := s.store.GetBooking(ctx, id, models.IncludeNone)
		if err != nil {
			return err
		}
		if current.Status == models.StatusAccepted && current.Ride != nil {
			release = current
		}
	}
	if err := s.store.DeleteBooking(ctx, id); err != nil {
		return err
	}
	if release != nil {
		if err := s.store.ReleaseSeats(ctx, release.RideID, release.SeatsBooked); err != nil {
			s.logger.Error("release seats of deleted booking", "error", err, "booking_id", id)
		}
	}
	return nil
}

func (s *Service) DeleteAll(ctx context.Context) (int64, error) {
	return s.store.DeleteAllBookings(ctx)
}

// History returns the status changes of a booking, oldest first.
func (s *Service) History(ctx context.Context, id string) ([]models.BookingEvent, error) {
	b, err := s.store.GetBooking(ctx, id, models.IncludeNone)
	if err != nil {
		return nil, err
	}
	events, err := s.events.ListByBooking(ctx, b.ID.Hex())
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []models.BookingEvent{}
	}
	return events, nil
}
