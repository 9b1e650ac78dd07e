package rides

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/ayush/rideshare/backend/internal/apperr"
	"github.com/ayush/rideshare/backend/internal/auth"
	"github.com/ayush/rideshare/backend/internal/models"
)

// Store defines ride persistence.
type Store interface {
	InsertRide(ctx context.Context, r *models.Ride) error
	GetRide(ctx context.Context, id string, inc models.Include) (*models.RideView, error)
	ListRides(ctx context.Context, inc models.Include) ([]models.RideView, error)
	UpdateRide(ctx context.Context, id string, patch models.RidePatch) (*models.Ride, error)
	DeleteRide(ctx context.Context, id string) error
	DeleteAllRides(ctx context.Context) (int64, error)
}

// Directory resolves the posting driver.
type Directory interface {
	FindOrCreateByExternalID(ctx context.Context, externalID string, hint models.Profile) (*models.User, error)
	SetPhone(ctx context.Context, u *models.User, phone string) (*models.User, error)
}

// Service is the ride catalog.
type Service struct {
	store  Store
	users  Directory
	logger *slog.Logger
	now    func() time.Time
}

func NewService(s Store, users Directory, logger *slog.Logger) *Service {
	return &Service{store: s, users: users, logger: logger, now: time.Now}
}

// Create validates req and stores a ride owned by the caller, provisioning
// the caller's user record on first post.
func (s *Service) Create(ctx context.Context, id *auth.Identity, req models.CreateRideRequest) (*models.RideView, error) {
	if id == nil {
		return nil, apperr.ErrUnauthenticated
	}
	if err := validateCreate(&req); err != nil {
		return nil, err
	}

	hint := id.Profile()
	hint.Phone = req.Phone
	driver, err := s.users.FindOrCreateByExternalID(ctx, id.ExternalID, hint)
	if err != nil {
		return nil, err
	}
	if driver, err = s.users.SetPhone(ctx, driver, req.Phone); err != nil {
		return nil, err
	}

	ride := &models.Ride{
		Origin:         req.Origin,
		Destination:    req.Destination,
		Date:           req.Date,
		Time:           req.Time,
		AvailableSeats: *req.AvailableSeats,
		Price:          *req.Price,
		Description:    req.Description,
		DriverID:       driver.ID,
	}
	if err := s.store.InsertRide(ctx, ride); err != nil {
		return nil, err
	}
	s.logger.Info("ride created", "ride_id", ride.ID.Hex(), "driver_id", driver.ID.Hex())
	return &models.RideView{Ride: *ride, Driver: driver}, nil
}

func validateCreate(req *models.CreateRideRequest) error {
	req.Origin = strings.TrimSpace(req.Origin)
	req.Destination = strings.TrimSpace(req.Destination)
	req.Date = strings.TrimSpace(req.Date)
	req.Time = strings.TrimSpace(req.Time)

	var missing []string
	for _, f := range []struct {
		name  string
		empty bool
	}{
		{"origin", req.Origin == ""},
		{"destination", req.Destination == ""},
		{"date", req.Date == ""},
		{"time", req.Time == ""},
		{"availableSeats", req.AvailableSeats == nil},
		{"price", req.Price == nil},
	} {
		if f.empty {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return apperr.Missing(missing...)
	}
	if *req.AvailableSeats < 1 {
		return apperr.Invalid("availableSeats", "availableSeats must be at least 1")
	}
	if *req.Price < 0 {
		return apperr.Invalid("price", "price must not be negative")
	}
	return nil
}

// Get returns a ride with its driver.
func (s *Service) Get(ctx context.Context, id string) (*models.RideView, error) {
	return s.store.GetRide(ctx, id, models.Include{Driver: true})
}

// List returns the rides matching f with their drivers, newest first.
func (s *Service) List(ctx context.Context, f Filter) ([]models.RideView, error) {
	rides, err := s.store.ListRides(ctx, models.Include{Driver: true})
	if err != nil {
		return nil, err
	}
	return Apply(rides, f, s.now()), nil
}

func (s *Service) Update(ctx context.Context, id string, patch models.RidePatch) (*models.Ride, error) {
	if err := validatePatch(patch); err != nil {
		return nil, err
	}
	if patch.Empty() {
		v, err := s.store.GetRide(ctx, id, models.IncludeNone)
		if err != nil {
			return nil, err
		}
		return &v.Ride, nil
	}
	return s.store.UpdateRide(ctx, id, patch)
}

func validatePatch(p models.RidePatch) error {
	for _, f := range []struct {
		name string
		val  *string
	}{
		{"origin", p.Origin},
		{"destination", p.Destination},
		{"date", p.Date},
		{"time", p.Time},
	} {
		if f.val != nil && strings.TrimSpace(*f.val) == "" {
			return apperr.Invalid(f.name, f.name+" must not be empty")
		}
	}
	if p.AvailableSeats != nil && *p.AvailableSeats < 0 {
		return apperr.Invalid("availableSeats", "availableSeats must not be negative")
	}
	if p.Price != nil && *p.Price < 0 {
		return apperr.Invalid("price", "price must not be negative")
	}
	return nil
}

// Delete removes a ride. Its bookings are kept and read back without a ride.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.DeleteRide(ctx, id)
}

func (s *Service) DeleteAll(ctx context.Context) (int64, error) {
	return s.store.DeleteAllRides(ctx)
}
