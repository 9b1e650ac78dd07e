package bookings

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayush/rideshare/backend/internal/apperr"
	"github.com/ayush/rideshare/backend/internal/logging"
	"github.com/ayush/rideshare/backend/internal/models"
	"github.com/ayush/rideshare/backend/internal/store"
	"github.com/ayush/rideshare/backend/internal/users"
)

type fixture struct {
	svc    *Service
	store  *store.MemoryStore
	events *store.MemoryEvents
	ride   *models.Ride
}

func newFixture(t *testing.T, policy SeatPolicy) fixture {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemoryStore()
	events := store.NewMemoryEvents()
	dir := users.NewService(st, store.NewMemoryIdentityCache(), store.NewMemoryObjects(), logging.Discard())

	driver, err := dir.FindOrCreateByExternalID(ctx, "ext_driver", models.Profile{GivenName: "Dee", Email: "driver@example.com", Phone: "555-0100"})
	require.NoError(t, err)
	_, err = dir.FindOrCreateByExternalID(ctx, "ext_passenger", models.Profile{GivenName: "Pat", Email: "passenger@example.com"})
	require.NoError(t, err)

	ride := &models.Ride{Origin: "A", Destination: "B", Date: "2025-01-01", Time: "10:00", AvailableSeats: 3, Price: 100, DriverID: driver.ID}
	require.NoError(t, st.InsertRide(ctx, ride))

	return fixture{
		svc:    NewService(st, dir, events, policy, logging.Discard()),
		store:  st,
		events: events,
		ride:   ride,
	}
}

func seats(n int) *int { return &n }

func (f fixture) book(t *testing.T, n int) *models.BookingView {
	t.Helper()
	b, err := f.svc.Create(context.Background(), models.CreateBookingRequest{
		Ride:        f.ride.ID.Hex(),
		Passenger:   "ext_passenger",
		SeatsBooked: seats(n),
	})
	require.NoError(t, err)
	return b
}

func TestBookingScenario(t *testing.T) {
	f := newFixture(t, Lenient)
	ctx := context.Background()

	created := f.book(t, 2)
	assert.Equal(t, models.StatusPending, created.Status)
	assert.Equal(t, 200.0, created.TotalCost)
	assert.Nil(t, created.DriverEmail)
	assert.Nil(t, created.DriverPhone)
	assert.Nil(t, created.PassengerEmail)
	require.NotNil(t, created.Ride)
	require.NotNil(t, created.Ride.Driver)
	require.NotNil(t, created.Passenger)

	accepted, err := f.svc.UpdateStatus(ctx, created.ID.Hex(), models.StatusAccepted, "ext_driver")
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, accepted.Status)

	got, err := f.svc.Get(ctx, created.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, got.Status)
	assert.Equal(t, 200.0, got.TotalCost)
	require.NotNil(t, got.DriverEmail)
	require.NotNil(t, got.DriverPhone)
	require.NotNil(t, got.PassengerEmail)
	assert.Equal(t, "driver@example.com", *got.DriverEmail)
	assert.Equal(t, "555-0100", *got.DriverPhone)
	assert.Equal(t, "passenger@example.com", *got.PassengerEmail)

	ride, err := f.store.GetRide(ctx, f.ride.ID.Hex(), models.IncludeNone)
	require.NoError(t, err)
	assert.Equal(t, 3, ride.AvailableSeats, "lenient policy leaves seats alone")

	history, err := f.svc.History(ctx, created.ID.Hex())
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.StatusPending, history[0].From)
	assert.Equal(t, models.StatusAccepted, history[0].To)
	assert.Equal(t, "ext_driver", history[0].Actor)
}

func TestDeclinedBookingHidesContacts(t *testing.T) {
	f := newFixture(t, Lenient)
	b := f.book(t, 1)

	declined, err := f.svc.UpdateStatus(context.Background(), b.ID.Hex(), models.StatusDeclined, "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusDeclined, declined.Status)
	assert.Nil(t, declined.DriverEmail)
	assert.Nil(t, declined.DriverPhone)
	assert.Nil(t, declined.PassengerEmail)
	assert.Equal(t, 100.0, declined.TotalCost)
}

func TestUpdateStatusRejections(t *testing.T) {
	f := newFixture(t, Lenient)
	ctx := context.Background()
	b := f.book(t, 1)

	_, err := f.svc.UpdateStatus(ctx, b.ID.Hex(), "", "")
	assert.Equal(t, 400, apperr.Status(err))
	_, err = f.svc.UpdateStatus(ctx, b.ID.Hex(), "maybe", "")
	assert.Equal(t, 400, apperr.Status(err))
	_, err = f.svc.UpdateStatus(ctx, "000000000000000000000000", models.StatusAccepted, "")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.svc.UpdateStatus(ctx, b.ID.Hex(), models.StatusAccepted, "")
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, b.ID.Hex(), models.StatusDeclined, "")
	var terr *apperr.TransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "accepted", terr.From)
	assert.Equal(t, "declined", terr.To)
}

func TestConcurrentStatusChangesHaveOneWinner(t *testing.T) {
	f := newFixture(t, Lenient)
	ctx := context.Background()
	b := f.book(t, 1)

	targets := []models.Status{models.StatusAccepted, models.StatusDeclined}
	const rounds = 8
	errs := make([]error, 0, rounds*len(targets))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < rounds; i++ {
		for _, to := range targets {
			wg.Add(1)
			go func(to models.Status) {
				defer wg.Done()
				_, err := f.svc.UpdateStatus(ctx, b.ID.Hex(), to, "")
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}(to)
		}
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
			continue
		}
		var terr *apperr.TransitionError
		assert.ErrorAs(t, err, &terr)
	}
	assert.Equal(t, 1, winners)

	history, err := f.svc.History(ctx, b.ID.Hex())
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t, Lenient)
	ctx := context.Background()
	rideID := f.ride.ID.Hex()

	_, err := f.svc.Create(ctx, models.CreateBookingRequest{})
	var verr *apperr.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"ride", "passenger", "seatsBooked"}, verr.Fields)

	tests := []struct {
		name  string
		req   models.CreateBookingRequest
		field string
	}{
		{"zero seats", models.CreateBookingRequest{Ride: rideID, Passenger: "ext_passenger", SeatsBooked: seats(0)}, "seatsBooked"},
		{"accepted on create", models.CreateBookingRequest{Ride: rideID, Passenger: "ext_passenger", SeatsBooked: seats(1), Status: models.StatusAccepted}, "status"},
		{"unknown passenger", models.CreateBookingRequest{Ride: rideID, Passenger: "ext_nobody", SeatsBooked: seats(1)}, "passenger"},
		{"unknown ride", models.CreateBookingRequest{Ride: "000000000000000000000000", Passenger: "ext_passenger", SeatsBooked: seats(1)}, "ride"},
		{"malformed ride id", models.CreateBookingRequest{Ride: "nope", Passenger: "ext_passenger", SeatsBooked: seats(1)}, "ride"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, tt.req)
			var verr *apperr.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, []string{tt.field}, verr.Fields)
		})
	}

	explicit, err := f.svc.Create(ctx, models.CreateBookingRequest{Ride: rideID, Passenger: "ext_passenger", SeatsBooked: seats(1), Status: models.StatusPending})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, explicit.Status)

	lenient, err := f.svc.Create(ctx, models.CreateBookingRequest{Ride: rideID, Passenger: "ext_passenger", SeatsBooked: seats(10)})
	require.NoError(t, err, "lenient policy allows overbooking")
	assert.Equal(t, 1000.0, lenient.TotalCost)
}

func TestStrictSeatPolicy(t *testing.T) {
	f := newFixture(t, Strict)
	ctx := context.Background()
	rideID := f.ride.ID.Hex()

	_, err := f.svc.Create(ctx, models.CreateBookingRequest{Ride: rideID, Passenger: "ext_passenger", SeatsBooked: seats(4)})
	assert.ErrorIs(t, err, apperr.ErrInsufficientSeats)

	first := f.book(t, 2)
	second := f.book(t, 2)

	_, err = f.svc.UpdateStatus(ctx, first.ID.Hex(), models.StatusAccepted, "")
	require.NoError(t, err)
	ride, err := f.store.GetRide(ctx, rideID, models.IncludeNone)
	require.NoError(t, err)
	assert.Equal(t, 1, ride.AvailableSeats)

	_, err = f.svc.UpdateStatus(ctx, second.ID.Hex(), models.StatusAccepted, "")
	assert.ErrorIs(t, err, apperr.ErrInsufficientSeats)
	assert.Equal(t, 409, apperr.Status(err))
	still, err := f.svc.Get(ctx, second.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, still.Status)

	_, err = f.svc.UpdateStatus(ctx, second.ID.Hex(), models.StatusDeclined, "")
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, first.ID.Hex()))
	ride, err = f.store.GetRide(ctx, rideID, models.IncludeNone)
	require.NoError(t, err)
	assert.Equal(t, 3, ride.AvailableSeats, "deleting an accepted booking returns its seats")
}

func TestStrictConcurrentAcceptsNeverOverbook(t *testing.T) {
	f := newFixture(t, Strict)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		ids = append(ids, f.book(t, 2).ID.Hex())
	}

	var wg sync.WaitGroup
	results := make([]error, len(ids))
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, results[i] = f.svc.UpdateStatus(ctx, id, models.StatusAccepted, "")
		}(i, id)
	}
	wg.Wait()

	accepted := 0
	for _, err := range results {
		if err == nil {
			accepted++
		}
	}
	assert.Equal(t, 1, accepted)
	ride, err := f.store.GetRide(ctx, f.ride.ID.Hex(), models.IncludeNone)
	require.NoError(t, err)
	assert.Equal(t, 1, ride.AvailableSeats)
}

func TestOrphanedBooking(t *testing.T) {
	f := newFixture(t, Lenient)
	ctx := context.Background()
	b := f.book(t, 2)
	_, err := f.svc.UpdateStatus(ctx, b.ID.Hex(), models.StatusAccepted, "")
	require.NoError(t, err)

	require.NoError(t, f.store.DeleteRide(ctx, f.ride.ID.Hex()))

	got, err := f.svc.Get(ctx, b.ID.Hex())
	require.NoError(t, err)
	assert.Nil(t, got.Ride)
	assert.Zero(t, got.TotalCost)
	assert.Nil(t, got.DriverEmail)
	assert.Nil(t, got.PassengerEmail)

	list, err := f.svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Nil(t, list[0].Ride)
}

func TestListAndDelete(t *testing.T) {
	f := newFixture(t, Lenient)
	ctx := context.Background()

	empty, err := f.svc.List(ctx)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	older := f.book(t, 1)
	newer := f.book(t, 3)

	list, err := f.svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)
	assert.Equal(t, 300.0, list[0].TotalCost)
	assert.Equal(t, older.ID, list[1].ID)

	require.NoError(t, f.svc.Delete(ctx, older.ID.Hex()))
	_, err = f.svc.Get(ctx, older.ID.Hex())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = f.svc.History(ctx, older.ID.Hex())
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	n, err := f.svc.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
