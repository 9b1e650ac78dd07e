package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ayush/rideshare/backend/internal/apperr"
	"github.com/ayush/rideshare/backend/internal/models"
)

// MemoryStore is an in-process replacement for MongoStore. It enforces the
// same unique constraints and conditional updates, and backs STORAGE=memory
// as well as the service tests.
type MemoryStore struct {
	mu       sync.RWMutex
	users    []*models.User
	rides    []*models.Ride
	bookings []*models.Booking
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: func() time.Time { return time.Now().UTC() }}
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

// newest-first iteration over insertion order.
func reversed[T any](in []*T) []*T {
	out := make([]*T, len(in))
	for i, v := range in {
		out[len(in)-1-i] = v
	}
	return out
}

// ---------------------------------------------------------------------------
// users
// ---------------------------------------------------------------------------

func (m *MemoryStore) userConflict(u *models.User, skip primitive.ObjectID) bool {
	for _, other := range m.users {
		if other.ID == skip {
			continue
		}
		if u.ExternalID != "" && other.ExternalID == u.ExternalID {
			return true
		}
		if u.Email != "" && other.Email == u.Email {
			return true
		}
	}
	return false
}

func (m *MemoryStore) findUser(oid primitive.ObjectID) (int, *models.User) {
	for i, u := range m.users {
		if u.ID == oid {
			return i, u
		}
	}
	return -1, nil
}

func (m *MemoryStore) InsertUser(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.userConflict(u, primitive.NilObjectID) {
		return fmt.Errorf("%s: %w", userEntity, ErrDuplicate)
	}
	now := m.now()
	u.ID = primitive.NewObjectID()
	u.CreatedAt, u.UpdatedAt = now, now
	cp := *u
	m.users = append(m.users, &cp)
	return nil
}

func (m *MemoryStore) GetUser(_ context.Context, id string) (*models.User, error) {
	oid, err := objectID(userEntity, id)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, u := m.findUser(oid); u != nil {
		cp := *u
		return &cp, nil
	}
	return nil, apperr.NotFound(userEntity)
}

func (m *MemoryStore) GetUserByExternalID(_ context.Context, externalID string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if externalID != "" && u.ExternalID == externalID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperr.NotFound(userEntity)
}

func (m *MemoryStore) LinkExternalID(_ context.Context, email, externalID string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ExternalID == externalID {
			return nil, fmt.Errorf("%s: %w", userEntity, ErrDuplicate)
		}
	}
	for _, u := range m.users {
		if u.Email == email && u.ExternalID == "" {
			u.ExternalID = externalID
			u.UpdatedAt = m.now()
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperr.NotFound(userEntity)
}

func (m *MemoryStore) UpsertUserByExternalID(_ context.Context, u *models.User) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.ExternalID == u.ExternalID {
			cp := *existing
			return &cp, nil
		}
	}
	if m.userConflict(u, primitive.NilObjectID) {
		return nil, fmt.Errorf("%s: %w", userEntity, ErrDuplicate)
	}
	now := m.now()
	cp := *u
	cp.ID = primitive.NewObjectID()
	cp.CreatedAt, cp.UpdatedAt = now, now
	m.users = append(m.users, &cp)
	out := cp
	return &out, nil
}

func (m *MemoryStore) UpdateUser(_ context.Context, id string, patch models.UserPatch) (*models.User, error) {
	return m.mutateUser(id, func(u *models.User) {
		if patch.Name != nil {
			u.Name = *patch.Name
		}
		if patch.Email != nil {
			u.Email = *patch.Email
		}
		if patch.Avatar != nil {
			u.Avatar = *patch.Avatar
		}
		if patch.Phone != nil {
			u.Phone = *patch.Phone
		}
	})
}

func (m *MemoryStore) SetUserAvatar(_ context.Context, id, url, key string) (*models.User, error) {
	return m.mutateUser(id, func(u *models.User) {
		u.Avatar, u.AvatarKey = url, key
	})
}

func (m *MemoryStore) mutateUser(id string, apply func(*models.User)) (*models.User, error) {
	oid, err := objectID(userEntity, id)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, u := m.findUser(oid)
	if u == nil {
		return nil, apperr.NotFound(userEntity)
	}
	next := *u
	apply(&next)
	if m.userConflict(&next, oid) {
		return nil, fmt.Errorf("%s: %w", userEntity, ErrDuplicate)
	}
	next.UpdatedAt = m.now()
	*u = next
	return &next, nil
}

func (m *MemoryStore) DeleteUser(_ context.Context, id string) (*models.User, error) {
	oid, err := objectID(userEntity, id)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	i, u := m.findUser(oid)
	if u == nil {
		return nil, apperr.NotFound(userEntity)
	}
	m.users = append(m.users[:i], m.users[i+1:]...)
	return u, nil
}

func (m *MemoryStore) ListUsers(context.Context) ([]models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.User, 0, len(m.users))
	for _, u := range reversed(m.users) {
		out = append(out, *u)
	}
	return out, nil
}

func (m *MemoryStore) DeleteAllUsers(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.users))
	m.users = nil
	return n, nil
}

func (m *MemoryStore) userCopy(oid primitive.ObjectID) *models.User {
	if _, u := m.findUser(oid); u != nil {
		cp := *u
		return &cp
	}
	return nil
}

// ---------------------------------------------------------------------------
// rides
// ---------------------------------------------------------------------------

func (m *MemoryStore) findRide(oid primitive.ObjectID) (int, *models.Ride) {
	for i, r := range m.rides {
		if r.ID == oid {
			return i, r
		}
	}
	return -1, nil
}

func (m *MemoryStore) rideView(r *models.Ride, inc models.Include) *models.RideView {
	v := &models.RideView{Ride: *r}
	if inc.Driver {
		v.Driver = m.userCopy(r.DriverID)
	}
	return v
}

func (m *MemoryStore) InsertRide(_ context.Context, r *models.Ride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	r.ID = primitive.NewObjectID()
	r.CreatedAt, r.UpdatedAt = now, now
	cp := *r
	m.rides = append(m.rides, &cp)
	return nil
}

func (m *MemoryStore) GetRide(_ context.Context, id string, inc models.Include) (*models.RideView, error) {
	oid, err := objectID(rideEntity, id)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, r := m.findRide(oid)
	if r == nil {
		return nil, apperr.NotFound(rideEntity)
	}
	return m.rideView(r, inc), nil
}

func (m *MemoryStore) ListRides(_ context.Context, inc models.Include) ([]models.RideView, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.RideView, 0, len(m.rides))
	for _, r := range reversed(m.rides) {
		out = append(out, *m.rideView(r, inc))
	}
	return out, nil
}

func (m *MemoryStore) UpdateRide(_ context.Context, id string, patch models.RidePatch) (*models.Ride, error) {
	oid, err := objectID(rideEntity, id)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, r := m.findRide(oid)
	if r == nil {
		return nil, apperr.NotFound(rideEntity)
	}
	if patch.Origin != nil {
		r.Origin = *patch.Origin
	}
	if patch.Destination != nil {
		r.Destination = *patch.Destination
	}
	if patch.Date != nil {
		r.Date = *patch.Date
	}
	if patch.Time != nil {
		r.Time = *patch.Time
	}
	if patch.AvailableSeats != nil {
		r.AvailableSeats = *patch.AvailableSeats
	}
	if patch.Price != nil {
		r.Price = *patch.Price
	}
	if patch.Description != nil {
		r.Description = *patch.Description
	}
	r.UpdatedAt = m.now()
	cp := *r
	return &cp, nil
}

func (m *MemoryStore) DeleteRide(_ context.Context, id string) error {
	oid, err := objectID(rideEntity, id)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	i, r := m.findRide(oid)
	if r == nil {
		return apperr.NotFound(rideEntity)
	}
	m.rides = append(m.rides[:i], m.rides[i+1:]...)
	return nil
}

func (m *MemoryStore) DeleteAllRides(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.rides))
	m.rides = nil
	return n, nil
}

func (m *MemoryStore) ReserveSeats(_ context.Context, id primitive.ObjectID, n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, r := m.findRide(id)
	if r == nil {
		return apperr.NotFound(rideEntity)
	}
	if r.AvailableSeats < n {
		return apperr.ErrInsufficientSeats
	}
	r.AvailableSeats -= n
	r.UpdatedAt = m.now()
	return nil
}

func (m *MemoryStore) ReleaseSeats(_ context.Context, id primitive.ObjectID, n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, r := m.findRide(id); r != nil {
		r.AvailableSeats += n
		r.UpdatedAt = m.now()
	}
	return nil
}

// ---------------------------------------------------------------------------
// bookings
// ---------------------------------------------------------------------------

func (m *MemoryStore) findBooking(oid primitive.ObjectID) (int, *models.Booking) {
	for i, b := range m.bookings {
		if b.ID == oid {
			return i, b
		}
	}
	return -1, nil
}

func (m *MemoryStore) bookingView(b *models.Booking, inc models.Include) models.BookingView {
	v := models.BookingView{Booking: *b}
	if _, r := m.findRide(b.RideID); r != nil {
		v.Ride = m.rideView(r, inc)
	}
	if inc.Passenger {
		v.Passenger = m.userCopy(b.PassengerID)
	}
	return v
}

func (m *MemoryStore) InsertBooking(_ context.Context, b *models.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	b.ID = primitive.NewObjectID()
	b.CreatedAt, b.UpdatedAt = now, now
	cp := *b
	m.bookings = append(m.bookings, &cp)
	return nil
}

func (m *MemoryStore) GetBooking(_ context.Context, id string, inc models.Include) (*models.BookingView, error) {
	oid, err := objectID(bookingEntity, id)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, b := m.findBooking(oid)
	if b == nil {
		return nil, apperr.NotFound(bookingEntity)
	}
	v := m.bookingView(b, inc)
	return &v, nil
}

func (m *MemoryStore) ListBookings(_ context.Context, inc models.Include) ([]models.BookingView, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.BookingView, 0, len(m.bookings))
	for _, b := range reversed(m.bookings) {
		out = append(out, m.bookingView(b, inc))
	}
	return out, nil
}

func (m *MemoryStore) TransitionBooking(_ context.Context, id string, from, to models.Status) (*models.Booking, error) {
	oid, err := objectID(bookingEntity, id)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, b := m.findBooking(oid)
	if b == nil {
		return nil, apperr.NotFound(bookingEntity)
	}
	if b.Status != from {
		return nil, &apperr.TransitionError{From: string(b.Status), To: string(to)}
	}
	b.Status = to
	b.UpdatedAt = m.now()
	cp := *b
	return &cp, nil
}

func (m *MemoryStore) DeleteBooking(_ context.Context, id string) error {
	oid, err := objectID(bookingEntity, id)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	i, b := m.findBooking(oid)
	if b == nil {
		return apperr.NotFound(bookingEntity)
	}
	m.bookings = append(m.bookings[:i], m.bookings[i+1:]...)
	return nil
}

func (m *MemoryStore) DeleteAllBookings(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.bookings))
	m.bookings = nil
	return n, nil
}

// ---------------------------------------------------------------------------
// side stores
// ---------------------------------------------------------------------------

// MemoryEvents is an in-process booking event log.
type MemoryEvents struct {
	mu     sync.Mutex
	seq    int64
	events []models.BookingEvent
}

func NewMemoryEvents() *MemoryEvents { return &MemoryEvents{} }

func (e *MemoryEvents) Record(_ context.Context, ev *models.BookingEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seq++
	ev.ID = e.seq
	ev.CreatedAt = time.Now().UTC()
	e.events = append(e.events, *ev)
	return nil
}

func (e *MemoryEvents) ListByBooking(_ context.Context, bookingID string) ([]models.BookingEvent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []models.BookingEvent
	for _, ev := range e.events {
		if ev.BookingID == bookingID {
			out = append(out, ev)
		}
	}
	return out, nil
}

// MemoryIdentityCache is an in-process IdentityCache without expiry.
type MemoryIdentityCache struct {
	mu  sync.Mutex
	ids map[string]string
}

func NewMemoryIdentityCache() *MemoryIdentityCache {
	return &MemoryIdentityCache{ids: make(map[string]string)}
}

func (c *MemoryIdentityCache) GetUserID(_ context.Context, externalID string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ids[externalID], nil
}

func (c *MemoryIdentityCache) SetUserID(_ context.Context, externalID, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids[externalID] = userID
	return nil
}

func (c *MemoryIdentityCache) Forget(_ context.Context, externalID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.ids, externalID)
	return nil
}

// MemoryObjects is an in-process object store for avatars.
type MemoryObjects struct {
	mu      sync.Mutex
	objects map[string]memObject
}

type memObject struct {
	data        []byte
	contentType string
}

func NewMemoryObjects() *MemoryObjects {
	return &MemoryObjects{objects: make(map[string]memObject)}
}

func (o *MemoryObjects) Put(_ context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(io.LimitReader(r, size))
	if err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.objects[key] = memObject{data: data, contentType: contentType}
	return nil
}

func (o *MemoryObjects) Get(_ context.Context, key string) (io.ReadCloser, string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	obj, ok := o.objects[key]
	if !ok {
		return nil, "", apperr.NotFound("avatar")
	}
	return io.NopCloser(bytes.NewReader(obj.data)), obj.contentType, nil
}

func (o *MemoryObjects) Remove(_ context.Context, key string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.objects, key)
	return nil
}
