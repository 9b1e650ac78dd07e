package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayush/rideshare/backend/internal/auth"
	"github.com/ayush/rideshare/backend/internal/bookings"
	"github.com/ayush/rideshare/backend/internal/logging"
	"github.com/ayush/rideshare/backend/internal/rides"
	"github.com/ayush/rideshare/backend/internal/store"
	"github.com/ayush/rideshare/backend/internal/users"
)

const secret = "api-test-secret"

type downDB struct{}

func (downDB) Ping(context.Context) error { return errors.New("connection refused") }

func newServer(t *testing.T, db Pinger) *httptest.Server {
	t.Helper()
	logger := logging.Discard()
	st := store.NewMemoryStore()
	if db == nil {
		db = st
	}
	dir := users.NewService(st, store.NewMemoryIdentityCache(), store.NewMemoryObjects(), logger)

	srv := httptest.NewServer(NewRouter(Deps{
		Logger:      logger,
		DB:          db,
		Verifier:    auth.NewVerifier(secret, "", ""),
		Revocations: auth.NewMemoryRevocations(),
		Users:       dir,
		Rides:       rides.NewService(st, dir, logger),
		Bookings:    bookings.NewService(st, dir, store.NewMemoryEvents(), bookings.Lenient, logger),
		CORSOrigins: []string{"http://localhost:3000"},
	}))
	t.Cleanup(srv.Close)
	return srv
}

type client struct {
	t     *testing.T
	base  string
	token string
}

func (c client) call(method, path string, body any) (int, map[string]any, []any) {
	c.t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(c.t, err)
		r = strings.NewReader(string(raw))
	}
	req, err := http.NewRequest(method, c.base+path, r)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	var obj map[string]any
	var arr []any
	if len(raw) > 0 && raw[0] == '[' {
		require.NoError(c.t, json.Unmarshal(raw, &arr))
	} else if len(raw) > 0 {
		require.NoError(c.t, json.Unmarshal(raw, &obj))
	}
	return resp.StatusCode, obj, arr
}

func signIn(t *testing.T, base string, id auth.Identity) client {
	t.Helper()
	raw, err := auth.Sign(secret, "", "", id, time.Hour)
	require.NoError(t, err)
	return client{t: t, base: base, token: raw}
}

func TestRideBookingScenario(t *testing.T) {
	srv := newServer(t, nil)
	anon := client{t: t, base: srv.URL}
	driver := signIn(t, srv.URL, auth.Identity{ExternalID: "ext_driver", GivenName: "Dee", Email: "driver@example.com"})
	passenger := signIn(t, srv.URL, auth.Identity{ExternalID: "ext_passenger", Username: "pat", Email: "passenger@example.com"})

	status, ride, _ := driver.call(http.MethodPost, "/api/rides", map[string]any{
		"origin": "A", "destination": "B", "date": "2025-01-01", "time": "10:00",
		"availableSeats": 3, "price": 100, "phone": "555-0100",
	})
	require.Equal(t, http.StatusCreated, status)
	rideID := ride["id"].(string)

	status, me, _ := passenger.call(http.MethodPost, "/api/users/me", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "pat", me["name"])

	status, booking, _ := anon.call(http.MethodPost, "/api/bookings", map[string]any{
		"ride": rideID, "passenger": "ext_passenger", "seatsBooked": 2,
	})
	require.Equal(t, http.StatusCreated, status)
	bookingID := booking["id"].(string)
	assert.Equal(t, "pending", booking["status"])
	assert.Equal(t, 200.0, booking["totalCost"])
	assert.Nil(t, booking["driverEmail"])
	assert.Nil(t, booking["driverPhone"])
	assert.Nil(t, booking["passengerEmail"])

	status, updated, _ := driver.call(http.MethodPut, "/api/bookings/"+bookingID, map[string]any{"status": "accepted"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "accepted", updated["status"])

	status, got, _ := anon.call(http.MethodGet, "/api/bookings/"+bookingID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "accepted", got["status"])
	assert.Equal(t, "driver@example.com", got["driverEmail"])
	assert.Equal(t, "555-0100", got["driverPhone"])
	assert.Equal(t, "passenger@example.com", got["passengerEmail"])

	status, conflict, _ := anon.call(http.MethodPut, "/api/bookings/"+bookingID, map[string]any{"status": "declined"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, map[string]any{"from": "accepted", "to": "declined"}, conflict["details"])

	status, _, history := anon.call(http.MethodGet, "/api/bookings/"+bookingID+"/history", nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, history, 1)
	assert.Equal(t, "ext_driver", history[0].(map[string]any)["actor"])

	status, _, list := anon.call(http.MethodGet, "/api/bookings", nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, list, 1)
	first := list[0].(map[string]any)
	assert.Equal(t, 200.0, first["totalCost"])
	joined := first["ride"].(map[string]any)
	assert.Equal(t, "Dee", joined["driver"].(map[string]any)["name"])
	assert.Equal(t, "pat", first["passenger"].(map[string]any)["name"])

	status, _, _ = anon.call(http.MethodDelete, "/api/bookings/"+bookingID, nil)
	require.Equal(t, http.StatusOK, status)
	status, _, _ = anon.call(http.MethodGet, "/api/bookings/"+bookingID, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestBookingForUnknownPassenger(t *testing.T) {
	srv := newServer(t, nil)
	driver := signIn(t, srv.URL, auth.Identity{ExternalID: "ext_driver", Email: "driver@example.com"})

	_, ride, _ := driver.call(http.MethodPost, "/api/rides", map[string]any{
		"origin": "A", "destination": "B", "date": "2025-01-01", "time": "10:00",
		"availableSeats": 3, "price": 100,
	})
	status, body, _ := driver.call(http.MethodPost, "/api/bookings", map[string]any{
		"ride": ride["id"], "passenger": "ext_ghost", "seatsBooked": 1,
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "user not found for booking: passenger", body["error"])
}

func TestUsersCRUD(t *testing.T) {
	srv := newServer(t, nil)
	c := client{t: t, base: srv.URL}

	status, body, _ := c.call(http.MethodPost, "/api/users", map[string]any{"name": "Dana"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "missing required fields: email", body["error"])

	status, created, _ := c.call(http.MethodPost, "/api/users", map[string]any{"name": "Dana", "email": "dana@example.com"})
	require.Equal(t, http.StatusCreated, status)
	id := created["id"].(string)

	status, updated, _ := c.call(http.MethodPut, "/api/users/"+id, map[string]any{"phone": "555-0111"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "555-0111", updated["phone"])
	assert.Equal(t, "Dana", updated["name"])

	status, msg, _ := c.call(http.MethodDelete, "/api/users/"+id, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "User deleted", msg["message"])

	status, _, _ = c.call(http.MethodGet, "/api/users/"+id, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, msg, _ = c.call(http.MethodDelete, "/api/users", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "All users deleted.", msg["message"])
}

func TestMeAndLogout(t *testing.T) {
	srv := newServer(t, nil)
	anon := client{t: t, base: srv.URL}
	me := signIn(t, srv.URL, auth.Identity{ExternalID: "ext_me", GivenName: "Mo", Email: "mo@example.com"})

	status, _, _ := anon.call(http.MethodGet, "/api/users/me", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _, _ = me.call(http.MethodGet, "/api/users/me", nil)
	assert.Equal(t, http.StatusNotFound, status, "not registered yet")

	status, registered, _ := me.call(http.MethodPost, "/api/users/me", map[string]any{"phone": "555-0123"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Mo", registered["name"])
	assert.Equal(t, "555-0123", registered["phone"])

	status, fetched, _ := me.call(http.MethodGet, "/api/users/me", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, registered["id"], fetched["id"])

	status, _, _ = me.call(http.MethodPost, "/api/auth/logout", nil)
	require.Equal(t, http.StatusOK, status)
	status, _, _ = me.call(http.MethodGet, "/api/users/me", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestConcurrentFirstRidePostsShareOneDriver(t *testing.T) {
	srv := newServer(t, nil)
	driver := signIn(t, srv.URL, auth.Identity{ExternalID: "ext_new", Email: "new@example.com"})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, _, _ := driver.call(http.MethodPost, "/api/rides", map[string]any{
				"origin": "A", "destination": "B", "date": "2025-01-01", "time": "10:00",
				"availableSeats": 1, "price": 5,
			})
			assert.Equal(t, http.StatusCreated, status)
		}()
	}
	wg.Wait()

	_, _, all := client{t: t, base: srv.URL}.call(http.MethodGet, "/api/users", nil)
	assert.Len(t, all, 1)
}

func TestAvatarUpload(t *testing.T) {
	srv := newServer(t, nil)
	c := client{t: t, base: srv.URL}
	_, created, _ := c.call(http.MethodPost, "/api/users", map[string]any{"name": "Ava", "email": "ava@example.com"})
	id := created["id"].(string)

	req, err := http.NewRequest(http.MethodPut, srv.URL+"/api/users/"+id+"/avatar", strings.NewReader("\x89PNG fake"))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "image/png")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/users/" + id + "/avatar")
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.Equal(t, "\x89PNG fake", string(data))
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newServer(t, nil)
	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "rideshare_http_requests_total")

	down := newServer(t, downDB{})
	resp, err = http.Get(down.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
