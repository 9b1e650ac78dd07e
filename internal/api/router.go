package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ayush/rideshare/backend/internal/auth"
	"github.com/ayush/rideshare/backend/internal/bookings"
	"github.com/ayush/rideshare/backend/internal/middleware"
	"github.com/ayush/rideshare/backend/internal/rides"
	"github.com/ayush/rideshare/backend/internal/users"
)

// Pinger reports whether the primary database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Revocations is the logged-out token list.
type Revocations interface {
	auth.Revoker
	middleware.RevocationChecker
}

// Deps is everything the HTTP surface is built from.
type Deps struct {
	Logger      *slog.Logger
	DB          Pinger
	Verifier    middleware.TokenVerifier
	Revocations Revocations
	Users       *users.Service
	Rides       *rides.Service
	Bookings    *bookings.Service
	CORSOrigins []string
}

// NewRouter wires middleware and mounts every endpoint.
func NewRouter(d Deps) http.Handler {
	requireAuth := middleware.RequireAuth(d.Verifier, d.Revocations)
	optionalAuth := middleware.OptionalAuth(d.Verifier, d.Revocations)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLog(d.Logger))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", health(d.DB, d.Logger))
	r.Handle("/metrics", promhttp.Handler())

	authHandler := auth.NewHandler(d.Revocations, d.Logger)
	r.Route("/api", func(r chi.Router) {
		r.With(requireAuth).Post("/auth/logout", authHandler.Logout)
		r.Mount("/users", users.NewHandler(d.Users, d.Logger).Routes(requireAuth))
		r.Mount("/rides", rides.NewHandler(d.Rides, d.Logger).Routes(requireAuth))
		r.Mount("/bookings", bookings.NewHandler(d.Bookings, d.Logger).Routes(optionalAuth))
	})
	return r
}

func health(db Pinger, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if err := db.Ping(ctx); err != nil {
			logger.Error("health check", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.Write([]byte(`{"status":"ok"}`))
	}
}
