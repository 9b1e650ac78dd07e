package rides

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ayush/rideshare/backend/internal/apperr"
	"github.com/ayush/rideshare/backend/internal/auth"
	"github.com/ayush/rideshare/backend/internal/models"
	"github.com/ayush/rideshare/backend/internal/respond"
)

// Handler holds ride HTTP handlers.
type Handler struct {
	svc    *Service
	logger *slog.Logger
}

func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Routes mounts the ride endpoints. Posting a ride requires an identity.
func (h *Handler) Routes(requireAuth func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.With(requireAuth).Post("/", h.Create)
	r.Delete("/", h.DeleteAll)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	return r
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if apperr.Status(err) >= http.StatusInternalServerError {
		h.logger.Error("rides request failed", "error", err, "path", r.URL.Path)
	}
	respond.Error(w, err)
}

// List returns all rides, optionally narrowed by the origin, destination,
// date and upcoming query parameters.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := Filter{
		Origin:      q.Get("origin"),
		Destination: q.Get("destination"),
		Date:        q.Get("date"),
	}
	if raw := q.Get("upcoming"); raw != "" {
		upcoming, err := strconv.ParseBool(raw)
		if err != nil {
			h.fail(w, r, apperr.Invalid("upcoming", "upcoming must be a boolean"))
			return
		}
		f.Upcoming = upcoming
	}

	rides, err := h.svc.List(r.Context(), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, rides)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateRideRequest
	if err := respond.Decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	ride, err := h.svc.Create(r.Context(), auth.FromContext(r.Context()), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, ride)
}

func (h *Handler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	if _, err := h.svc.DeleteAll(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	respond.Message(w, "All rides deleted.")
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ride, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, ride)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var patch models.RidePatch
	if err := respond.Decode(r, &patch); err != nil {
		h.fail(w, r, err)
		return
	}
	ride, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, ride)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	respond.Message(w, "Ride deleted")
}
