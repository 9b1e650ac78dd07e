package bookings

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ayush/rideshare/backend/internal/apperr"
	"github.com/ayush/rideshare/backend/internal/auth"
	"github.com/ayush/rideshare/backend/internal/models"
	"github.com/ayush/rideshare/backend/internal/respond"
)

// Handler holds booking HTTP handlers.
type Handler struct {
	svc    *Service
	logger *slog.Logger
}

func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Routes mounts the booking endpoints. optionalAuth attributes status
// changes to the caller when a token is presented.
func (h *Handler) Routes(optionalAuth func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Delete("/", h.DeleteAll)
	r.Get("/{id}", h.Get)
	r.With(optionalAuth).Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	r.Get("/{id}/history", h.History)
	return r
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if apperr.Status(err) >= http.StatusInternalServerError {
		h.logger.Error("bookings request failed", "error", err, "path", r.URL.Path)
	}
	respond.Error(w, err)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.svc.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, bookings)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateBookingRequest
	if err := respond.Decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	b, err := h.svc.Create(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, b)
}

func (h *Handler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	if _, err := h.svc.DeleteAll(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	respond.Message(w, "All bookings deleted.")
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	b, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, b)
}

// Update applies a status change. Only the status field is accepted.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateBookingRequest
	if err := respond.Decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	var actor string
	if id := auth.FromContext(r.Context()); id != nil {
		actor = id.ExternalID
	}
	b, err := h.svc.UpdateStatus(r.Context(), chi.URLParam(r, "id"), req.Status, actor)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, b)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	respond.Message(w, "Booking deleted")
}

// History lists the recorded status changes of a booking.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	events, err := h.svc.History(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, events)
}
