package users

import (
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ayush/rideshare/backend/internal/apperr"
	"github.com/ayush/rideshare/backend/internal/auth"
	"github.com/ayush/rideshare/backend/internal/models"
	"github.com/ayush/rideshare/backend/internal/respond"
)

// Handler holds user HTTP handlers.
type Handler struct {
	svc    *Service
	logger *slog.Logger
}

func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Routes mounts the user endpoints. requireAuth guards the /me endpoints.
func (h *Handler) Routes(requireAuth func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Delete("/", h.DeleteAll)

	r.With(requireAuth).Get("/me", h.Me)
	r.With(requireAuth).Post("/me", h.Register)

	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	r.Get("/{id}/avatar", h.GetAvatar)
	r.Put("/{id}/avatar", h.PutAvatar)
	return r
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if apperr.Status(err) >= http.StatusInternalServerError {
		h.logger.Error("users request failed", "error", err, "path", r.URL.Path)
	}
	respond.Error(w, err)
}

// List returns all users, newest first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, users)
}

// Create registers a user from profile fields.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateUserRequest
	if err := respond.Decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	u, err := h.svc.Create(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, u)
}

func (h *Handler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	if _, err := h.svc.DeleteAll(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	respond.Message(w, "All users deleted.")
}

// Me returns the user linked to the caller's identity.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	if id == nil {
		h.fail(w, r, apperr.ErrUnauthenticated)
		return
	}
	u, err := h.svc.ResolveExternalID(r.Context(), id.ExternalID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, u)
}

// Register provisions the caller's user record from the token profile. An
// optional {"phone": "..."} body sets the contact phone.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	if id == nil {
		h.fail(w, r, apperr.ErrUnauthenticated)
		return
	}
	var body struct {
		Phone string `json:"phone"`
	}
	if r.ContentLength != 0 {
		if err := respond.Decode(r, &body); err != nil {
			h.fail(w, r, err)
			return
		}
	}

	hint := id.Profile()
	hint.Phone = body.Phone
	u, err := h.svc.FindOrCreateByExternalID(r.Context(), id.ExternalID, hint)
	if err == nil {
		u, err = h.svc.SetPhone(r.Context(), u, body.Phone)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, u)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, u)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var patch models.UserPatch
	if err := respond.Decode(r, &patch); err != nil {
		h.fail(w, r, err)
		return
	}
	u, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, u)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	respond.Message(w, "User deleted")
}

// PutAvatar stores the raw request body as the user's avatar image.
func (h *Handler) PutAvatar(w http.ResponseWriter, r *http.Request) {
	contentType := strings.TrimSpace(strings.Split(r.Header.Get("Content-Type"), ";")[0])
	body := http.MaxBytesReader(w, r.Body, MaxAvatarSize)
	u, err := h.svc.UploadAvatar(r.Context(), chi.URLParam(r, "id"), body, r.ContentLength, contentType)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, u)
}

// GetAvatar streams the stored avatar image.
func (h *Handler) GetAvatar(w http.ResponseWriter, r *http.Request) {
	rc, contentType, err := h.svc.Avatar(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "private, max-age=300")
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("stream avatar", "error", err)
	}
}
