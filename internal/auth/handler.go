package auth

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ayush/rideshare/backend/internal/apperr"
	"github.com/ayush/rideshare/backend/internal/respond"
)

// Revoker records logged-out tokens.
type Revoker interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
}

// Handler holds auth-related HTTP handlers.
type Handler struct {
	revocations Revoker
	logger      *slog.Logger
}

func NewHandler(revocations Revoker, logger *slog.Logger) *Handler {
	return &Handler{revocations: revocations, logger: logger}
}

// Logout revokes the presented token for the rest of its lifetime. It runs
// behind RequireAuth.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	id := FromContext(r.Context())
	if id == nil {
		respond.Error(w, apperr.ErrUnauthenticated)
		return
	}
	if id.TokenID != "" {
		if err := h.revocations.Revoke(r.Context(), id.TokenID, id.ExpiresAt); err != nil {
			h.logger.Error("revoke token", "error", err, "external_id", id.ExternalID)
			respond.Error(w, err)
			return
		}
	}
	respond.Message(w, "logged out")
}
