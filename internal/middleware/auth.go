package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/ayush/rideshare/backend/internal/apperr"
	"github.com/ayush/rideshare/backend/internal/auth"
	"github.com/ayush/rideshare/backend/internal/respond"
)

// TokenVerifier turns a raw bearer token into an identity.
type TokenVerifier interface {
	Verify(raw string) (*auth.Identity, error)
}

// RevocationChecker reports logged-out tokens.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// RequireAuth rejects requests without a valid bearer token and injects the
// verified identity into the request context.
func RequireAuth(verifier TokenVerifier, revocations RevocationChecker) func(http.Handler) http.Handler {
	return authenticate(verifier, revocations, true)
}

// OptionalAuth injects the identity when a valid token is presented and
// lets anonymous requests through. A malformed or revoked token still fails.
func OptionalAuth(verifier TokenVerifier, revocations RevocationChecker) func(http.Handler) http.Handler {
	return authenticate(verifier, revocations, false)
}

func authenticate(verifier TokenVerifier, revocations RevocationChecker, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				if required {
					respond.Error(w, apperr.ErrUnauthenticated)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			id, err := verifier.Verify(raw)
			if err != nil {
				respond.Error(w, apperr.ErrUnauthenticated)
				return
			}
			if id.TokenID != "" {
				revoked, err := revocations.IsRevoked(r.Context(), id.TokenID)
				if err != nil {
					respond.Error(w, err)
					return
				}
				if revoked {
					respond.Error(w, apperr.ErrUnauthenticated)
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
