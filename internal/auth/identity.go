package auth

import (
	"context"
	"time"

	"github.com/ayush/rideshare/backend/internal/models"
)

// Identity is the verified caller, as asserted by the identity provider's
// token. ExternalID is the provider's subject.
type Identity struct {
	ExternalID string
	GivenName  string
	FamilyName string
	Username   string
	Email      string
	AvatarURL  string

	// TokenID and ExpiresAt identify the presented token for revocation.
	TokenID   string
	ExpiresAt time.Time
}

// Profile converts the identity claims into the hint used to seed a user.
func (id *Identity) Profile() models.Profile {
	return models.Profile{
		GivenName:  id.GivenName,
		FamilyName: id.FamilyName,
		Username:   id.Username,
		Email:      id.Email,
		AvatarURL:  id.AvatarURL,
	}
}

type contextKey string

const identityKey contextKey = "identity"

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// FromContext returns the identity stored by the auth middleware, or nil.
func FromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey).(*Identity)
	return id
}
