package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is a profile record in the users collection. ExternalID is the
// identifier issued by the authentication provider.
type User struct {
	ID         primitive.ObjectID `json:"id"                   bson:"_id,omitempty"`
	ExternalID string             `json:"externalId,omitempty" bson:"external_id,omitempty"`
	Name       string             `json:"name"                 bson:"name"`
	Email      string             `json:"email,omitempty"      bson:"email,omitempty"`
	Avatar     string             `json:"avatar,omitempty"     bson:"avatar,omitempty"`
	AvatarKey  string             `json:"-"                    bson:"avatar_key,omitempty"`
	Phone      string             `json:"phone,omitempty"      bson:"phone,omitempty"`
	CreatedAt  time.Time          `json:"createdAt"            bson:"created_at"`
	UpdatedAt  time.Time          `json:"updatedAt"            bson:"updated_at"`
}

// Profile carries the identity provider's view of a user. It seeds new
// records on first sign-in.
type Profile struct {
	GivenName  string
	FamilyName string
	Username   string
	Email      string
	AvatarURL  string
	Phone      string
}

// DisplayName picks the first non-empty of given name, family name,
// username, email local-part, falling back to "Unknown".
func (p Profile) DisplayName() string {
	local, _, _ := strings.Cut(p.Email, "@")
	for _, candidate := range []string{p.GivenName, p.FamilyName, p.Username, local} {
		if s := strings.TrimSpace(candidate); s != "" {
			return s
		}
	}
	return "Unknown"
}

// CreateUserRequest is the JSON body for POST /api/users.
type CreateUserRequest struct {
	ExternalID string `json:"externalId"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Avatar     string `json:"avatar"`
	Phone      string `json:"phone"`
}

// UserPatch is the JSON body for PUT /api/users/{id}. Nil fields are left
// untouched.
type UserPatch struct {
	Name   *string `json:"name"`
	Email  *string `json:"email"`
	Avatar *string `json:"avatar"`
	Phone  *string `json:"phone"`
}
