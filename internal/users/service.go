package users

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/ayush/rideshare/backend/internal/apperr"
	"github.com/ayush/rideshare/backend/internal/models"
	"github.com/ayush/rideshare/backend/internal/observability"
	"github.com/ayush/rideshare/backend/internal/store"
)

const (
	// provisionAttempts bounds the lookup/link/upsert sequence when
	// concurrent sign-ins collide on a unique index.
	provisionAttempts = 3

	// MaxAvatarSize is the largest accepted avatar upload in bytes.
	MaxAvatarSize = 2 << 20
)

var avatarTypes = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// Store defines user persistence.
type Store interface {
	InsertUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByExternalID(ctx context.Context, externalID string) (*models.User, error)
	LinkExternalID(ctx context.Context, email, externalID string) (*models.User, error)
	UpsertUserByExternalID(ctx context.Context, u *models.User) (*models.User, error)
	UpdateUser(ctx context.Context, id string, patch models.UserPatch) (*models.User, error)
	SetUserAvatar(ctx context.Context, id, url, key string) (*models.User, error)
	DeleteUser(ctx context.Context, id string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	DeleteAllUsers(ctx context.Context) (int64, error)
}

// IdentityCache maps external identity ids to user ids.
type IdentityCache interface {
	GetUserID(ctx context.Context, externalID string) (string, error)
	SetUserID(ctx context.Context, externalID, userID string) error
	Forget(ctx context.Context, externalID string) error
}

// AvatarStore holds avatar images.
type AvatarStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, string, error)
	Remove(ctx context.Context, key string) error
}

// Service is the user directory.
type Service struct {
	store   Store
	cache   IdentityCache
	avatars AvatarStore
	logger  *slog.Logger
}

func NewService(s Store, cache IdentityCache, avatars AvatarStore, logger *slog.Logger) *Service {
	return &Service{store: s, cache: cache, avatars: avatars, logger: logger}
}

// FindOrCreateByExternalID returns the user linked to externalID, linking an
// unlinked record with the same email or creating one from hint when none
// exists. Concurrent calls for the same identity converge on one record.
func (s *Service) FindOrCreateByExternalID(ctx context.Context, externalID string, hint models.Profile) (*models.User, error) {
	if externalID == "" {
		return nil, apperr.ErrUnauthenticated
	}
	email := strings.TrimSpace(hint.Email)

	for attempt := 1; attempt <= provisionAttempts; attempt++ {
		u, err := s.store.GetUserByExternalID(ctx, externalID)
		if err == nil {
			s.remember(ctx, u)
			return u, nil
		}
		if !errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}

		if email != "" {
			u, err = s.store.LinkExternalID(ctx, email, externalID)
			switch {
			case err == nil:
				observability.UsersProvisioned.WithLabelValues("linked").Inc()
				s.remember(ctx, u)
				return u, nil
			case errors.Is(err, store.ErrDuplicate):
				continue
			case !errors.Is(err, apperr.ErrNotFound):
				return nil, err
			}
		}

		u, err = s.store.UpsertUserByExternalID(ctx, &models.User{
			ExternalID: externalID,
			Name:       hint.DisplayName(),
			Email:      email,
			Avatar:     hint.AvatarURL,
			Phone:      hint.Phone,
		})
		if err == nil {
			observability.UsersProvisioned.WithLabelValues("upserted").Inc()
			s.remember(ctx, u)
			return u, nil
		}
		if !errors.Is(err, store.ErrDuplicate) {
			return nil, err
		}
		s.logger.Warn("user provisioning conflict", "external_id", externalID, "attempt", attempt)
	}
	return nil, apperr.Invalid("email", "email already in use")
}

// ResolveExternalID returns the user linked to externalID without creating
// one.
func (s *Service) ResolveExternalID(ctx context.Context, externalID string) (*models.User, error) {
	if externalID == "" {
		return nil, apperr.NotFound("user")
	}
	if id, err := s.cache.GetUserID(ctx, externalID); err != nil {
		s.logger.Warn("identity cache get", "error", err)
	} else if id != "" {
		u, err := s.store.GetUser(ctx, id)
		if err == nil {
			return u, nil
		}
		if !errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
		s.forget(ctx, externalID)
	}

	u, err := s.store.GetUserByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	s.remember(ctx, u)
	return u, nil
}

func (s *Service) remember(ctx context.Context, u *models.User) {
	if u.ExternalID == "" {
		return
	}
	if err := s.cache.SetUserID(ctx, u.ExternalID, u.ID.Hex()); err != nil {
		s.logger.Warn("identity cache set", "error", err)
	}
}

func (s *Service) forget(ctx context.Context, externalID string) {
	if externalID == "" {
		return
	}
	if err := s.cache.Forget(ctx, externalID); err != nil {
		s.logger.Warn("identity cache forget", "error", err)
	}
}

func (s *Service) Get(ctx context.Context, id string) (*models.User, error) {
	return s.store.GetUser(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]models.User, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []models.User{}
	}
	return users, nil
}

// Create registers a user directly. Name and email are required.
func (s *Service) Create(ctx context.Context, req models.CreateUserRequest) (*models.User, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)

	var missing []string
	if req.Name == "" {
		missing = append(missing, "name")
	}
	if req.Email == "" {
		missing = append(missing, "email")
	}
	if len(missing) > 0 {
		return nil, apperr.Missing(missing...)
	}

	u := &models.User{
		ExternalID: strings.TrimSpace(req.ExternalID),
		Name:       req.Name,
		Email:      req.Email,
		Avatar:     req.Avatar,
		Phone:      req.Phone,
	}
	if err := s.store.InsertUser(ctx, u); err != nil {
		return nil, conflict(err)
	}
	return u, nil
}

func (s *Service) Update(ctx context.Context, id string, patch models.UserPatch) (*models.User, error) {
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return nil, apperr.Invalid("name", "name must not be empty")
	}
	if patch.Email != nil && strings.TrimSpace(*patch.Email) == "" {
		return nil, apperr.Invalid("email", "email must not be empty")
	}
	u, err := s.store.UpdateUser(ctx, id, patch)
	if err != nil {
		return nil, conflict(err)
	}
	return u, nil
}

// SetPhone stores phone on the user when it differs from the current value.
func (s *Service) SetPhone(ctx context.Context, u *models.User, phone string) (*models.User, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" || phone == u.Phone {
		return u, nil
	}
	return s.store.UpdateUser(ctx, u.ID.Hex(), models.UserPatch{Phone: &phone})
}

// Delete removes a user together with its avatar object and cache entry.
// Rides and bookings referencing the user are left in place.
func (s *Service) Delete(ctx context.Context, id string) error {
	u, err := s.store.DeleteUser(ctx, id)
	if err != nil {
		return err
	}
	s.forget(ctx, u.ExternalID)
	if u.AvatarKey != "" {
		if err := s.avatars.Remove(ctx, u.AvatarKey); err != nil {
			s.logger.Warn("remove avatar", "error", err, "key", u.AvatarKey)
		}
	}
	return nil
}

// DeleteAll removes every user. Cached identity mappings expire on their
// own and are dropped on the next miss.
func (s *Service) DeleteAll(ctx context.Context) (int64, error) {
	return s.store.DeleteAllUsers(ctx)
}

// UploadAvatar stores an image for user id and points the avatar URL at it.
func (s *Service) UploadAvatar(ctx context.Context, id string, r io.Reader, size int64, contentType string) (*models.User, error) {
	ext, ok := avatarTypes[contentType]
	if !ok {
		return nil, apperr.Invalid("avatar", "unsupported image type")
	}
	if size <= 0 || size > MaxAvatarSize {
		return nil, apperr.Invalid("avatar", fmt.Sprintf("image must be between 1 and %d bytes", MaxAvatarSize))
	}

	current, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("avatars/%s/%s.%s", current.ID.Hex(), uuid.New().String(), ext)
	if err := s.avatars.Put(ctx, key, r, size, contentType); err != nil {
		return nil, err
	}

	u, err := s.store.SetUserAvatar(ctx, id, "/api/users/"+current.ID.Hex()+"/avatar", key)
	if err != nil {
		if rmErr := s.avatars.Remove(ctx, key); rmErr != nil {
			s.logger.Warn("remove orphaned avatar", "error", rmErr, "key", key)
		}
		return nil, err
	}
	if current.AvatarKey != "" {
		if err := s.avatars.Remove(ctx, current.AvatarKey); err != nil {
			s.logger.Warn("remove previous avatar", "error", err, "key", current.AvatarKey)
		}
	}
	return u, nil
}

// Avatar opens the stored avatar of user id. The caller closes the reader.
func (s *Service) Avatar(ctx context.Context, id string) (io.ReadCloser, string, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if u.AvatarKey == "" {
		return nil, "", apperr.NotFound("avatar")
	}
	return s.avatars.Get(ctx, u.AvatarKey)
}

func conflict(err error) error {
	if errors.Is(err, store.ErrDuplicate) {
		return apperr.Invalid("email", "email already in use")
	}
	return err
}
