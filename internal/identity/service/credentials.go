package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/streamtab/internal/identity/domain"
	"github.com/aussiebroadwan/streamtab/internal/identity/events"
	"github.com/aussiebroadwan/streamtab/internal/identity/media"
	"github.com/aussiebroadwan/streamtab/internal/identity/metrics"
	"github.com/aussiebroadwan/streamtab/internal/identity/store"
	"github.com/aussiebroadwan/streamtab/pkg/cryptox"
	"github.com/aussiebroadwan/streamtab/pkg/idx"
	"github.com/aussiebroadwan/streamtab/pkg/slogx"
)

// CredentialService owns user records and their password hashes.
type CredentialService struct {
	Store   store.Store
	Media   media.Resolver
	Events  events.Publisher
	Metrics *metrics.Auth
}

var errNoResolver = errors.New("no media resolver configured")

// Register creates a user. Username and email are stored lower-cased; the
// avatar falls back to the placeholder image. Staged uploads are resolved
// only after the username and email are known to be free, and are removed
// whatever the outcome.
func (s *CredentialService) Register(ctx context.Context, in domain.NewUser) (domain.User, error) {
	defer RemoveUpload(ctx, in.AvatarPath)
	defer RemoveUpload(ctx, in.CoverImagePath)

	username := domain.NormalizeIdentity(in.Username)
	email := domain.NormalizeIdentity(in.Email)
	fullName := strings.TrimSpace(in.FullName)

	if username == "" || email == "" || fullName == "" || strings.TrimSpace(in.Password) == "" {
		return domain.User{}, domain.ErrMissingFields
	}
	if !domain.ValidUsername(username) {
		return domain.User{}, domain.ErrInvalidUsername
	}
	if err := s.checkAvailable(ctx, username, email); err != nil {
		return domain.User{}, err
	}

	hash, err := cryptox.HashPassword(in.Password)
	if err != nil {
		return domain.User{}, domain.Internal(err)
	}

	avatar, cover, err := s.resolveImages(ctx, in)
	if err != nil {
		return domain.User{}, err
	}
	if avatar == "" {
		avatar = domain.DefaultAvatarURL
	}

	now := time.Now().UTC()
	u := domain.User{
		ID:            idx.NewAt(now),
		Username:      username,
		Email:         email,
		FullName:      fullName,
		PasswordHash:  hash,
		AvatarURL:     avatar,
		CoverImageURL: cover,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.Store.Users().CreateUser(ctx, u); err != nil {
		// Lost a race with a concurrent signup after the availability check.
		if in.AvatarPath != "" {
			s.discard(ctx, avatar)
		}
		if in.CoverImagePath != "" {
			s.discard(ctx, cover)
		}
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, domain.ErrUserExists
		}
		return domain.User{}, domain.Internal(err)
	}

	slogx.FromContext(ctx).Info("user registered", slog.String("user_id", u.ID.String()))
	s.Metrics.Registered()
	publish(ctx, s.Events, events.UserRegistered, u)

	return u, nil
}

// checkAvailable fails with ErrUserExists when either key is taken. The
// unique constraints still decide races.
func (s *CredentialService) checkAvailable(ctx context.Context, username, email string) error {
	users := s.Store.Users()
	for _, lookup := range []func() (domain.User, error){
		func() (domain.User, error) { return users.GetUserByUsername(ctx, username) },
		func() (domain.User, error) { return users.GetUserByEmail(ctx, email) },
	} {
		_, err := lookup()
		switch {
		case err == nil:
			return domain.ErrUserExists
		case !errors.Is(err, store.ErrNotFound):
			return domain.Internal(err)
		}
	}
	return nil
}

// resolveImages uploads the staged files, falling back to the given URLs.
// A failed cover upload discards the avatar already stored.
func (s *CredentialService) resolveImages(ctx context.Context, in domain.NewUser) (avatar, cover string, err error) {
	avatar, cover = strings.TrimSpace(in.AvatarURL), strings.TrimSpace(in.CoverImageURL)
	if (in.AvatarPath != "" || in.CoverImagePath != "") && s.Media == nil {
		return "", "", domain.Internal(errNoResolver)
	}

	if in.AvatarPath != "" {
		if avatar, err = ResolveUpload(ctx, s.Media, in.AvatarPath); err != nil {
			return "", "", err
		}
	}
	if in.CoverImagePath != "" {
		if cover, err = ResolveUpload(ctx, s.Media, in.CoverImagePath); err != nil {
			if in.AvatarPath != "" {
				s.discard(ctx, avatar)
			}
			return "", "", err
		}
	}
	return avatar, cover, nil
}

// discard removes a resolved object that no record points at.
func (s *CredentialService) discard(ctx context.Context, url string) {
	discardObject(ctx, s.Media, url)
}

// FindByIdentity looks a user up by email when identity contains "@" and by
// username otherwise. Usernames never contain "@", so the two cannot collide.
func (s *CredentialService) FindByIdentity(ctx context.Context, identity string) (domain.User, error) {
	identity = domain.NormalizeIdentity(identity)
	if identity == "" {
		return domain.User{}, domain.ErrUserNotFound
	}

	lookup := s.Store.Users().GetUserByUsername
	if strings.Contains(identity, "@") {
		lookup = s.Store.Users().GetUserByEmail
	}

	u, err := lookup(ctx, identity)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, domain.ErrUserNotFound
		}
		return domain.User{}, domain.Internal(err)
	}
	return u, nil
}

// Authenticate checks a password for identity. Unknown identities and wrong
// passwords both cost one hash evaluation and return ErrInvalidCredentials.
func (s *CredentialService) Authenticate(ctx context.Context, identity, password string) (domain.User, error) {
	if strings.TrimSpace(identity) == "" || password == "" {
		return domain.User{}, domain.Validation("Username or email and password are required")
	}

	u, err := s.FindByIdentity(ctx, identity)
	if err != nil {
		if !errors.Is(err, domain.ErrUserNotFound) {
			return domain.User{}, err
		}
		_ = cryptox.VerifyPassword(password, cryptox.DummyHash())
		return domain.User{}, domain.ErrInvalidCredentials
	}

	if !VerifyPassword(u, password) {
		return domain.User{}, domain.ErrInvalidCredentials
	}
	return u, nil
}

// VerifyPassword reports whether candidate matches the user's stored hash.
func VerifyPassword(u domain.User, candidate string) bool {
	return cryptox.VerifyPassword(candidate, u.PasswordHash) == nil
}

// UpdatePassword rehashes and stores newPassword. Other fields are untouched.
func (s *CredentialService) UpdatePassword(ctx context.Context, userID idx.ID, newPassword string) error {
	return updatePassword(ctx, s.Store, userID, newPassword)
}

func updatePassword(ctx context.Context, st store.Store, userID idx.ID, newPassword string) error {
	if strings.TrimSpace(newPassword) == "" {
		return domain.ErrMissingFields
	}

	hash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		return domain.Internal(err)
	}

	if err := st.Users().UpdatePasswordHash(ctx, userID, hash); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.ErrUserNotFound
		}
		return domain.Internal(err)
	}
	return nil
}

// publish logs delivery failures and never returns them.
func publish(ctx context.Context, p events.Publisher, typ string, u domain.User) {
	if p == nil {
		return
	}
	e := events.Event{
		Type:       typ,
		UserID:     u.ID.String(),
		Username:   u.Username,
		OccurredAt: time.Now().UTC(),
	}
	if err := p.Publish(ctx, e); err != nil {
		slogx.FromContext(ctx).Warn("failed to publish event",
			slog.String("type", typ),
			slog.String("error", err.Error()),
		)
	}
}
