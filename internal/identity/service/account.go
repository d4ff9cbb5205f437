package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"

	"github.com/aussiebroadwan/streamtab/internal/identity/domain"
	"github.com/aussiebroadwan/streamtab/internal/identity/events"
	"github.com/aussiebroadwan/streamtab/internal/identity/media"
	"github.com/aussiebroadwan/streamtab/internal/identity/metrics"
	"github.com/aussiebroadwan/streamtab/internal/identity/store"
	"github.com/aussiebroadwan/streamtab/pkg/cryptox"
	"github.com/aussiebroadwan/streamtab/pkg/idx"
	"github.com/aussiebroadwan/streamtab/pkg/slogx"
)

// AccountService covers the authenticated user's own profile.
type AccountService struct {
	Store   store.Store
	Media   media.Resolver
	Events  events.Publisher
	Metrics *metrics.Auth
}

func (s *AccountService) CurrentUser(ctx context.Context, userID idx.ID) (domain.User, error) {
	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, domain.ErrUserNotFound
		}
		return domain.User{}, domain.Internal(err)
	}
	return u, nil
}

// ChangePassword replaces the password after checking the old one and ends
// the current session. The write only lands if the hash that was checked is
// still the stored one, so two changes racing on the same old password have
// a single winner.
func (s *AccountService) ChangePassword(ctx context.Context, userID idx.ID, oldPassword, newPassword string) error {
	if oldPassword == "" || strings.TrimSpace(newPassword) == "" {
		return domain.ErrMissingFields
	}

	u, err := s.CurrentUser(ctx, userID)
	if err != nil {
		return err
	}
	if !VerifyPassword(u, oldPassword) {
		return domain.ErrWrongPassword
	}

	hash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		return domain.Internal(err)
	}

	if err := s.Store.Users().SwapPasswordHash(ctx, userID, u.PasswordHash, hash); err != nil {
		switch {
		case errors.Is(err, store.ErrStale):
			return domain.ErrWrongPassword
		case errors.Is(err, store.ErrNotFound):
			return domain.ErrUserNotFound
		}
		return domain.Internal(err)
	}

	slogx.FromContext(ctx).Info("password changed", slog.String("user_id", userID.String()))
	s.Metrics.Logout()
	publish(ctx, s.Events, events.UserPasswordChanged, u)
	return nil
}

// UpdateAccount overwrites full name and email.
func (s *AccountService) UpdateAccount(ctx context.Context, userID idx.ID, in domain.AccountUpdate) (domain.User, error) {
	fullName := strings.TrimSpace(in.FullName)
	email := domain.NormalizeIdentity(in.Email)
	if fullName == "" || email == "" {
		return domain.User{}, domain.ErrMissingFields
	}

	if err := s.Store.Users().UpdateAccount(ctx, userID, fullName, email); err != nil {
		switch {
		case errors.Is(err, store.ErrAlreadyExists):
			return domain.User{}, domain.ErrUserExists
		case errors.Is(err, store.ErrNotFound):
			return domain.User{}, domain.ErrUserNotFound
		}
		return domain.User{}, domain.Internal(err)
	}
	return s.CurrentUser(ctx, userID)
}

// UpdateAvatar uploads the staged file at localPath and stores its URL. The
// staged file is removed whatever the outcome.
func (s *AccountService) UpdateAvatar(ctx context.Context, userID idx.ID, localPath string) (domain.User, error) {
	return s.updateImage(ctx, userID, localPath, "Avatar file is missing", s.Store.Users().UpdateAvatar)
}

// UpdateCoverImage is UpdateAvatar for the channel cover.
func (s *AccountService) UpdateCoverImage(ctx context.Context, userID idx.ID, localPath string) (domain.User, error) {
	return s.updateImage(ctx, userID, localPath, "Cover image file is missing", s.Store.Users().UpdateCoverImage)
}

func (s *AccountService) updateImage(
	ctx context.Context,
	userID idx.ID,
	localPath, missing string,
	save func(context.Context, idx.ID, string) error,
) (domain.User, error) {
	if localPath == "" {
		return domain.User{}, domain.Validation(missing)
	}
	url, err := ResolveUpload(ctx, s.Media, localPath)
	if err != nil {
		return domain.User{}, err
	}

	if err := save(ctx, userID, url); err != nil {
		discardObject(ctx, s.Media, url)
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, domain.ErrUserNotFound
		}
		return domain.User{}, domain.Internal(err)
	}
	return s.CurrentUser(ctx, userID)
}

// ResolveUpload hands a staged file to the resolver and removes it.
func ResolveUpload(ctx context.Context, r media.Resolver, localPath string) (string, error) {
	if localPath == "" {
		return "", nil
	}
	defer RemoveUpload(ctx, localPath)

	url, err := r.Resolve(ctx, localPath)
	if err != nil {
		return "", domain.WithCause(domain.Validation("Error while uploading file"), err)
	}
	return url, nil
}

// discardObject removes a resolved object that no record points at, logging
// failures.
func discardObject(ctx context.Context, r media.Resolver, url string) {
	if r == nil || url == "" {
		return
	}
	if err := r.Remove(ctx, url); err != nil {
		slogx.FromContext(ctx).Warn("failed to discard media object",
			slog.String("url", url),
			slog.String("error", err.Error()),
		)
	}
}

// RemoveUpload deletes a staged upload, logging anything but a missing file.
func RemoveUpload(ctx context.Context, localPath string) {
	if localPath == "" {
		return
	}
	if err := os.Remove(localPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		slogx.FromContext(ctx).Warn("failed to remove staged upload",
			slog.String("path", localPath),
			slog.String("error", err.Error()),
		)
	}
}
