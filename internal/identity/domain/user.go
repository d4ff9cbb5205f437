package domain

import (
	"strings"
	"time"

	"github.com/aussiebroadwan/streamtab/pkg/idx"
)

// DefaultAvatarURL is used when a user registers without an avatar.
const DefaultAvatarURL = "https://www.pngall.com/wp-content/uploads/5/User-Profile-PNG-Download-Image.png"

type User struct {
	ID            idx.ID
	Username      string // stored lower-case
	Email         string // stored lower-case
	FullName      string
	PasswordHash  string // argon2id PHC string
	AvatarURL     string
	CoverImageURL string

	// RefreshTokenHash is the fingerprint of the single live refresh token,
	// empty when the user has no session.
	RefreshTokenHash string
	RefreshExpiresAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasSession reports whether a refresh token is currently recorded.
func (u User) HasSession() bool { return u.RefreshTokenHash != "" }

// NormalizeIdentity folds a username or email to its stored form.
func NormalizeIdentity(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NewUser carries the registration input. The *Path fields name staged
// uploads and take precedence over the matching URL.
type NewUser struct {
	Username      string
	Email         string
	FullName      string
	Password      string
	AvatarURL     string
	CoverImageURL string

	AvatarPath     string
	CoverImagePath string
}

// ValidUsername reports whether a normalised username can never be taken
// for an email address.
func ValidUsername(username string) bool {
	return !strings.Contains(username, "@")
}

// AccountUpdate carries the mutable profile fields.
type AccountUpdate struct {
	FullName string
	Email    string
}
