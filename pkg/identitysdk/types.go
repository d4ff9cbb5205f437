package identitysdk

import (
	"time"

	"github.com/aussiebroadwan/streamtab/pkg/jwtx"
)

// Envelope wraps every response body.
type Envelope[T any] struct {
	StatusCode int    `json:"statusCode"`
	Data       T      `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

// ============================================================================
// Requests
// ============================================================================

type RegisterRequest struct {
	Username string `json:"username" validate:"required,excludes=@"`
	Email    string `json:"email" validate:"required,email"`
	FullName string `json:"fullName" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginRequest takes either Username or Email.
type LoginRequest struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password" validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required"`
}

type UpdateAccountRequest struct {
	FullName string `json:"fullName" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
}

// ============================================================================
// Responses
// ============================================================================

// UserResponse is the outward view of a user. It never carries the password
// hash or the refresh token.
type UserResponse struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	FullName   string    `json:"fullName"`
	Avatar     string    `json:"avatar"`
	CoverImage string    `json:"coverImage"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type TokensResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`

	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int `json:"expiresIn"`
}

type LoginResponse struct {
	User UserResponse `json:"user"`
	TokensResponse
}

type ChannelResponse struct {
	FullName                  string `json:"fullName"`
	Username                  string `json:"username"`
	SubscribersCount          int64  `json:"subscribersCount"`
	ChannelsSubscribedToCount int64  `json:"channelsSubscribedToCount"`
	IsSubscribed              bool   `json:"isSubscribed"`
	Avatar                    string `json:"avatar"`
	CoverImage                string `json:"coverImage"`
	Email                     string `json:"email"`
}

type OwnerResponse struct {
	FullName string `json:"fullName"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

type HistoryEntry struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	VideoFile   string         `json:"videoFile"`
	Thumbnail   string         `json:"thumbnail"`
	Duration    float64        `json:"duration"`
	Views       int64          `json:"views"`
	IsPublished bool           `json:"isPublished"`
	CreatedAt   time.Time      `json:"createdAt"`
	Owner       *OwnerResponse `json:"owner"`
}

// ============================================================================
// System
// ============================================================================

type HealthChecks struct {
	Database string `json:"database"`
	Signer   string `json:"signer"`
}

type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// JWKSResponse is the key set served at /.well-known/jwks.json.
type JWKSResponse jwtx.JWKS
