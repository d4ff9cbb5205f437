package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/streamtab/internal/identity/domain"
	"github.com/aussiebroadwan/streamtab/pkg/idx"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")

	// ErrStale is returned by compare-and-swap writes when the current value
	// no longer matches the expected one.
	ErrStale = errors.New("store: stale value")
)

// Store is the root data access interface implemented by the sql drivers.
// Repositories hang off it so that a Tx exposes the same surface.
type Store interface {
	Users() Users
	Subscriptions() Subscriptions
	Videos() Videos
	WatchHistory() WatchHistory

	ApplyMigrations() error

	// Tx starts a read/write transaction. The caller must Commit or Rollback.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction, committing when fn returns nil and
	// rolling back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error
	Ping(ctx context.Context) error
}

// Tx is a Store bound to one transaction. Nested transactions are refused.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// CreateUser inserts u. ErrAlreadyExists when username or email is taken.
	CreateUser(ctx context.Context, u domain.User) error

	GetUserByID(ctx context.Context, id idx.ID) (domain.User, error)

	// GetUserByUsername matches the lower-cased username.
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)

	// GetUserByEmail matches the lower-cased email only.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// ListUsersByIDs returns the users that exist, in no particular order.
	// Large lists are queried in batches.
	ListUsersByIDs(ctx context.Context, ids []idx.ID) ([]domain.User, error)

	// UpdateAccount overwrites full name and email. ErrAlreadyExists when the
	// email belongs to someone else.
	UpdateAccount(ctx context.Context, id idx.ID, fullName, email string) error

	UpdateAvatar(ctx context.Context, id idx.ID, url string) error
	UpdateCoverImage(ctx context.Context, id idx.ID, url string) error
	UpdatePasswordHash(ctx context.Context, id idx.ID, hash string) error

	// SwapPasswordHash replaces the hash only if it still equals oldHash and
	// clears the session in the same statement. ErrStale when the stored hash
	// changed in between.
	SwapPasswordHash(ctx context.Context, id idx.ID, oldHash, newHash string) error

	// SetRefreshToken overwrites the session fingerprint unconditionally. An
	// empty hash clears the session.
	SetRefreshToken(ctx context.Context, id idx.ID, hash string, expiresAt *time.Time) error

	// SwapRefreshToken replaces the fingerprint only if it still equals
	// oldHash, as one statement. ErrStale when another writer got there first.
	SwapRefreshToken(ctx context.Context, id idx.ID, oldHash, newHash string, expiresAt time.Time) error

	// ClearExpiredRefreshTokens drops fingerprints whose expiry is before now.
	ClearExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error)
}

type Subscriptions interface {
	// CreateSubscription inserts an edge. ErrAlreadyExists for a duplicate pair.
	CreateSubscription(ctx context.Context, s domain.Subscription) error
	DeleteSubscription(ctx context.Context, subscriberID, channelID idx.ID) error

	// ChannelStats reads both counts and the requester's edge in one
	// statement, so the three values come from the same snapshot. A zero
	// requester is never subscribed.
	ChannelStats(ctx context.Context, channelID, requester idx.ID) (domain.ChannelStats, error)
}

type Videos interface {
	CreateVideo(ctx context.Context, v domain.Video) error
	GetVideoByID(ctx context.Context, id idx.ID) (domain.Video, error)

	// ListVideosByIDs returns the videos that exist, in no particular order.
	// Large lists are queried in batches.
	ListVideosByIDs(ctx context.Context, ids []idx.ID) ([]domain.Video, error)

	DeleteVideo(ctx context.Context, id idx.ID) error
}

type WatchHistory interface {
	// AppendWatch adds videoID to the end of the user's history.
	AppendWatch(ctx context.Context, userID, videoID idx.ID, at time.Time) error

	// RemoveWatch deletes every entry of videoID from the user's history.
	RemoveWatch(ctx context.Context, userID, videoID idx.ID) error

	// ListWatchedVideoIDs returns the history oldest first. Entries may name
	// videos that no longer exist.
	ListWatchedVideoIDs(ctx context.Context, userID idx.ID) ([]idx.ID, error)

	// TrimWatchHistory keeps only the newest keep entries.
	TrimWatchHistory(ctx context.Context, userID idx.ID, keep int) error
}
