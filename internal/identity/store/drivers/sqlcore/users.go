package sqlcore

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/streamtab/internal/identity/domain"
	"github.com/aussiebroadwan/streamtab/internal/identity/store"
	"github.com/aussiebroadwan/streamtab/pkg/idx"
)

const userColumns = `id, username, email, full_name, password_hash, avatar_url, cover_image_url,
	refresh_token_hash, refresh_expires_at, created_at, updated_at`

type usersRepo struct {
	q *queries
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (domain.User, error) {
	var (
		u       domain.User
		refresh sql.NullString
		expires sql.NullTime
	)
	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.FullName, &u.PasswordHash, &u.AvatarURL, &u.CoverImageURL,
		&refresh, &expires, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, err
	}
	u.RefreshTokenHash = refresh.String
	u.RefreshExpiresAt = timePtr(expires)
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return u, nil
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = u.CreatedAt
	}

	_, err := r.q.exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.Email, u.FullName, u.PasswordHash, u.AvatarURL, u.CoverImageURL,
		nullString(u.RefreshTokenHash), nullTime(u.RefreshExpiresAt), u.CreatedAt.UTC(), u.UpdatedAt.UTC(),
	)
	return r.q.mapWriteErr(err)
}

func (r *usersRepo) GetUserByID(ctx context.Context, id idx.ID) (domain.User, error) {
	u, err := scanUser(r.q.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	return u, mapNotFound(err)
}

func (r *usersRepo) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	u, err := scanUser(r.q.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username))
	return u, mapNotFound(err)
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	u, err := scanUser(r.q.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email))
	return u, mapNotFound(err)
}

func (r *usersRepo) ListUsersByIDs(ctx context.Context, ids []idx.ID) ([]domain.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	out := make([]domain.User, 0, len(ids))
	err := inBatches(ids, func(in string, args []any) error {
		rows, err := r.q.query(ctx, `SELECT `+userColumns+` FROM users WHERE id IN (`+in+`)`, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			u, err := scanUser(rows)
			if err != nil {
				return err
			}
			out = append(out, u)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *usersRepo) UpdateAccount(ctx context.Context, id idx.ID, fullName, email string) error {
	res, err := r.q.exec(ctx,
		`UPDATE users SET full_name = ?, email = ?, updated_at = ? WHERE id = ?`,
		fullName, email, time.Now().UTC(), id,
	)
	return expectOne(res, r.q.mapWriteErr(err))
}

func (r *usersRepo) UpdateAvatar(ctx context.Context, id idx.ID, url string) error {
	return r.updateColumn(ctx, "avatar_url", id, url)
}

func (r *usersRepo) UpdateCoverImage(ctx context.Context, id idx.ID, url string) error {
	return r.updateColumn(ctx, "cover_image_url", id, url)
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, id idx.ID, hash string) error {
	return r.updateColumn(ctx, "password_hash", id, hash)
}

func (r *usersRepo) SwapPasswordHash(ctx context.Context, id idx.ID, oldHash, newHash string) error {
	if oldHash == "" {
		return store.ErrStale
	}

	res, err := r.q.exec(ctx, `
		UPDATE users
		SET password_hash = ?, refresh_token_hash = NULL, refresh_expires_at = NULL, updated_at = ?
		WHERE id = ? AND password_hash = ?`,
		newHash, time.Now().UTC(), id, oldHash,
	)
	return expectSwap(res, err)
}

// updateColumn is only called with the fixed column names above.
func (r *usersRepo) updateColumn(ctx context.Context, column string, id idx.ID, value string) error {
	res, err := r.q.exec(ctx,
		`UPDATE users SET `+column+` = ?, updated_at = ? WHERE id = ?`,
		value, time.Now().UTC(), id,
	)
	return expectOne(res, err)
}

func (r *usersRepo) SetRefreshToken(ctx context.Context, id idx.ID, hash string, expiresAt *time.Time) error {
	if hash == "" {
		expiresAt = nil
	}
	res, err := r.q.exec(ctx,
		`UPDATE users SET refresh_token_hash = ?, refresh_expires_at = ?, updated_at = ? WHERE id = ?`,
		nullString(hash), nullTime(expiresAt), time.Now().UTC(), id,
	)
	return expectOne(res, err)
}

func (r *usersRepo) SwapRefreshToken(ctx context.Context, id idx.ID, oldHash, newHash string, expiresAt time.Time) error {
	if oldHash == "" {
		return store.ErrStale
	}

	res, err := r.q.exec(ctx, `
		UPDATE users
		SET refresh_token_hash = ?, refresh_expires_at = ?, updated_at = ?
		WHERE id = ? AND refresh_token_hash = ?`,
		nullString(newHash), expiresAt.UTC(), time.Now().UTC(), id, oldHash,
	)
	return expectSwap(res, err)
}

// expectSwap maps a compare and set that matched no row to ErrStale.
func expectSwap(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return store.ErrStale
	}
	return nil
}

func (r *usersRepo) ClearExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.q.exec(ctx, `
		UPDATE users
		SET refresh_token_hash = NULL, refresh_expires_at = NULL, updated_at = ?
		WHERE refresh_token_hash IS NOT NULL AND refresh_expires_at < ?`,
		now.UTC(), now.UTC(),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
