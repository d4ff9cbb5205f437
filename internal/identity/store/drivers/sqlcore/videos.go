package sqlcore

import (
	"context"
	"time"

	"github.com/aussiebroadwan/streamtab/internal/identity/domain"
	"github.com/aussiebroadwan/streamtab/pkg/idx"
)

const videoColumns = `id, owner_id, title, description, video_url, thumbnail_url,
	duration_seconds, views, is_published, created_at, updated_at`

type videosRepo struct {
	q *queries
}

func scanVideo(row rowScanner) (domain.Video, error) {
	var v domain.Video
	err := row.Scan(
		&v.ID, &v.OwnerID, &v.Title, &v.Description, &v.VideoURL, &v.ThumbnailURL,
		&v.Duration, &v.Views, &v.IsPublished, &v.CreatedAt, &v.UpdatedAt,
	)
	v.CreatedAt = v.CreatedAt.UTC()
	v.UpdatedAt = v.UpdatedAt.UTC()
	return v, err
}

func (r *videosRepo) CreateVideo(ctx context.Context, v domain.Video) error {
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	if v.UpdatedAt.IsZero() {
		v.UpdatedAt = v.CreatedAt
	}
	_, err := r.q.exec(ctx, `
		INSERT INTO videos (`+videoColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.OwnerID, v.Title, v.Description, v.VideoURL, v.ThumbnailURL,
		v.Duration, v.Views, v.IsPublished, v.CreatedAt.UTC(), v.UpdatedAt.UTC(),
	)
	return r.q.mapWriteErr(err)
}

func (r *videosRepo) GetVideoByID(ctx context.Context, id idx.ID) (domain.Video, error) {
	v, err := scanVideo(r.q.queryRow(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = ?`, id))
	return v, mapNotFound(err)
}

func (r *videosRepo) ListVideosByIDs(ctx context.Context, ids []idx.ID) ([]domain.Video, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	out := make([]domain.Video, 0, len(ids))
	err := inBatches(ids, func(in string, args []any) error {
		rows, err := r.q.query(ctx, `SELECT `+videoColumns+` FROM videos WHERE id IN (`+in+`)`, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			v, err := scanVideo(rows)
			if err != nil {
				return err
			}
			out = append(out, v)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *videosRepo) DeleteVideo(ctx context.Context, id idx.ID) error {
	res, err := r.q.exec(ctx, `DELETE FROM videos WHERE id = ?`, id)
	return expectOne(res, err)
}
