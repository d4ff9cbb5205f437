package sqlcore

import (
	"context"
	"time"

	"github.com/aussiebroadwan/streamtab/pkg/idx"
)

type watchHistoryRepo struct {
	q *queries
}

// Entries are ordered by the auto-increment seq column, not the timestamp,
// so two views in the same instant keep their insertion order.

func (r *watchHistoryRepo) AppendWatch(ctx context.Context, userID, videoID idx.ID, at time.Time) error {
	_, err := r.q.exec(ctx,
		`INSERT INTO watch_history (user_id, video_id, watched_at) VALUES (?, ?, ?)`,
		userID, videoID, at.UTC(),
	)
	return err
}

func (r *watchHistoryRepo) RemoveWatch(ctx context.Context, userID, videoID idx.ID) error {
	_, err := r.q.exec(ctx,
		`DELETE FROM watch_history WHERE user_id = ? AND video_id = ?`,
		userID, videoID,
	)
	return err
}

func (r *watchHistoryRepo) ListWatchedVideoIDs(ctx context.Context, userID idx.ID) ([]idx.ID, error) {
	rows, err := r.q.query(ctx,
		`SELECT video_id FROM watch_history WHERE user_id = ? ORDER BY seq ASC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []idx.ID
	for rows.Next() {
		var id idx.ID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *watchHistoryRepo) TrimWatchHistory(ctx context.Context, userID idx.ID, keep int) error {
	if keep <= 0 {
		return nil
	}
	_, err := r.q.exec(ctx, `
		DELETE FROM watch_history
		WHERE user_id = ? AND seq NOT IN (
			SELECT seq FROM watch_history WHERE user_id = ? ORDER BY seq DESC LIMIT ?
		)`,
		userID, userID, keep,
	)
	return err
}
