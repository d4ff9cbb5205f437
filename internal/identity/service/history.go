package service

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/streamtab/internal/identity/domain"
	"github.com/aussiebroadwan/streamtab/internal/identity/store"
	"github.com/aussiebroadwan/streamtab/pkg/idx"
)

// HistoryService records views into a user's watch history.
type HistoryService struct {
	Store store.Store

	// Dedup moves a re-watched video to the end instead of appending a
	// second entry.
	Dedup bool

	// Max caps the history length, oldest entries go first. Zero is
	// unbounded.
	Max int
}

func (s *HistoryService) RecordView(ctx context.Context, userID, videoID idx.ID) error {
	if _, err := s.Store.Videos().GetVideoByID(ctx, videoID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.ErrVideoNotFound
		}
		return domain.Internal(err)
	}

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		h := tx.WatchHistory()
		if s.Dedup {
			if err := h.RemoveWatch(ctx, userID, videoID); err != nil {
				return err
			}
		}
		if err := h.AppendWatch(ctx, userID, videoID, time.Now().UTC()); err != nil {
			return err
		}
		if s.Max > 0 {
			return h.TrimWatchHistory(ctx, userID, s.Max)
		}
		return nil
	})
	if err != nil {
		return domain.Internal(err)
	}
	return nil
}
