package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/aussiebroadwan/streamtab/internal/identity/cache"
	"github.com/aussiebroadwan/streamtab/internal/identity/domain"
	"github.com/aussiebroadwan/streamtab/internal/identity/store"
	"github.com/aussiebroadwan/streamtab/pkg/idx"
	"github.com/aussiebroadwan/streamtab/pkg/slogx"
)

// ViewBuilder computes the read-only channel and history projections.
type ViewBuilder struct {
	Store store.Store

	// Stats optionally caches channel stats per channel and requester.
	Stats cache.StatsCache
}

// ChannelProfile builds the public view of username's channel. requester
// is the zero ID for anonymous callers.
func (b *ViewBuilder) ChannelProfile(ctx context.Context, username string, requester idx.ID) (domain.ChannelView, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return domain.ChannelView{}, domain.Validation("username is missing")
	}
	return b.buildChannelView(ctx, username, requester)
}

func (b *ViewBuilder) buildChannelView(ctx context.Context, username string, requester idx.ID) (domain.ChannelView, error) {
	channel, err := b.resolveChannel(ctx, username)
	if err != nil {
		return domain.ChannelView{}, err
	}

	stats, err := b.channelStats(ctx, channel.ID, requester)
	if err != nil {
		return domain.ChannelView{}, domain.Internal(err)
	}
	return projectChannel(channel, stats), nil
}

func (b *ViewBuilder) resolveChannel(ctx context.Context, username string) (domain.User, error) {
	u, err := b.Store.Users().GetUserByUsername(ctx, domain.NormalizeIdentity(username))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, domain.ErrChannelNotFound
		}
		return domain.User{}, domain.Internal(err)
	}
	return u, nil
}

// channelStats reads both counts and the requester's edge as one snapshot,
// through the cache when one is configured. Cache failures fall back to the
// store.
func (b *ViewBuilder) channelStats(ctx context.Context, channelID, requester idx.ID) (domain.ChannelStats, error) {
	l := slogx.FromContext(ctx)

	if b.Stats != nil {
		stats, ok, err := b.Stats.GetStats(ctx, channelID, requester)
		if err == nil && ok {
			return stats, nil
		}
		if err != nil {
			l.Warn("channel stats cache read failed", slog.String("error", err.Error()))
		}
	}

	stats, err := b.Store.Subscriptions().ChannelStats(ctx, channelID, requester)
	if err != nil {
		return domain.ChannelStats{}, err
	}

	if b.Stats != nil {
		if err := b.Stats.SetStats(ctx, channelID, requester, stats); err != nil {
			l.Warn("channel stats cache write failed", slog.String("error", err.Error()))
		}
	}
	return stats, nil
}

func projectChannel(u domain.User, stats domain.ChannelStats) domain.ChannelView {
	return domain.ChannelView{
		FullName:                  u.FullName,
		Username:                  u.Username,
		SubscribersCount:          stats.SubscribersCount,
		ChannelsSubscribedToCount: stats.ChannelsSubscribedToCount,
		IsSubscribed:              stats.IsSubscribed,
		Avatar:                    u.AvatarURL,
		CoverImage:                u.CoverImageURL,
		Email:                     u.Email,
	}
}

// WatchHistory returns the user's history oldest first, each video joined
// with its owner. Videos that no longer exist are dropped.
func (b *ViewBuilder) WatchHistory(ctx context.Context, userID idx.ID) ([]domain.EnrichedVideo, error) {
	if _, err := b.Store.Users().GetUserByID(ctx, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, domain.Internal(err)
	}

	out, err := b.buildWatchHistory(ctx, userID)
	if err != nil {
		return nil, domain.Internal(err)
	}
	return out, nil
}

func (b *ViewBuilder) buildWatchHistory(ctx context.Context, userID idx.ID) ([]domain.EnrichedVideo, error) {
	ids, err := b.Store.WatchHistory().ListWatchedVideoIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []domain.EnrichedVideo{}, nil
	}

	videos, err := b.lookupVideos(ctx, ids)
	if err != nil {
		return nil, err
	}

	owners, err := b.lookupOwners(ctx, videos)
	if err != nil {
		return nil, err
	}

	return projectHistory(ids, videos, owners), nil
}

func (b *ViewBuilder) lookupVideos(ctx context.Context, ids []idx.ID) (map[idx.ID]domain.Video, error) {
	list, err := b.Store.Videos().ListVideosByIDs(ctx, dedupIDs(ids))
	if err != nil {
		return nil, err
	}
	byID := make(map[idx.ID]domain.Video, len(list))
	for _, v := range list {
		byID[v.ID] = v
	}
	return byID, nil
}

func (b *ViewBuilder) lookupOwners(ctx context.Context, videos map[idx.ID]domain.Video) (map[idx.ID]domain.User, error) {
	ownerIDs := make([]idx.ID, 0, len(videos))
	for _, v := range videos {
		ownerIDs = append(ownerIDs, v.OwnerID)
	}

	list, err := b.Store.Users().ListUsersByIDs(ctx, dedupIDs(ownerIDs))
	if err != nil {
		return nil, err
	}
	byID := make(map[idx.ID]domain.User, len(list))
	for _, u := range list {
		byID[u.ID] = u
	}
	return byID, nil
}

// projectHistory walks ids in order so the history keeps its sequence.
func projectHistory(ids []idx.ID, videos map[idx.ID]domain.Video, owners map[idx.ID]domain.User) []domain.EnrichedVideo {
	out := make([]domain.EnrichedVideo, 0, len(ids))
	for _, id := range ids {
		v, ok := videos[id]
		if !ok {
			continue
		}

		ev := domain.EnrichedVideo{
			ID:          v.ID.String(),
			Title:       v.Title,
			Description: v.Description,
			VideoFile:   v.VideoURL,
			Thumbnail:   v.ThumbnailURL,
			Duration:    v.Duration,
			Views:       v.Views,
			IsPublished: v.IsPublished,
			CreatedAt:   v.CreatedAt,
		}
		if owner, ok := owners[v.OwnerID]; ok {
			ev.Owner = &domain.OwnerSummary{
				FullName: owner.FullName,
				Username: owner.Username,
				Avatar:   owner.AvatarURL,
			}
		}
		out = append(out, ev)
	}
	return out
}

func dedupIDs(ids []idx.ID) []idx.ID {
	seen := make(map[idx.ID]struct{}, len(ids))
	out := make([]idx.ID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
