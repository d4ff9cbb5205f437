package http

import (
	"time"

	"github.com/aussiebroadwan/streamtab/internal/identity/domain"
	"github.com/aussiebroadwan/streamtab/pkg/identitysdk"
)

// toUserResponse is the only way a user leaves the process. Secrets stay
// behind.
func toUserResponse(u domain.User) identitysdk.UserResponse {
	return identitysdk.UserResponse{
		ID:         u.ID.String(),
		Username:   u.Username,
		Email:      u.Email,
		FullName:   u.FullName,
		Avatar:     u.AvatarURL,
		CoverImage: u.CoverImageURL,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

func toTokensResponse(p domain.TokenPair, now time.Time) identitysdk.TokensResponse {
	return identitysdk.TokensResponse{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		ExpiresIn:    max(int(p.AccessExpiresAt.Sub(now).Round(time.Second).Seconds()), 0),
	}
}

func toChannelResponse(v domain.ChannelView) identitysdk.ChannelResponse {
	return identitysdk.ChannelResponse{
		FullName:                  v.FullName,
		Username:                  v.Username,
		SubscribersCount:          v.SubscribersCount,
		ChannelsSubscribedToCount: v.ChannelsSubscribedToCount,
		IsSubscribed:              v.IsSubscribed,
		Avatar:                    v.Avatar,
		CoverImage:                v.CoverImage,
		Email:                     v.Email,
	}
}

func toHistory(entries []domain.EnrichedVideo) []identitysdk.HistoryEntry {
	out := make([]identitysdk.HistoryEntry, 0, len(entries))
	for _, e := range entries {
		h := identitysdk.HistoryEntry{
			ID:          e.ID,
			Title:       e.Title,
			Description: e.Description,
			VideoFile:   e.VideoFile,
			Thumbnail:   e.Thumbnail,
			Duration:    e.Duration,
			Views:       e.Views,
			IsPublished: e.IsPublished,
			CreatedAt:   e.CreatedAt,
		}
		if e.Owner != nil {
			h.Owner = &identitysdk.OwnerResponse{
				FullName: e.Owner.FullName,
				Username: e.Owner.Username,
				Avatar:   e.Owner.Avatar,
			}
		}
		out = append(out, h)
	}
	return out
}
