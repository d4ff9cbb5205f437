package domain

import (
	"time"

	"github.com/aussiebroadwan/streamtab/pkg/idx"
)

// Subscription is the directed edge subscriber -> channel.
type Subscription struct {
	ID           idx.ID
	SubscriberID idx.ID
	ChannelID    idx.ID
	CreatedAt    time.Time
}

// ChannelStats are the two edge counts for a channel and whether the
// requester holds an edge to it, read together.
type ChannelStats struct {
	SubscribersCount          int64
	ChannelsSubscribedToCount int64
	IsSubscribed              bool
}

// ChannelView is the public channel profile.
type ChannelView struct {
	FullName                  string `json:"fullName"`
	Username                  string `json:"username"`
	SubscribersCount          int64  `json:"subscribersCount"`
	ChannelsSubscribedToCount int64  `json:"channelsSubscribedToCount"`
	IsSubscribed              bool   `json:"isSubscribed"`
	Avatar                    string `json:"avatar"`
	CoverImage                string `json:"coverImage"`
	Email                     string `json:"email"`
}

// OwnerSummary is the denormalised owner attached to a history entry.
type OwnerSummary struct {
	FullName string `json:"fullName"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// EnrichedVideo is a watch history entry joined with its owner. Owner is
// nil when the owning account no longer exists.
type EnrichedVideo struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	VideoFile   string        `json:"videoFile"`
	Thumbnail   string        `json:"thumbnail"`
	Duration    float64       `json:"duration"`
	Views       int64         `json:"views"`
	IsPublished bool          `json:"isPublished"`
	CreatedAt   time.Time     `json:"createdAt"`
	Owner       *OwnerSummary `json:"owner"`
}
