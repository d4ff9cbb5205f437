package sqlcore

import (
	"context"
	"time"

	"github.com/aussiebroadwan/streamtab/internal/identity/domain"
	"github.com/aussiebroadwan/streamtab/pkg/idx"
)

type subscriptionsRepo struct {
	q *queries
}

func (r *subscriptionsRepo) CreateSubscription(ctx context.Context, s domain.Subscription) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	_, err := r.q.exec(ctx,
		`INSERT INTO subscriptions (id, subscriber_id, channel_id, created_at) VALUES (?, ?, ?, ?)`,
		s.ID, s.SubscriberID, s.ChannelID, s.CreatedAt.UTC(),
	)
	return r.q.mapWriteErr(err)
}

func (r *subscriptionsRepo) DeleteSubscription(ctx context.Context, subscriberID, channelID idx.ID) error {
	res, err := r.q.exec(ctx,
		`DELETE FROM subscriptions WHERE subscriber_id = ? AND channel_id = ?`,
		subscriberID, channelID,
	)
	return expectOne(res, err)
}

func (r *subscriptionsRepo) ChannelStats(ctx context.Context, channelID, requester idx.ID) (domain.ChannelStats, error) {
	var (
		stats      domain.ChannelStats
		subscribed int64
	)
	err := r.q.queryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM subscriptions WHERE channel_id = ?),
			(SELECT COUNT(*) FROM subscriptions WHERE subscriber_id = ?),
			(SELECT COUNT(*) FROM subscriptions WHERE subscriber_id = ? AND channel_id = ?)`,
		channelID, channelID, requester, channelID,
	).Scan(&stats.SubscribersCount, &stats.ChannelsSubscribedToCount, &subscribed)
	if err != nil {
		return domain.ChannelStats{}, err
	}
	stats.IsSubscribed = !requester.IsZero() && subscribed > 0
	return stats, nil
}
