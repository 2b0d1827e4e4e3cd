package engine

import (
	"context"
	"time"

	"github.com/rodrick-mpofu/teachback-ai/internal/spacedrep"
	"github.com/rodrick-mpofu/teachback-ai/internal/store"
)

// DueItems lists owner's review items due at or before asOf. A zero asOf
// means now.
func (e *Engine) DueItems(ctx context.Context, owner string, asOf time.Time) []spacedrep.Item {
	if asOf.IsZero() {
		asOf = e.now()
	}
	return e.reviews.DueItems(ctx, owner, asOf)
}

func (e *Engine) RecordReview(ctx context.Context, owner, topic string, quality int) (spacedrep.Item, error) {
	return e.reviews.RecordReview(ctx, owner, topic, quality)
}

func (e *Engine) ReviewSchedule(ctx context.Context, owner string, days int) spacedrep.Schedule {
	return e.reviews.Schedule(ctx, owner, days)
}

func (e *Engine) ReviewStats(ctx context.Context, owner string) spacedrep.Stats {
	return e.reviews.Stats(ctx, owner)
}

func (e *Engine) SuggestReviews(ctx context.Context, owner string, limit int) []spacedrep.Item {
	return e.reviews.Suggest(ctx, owner, limit)
}

// UserStats aggregates an owner's persisted sessions. Without a session
// repo it reports zeros.
func (e *Engine) UserStats(ctx context.Context, owner string) (store.UserStats, error) {
	if e.repos.Sessions == nil {
		return store.UserStats{}, nil
	}
	return e.repos.Sessions.UserStats(ctx, owner)
}

func (e *Engine) ListSessions(ctx context.Context, owner string, limit int) ([]store.SessionRecord, error) {
	if e.repos.Sessions == nil {
		return []store.SessionRecord{}, nil
	}
	return e.repos.Sessions.ListSessions(ctx, owner, limit)
}
