package store

import (
	"context"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
)

type analyticsRepo struct {
	s *Store
}

func (r *analyticsRepo) SaveAnalytics(ctx context.Context, rec AnalyticsRecord) error {
	q, args := builder().Insert("analytics_snapshots").
		Columns("session_id", "turn_count", "payload", "created_at").
		Values(rec.SessionID, rec.TurnCount, string(rec.Payload), formatTime(rec.CreatedAt)).
		Query()
	if err := r.s.exec(ctx, q, args); err != nil {
		return fmt.Errorf("save analytics for %s: %w", rec.SessionID, err)
	}
	return nil
}

func (r *analyticsRepo) LatestAnalytics(ctx context.Context, sessionID string) (*AnalyticsRecord, error) {
	q, args := builder().Select("id", "session_id", "turn_count", "payload", "created_at").
		From(entsql.Table("analytics_snapshots")).
		Where(entsql.EQ("session_id", sessionID)).
		OrderBy(entsql.Desc("id")).
		Limit(1).
		Query()
	rows, err := r.s.query(ctx, q, args)
	if err != nil {
		return nil, fmt.Errorf("query analytics: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	var (
		rec              AnalyticsRecord
		payload, created string
	)
	if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.TurnCount, &payload, &created); err != nil {
		return nil, fmt.Errorf("scan analytics: %w", err)
	}
	rec.Payload = []byte(payload)
	rec.CreatedAt = parseTime(created)
	return &rec, nil
}
