package store

import (
	"context"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
)

type sessionRepo struct {
	s *Store
}

func (r *sessionRepo) SaveSession(ctx context.Context, rec SessionRecord) error {
	q, args := builder().Insert("sessions").
		Columns("id", "owner", "topic", "mode", "status", "turn_count",
			"avg_confidence", "avg_clarity", "created_at", "completed_at").
		Values(rec.ID, rec.Owner, rec.Topic, rec.Mode, rec.Status, rec.TurnCount,
			rec.AvgConfidence, rec.AvgClarity, formatTime(rec.CreatedAt), formatTime(rec.CompletedAt)).
		OnConflict(entsql.ConflictColumns("id"), entsql.ResolveWithNewValues()).
		Query()
	if err := r.s.exec(ctx, q, args); err != nil {
		return fmt.Errorf("save session %s: %w", rec.ID, err)
	}
	return nil
}

func (r *sessionRepo) ListSessions(ctx context.Context, owner string, limit int) ([]SessionRecord, error) {
	sel := builder().Select("id", "owner", "topic", "mode", "status", "turn_count",
		"avg_confidence", "avg_clarity", "created_at", "completed_at").
		From(entsql.Table("sessions")).
		Where(entsql.EQ("owner", owner)).
		OrderBy(entsql.Desc("created_at"))
	if limit > 0 {
		sel.Limit(limit)
	}

	q, args := sel.Query()
	rows, err := r.s.query(ctx, q, args)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		var (
			rec                SessionRecord
			created, completed string
		)
		if err := rows.Scan(&rec.ID, &rec.Owner, &rec.Topic, &rec.Mode, &rec.Status,
			&rec.TurnCount, &rec.AvgConfidence, &rec.AvgClarity, &created, &completed); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		rec.CreatedAt = parseTime(created)
		rec.CompletedAt = parseTime(completed)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// UserStats averages only sessions that have at least one scored turn.
func (r *sessionRepo) UserStats(ctx context.Context, owner string) (UserStats, error) {
	sessions, err := r.ListSessions(ctx, owner, 0)
	if err != nil {
		return UserStats{}, err
	}

	var (
		stats          UserStats
		confSum, clSum float64
		scored         int
	)
	topics := make(map[string]struct{})
	for _, rec := range sessions {
		stats.TotalSessions++
		if !rec.CompletedAt.IsZero() {
			stats.CompletedSessions++
		}
		stats.TotalTurns += rec.TurnCount
		topics[rec.Topic] = struct{}{}
		if rec.TurnCount > 0 {
			confSum += rec.AvgConfidence
			clSum += rec.AvgClarity
			scored++
		}
	}
	stats.UniqueTopics = len(topics)
	if scored > 0 {
		stats.AvgConfidence = round2(confSum / float64(scored))
		stats.AvgClarity = round2(clSum / float64(scored))
	}
	return stats, nil
}
