package store

import (
	"context"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
)

type reviewRepo struct {
	s *Store
}

func (r *reviewRepo) LoadReviewItems(ctx context.Context, owner string) ([]ReviewItemRecord, error) {
	q, args := builder().Select("owner", "topic", "ease_factor", "repetitions",
		"interval_days", "next_due", "last_reviewed", "history").
		From(entsql.Table("review_items")).
		Where(entsql.EQ("owner", owner)).
		OrderBy("next_due", "topic").
		Query()
	rows, err := r.s.query(ctx, q, args)
	if err != nil {
		return nil, fmt.Errorf("load review items: %w", err)
	}
	defer rows.Close()

	var out []ReviewItemRecord
	for rows.Next() {
		var (
			rec                    ReviewItemRecord
			due, reviewed, history string
		)
		if err := rows.Scan(&rec.Owner, &rec.Topic, &rec.EaseFactor, &rec.Repetitions,
			&rec.IntervalDays, &due, &reviewed, &history); err != nil {
			return nil, fmt.Errorf("scan review item: %w", err)
		}
		rec.NextDue = parseTime(due)
		rec.LastReviewed = parseTime(reviewed)
		rec.History = decodeInts(history)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *reviewRepo) SaveReviewItem(ctx context.Context, rec ReviewItemRecord) error {
	q, args := builder().Insert("review_items").
		Columns("owner", "topic", "ease_factor", "repetitions", "interval_days",
			"next_due", "last_reviewed", "history").
		Values(rec.Owner, rec.Topic, rec.EaseFactor, rec.Repetitions, rec.IntervalDays,
			formatTime(rec.NextDue), formatTime(rec.LastReviewed), encodeInts(rec.History)).
		OnConflict(entsql.ConflictColumns("owner", "topic"), entsql.ResolveWithNewValues()).
		Query()
	if err := r.s.exec(ctx, q, args); err != nil {
		return fmt.Errorf("save review item %s/%s: %w", rec.Owner, rec.Topic, err)
	}
	return nil
}
