package store

import (
	"context"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
)

type turnRepo struct {
	s *Store
}

func (r *turnRepo) SaveTurn(ctx context.Context, rec TurnRecord) error {
	seqNum, err := r.s.seq.Next(ctx)
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}

	q, args := builder().Insert("turns").
		Columns("session_id", "turn_number", "sequence", "explanation", "question",
			"path", "duration_ms", "confidence", "clarity", "knowledge_gaps",
			"unexplained_jargon", "strengths", "enrichment_status", "created_at").
		Values(rec.SessionID, rec.Number, seqNum, rec.Explanation, rec.Question,
			rec.Path, rec.DurationMs, rec.Confidence, rec.Clarity,
			encodeStrings(rec.KnowledgeGaps), encodeStrings(rec.UnexplainedJargon),
			encodeStrings(rec.Strengths), rec.EnrichmentStatus, formatTime(rec.CreatedAt)).
		OnConflict(entsql.ConflictColumns("session_id", "turn_number"), entsql.ResolveWithNewValues()).
		Query()
	if err := r.s.exec(ctx, q, args); err != nil {
		return fmt.Errorf("save turn %s#%d: %w", rec.SessionID, rec.Number, err)
	}
	return nil
}

func (r *turnRepo) TurnsForSession(ctx context.Context, sessionID string) ([]TurnRecord, error) {
	q, args := builder().Select("session_id", "turn_number", "sequence", "explanation",
		"question", "path", "duration_ms", "confidence", "clarity", "knowledge_gaps",
		"unexplained_jargon", "strengths", "enrichment_status", "created_at").
		From(entsql.Table("turns")).
		Where(entsql.EQ("session_id", sessionID)).
		OrderBy("turn_number").
		Query()
	rows, err := r.s.query(ctx, q, args)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	var out []TurnRecord
	for rows.Next() {
		var (
			rec                     TurnRecord
			gaps, jargon, strengths string
			created                 string
		)
		if err := rows.Scan(&rec.SessionID, &rec.Number, &rec.Sequence, &rec.Explanation,
			&rec.Question, &rec.Path, &rec.DurationMs, &rec.Confidence, &rec.Clarity,
			&gaps, &jargon, &strengths, &rec.EnrichmentStatus, &created); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		rec.KnowledgeGaps = decodeStrings(gaps)
		rec.UnexplainedJargon = decodeStrings(jargon)
		rec.Strengths = decodeStrings(strengths)
		rec.CreatedAt = parseTime(created)
		out = append(out, rec)
	}
	return out, rows.Err()
}
