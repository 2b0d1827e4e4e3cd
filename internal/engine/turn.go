package engine

import (
	"context"
	"strings"

	"github.com/rodrick-mpofu/teachback-ai/internal/analytics"
	"github.com/rodrick-mpofu/teachback-ai/internal/enrich"
	"github.com/rodrick-mpofu/teachback-ai/internal/llm"
	"github.com/rodrick-mpofu/teachback-ai/internal/session"
	"github.com/rodrick-mpofu/teachback-ai/internal/store"
)

// TurnOutcome is everything one SubmitTurn produces.
type TurnOutcome struct {
	SessionID  string
	Turn       session.Turn
	Enrichment enrich.Result

	// AnalyticsHandle is set on analytics turns.
	AnalyticsHandle analytics.Handle
}

// SubmitTurn executes one turn under the turn timeout. Enrichment runs
// concurrently but is never waited on: when it has not finished by the time
// the turn has, the outcome reports it pending and the final status is
// persisted once it lands. It never fails the turn.
func (e *Engine) SubmitTurn(ctx context.Context, sessionID, explanation string) (TurnOutcome, error) {
	before, err := e.registry.Snapshot(sessionID)
	if err != nil {
		return TurnOutcome{}, err
	}
	if strings.TrimSpace(explanation) == "" {
		return TurnOutcome{}, session.ErrEmptyExplanation
	}
	if before.Status != session.StatusActive {
		return TurnOutcome{}, session.ErrSessionClosed
	}

	ctx = llm.WithSession(ctx, sessionID)
	enriched, stopEnrich := e.startEnrichment(ctx, before)

	turnCtx, cancel := context.WithTimeout(ctx, e.cfg.TurnTimeout)
	defer cancel()
	turn, err := e.registry.SubmitTurn(turnCtx, sessionID, explanation)
	if err != nil {
		stopEnrich()
		return TurnOutcome{}, err
	}

	var enrichment enrich.Result
	select {
	case enrichment = <-enriched:
	default:
		enrichment = enrich.Result{Status: enrich.StatusPending}
	}

	out := TurnOutcome{SessionID: sessionID, Turn: turn, Enrichment: enrichment}
	after, err := e.registry.Snapshot(sessionID)
	if err == nil {
		if len(after.Turns) > turn.Number {
			after.Turns = after.Turns[:turn.Number]
		}
		in := analytics.Input{SessionID: sessionID, Topic: after.Topic, Analyses: after.Analyses()}
		if h, ok := e.insights.MaybeTrigger(in, turn.Number); ok {
			out.AnalyticsHandle = h
		}
		e.persistSession(after)
	}

	e.persistTurn(before, turn, enrichment)
	if enrichment.Status == enrich.StatusPending {
		// Started only after the pending row is queued so the final row
		// always lands second.
		e.background.Add(1)
		go func() {
			defer e.background.Done()
			final := <-enriched
			e.log.Debug("enrichment finished after turn", "session_id", sessionID, "turn", turn.Number, "status", string(final.Status))
			e.saveTurn(before, turn, final)
			e.recordKnowledge(before, turn, final)
		}()
	}
	return out, nil
}

// startEnrichment runs enrichment for s detached from ctx's cancellation;
// the wrapper's hard timeout bounds it. stop abandons it when the turn
// fails. Without a service the channel already holds the skipped result.
func (e *Engine) startEnrichment(ctx context.Context, s session.Session) (<-chan enrich.Result, context.CancelFunc) {
	enriched := make(chan enrich.Result, 1)
	if !e.enricher.Enabled() {
		enriched <- e.enricher.Enrich(ctx, s.Topic, s.Exchanges())
		return enriched, func() {}
	}

	ctx, stop := context.WithCancel(context.WithoutCancel(ctx))
	e.background.Add(1)
	go func() {
		defer e.background.Done()
		defer stop()
		enriched <- e.enricher.Enrich(ctx, s.Topic, s.Exchanges())
	}()
	return enriched, stop
}

func (e *Engine) persistTurn(s session.Session, turn session.Turn, enrichment enrich.Result) {
	if turn.Number == 1 {
		owner, topic := s.Owner, s.Topic
		e.writer.enqueue("ensure_review_item", func(ctx context.Context) error {
			_, err := e.reviews.EnsureItem(ctx, owner, topic)
			return err
		})
	}
	e.saveTurn(s, turn, enrichment)
	if enrichment.Status != enrich.StatusPending {
		e.recordKnowledge(s, turn, enrichment)
	}
}

// saveTurn upserts the turn row, so a later call replaces the enrichment
// status.
func (e *Engine) saveTurn(s session.Session, turn session.Turn, enrichment enrich.Result) {
	if e.repos.Turns == nil {
		return
	}
	rec := store.TurnRecord{
		SessionID:         s.ID,
		Number:            turn.Number,
		Explanation:       turn.Explanation,
		Question:          turn.Question,
		Path:              string(turn.Path),
		DurationMs:        turn.Duration.Milliseconds(),
		Confidence:        turn.Analysis.Confidence,
		Clarity:           turn.Analysis.Clarity,
		KnowledgeGaps:     turn.Analysis.KnowledgeGaps,
		UnexplainedJargon: turn.Analysis.UnexplainedJargon,
		Strengths:         turn.Analysis.Strengths,
		EnrichmentStatus:  string(enrichment.Status),
		CreatedAt:         turn.CreatedAt,
	}
	e.writer.enqueue("save_turn", func(ctx context.Context) error {
		return e.repos.Turns.SaveTurn(ctx, rec)
	})
}

func (e *Engine) recordKnowledge(s session.Session, turn session.Turn, enrichment enrich.Result) {
	if e.repos.Knowledge == nil {
		return
	}
	related := make([]string, 0, len(enrichment.Concepts))
	for _, l := range enrichment.Concepts {
		related = append(related, l.To)
	}
	teaching := store.TeachingRecord{
		Owner:      s.Owner,
		Topic:      s.Topic,
		Confidence: turn.Analysis.Confidence,
		Clarity:    turn.Analysis.Clarity,
		Related:    related,
		Gaps:       turn.Analysis.KnowledgeGaps,
		At:         turn.CreatedAt,
	}
	links := append([]enrich.ConceptLink(nil), enrichment.Concepts...)
	e.writer.enqueue("update_knowledge_graph", func(ctx context.Context) error {
		if _, err := e.repos.Knowledge.RecordTeaching(ctx, teaching); err != nil {
			return err
		}
		for _, l := range links {
			edge := store.KnowledgeEdge{
				Owner:        s.Owner,
				From:         l.From,
				To:           l.To,
				Relationship: l.Relationship,
				Strength:     1.0,
			}
			if _, err := e.repos.Knowledge.LinkConcepts(ctx, edge); err != nil {
				return err
			}
		}
		return nil
	})
}

// KnowledgeGraph returns an owner's persisted topic graph.
func (e *Engine) KnowledgeGraph(ctx context.Context, owner string) ([]store.KnowledgeNode, []store.KnowledgeEdge, error) {
	if e.repos.Knowledge == nil {
		return []store.KnowledgeNode{}, []store.KnowledgeEdge{}, nil
	}
	return e.repos.Knowledge.Graph(ctx, owner)
}
