package api

import (
	"time"

	"github.com/rodrick-mpofu/teachback-ai/internal/analytics"
	"github.com/rodrick-mpofu/teachback-ai/internal/engine"
	"github.com/rodrick-mpofu/teachback-ai/internal/enrich"
	"github.com/rodrick-mpofu/teachback-ai/internal/store"
	"github.com/rodrick-mpofu/teachback-ai/internal/tutor"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status         string `json:"status"`
	AnalyticsEvery int    `json:"analytics_cadence"`
}

type CreateSessionRequest struct {
	Owner string `json:"owner"`
	Topic string `json:"topic"`
	Mode  string `json:"mode"`
}

type CreateSessionResponse struct {
	SessionID string `json:"session_id"`
	Mode      string `json:"mode"`
	Welcome   string `json:"welcome"`
}

type SubmitTurnRequest struct {
	Explanation string `json:"explanation"`
}

type TurnResponse struct {
	SessionID       string               `json:"session_id"`
	Number          int                  `json:"turn_number"`
	Analysis        tutor.AnalysisResult `json:"analysis"`
	Question        string               `json:"question"`
	Path            string               `json:"execution_path"`
	DurationMs      int64                `json:"duration_ms"`
	Enrichment      enrich.Result        `json:"enrichment"`
	AnalyticsHandle string               `json:"analytics_handle,omitempty"`
}

func turnResponse(out engine.TurnOutcome) TurnResponse {
	return TurnResponse{
		SessionID:       out.SessionID,
		Number:          out.Turn.Number,
		Analysis:        out.Turn.Analysis,
		Question:        out.Turn.Question,
		Path:            string(out.Turn.Path),
		DurationMs:      out.Turn.Duration.Milliseconds(),
		Enrichment:      out.Enrichment,
		AnalyticsHandle: string(out.AnalyticsHandle),
	}
}

type PollResponse struct {
	Handle   string              `json:"handle"`
	State    string              `json:"state"`
	Snapshot *analytics.Snapshot `json:"snapshot,omitempty"`
	Error    string              `json:"error,omitempty"`
}

func pollResponse(h analytics.Handle, res analytics.PollResult) PollResponse {
	out := PollResponse{Handle: string(h), State: string(res.State), Snapshot: res.Snapshot}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	return out
}

type RecordReviewRequest struct {
	Topic   string `json:"topic"`
	Quality *int   `json:"quality"`
}

type SessionRecord struct {
	ID            string     `json:"session_id"`
	Topic         string     `json:"topic"`
	Mode          string     `json:"mode"`
	Status        string     `json:"status"`
	TurnCount     int        `json:"turn_count"`
	AvgConfidence float64    `json:"avg_confidence"`
	AvgClarity    float64    `json:"avg_clarity"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

func sessionRecords(recs []store.SessionRecord) []SessionRecord {
	out := make([]SessionRecord, 0, len(recs))
	for _, r := range recs {
		sr := SessionRecord{
			ID:            r.ID,
			Topic:         r.Topic,
			Mode:          r.Mode,
			Status:        r.Status,
			TurnCount:     r.TurnCount,
			AvgConfidence: r.AvgConfidence,
			AvgClarity:    r.AvgClarity,
			CreatedAt:     r.CreatedAt,
		}
		if !r.CompletedAt.IsZero() {
			at := r.CompletedAt
			sr.CompletedAt = &at
		}
		out = append(out, sr)
	}
	return out
}

type UserStatsResponse struct {
	Owner             string  `json:"owner"`
	TotalSessions     int     `json:"total_sessions"`
	CompletedSessions int     `json:"completed_sessions"`
	TotalTurns        int     `json:"total_turns"`
	AvgConfidence     float64 `json:"avg_confidence"`
	AvgClarity        float64 `json:"avg_clarity"`
	UniqueTopics      int     `json:"unique_topics"`
}

type GraphNode struct {
	Topic           string    `json:"topic"`
	TimesTaught     int       `json:"times_taught"`
	AvgConfidence   float64   `json:"avg_confidence"`
	AvgClarity      float64   `json:"avg_clarity"`
	RelatedConcepts []string  `json:"related_concepts"`
	PersistentGaps  []string  `json:"persistent_gaps"`
	FirstTaught     time.Time `json:"first_taught"`
	LastTaught      time.Time `json:"last_taught"`
}

type GraphEdge struct {
	From         string  `json:"from"`
	To           string  `json:"to"`
	Relationship string  `json:"relationship"`
	Strength     float64 `json:"strength"`
}

type GraphResponse struct {
	Owner string      `json:"owner"`
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

func graphResponse(owner string, nodes []store.KnowledgeNode, edges []store.KnowledgeEdge) GraphResponse {
	out := GraphResponse{Owner: owner, Nodes: make([]GraphNode, 0, len(nodes)), Edges: make([]GraphEdge, 0, len(edges))}
	for _, n := range nodes {
		out.Nodes = append(out.Nodes, GraphNode{
			Topic:           n.Topic,
			TimesTaught:     n.TimesTaught,
			AvgConfidence:   n.AvgConfidence,
			AvgClarity:      n.AvgClarity,
			RelatedConcepts: n.RelatedConcepts,
			PersistentGaps:  n.PersistentGaps,
			FirstTaught:     n.FirstTaught,
			LastTaught:      n.LastTaught,
		})
	}
	for _, e := range edges {
		out.Edges = append(out.Edges, GraphEdge{From: e.From, To: e.To, Relationship: e.Relationship, Strength: e.Strength})
	}
	return out
}
