package store

import (
	"context"
	"encoding/json"
	"time"
)

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit   int    // max results (0 = unlimited)
	After   int64  // sequence > After
	Purpose string // exact match when set
}

// LLMRequestEventData captures the data for a single LLM request event.
type LLMRequestEventData struct {
	Provider     string
	Model        string
	Purpose      string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	CostUSD      float64
	Success      bool
	ErrorMessage string
	RequestBody  string
	ResponseBody string
}

// LLMEvent is a stored LLM request event.
type LLMEvent struct {
	ID        int64
	Sequence  int64
	Timestamp time.Time
	LLMRequestEventData
}

// EventRepo provides append and query access to LLM request events.
type EventRepo interface {
	AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error
	QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMEvent, error)
	// GetLLMEvent returns nil when no event has the given id.
	GetLLMEvent(ctx context.Context, id int64) (*LLMEvent, error)
}

// SessionRecord is the persisted header of a teaching session.
type SessionRecord struct {
	ID            string
	Owner         string
	Topic         string
	Mode          string
	Status        string
	TurnCount     int
	AvgConfidence float64
	AvgClarity    float64
	CreatedAt     time.Time
	CompletedAt   time.Time // zero while active
}

// UserStats aggregates an owner's persisted sessions.
type UserStats struct {
	TotalSessions     int
	CompletedSessions int
	TotalTurns        int
	AvgConfidence     float64
	AvgClarity        float64
	UniqueTopics      int
}

type SessionRepo interface {
	// SaveSession inserts or replaces the session header.
	SaveSession(ctx context.Context, rec SessionRecord) error
	ListSessions(ctx context.Context, owner string, limit int) ([]SessionRecord, error)
	UserStats(ctx context.Context, owner string) (UserStats, error)
}

// TurnRecord is one persisted conversational turn.
type TurnRecord struct {
	SessionID         string
	Number            int
	Sequence          int64
	Explanation       string
	Question          string
	Path              string
	DurationMs        int64
	Confidence        float64
	Clarity           float64
	KnowledgeGaps     []string
	UnexplainedJargon []string
	Strengths         []string
	EnrichmentStatus  string
	CreatedAt         time.Time
}

type TurnRepo interface {
	// SaveTurn is idempotent on (session, turn number).
	SaveTurn(ctx context.Context, rec TurnRecord) error
	TurnsForSession(ctx context.Context, sessionID string) ([]TurnRecord, error)
}

// AnalyticsRecord stores a computed analytics snapshot as JSON.
type AnalyticsRecord struct {
	ID        int64
	SessionID string
	TurnCount int
	Payload   json.RawMessage
	CreatedAt time.Time
}

type AnalyticsRepo interface {
	SaveAnalytics(ctx context.Context, rec AnalyticsRecord) error
	// LatestAnalytics returns nil when the session has no snapshot.
	LatestAnalytics(ctx context.Context, sessionID string) (*AnalyticsRecord, error)
}

// ReviewItemRecord is the persisted SM-2 state of one topic.
type ReviewItemRecord struct {
	Owner        string
	Topic        string
	EaseFactor   float64
	Repetitions  int
	IntervalDays int
	NextDue      time.Time
	LastReviewed time.Time
	History      []int
}

type ReviewRepo interface {
	LoadReviewItems(ctx context.Context, owner string) ([]ReviewItemRecord, error)
	SaveReviewItem(ctx context.Context, rec ReviewItemRecord) error
}

// KnowledgeNode is a topic in an owner's knowledge graph.
type KnowledgeNode struct {
	Owner           string
	Topic           string
	TimesTaught     int
	AvgConfidence   float64
	AvgClarity      float64
	RelatedConcepts []string
	PersistentGaps  []string
	FirstTaught     time.Time
	LastTaught      time.Time
}

// KnowledgeEdge links two topics of the same owner.
type KnowledgeEdge struct {
	Owner        string
	From         string
	To           string
	Relationship string
	Strength     float64
}

// TeachingRecord is one observation of a topic being taught.
type TeachingRecord struct {
	Owner      string
	Topic      string
	Confidence float64
	Clarity    float64
	Related    []string
	Gaps       []string
	At         time.Time
}

type KnowledgeRepo interface {
	// RecordTeaching creates the topic node or folds the observation into
	// its running averages and sets.
	RecordTeaching(ctx context.Context, rec TeachingRecord) (*KnowledgeNode, error)
	// LinkConcepts creates the edge or strengthens an existing one.
	LinkConcepts(ctx context.Context, edge KnowledgeEdge) (*KnowledgeEdge, error)
	Graph(ctx context.Context, owner string) ([]KnowledgeNode, []KnowledgeEdge, error)
}
