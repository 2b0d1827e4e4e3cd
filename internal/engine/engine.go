// Package engine is the explicitly constructed context object behind every
// front end. It wires the session registry, execution router, enrichment
// wrapper, analytics scheduler and SM-2 scheduler together and persists
// their results through a background writer.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rodrick-mpofu/teachback-ai/internal/analytics"
	"github.com/rodrick-mpofu/teachback-ai/internal/enrich"
	"github.com/rodrick-mpofu/teachback-ai/internal/logger"
	"github.com/rodrick-mpofu/teachback-ai/internal/observability"
	"github.com/rodrick-mpofu/teachback-ai/internal/router"
	"github.com/rodrick-mpofu/teachback-ai/internal/session"
	"github.com/rodrick-mpofu/teachback-ai/internal/spacedrep"
	"github.com/rodrick-mpofu/teachback-ai/internal/store"
	"github.com/rodrick-mpofu/teachback-ai/internal/tutor"
)

// Repos groups the persistence collaborators. Any of them may be nil.
type Repos struct {
	Sessions  store.SessionRepo
	Turns     store.TurnRepo
	Analytics store.AnalyticsRepo
	Reviews   store.ReviewRepo
	Knowledge store.KnowledgeRepo
}

// ReposFromStore returns every repo backed by s.
func ReposFromStore(s *store.Store) Repos {
	if s == nil {
		return Repos{}
	}
	return Repos{
		Sessions:  s.SessionRepo(),
		Turns:     s.TurnRepo(),
		Analytics: s.AnalyticsRepo(),
		Reviews:   s.ReviewRepo(),
		Knowledge: s.KnowledgeRepo(),
	}
}

// Deps are the engine's collaborators. Model is required.
type Deps struct {
	Model    tutor.ModelService
	Remote   router.RemotePlatform
	Enricher enrich.Service
	Repos    Repos
	Sink     observability.Sink
	Log      *logger.Logger
}

type Engine struct {
	cfg      Config
	repos    Repos
	sink     observability.Sink
	log      *logger.Logger
	now      func() time.Time
	registry *session.Registry
	router   *router.Router
	enricher *enrich.Wrapper
	insights *analytics.Scheduler
	reviews  *spacedrep.Scheduler
	writer   *writer

	// background tracks enrichment still running after its turn returned.
	background sync.WaitGroup
}

func New(cfg Config, deps Deps) (*Engine, error) {
	if deps.Model == nil {
		return nil, errors.New("engine: model service is required")
	}
	cfg = cfg.withDefaults()
	log := logger.OrNop(deps.Log).With("component", "engine")
	sink := observability.OrNop(deps.Sink)

	e := &Engine{
		cfg:   cfg,
		repos: deps.Repos,
		sink:  sink,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
	e.router = router.New(deps.Model, deps.Remote, router.Config{RemoteCallTimeout: cfg.RemoteCallTimeout}, sink, deps.Log)
	e.registry = session.NewRegistry(e.router)
	e.enricher = enrich.NewWrapper(deps.Enricher, cfg.EnrichTimeout, sink, deps.Log)
	e.insights = analytics.NewScheduler(cfg.AnalyticsCadence, e.saveSnapshot, sink, deps.Log)
	e.reviews = spacedrep.NewScheduler(deps.Repos.Reviews, sink, deps.Log)
	e.writer = newWriter(cfg.PersistQueueSize, log)
	return e, nil
}

func (e *Engine) Config() Config { return e.cfg }

// Reviews exposes the SM-2 scheduler for read-only front ends.
func (e *Engine) Reviews() *spacedrep.Scheduler { return e.reviews }

// CreateSession opens a session and returns its id and welcome message.
func (e *Engine) CreateSession(_ context.Context, owner, topic, mode string) (session.Created, error) {
	created, err := e.registry.Create(owner, topic, mode)
	if err != nil {
		return session.Created{}, err
	}
	if snap, err := e.registry.Snapshot(created.SessionID); err == nil {
		e.persistSession(snap)
	}
	e.log.Info("session created", "session_id", created.SessionID, "mode", string(created.Mode))
	return created, nil
}

// CompletionResult is what CompleteSession hands back.
type CompletionResult struct {
	Summary session.Summary `json:"summary"`
	// Review is nil when the session had no turns.
	Review  *spacedrep.Item `json:"review,omitempty"`
	Quality int             `json:"quality"`
}

// CompleteSession closes the session and records an SM-2 review of its
// topic derived from the turn analyses.
func (e *Engine) CompleteSession(ctx context.Context, id string) (CompletionResult, error) {
	snap, err := e.registry.Complete(id)
	if err != nil {
		return CompletionResult{}, err
	}
	e.persistSession(snap)

	out := CompletionResult{Summary: session.Summarize(snap)}
	if len(snap.Turns) == 0 {
		return out, nil
	}
	item, q, err := e.reviews.ReviewFromSession(ctx, snap.Owner, snap.Topic, snap.Analyses())
	if err != nil {
		e.log.Warn("review from session failed", "session_id", id, "error", err)
		return out, nil
	}
	out.Review = &item
	out.Quality = q
	e.log.Info("session completed", "session_id", id, "turns", len(snap.Turns), "quality", q)
	return out, nil
}

func (e *Engine) Summary(id string) (session.Summary, error) {
	return e.registry.Summary(id)
}

func (e *Engine) Snapshot(id string) (session.Session, error) {
	return e.registry.Snapshot(id)
}

// Teardown forgets a session and its analytics handles from memory.
// Persisted records stay.
func (e *Engine) Teardown(id string) error {
	if err := e.registry.Teardown(id); err != nil {
		return err
	}
	e.insights.ForgetSession(id)
	return nil
}

func (e *Engine) PollAnalytics(h analytics.Handle) (analytics.PollResult, error) {
	return e.insights.Poll(h)
}

func (e *Engine) WaitAnalytics(ctx context.Context, h analytics.Handle) (analytics.PollResult, error) {
	return e.insights.Wait(ctx, h)
}

// Close waits for analytics jobs and in-flight enrichment, then drains the
// persist queue until ctx ends.
func (e *Engine) Close(ctx context.Context) error {
	e.insights.Close()

	idle := make(chan struct{})
	go func() {
		e.background.Wait()
		close(idle)
	}()
	select {
	case <-idle:
	case <-ctx.Done():
		e.log.Warn("enrichment still running at shutdown")
	}
	return e.writer.close(ctx)
}

func (e *Engine) saveSnapshot(_ context.Context, snap analytics.Snapshot) {
	if e.repos.Analytics == nil {
		return
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		e.log.Warn("encode analytics snapshot", "session_id", snap.SessionID, "error", err)
		return
	}
	e.writer.enqueue("save_analytics", func(ctx context.Context) error {
		return e.repos.Analytics.SaveAnalytics(ctx, store.AnalyticsRecord{
			SessionID: snap.SessionID,
			TurnCount: snap.TotalTurns,
			Payload:   payload,
			CreatedAt: snap.ComputedAt,
		})
	})
}

// LatestAnalytics returns the newest persisted snapshot for a session, or
// nil when there is none.
func (e *Engine) LatestAnalytics(ctx context.Context, sessionID string) (*analytics.Snapshot, error) {
	if e.repos.Analytics == nil {
		return nil, nil
	}
	rec, err := e.repos.Analytics.LatestAnalytics(ctx, sessionID)
	if err != nil || rec == nil {
		return nil, err
	}
	var snap analytics.Snapshot
	if err := json.Unmarshal(rec.Payload, &snap); err != nil {
		return nil, fmt.Errorf("decode analytics snapshot: %w", err)
	}
	return &snap, nil
}

func (e *Engine) persistSession(s session.Session) {
	if e.repos.Sessions == nil {
		return
	}
	sum := session.Summarize(s)
	rec := store.SessionRecord{
		ID:            s.ID,
		Owner:         s.Owner,
		Topic:         s.Topic,
		Mode:          string(s.Mode),
		Status:        string(s.Status),
		TurnCount:     len(s.Turns),
		AvgConfidence: sum.AvgConfidence,
		AvgClarity:    sum.AvgClarity,
		CreatedAt:     s.CreatedAt,
		CompletedAt:   s.CompletedAt,
	}
	e.writer.enqueue("save_session", func(ctx context.Context) error {
		return e.repos.Sessions.SaveSession(ctx, rec)
	})
}
