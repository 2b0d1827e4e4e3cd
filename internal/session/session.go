// Package session owns every live teaching session and enforces turn
// ordering: one turn at a time per session, numbered contiguously from 1,
// nothing appended unless the turn fully succeeded.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rodrick-mpofu/teachback-ai/internal/persona"
	"github.com/rodrick-mpofu/teachback-ai/internal/router"
	"github.com/rodrick-mpofu/teachback-ai/internal/tutor"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionClosed    = errors.New("session is closed")
	ErrTurnInProgress   = errors.New("a turn is already in progress for this session")
	ErrEmptyExplanation = errors.New("explanation is empty")
	ErrEmptyTopic       = errors.New("topic is empty")
)

type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// Turn is immutable once appended.
type Turn struct {
	Number      int
	Explanation string
	Analysis    tutor.AnalysisResult
	Question    string
	Path        router.Path
	Duration    time.Duration
	CreatedAt   time.Time
}

// Session is a point-in-time copy of a session's state.
type Session struct {
	ID          string
	Owner       string
	Topic       string
	Mode        persona.Mode
	Status      Status
	Turns       []Turn
	CreatedAt   time.Time
	CompletedAt time.Time
}

// Exchanges returns each turn as an explanation/question pair.
func (s Session) Exchanges() []tutor.Exchange {
	out := make([]tutor.Exchange, len(s.Turns))
	for i, t := range s.Turns {
		out[i] = tutor.Exchange{Explanation: t.Explanation, Question: t.Question}
	}
	return out
}

// Analyses returns the analysis of every turn in order.
func (s Session) Analyses() []tutor.AnalysisResult {
	out := make([]tutor.AnalysisResult, len(s.Turns))
	for i, t := range s.Turns {
		out[i] = t.Analysis
	}
	return out
}

func (s Session) clone() Session {
	c := s
	c.Turns = make([]Turn, len(s.Turns))
	for i, t := range s.Turns {
		t.Analysis = cloneAnalysis(t.Analysis)
		c.Turns[i] = t
	}
	return c
}

func cloneAnalysis(a tutor.AnalysisResult) tutor.AnalysisResult {
	a.KnowledgeGaps = append([]string(nil), a.KnowledgeGaps...)
	a.UnexplainedJargon = append([]string(nil), a.UnexplainedJargon...)
	a.Strengths = append([]string(nil), a.Strengths...)
	return a
}

// Executor runs one turn. *router.Router satisfies it.
type Executor interface {
	ExecuteTurn(ctx context.Context, in router.Input) (router.Result, error)
}

// Created is what CreateSession hands back.
type Created struct {
	SessionID string
	Mode      persona.Mode
	Welcome   string
}

type entry struct {
	// turnMu serializes turns and is only ever taken with TryLock.
	turnMu sync.Mutex

	mu      sync.Mutex
	state   Session
	removed bool
}

// Registry holds sessions in memory. The map lock covers lookup and
// insertion only; per-session state has its own locks.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*entry

	exec  Executor
	now   func() time.Time
	newID func() string
}

func NewRegistry(exec Executor) *Registry {
	return &Registry{
		sessions: make(map[string]*entry),
		exec:     exec,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

// Create opens a new active session. mode accepts canonical names and
// aliases.
func (r *Registry) Create(owner, topic, mode string) (Created, error) {
	m, err := persona.ParseMode(mode)
	if err != nil {
		return Created{}, err
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return Created{}, ErrEmptyTopic
	}
	welcome, err := persona.WelcomeMessage(m, topic)
	if err != nil {
		return Created{}, err
	}

	id := r.newID()
	e := &entry{state: Session{
		ID:        id,
		Owner:     strings.TrimSpace(owner),
		Topic:     topic,
		Mode:      m,
		Status:    StatusActive,
		CreatedAt: r.now(),
	}}

	r.mu.Lock()
	r.sessions[id] = e
	r.mu.Unlock()

	return Created{SessionID: id, Mode: m, Welcome: welcome}, nil
}

func (r *Registry) lookup(id string) (*entry, error) {
	r.mu.RLock()
	e, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return e, nil
}

// SubmitTurn runs one turn and appends it. A failed execution leaves the
// session untouched. If the session is completed or torn down while the
// turn is running, the result is discarded.
func (r *Registry) SubmitTurn(ctx context.Context, id, explanation string) (Turn, error) {
	e, err := r.lookup(id)
	if err != nil {
		return Turn{}, err
	}
	explanation = strings.TrimSpace(explanation)
	if explanation == "" {
		return Turn{}, ErrEmptyExplanation
	}

	if !e.turnMu.TryLock() {
		return Turn{}, ErrTurnInProgress
	}
	defer e.turnMu.Unlock()

	e.mu.Lock()
	if e.removed {
		e.mu.Unlock()
		return Turn{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if e.state.Status != StatusActive {
		e.mu.Unlock()
		return Turn{}, ErrSessionClosed
	}
	in := router.Input{
		SessionID:   id,
		Explanation: explanation,
		Topic:       e.state.Topic,
		Mode:        e.state.Mode,
		History:     e.state.Exchanges(),
	}
	e.mu.Unlock()

	res, err := r.exec.ExecuteTurn(ctx, in)
	if err != nil {
		return Turn{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return Turn{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if e.state.Status != StatusActive {
		return Turn{}, ErrSessionClosed
	}
	turn := Turn{
		Number:      len(e.state.Turns) + 1,
		Explanation: explanation,
		Analysis:    res.Analysis,
		Question:    res.Question,
		Path:        res.Path,
		Duration:    res.Duration,
		CreatedAt:   r.now(),
	}
	e.state.Turns = append(e.state.Turns, turn)
	turn.Analysis = cloneAnalysis(turn.Analysis)
	return turn, nil
}

// Snapshot returns a deep copy of the session.
func (r *Registry) Snapshot(id string) (Session, error) {
	e, err := r.lookup(id)
	if err != nil {
		return Session{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.clone(), nil
}

// Summary works on completed sessions too.
func (r *Registry) Summary(id string) (Summary, error) {
	s, err := r.Snapshot(id)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(s), nil
}

// Complete moves the session to completed and returns its final state.
// It does not wait for an in-flight turn; that turn is discarded.
func (r *Registry) Complete(id string) (Session, error) {
	e, err := r.lookup(id)
	if err != nil {
		return Session{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Status != StatusActive {
		return Session{}, ErrSessionClosed
	}
	e.state.Status = StatusCompleted
	e.state.CompletedAt = r.now()
	return e.state.clone(), nil
}

// Teardown forgets the session.
func (r *Registry) Teardown(id string) error {
	r.mu.Lock()
	e, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	e.mu.Lock()
	e.removed = true
	e.mu.Unlock()
	return nil
}

// Len reports how many sessions are held.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
