package analytics

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rodrick-mpofu/teachback-ai/internal/logger"
	"github.com/rodrick-mpofu/teachback-ai/internal/observability"
)

const (
	DefaultCadence = 5

	// DefaultRetention is how long a resolved handle stays pollable.
	DefaultRetention = 30 * time.Minute
)

var ErrUnknownHandle = errors.New("unknown analytics handle")

// Handle identifies one background computation.
type Handle string

type State string

const (
	StatePending State = "pending"
	StateReady   State = "ready"
	StateFailed  State = "failed"
)

// PollResult carries Snapshot when State is ready and Err when failed.
type PollResult struct {
	State    State
	Snapshot *Snapshot
	Err      error
}

type job struct {
	sessionID string
	turn      int
	done      chan struct{}
	snap      Snapshot
	err       error

	// resolvedAt is set under Scheduler.mu once the job finishes.
	resolvedAt time.Time
}

// Scheduler runs Compute every Cadence turns without blocking the caller.
type Scheduler struct {
	cadence int
	compute func(Input, time.Time) Snapshot
	onReady func(context.Context, Snapshot)
	sink    observability.Sink
	log     *logger.Logger

	retention time.Duration
	now       func() time.Time

	mu     sync.Mutex
	jobs   map[Handle]*job
	closed bool
	wg     sync.WaitGroup
}

// NewScheduler builds a scheduler. onReady, when set, runs on the job's
// goroutine with every successful snapshot.
func NewScheduler(cadence int, onReady func(context.Context, Snapshot), sink observability.Sink, log *logger.Logger) *Scheduler {
	if cadence <= 0 {
		cadence = DefaultCadence
	}
	return &Scheduler{
		cadence: cadence,
		compute: Compute,
		onReady: onReady,
		sink:    observability.OrNop(sink),
		log:     logger.OrNop(log).With("component", "analytics"),
		jobs:    make(map[Handle]*job),

		retention: DefaultRetention,
		now:       time.Now,
	}
}

func (s *Scheduler) Cadence() int { return s.cadence }

// ShouldTrigger reports whether turn n is an analytics turn.
func (s *Scheduler) ShouldTrigger(n int) bool {
	return n > 0 && n%s.cadence == 0
}

// MaybeTrigger spawns a computation over a copy of in when turnNumber is an
// analytics turn. It returns at once. A closed scheduler triggers nothing.
// Handles resolved longer than the retention ago are swept here.
func (s *Scheduler) MaybeTrigger(in Input, turnNumber int) (Handle, bool) {
	if !s.ShouldTrigger(turnNumber) {
		return "", false
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", false
	}
	s.sweepLocked()
	h := Handle(uuid.NewString())
	j := &job{sessionID: in.SessionID, turn: turnNumber, done: make(chan struct{})}
	s.jobs[h] = j
	s.wg.Add(1)
	s.mu.Unlock()

	input := in.clone()
	go s.run(h, j, input)
	return h, true
}

func (s *Scheduler) run(h Handle, j *job, in Input) {
	defer s.wg.Done()
	defer close(j.done)
	defer func() {
		s.mu.Lock()
		j.resolvedAt = s.now()
		s.mu.Unlock()
	}()
	defer func() {
		if p := recover(); p != nil {
			j.err = fmt.Errorf("analytics panic: %v", p)
			s.log.Warn("analytics job panicked", "handle", h, "session_id", j.sessionID, "panic", p)
		}
	}()

	snap := s.compute(in, time.Now().UTC())
	j.snap = snap

	ctx := context.Background()
	s.sink.Emit(ctx, observability.Event{
		Name:      observability.EventAnalyticsReady,
		SessionID: j.sessionID,
		Fields:    map[string]any{"handle": string(h), "turn": j.turn, "trend": string(snap.ClarityTrend)},
		At:        time.Now().UTC(),
	})
	if s.onReady != nil {
		s.onReady(ctx, snap)
	}
}

// Poll never blocks.
func (s *Scheduler) Poll(h Handle) (PollResult, error) {
	j, err := s.job(h)
	if err != nil {
		return PollResult{}, err
	}
	select {
	case <-j.done:
		return j.result(), nil
	default:
		return PollResult{State: StatePending}, nil
	}
}

// Wait blocks until the job resolves or ctx ends.
func (s *Scheduler) Wait(ctx context.Context, h Handle) (PollResult, error) {
	j, err := s.job(h)
	if err != nil {
		return PollResult{}, err
	}
	select {
	case <-j.done:
		return j.result(), nil
	case <-ctx.Done():
		return PollResult{State: StatePending}, ctx.Err()
	}
}

// Forget drops a resolved handle. Pending handles are kept.
func (s *Scheduler) Forget(h Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[h]; ok {
		select {
		case <-j.done:
			delete(s.jobs, h)
		default:
		}
	}
}

// ForgetSession drops every handle of a session, pending or not. A pending
// job still runs to completion.
func (s *Scheduler) ForgetSession(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for h, j := range s.jobs {
		if j.sessionID == sessionID {
			delete(s.jobs, h)
		}
	}
}

// Len reports how many handles are tracked.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

func (s *Scheduler) sweepLocked() {
	cutoff := s.now().Add(-s.retention)
	for h, j := range s.jobs {
		if !j.resolvedAt.IsZero() && j.resolvedAt.Before(cutoff) {
			delete(s.jobs, h)
		}
	}
}

// Close stops new triggers and waits for in-flight jobs.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Scheduler) job(h Handle) (*job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[h]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownHandle, h)
	}
	return j, nil
}

// result must only be called after done is closed.
func (j *job) result() PollResult {
	if j.err != nil {
		return PollResult{State: StateFailed, Err: j.err}
	}
	snap := j.snap
	return PollResult{State: StateReady, Snapshot: &snap}
}
