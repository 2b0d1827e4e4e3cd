package session

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"github.com/rodrick-mpofu/teachback-ai/internal/persona"
	"github.com/rodrick-mpofu/teachback-ai/internal/router"
	"github.com/rodrick-mpofu/teachback-ai/internal/tutor"
)

// fakeExecutor answers every turn with a numbered question. When gate is
// set, each call blocks until it is closed.
type fakeExecutor struct {
	mu      sync.Mutex
	calls   []router.Input
	gate    chan struct{}
	started chan struct{}
	err     error
}

func (f *fakeExecutor) ExecuteTurn(ctx context.Context, in router.Input) (router.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, in)
	n := len(f.calls)
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.gate != nil {
		<-f.gate
	}
	if f.err != nil {
		return router.Result{}, f.err
	}
	return router.Result{
		Analysis: tutor.AnalysisResult{Confidence: 0.5, Clarity: 0.4, KnowledgeGaps: []string{"termination condition"}},
		Question: fmt.Sprintf("question %d", n),
		Path:     router.PathRemote,
	}, nil
}

func newRegistry(t *testing.T, exec Executor) (*Registry, string) {
	t.Helper()
	r := NewRegistry(exec)
	c, err := r.Create("ada", "Binary Search", "probing")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return r, c.SessionID
}

func TestCreate(t *testing.T) {
	r := NewRegistry(&fakeExecutor{})
	c, err := r.Create("ada", "  Binary Search ", "probing")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if c.Mode != persona.Socratic {
		t.Errorf("mode = %q, want socratic", c.Mode)
	}
	if c.SessionID == "" || c.Welcome == "" {
		t.Errorf("created = %+v", c)
	}

	s, err := r.Snapshot(c.SessionID)
	if err != nil {
		t.Fatal(err)
	}
	if s.Topic != "Binary Search" || s.Status != StatusActive || len(s.Turns) != 0 {
		t.Errorf("snapshot = %+v", s)
	}
}

func TestCreate_Invalid(t *testing.T) {
	r := NewRegistry(&fakeExecutor{})
	if _, err := r.Create("ada", "x", "grumpy"); !errors.Is(err, persona.ErrInvalidMode) {
		t.Errorf("bad mode error = %v", err)
	}
	if _, err := r.Create("ada", "  ", "socratic"); !errors.Is(err, ErrEmptyTopic) {
		t.Errorf("empty topic error = %v", err)
	}
	if r.Len() != 0 {
		t.Errorf("failed creates registered sessions")
	}
}

func TestSubmitTurn_ContiguousNumbers(t *testing.T) {
	exec := &fakeExecutor{}
	r, id := newRegistry(t, exec)

	for want := 1; want <= 4; want++ {
		turn, err := r.SubmitTurn(context.Background(), id, "It divides the array in half each time")
		if err != nil {
			t.Fatalf("turn %d: %v", want, err)
		}
		if turn.Number != want {
			t.Errorf("turn number = %d, want %d", turn.Number, want)
		}
	}

	// Each execution sees the previous exchanges.
	if got := len(exec.calls[3].History); got != 3 {
		t.Errorf("history length on turn 4 = %d, want 3", got)
	}
	if exec.calls[1].History[0].Question != "question 1" {
		t.Errorf("history = %+v", exec.calls[1].History)
	}
}

func TestSubmitTurn_Errors(t *testing.T) {
	r, id := newRegistry(t, &fakeExecutor{})

	if _, err := r.SubmitTurn(context.Background(), "missing", "x"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("missing session error = %v", err)
	}
	if _, err := r.SubmitTurn(context.Background(), id, " \n\t"); !errors.Is(err, ErrEmptyExplanation) {
		t.Errorf("blank explanation error = %v", err)
	}
	if _, err := r.Complete(id); err != nil {
		t.Fatal(err)
	}
	if _, err := r.SubmitTurn(context.Background(), id, "x"); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("closed session error = %v", err)
	}
}

func TestSubmitTurn_FailureLeavesStateUnchanged(t *testing.T) {
	exec := &fakeExecutor{}
	r, id := newRegistry(t, exec)
	if _, err := r.SubmitTurn(context.Background(), id, "first"); err != nil {
		t.Fatal(err)
	}

	exec.err = &router.ExecutionError{Cause: errors.New("model down")}
	_, err := r.SubmitTurn(context.Background(), id, "second")
	if !errors.Is(err, router.ErrTurnExecutionFailed) {
		t.Fatalf("error = %v", err)
	}

	exec.err = nil
	turn, err := r.SubmitTurn(context.Background(), id, "third")
	if err != nil {
		t.Fatal(err)
	}
	if turn.Number != 2 {
		t.Errorf("turn number after a failure = %d, want 2", turn.Number)
	}
}

func TestSubmitTurn_ConcurrentRejected(t *testing.T) {
	exec := &fakeExecutor{gate: make(chan struct{}), started: make(chan struct{}, 1)}
	r, id := newRegistry(t, exec)

	done := make(chan error, 1)
	go func() {
		_, err := r.SubmitTurn(context.Background(), id, "first")
		done <- err
	}()
	<-exec.started

	if _, err := r.SubmitTurn(context.Background(), id, "second"); !errors.Is(err, ErrTurnInProgress) {
		t.Errorf("concurrent submit error = %v, want ErrTurnInProgress", err)
	}

	// Other sessions are not blocked.
	other, err := r.Create("bob", "Heaps", "anxious")
	if err != nil {
		t.Fatal(err)
	}
	go func() {
		<-exec.started
	}()
	otherDone := make(chan error, 1)
	go func() {
		_, err := r.SubmitTurn(context.Background(), other.SessionID, "a heap is a tree")
		otherDone <- err
	}()

	close(exec.gate)
	if err := <-done; err != nil {
		t.Fatalf("first turn: %v", err)
	}
	if err := <-otherDone; err != nil {
		t.Fatalf("other session turn: %v", err)
	}
}

func TestComplete_WinsOverInFlightTurn(t *testing.T) {
	exec := &fakeExecutor{gate: make(chan struct{}), started: make(chan struct{}, 1)}
	r, id := newRegistry(t, exec)

	done := make(chan error, 1)
	go func() {
		_, err := r.SubmitTurn(context.Background(), id, "first")
		done <- err
	}()
	<-exec.started

	final, err := r.Complete(id)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	close(exec.gate)

	if err := <-done; !errors.Is(err, ErrSessionClosed) {
		t.Errorf("in-flight turn error = %v, want ErrSessionClosed", err)
	}
	if len(final.Turns) != 0 {
		t.Errorf("final snapshot has %d turns", len(final.Turns))
	}
	s, _ := r.Snapshot(id)
	if len(s.Turns) != 0 || s.Status != StatusCompleted || s.CompletedAt.IsZero() {
		t.Errorf("session after completion = %+v", s)
	}
	if _, err := r.Complete(id); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("second Complete error = %v", err)
	}
}

func TestSnapshot_IsDeepCopy(t *testing.T) {
	r, id := newRegistry(t, &fakeExecutor{})
	if _, err := r.SubmitTurn(context.Background(), id, "x"); err != nil {
		t.Fatal(err)
	}
	s, _ := r.Snapshot(id)
	s.Turns[0].Analysis.KnowledgeGaps[0] = "mutated"
	s.Turns = append(s.Turns, Turn{})

	again, _ := r.Snapshot(id)
	if len(again.Turns) != 1 || again.Turns[0].Analysis.KnowledgeGaps[0] != "termination condition" {
		t.Errorf("registry state was mutated through a snapshot: %+v", again.Turns)
	}
}

func TestTeardown(t *testing.T) {
	r, id := newRegistry(t, &fakeExecutor{})
	if err := r.Teardown(id); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Snapshot(id); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("snapshot after teardown = %v", err)
	}
	if err := r.Teardown(id); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("second teardown = %v", err)
	}
}

func TestSummarize(t *testing.T) {
	s := Session{
		ID:    "s",
		Topic: "Binary Search",
		Mode:  persona.Socratic,
		Turns: []Turn{
			{Analysis: tutor.AnalysisResult{Confidence: 0.5, Clarity: 0.3, KnowledgeGaps: []string{"termination", "overflow"}}},
			{Analysis: tutor.AnalysisResult{Confidence: 0.6, Clarity: 0.4, KnowledgeGaps: []string{"overflow", "sortedness"}}},
			{Analysis: tutor.AnalysisResult{Confidence: 0.8, Clarity: 0.9, KnowledgeGaps: []string{"termination", "sortedness"}}},
		},
	}
	got := Summarize(s)
	if got.TurnCount != 3 || got.AvgConfidence != 0.63 || got.AvgClarity != 0.53 {
		t.Errorf("summary = %+v", got)
	}
	if want := []string{"termination", "overflow", "sortedness"}; !reflect.DeepEqual(got.PersistentGaps, want) {
		t.Errorf("persistent gaps = %v, want %v", got.PersistentGaps, want)
	}

	empty := Summarize(Session{Topic: "x"})
	if empty.TurnCount != 0 || empty.AvgClarity != 0 || empty.PersistentGaps == nil {
		t.Errorf("empty summary = %+v", empty)
	}
}

func TestSummary_ViaRegistry(t *testing.T) {
	r, id := newRegistry(t, &fakeExecutor{})
	for i := 0; i < 2; i++ {
		if _, err := r.SubmitTurn(context.Background(), id, "x"); err != nil {
			t.Fatal(err)
		}
	}
	sum, err := r.Summary(id)
	if err != nil {
		t.Fatal(err)
	}
	if sum.TurnCount != 2 || len(sum.PersistentGaps) != 1 || sum.Mode != persona.Socratic {
		t.Errorf("summary = %+v", sum)
	}
}
