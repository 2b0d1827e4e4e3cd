package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rodrick-mpofu/teachback-ai/internal/analytics"
	"github.com/rodrick-mpofu/teachback-ai/internal/engine"
	"github.com/rodrick-mpofu/teachback-ai/internal/llm"
	"github.com/rodrick-mpofu/teachback-ai/internal/router"
	"github.com/rodrick-mpofu/teachback-ai/internal/session"
	"github.com/rodrick-mpofu/teachback-ai/internal/spacedrep"
	"github.com/rodrick-mpofu/teachback-ai/internal/tutor"
)

type stubModel struct {
	mu  sync.Mutex
	err error
}

func (s *stubModel) Analyze(context.Context, string, string) (tutor.AnalysisResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return tutor.AnalysisResult{
		Confidence:    0.9,
		Clarity:       0.8,
		KnowledgeGaps: []string{"base case"},
		Strengths:     []string{"clear example"},
	}, s.err
}

func (s *stubModel) Ask(context.Context, tutor.AskInput) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return "What happens when the input is empty?", s.err
}

func (s *stubModel) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func newTestServer(t *testing.T, cfg engine.Config) (http.Handler, *stubModel) {
	t.Helper()
	model := &stubModel{}
	eng, err := engine.New(cfg, engine.Deps{Model: model})
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = eng.Close(ctx)
	})
	return NewRouter(eng, "local", nil), model
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func createSession(t *testing.T, h http.Handler, topic string) string {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/sessions", CreateSessionRequest{Topic: topic, Mode: "socratic"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[CreateSessionResponse](t, rec).SessionID
}

func TestHealth(t *testing.T) {
	h, _ := newTestServer(t, engine.Config{})
	rec := do(t, h, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "ok", decode[HealthResponse](t, rec).Status)
}

func TestRequestIDPassthrough(t *testing.T) {
	h, _ := newTestServer(t, engine.Config{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "abc123", rec.Header().Get("X-Request-ID"))
}

func TestCreateSession(t *testing.T) {
	h, _ := newTestServer(t, engine.Config{})

	rec := do(t, h, http.MethodPost, "/sessions", CreateSessionRequest{Topic: "Binary Search", Mode: "socratic"})
	require.Equal(t, http.StatusCreated, rec.Code)
	resp := decode[CreateSessionResponse](t, rec)
	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, "socratic", resp.Mode)
	assert.Contains(t, resp.Welcome, "Binary Search")
}

func TestCreateSession_Validation(t *testing.T) {
	h, _ := newTestServer(t, engine.Config{})

	tests := []struct {
		name string
		body any
	}{
		{"bad mode", CreateSessionRequest{Topic: "Recursion", Mode: "pirate"}},
		{"empty topic", CreateSessionRequest{Topic: "  ", Mode: "socratic"}},
		{"unknown field", map[string]string{"topic": "Recursion", "persona": "socratic"}},
		{"no body", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/sessions", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decode[ErrorResponse](t, rec).Error)
		})
	}
}

func TestSubmitTurnAndSummary(t *testing.T) {
	h, _ := newTestServer(t, engine.Config{})
	id := createSession(t, h, "Recursion")

	rec := do(t, h, http.MethodPost, "/sessions/"+id+"/turns", SubmitTurnRequest{Explanation: "A function that calls itself."})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	turn := decode[TurnResponse](t, rec)
	assert.Equal(t, 1, turn.Number)
	assert.Equal(t, "local-fallback", turn.Path)
	assert.Equal(t, 0.9, turn.Analysis.Confidence)
	assert.Equal(t, "What happens when the input is empty?", turn.Question)
	assert.Equal(t, "skipped", string(turn.Enrichment.Status))
	assert.Empty(t, turn.AnalyticsHandle)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.Contains(t, raw, "duration_ms")

	rec = do(t, h, http.MethodGet, "/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.EqualValues(t, 1, raw["turn_count"])
	assert.Equal(t, "Recursion", raw["topic"])
}

func TestSubmitTurn_Errors(t *testing.T) {
	h, model := newTestServer(t, engine.Config{})
	id := createSession(t, h, "Recursion")

	rec := do(t, h, http.MethodPost, "/sessions/"+id+"/turns", SubmitTurnRequest{Explanation: "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/sessions/nope/turns", SubmitTurnRequest{Explanation: "x"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	model.fail(&llm.ErrProviderUnavailable{Err: errors.New("down")})
	rec = do(t, h, http.MethodPost, "/sessions/"+id+"/turns", SubmitTurnRequest{Explanation: "It calls itself."})
	assert.Equal(t, http.StatusBadGateway, rec.Code, rec.Body.String())

	// The failed turn left nothing behind.
	rec = do(t, h, http.MethodGet, "/sessions/"+id, nil)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.EqualValues(t, 0, raw["turn_count"])
}

func TestCompleteSession(t *testing.T) {
	h, _ := newTestServer(t, engine.Config{})
	id := createSession(t, h, "Recursion")
	rec := do(t, h, http.MethodPost, "/sessions/"+id+"/turns", SubmitTurnRequest{Explanation: "A function that calls itself."})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, "/sessions/"+id+"/complete", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[engine.CompletionResult](t, rec)
	assert.Equal(t, "completed", string(res.Summary.Status))
	require.NotNil(t, res.Review)
	assert.Equal(t, "Recursion", res.Review.Topic)

	rec = do(t, h, http.MethodPost, "/sessions/"+id+"/turns", SubmitTurnRequest{Explanation: "More."})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodDelete, "/sessions/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, h, http.MethodGet, "/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAnalyticsPoll(t *testing.T) {
	h, _ := newTestServer(t, engine.Config{AnalyticsCadence: 1})
	id := createSession(t, h, "Recursion")

	rec := do(t, h, http.MethodPost, "/sessions/"+id+"/turns", SubmitTurnRequest{Explanation: "A function that calls itself."})
	require.Equal(t, http.StatusOK, rec.Code)
	handle := decode[TurnResponse](t, rec).AnalyticsHandle
	require.NotEmpty(t, handle)

	rec = do(t, h, http.MethodGet, "/analytics/"+handle+"?wait=2s", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	poll := decode[PollResponse](t, rec)
	assert.Equal(t, "ready", poll.State)
	require.NotNil(t, poll.Snapshot)
	assert.Equal(t, 1, poll.Snapshot.TotalTurns)

	rec = do(t, h, http.MethodGet, "/analytics/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/analytics/"+handle+"?wait=soon", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Nothing is persisted without a store.
	rec = do(t, h, http.MethodGet, "/sessions/"+id+"/analytics", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReviews(t *testing.T) {
	h, _ := newTestServer(t, engine.Config{})

	rec := do(t, h, http.MethodPost, "/learners/ada/reviews", map[string]any{"topic": "Recursion", "quality": 5})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	item := decode[spacedrep.Item](t, rec)
	assert.Equal(t, 1, item.Repetitions)
	assert.Equal(t, 1, item.IntervalDays)

	rec = do(t, h, http.MethodPost, "/learners/ada/reviews", map[string]any{"topic": "Recursion", "quality": 6})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, h, http.MethodPost, "/learners/ada/reviews", map[string]any{"topic": "Recursion"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, h, http.MethodPost, "/learners/ada/reviews", map[string]any{"topic": "", "quality": 3})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/learners/ada/reviews/due", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]spacedrep.Item](t, rec))

	future := time.Now().UTC().Add(48 * time.Hour).Format(time.DateOnly)
	rec = do(t, h, http.MethodGet, "/learners/ada/reviews/due?as_of="+future, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	due := decode[[]spacedrep.Item](t, rec)
	require.Len(t, due, 1)
	assert.Equal(t, "Recursion", due[0].Topic)

	rec = do(t, h, http.MethodGet, "/learners/ada/reviews/due?as_of=tomorrow", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/learners/ada/reviews/schedule?days=3", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sched := decode[spacedrep.Schedule](t, rec)
	assert.Equal(t, 3, sched.Days)
	assert.Len(t, sched.Upcoming, 1)

	rec = do(t, h, http.MethodGet, "/learners/ada/reviews/schedule?days=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/learners/ada/reviews/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[spacedrep.Stats](t, rec).TotalItems)

	rec = do(t, h, http.MethodGet, "/learners/ada/reviews/suggest?limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]spacedrep.Item](t, rec), 1)
}

func TestLearnerWithoutStore(t *testing.T) {
	h, _ := newTestServer(t, engine.Config{})

	rec := do(t, h, http.MethodGet, "/learners/ada/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))

	rec = do(t, h, http.MethodGet, "/learners/ada/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ada", decode[UserStatsResponse](t, rec).Owner)

	rec = do(t, h, http.MethodGet, "/learners/ada/graph", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	g := decode[GraphResponse](t, rec)
	assert.Empty(t, g.Nodes)
	assert.Empty(t, g.Edges)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{session.ErrEmptyExplanation, http.StatusBadRequest},
		{spacedrep.ErrInvalidQuality, http.StatusBadRequest},
		{fmt.Errorf("poll: %w", analytics.ErrUnknownHandle), http.StatusNotFound},
		{session.ErrTurnInProgress, http.StatusConflict},
		{&router.ExecutionError{Cause: errors.New("down")}, http.StatusBadGateway},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), "%v", tt.err)
	}
}
