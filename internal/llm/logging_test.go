package llm

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/rodrick-mpofu/teachback-ai/internal/logger"
	"github.com/rodrick-mpofu/teachback-ai/internal/store"
)

type fakeEventRepo struct {
	mu     sync.Mutex
	events []store.LLMRequestEventData
	err    error
}

func (f *fakeEventRepo) AppendLLMRequest(_ context.Context, data store.LLMRequestEventData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, data)
	return f.err
}

func (f *fakeEventRepo) QueryLLMEvents(context.Context, store.QueryOpts) ([]store.LLMEvent, error) {
	return nil, nil
}

func (f *fakeEventRepo) GetLLMEvent(context.Context, int64) (*store.LLMEvent, error) {
	return nil, nil
}

func observedLogger(level zapcore.Level) (*logger.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return &logger.Logger{SugaredLogger: zap.New(core).Sugar()}, logs
}

func TestLoggingProvider_RecordsSuccess(t *testing.T) {
	repo := &fakeEventRepo{}
	mock := NewMockProvider(MockResponse{
		Content: json.RawMessage(`{"question":"What stops the recursion?"}`),
		Usage:   Usage{InputTokens: 100, OutputTokens: 20},
	})
	p := WithLogging(mock, ProviderMock, repo, nil)

	ctx := WithPurpose(context.Background(), "tutor-question")
	_, err := p.Generate(ctx, Request{
		System:   "be socratic",
		Messages: []Message{{Role: RoleUser, Content: "explain recursion"}},
		Schema:   &Schema{Name: "q", Definition: map[string]any{"type": "object"}},
	})
	require.NoError(t, err)

	require.Len(t, repo.events, 1)
	ev := repo.events[0]
	assert.Equal(t, "mock", ev.Provider)
	assert.Equal(t, "tutor-question", ev.Purpose)
	assert.True(t, ev.Success)
	assert.Equal(t, 100, ev.InputTokens)
	assert.Contains(t, ev.RequestBody, "[system]\nbe socratic")
	assert.Contains(t, ev.RequestBody, "[schema: q]")
	assert.Contains(t, ev.ResponseBody, "recursion")
	assert.Zero(t, ev.CostUSD)
}

func TestLoggingProvider_RecordsFailureAndRepoError(t *testing.T) {
	repo := &fakeEventRepo{err: errors.New("disk full")}
	log, logs := observedLogger(zapcore.WarnLevel)
	p := WithLogging(NewMockProvider(), ProviderAnthropic, repo, log)

	_, err := p.Generate(context.Background(), Request{})
	require.Error(t, err)

	require.Len(t, repo.events, 1)
	assert.False(t, repo.events[0].Success)
	assert.NotEmpty(t, repo.events[0].ErrorMessage)

	assert.Equal(t, 1, logs.FilterMessage("llm request failed").Len())
	assert.Equal(t, 1, logs.FilterMessage("failed to store llm request event").Len())
}

func TestLoggingProvider_NilRepo(t *testing.T) {
	p := WithLogging(NewMockProvider(MockResponse{Content: json.RawMessage(`{}`)}), ProviderMock, nil, nil)
	_, err := p.Generate(context.Background(), Request{})
	require.NoError(t, err)
}

type slowProvider struct{}

func (slowProvider) Generate(ctx context.Context, _ Request) (*Response, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (slowProvider) ModelID() string { return "slow" }

func TestWithTimeout(t *testing.T) {
	p := WithTimeout(slowProvider{}, 10*time.Millisecond)
	start := time.Now()
	_, err := p.Generate(context.Background(), Request{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, "slow", p.ModelID())

	_, same := WithTimeout(slowProvider{}, 0).(slowProvider)
	assert.True(t, same, "non-positive timeout should not wrap")
}

func TestNewProvider_Mock(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Provider = ProviderMock
	p, err := NewProvider(context.Background(), cfg, &fakeEventRepo{}, logger.Nop())
	require.NoError(t, err)
	assert.Equal(t, "mock", p.ModelID())

	cfg.Provider = "nope"
	_, err = NewProvider(context.Background(), cfg, nil, nil)
	assert.Error(t, err)
}
