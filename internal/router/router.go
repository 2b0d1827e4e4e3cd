// Package router executes one conversational turn. It prefers the remote
// execution platform, where analysis and question drafting run as two
// concurrent calls, and falls back to running both in-process, one after
// the other, when anything about the remote attempt goes wrong.
package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/rodrick-mpofu/teachback-ai/internal/logger"
	"github.com/rodrick-mpofu/teachback-ai/internal/observability"
	"github.com/rodrick-mpofu/teachback-ai/internal/persona"
	"github.com/rodrick-mpofu/teachback-ai/internal/tutor"
)

const tracerName = "github.com/rodrick-mpofu/teachback-ai/internal/router"

// Path records which execution path produced a turn.
type Path string

const (
	PathRemote        Path = "remote"
	PathLocalFallback Path = "local-fallback"
)

// ErrTurnExecutionFailed matches every *ExecutionError.
var ErrTurnExecutionFailed = errors.New("turn execution failed")

var errEmptyQuestion = errors.New("model returned an empty question")

// ExecutionError is returned when the local path fails. RemoteErr is the
// earlier remote failure, if a remote attempt was made.
type ExecutionError struct {
	Cause     error
	RemoteErr error
}

func (e *ExecutionError) Error() string {
	if e.RemoteErr != nil {
		return fmt.Sprintf("turn execution failed: %v (remote: %v)", e.Cause, e.RemoteErr)
	}
	return fmt.Sprintf("turn execution failed: %v", e.Cause)
}

func (e *ExecutionError) Unwrap() error { return e.Cause }

func (e *ExecutionError) Is(target error) bool { return target == ErrTurnExecutionFailed }

// RemotePlatform runs the model calls somewhere else. It has the same
// contract as the in-process model service.
type RemotePlatform interface {
	Analyze(ctx context.Context, explanation, topic string) (tutor.AnalysisResult, error)
	Ask(ctx context.Context, in tutor.AskInput) (string, error)
}

type Input struct {
	SessionID   string
	Explanation string
	Topic       string
	Mode        persona.Mode
	History     []tutor.Exchange
}

type Result struct {
	Analysis       tutor.AnalysisResult
	Question       string
	Path           Path
	Duration       time.Duration
	FallbackReason string
}

type Config struct {
	// RemoteCallTimeout bounds each remote call separately. Zero means the
	// caller's context is the only bound.
	RemoteCallTimeout time.Duration
}

type Router struct {
	local  tutor.ModelService
	remote RemotePlatform
	cfg    Config
	sink   observability.Sink
	log    *logger.Logger
	tracer trace.Tracer
}

// New builds a router. remote may be nil, in which case every turn runs
// locally.
func New(local tutor.ModelService, remote RemotePlatform, cfg Config, sink observability.Sink, log *logger.Logger) *Router {
	return &Router{
		local:  local,
		remote: remote,
		cfg:    cfg,
		sink:   observability.OrNop(sink),
		log:    logger.OrNop(log).With("component", "router"),
		tracer: otel.Tracer(tracerName),
	}
}

// ExecuteTurn produces the analysis and next question for one explanation.
// The only error it returns is *ExecutionError.
func (r *Router) ExecuteTurn(ctx context.Context, in Input) (Result, error) {
	ctx, span := r.tracer.Start(ctx, "router.ExecuteTurn", trace.WithAttributes(
		attribute.String("session.id", in.SessionID),
		attribute.String("persona.mode", string(in.Mode)),
	))
	defer span.End()

	start := time.Now()
	in.History = tutor.RecentHistory(in.History, tutor.HistoryWindow)

	var remoteErr error
	if r.remote != nil {
		analysis, question, err := r.runRemote(ctx, in)
		if err == nil {
			res := Result{Analysis: analysis, Question: question, Path: PathRemote, Duration: time.Since(start)}
			r.finish(ctx, span, in, res, nil)
			return res, nil
		}
		remoteErr = err
		r.log.Warn("remote execution failed, falling back to local", "session_id", in.SessionID, "error", err)
	}

	res := Result{Path: PathLocalFallback, FallbackReason: fallbackReason(remoteErr)}
	analysis, question, err := r.runLocal(ctx, in)
	res.Duration = time.Since(start)
	if err != nil {
		execErr := &ExecutionError{Cause: err, RemoteErr: remoteErr}
		r.finish(ctx, span, in, res, execErr)
		return Result{}, execErr
	}
	res.Analysis, res.Question = analysis, question
	r.finish(ctx, span, in, res, nil)
	return res, nil
}

func fallbackReason(remoteErr error) string {
	if remoteErr == nil {
		return "remote platform not configured"
	}
	if errors.Is(remoteErr, context.DeadlineExceeded) {
		return "remote deadline exceeded: " + remoteErr.Error()
	}
	return remoteErr.Error()
}

// runRemote starts both calls at once. Drafting needs the analysis, so the
// ask goroutine blocks until the analyze goroutine hands it over.
func (r *Router) runRemote(ctx context.Context, in Input) (tutor.AnalysisResult, string, error) {
	g, gctx := errgroup.WithContext(ctx)
	handoff := make(chan tutor.AnalysisResult, 1)

	var analysis tutor.AnalysisResult
	var question string

	g.Go(func() error {
		a, err := bounded(gctx, r.cfg.RemoteCallTimeout, func(ctx context.Context) (tutor.AnalysisResult, error) {
			return r.remote.Analyze(ctx, in.Explanation, in.Topic)
		})
		if err != nil {
			return fmt.Errorf("remote analyze: %w", err)
		}
		analysis = a.Clamped()
		handoff <- analysis
		return nil
	})

	g.Go(func() error {
		var a tutor.AnalysisResult
		select {
		case a = <-handoff:
		case <-gctx.Done():
			return gctx.Err()
		}
		q, err := bounded(gctx, r.cfg.RemoteCallTimeout, func(ctx context.Context) (string, error) {
			return r.remote.Ask(ctx, askInput(in, a))
		})
		if err != nil {
			return fmt.Errorf("remote ask: %w", err)
		}
		if q = strings.TrimSpace(q); q == "" {
			return fmt.Errorf("remote ask: %w", errEmptyQuestion)
		}
		question = q
		return nil
	})

	if err := g.Wait(); err != nil {
		return tutor.AnalysisResult{}, "", err
	}
	return analysis, question, nil
}

func (r *Router) runLocal(ctx context.Context, in Input) (tutor.AnalysisResult, string, error) {
	a, err := r.local.Analyze(ctx, in.Explanation, in.Topic)
	if err != nil {
		return tutor.AnalysisResult{}, "", fmt.Errorf("local analyze: %w", err)
	}
	a = a.Clamped()

	q, err := r.local.Ask(ctx, askInput(in, a))
	if err != nil {
		return tutor.AnalysisResult{}, "", fmt.Errorf("local ask: %w", err)
	}
	if q = strings.TrimSpace(q); q == "" {
		return tutor.AnalysisResult{}, "", fmt.Errorf("local ask: %w", errEmptyQuestion)
	}
	return a, q, nil
}

// bounded runs call under timeout and stops waiting for it once the
// deadline passes, whether or not call honours its context. A result that
// arrives after the deadline is discarded. The abandoned call finishes into
// a buffered channel nobody reads.
func bounded[T any](ctx context.Context, timeout time.Duration, call func(context.Context) (T, error)) (T, error) {
	var zero T
	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := call(ctx)
		done <- result{v, err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return zero, res.err
		}
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		return res.v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func askInput(in Input, a tutor.AnalysisResult) tutor.AskInput {
	return tutor.AskInput{
		Explanation: in.Explanation,
		Mode:        in.Mode,
		Analysis:    a,
		Topic:       in.Topic,
		History:     in.History,
	}
}

func (r *Router) finish(ctx context.Context, span trace.Span, in Input, res Result, err error) {
	span.SetAttributes(
		attribute.String("turn.path", string(res.Path)),
		attribute.String("turn.fallback_reason", res.FallbackReason),
		attribute.Int64("turn.duration_ms", res.Duration.Milliseconds()),
	)
	fields := map[string]any{
		"path":        string(res.Path),
		"duration_ms": res.Duration.Milliseconds(),
	}
	if res.FallbackReason != "" {
		fields["fallback_reason"] = res.FallbackReason
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		fields["error"] = err.Error()
	}
	r.sink.Emit(ctx, observability.Event{
		Name:      observability.EventTurnExecuted,
		SessionID: in.SessionID,
		Fields:    fields,
		At:        time.Now().UTC(),
	})
}
