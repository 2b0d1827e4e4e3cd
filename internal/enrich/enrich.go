// Package enrich runs auxiliary enrichment beside a turn. Enrichment is
// strictly best effort: it runs under a hard timeout in its own goroutine
// and every failure, including a panic, collapses into a Skipped result.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/rodrick-mpofu/teachback-ai/internal/logger"
	"github.com/rodrick-mpofu/teachback-ai/internal/observability"
	"github.com/rodrick-mpofu/teachback-ai/internal/tutor"
)

const DefaultTimeout = 10 * time.Second

type Status string

const (
	StatusOK      Status = "ok"
	StatusSkipped Status = "skipped"
	// StatusPending is reported by callers that stopped waiting.
	StatusPending Status = "pending"
)

const RelationshipRelatedTo = "related_to"

type ConceptLink struct {
	From         string `json:"from"`
	To           string `json:"to"`
	Relationship string `json:"relationship"`
}

type Result struct {
	Status   Status        `json:"status"`
	Concepts []ConceptLink `json:"concepts,omitempty"`
	Reason   string        `json:"reason,omitempty"`
}

// Skipped builds a skipped result.
func Skipped(reason string) Result {
	return Result{Status: StatusSkipped, Reason: reason}
}

// Service produces concept links for a topic from the recent conversation.
type Service interface {
	RelatedConcepts(ctx context.Context, topic string, history []tutor.Exchange) ([]ConceptLink, error)
}

var errMalformed = errors.New("malformed concept link")

// Wrapper isolates a Service.
type Wrapper struct {
	svc     Service
	timeout time.Duration
	sink    observability.Sink
	log     *logger.Logger
	tracer  trace.Tracer
}

// NewWrapper wraps svc. A non-positive timeout uses DefaultTimeout. svc may
// be nil, in which case every call is skipped.
func NewWrapper(svc Service, timeout time.Duration, sink observability.Sink, log *logger.Logger) *Wrapper {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Wrapper{
		svc:     svc,
		timeout: timeout,
		sink:    observability.OrNop(sink),
		log:     logger.OrNop(log).With("component", "enrich"),
		tracer:  otel.Tracer("github.com/rodrick-mpofu/teachback-ai/internal/enrich"),
	}
}

// Enabled reports whether a service is attached.
func (w *Wrapper) Enabled() bool { return w.svc != nil }

// Timeout reports the hard limit applied to each call.
func (w *Wrapper) Timeout() time.Duration { return w.timeout }

type outcome struct {
	links []ConceptLink
	err   error
}

// Enrich never blocks past the hard timeout or ctx, whichever ends first,
// even when the service ignores cancellation.
func (w *Wrapper) Enrich(ctx context.Context, topic string, history []tutor.Exchange) Result {
	ctx, span := w.tracer.Start(ctx, "enrich.Enrich", trace.WithAttributes(attribute.String("topic", topic)))
	defer span.End()

	res := w.run(ctx, topic, history)
	span.SetAttributes(attribute.String("enrich.status", string(res.Status)))
	if res.Status == StatusSkipped {
		span.SetAttributes(attribute.String("enrich.skip_reason", res.Reason))
		w.log.Warn("enrichment skipped", "topic", topic, "reason", res.Reason)
		w.sink.Emit(ctx, observability.Event{
			Name:   observability.EventEnrichmentSkipped,
			Fields: map[string]any{"topic": topic, "reason": res.Reason},
			At:     time.Now().UTC(),
		})
	}
	return res
}

func (w *Wrapper) run(ctx context.Context, topic string, history []tutor.Exchange) Result {
	if w.svc == nil {
		return Skipped("enrichment service not configured")
	}

	callCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	// Buffered so an abandoned call can still finish and exit.
	done := make(chan outcome, 1)
	hist := append([]tutor.Exchange(nil), history...)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- outcome{err: fmt.Errorf("panic: %v", p)}
			}
		}()
		links, err := w.svc.RelatedConcepts(callCtx, topic, hist)
		done <- outcome{links: links, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			return Skipped(o.err.Error())
		}
		links, err := normalize(topic, o.links)
		if err != nil {
			return Skipped(err.Error())
		}
		return Result{Status: StatusOK, Concepts: links}
	case <-callCtx.Done():
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return Skipped(fmt.Sprintf("timed out after %s", w.timeout))
		}
		return Skipped("cancelled: " + callCtx.Err().Error())
	}
}

func normalize(topic string, links []ConceptLink) ([]ConceptLink, error) {
	out := make([]ConceptLink, 0, len(links))
	for _, l := range links {
		l.From = strings.TrimSpace(l.From)
		l.To = strings.TrimSpace(l.To)
		if l.To == "" {
			return nil, fmt.Errorf("%w: empty target", errMalformed)
		}
		if l.From == "" {
			l.From = topic
		}
		if l.Relationship == "" {
			l.Relationship = RelationshipRelatedTo
		}
		out = append(out, l)
	}
	return out, nil
}
