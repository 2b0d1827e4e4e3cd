// Package observability carries the structured events emitted by the turn
// engine and sets up OpenTelemetry tracing.
package observability

import (
	"context"
	"sync"
	"time"

	"github.com/rodrick-mpofu/teachback-ai/internal/logger"
)

// Event names.
const (
	EventTurnExecuted      = "turn.executed"
	EventEnrichmentSkipped = "enrichment.skipped"
	EventAnalyticsReady    = "analytics.ready"
	EventReviewRecorded    = "review.recorded"
)

type Event struct {
	Name      string         `json:"name"`
	SessionID string         `json:"session_id,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
	At        time.Time      `json:"at"`
}

// Sink receives events. Emit must not block for long and never fails the
// caller; sinks swallow and log their own errors.
type Sink interface {
	Emit(ctx context.Context, ev Event)
}

type nopSink struct{}

func (nopSink) Emit(context.Context, Event) {}

// Nop discards events.
func Nop() Sink { return nopSink{} }

// OrNop returns s, or Nop when s is nil.
func OrNop(s Sink) Sink {
	if s == nil {
		return Nop()
	}
	return s
}

type multiSink []Sink

func (m multiSink) Emit(ctx context.Context, ev Event) {
	for _, s := range m {
		s.Emit(ctx, ev)
	}
}

// Multi fans every event out to all non-nil sinks.
func Multi(sinks ...Sink) Sink {
	out := make(multiSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// LogSink writes each event as one structured log line.
type LogSink struct {
	log *logger.Logger
}

func NewLogSink(log *logger.Logger) *LogSink {
	return &LogSink{log: logger.OrNop(log).With("component", "events")}
}

func (s *LogSink) Emit(_ context.Context, ev Event) {
	kv := make([]any, 0, 2+2*len(ev.Fields))
	if ev.SessionID != "" {
		kv = append(kv, "session_id", ev.SessionID)
	}
	for k, v := range ev.Fields {
		kv = append(kv, k, v)
	}
	s.log.Info(ev.Name, kv...)
}

// Recorder keeps events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Named returns the recorded events called name.
func (r *Recorder) Named(name string) []Event {
	var out []Event
	for _, ev := range r.Events() {
		if ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}
