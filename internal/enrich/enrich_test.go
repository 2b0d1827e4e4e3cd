package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rodrick-mpofu/teachback-ai/internal/llm"
	"github.com/rodrick-mpofu/teachback-ai/internal/observability"
	"github.com/rodrick-mpofu/teachback-ai/internal/tutor"
)

type funcService func(ctx context.Context, topic string, history []tutor.Exchange) ([]ConceptLink, error)

func (f funcService) RelatedConcepts(ctx context.Context, topic string, history []tutor.Exchange) ([]ConceptLink, error) {
	return f(ctx, topic, history)
}

func TestEnrich_OK(t *testing.T) {
	w := NewWrapper(funcService(func(context.Context, string, []tutor.Exchange) ([]ConceptLink, error) {
		return []ConceptLink{{To: " Divide and Conquer "}, {From: "Binary Search", To: "Sorted Arrays", Relationship: "prerequisite"}}, nil
	}), time.Second, nil, nil)

	res := w.Enrich(context.Background(), "Binary Search", nil)
	if res.Status != StatusOK {
		t.Fatalf("status = %q (%s)", res.Status, res.Reason)
	}
	if len(res.Concepts) != 2 {
		t.Fatalf("concepts = %+v", res.Concepts)
	}
	if got := res.Concepts[0]; got.From != "Binary Search" || got.To != "Divide and Conquer" || got.Relationship != RelationshipRelatedTo {
		t.Errorf("first link = %+v", got)
	}
	if res.Concepts[1].Relationship != "prerequisite" {
		t.Errorf("explicit relationship overwritten: %+v", res.Concepts[1])
	}
}

func TestEnrich_HangingServiceIsSkipped(t *testing.T) {
	rec := &observability.Recorder{}
	block := make(chan struct{})
	defer close(block)
	w := NewWrapper(funcService(func(context.Context, string, []tutor.Exchange) ([]ConceptLink, error) {
		<-block // ignores cancellation
		return nil, nil
	}), 20*time.Millisecond, rec, nil)

	start := time.Now()
	res := w.Enrich(context.Background(), "Binary Search", nil)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Enrich took %v", elapsed)
	}
	if res.Status != StatusSkipped || !strings.Contains(res.Reason, "timed out") {
		t.Errorf("result = %+v", res)
	}
	if len(rec.Named(observability.EventEnrichmentSkipped)) != 1 {
		t.Error("skip event not emitted")
	}
}

func TestEnrich_CallerDeadlineWins(t *testing.T) {
	w := NewWrapper(funcService(func(ctx context.Context, _ string, _ []tutor.Exchange) ([]ConceptLink, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}), time.Minute, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	res := w.Enrich(ctx, "x", nil)
	if time.Since(start) > time.Second {
		t.Fatal("caller deadline ignored")
	}
	if res.Status != StatusSkipped {
		t.Errorf("result = %+v", res)
	}
}

func TestEnrich_FailuresAreSkipped(t *testing.T) {
	tests := []struct {
		name   string
		svc    Service
		reason string
	}{
		{"error", funcService(func(context.Context, string, []tutor.Exchange) ([]ConceptLink, error) {
			return nil, errors.New("quota exceeded")
		}), "quota exceeded"},
		{"panic", funcService(func(context.Context, string, []tutor.Exchange) ([]ConceptLink, error) {
			panic("boom")
		}), "panic: boom"},
		{"malformed", funcService(func(context.Context, string, []tutor.Exchange) ([]ConceptLink, error) {
			return []ConceptLink{{To: "  "}}, nil
		}), "malformed"},
		{"nil service", nil, "not configured"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NewWrapper(tt.svc, time.Second, nil, nil).Enrich(context.Background(), "x", nil)
			if res.Status != StatusSkipped || !strings.Contains(res.Reason, tt.reason) {
				t.Errorf("result = %+v, want skipped with %q", res, tt.reason)
			}
		})
	}
}

func TestNewWrapper_DefaultTimeout(t *testing.T) {
	if got := NewWrapper(nil, 0, nil, nil).Timeout(); got != DefaultTimeout {
		t.Errorf("Timeout() = %v, want %v", got, DefaultTimeout)
	}
}

func TestLinks(t *testing.T) {
	got := Links("Binary Search", []string{"binary search", "Divide and Conquer", "", "divide and conquer", "A", "B", "C", "D", "E"})
	if len(got) != 5 {
		t.Fatalf("len = %d, want 5: %+v", len(got), got)
	}
	if got[0].To != "Divide and Conquer" || got[1].To != "A" {
		t.Errorf("links = %+v", got)
	}
	for _, l := range got {
		if l.From != "Binary Search" || l.Relationship != RelationshipRelatedTo {
			t.Errorf("bad link %+v", l)
		}
	}
}

func TestLLMConcepts(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Content: json.RawMessage(`{"concepts":["Sorting","Binary Search","Recursion"]}`)})
	svc := NewLLMConcepts(mock)

	history := make([]tutor.Exchange, 7)
	for i := range history {
		history[i] = tutor.Exchange{Explanation: "explanation " + string(rune('0'+i)), Question: "q"}
	}
	links, err := svc.RelatedConcepts(context.Background(), "Binary Search", history)
	if err != nil {
		t.Fatal(err)
	}
	if len(links) != 2 || links[0].To != "Sorting" || links[1].To != "Recursion" {
		t.Errorf("links = %+v", links)
	}

	prompt := mock.Calls[0].Messages[0].Content
	if strings.Contains(prompt, "explanation 1") || !strings.Contains(prompt, "explanation 6") {
		t.Errorf("prompt should only carry the last 5 exchanges:\n%s", prompt)
	}
}
