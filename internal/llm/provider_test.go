package llm

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestMockProvider_FIFO(t *testing.T) {
	mock := NewMockProvider(
		MockResponse{Content: json.RawMessage(`{"question":"Why?"}`), Usage: Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15}},
		MockResponse{Content: json.RawMessage(`{"question":"How?"}`)},
	)

	first, err := mock.Generate(context.Background(), Request{System: "sys"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(first.Content) != `{"question":"Why?"}` || first.Usage.InputTokens != 10 {
		t.Fatalf("unexpected first response: %+v", first)
	}
	second, err := mock.Generate(context.Background(), Request{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(second.Content) != `{"question":"How?"}` {
		t.Fatalf("unexpected second content: %s", second.Content)
	}
	if mock.CallCount() != 2 || mock.Calls[0].System != "sys" {
		t.Fatalf("calls not recorded: %+v", mock.Calls)
	}
}

func TestMockProvider_EmptyQueue(t *testing.T) {
	_, err := NewMockProvider().Generate(context.Background(), Request{})
	var unavail *ErrProviderUnavailable
	if !errors.As(err, &unavail) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestMockProvider_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMockProvider(MockResponse{Content: json.RawMessage(`{}`)}).Generate(ctx, Request{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestOfflineProvider_SatisfiesSchema(t *testing.T) {
	schema := &Schema{
		Name: "offline-check",
		Definition: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"score":    map[string]any{"type": "number", "minimum": 0.5, "maximum": 1},
				"concepts": map[string]any{"type": "array", "minItems": 2, "items": map[string]any{"type": "string"}},
				"mode":     map[string]any{"type": "string", "enum": []any{"socratic", "anxious"}},
				"question": map[string]any{"type": "string"},
			},
			"required": []any{"score", "concepts", "mode", "question"},
		},
	}

	resp, err := NewOfflineProvider().Generate(context.Background(), Request{Schema: schema})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := validateResponse(schema, resp.Content); err != nil {
		t.Fatalf("synthesized content does not validate: %v (%s)", err, resp.Content)
	}

	var got struct {
		Score    float64  `json:"score"`
		Concepts []string `json:"concepts"`
		Mode     string   `json:"mode"`
	}
	if err := json.Unmarshal(resp.Content, &got); err != nil {
		t.Fatal(err)
	}
	if got.Score != 0.5 || len(got.Concepts) != 2 || got.Mode != "socratic" {
		t.Fatalf("unexpected placeholder: %+v", got)
	}
}

func TestPurposeContext(t *testing.T) {
	ctx := context.Background()
	if p := PurposeFrom(ctx); p != "unknown" {
		t.Fatalf("expected 'unknown', got %q", p)
	}
	ctx = WithPurpose(ctx, "turn-analysis")
	if p := PurposeFrom(ctx); p != "turn-analysis" {
		t.Fatalf("expected 'turn-analysis', got %q", p)
	}
	if id := SessionFrom(ctx); id != "" {
		t.Fatalf("expected no session, got %q", id)
	}
	ctx = WithPurpose(WithSession(ctx, "s-1"), "tutor-question")
	if PurposeFrom(ctx) != "tutor-question" || SessionFrom(ctx) != "s-1" {
		t.Fatalf("tags = %q/%q", PurposeFrom(ctx), SessionFrom(ctx))
	}
}

func TestResolveModel(t *testing.T) {
	tests := []struct {
		name   string
		models map[string]string
		want   string
	}{
		{"claude-haiku", anthropicModels, "claude-haiku-4-5-20251001"},
		{"gemini-flash", geminiModels, "gemini-2.5-flash"},
		{"gpt-4o-mini", openaiModels, "gpt-4o-mini"},
		{"some/vendor-model", openaiModels, "some/vendor-model"},
	}
	for _, tt := range tests {
		if got := resolveModel(tt.name, tt.models); got != tt.want {
			t.Errorf("resolveModel(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestLookupCost(t *testing.T) {
	c := LookupCost("claude-haiku-4-5")
	if c == nil {
		t.Fatal("expected pricing for claude-haiku-4-5")
	}
	if got := c.Cost(2_000_000, 1_000_000); got != 7 {
		t.Fatalf("Cost = %v, want 7", got)
	}
	if LookupCost("mock") != nil {
		t.Fatal("mock should have no pricing")
	}
}

func TestGeminiSchema(t *testing.T) {
	s := geminiSchema(analysisTestSchema().Definition)
	if len(s.Properties) != 3 {
		t.Fatalf("expected 3 properties, got %d", len(s.Properties))
	}
	conf := s.Properties["confidence_score"]
	if conf.Minimum == nil || *conf.Minimum != 0 || conf.Maximum == nil || *conf.Maximum != 1 {
		t.Fatalf("bounds not carried: %+v", conf)
	}
	if s.Properties["knowledge_gaps"].Items == nil {
		t.Fatal("array items not converted")
	}
	if got := s.Properties["tone"].Enum; len(got) != 2 || got[0] != "calm" {
		t.Fatalf("enum = %v", got)
	}
	if len(s.Required) != 2 {
		t.Fatalf("required = %v", s.Required)
	}
}

func TestNewOpenRouterProvider(t *testing.T) {
	if _, err := NewOpenRouterProvider(OpenRouterConfig{Model: "x"}); err == nil {
		t.Fatal("expected error for empty API key")
	}
	p, err := NewOpenRouterProvider(OpenRouterConfig{APIKey: "sk-or-test", Model: "anthropic/claude-3.5-haiku"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ModelID() != "anthropic/claude-3.5-haiku" {
		t.Fatalf("model = %q", p.ModelID())
	}
}
