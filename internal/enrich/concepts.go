package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rodrick-mpofu/teachback-ai/internal/llm"
	"github.com/rodrick-mpofu/teachback-ai/internal/tutor"
)

const (
	PurposeConcepts = "related-concepts"

	conceptWindow = 5
	maxConcepts   = 5
)

var conceptsSchema = &llm.Schema{
	Name:        "related-concepts",
	Description: "Concepts related to the taught topic",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"concepts": map[string]any{
				"type":        "array",
				"description": "3 to 5 related concept names",
				"items":       map[string]any{"type": "string"},
			},
		},
		"required":             []any{"concepts"},
		"additionalProperties": false,
	},
}

// LLMConcepts asks the model which concepts the conversation touched.
type LLMConcepts struct {
	provider llm.Provider
}

func NewLLMConcepts(p llm.Provider) *LLMConcepts {
	return &LLMConcepts{provider: p}
}

func (c *LLMConcepts) RelatedConcepts(ctx context.Context, topic string, history []tutor.Exchange) ([]ConceptLink, error) {
	var conv strings.Builder
	for _, ex := range tutor.RecentHistory(history, conceptWindow) {
		fmt.Fprintf(&conv, "Teacher: %s\n\nStudent: %s\n\n", ex.Explanation, ex.Question)
	}

	prompt := fmt.Sprintf(`Based on this teaching conversation about %q, identify 3-5 related concepts or topics that were mentioned or are closely related.

Conversation:
%s`, topic, conv.String())

	resp, err := c.provider.Generate(llm.WithPurpose(ctx, PurposeConcepts), llm.Request{
		Messages:    llm.UserPrompt(prompt),
		Schema:      conceptsSchema,
		MaxTokens:   256,
		Temperature: 0.3,
	})
	if err != nil {
		return nil, fmt.Errorf("related concepts: %w", err)
	}

	var out struct {
		Concepts []string `json:"concepts"`
	}
	if err := json.Unmarshal(resp.Content, &out); err != nil {
		return nil, fmt.Errorf("decode related concepts: %w", err)
	}
	return Links(topic, out.Concepts), nil
}

// Links filters concept names against the topic (case-insensitive), drops
// blanks and repeats, caps the list and turns it into related_to links.
func Links(topic string, concepts []string) []ConceptLink {
	out := make([]ConceptLink, 0, maxConcepts)
	seen := make(map[string]struct{})
	for _, name := range tutor.Dedupe(concepts) {
		key := strings.ToLower(name)
		if strings.EqualFold(name, strings.TrimSpace(topic)) {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, ConceptLink{From: topic, To: name, Relationship: RelationshipRelatedTo})
		if len(out) == maxConcepts {
			break
		}
	}
	return out
}
