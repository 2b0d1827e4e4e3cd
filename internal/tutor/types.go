// Package tutor is the model service: it turns an explanation into an
// analysis and drafts the persona's next question, both through an
// llm.Provider.
package tutor

import (
	"context"
	"strings"

	"github.com/rodrick-mpofu/teachback-ai/internal/persona"
)

// AnalysisResult is the model's assessment of one explanation.
type AnalysisResult struct {
	Confidence        float64  `json:"confidence_score"`
	Clarity           float64  `json:"clarity_score"`
	KnowledgeGaps     []string `json:"knowledge_gaps"`
	UnexplainedJargon []string `json:"unexplained_jargon"`
	Strengths         []string `json:"strengths"`
}

// Clamped returns a copy with both scores in [0,1] and every list trimmed,
// blank-free and de-duplicated in first-seen order.
func (a AnalysisResult) Clamped() AnalysisResult {
	return AnalysisResult{
		Confidence:        clamp01(a.Confidence),
		Clarity:           clamp01(a.Clarity),
		KnowledgeGaps:     Dedupe(a.KnowledgeGaps),
		UnexplainedJargon: Dedupe(a.UnexplainedJargon),
		Strengths:         Dedupe(a.Strengths),
	}
}

func clamp01(v float64) float64 {
	switch {
	case v != v: // NaN
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// Dedupe trims entries, drops blanks and keeps the first occurrence of each.
// The result is never nil.
func Dedupe(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// Exchange is one earlier explanation and the question that answered it.
type Exchange struct {
	Explanation string `json:"explanation"`
	Question    string `json:"question"`
}

// AskInput carries what question drafting needs.
type AskInput struct {
	Explanation string         `json:"explanation"`
	Mode        persona.Mode   `json:"mode"`
	Analysis    AnalysisResult `json:"analysis"`
	Topic       string         `json:"topic"`
	History     []Exchange     `json:"history"`
}

// ModelService is the analysis and question-drafting capability.
type ModelService interface {
	Analyze(ctx context.Context, explanation, topic string) (AnalysisResult, error)
	Ask(ctx context.Context, in AskInput) (string, error)
}

// HistoryWindow is how many earlier exchanges question drafting sees.
const HistoryWindow = 3

// RecentHistory returns the last n exchanges of h.
func RecentHistory(h []Exchange, n int) []Exchange {
	if n <= 0 || len(h) <= n {
		return h
	}
	return h[len(h)-n:]
}
