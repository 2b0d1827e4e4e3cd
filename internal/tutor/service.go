package tutor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/rodrick-mpofu/teachback-ai/internal/llm"
	"github.com/rodrick-mpofu/teachback-ai/internal/persona"
)

const (
	analysisMaxTokens = 512
	questionMaxTokens = 256

	PurposeAnalysis = "turn-analysis"
	PurposeQuestion = "tutor-question"
)

var analysisSchema = &llm.Schema{
	Name:        "explanation-analysis",
	Description: "Assessment of a learner's explanation",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"confidence_score":   map[string]any{"type": "number", "description": "0 = very uncertain, 1 = very confident"},
			"clarity_score":      map[string]any{"type": "number", "description": "0 = confusing, 1 = crystal clear"},
			"knowledge_gaps":     stringArray("Areas where understanding seems incomplete or incorrect"),
			"unexplained_jargon": stringArray("Technical terms used without definition"),
			"strengths":          stringArray("What the speaker explained well"),
		},
		"required": []any{
			"confidence_score", "clarity_score", "knowledge_gaps", "unexplained_jargon", "strengths",
		},
		"additionalProperties": false,
	},
}

var questionSchema = &llm.Schema{
	Name:        "student-question",
	Description: "The student's next question",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"question": map[string]any{"type": "string", "description": "A single natural question"},
		},
		"required":             []any{"question"},
		"additionalProperties": false,
	},
}

func stringArray(desc string) map[string]any {
	return map[string]any{
		"type":        "array",
		"description": desc,
		"items":       map[string]any{"type": "string"},
	}
}

var analysisPrompt = template.Must(template.New("analysis").Parse(
	`Analyze this explanation about {{.Topic}}.

Explanation to analyze:
{{.Explanation}}

Guidelines:
- confidence_score: how confident the speaker seems (0 to 1)
- clarity_score: how clear and well-structured the explanation is (0 to 1)
- knowledge_gaps: specific areas where understanding seems incomplete or incorrect
- unexplained_jargon: technical terms used without definition or context
- strengths: what the speaker explained well`))

var questionPrompt = template.Must(template.New("question").Funcs(template.FuncMap{
	"list": func(items []string, none string) string {
		if len(items) == 0 {
			return none
		}
		return strings.Join(items, ", ")
	},
}).Parse(
	`Based on this explanation and analysis, generate your next question.

Topic: {{.Topic}}

Latest explanation:
{{.Explanation}}

Analysis:
- Confidence: {{printf "%.2f" .Analysis.Confidence}}
- Clarity: {{printf "%.2f" .Analysis.Clarity}}
- Knowledge gaps: {{list .Analysis.KnowledgeGaps "None identified"}}
- Unexplained jargon: {{list .Analysis.UnexplainedJargon "None"}}
- Strengths: {{list .Analysis.Strengths "None"}}
{{if .History}}
Previous conversation:
{{range .History}}Student: {{.Question}}
Teacher: {{.Explanation}}
{{end}}{{end}}
Generate a single, natural question that fits your personality and helps the teacher improve their explanation.`))

// Service implements ModelService over an llm.Provider.
type Service struct {
	provider llm.Provider
}

func NewService(p llm.Provider) *Service {
	return &Service{provider: p}
}

func (s *Service) Analyze(ctx context.Context, explanation, topic string) (AnalysisResult, error) {
	prompt, err := execute(analysisPrompt, struct{ Topic, Explanation string }{topic, explanation})
	if err != nil {
		return AnalysisResult{}, err
	}

	resp, err := s.provider.Generate(llm.WithPurpose(ctx, PurposeAnalysis), llm.Request{
		System:      "You assess explanations written by learners. Respond only with JSON.",
		Messages:    llm.UserPrompt(prompt),
		Schema:      analysisSchema,
		MaxTokens:   analysisMaxTokens,
		Temperature: 0.2,
	})
	if err != nil {
		return AnalysisResult{}, fmt.Errorf("analyze explanation: %w", err)
	}

	var out AnalysisResult
	if err := json.Unmarshal(resp.Content, &out); err != nil {
		return AnalysisResult{}, fmt.Errorf("decode analysis: %w", err)
	}
	return out.Clamped(), nil
}

func (s *Service) Ask(ctx context.Context, in AskInput) (string, error) {
	system, err := persona.SystemPrompt(in.Mode, in.Topic)
	if err != nil {
		return "", err
	}
	in.History = RecentHistory(in.History, HistoryWindow)
	prompt, err := execute(questionPrompt, in)
	if err != nil {
		return "", err
	}

	resp, err := s.provider.Generate(llm.WithPurpose(ctx, PurposeQuestion), llm.Request{
		System:      system,
		Messages:    llm.UserPrompt(prompt),
		Schema:      questionSchema,
		MaxTokens:   questionMaxTokens,
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("draft question: %w", err)
	}

	var out struct {
		Question string `json:"question"`
	}
	if err := json.Unmarshal(resp.Content, &out); err != nil {
		return "", fmt.Errorf("decode question: %w", err)
	}
	return strings.TrimSpace(out.Question), nil
}

func execute(t *template.Template, data any) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", t.Name(), err)
	}
	return b.String(), nil
}
