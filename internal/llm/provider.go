// Package llm is the provider abstraction behind the tutor's model calls.
// Every call asks for structured JSON; providers translate the request to
// their SDK's native structured-output mechanism and validate the reply
// against the requested schema.
package llm

import (
	"context"
	"encoding/json"
)

type Provider interface {
	// Generate returns the reply, validated against req.Schema when set.
	Generate(ctx context.Context, req Request) (*Response, error)

	// ModelID is the configured model, which may differ from Response.Model.
	ModelID() string
}

type Request struct {
	System   string
	Messages []Message

	// Schema constrains the reply. Nil asks for raw text.
	Schema *Schema

	MaxTokens int

	// Temperature in 0.0 - 1.0. Zero leaves the provider default.
	Temperature float64
}

type Message struct {
	Role    Role
	Content string
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// UserPrompt is the single-message conversation every tutor call sends.
func UserPrompt(prompt string) []Message {
	return []Message{{Role: RoleUser, Content: prompt}}
}

// Schema is a named JSON Schema. Name is kebab-case, e.g.
// "explanation-analysis", and doubles as the OpenAI schema name and the
// validation cache key.
type Schema struct {
	Name        string
	Description string
	Definition  map[string]any
}

type Response struct {
	Content json.RawMessage
	Usage   Usage

	// Model served the request.
	Model string

	// StopReason is "end" or "max_tokens".
	StopReason string
}

type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}
