package llm

import (
	"context"
	"encoding/json"
	"sync"
)

// MockResponse is a canned response for the MockProvider.
type MockResponse struct {
	Content json.RawMessage
	Usage   Usage
	Err     error
}

// MockProvider returns canned responses in FIFO order and records every
// request. When the queue is empty it either fails with
// ErrProviderUnavailable or, if Synthesize is set, builds a minimal reply
// that satisfies the request's schema.
type MockProvider struct {
	mu        sync.Mutex
	responses []MockResponse
	Calls     []Request

	Synthesize bool
}

func NewMockProvider(responses ...MockResponse) *MockProvider {
	return &MockProvider{responses: responses}
}

// NewOfflineProvider is the provider behind the "mock" config value: it
// never fails and always answers with schema-shaped placeholder content.
func NewOfflineProvider() *MockProvider {
	return &MockProvider{Synthesize: true}
}

func (m *MockProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, req)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if len(m.responses) == 0 {
		if !m.Synthesize {
			return nil, &ErrProviderUnavailable{}
		}
		content, err := json.Marshal(placeholder(schemaDefinition(req.Schema)))
		if err != nil {
			return nil, err
		}
		return &Response{Content: content, Model: "mock", StopReason: "end"}, nil
	}

	resp := m.responses[0]
	m.responses = m.responses[1:]
	if resp.Err != nil {
		return nil, resp.Err
	}
	return &Response{
		Content:    resp.Content,
		Usage:      resp.Usage,
		Model:      "mock",
		StopReason: "end",
	}, nil
}

func (m *MockProvider) ModelID() string {
	return "mock"
}

// AddResponse appends a canned response to the queue.
func (m *MockProvider) AddResponse(resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, resp)
}

func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

func schemaDefinition(s *Schema) map[string]any {
	if s == nil {
		return map[string]any{"type": "string"}
	}
	return s.Definition
}

// placeholder builds the smallest value accepted by def: minimums for
// numbers, the first enum entry, one item for arrays with minItems.
func placeholder(def map[string]any) any {
	if enums := stringList(def["enum"]); len(enums) > 0 {
		return enums[0]
	}
	t, _ := def["type"].(string)
	switch t {
	case "object":
		out := map[string]any{}
		props, _ := def["properties"].(map[string]any)
		for k, v := range props {
			if pd, ok := v.(map[string]any); ok {
				out[k] = placeholder(pd)
			}
		}
		return out
	case "array":
		items, _ := def["items"].(map[string]any)
		n, _ := asFloat(def["minItems"])
		arr := make([]any, 0, int(n))
		for i := 0; i < int(n); i++ {
			arr = append(arr, placeholder(items))
		}
		return arr
	case "number", "integer":
		if min, ok := asFloat(def["minimum"]); ok {
			return min
		}
		return 0
	case "boolean":
		return false
	default:
		return "placeholder"
	}
}
