// Package llm provides LLM client interfaces and implementations. Providers
// return turns as ordered sequences of typed segments so the rest of the
// system never depends on which model produced them.
package llm

import (
	"context"

	"google.golang.org/genai"
)

// SegmentType discriminates the typed output segments of a turn.
type SegmentType string

const (
	SegmentText     SegmentType = "text"
	SegmentToolCall SegmentType = "tool_call"
)

// Segment is one typed output element of a turn.
type Segment struct {
	Type     SegmentType
	Text     string
	ToolCall *ToolCall
}

// ToolCall is a structured tool invocation requested by the model.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// ToolResult is the textual outcome of a tool call, fed back to the model.
type ToolResult struct {
	CallID  string
	Name    string
	Content string
}

// Message is a provider-neutral history entry.
type Message struct {
	Role        string // "user" or "assistant"
	Text        string
	ToolCalls   []ToolCall   // assistant messages only
	ToolResults []ToolResult // results answering the preceding assistant turn
}

// Request is a single generation request.
type Request struct {
	Model       string
	System      string
	Messages    []Message
	Tools       []*genai.FunctionDeclaration
	MaxTokens   int
	Temperature float64
}

// Turn is one request/response cycle with a provider.
type Turn struct {
	Segments  []Segment
	Model     string
	TokensIn  int
	TokensOut int
}

// HasText reports whether the turn contains at least one text segment.
func (t *Turn) HasText() bool {
	for _, s := range t.Segments {
		if s.Type == SegmentText && s.Text != "" {
			return true
		}
	}
	return false
}

// HasToolCalls reports whether the turn contains any tool-call segment.
func (t *Turn) HasToolCalls() bool {
	for _, s := range t.Segments {
		if s.Type == SegmentToolCall {
			return true
		}
	}
	return false
}

// Text joins the turn's text segments in order.
func (t *Turn) Text() string {
	var out string
	for _, s := range t.Segments {
		if s.Type == SegmentText {
			out += s.Text
		}
	}
	return out
}

// ToolCalls returns the turn's tool-call segments in order.
func (t *Turn) ToolCalls() []ToolCall {
	var calls []ToolCall
	for _, s := range t.Segments {
		if s.Type == SegmentToolCall && s.ToolCall != nil {
			calls = append(calls, *s.ToolCall)
		}
	}
	return calls
}

// Client is the interface for LLM providers.
type Client interface {
	// Generate sends one request and returns the resulting turn.
	Generate(ctx context.Context, req *Request) (*Turn, error)

	// Name returns the provider name.
	Name() string

	// SupportsTools reports whether the provider can bind tools.
	SupportsTools() bool
}

// Provider is the type of LLM provider.
type Provider string

const (
	ProviderGemini    Provider = "gemini"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

// NewClient creates a new LLM client based on provider.
func NewClient(ctx context.Context, provider Provider, apiKey string) (Client, error) {
	switch provider {
	case ProviderOpenAI:
		return NewOpenAIClient(apiKey)
	case ProviderAnthropic:
		return NewAnthropicClient(apiKey)
	default:
		return NewGeminiClient(ctx, apiKey)
	}
}
