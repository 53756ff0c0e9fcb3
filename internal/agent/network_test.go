package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"google.golang.org/genai"

	"github.com/polaris-ai/agent-platform/internal/llm"
	"github.com/polaris-ai/agent-platform/internal/tools"
	"github.com/polaris-ai/agent-platform/pkg/logger"
)

func TestMain(m *testing.M) {
	// go.opencensus.io starts a background worker in its package init
	// (pulled in transitively via google.golang.org/genai); it is not
	// stoppable from tests, so exclude it from leak detection.
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

// scriptedClient replays a fixed sequence of turns.
type scriptedClient struct {
	turns []*llm.Turn
	errs  []error
	calls int
	seen  [][]llm.Message
}

func (c *scriptedClient) Generate(ctx context.Context, req *llm.Request) (*llm.Turn, error) {
	i := c.calls
	c.calls++
	c.seen = append(c.seen, req.Messages)
	if i < len(c.errs) && c.errs[i] != nil {
		return nil, c.errs[i]
	}
	if i >= len(c.turns) {
		return textTurn("ran out of script"), nil
	}
	return c.turns[i], nil
}

func (c *scriptedClient) Name() string        { return "scripted" }
func (c *scriptedClient) SupportsTools() bool { return true }

func textTurn(text string) *llm.Turn {
	return &llm.Turn{Segments: []llm.Segment{{Type: llm.SegmentText, Text: text}}}
}

func toolTurn(name string, args map[string]any) *llm.Turn {
	return &llm.Turn{Segments: []llm.Segment{
		{Type: llm.SegmentToolCall, ToolCall: &llm.ToolCall{ID: "call-1", Name: name, Args: args}},
	}}
}

// countingTool records how many times it ran.
type countingTool struct {
	executed int
}

func (c *countingTool) Name() string        { return "counter" }
func (c *countingTool) Description() string { return "counts invocations" }

func (c *countingTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        c.Name(),
		Description: c.Description(),
		Parameters: &genai.Schema{
			Type:       genai.TypeObject,
			Properties: map[string]*genai.Schema{},
		},
	}
}

func (c *countingTool) Validate(args map[string]any) error { return nil }

func (c *countingTool) Execute(ctx context.Context, args map[string]any) tools.Result {
	c.executed++
	return tools.Ok("counted")
}

func TestNextState(t *testing.T) {
	tests := []struct {
		name string
		turn *llm.Turn
		want State
	}{
		{"text only stops", textTurn("done"), StateStopped},
		{"tool call keeps running", toolTurn("counter", nil), StateRunning},
		{
			"text alongside tool call keeps running",
			&llm.Turn{Segments: []llm.Segment{
				{Type: llm.SegmentText, Text: "working on it"},
				{Type: llm.SegmentToolCall, ToolCall: &llm.ToolCall{Name: "counter"}},
			}},
			StateRunning,
		},
		{"empty turn keeps running", &llm.Turn{}, StateRunning},
		{
			"empty text segment keeps running",
			&llm.Turn{Segments: []llm.Segment{{Type: llm.SegmentText, Text: ""}}},
			StateRunning,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextState(tt.turn))
		})
	}
}

func TestNetworkStopsOnFinalAnswer(t *testing.T) {
	client := &scriptedClient{turns: []*llm.Turn{textTurn("all done")}}
	n := &Network{
		Agent:  &Agent{Name: "test", Model: "m", Tools: tools.NewRegistry()},
		Client: client,
		Log:    logger.NewNop(),
	}

	result, err := n.Run(context.Background(), "do something")
	require.NoError(t, err)
	assert.Equal(t, "all done", result.FinalText)
	assert.Equal(t, 1, result.Turns)
	assert.False(t, result.HitCeiling)
}

func TestNetworkExecutesToolsThenStops(t *testing.T) {
	counter := &countingTool{}
	registry := tools.NewRegistry()
	require.NoError(t, registry.Register(counter))

	client := &scriptedClient{turns: []*llm.Turn{
		toolTurn("counter", map[string]any{}),
		textTurn("finished"),
	}}
	n := &Network{
		Agent:  &Agent{Name: "test", Model: "m", Tools: registry},
		Client: client,
		Log:    logger.NewNop(),
	}

	result, err := n.Run(context.Background(), "go")
	require.NoError(t, err)
	assert.Equal(t, "finished", result.FinalText)
	assert.Equal(t, 2, result.Turns)
	assert.Equal(t, 1, counter.executed)

	// The second request must carry the tool result back to the model.
	require.Len(t, client.seen, 2)
	second := client.seen[1]
	require.Len(t, second, 3)
	require.Len(t, second[2].ToolResults, 1)
	assert.Equal(t, "counted", second[2].ToolResults[0].Content)
}

func TestNetworkUnknownToolBecomesSoftError(t *testing.T) {
	client := &scriptedClient{turns: []*llm.Turn{
		toolTurn("no_such_tool", map[string]any{}),
		textTurn("recovered"),
	}}
	n := &Network{
		Agent:  &Agent{Name: "test", Model: "m", Tools: tools.NewRegistry()},
		Client: client,
		Log:    logger.NewNop(),
	}

	result, err := n.Run(context.Background(), "go")
	require.NoError(t, err)
	assert.Equal(t, "recovered", result.FinalText)

	second := client.seen[1]
	require.Len(t, second[2].ToolResults, 1)
	assert.Contains(t, second[2].ToolResults[0].Content, "Error:")
}

func TestNetworkHitsCeilingWithoutError(t *testing.T) {
	counter := &countingTool{}
	registry := tools.NewRegistry()
	require.NoError(t, registry.Register(counter))

	// Every turn requests a tool; the loop must stop at the cap.
	var turns []*llm.Turn
	for i := 0; i < 5; i++ {
		turns = append(turns, toolTurn("counter", map[string]any{}))
	}
	client := &scriptedClient{turns: turns}
	n := &Network{
		Agent:         &Agent{Name: "test", Model: "m", Tools: registry},
		Client:        client,
		MaxIterations: 3,
		Log:           logger.NewNop(),
	}

	result, err := n.Run(context.Background(), "go")
	require.NoError(t, err)
	assert.True(t, result.HitCeiling)
	assert.Equal(t, 3, result.Turns)
	assert.Empty(t, result.FinalText)
	assert.Equal(t, 3, counter.executed)
}

func TestNetworkCeilingKeepsLastTurnText(t *testing.T) {
	counter := &countingTool{}
	registry := tools.NewRegistry()
	require.NoError(t, registry.Register(counter))

	mixed := &llm.Turn{Segments: []llm.Segment{
		{Type: llm.SegmentText, Text: "still working"},
		{Type: llm.SegmentToolCall, ToolCall: &llm.ToolCall{ID: "call-1", Name: "counter", Args: map[string]any{}}},
	}}
	client := &scriptedClient{turns: []*llm.Turn{mixed, mixed}}
	n := &Network{
		Agent:         &Agent{Name: "test", Model: "m", Tools: registry},
		Client:        client,
		MaxIterations: 2,
		Log:           logger.NewNop(),
	}

	result, err := n.Run(context.Background(), "go")
	require.NoError(t, err)
	assert.True(t, result.HitCeiling)
	assert.Equal(t, "still working", result.FinalText)
}

func TestNetworkInterruptObservedBetweenTurns(t *testing.T) {
	counter := &countingTool{}
	registry := tools.NewRegistry()
	require.NoError(t, registry.Register(counter))

	client := &scriptedClient{turns: []*llm.Turn{
		toolTurn("counter", map[string]any{}),
		textTurn("should never be reached"),
	}}
	n := &Network{
		Agent:  &Agent{Name: "test", Model: "m", Tools: registry},
		Client: client,
		// Flagged once the first generate has happened: the in-flight
		// turn finishes, the boundary check stops the loop before any
		// tool runs.
		Interrupted: func() bool {
			return client.calls >= 1
		},
		Log: logger.NewNop(),
	}

	result, err := n.Run(context.Background(), "go")
	require.NoError(t, err)
	assert.True(t, result.Interrupted)
	assert.Equal(t, 1, result.Turns)
	assert.Zero(t, counter.executed)
}

func TestNetworkInterruptedBeforeFirstTurn(t *testing.T) {
	client := &scriptedClient{turns: []*llm.Turn{textTurn("never")}}
	n := &Network{
		Agent:       &Agent{Name: "test", Model: "m", Tools: tools.NewRegistry()},
		Client:      client,
		Interrupted: func() bool { return true },
		Log:         logger.NewNop(),
	}

	result, err := n.Run(context.Background(), "go")
	require.NoError(t, err)
	assert.True(t, result.Interrupted)
	assert.Zero(t, result.Turns)
	assert.Zero(t, client.calls)
}

func TestNetworkPropagatesGenerateError(t *testing.T) {
	client := &scriptedClient{errs: []error{errors.New("provider down")}}
	n := &Network{
		Agent:  &Agent{Name: "test", Model: "m", Tools: tools.NewRegistry()},
		Client: client,
		Log:    logger.NewNop(),
	}

	_, err := n.Run(context.Background(), "go")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider down")
}
