package agent

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/polaris-ai/agent-platform/internal/llm"
	"github.com/polaris-ai/agent-platform/internal/tools"
	"github.com/polaris-ai/agent-platform/pkg/logger"
	"github.com/polaris-ai/agent-platform/pkg/metrics"
)

// Agent binds a model, a system prompt and a tool belt into a single
// network participant.
type Agent struct {
	Name        string
	Model       string
	System      string
	Tools       *tools.Registry
	MaxTokens   int
	Temperature float64
}

// Generate runs one model turn for this agent.
func (a *Agent) Generate(ctx context.Context, client llm.Client, history []llm.Message) (*llm.Turn, error) {
	req := &llm.Request{
		Model:       a.Model,
		System:      a.System,
		Messages:    history,
		MaxTokens:   a.MaxTokens,
		Temperature: a.Temperature,
	}
	if a.Tools != nil && client.SupportsTools() {
		req.Tools = a.Tools.Declarations()
	}

	start := time.Now()
	turn, err := client.Generate(ctx, req)
	if err != nil {
		metrics.RecordLLMTurn(client.Name(), a.Model, "error", time.Since(start).Seconds(), 0, 0)
		return nil, err
	}

	metrics.RecordLLMTurn(client.Name(), a.Model, "ok", time.Since(start).Seconds(), turn.TokensIn, turn.TokensOut)
	return turn, nil
}

// ExecuteTools runs every tool call in the turn and returns the results in
// call order. A failing tool produces an error result for the model to read;
// it never aborts the batch.
func (a *Agent) ExecuteTools(ctx context.Context, turn *llm.Turn, toolTimeout time.Duration, log *logger.Logger) []llm.ToolResult {
	calls := turn.ToolCalls()
	results := make([]llm.ToolResult, 0, len(calls))

	for _, call := range calls {
		res := a.executeOne(ctx, call, toolTimeout, log)
		results = append(results, llm.ToolResult{
			CallID:  call.ID,
			Name:    call.Name,
			Content: res.Text(),
		})
		metrics.RecordToolCall(call.Name, res.OK)
	}

	return results
}

func (a *Agent) executeOne(ctx context.Context, call llm.ToolCall, timeout time.Duration, log *logger.Logger) tools.Result {
	tool, ok := a.Tools.Get(call.Name)
	if !ok {
		log.Warn("model requested unknown tool", zap.String("tool", call.Name))
		return tools.Errorf(tools.ErrNotFound, "unknown tool %q", call.Name)
	}

	if err := tool.Validate(call.Args); err != nil {
		log.Debug("tool arguments rejected",
			zap.String("tool", call.Name),
			zap.Error(err))
		return tools.Errorf(tools.ErrValidation, "%v", err)
	}

	toolCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		toolCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	res := tool.Execute(toolCtx, call.Args)
	log.Debug("tool executed",
		zap.String("tool", call.Name),
		zap.Bool("ok", res.OK),
		zap.Duration("duration", time.Since(start)))
	return res
}
