package agent

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/polaris-ai/agent-platform/internal/llm"
	"github.com/polaris-ai/agent-platform/pkg/logger"
	"github.com/polaris-ai/agent-platform/pkg/metrics"
)

// DefaultMaxIterations caps how many model turns a network run may take.
const DefaultMaxIterations = 20

// State is the router's decision after inspecting a turn.
type State int

const (
	// StateRunning means the loop should hand tool results back and continue.
	StateRunning State = iota
	// StateStopped means the turn is a final answer and the loop is done.
	StateStopped
)

// NextState applies the routing rule: a turn that produced text and requested
// no tools is final; anything else keeps the loop running. A turn that asks
// for tools keeps running even when it also contains text.
func NextState(turn *llm.Turn) State {
	if turn.HasText() && !turn.HasToolCalls() {
		return StateStopped
	}
	return StateRunning
}

// RunResult is the outcome of a network run.
type RunResult struct {
	// FinalText is the text of the most recent turn, empty when that turn
	// carried none or the run was interrupted before its first turn.
	FinalText string
	// Turns is how many model turns were taken.
	Turns int
	// HitCeiling reports that the loop stopped at the iteration cap rather
	// than on a final answer.
	HitCeiling bool
	// Interrupted reports that a cancellation signal stopped the loop.
	Interrupted bool
}

// Network drives an agent through a bounded generate/execute loop until the
// model produces a final answer.
type Network struct {
	Agent         *Agent
	Client        llm.Client
	MaxIterations int
	TurnTimeout   time.Duration
	ToolTimeout   time.Duration

	// Interrupted is polled between turns. When it reports true the loop
	// stops at the next boundary; an in-flight model call is allowed to
	// finish. Nil means never interrupted.
	Interrupted func() bool

	Log *logger.Logger
}

// Run executes the loop starting from the given user input.
func (n *Network) Run(ctx context.Context, input string) (*RunResult, error) {
	maxIter := n.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}
	log := n.Log
	if log == nil {
		log = logger.NewNop()
	}

	history := []llm.Message{{Role: "user", Text: input}}
	result := &RunResult{}

	for i := 0; i < maxIter; i++ {
		if n.interrupted() {
			result.Interrupted = true
			return result, nil
		}

		turn, err := n.generate(ctx, history)
		if err != nil {
			return nil, fmt.Errorf("agent turn %d: %w", i+1, err)
		}
		result.Turns++

		history = append(history, llm.Message{
			Role:      "assistant",
			Text:      turn.Text(),
			ToolCalls: turn.ToolCalls(),
		})
		// Whatever text the most recent turn carried is the answer so far;
		// the ceiling path finalizes with it rather than discarding it.
		result.FinalText = turn.Text()

		if NextState(turn) == StateStopped {
			metrics.AgentTurns.Observe(float64(result.Turns))
			log.Info("agent network stopped",
				zap.Int("turns", result.Turns))
			return result, nil
		}

		if n.interrupted() {
			result.Interrupted = true
			return result, nil
		}

		toolResults := n.Agent.ExecuteTools(ctx, turn, n.ToolTimeout, log)
		history = append(history, llm.Message{
			Role:        "user",
			ToolResults: toolResults,
		})
	}

	// Reaching the cap is a stop condition, not an error. The orchestrator
	// substitutes a fallback message when no final text was produced.
	result.HitCeiling = true
	metrics.AgentTurns.Observe(float64(result.Turns))
	log.Warn("agent network hit iteration ceiling",
		zap.Int("turns", result.Turns))
	return result, nil
}

func (n *Network) generate(ctx context.Context, history []llm.Message) (*llm.Turn, error) {
	turnCtx := ctx
	if n.TurnTimeout > 0 {
		var cancel context.CancelFunc
		turnCtx, cancel = context.WithTimeout(ctx, n.TurnTimeout)
		defer cancel()
	}
	return n.Agent.Generate(turnCtx, n.Client, history)
}

func (n *Network) interrupted() bool {
	return n.Interrupted != nil && n.Interrupted()
}
