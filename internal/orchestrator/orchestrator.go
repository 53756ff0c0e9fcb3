// Package orchestrator runs the durable message-processing pipeline: load
// context, maybe title the conversation, drive the agent network, finalize
// the assistant message. Individual steps retry with backoff; a run that
// still fails compensates by writing an apology into the placeholder so no
// message is left spinning forever.
package orchestrator

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/polaris-ai/agent-platform/internal/agent"
	"github.com/polaris-ai/agent-platform/internal/fetch"
	"github.com/polaris-ai/agent-platform/internal/llm"
	"github.com/polaris-ai/agent-platform/internal/model"
	"github.com/polaris-ai/agent-platform/internal/prompt"
	"github.com/polaris-ai/agent-platform/internal/store"
	"github.com/polaris-ai/agent-platform/internal/tools"
	"github.com/polaris-ai/agent-platform/pkg/logger"
	"github.com/polaris-ai/agent-platform/pkg/metrics"
)

const (
	// FallbackMessage is written when the agent stops without a final answer.
	FallbackMessage = "I processed your request. Let me know if you need anything else!"

	// ApologyMessage is the compensating content written when a run fails.
	ApologyMessage = "My apologies, I encountered an error while processing your request. Let me know if you need anything else!"

	maxTitleLength = 100
)

// Run outcomes, used for logging and metrics.
const (
	OutcomeCompleted = "completed"
	OutcomeCancelled = "cancelled"
	OutcomeFailed    = "failed"
)

// Options configures orchestrator behavior.
type Options struct {
	InternalKey   string
	AgentModel    string
	TitleModel    string
	HistoryLimit  int
	MaxIterations int
	SettleDelay   time.Duration
	TurnTimeout   time.Duration
	ToolTimeout   time.Duration
	StepRetries   uint64
}

// Orchestrator processes message-sent events end to end.
type Orchestrator struct {
	store       store.Store
	agentClient llm.Client
	titleClient llm.Client
	fetcher     fetch.Fetcher
	cancels     *CancelRegistry
	opts        Options
	log         *logger.Logger
}

// New creates an orchestrator. The title client may equal the agent client;
// it only ever runs text-only turns.
func New(s store.Store, agentClient, titleClient llm.Client, fetcher fetch.Fetcher, opts Options, log *logger.Logger) *Orchestrator {
	if fetcher == nil {
		fetcher = fetch.NewHTTPFetcher()
	}
	return &Orchestrator{
		store:       s,
		agentClient: agentClient,
		titleClient: titleClient,
		fetcher:     fetcher,
		cancels:     NewCancelRegistry(),
		opts:        opts,
		log:         log,
	}
}

// Cancels exposes the registry so the cancel subscription can reach runs
// owned by this worker.
func (o *Orchestrator) Cancels() *CancelRegistry {
	return o.cancels
}

// ProcessMessage runs the full pipeline for one message-sent event. It
// returns an error only when the event should be redelivered; terminal
// failures are absorbed by the compensating apology write.
func (o *Orchestrator) ProcessMessage(ctx context.Context, event *model.MessageSentEvent) error {
	start := time.Now()
	log := o.log.WithRun(event.MessageID, event.ConversationID, event.ProjectID)
	log.Info("run started")

	o.cancels.Register(event.MessageID)
	defer o.cancels.Unregister(event.MessageID)

	// Give the write that created the placeholder a moment to become
	// visible to readers before the first load.
	if o.opts.SettleDelay > 0 {
		select {
		case <-time.After(o.opts.SettleDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	rc, err := o.loadContext(ctx, event)
	if err != nil {
		if errors.Is(err, store.ErrInvalidInternalKey) {
			// Misconfiguration. Compensation would fail for the same
			// reason, so surface it and let the event redeliver.
			log.Error("internal key rejected, aborting run", zap.Error(err))
			return err
		}
		return o.fail(ctx, event, log, start, err)
	}
	log.Info("context loaded", zap.Int("history", len(rc.history)))

	if rc.placeholder.Status == model.StatusCancelled {
		log.Info("placeholder already cancelled, skipping run")
		o.finishCancelled(log, start)
		return nil
	}

	if rc.conversation.IsUntitled() {
		o.generateTitle(ctx, event, log)
	}

	if o.cancels.Cancelled(event.MessageID) {
		o.finishCancelled(log, start)
		return nil
	}

	result, err := o.runAgent(ctx, event, rc)
	if err != nil {
		return o.fail(ctx, event, log, start, err)
	}

	if result.Interrupted || o.cancels.Cancelled(event.MessageID) {
		// The canceller already set the message status; writing content
		// here would resurrect a message the user asked to stop.
		o.finishCancelled(log, start)
		return nil
	}

	text := result.FinalText
	if text == "" {
		text = FallbackMessage
	}

	err = o.step(ctx, func() error {
		return o.store.UpdateMessageContent(ctx, o.opts.InternalKey, event.MessageID, text)
	})
	if err != nil {
		return o.fail(ctx, event, log, start, err)
	}

	metrics.RecordRun(OutcomeCompleted, time.Since(start).Seconds())
	log.Info("run finalized",
		zap.Int("turns", result.Turns),
		zap.Bool("hit_ceiling", result.HitCeiling),
		zap.Duration("duration", time.Since(start)))
	return nil
}

// runContext is the loaded state a run operates on.
type runContext struct {
	conversation *model.Conversation
	placeholder  *model.Message
	history      []model.Message
}

func (o *Orchestrator) loadContext(ctx context.Context, event *model.MessageSentEvent) (*runContext, error) {
	rc := &runContext{}
	err := o.step(ctx, func() error {
		conv, err := o.store.GetConversation(ctx, o.opts.InternalKey, event.ConversationID)
		if err != nil {
			return err
		}
		placeholder, err := o.store.GetMessage(ctx, o.opts.InternalKey, event.MessageID)
		if err != nil {
			return err
		}
		history, err := o.store.GetRecentMessages(ctx, o.opts.InternalKey, event.ConversationID, o.opts.HistoryLimit)
		if err != nil {
			return err
		}
		rc.conversation = conv
		rc.placeholder = placeholder
		rc.history = history
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rc, nil
}

// generateTitle names an untitled conversation from its first message. Titles
// are cosmetic; every failure is swallowed so the run proceeds.
func (o *Orchestrator) generateTitle(ctx context.Context, event *model.MessageSentEvent, log *logger.Logger) {
	turnCtx := ctx
	if o.opts.TurnTimeout > 0 {
		var cancel context.CancelFunc
		turnCtx, cancel = context.WithTimeout(ctx, o.opts.TurnTimeout)
		defer cancel()
	}

	turn, err := o.titleClient.Generate(turnCtx, &llm.Request{
		Model:  o.opts.TitleModel,
		System: prompt.TitleGenerator(),
		Messages: []llm.Message{
			{Role: "user", Text: prompt.TitleRequest(event.Text)},
		},
	})
	if err != nil {
		log.Warn("title generation failed", zap.Error(err))
		return
	}

	title := cleanTitle(turn.Text())
	if title == "" {
		log.Warn("title model returned nothing usable")
		return
	}

	if err := o.store.UpdateConversationTitle(ctx, o.opts.InternalKey, event.ConversationID, title); err != nil {
		log.Warn("title update failed", zap.Error(err))
		return
	}
	log.Info("conversation titled", zap.String("title", title))
}

func (o *Orchestrator) runAgent(ctx context.Context, event *model.MessageSentEvent, rc *runContext) (*agent.RunResult, error) {
	registry := tools.NewRegistry()
	for _, t := range []tools.Tool{
		tools.NewListFilesTool(o.store, o.opts.InternalKey, event.ProjectID),
		tools.NewReadFilesTool(o.store, o.opts.InternalKey),
		tools.NewCreateFilesTool(o.store, o.opts.InternalKey, event.ProjectID),
		tools.NewCreateFolderTool(o.store, o.opts.InternalKey, event.ProjectID),
		tools.NewUpdateFileTool(o.store, o.opts.InternalKey),
		tools.NewRenameFileTool(o.store, o.opts.InternalKey),
		tools.NewDeleteFilesTool(o.store, o.opts.InternalKey),
		tools.NewScrapeURLsTool(o.fetcher),
	} {
		if err := registry.Register(t); err != nil {
			return nil, err
		}
	}

	coder := &agent.Agent{
		Name:   "coding-agent",
		Model:  o.opts.AgentModel,
		System: prompt.CodingAgent(),
		Tools:  registry,
	}

	network := &agent.Network{
		Agent:         coder,
		Client:        o.agentClient,
		MaxIterations: o.opts.MaxIterations,
		TurnTimeout:   o.opts.TurnTimeout,
		ToolTimeout:   o.opts.ToolTimeout,
		Interrupted: func() bool {
			return o.cancels.Cancelled(event.MessageID)
		},
		Log: o.log.WithRun(event.MessageID, event.ConversationID, event.ProjectID),
	}

	transcript := prompt.Transcript(rc.history, event.MessageID, o.opts.HistoryLimit)
	return network.Run(ctx, prompt.UserTurn(transcript, event.Text))
}

// fail compensates a terminally failed run by overwriting the placeholder
// with an apology. The event is acknowledged either way; redelivering a run
// that already exhausted its retries would only fail again.
func (o *Orchestrator) fail(ctx context.Context, event *model.MessageSentEvent, log *logger.Logger, start time.Time, cause error) error {
	log.Error("run failed, writing apology", zap.Error(cause))

	err := o.step(ctx, func() error {
		return o.store.UpdateMessageContent(ctx, o.opts.InternalKey, event.MessageID, ApologyMessage)
	})
	if err != nil {
		log.Error("compensation write failed", zap.Error(err))
	}

	metrics.RecordRun(OutcomeFailed, time.Since(start).Seconds())
	return nil
}

func (o *Orchestrator) finishCancelled(log *logger.Logger, start time.Time) {
	metrics.CancellationsTotal.Inc()
	metrics.RecordRun(OutcomeCancelled, time.Since(start).Seconds())
	log.Info("run cancelled")
}

// step retries a store operation with exponential backoff. Invalid-key and
// not-found errors are preconditions, not transients, and never retry.
func (o *Orchestrator) step(ctx context.Context, fn func() error) error {
	op := func() error {
		err := fn()
		if err == nil {
			return nil
		}
		if errors.Is(err, store.ErrInvalidInternalKey) || errors.Is(err, store.ErrNotFound) {
			return backoff.Permanent(err)
		}
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxElapsedTime = 0
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, o.opts.StepRetries), ctx))
}

func cleanTitle(raw string) string {
	title := strings.TrimSpace(raw)
	title = strings.Trim(title, "\"'")
	title = strings.TrimSpace(title)
	if idx := strings.IndexByte(title, '\n'); idx >= 0 {
		title = strings.TrimSpace(title[:idx])
	}
	if len(title) > maxTitleLength {
		title = strings.TrimSpace(title[:maxTitleLength])
	}
	return title
}
