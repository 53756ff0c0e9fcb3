package orchestrator

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polaris-ai/agent-platform/internal/llm"
	"github.com/polaris-ai/agent-platform/internal/model"
	"github.com/polaris-ai/agent-platform/internal/store"
	"github.com/polaris-ai/agent-platform/pkg/logger"
)

const testKey = "test-internal-key"

// fakeClient returns scripted turns and can run a hook before each turn.
type fakeClient struct {
	turns  []*llm.Turn
	err    error
	calls  int
	onCall func(i int)
}

func (c *fakeClient) Generate(ctx context.Context, req *llm.Request) (*llm.Turn, error) {
	i := c.calls
	c.calls++
	if c.onCall != nil {
		c.onCall(i)
	}
	if c.err != nil {
		return nil, c.err
	}
	if i >= len(c.turns) {
		return c.turns[len(c.turns)-1], nil
	}
	return c.turns[i], nil
}

func (c *fakeClient) Name() string        { return "fake" }
func (c *fakeClient) SupportsTools() bool { return true }

type nopFetcher struct{}

func (nopFetcher) Fetch(ctx context.Context, url string) (string, error) {
	return "", errors.New("fetch disabled in tests")
}

func textTurn(text string) *llm.Turn {
	return &llm.Turn{Segments: []llm.Segment{{Type: llm.SegmentText, Text: text}}}
}

func toolTurn(name string) *llm.Turn {
	return &llm.Turn{Segments: []llm.Segment{
		{Type: llm.SegmentToolCall, ToolCall: &llm.ToolCall{ID: "c1", Name: name, Args: map[string]any{}}},
	}}
}

func testOptions() Options {
	return Options{
		InternalKey:   testKey,
		AgentModel:    "test-model",
		TitleModel:    "test-title-model",
		HistoryLimit:  10,
		MaxIterations: 20,
		SettleDelay:   0,
		StepRetries:   1,
	}
}

type fixture struct {
	store *store.SQLiteStore
	event *model.MessageSentEvent
	conv  *model.Conversation
}

// newFixture seeds one conversation with a user message and a processing
// placeholder, mirroring what the gateway writes before the event fires.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"), testKey)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	conv, err := s.CreateConversation(ctx, testKey, "proj-1", "")
	require.NoError(t, err)

	_, err = s.CreateMessage(ctx, testKey, &model.Message{
		ConversationID: conv.ID,
		ProjectID:      "proj-1",
		Role:           model.RoleUser,
		Content:        "build a landing page",
	})
	require.NoError(t, err)

	placeholderID, err := s.CreateMessage(ctx, testKey, &model.Message{
		ConversationID: conv.ID,
		ProjectID:      "proj-1",
		Role:           model.RoleAssistant,
		Status:         model.StatusProcessing,
	})
	require.NoError(t, err)

	return &fixture{
		store: s,
		conv:  conv,
		event: &model.MessageSentEvent{
			MessageID:      placeholderID,
			ConversationID: conv.ID,
			ProjectID:      "proj-1",
			Text:           "build a landing page",
		},
	}
}

func TestRunCompletesAndTitlesConversation(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	agentClient := &fakeClient{turns: []*llm.Turn{textTurn("I created the page.")}}
	titleClient := &fakeClient{turns: []*llm.Turn{textTurn("Landing Page Build")}}

	orch := New(fx.store, agentClient, titleClient, nopFetcher{}, testOptions(), logger.NewNop())
	require.NoError(t, orch.ProcessMessage(ctx, fx.event))

	msg, err := fx.store.GetMessage(ctx, testKey, fx.event.MessageID)
	require.NoError(t, err)
	assert.Equal(t, "I created the page.", msg.Content)
	assert.Equal(t, model.StatusCompleted, msg.Status)

	conv, err := fx.store.GetConversation(ctx, testKey, fx.conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "Landing Page Build", conv.Title)
	assert.Equal(t, 1, titleClient.calls)
}

func TestRunSkipsTitleWhenAlreadyNamed(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	require.NoError(t, fx.store.UpdateConversationTitle(ctx, testKey, fx.conv.ID, "Existing Title"))

	agentClient := &fakeClient{turns: []*llm.Turn{textTurn("done")}}
	titleClient := &fakeClient{turns: []*llm.Turn{textTurn("should not be asked")}}

	orch := New(fx.store, agentClient, titleClient, nopFetcher{}, testOptions(), logger.NewNop())
	require.NoError(t, orch.ProcessMessage(ctx, fx.event))

	conv, err := fx.store.GetConversation(ctx, testKey, fx.conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "Existing Title", conv.Title)
	assert.Zero(t, titleClient.calls)
}

func TestRunTitleFailureIsSwallowed(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	agentClient := &fakeClient{turns: []*llm.Turn{textTurn("done anyway")}}
	titleClient := &fakeClient{err: errors.New("title model down")}

	orch := New(fx.store, agentClient, titleClient, nopFetcher{}, testOptions(), logger.NewNop())
	require.NoError(t, orch.ProcessMessage(ctx, fx.event))

	msg, err := fx.store.GetMessage(ctx, testKey, fx.event.MessageID)
	require.NoError(t, err)
	assert.Equal(t, "done anyway", msg.Content)
	assert.Equal(t, model.StatusCompleted, msg.Status)
}

func TestRunWritesFallbackOnCeiling(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	opts := testOptions()
	opts.MaxIterations = 2

	// The model never stops calling tools; the run ends at the ceiling
	// and the fallback text lands in the placeholder.
	agentClient := &fakeClient{turns: []*llm.Turn{toolTurn("list_files")}}
	titleClient := &fakeClient{turns: []*llm.Turn{textTurn("Title")}}

	orch := New(fx.store, agentClient, titleClient, nopFetcher{}, opts, logger.NewNop())
	require.NoError(t, orch.ProcessMessage(ctx, fx.event))

	msg, err := fx.store.GetMessage(ctx, testKey, fx.event.MessageID)
	require.NoError(t, err)
	assert.Equal(t, FallbackMessage, msg.Content)
	assert.Equal(t, model.StatusCompleted, msg.Status)
}

func TestRunWritesApologyOnFailure(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	agentClient := &fakeClient{err: errors.New("provider exploded")}
	titleClient := &fakeClient{turns: []*llm.Turn{textTurn("Title")}}

	orch := New(fx.store, agentClient, titleClient, nopFetcher{}, testOptions(), logger.NewNop())

	// The event is acknowledged; compensation replaces redelivery.
	require.NoError(t, orch.ProcessMessage(ctx, fx.event))

	msg, err := fx.store.GetMessage(ctx, testKey, fx.event.MessageID)
	require.NoError(t, err)
	assert.Equal(t, ApologyMessage, msg.Content)
	assert.Equal(t, model.StatusCompleted, msg.Status)
}

func TestRunSkipsAlreadyCancelledPlaceholder(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	require.NoError(t, fx.store.UpdateMessageStatus(ctx, testKey, fx.event.MessageID, model.StatusCancelled))

	agentClient := &fakeClient{turns: []*llm.Turn{textTurn("should not run")}}
	titleClient := &fakeClient{turns: []*llm.Turn{textTurn("Title")}}

	orch := New(fx.store, agentClient, titleClient, nopFetcher{}, testOptions(), logger.NewNop())
	require.NoError(t, orch.ProcessMessage(ctx, fx.event))

	msg, err := fx.store.GetMessage(ctx, testKey, fx.event.MessageID)
	require.NoError(t, err)
	assert.Empty(t, msg.Content)
	assert.Equal(t, model.StatusCancelled, msg.Status)
	assert.Zero(t, agentClient.calls)
}

func TestRunCancelledMidFlightLeavesMessageAlone(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	var orch *Orchestrator
	agentClient := &fakeClient{
		turns: []*llm.Turn{toolTurn("list_files"), textTurn("never written")},
		onCall: func(i int) {
			if i == 0 {
				// A cancel broadcast arrives while the first turn is in
				// flight; the canceller flips the status itself.
				orch.Cancels().Cancel(fx.event.MessageID)
				err := fx.store.UpdateMessageStatus(ctx, testKey, fx.event.MessageID, model.StatusCancelled)
				if err != nil {
					panic(err)
				}
			}
		},
	}
	titleClient := &fakeClient{turns: []*llm.Turn{textTurn("Title")}}

	orch = New(fx.store, agentClient, titleClient, nopFetcher{}, testOptions(), logger.NewNop())
	require.NoError(t, orch.ProcessMessage(ctx, fx.event))

	msg, err := fx.store.GetMessage(ctx, testKey, fx.event.MessageID)
	require.NoError(t, err)
	assert.Empty(t, msg.Content)
	assert.Equal(t, model.StatusCancelled, msg.Status)
	assert.Equal(t, 1, agentClient.calls)
}

func TestRunInvalidKeyIsSurfaced(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	opts := testOptions()
	opts.InternalKey = "wrong-key"

	agentClient := &fakeClient{turns: []*llm.Turn{textTurn("unreachable")}}
	orch := New(fx.store, agentClient, agentClient, nopFetcher{}, opts, logger.NewNop())

	err := orch.ProcessMessage(ctx, fx.event)
	assert.ErrorIs(t, err, store.ErrInvalidInternalKey)
}

func TestCancelRegistry(t *testing.T) {
	r := NewCancelRegistry()

	// A cancel for an unknown message is dropped.
	r.Cancel("unknown")
	assert.False(t, r.Cancelled("unknown"))

	r.Register("m1")
	assert.False(t, r.Cancelled("m1"))

	r.Cancel("m1")
	assert.True(t, r.Cancelled("m1"))

	r.Unregister("m1")
	assert.False(t, r.Cancelled("m1"))
}

func TestCleanTitle(t *testing.T) {
	assert.Equal(t, "Landing Page", cleanTitle("  \"Landing Page\"\n"))
	assert.Equal(t, "First Line", cleanTitle("First Line\nSecond Line"))
	assert.Empty(t, cleanTitle("   "))
}
