package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/polaris-ai/agent-platform/internal/model"
	"github.com/polaris-ai/agent-platform/pkg/logger"
)

const (
	// StreamName is the name of the agent events stream.
	StreamName = "AGENT"

	// SubjectPrefix is the prefix for all agent subjects.
	SubjectPrefix = "agent"

	// SubjectMessageSent carries message-sent events for the worker.
	SubjectMessageSent = "agent.message.sent"

	// SubjectMessageCancel carries cancellation signals. Cancels are
	// delivered over core NATS so every worker sees them immediately;
	// a cancel for a message no worker owns is simply dropped.
	SubjectMessageCancel = "agent.message.cancel"

	// ConsumerName is the durable work-queue consumer for the worker pool.
	ConsumerName = "agent-workers"
)

// StreamManager handles JetStream stream operations for agent events.
type StreamManager struct {
	client *Client
	logger *logger.Logger
}

// NewStreamManager creates a new stream manager.
func NewStreamManager(client *Client, log *logger.Logger) *StreamManager {
	return &StreamManager{client: client, logger: log}
}

// EnsureStream ensures the agent stream exists with proper configuration.
// Work-queue retention means each message-sent event is handed to exactly
// one worker and removed once acknowledged.
func (m *StreamManager) EnsureStream(ctx context.Context) error {
	js := m.client.JetStream()

	_, err := js.Stream(ctx, StreamName)
	if err == nil {
		return nil // Stream already exists
	}

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{fmt.Sprintf("%s.message.sent", SubjectPrefix)},
		Retention:   jetstream.WorkQueuePolicy,
		MaxAge:      24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Description: "Message-sent events awaiting agent processing",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// PublishMessageSent publishes a message-sent event for the worker pool.
func (m *StreamManager) PublishMessageSent(ctx context.Context, event *model.MessageSentEvent) (uint64, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal event: %w", err)
	}

	ack, err := m.client.JetStream().Publish(ctx, SubjectMessageSent, data,
		jetstream.WithMsgID(event.MessageID))
	if err != nil {
		return 0, fmt.Errorf("failed to publish event: %w", err)
	}

	return ack.Sequence, nil
}

// PublishCancel broadcasts a cancellation signal over core NATS.
func (m *StreamManager) PublishCancel(event *model.MessageCancelEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal cancel event: %w", err)
	}
	if err := m.client.Conn().Publish(SubjectMessageCancel, data); err != nil {
		return fmt.Errorf("failed to publish cancel: %w", err)
	}
	return nil
}

// MessageHandler processes one message-sent event. A returned error causes
// redelivery; nil acknowledges the event.
type MessageHandler func(ctx context.Context, event *model.MessageSentEvent) error

// ConsumeMessages creates the durable consumer and dispatches events to the
// handler until the context is cancelled.
func (m *StreamManager) ConsumeMessages(ctx context.Context, handler MessageHandler) error {
	js := m.client.JetStream()

	consumer, err := js.CreateOrUpdateConsumer(ctx, StreamName, jetstream.ConsumerConfig{
		Durable:       ConsumerName,
		FilterSubject: SubjectMessageSent,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       5 * time.Minute,
		MaxDeliver:    3,
		MaxAckPending: 8,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		var event model.MessageSentEvent
		if err := json.Unmarshal(msg.Data(), &event); err != nil {
			m.logger.Error("dropping malformed event", zap.Error(err))
			_ = msg.Term()
			return
		}

		if err := handler(ctx, &event); err != nil {
			m.logger.Error("event handling failed, will redeliver",
				zap.String("message_id", event.MessageID),
				zap.Error(err))
			_ = msg.Nak()
			return
		}

		_ = msg.Ack()
	})
	if err != nil {
		return fmt.Errorf("failed to start consumer: %w", err)
	}

	<-ctx.Done()
	cc.Stop()
	return nil
}

// CancelHandler receives the message id named by a cancellation signal.
type CancelHandler func(messageID string)

// SubscribeCancels subscribes to cancellation broadcasts. The returned
// subscription is owned by the caller.
func (m *StreamManager) SubscribeCancels(handler CancelHandler) (*nats.Subscription, error) {
	sub, err := m.client.Conn().Subscribe(SubjectMessageCancel, func(msg *nats.Msg) {
		var event model.MessageCancelEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			m.logger.Error("dropping malformed cancel", zap.Error(err))
			return
		}
		handler(event.MessageID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to cancels: %w", err)
	}
	return sub, nil
}
