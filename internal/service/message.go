package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/polaris-ai/agent-platform/internal/model"
	"github.com/polaris-ai/agent-platform/internal/store"
	"github.com/polaris-ai/agent-platform/pkg/logger"
)

// EventPublisher emits agent events. Satisfied by nats.StreamManager.
type EventPublisher interface {
	PublishMessageSent(ctx context.Context, event *model.MessageSentEvent) (uint64, error)
	PublishCancel(event *model.MessageCancelEvent) error
}

// MessageService handles message send and cancel operations.
type MessageService struct {
	store       store.Store
	streams     EventPublisher
	internalKey string
	logger      *logger.Logger
}

// NewMessageService creates a new message service.
func NewMessageService(s store.Store, streams EventPublisher, internalKey string, log *logger.Logger) *MessageService {
	return &MessageService{
		store:       s,
		streams:     streams,
		internalKey: internalKey,
		logger:      log,
	}
}

// Send records a user message, creates the assistant placeholder and emits
// the event the worker pool picks up. Any assistant message still processing
// in the conversation is cancelled first so at most one run is live per
// conversation.
func (s *MessageService) Send(ctx context.Context, projectID, conversationID, text string) (*model.SendMessageResponse, error) {
	if err := s.cancelInFlight(ctx, conversationID); err != nil {
		return nil, err
	}

	_, err := s.store.CreateMessage(ctx, s.internalKey, &model.Message{
		ConversationID: conversationID,
		ProjectID:      projectID,
		Role:           model.RoleUser,
		Content:        text,
	})
	if err != nil {
		return nil, fmt.Errorf("creating user message: %w", err)
	}

	placeholderID, err := s.store.CreateMessage(ctx, s.internalKey, &model.Message{
		ConversationID: conversationID,
		ProjectID:      projectID,
		Role:           model.RoleAssistant,
		Status:         model.StatusProcessing,
	})
	if err != nil {
		return nil, fmt.Errorf("creating placeholder: %w", err)
	}

	_, err = s.streams.PublishMessageSent(ctx, &model.MessageSentEvent{
		MessageID:      placeholderID,
		ConversationID: conversationID,
		ProjectID:      projectID,
		Text:           text,
	})
	if err != nil {
		// Without the event the placeholder would spin forever; fail it
		// here so the client sees a terminal state.
		if updateErr := s.store.UpdateMessageStatus(ctx, s.internalKey, placeholderID, model.StatusCancelled); updateErr != nil {
			s.logger.Error("failed to void orphaned placeholder",
				zap.String("message_id", placeholderID),
				zap.Error(updateErr))
		}
		return nil, fmt.Errorf("publishing message event: %w", err)
	}

	return &model.SendMessageResponse{MessageID: placeholderID}, nil
}

// Cancel stops the run behind a processing message. The status flip happens
// here, on the caller's side; the broadcast only tells the owning worker to
// stop. Cancelling a message that already finished is a no-op.
func (s *MessageService) Cancel(ctx context.Context, projectID, messageID string) error {
	msg, err := s.store.GetMessage(ctx, s.internalKey, messageID)
	if err != nil {
		return err
	}
	if msg.ProjectID != projectID {
		return store.ErrNotFound
	}
	if msg.Status != model.StatusProcessing {
		return nil
	}

	if err := s.store.UpdateMessageStatus(ctx, s.internalKey, messageID, model.StatusCancelled); err != nil {
		return fmt.Errorf("cancelling message: %w", err)
	}

	if err := s.streams.PublishCancel(&model.MessageCancelEvent{MessageID: messageID}); err != nil {
		s.logger.Warn("cancel broadcast failed, run will finish on its own",
			zap.String("message_id", messageID),
			zap.Error(err))
	}
	return nil
}

func (s *MessageService) cancelInFlight(ctx context.Context, conversationID string) error {
	processing, err := s.store.GetProcessingMessages(ctx, s.internalKey, conversationID)
	if err != nil {
		return fmt.Errorf("listing processing messages: %w", err)
	}

	for _, msg := range processing {
		if err := s.store.UpdateMessageStatus(ctx, s.internalKey, msg.ID, model.StatusCancelled); err != nil {
			return fmt.Errorf("cancelling prior message %s: %w", msg.ID, err)
		}
		if err := s.streams.PublishCancel(&model.MessageCancelEvent{MessageID: msg.ID}); err != nil {
			s.logger.Warn("cancel broadcast failed",
				zap.String("message_id", msg.ID),
				zap.Error(err))
		}
	}
	return nil
}
