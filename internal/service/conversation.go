// Package service implements the gateway's business logic between the HTTP
// handlers and the data store.
package service

import (
	"context"
	"fmt"

	"github.com/polaris-ai/agent-platform/internal/model"
	"github.com/polaris-ai/agent-platform/internal/store"
	"github.com/polaris-ai/agent-platform/pkg/logger"
)

// ConversationService handles conversation operations.
type ConversationService struct {
	store       store.Store
	internalKey string
	logger      *logger.Logger
}

// NewConversationService creates a new conversation service.
func NewConversationService(s store.Store, internalKey string, log *logger.Logger) *ConversationService {
	return &ConversationService{
		store:       s,
		internalKey: internalKey,
		logger:      log,
	}
}

// Create starts a new conversation in a project. The sentinel title marks it
// for automatic naming on its first message.
func (s *ConversationService) Create(ctx context.Context, projectID string) (*model.Conversation, error) {
	conv, err := s.store.CreateConversation(ctx, s.internalKey, projectID, model.DefaultConversationTitle)
	if err != nil {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}
	return conv, nil
}

// Get retrieves a conversation, verifying project ownership.
func (s *ConversationService) Get(ctx context.Context, projectID, conversationID string) (*model.Conversation, error) {
	conv, err := s.store.GetConversation(ctx, s.internalKey, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.ProjectID != projectID {
		return nil, store.ErrNotFound
	}
	return conv, nil
}

// Messages returns the most recent messages of a conversation, oldest first.
func (s *ConversationService) Messages(ctx context.Context, projectID, conversationID string, limit int) ([]model.Message, error) {
	if _, err := s.Get(ctx, projectID, conversationID); err != nil {
		return nil, err
	}
	return s.store.GetRecentMessages(ctx, s.internalKey, conversationID, limit)
}
