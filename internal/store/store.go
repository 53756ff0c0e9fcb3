// Package store provides the persistent data store behind the trusted
// internal data API. Every call carries the shared-secret internal key;
// a missing or mismatching key is a configuration error, never retried.
package store

import (
	"context"
	"errors"

	"github.com/polaris-ai/agent-platform/internal/model"
)

var (
	// ErrInvalidInternalKey is returned when the shared secret is absent or
	// does not match. Callers must treat this as fatal.
	ErrInvalidInternalKey = errors.New("invalid internal key")

	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateName is returned when a sibling of the same kind already
	// carries the requested name. The store is left unchanged.
	ErrDuplicateName = errors.New("name already exists")
)

// Store is the trusted internal data API consumed by the orchestrator,
// the tool belt and the gateway.
type Store interface {
	// Conversations
	GetConversation(ctx context.Context, key, conversationID string) (*model.Conversation, error)
	CreateConversation(ctx context.Context, key, projectID, title string) (*model.Conversation, error)
	UpdateConversationTitle(ctx context.Context, key, conversationID, title string) error

	// Messages
	CreateMessage(ctx context.Context, key string, msg *model.Message) (string, error)
	GetRecentMessages(ctx context.Context, key, conversationID string, limit int) ([]model.Message, error)
	GetProcessingMessages(ctx context.Context, key, conversationID string) ([]model.Message, error)
	GetMessage(ctx context.Context, key, messageID string) (*model.Message, error)
	// UpdateMessageContent overwrites content and marks the message completed.
	UpdateMessageContent(ctx context.Context, key, messageID, content string) error
	UpdateMessageStatus(ctx context.Context, key, messageID string, status model.MessageStatus) error

	// File tree
	GetFile(ctx context.Context, key, fileID string) (*model.Node, error)
	ListProjectFiles(ctx context.Context, key, projectID string) ([]model.Node, error)
	UpdateFileContent(ctx context.Context, key, fileID, content string) error
	CreateFiles(ctx context.Context, key, projectID string, parentID *string, entries []model.NewFileEntry) ([]model.CreateFileResult, error)
	CreateFolder(ctx context.Context, key, projectID string, parentID *string, name string) (string, error)
	RenameFile(ctx context.Context, key, fileID, newName string) error
	DeleteFiles(ctx context.Context, key string, fileIDs []string) error
	FindSibling(ctx context.Context, key, projectID string, parentID *string, name string, kind model.NodeKind) (*model.Node, error)

	Close() error
}
