// Package model defines data structures for the agent platform.
package model

// Role represents the role of a message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// MessageStatus tracks the lifecycle of an assistant message.
type MessageStatus string

const (
	// StatusNone is the zero value; user messages carry no status.
	StatusNone       MessageStatus = ""
	StatusProcessing MessageStatus = "processing"
	StatusCompleted  MessageStatus = "completed"
	StatusCancelled  MessageStatus = "cancelled"
)

// Message represents a conversation message.
type Message struct {
	ID             string        `json:"id"`
	ConversationID string        `json:"conversation_id"`
	ProjectID      string        `json:"project_id"`
	Role           Role          `json:"role"`
	Content        string        `json:"content"`
	Status         MessageStatus `json:"status,omitempty"`
	CreatedAt      int64         `json:"created_at"`
}

// SendMessageRequest is the request to send a new message.
type SendMessageRequest struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
}

// SendMessageResponse is the response after sending a message.
type SendMessageResponse struct {
	MessageID string `json:"message_id"`
}
