package model

// DefaultConversationTitle is the sentinel title assigned to new conversations.
// A run regenerates the title exactly once, the first time it sees this value.
const DefaultConversationTitle = "New Conversation"

// Conversation represents a conversation thread within a project.
type Conversation struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Title     string `json:"title"`
	UpdatedAt int64  `json:"updated_at"`
}

// IsUntitled reports whether the conversation still carries the sentinel title.
func (c *Conversation) IsUntitled() bool {
	return c.Title == DefaultConversationTitle
}
