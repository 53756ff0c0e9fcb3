package model

// MessageSentEvent is the inbound signal that triggers one orchestrator run.
type MessageSentEvent struct {
	MessageID      string `json:"message_id"`
	ConversationID string `json:"conversation_id"`
	ProjectID      string `json:"project_id"`
	Text           string `json:"text"`
}

// MessageCancelEvent interrupts the in-flight run for a message. The emitter
// is responsible for marking the message cancelled; the run only stops.
type MessageCancelEvent struct {
	MessageID string `json:"message_id"`
}
