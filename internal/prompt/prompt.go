package prompt

import (
	"fmt"
	"strings"

	"github.com/polaris-ai/agent-platform/internal/model"
)

// DefaultHistoryLimit bounds how many recent messages are folded into the
// conversation transcript when the caller does not say otherwise.
const DefaultHistoryLimit = 10

const codingAgent = `You are an expert AI coding assistant working inside a project workspace.

You help the user build and modify their project by reading, creating, updating, renaming and deleting files through the tools available to you.

Guidelines:
- Always inspect the existing project before changing it. Use list_files to see the project structure and read_files to look at file contents before you edit them.
- Make the smallest change that satisfies the user's request. Do not rewrite files wholesale when a targeted update will do.
- When creating files, pick clear names and place them in sensible folders. Create folders first when a new directory structure is needed.
- When a tool reports an error, read the message, adjust your approach and try again. Do not repeat the identical call.
- Use scrape_urls when the user points you at external documentation or resources you need to consult.
- When you have finished the requested work, reply to the user with a concise summary of what you changed and why. Do not call any more tools once you are done.`

const titleGenerator = `You are a helpful assistant that generates short, descriptive titles for conversations.

Given the first message of a conversation, respond with a title of at most six words that captures what the conversation is about. Respond with the title only. Do not use quotation marks, punctuation at the end, or any explanation.`

// CodingAgent returns the system prompt for the coding agent. The body is
// stated twice; models follow doubled instructions more reliably on long
// tool-use sessions.
func CodingAgent() string {
	return codingAgent + "\n\n" + codingAgent
}

// TitleGenerator returns the system prompt for the title model.
func TitleGenerator() string {
	return titleGenerator
}

// TitleRequest formats the user message the title model is asked to summarize.
func TitleRequest(firstMessage string) string {
	return fmt.Sprintf("Generate a title for a conversation that starts with:\n\n%s", firstMessage)
}

// Transcript renders recent conversation history as "ROLE: content" lines,
// oldest first. The in-flight assistant placeholder (excludeID) and messages
// with empty content are left out; at most limit messages are kept.
func Transcript(messages []model.Message, excludeID string, limit int) string {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	kept := make([]model.Message, 0, len(messages))
	for _, m := range messages {
		if m.ID == excludeID || m.Content == "" {
			continue
		}
		kept = append(kept, m)
	}
	if len(kept) > limit {
		kept = kept[len(kept)-limit:]
	}

	lines := make([]string, 0, len(kept))
	for _, m := range kept {
		lines = append(lines, fmt.Sprintf("%s: %s", strings.ToUpper(string(m.Role)), m.Content))
	}
	return strings.Join(lines, "\n")
}

// UserTurn combines the conversation transcript with the triggering message
// into the single user turn handed to the agent.
func UserTurn(transcript, text string) string {
	if transcript == "" {
		return text
	}
	return fmt.Sprintf("Conversation so far:\n%s\n\nCurrent request:\n%s", transcript, text)
}
