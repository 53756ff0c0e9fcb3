package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/polaris-ai/agent-platform/internal/model"
)

func msg(id string, role model.Role, content string) model.Message {
	return model.Message{ID: id, Role: role, Content: content}
}

func TestTranscriptFormatsRoles(t *testing.T) {
	out := Transcript([]model.Message{
		msg("1", model.RoleUser, "make a page"),
		msg("2", model.RoleAssistant, "done"),
	}, "", 10)

	assert.Equal(t, "USER: make a page\nASSISTANT: done", out)
}

func TestTranscriptExcludesPlaceholderAndEmpty(t *testing.T) {
	out := Transcript([]model.Message{
		msg("1", model.RoleUser, "hello"),
		msg("2", model.RoleAssistant, ""),
		msg("3", model.RoleAssistant, "in flight"),
	}, "3", 10)

	assert.Equal(t, "USER: hello", out)
}

func TestTranscriptKeepsNewestWithinLimit(t *testing.T) {
	messages := []model.Message{
		msg("1", model.RoleUser, "one"),
		msg("2", model.RoleAssistant, "two"),
		msg("3", model.RoleUser, "three"),
	}

	out := Transcript(messages, "", 2)
	assert.Equal(t, "ASSISTANT: two\nUSER: three", out)
}

func TestTranscriptDefaultLimit(t *testing.T) {
	var messages []model.Message
	for i := 0; i < 15; i++ {
		messages = append(messages, msg(string(rune('a'+i)), model.RoleUser, "m"))
	}

	out := Transcript(messages, "", 0)
	assert.Equal(t, DefaultHistoryLimit, strings.Count(out, "\n")+1)
}

func TestCodingAgentPromptIsDoubled(t *testing.T) {
	p := CodingAgent()
	first := strings.Index(p, "expert AI coding assistant")
	last := strings.LastIndex(p, "expert AI coding assistant")
	assert.NotEqual(t, first, last)
}

func TestUserTurn(t *testing.T) {
	assert.Equal(t, "just this", UserTurn("", "just this"))

	combined := UserTurn("USER: earlier", "now")
	assert.Contains(t, combined, "USER: earlier")
	assert.Contains(t, combined, "Current request:\nnow")
}
