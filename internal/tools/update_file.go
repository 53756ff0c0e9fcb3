package tools

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/polaris-ai/agent-platform/internal/store"
)

// UpdateFileTool replaces the content of a text file.
type UpdateFileTool struct {
	store       store.Store
	internalKey string
}

// NewUpdateFileTool creates the update_file tool.
func NewUpdateFileTool(s store.Store, internalKey string) *UpdateFileTool {
	return &UpdateFileTool{store: s, internalKey: internalKey}
}

func (t *UpdateFileTool) Name() string {
	return "update_file"
}

func (t *UpdateFileTool) Description() string {
	return "Replace the content of an existing text file."
}

func (t *UpdateFileTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"file_id": {
					Type:        genai.TypeString,
					Description: "ID of the file to update",
				},
				"content": {
					Type:        genai.TypeString,
					Description: "The new file content",
				},
			},
			Required: []string{"file_id", "content"},
		},
	}
}

func (t *UpdateFileTool) Validate(args map[string]any) error {
	if id, ok := GetString(args, "file_id"); !ok || id == "" {
		return NewValidationError("file_id", "is required")
	}
	if _, ok := GetString(args, "content"); !ok {
		return NewValidationError("content", "is required")
	}
	return nil
}

func (t *UpdateFileTool) Execute(ctx context.Context, args map[string]any) Result {
	id, _ := GetString(args, "file_id")
	content, _ := GetString(args, "content")

	if err := t.store.UpdateFileContent(ctx, t.internalKey, id, content); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Errorf(ErrNotFound, "file with ID %s not found. Use the list_files tool to get valid file IDs", id)
		}
		return Errorf(ErrInternal, "updating file: %v", err)
	}

	return Ok(fmt.Sprintf("File with ID %s has been updated", id))
}
