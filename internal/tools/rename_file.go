package tools

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/polaris-ai/agent-platform/internal/store"
)

// RenameFileTool renames a file or folder.
type RenameFileTool struct {
	store       store.Store
	internalKey string
}

// NewRenameFileTool creates the rename_file tool.
func NewRenameFileTool(s store.Store, internalKey string) *RenameFileTool {
	return &RenameFileTool{store: s, internalKey: internalKey}
}

func (t *RenameFileTool) Name() string {
	return "rename_file"
}

func (t *RenameFileTool) Description() string {
	return "Rename a file or folder."
}

func (t *RenameFileTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"file_id": {
					Type:        genai.TypeString,
					Description: "ID of the file or folder to rename",
				},
				"new_name": {
					Type:        genai.TypeString,
					Description: "The new name",
				},
			},
			Required: []string{"file_id", "new_name"},
		},
	}
}

func (t *RenameFileTool) Validate(args map[string]any) error {
	if id, ok := GetString(args, "file_id"); !ok || id == "" {
		return NewValidationError("file_id", "is required")
	}
	if name, ok := GetString(args, "new_name"); !ok || name == "" {
		return NewValidationError("new_name", "is required")
	}
	return nil
}

func (t *RenameFileTool) Execute(ctx context.Context, args map[string]any) Result {
	id, _ := GetString(args, "file_id")
	newName, _ := GetString(args, "new_name")

	if err := t.store.RenameFile(ctx, t.internalKey, id, newName); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return Errorf(ErrNotFound, "file with ID %s not found. Use the list_files tool to get valid file IDs", id)
		case errors.Is(err, store.ErrDuplicateName):
			return Errorf(ErrDuplicate, "%v", err)
		default:
			return Errorf(ErrInternal, "renaming file: %v", err)
		}
	}

	return Ok(fmt.Sprintf("File with ID %s has been renamed to %q", id, newName))
}
