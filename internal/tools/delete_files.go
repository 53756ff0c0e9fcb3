package tools

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/polaris-ai/agent-platform/internal/store"
)

// DeleteFilesTool deletes files and folders by id. Folders cascade to their
// descendants; a missing id is a no-op, so repeated calls are safe.
type DeleteFilesTool struct {
	store       store.Store
	internalKey string
}

// NewDeleteFilesTool creates the delete_files tool.
func NewDeleteFilesTool(s store.Store, internalKey string) *DeleteFilesTool {
	return &DeleteFilesTool{store: s, internalKey: internalKey}
}

func (t *DeleteFilesTool) Name() string {
	return "delete_files"
}

func (t *DeleteFilesTool) Description() string {
	return "Delete files or folders from the project. Deleting a folder also deletes its contents."
}

func (t *DeleteFilesTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"file_ids": {
					Type:        genai.TypeArray,
					Description: "IDs of the files or folders to delete",
					Items:       &genai.Schema{Type: genai.TypeString},
				},
			},
			Required: []string{"file_ids"},
		},
	}
}

func (t *DeleteFilesTool) Validate(args map[string]any) error {
	ids, ok := GetStringSlice(args, "file_ids")
	if !ok || len(ids) == 0 {
		return NewValidationError("file_ids", "must be a non-empty array of file IDs")
	}
	return nil
}

func (t *DeleteFilesTool) Execute(ctx context.Context, args map[string]any) Result {
	ids, _ := GetStringSlice(args, "file_ids")

	if err := t.store.DeleteFiles(ctx, t.internalKey, ids); err != nil {
		return Errorf(ErrInternal, "deleting files: %v", err)
	}

	return Ok(fmt.Sprintf("Deleted %d file(s)", len(ids)))
}
