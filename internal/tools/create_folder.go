package tools

import (
	"context"
	"errors"

	"google.golang.org/genai"

	"github.com/polaris-ai/agent-platform/internal/store"
)

// CreateFolderTool creates a single folder node.
type CreateFolderTool struct {
	store       store.Store
	internalKey string
	projectID   string
}

// NewCreateFolderTool creates the create_folder tool bound to one project.
func NewCreateFolderTool(s store.Store, internalKey, projectID string) *CreateFolderTool {
	return &CreateFolderTool{store: s, internalKey: internalKey, projectID: projectID}
}

func (t *CreateFolderTool) Name() string {
	return "create_folder"
}

func (t *CreateFolderTool) Description() string {
	return "Create a folder in the project."
}

func (t *CreateFolderTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"name": {
					Type:        genai.TypeString,
					Description: "Name of the folder to create",
				},
				"parent_id": {
					Type:        genai.TypeString,
					Description: "ID of the parent folder; omit for the project root",
				},
			},
			Required: []string{"name"},
		},
	}
}

func (t *CreateFolderTool) Validate(args map[string]any) error {
	name, ok := GetString(args, "name")
	if !ok || name == "" {
		return NewValidationError("name", "is required")
	}
	return nil
}

func (t *CreateFolderTool) Execute(ctx context.Context, args map[string]any) Result {
	name, _ := GetString(args, "name")

	id, err := t.store.CreateFolder(ctx, t.internalKey, t.projectID, optionalParent(args), name)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateName) {
			return Errorf(ErrDuplicate, "a folder named %q already exists at that location", name)
		}
		return Errorf(ErrInternal, "creating folder: %v", err)
	}

	return Ok(map[string]string{"folder_id": id, "name": name})
}
