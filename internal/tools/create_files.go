package tools

import (
	"context"

	"google.golang.org/genai"

	"github.com/polaris-ai/agent-platform/internal/model"
	"github.com/polaris-ai/agent-platform/internal/store"
)

// CreateFilesTool creates text files in bulk. Entries succeed or fail
// independently; a name collision on one entry never aborts the batch.
type CreateFilesTool struct {
	store       store.Store
	internalKey string
	projectID   string
}

// NewCreateFilesTool creates the create_files tool bound to one project.
func NewCreateFilesTool(s store.Store, internalKey, projectID string) *CreateFilesTool {
	return &CreateFilesTool{store: s, internalKey: internalKey, projectID: projectID}
}

func (t *CreateFilesTool) Name() string {
	return "create_files"
}

func (t *CreateFilesTool) Description() string {
	return "Create one or more text files. Reports per-file success or failure."
}

func (t *CreateFilesTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"parent_id": {
					Type:        genai.TypeString,
					Description: "ID of the folder to create the files in; omit for the project root",
				},
				"files": {
					Type:        genai.TypeArray,
					Description: "Files to create",
					Items: &genai.Schema{
						Type: genai.TypeObject,
						Properties: map[string]*genai.Schema{
							"name":    {Type: genai.TypeString, Description: "File name"},
							"content": {Type: genai.TypeString, Description: "File content"},
						},
						Required: []string{"name", "content"},
					},
				},
			},
			Required: []string{"files"},
		},
	}
}

func (t *CreateFilesTool) Validate(args map[string]any) error {
	entries, err := fileEntries(args)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return NewValidationError("files", "must contain at least one file")
	}
	return nil
}

func (t *CreateFilesTool) Execute(ctx context.Context, args map[string]any) Result {
	entries, err := fileEntries(args)
	if err != nil {
		return Errorf(ErrValidation, "%v", err)
	}

	results, storeErr := t.store.CreateFiles(ctx, t.internalKey, t.projectID, optionalParent(args), entries)
	if storeErr != nil {
		return Errorf(ErrInternal, "creating files: %v", storeErr)
	}

	return Ok(results)
}

func fileEntries(args map[string]any) ([]model.NewFileEntry, error) {
	raw, ok := args["files"].([]any)
	if !ok {
		return nil, NewValidationError("files", "must be an array of {name, content} objects")
	}

	entries := make([]model.NewFileEntry, 0, len(raw))
	for _, item := range raw {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, NewValidationError("files", "must be an array of {name, content} objects")
		}
		name, ok := GetString(obj, "name")
		if !ok || name == "" {
			return nil, NewValidationError("files", "every entry needs a non-empty name")
		}
		content, ok := GetString(obj, "content")
		if !ok {
			return nil, NewValidationError("files", "every entry needs content")
		}
		entries = append(entries, model.NewFileEntry{Name: name, Content: content})
	}

	return entries, nil
}
