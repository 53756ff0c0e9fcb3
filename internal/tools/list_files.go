package tools

import (
	"context"

	"google.golang.org/genai"

	"github.com/polaris-ai/agent-platform/internal/store"
	"github.com/polaris-ai/agent-platform/internal/tree"
)

// ListFilesTool lists the project's full flat node collection.
type ListFilesTool struct {
	store       store.Store
	internalKey string
	projectID   string
}

// NewListFilesTool creates the list_files tool bound to one project.
func NewListFilesTool(s store.Store, internalKey, projectID string) *ListFilesTool {
	return &ListFilesTool{store: s, internalKey: internalKey, projectID: projectID}
}

func (t *ListFilesTool) Name() string {
	return "list_files"
}

func (t *ListFilesTool) Description() string {
	return "List all files and folders in the project with their IDs and paths."
}

func (t *ListFilesTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type:       genai.TypeObject,
			Properties: map[string]*genai.Schema{},
		},
	}
}

func (t *ListFilesTool) Validate(args map[string]any) error {
	return nil
}

type listFileEntry struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Kind     string  `json:"kind"`
	ParentID *string `json:"parent_id,omitempty"`
	Path     string  `json:"path"`
}

func (t *ListFilesTool) Execute(ctx context.Context, args map[string]any) Result {
	nodes, err := t.store.ListProjectFiles(ctx, t.internalKey, t.projectID)
	if err != nil {
		return Errorf(ErrInternal, "listing files: %v", err)
	}

	if len(nodes) == 0 {
		return Ok("The project has no files yet.")
	}

	idx := tree.NewIndex(nodes)
	entries := make([]listFileEntry, 0, len(nodes))
	for _, node := range nodes {
		entries = append(entries, listFileEntry{
			ID:       node.ID,
			Name:     node.Name,
			Kind:     string(node.Kind),
			ParentID: node.ParentID,
			Path:     tree.Path(node, idx),
		})
	}

	return Ok(entries)
}
