package tools

import (
	"context"
	"errors"

	"google.golang.org/genai"

	"github.com/polaris-ai/agent-platform/internal/store"
)

// ReadFilesTool reads the content of text files by id.
type ReadFilesTool struct {
	store       store.Store
	internalKey string
}

// NewReadFilesTool creates the read_files tool.
func NewReadFilesTool(s store.Store, internalKey string) *ReadFilesTool {
	return &ReadFilesTool{store: s, internalKey: internalKey}
}

func (t *ReadFilesTool) Name() string {
	return "read_files"
}

func (t *ReadFilesTool) Description() string {
	return "Read the content of files from the project. Returns file contents."
}

func (t *ReadFilesTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"file_ids": {
					Type:        genai.TypeArray,
					Description: "IDs of the files to read",
					Items:       &genai.Schema{Type: genai.TypeString},
				},
			},
			Required: []string{"file_ids"},
		},
	}
}

func (t *ReadFilesTool) Validate(args map[string]any) error {
	ids, ok := GetStringSlice(args, "file_ids")
	if !ok || len(ids) == 0 {
		return NewValidationError("file_ids", "must be a non-empty array of file IDs")
	}
	for _, id := range ids {
		if id == "" {
			return NewValidationError("file_ids", "must not contain empty IDs")
		}
	}
	return nil
}

type readFileEntry struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

func (t *ReadFilesTool) Execute(ctx context.Context, args map[string]any) Result {
	ids, _ := GetStringSlice(args, "file_ids")

	var results []readFileEntry
	for _, id := range ids {
		node, err := t.store.GetFile(ctx, t.internalKey, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return Errorf(ErrInternal, "reading files: %v", err)
		}
		// Binary files have no inline content and are skipped silently.
		if node.Content == nil {
			continue
		}
		results = append(results, readFileEntry{ID: node.ID, Name: node.Name, Content: *node.Content})
	}

	if len(results) == 0 {
		return Errorf(ErrNotFound, "no files found with provided IDs. Use the list_files tool to get valid file IDs")
	}

	return Ok(results)
}
