package tools

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polaris-ai/agent-platform/internal/model"
	"github.com/polaris-ai/agent-platform/internal/store"
)

const (
	testKey     = "test-internal-key"
	testProject = "proj-1"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"), testKey)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestResultText(t *testing.T) {
	assert.Equal(t, "plain", Ok("plain").Text())
	assert.Equal(t, `{"n":1}`, Ok(map[string]int{"n": 1}).Text())
	assert.Equal(t, "Error: file missing", Errorf(ErrNotFound, "file missing").Text())
}

func TestRegistryOrder(t *testing.T) {
	s := newTestStore(t)
	r := NewRegistry()

	require.NoError(t, r.Register(NewListFilesTool(s, testKey, testProject)))
	require.NoError(t, r.Register(NewReadFilesTool(s, testKey)))

	assert.Equal(t, []string{"list_files", "read_files"}, r.Names())
	assert.Len(t, r.Declarations(), 2)

	err := r.Register(NewReadFilesTool(s, testKey))
	assert.Error(t, err)
}

func TestListFilesEmptyProject(t *testing.T) {
	s := newTestStore(t)
	tool := NewListFilesTool(s, testKey, testProject)

	res := tool.Execute(context.Background(), nil)
	require.True(t, res.OK)
	assert.Equal(t, "The project has no files yet.", res.Text())
}

func TestListFilesPaths(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	folderID, err := s.CreateFolder(ctx, testKey, testProject, nil, "src")
	require.NoError(t, err)
	_, err = s.CreateFiles(ctx, testKey, testProject, &folderID, []model.NewFileEntry{
		{Name: "main.go", Content: "package main"},
	})
	require.NoError(t, err)

	res := NewListFilesTool(s, testKey, testProject).Execute(ctx, nil)
	require.True(t, res.OK)

	var entries []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		Kind string `json:"kind"`
		Path string `json:"path"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.Text()), &entries))
	require.Len(t, entries, 2)

	byName := map[string]string{}
	for _, e := range entries {
		byName[e.Name] = e.Path
	}
	assert.Equal(t, "src", byName["src"])
	assert.Equal(t, "src/main.go", byName["main.go"])
}

func TestReadFilesSkipsMissingAndBinary(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	results, err := s.CreateFiles(ctx, testKey, testProject, nil, []model.NewFileEntry{
		{Name: "a.txt", Content: "alpha"},
	})
	require.NoError(t, err)

	blobRef, err := s.PutBlob(ctx, testKey, []byte{0x01})
	require.NoError(t, err)
	binaryID, err := s.CreateBinaryFile(ctx, testKey, testProject, nil, "b.bin", blobRef)
	require.NoError(t, err)

	tool := NewReadFilesTool(s, testKey)
	res := tool.Execute(ctx, map[string]any{
		"file_ids": []any{results[0].FileID, binaryID, "missing-id"},
	})
	require.True(t, res.OK)

	var entries []struct {
		Name    string `json:"name"`
		Content string `json:"content"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.Text()), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "a.txt", entries[0].Name)
	assert.Equal(t, "alpha", entries[0].Content)
}

func TestReadFilesAllMissingIsSoftError(t *testing.T) {
	s := newTestStore(t)
	tool := NewReadFilesTool(s, testKey)

	res := tool.Execute(context.Background(), map[string]any{
		"file_ids": []any{"nope"},
	})
	require.False(t, res.OK)
	assert.Equal(t, ErrNotFound, res.Kind)
	assert.True(t, strings.HasPrefix(res.Text(), "Error: "))
	assert.Contains(t, res.Text(), "list_files")
}

func TestCreateFilesPartialBatch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	tool := NewCreateFilesTool(s, testKey, testProject)

	args := map[string]any{
		"files": []any{
			map[string]any{"name": "index.html", "content": "<html>"},
		},
	}
	require.NoError(t, tool.Validate(args))
	res := tool.Execute(ctx, args)
	require.True(t, res.OK)

	// Second batch: one collision, one success, reported per entry.
	args = map[string]any{
		"files": []any{
			map[string]any{"name": "index.html", "content": "dup"},
			map[string]any{"name": "app.js", "content": "console.log(1)"},
		},
	}
	res = tool.Execute(ctx, args)
	require.True(t, res.OK)

	var entries []model.CreateFileResult
	require.NoError(t, json.Unmarshal([]byte(res.Text()), &entries))
	require.Len(t, entries, 2)
	assert.NotEmpty(t, entries[0].Error)
	assert.Empty(t, entries[1].Error)
}

func TestCreateFilesValidation(t *testing.T) {
	s := newTestStore(t)
	tool := NewCreateFilesTool(s, testKey, testProject)

	assert.Error(t, tool.Validate(map[string]any{}))
	assert.Error(t, tool.Validate(map[string]any{"files": []any{}}))
	assert.Error(t, tool.Validate(map[string]any{"files": []any{
		map[string]any{"name": "", "content": "x"},
	}}))
	assert.Error(t, tool.Validate(map[string]any{"files": []any{
		map[string]any{"name": "a.txt"},
	}}))
}

func TestCreateFolderDuplicateIsSoftError(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	tool := NewCreateFolderTool(s, testKey, testProject)

	res := tool.Execute(ctx, map[string]any{"name": "assets"})
	require.True(t, res.OK)

	res = tool.Execute(ctx, map[string]any{"name": "assets"})
	require.False(t, res.OK)
	assert.Equal(t, ErrDuplicate, res.Kind)
}

func TestUpdateFileTool(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	results, err := s.CreateFiles(ctx, testKey, testProject, nil, []model.NewFileEntry{
		{Name: "a.txt", Content: "old"},
	})
	require.NoError(t, err)

	tool := NewUpdateFileTool(s, testKey)
	res := tool.Execute(ctx, map[string]any{
		"file_id": results[0].FileID,
		"content": "new",
	})
	require.True(t, res.OK)

	node, err := s.GetFile(ctx, testKey, results[0].FileID)
	require.NoError(t, err)
	assert.Equal(t, "new", *node.Content)

	res = tool.Execute(ctx, map[string]any{"file_id": "missing", "content": "x"})
	require.False(t, res.OK)
	assert.Equal(t, ErrNotFound, res.Kind)
}

func TestRenameFileTool(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	results, err := s.CreateFiles(ctx, testKey, testProject, nil, []model.NewFileEntry{
		{Name: "a.txt", Content: "a"},
		{Name: "b.txt", Content: "b"},
	})
	require.NoError(t, err)

	tool := NewRenameFileTool(s, testKey)

	res := tool.Execute(ctx, map[string]any{"file_id": results[0].FileID, "new_name": "b.txt"})
	require.False(t, res.OK)
	assert.Equal(t, ErrDuplicate, res.Kind)

	res = tool.Execute(ctx, map[string]any{"file_id": results[0].FileID, "new_name": "c.txt"})
	require.True(t, res.OK)
}

func TestDeleteFilesTool(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	folderID, err := s.CreateFolder(ctx, testKey, testProject, nil, "src")
	require.NoError(t, err)
	_, err = s.CreateFiles(ctx, testKey, testProject, &folderID, []model.NewFileEntry{
		{Name: "main.go", Content: "package main"},
	})
	require.NoError(t, err)

	tool := NewDeleteFilesTool(s, testKey)
	res := tool.Execute(ctx, map[string]any{"file_ids": []any{folderID}})
	require.True(t, res.OK)

	nodes, err := s.ListProjectFiles(ctx, testKey, testProject)
	require.NoError(t, err)
	assert.Empty(t, nodes)

	// Repeating the delete stays a success.
	res = tool.Execute(ctx, map[string]any{"file_ids": []any{folderID}})
	assert.True(t, res.OK)
}

type stubFetcher struct {
	pages map[string]string
	err   error
}

func (f *stubFetcher) Fetch(ctx context.Context, url string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	page, ok := f.pages[url]
	if !ok {
		return "", errors.New("no such page")
	}
	return page, nil
}

func TestScrapeURLsMixedResults(t *testing.T) {
	tool := NewScrapeURLsTool(&stubFetcher{pages: map[string]string{
		"https://example.com/docs": "documentation text",
	}})

	args := map[string]any{"urls": []any{
		"https://example.com/docs",
		"https://example.com/missing",
	}}
	require.NoError(t, tool.Validate(args))

	res := tool.Execute(context.Background(), args)
	require.True(t, res.OK)

	var entries []struct {
		URL     string `json:"url"`
		Content string `json:"content"`
		Error   string `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.Text()), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "documentation text", entries[0].Content)
	assert.NotEmpty(t, entries[1].Error)
}

func TestScrapeURLsValidation(t *testing.T) {
	tool := NewScrapeURLsTool(&stubFetcher{})

	assert.Error(t, tool.Validate(map[string]any{"urls": []any{}}))
	assert.Error(t, tool.Validate(map[string]any{"urls": []any{"ftp://example.com"}}))
	assert.Error(t, tool.Validate(map[string]any{"urls": []any{
		"https://a.com", "https://b.com", "https://c.com",
		"https://d.com", "https://e.com", "https://f.com",
	}}))
	assert.NoError(t, tool.Validate(map[string]any{"urls": []any{"https://a.com"}}))
}
