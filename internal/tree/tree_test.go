package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polaris-ai/agent-platform/internal/model"
)

func strPtr(s string) *string { return &s }

func node(id string, parentID *string, name string, kind model.NodeKind, content *string) model.Node {
	return model.Node{
		ID:        id,
		ProjectID: "proj-1",
		ParentID:  parentID,
		Name:      name,
		Kind:      kind,
		Content:   content,
	}
}

func TestResolvePath(t *testing.T) {
	nodes := []model.Node{
		node("f1", nil, "src", model.KindFolder, nil),
		node("f2", strPtr("f1"), "lib", model.KindFolder, nil),
		node("a", strPtr("f2"), "util.go", model.KindFile, strPtr("package lib")),
	}
	idx := NewIndex(nodes)

	assert.Equal(t, []string{"src", "lib", "util.go"}, ResolvePath(nodes[2], idx))
	assert.Equal(t, "src/lib/util.go", Path(nodes[2], idx))
	assert.Equal(t, []string{"src"}, ResolvePath(nodes[0], idx))
}

func TestResolvePathMissingParent(t *testing.T) {
	orphan := node("a", strPtr("gone"), "stray.txt", model.KindFile, strPtr(""))
	idx := NewIndex([]model.Node{orphan})

	// A dangling parent reference terminates the walk at the node itself.
	assert.Equal(t, []string{"stray.txt"}, ResolvePath(orphan, idx))
}

func TestResolvePathCycleTerminates(t *testing.T) {
	a := node("a", strPtr("b"), "a", model.KindFolder, nil)
	b := node("b", strPtr("a"), "b", model.KindFolder, nil)
	idx := NewIndex([]model.Node{a, b})

	parts := ResolvePath(a, idx)
	assert.Equal(t, []string{"b", "a"}, parts)
}

func TestBuildNestedTree(t *testing.T) {
	nodes := []model.Node{
		node("f1", nil, "src", model.KindFolder, nil),
		node("a", strPtr("f1"), "main.go", model.KindFile, strPtr("package main")),
		node("b", nil, "README.md", model.KindFile, strPtr("# readme")),
	}

	root := Build(nodes)
	require.Contains(t, root, "src")
	require.Contains(t, root, "README.md")

	require.NotNil(t, root["README.md"].File)
	assert.Equal(t, "# readme", root["README.md"].File.Contents)

	src := root["src"]
	require.NotNil(t, src.Children)
	require.Contains(t, src.Children, "main.go")
	assert.Equal(t, "package main", src.Children["main.go"].File.Contents)
}

func TestBuildEmptyFolder(t *testing.T) {
	root := Build([]model.Node{
		node("f1", nil, "empty", model.KindFolder, nil),
	})

	require.Contains(t, root, "empty")
	assert.NotNil(t, root["empty"].Children)
	assert.Empty(t, root["empty"].Children)
	assert.Nil(t, root["empty"].File)
}

func TestBuildSkipsBinaryFiles(t *testing.T) {
	binary := node("a", nil, "logo.jpg", model.KindFile, nil)
	ref := "blob-1"
	binary.BlobRef = &ref

	root := Build([]model.Node{binary})
	assert.NotContains(t, root, "logo.jpg")
}
