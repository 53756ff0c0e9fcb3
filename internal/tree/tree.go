// Package tree converts a project's flat node collection into nested
// directory structures and resolves node paths by walking parent chains.
package tree

import (
	"strings"

	"github.com/polaris-ai/agent-platform/internal/model"
)

// Entry is one node in a nested file tree: either a file leaf or a directory
// holding children keyed by name.
type Entry struct {
	File     *FileLeaf        `json:"file,omitempty"`
	Children map[string]Entry `json:"directory,omitempty"`
}

// FileLeaf is the payload of a text file entry.
type FileLeaf struct {
	Contents string `json:"contents"`
}

// Index maps node ids to nodes for parent-chain lookups.
type Index map[string]model.Node

// NewIndex builds an Index from a flat node collection.
func NewIndex(nodes []model.Node) Index {
	idx := make(Index, len(nodes))
	for _, n := range nodes {
		idx[n.ID] = n
	}
	return idx
}

// ResolvePath walks parent references from node to the root and returns the
// ordered name sequence, root first. The walk terminates on a missing parent
// and on a cycle; a visited set bounds the iteration even when the parent
// graph is corrupted.
func ResolvePath(node model.Node, idx Index) []string {
	parts := []string{node.Name}
	visited := map[string]bool{node.ID: true}

	parentID := node.ParentID
	for parentID != nil {
		parent, ok := idx[*parentID]
		if !ok || visited[parent.ID] {
			break
		}
		visited[parent.ID] = true
		parts = append([]string{parent.Name}, parts...)
		parentID = parent.ParentID
	}

	return parts
}

// Path returns the slash-joined path for a node.
func Path(node model.Node, idx Index) string {
	return strings.Join(ResolvePath(node, idx), "/")
}

// Build converts the flat collection into a nested directory structure keyed
// by name at each level. An intermediate path segment without an explicit
// folder node becomes a directory implicitly. Conflicting entries at the same
// path are last-write-wins in traversal order; the store's sibling uniqueness
// invariant keeps that case out of well-formed projects.
func Build(nodes []model.Node) map[string]Entry {
	root := make(map[string]Entry)
	idx := NewIndex(nodes)

	for _, node := range nodes {
		parts := ResolvePath(node, idx)
		current := root

		for i, part := range parts {
			last := i == len(parts)-1

			if last {
				if node.Kind == model.KindFolder {
					if existing, ok := current[part]; !ok || existing.Children == nil {
						current[part] = Entry{Children: make(map[string]Entry)}
					}
				} else if node.BlobRef == nil && node.Content != nil {
					current[part] = Entry{File: &FileLeaf{Contents: *node.Content}}
				}
				// Binary files are carried by blob handle only; they have no
				// inline representation in the text tree.
				continue
			}

			entry, ok := current[part]
			if !ok || entry.Children == nil {
				entry = Entry{Children: make(map[string]Entry)}
				current[part] = entry
			}
			current = entry.Children
		}
	}

	return root
}
