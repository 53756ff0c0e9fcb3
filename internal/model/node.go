package model

// NodeKind distinguishes files from folders in the project tree.
type NodeKind string

const (
	KindFile   NodeKind = "file"
	KindFolder NodeKind = "folder"
)

// Node is one record in a project's flat file tree. Nodes reference their
// parent folder by id; the root is a nil ParentID. A file node has exactly
// one of Content (text) or BlobRef (binary) set; a folder has neither.
type Node struct {
	ID        string   `json:"id"`
	ProjectID string   `json:"project_id"`
	ParentID  *string  `json:"parent_id,omitempty"`
	Name      string   `json:"name"`
	Kind      NodeKind `json:"kind"`
	Content   *string  `json:"content,omitempty"`
	BlobRef   *string  `json:"blob_ref,omitempty"`
	UpdatedAt int64    `json:"updated_at"`
}

// NewFileEntry is one entry in a bulk file-creation request.
type NewFileEntry struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// CreateFileResult reports the outcome of one entry in a bulk create. A batch
// never aborts on a single collision; each entry carries its own result.
type CreateFileResult struct {
	Name   string `json:"name"`
	FileID string `json:"file_id,omitempty"`
	Error  string `json:"error,omitempty"`
}
