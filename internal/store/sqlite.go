package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/polaris-ai/agent-platform/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	id         TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	title      TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conversations_project ON conversations(project_id);

CREATE TABLE IF NOT EXISTS messages (
	id              TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL,
	project_id      TEXT NOT NULL,
	role            TEXT NOT NULL,
	content         TEXT NOT NULL,
	status          TEXT NOT NULL DEFAULT '',
	created_at      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at);
CREATE INDEX IF NOT EXISTS idx_messages_status ON messages(conversation_id, status);

CREATE TABLE IF NOT EXISTS files (
	id         TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	parent_id  TEXT,
	name       TEXT NOT NULL,
	kind       TEXT NOT NULL,
	content    TEXT,
	blob_ref   TEXT,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_files_project ON files(project_id);
CREATE INDEX IF NOT EXISTS idx_files_parent ON files(project_id, parent_id);

CREATE TABLE IF NOT EXISTS blobs (
	id   TEXT PRIMARY KEY,
	data BLOB NOT NULL
);
`

// SQLiteStore is the SQLite-backed implementation of Store.
type SQLiteStore struct {
	db          *sql.DB
	internalKey string
	now         func() time.Time
}

// Open opens (creating if necessary) the SQLite database at path.
// internalKey is the expected shared secret; every call is checked
// against it.
func Open(path, internalKey string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer keeps mutations serialized without busy retries.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLiteStore{
		db:          db,
		internalKey: internalKey,
		now:         time.Now,
	}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// guard validates the caller's shared secret.
func (s *SQLiteStore) guard(key string) error {
	if s.internalKey == "" {
		return fmt.Errorf("%w: internal key is not configured", ErrInvalidInternalKey)
	}
	if key != s.internalKey {
		return ErrInvalidInternalKey
	}
	return nil
}

// GetConversation retrieves a conversation by id.
func (s *SQLiteStore) GetConversation(ctx context.Context, key, conversationID string) (*model.Conversation, error) {
	if err := s.guard(key); err != nil {
		return nil, err
	}

	var conv model.Conversation
	err := s.db.QueryRowContext(ctx,
		`SELECT id, project_id, title, updated_at FROM conversations WHERE id = ?`,
		conversationID,
	).Scan(&conv.ID, &conv.ProjectID, &conv.Title, &conv.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("conversation %s: %w", conversationID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	return &conv, nil
}

// CreateConversation inserts a conversation. An empty title gets the sentinel
// default so the first run can generate a real one.
func (s *SQLiteStore) CreateConversation(ctx context.Context, key, projectID, title string) (*model.Conversation, error) {
	if err := s.guard(key); err != nil {
		return nil, err
	}

	if title == "" {
		title = model.DefaultConversationTitle
	}

	conv := &model.Conversation{
		ID:        uuid.Must(uuid.NewV7()).String(),
		ProjectID: projectID,
		Title:     title,
		UpdatedAt: s.now().UnixMilli(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, project_id, title, updated_at) VALUES (?, ?, ?, ?)`,
		conv.ID, conv.ProjectID, conv.Title, conv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return conv, nil
}

// UpdateConversationTitle rewrites the conversation title.
func (s *SQLiteStore) UpdateConversationTitle(ctx context.Context, key, conversationID, title string) error {
	if err := s.guard(key); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET title = ?, updated_at = ? WHERE id = ?`,
		title, s.now().UnixMilli(), conversationID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("conversation %s: %w", conversationID, ErrNotFound)
	}

	return nil
}

// CreateMessage inserts a message and bumps the conversation's updated_at.
func (s *SQLiteStore) CreateMessage(ctx context.Context, key string, msg *model.Message) (string, error) {
	if err := s.guard(key); err != nil {
		return "", err
	}

	id := uuid.Must(uuid.NewV7()).String()
	now := s.now().UnixMilli()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, project_id, role, content, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, msg.ConversationID, msg.ProjectID, msg.Role, msg.Content, msg.Status, now,
	)
	if err != nil {
		return "", err
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE conversations SET updated_at = ? WHERE id = ?`,
		now, msg.ConversationID,
	)
	if err != nil {
		return "", err
	}

	return id, nil
}

// GetRecentMessages returns the last limit messages, oldest first.
func (s *SQLiteStore) GetRecentMessages(ctx context.Context, key, conversationID string, limit int) ([]model.Message, error) {
	if err := s.guard(key); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, project_id, role, content, status, created_at
		 FROM (
			SELECT * FROM messages WHERE conversation_id = ? ORDER BY created_at DESC, id DESC LIMIT ?
		 ) ORDER BY created_at ASC, id ASC`,
		conversationID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMessages(rows)
}

// GetProcessingMessages returns assistant messages still marked processing.
func (s *SQLiteStore) GetProcessingMessages(ctx context.Context, key, conversationID string) ([]model.Message, error) {
	if err := s.guard(key); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, project_id, role, content, status, created_at
		 FROM messages WHERE conversation_id = ? AND status = ?`,
		conversationID, model.StatusProcessing,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMessages(rows)
}

// GetMessage retrieves a message by id.
func (s *SQLiteStore) GetMessage(ctx context.Context, key, messageID string) (*model.Message, error) {
	if err := s.guard(key); err != nil {
		return nil, err
	}

	var msg model.Message
	err := s.db.QueryRowContext(ctx,
		`SELECT id, conversation_id, project_id, role, content, status, created_at
		 FROM messages WHERE id = ?`,
		messageID,
	).Scan(&msg.ID, &msg.ConversationID, &msg.ProjectID, &msg.Role, &msg.Content, &msg.Status, &msg.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("message %s: %w", messageID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	return &msg, nil
}

// UpdateMessageContent overwrites content and marks the message completed.
// This is the terminal write for both successful and compensated runs.
func (s *SQLiteStore) UpdateMessageContent(ctx context.Context, key, messageID, content string) error {
	if err := s.guard(key); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE messages SET content = ?, status = ? WHERE id = ?`,
		content, model.StatusCompleted, messageID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("message %s: %w", messageID, ErrNotFound)
	}

	return nil
}

// UpdateMessageStatus sets the message status.
func (s *SQLiteStore) UpdateMessageStatus(ctx context.Context, key, messageID string, status model.MessageStatus) error {
	if err := s.guard(key); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE messages SET status = ? WHERE id = ?`,
		status, messageID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("message %s: %w", messageID, ErrNotFound)
	}

	return nil
}

// GetFile retrieves a file tree node by id.
func (s *SQLiteStore) GetFile(ctx context.Context, key, fileID string) (*model.Node, error) {
	if err := s.guard(key); err != nil {
		return nil, err
	}
	return s.getNode(ctx, fileID)
}

func (s *SQLiteStore) getNode(ctx context.Context, fileID string) (*model.Node, error) {
	var node model.Node
	err := s.db.QueryRowContext(ctx,
		`SELECT id, project_id, parent_id, name, kind, content, blob_ref, updated_at
		 FROM files WHERE id = ?`,
		fileID,
	).Scan(&node.ID, &node.ProjectID, &node.ParentID, &node.Name, &node.Kind, &node.Content, &node.BlobRef, &node.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("file %s: %w", fileID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &node, nil
}

// ListProjectFiles returns the full flat node collection for a project.
func (s *SQLiteStore) ListProjectFiles(ctx context.Context, key, projectID string) ([]model.Node, error) {
	if err := s.guard(key); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, parent_id, name, kind, content, blob_ref, updated_at
		 FROM files WHERE project_id = ? ORDER BY name ASC`,
		projectID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var nodes []model.Node
	for rows.Next() {
		var node model.Node
		if err := rows.Scan(&node.ID, &node.ProjectID, &node.ParentID, &node.Name, &node.Kind, &node.Content, &node.BlobRef, &node.UpdatedAt); err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}

	return nodes, rows.Err()
}

// UpdateFileContent replaces a text file's content.
func (s *SQLiteStore) UpdateFileContent(ctx context.Context, key, fileID, content string) error {
	if err := s.guard(key); err != nil {
		return err
	}

	node, err := s.getNode(ctx, fileID)
	if err != nil {
		return err
	}
	if node.Kind != model.KindFile || node.BlobRef != nil {
		return fmt.Errorf("file %s is not a text file", fileID)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE files SET content = ?, updated_at = ? WHERE id = ?`,
		content, s.now().UnixMilli(), fileID,
	)
	return err
}

// FindSibling looks for an existing node of the given kind and exact name
// under (projectID, parentID). Matching is case-sensitive.
func (s *SQLiteStore) FindSibling(ctx context.Context, key, projectID string, parentID *string, name string, kind model.NodeKind) (*model.Node, error) {
	if err := s.guard(key); err != nil {
		return nil, err
	}
	return s.findSibling(ctx, projectID, parentID, name, kind, "")
}

// findSibling optionally excludes one node id (rename checks its own row).
func (s *SQLiteStore) findSibling(ctx context.Context, projectID string, parentID *string, name string, kind model.NodeKind, excludeID string) (*model.Node, error) {
	query := `SELECT id, project_id, parent_id, name, kind, content, blob_ref, updated_at
		 FROM files WHERE project_id = ? AND name = ? AND kind = ? AND id <> ?`
	args := []any{projectID, name, kind, excludeID}
	if parentID == nil {
		query += ` AND parent_id IS NULL`
	} else {
		query += ` AND parent_id = ?`
		args = append(args, *parentID)
	}

	var node model.Node
	err := s.db.QueryRowContext(ctx, query, args...).
		Scan(&node.ID, &node.ProjectID, &node.ParentID, &node.Name, &node.Kind, &node.Content, &node.BlobRef, &node.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &node, nil
}

// CreateFiles inserts text files in bulk. Each entry is checked for a sibling
// collision independently; one failing entry never aborts the batch.
func (s *SQLiteStore) CreateFiles(ctx context.Context, key, projectID string, parentID *string, entries []model.NewFileEntry) ([]model.CreateFileResult, error) {
	if err := s.guard(key); err != nil {
		return nil, err
	}

	if parentID != nil {
		parent, err := s.getNode(ctx, *parentID)
		if err != nil {
			return nil, err
		}
		if parent.Kind != model.KindFolder {
			return nil, fmt.Errorf("parent %s is not a folder", *parentID)
		}
	}

	results := make([]model.CreateFileResult, 0, len(entries))
	for _, entry := range entries {
		existing, err := s.findSibling(ctx, projectID, parentID, entry.Name, model.KindFile, "")
		if err != nil {
			return nil, err
		}
		if existing != nil {
			results = append(results, model.CreateFileResult{
				Name:   entry.Name,
				FileID: existing.ID,
				Error:  "file already exists",
			})
			continue
		}

		id := uuid.Must(uuid.NewV7()).String()
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO files (id, project_id, parent_id, name, kind, content, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, projectID, parentID, entry.Name, model.KindFile, entry.Content, s.now().UnixMilli(),
		)
		if err != nil {
			return nil, err
		}

		results = append(results, model.CreateFileResult{Name: entry.Name, FileID: id})
	}

	return results, nil
}

// CreateFolder inserts a folder node, rejecting a same-name sibling folder.
func (s *SQLiteStore) CreateFolder(ctx context.Context, key, projectID string, parentID *string, name string) (string, error) {
	if err := s.guard(key); err != nil {
		return "", err
	}

	existing, err := s.findSibling(ctx, projectID, parentID, name, model.KindFolder, "")
	if err != nil {
		return "", err
	}
	if existing != nil {
		return "", fmt.Errorf("folder %q: %w", name, ErrDuplicateName)
	}

	id := uuid.Must(uuid.NewV7()).String()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO files (id, project_id, parent_id, name, kind, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, projectID, parentID, name, model.KindFolder, s.now().UnixMilli(),
	)
	if err != nil {
		return "", err
	}

	return id, nil
}

// RenameFile renames a node after re-checking sibling uniqueness at the
// node's current parent, excluding the node itself.
func (s *SQLiteStore) RenameFile(ctx context.Context, key, fileID, newName string) error {
	if err := s.guard(key); err != nil {
		return err
	}

	node, err := s.getNode(ctx, fileID)
	if err != nil {
		return err
	}

	existing, err := s.findSibling(ctx, node.ProjectID, node.ParentID, newName, node.Kind, node.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("a %s named %q: %w", node.Kind, newName, ErrDuplicateName)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE files SET name = ?, updated_at = ? WHERE id = ?`,
		newName, s.now().UnixMilli(), fileID,
	)
	return err
}

// DeleteFiles removes nodes recursively. Folders cascade post-order to all
// descendants; bound blobs are released before each node is removed. A
// missing id is a no-op, so the operation is idempotent.
func (s *SQLiteStore) DeleteFiles(ctx context.Context, key string, fileIDs []string) error {
	if err := s.guard(key); err != nil {
		return err
	}

	for _, id := range fileIDs {
		if err := s.deleteRecursive(ctx, id, map[string]bool{}); err != nil {
			return err
		}
	}

	return nil
}

func (s *SQLiteStore) deleteRecursive(ctx context.Context, fileID string, visited map[string]bool) error {
	// Guard against a corrupted parent cycle; without it a cycle would make
	// the cascade non-terminating.
	if visited[fileID] {
		return nil
	}
	visited[fileID] = true

	node, err := s.getNode(ctx, fileID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}

	if node.Kind == model.KindFolder {
		rows, err := s.db.QueryContext(ctx,
			`SELECT id FROM files WHERE project_id = ? AND parent_id = ?`,
			node.ProjectID, node.ID,
		)
		if err != nil {
			return err
		}
		var children []string
		for rows.Next() {
			var childID string
			if err := rows.Scan(&childID); err != nil {
				rows.Close()
				return err
			}
			children = append(children, childID)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for _, childID := range children {
			if err := s.deleteRecursive(ctx, childID, visited); err != nil {
				return err
			}
		}
	}

	if node.BlobRef != nil {
		if err := s.releaseBlob(ctx, *node.BlobRef); err != nil {
			return err
		}
	}

	_, err = s.db.ExecContext(ctx, `DELETE FROM files WHERE id = ?`, node.ID)
	return err
}

// CreateBinaryFile inserts a file node carrying a blob handle instead of
// inline content. Sibling uniqueness applies the same as for text files.
func (s *SQLiteStore) CreateBinaryFile(ctx context.Context, key, projectID string, parentID *string, name, blobRef string) (string, error) {
	if err := s.guard(key); err != nil {
		return "", err
	}

	existing, err := s.findSibling(ctx, projectID, parentID, name, model.KindFile, "")
	if err != nil {
		return "", err
	}
	if existing != nil {
		return "", fmt.Errorf("file %q: %w", name, ErrDuplicateName)
	}

	id := uuid.Must(uuid.NewV7()).String()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO files (id, project_id, parent_id, name, kind, blob_ref, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, projectID, parentID, name, model.KindFile, blobRef, s.now().UnixMilli(),
	)
	if err != nil {
		return "", err
	}

	return id, nil
}

// PutBlob stores binary data and returns its handle. Used by bulk import.
func (s *SQLiteStore) PutBlob(ctx context.Context, key string, data []byte) (string, error) {
	if err := s.guard(key); err != nil {
		return "", err
	}

	id := uuid.Must(uuid.NewV7()).String()
	_, err := s.db.ExecContext(ctx, `INSERT INTO blobs (id, data) VALUES (?, ?)`, id, data)
	if err != nil {
		return "", err
	}

	return id, nil
}

// BlobCount reports the number of stored blobs.
func (s *SQLiteStore) BlobCount(ctx context.Context, key string) (int, error) {
	if err := s.guard(key); err != nil {
		return 0, err
	}

	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM blobs`).Scan(&n)
	return n, err
}

func (s *SQLiteStore) releaseBlob(ctx context.Context, blobRef string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM blobs WHERE id = ?`, blobRef)
	return err
}

func scanMessages(rows *sql.Rows) ([]model.Message, error) {
	var messages []model.Message
	for rows.Next() {
		var msg model.Message
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.ProjectID, &msg.Role, &msg.Content, &msg.Status, &msg.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}
