package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/caserag/ragengine/internal/storage"
	"github.com/caserag/ragengine/internal/storage/models"
	"github.com/caserag/ragengine/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		case_id TEXT NOT NULL,
		name TEXT NOT NULL,
		content TEXT,
		status TEXT NOT NULL,
		size_category TEXT,
		strategy TEXT,
		error TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_documents_case ON documents(case_id);
	CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);

	CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		content TEXT NOT NULL,
		metadata TEXT,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("Database schema initialized")
	return nil
}

func (c *Client) InsertDocument(ctx context.Context, doc *models.Document) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO documents (id, case_id, name, content, status, size_category, strategy, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.CaseID, doc.Name, doc.Content, string(doc.Status),
		string(doc.SizeCategory), string(doc.Strategy), doc.Error,
		doc.CreatedAt.Unix(), doc.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

func (c *Client) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT id, case_id, name, content, status, size_category, strategy, error, created_at, updated_at
		FROM documents WHERE id = ?`, id)
	return scanDocument(row)
}

func (c *Client) ListByCase(ctx context.Context, caseID string, statuses ...models.Status) ([]*models.Document, error) {
	query := `
		SELECT id, case_id, name, content, status, size_category, strategy, error, created_at, updated_at
		FROM documents WHERE case_id = ?`
	args := []any{caseID}

	if len(statuses) > 0 {
		query += " AND status IN (?" + strings.Repeat(",?", len(statuses)-1) + ")"
		for _, s := range statuses {
			args = append(args, string(s))
		}
	}
	query += " ORDER BY created_at"

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// UpdateStatus loads the current status and refuses writes the state
// machine does not allow, so no code path can scribble arbitrary strings
// into the status column.
func (c *Client) UpdateStatus(ctx context.Context, id string, status models.Status, errMsg string) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx, "SELECT status FROM documents WHERE id = ?", id).Scan(&current)
	if err == sql.ErrNoRows {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read document status: %w", err)
	}

	if !models.Status(current).CanTransition(status) {
		return &models.IllegalTransitionError{From: models.Status(current), To: status}
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE documents SET status = ?, error = ?, updated_at = ? WHERE id = ?",
		string(status), errMsg, time.Now().Unix(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}

	return tx.Commit()
}

func (c *Client) DeleteDocument(ctx context.Context, id string) error {
	res, err := c.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (c *Client) InsertChunks(ctx context.Context, chunks []*models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, document_id, chunk_index, content, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		meta, err := json.Marshal(chunk.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal chunk metadata: %w", err)
		}
		_, err = stmt.ExecContext(ctx,
			chunk.ID, chunk.DocumentID, chunk.Index, chunk.Content,
			string(meta), chunk.CreatedAt.Unix(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert chunk: %w", err)
		}
	}

	return tx.Commit()
}

func (c *Client) GetChunks(ctx context.Context, ids []string) ([]*models.Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, document_id, chunk_index, content, metadata, created_at
		FROM chunks WHERE id IN (?` + strings.Repeat(",?", len(ids)-1) + `) ORDER BY chunk_index`
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get chunks: %w", err)
	}
	defer rows.Close()

	return scanChunks(rows)
}

func (c *Client) ListByDocument(ctx context.Context, documentID string) ([]*models.Chunk, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, document_id, chunk_index, content, metadata, created_at
		FROM chunks WHERE document_id = ? ORDER BY chunk_index`, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	defer rows.Close()

	return scanChunks(rows)
}

func (c *Client) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := c.db.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", documentID)
	if err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*models.Document, error) {
	var doc models.Document
	var status, category, strategy string
	var createdAt, updatedAt int64

	err := row.Scan(&doc.ID, &doc.CaseID, &doc.Name, &doc.Content,
		&status, &category, &strategy, &doc.Error, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan document: %w", err)
	}

	doc.Status = models.Status(status)
	doc.SizeCategory = models.SizeCategory(category)
	doc.Strategy = models.Strategy(strategy)
	doc.CreatedAt = time.Unix(createdAt, 0)
	doc.UpdatedAt = time.Unix(updatedAt, 0)
	return &doc, nil
}

func scanChunks(rows *sql.Rows) ([]*models.Chunk, error) {
	var chunks []*models.Chunk
	for rows.Next() {
		var chunk models.Chunk
		var meta string
		var createdAt int64

		err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Index,
			&chunk.Content, &meta, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		if meta != "" {
			if err := json.Unmarshal([]byte(meta), &chunk.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal chunk metadata: %w", err)
			}
		}
		chunk.CreatedAt = time.Unix(createdAt, 0)
		chunks = append(chunks, &chunk)
	}
	return chunks, rows.Err()
}
