package repo

import (
	"context"
	"database/sql"

	"github.com/renliu0x/askdoc/internal/model"
	appErr "github.com/renliu0x/askdoc/internal/pkg/errors"
)

type DocumentRepo struct {
	db *sql.DB
}

func NewDocumentRepo(db *sql.DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

func (r *DocumentRepo) Create(ctx context.Context, doc *model.Document) error {
	const query = `
		INSERT INTO documents (id, session_id, name, file_key, doc_type, status, chunk_count, ctime, mtime)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		doc.ID,
		doc.SessionID,
		doc.Name,
		doc.FileKey,
		doc.DocType,
		doc.Status,
		doc.ChunkCount,
		doc.Ctime,
		doc.Mtime,
	)
	return err
}

func (r *DocumentRepo) Get(ctx context.Context, docID string) (*model.Document, error) {
	const query = `
		SELECT id, session_id, name, file_key, doc_type, status, chunk_count, ctime, mtime
		FROM documents
		WHERE id = $1
	`
	row := r.db.QueryRowContext(ctx, query, docID)
	var doc model.Document
	if err := row.Scan(
		&doc.ID,
		&doc.SessionID,
		&doc.Name,
		&doc.FileKey,
		&doc.DocType,
		&doc.Status,
		&doc.ChunkCount,
		&doc.Ctime,
		&doc.Mtime,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return &doc, nil
}

func (r *DocumentRepo) MarkIndexed(ctx context.Context, docID string, chunkCount int, mtime int64) error {
	const query = `UPDATE documents SET status = $2, chunk_count = $3, mtime = $4 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, docID, model.DocumentStatusIndexed, chunkCount, mtime)
	return err
}

// MarkFailed puts the document into the failed state with zero indexed
// chunks visible.
func (r *DocumentRepo) MarkFailed(ctx context.Context, docID string, mtime int64) error {
	const query = `UPDATE documents SET status = $2, chunk_count = 0, mtime = $3 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, docID, model.DocumentStatusFailed, mtime)
	return err
}

func (r *DocumentRepo) ListBySession(ctx context.Context, sessionID string) ([]*model.Document, error) {
	const query = `
		SELECT id, session_id, name, file_key, doc_type, status, chunk_count, ctime, mtime
		FROM documents
		WHERE session_id = $1
		ORDER BY ctime
	`
	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var docs []*model.Document
	for rows.Next() {
		var doc model.Document
		if err := rows.Scan(
			&doc.ID,
			&doc.SessionID,
			&doc.Name,
			&doc.FileKey,
			&doc.DocType,
			&doc.Status,
			&doc.ChunkCount,
			&doc.Ctime,
			&doc.Mtime,
		); err != nil {
			return nil, err
		}
		docs = append(docs, &doc)
	}
	return docs, rows.Err()
}

func (r *DocumentRepo) Delete(ctx context.Context, docID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, docID)
	return err
}
