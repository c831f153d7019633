package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/didi/gendry/builder"
	"github.com/pgvector/pgvector-go"

	"github.com/renliu0x/askdoc/internal/model"
	"github.com/renliu0x/askdoc/internal/pkg/dbutil"
	appErr "github.com/renliu0x/askdoc/internal/pkg/errors"
)

type ChunkRepo struct {
	db *sql.DB
}

func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// Replace inserts the chunks of one document inside a single
// transaction. With replaceExisting, all prior chunks of the document
// are deleted first, so readers either see the old set or the new set,
// never a mix.
func (r *ChunkRepo) Replace(ctx context.Context, documentID string, chunks []*model.Chunk, replaceExisting bool) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()
	if replaceExisting {
		if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID); err != nil {
			return fmt.Errorf("delete prior chunks: %w", err)
		}
	}
	for _, chunk := range chunks {
		data := map[string]interface{}{
			"id":          chunk.ID,
			"document_id": chunk.DocumentID,
			"session_id":  chunk.SessionID,
			"content":     chunk.Content,
			"embedding":   pgvector.NewVector(chunk.Embedding),
			"dims":        chunk.Dims,
			"idem_key":    chunk.IdemKey,
			"ctime":       chunk.Ctime,
		}
		sqlStr, args, err := builder.BuildInsert("chunks", []map[string]interface{}{data})
		if err != nil {
			return err
		}
		sqlStr, args = dbutil.Finalize(sqlStr, args)
		if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
			if dbutil.IsConflict(err) {
				return fmt.Errorf("%w: duplicate chunk for document %s", appErr.ErrConflict, documentID)
			}
			return fmt.Errorf("insert chunk: %w", err)
		}
	}
	return tx.Commit()
}

// ListMetaPage returns one page of a session's chunks without their
// vectors, ordered by insertion. Vectors are fetched separately so hot
// ones can come from the cache instead of being re-parsed per scan.
func (r *ChunkRepo) ListMetaPage(ctx context.Context, sessionID string, limit, offset int) ([]*model.Chunk, error) {
	const query = `
		SELECT id, document_id, content
		FROM chunks
		WHERE session_id = $1
		ORDER BY ctime, id
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.QueryContext(ctx, query, sessionID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var chunks []*model.Chunk
	for rows.Next() {
		var chunk model.Chunk
		chunk.SessionID = sessionID
		if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Content); err != nil {
			return nil, err
		}
		chunks = append(chunks, &chunk)
	}
	return chunks, rows.Err()
}

// GetVectors fetches embedding vectors for the given chunk ids.
func (r *ChunkRepo) GetVectors(ctx context.Context, ids []string) (map[string][]float32, error) {
	if len(ids) == 0 {
		return map[string][]float32{}, nil
	}
	where := map[string]interface{}{
		"id in": ids,
	}
	sqlStr, args, err := builder.BuildSelect("chunks", where, []string{"id", "embedding"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := make(map[string][]float32, len(ids))
	for rows.Next() {
		var id string
		var vec pgvector.Vector
		if err := rows.Scan(&id, &vec); err != nil {
			return nil, err
		}
		result[id] = vec.Slice()
	}
	return result, rows.Err()
}

func (r *ChunkRepo) CountBySession(ctx context.Context, sessionID string) (int, error) {
	const query = `SELECT COUNT(*) FROM chunks WHERE session_id = $1`
	var count int
	if err := r.db.QueryRowContext(ctx, query, sessionID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ChunkRepo) CountByDocument(ctx context.Context, documentID string) (int, error) {
	const query = `SELECT COUNT(*) FROM chunks WHERE document_id = $1`
	var count int
	if err := r.db.QueryRowContext(ctx, query, documentID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// RecentContentBySession returns the newest chunk texts of a session.
func (r *ChunkRepo) RecentContentBySession(ctx context.Context, sessionID string, limit int) ([]string, error) {
	const query = `
		SELECT content
		FROM chunks
		WHERE session_id = $1
		ORDER BY ctime DESC, id DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var texts []string
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return nil, err
		}
		texts = append(texts, content)
	}
	return texts, rows.Err()
}

func (r *ChunkRepo) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID)
	return err
}

func (r *ChunkRepo) DeleteBySession(ctx context.Context, sessionID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM chunks WHERE session_id = $1`, sessionID)
	return err
}
