package jobengine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/renliu0x/askdoc/internal/model"
	appErr "github.com/renliu0x/askdoc/internal/pkg/errors"
	"github.com/renliu0x/askdoc/internal/service"
)

// IndexDocumentHandler runs the full ingestion pipeline for one
// document. The result payload records the number of chunks written.
func IndexDocumentHandler(indexer *service.IndexingService) Handler {
	return func(ctx context.Context, job *model.Job, onProgress func(stage string, percent int)) (string, error) {
		var payload model.IndexDocumentPayload
		if err := json.Unmarshal([]byte(job.Payload), &payload); err != nil {
			return "", fmt.Errorf("%w: decode index payload: %v", appErr.ErrInvalid, err)
		}
		chunkCount, err := indexer.IndexDocument(ctx, payload.DocumentID, onProgress)
		if err != nil {
			return "", err
		}
		result, _ := json.Marshal(map[string]int{"chunk_count": chunkCount})
		return string(result), nil
	}
}

// AnswerQueryHandler answers a question asynchronously. The exchange
// is appended to the conversation only after a successful run, so a
// retried attempt never duplicates turns.
func AnswerQueryHandler(rag *service.RAGService) Handler {
	return func(ctx context.Context, job *model.Job, onProgress func(stage string, percent int)) (string, error) {
		var payload model.AnswerQueryPayload
		if err := json.Unmarshal([]byte(job.Payload), &payload); err != nil {
			return "", fmt.Errorf("%w: decode query payload: %v", appErr.ErrInvalid, err)
		}
		history, err := rag.RecentHistory(ctx, payload.SessionID)
		if err != nil {
			return "", fmt.Errorf("load history: %w", err)
		}
		answer, err := rag.RunQueryStreaming(ctx, payload.SessionID, payload.Question, history,
			service.QueryOptions{Style: payload.Style}, onProgress, nil)
		if err != nil {
			return "", err
		}
		if err := rag.RecordExchange(ctx, payload.SessionID, payload.Question, answer); err != nil {
			return "", fmt.Errorf("record exchange: %w", err)
		}
		result, err := json.Marshal(answer)
		if err != nil {
			return "", fmt.Errorf("encode answer: %w", err)
		}
		return string(result), nil
	}
}
