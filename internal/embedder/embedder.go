package embedder

import (
	"context"
	"fmt"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/renliu0x/askdoc/internal/ai"
)

const (
	TaskTypeDocument = "RETRIEVAL_DOCUMENT"
	TaskTypeQuery    = "RETRIEVAL_QUERY"
)

// ProgressFunc receives (processed, total) after every internal batch
// so the caller can project overall progress.
type ProgressFunc func(processed, total int)

type BatchEmbedder struct {
	embedder ai.IEmbedder
}

func NewBatchEmbedder(e ai.IEmbedder) *BatchEmbedder {
	return &BatchEmbedder{embedder: e}
}

// EmbedBatch converts texts into one vector per text, order-preserving.
// The batch size only controls backpressure between progress reports; a
// batch of 1 yields identical vectors to any other size. Any backend
// error fails the whole call so the caller never indexes partial or
// misaligned vectors.
func (b *BatchEmbedder) EmbedBatch(ctx context.Context, texts []string, batchSize int, onProgress ProgressFunc) ([][]float32, error) {
	if b.embedder == nil {
		return nil, fmt.Errorf("embedder not configured")
	}
	total := len(texts)
	if total == 0 {
		return nil, nil
	}
	if batchSize <= 0 {
		batchSize = 8
	}
	logger := logutil.GetLogger(ctx).With(
		zap.Int("total", total),
		zap.Int("batch_size", batchSize),
	)
	vectors := make([][]float32, 0, total)
	dims := 0
	for start := 0; start < total; start += batchSize {
		end := start + batchSize
		if end > total {
			end = total
		}
		for i := start; i < end; i++ {
			vec, err := b.embedder.Embed(ctx, texts[i], TaskTypeDocument)
			if err != nil {
				return nil, fmt.Errorf("embed item %d/%d: %w", i+1, total, err)
			}
			if len(vec) == 0 {
				return nil, fmt.Errorf("embed item %d/%d: empty vector", i+1, total)
			}
			if dims == 0 {
				dims = len(vec)
			} else if len(vec) != dims {
				return nil, fmt.Errorf("embed item %d/%d: dimension mismatch %d != %d", i+1, total, len(vec), dims)
			}
			vectors = append(vectors, vec)
		}
		if onProgress != nil {
			onProgress(end, total)
		}
		logger.Debug("embedding batch done", zap.Int("processed", end))
	}
	return vectors, nil
}

// EmbedQuery embeds a single retrieval question.
func (b *BatchEmbedder) EmbedQuery(ctx context.Context, question string) ([]float32, error) {
	if b.embedder == nil {
		return nil, fmt.Errorf("embedder not configured")
	}
	return b.embedder.Embed(ctx, question, TaskTypeQuery)
}

func (b *BatchEmbedder) ModelName() string {
	if b.embedder == nil {
		return ""
	}
	return b.embedder.ModelName()
}
