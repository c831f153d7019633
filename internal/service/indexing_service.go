package service

import (
	"context"
	"io"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/renliu0x/askdoc/internal/chunker"
	"github.com/renliu0x/askdoc/internal/embedder"
	"github.com/renliu0x/askdoc/internal/extract"
	"github.com/renliu0x/askdoc/internal/filestore"
	appErr "github.com/renliu0x/askdoc/internal/pkg/errors"
	"github.com/renliu0x/askdoc/internal/pkg/timeutil"
	"github.com/renliu0x/askdoc/internal/repo"
	"github.com/renliu0x/askdoc/internal/vector"
)

// IndexingService drives one document through
// extract -> chunk -> embed -> store and finalizes its status. It does
// not retry; failures propagate to the job engine for retry
// accounting.
type IndexingService struct {
	docs          *repo.DocumentRepo
	files         filestore.Store
	embedder      *embedder.BatchEmbedder
	store         *vector.Store
	charsPerToken int
}

func NewIndexingService(docs *repo.DocumentRepo, files filestore.Store, be *embedder.BatchEmbedder, store *vector.Store) *IndexingService {
	return &IndexingService{
		docs:          docs,
		files:         files,
		embedder:      be,
		store:         store,
		charsPerToken: chunker.DefaultCharsPerToken,
	}
}

// IndexDocument returns the number of chunks indexed. Progress moves
// through parsing (0-10), chunking (10-20) and embedding (20-100); each
// stage owns a disjoint sub-range so polling clients always see it
// advance.
func (s *IndexingService) IndexDocument(ctx context.Context, docID string, onProgress ProgressFunc) (int, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("doc_id", docID))
	count, err := s.run(ctx, docID, onProgress)
	if err != nil {
		logger.Error("indexing failed", zap.Error(err))
		if markErr := s.docs.MarkFailed(ctx, docID, timeutil.NowUnix()); markErr != nil {
			logger.Error("mark document failed errored", zap.Error(markErr))
		}
		return 0, err
	}
	logger.Info("document indexed", zap.Int("chunks", count))
	return count, nil
}

func (s *IndexingService) run(ctx context.Context, docID string, onProgress ProgressFunc) (int, error) {
	doc, err := s.docs.Get(ctx, docID)
	if err != nil {
		return 0, err
	}
	report(onProgress, StageParsing, 0)

	reader, err := s.files.Open(ctx, doc.FileKey)
	if err != nil {
		return 0, err
	}
	data, err := io.ReadAll(reader)
	_ = reader.Close()
	if err != nil {
		return 0, err
	}
	text, err := extract.Text(data, doc.DocType)
	if err != nil {
		return 0, err
	}
	report(onProgress, StageParsing, 10)

	params := chunker.ParamsFor(len(text), s.charsPerToken)
	size, overlap := params.SizeChars(s.charsPerToken)
	segments := chunker.Split(text, size, overlap)
	if len(segments) == 0 {
		return 0, appErr.ErrNoChunks
	}
	report(onProgress, StageChunking, 20)

	vectors, err := s.embedder.EmbedBatch(ctx, segments, params.BatchSize, func(processed, total int) {
		report(onProgress, StageEmbedding, 20+70*processed/total)
	})
	if err != nil {
		return 0, err
	}

	items := make([]vector.Item, 0, len(segments))
	for i, segment := range segments {
		items = append(items, vector.Item{
			Position: i,
			Text:     segment,
			Vector:   vectors[i],
		})
	}
	count, err := s.store.AddChunks(ctx, doc.ID, doc.SessionID, items, true)
	if err != nil {
		return 0, err
	}
	if err := s.docs.MarkIndexed(ctx, doc.ID, count, timeutil.NowUnix()); err != nil {
		return 0, err
	}
	report(onProgress, StageEmbedding, 100)
	return count, nil
}
