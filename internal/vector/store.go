package vector

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/renliu0x/askdoc/internal/model"
	"github.com/renliu0x/askdoc/internal/pkg/timeutil"
)

const DefaultCacheSize = 400

// ChunkSource is the durable side of the store; *repo.ChunkRepo
// implements it.
type ChunkSource interface {
	Replace(ctx context.Context, documentID string, chunks []*model.Chunk, replaceExisting bool) error
	ListMetaPage(ctx context.Context, sessionID string, limit, offset int) ([]*model.Chunk, error)
	GetVectors(ctx context.Context, ids []string) (map[string][]float32, error)
	CountBySession(ctx context.Context, sessionID string) (int, error)
	RecentContentBySession(ctx context.Context, sessionID string, limit int) ([]string, error)
}

// Item is one segment to index: its position within the document, its
// text and its embedding vector.
type Item struct {
	Position int
	Text     string
	Vector   []float32
}

// Store pairs the durable chunk table with an in-process LRU vector
// cache. The cache is a disposable projection; the table is the only
// source of truth. Both the indexing and the retrieval path touch the
// cache, and the lru package serializes access internally.
type Store struct {
	source ChunkSource
	cache  *lru.Cache[string, []float32]
}

func NewStore(source ChunkSource, cacheSize int) (*Store, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, []float32](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Store{source: source, cache: cache}, nil
}

// AddChunks persists the segments of one document. With
// replaceExisting, every prior segment of the document is dropped in
// the same transaction, so a re-index is atomic. The idempotency key
// is a content hash over (position, text): identical input yields
// identical keys, and the unique (document, key) index rejects
// accidental duplicates.
func (s *Store) AddChunks(ctx context.Context, documentID, sessionID string, items []Item, replaceExisting bool) (int, error) {
	if len(items) == 0 {
		return 0, fmt.Errorf("no segments to store for document %s", documentID)
	}
	now := timeutil.NowUnix()
	chunks := make([]*model.Chunk, 0, len(items))
	for _, item := range items {
		key := IdemKey(item.Position, item.Text)
		chunks = append(chunks, &model.Chunk{
			ID:         chunkID(documentID, key),
			DocumentID: documentID,
			SessionID:  sessionID,
			Content:    item.Text,
			Embedding:  item.Vector,
			Dims:       len(item.Vector),
			IdemKey:    key,
			Ctime:      now,
		})
	}
	if err := s.source.Replace(ctx, documentID, chunks, replaceExisting); err != nil {
		return 0, err
	}
	// Drop any cached vectors for ids we just rewrote.
	for _, chunk := range chunks {
		s.cache.Remove(chunk.ID)
	}
	return len(chunks), nil
}

// SimilaritySearch scans every chunk of the session in pages of
// pageSize, scoring each against queryVec, and returns the topK
// candidates by descending score. The scan is complete across all
// pages; paging only bounds memory. Chunks with undefined similarity
// are excluded. Ties keep stable input order.
func (s *Store) SimilaritySearch(ctx context.Context, sessionID string, queryVec []float32, topK, pageSize int) ([]model.Candidate, error) {
	if topK <= 0 {
		return nil, nil
	}
	if pageSize <= 0 {
		pageSize = 100
	}
	logger := logutil.GetLogger(ctx).With(zap.String("session_id", sessionID))
	var candidates []model.Candidate
	scanned := 0
	for offset := 0; ; offset += pageSize {
		page, err := s.source.ListMetaPage(ctx, sessionID, pageSize, offset)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		vectors, err := s.vectorsFor(ctx, page)
		if err != nil {
			return nil, err
		}
		for _, chunk := range page {
			vec, ok := vectors[chunk.ID]
			if !ok {
				continue
			}
			score, ok := Cosine(queryVec, vec)
			if !ok {
				continue
			}
			candidates = append(candidates, model.Candidate{
				ChunkID:    chunk.ID,
				DocumentID: chunk.DocumentID,
				Content:    chunk.Content,
				Score:      score,
			})
		}
		scanned += len(page)
		if len(page) < pageSize {
			break
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if topK > len(candidates) {
		topK = len(candidates)
	}
	logger.Debug("similarity search done",
		zap.Int("scanned", scanned),
		zap.Int("scored", len(candidates)),
		zap.Int("top_k", topK),
	)
	return candidates[:topK], nil
}

// vectorsFor pulls page vectors through the LRU cache before loading
// the rest from the source in one batch.
func (s *Store) vectorsFor(ctx context.Context, page []*model.Chunk) (map[string][]float32, error) {
	result := make(map[string][]float32, len(page))
	var missing []string
	for _, chunk := range page {
		if vec, ok := s.cache.Get(chunk.ID); ok {
			result[chunk.ID] = vec
			continue
		}
		missing = append(missing, chunk.ID)
	}
	if len(missing) == 0 {
		return result, nil
	}
	loaded, err := s.source.GetVectors(ctx, missing)
	if err != nil {
		return nil, err
	}
	for id, vec := range loaded {
		result[id] = vec
		s.cache.Add(id, vec)
	}
	return result, nil
}

func (s *Store) ChunkCountForSession(ctx context.Context, sessionID string) (int, error) {
	return s.source.CountBySession(ctx, sessionID)
}

func (s *Store) RecentTextsForSession(ctx context.Context, sessionID string, limit int) ([]string, error) {
	return s.source.RecentContentBySession(ctx, sessionID, limit)
}

func (s *Store) CacheLen() int {
	return s.cache.Len()
}

// IdemKey hashes (position, text) so re-chunking identical input
// always yields the same key.
func IdemKey(position int, text string) string {
	hash := sha256.Sum256([]byte(fmt.Sprintf("%d\x00%s", position, text)))
	return hex.EncodeToString(hash[:])
}

func chunkID(documentID, idemKey string) string {
	hash := sha256.Sum256([]byte(documentID + ":" + idemKey))
	return hex.EncodeToString(hash[:16])
}
