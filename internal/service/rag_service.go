package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/renliu0x/askdoc/internal/ai"
	"github.com/renliu0x/askdoc/internal/embedder"
	"github.com/renliu0x/askdoc/internal/model"
	"github.com/renliu0x/askdoc/internal/pkg/timeutil"
	"github.com/renliu0x/askdoc/internal/vector"
)

const cannedNoContextAnswer = "I don't have enough indexed context to answer that. Upload relevant documents to this session and try again."

type RAGConfig struct {
	TopK            int
	PageSize        int
	HistoryTurns    int
	ScoreThreshold  float64
	AnswerCacheSize int
	AsyncChunkLimit int
	AsyncTurnLimit  int
}

type QueryOptions struct {
	TopK  int
	Style string
}

// ConversationStore persists and reads back conversation turns.
// *repo.ConversationRepo is the production implementation.
type ConversationStore interface {
	AppendTurn(ctx context.Context, turn *model.Turn) error
	RecentTurns(ctx context.Context, sessionID string, limit int) ([]*model.Turn, error)
	CountBySession(ctx context.Context, sessionID string) (int, error)
}

// RAGService answers questions over a session's indexed documents:
// embed the question, retrieve top-K chunks, build a grounded prompt,
// generate with model-candidate fallback, then normalize.
type RAGService struct {
	store     *vector.Store
	embedder  *embedder.BatchEmbedder
	generator ai.IGenerator
	turns     ConversationStore
	cache     *expirable.LRU[string, *model.Answer]
	cfg       RAGConfig
}

func NewRAGService(store *vector.Store, be *embedder.BatchEmbedder, generator ai.IGenerator, turns ConversationStore, cfg RAGConfig) *RAGService {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if cfg.HistoryTurns <= 0 {
		cfg.HistoryTurns = 6
	}
	if cfg.AnswerCacheSize <= 0 {
		cfg.AnswerCacheSize = 1000
	}
	return &RAGService{
		store:     store,
		embedder:  be,
		generator: generator,
		turns:     turns,
		cache:     expirable.NewLRU[string, *model.Answer](cfg.AnswerCacheSize, nil, 2*time.Hour),
		cfg:       cfg,
	}
}

// RunQuery answers synchronously without token streaming.
func (s *RAGService) RunQuery(ctx context.Context, sessionID, question string, history []*model.Turn, opts QueryOptions) (*model.Answer, error) {
	cacheKey := s.cacheKey(sessionID, question, opts.Style)
	if cached, ok := s.cache.Get(cacheKey); ok {
		logutil.GetLogger(ctx).Debug("answer cache hit", zap.String("session_id", sessionID))
		return cached, nil
	}
	answer, err := s.run(ctx, sessionID, question, history, opts, nil, nil)
	if err != nil {
		return nil, err
	}
	s.cache.Add(cacheKey, answer)
	return answer, nil
}

// RunQueryStreaming relays each generated token to onToken as soon as
// the backend yields it, then normalizes the accumulated text. The
// answer only counts as received once the stream has completed; a
// broken sink stops emission without corrupting the final payload.
func (s *RAGService) RunQueryStreaming(ctx context.Context, sessionID, question string, history []*model.Turn, opts QueryOptions, onProgress ProgressFunc, onToken func(token string) error) (*model.Answer, error) {
	return s.run(ctx, sessionID, question, history, opts, onProgress, onToken)
}

func (s *RAGService) run(ctx context.Context, sessionID, question string, history []*model.Turn, opts QueryOptions, onProgress ProgressFunc, onToken func(token string) error) (*model.Answer, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("session_id", sessionID))
	topK := opts.TopK
	if topK <= 0 {
		topK = s.cfg.TopK
	}
	style := opts.Style
	if style == "" {
		style = model.AnswerStylePlain
	}

	report(onProgress, StageRetrieving, 0)
	queryVec, err := s.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	report(onProgress, StageRetrieving, 20)

	candidates, err := s.store.SimilaritySearch(ctx, sessionID, queryVec, topK, s.cfg.PageSize)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	if s.cfg.ScoreThreshold > 0 {
		kept := candidates[:0]
		for _, candidate := range candidates {
			if candidate.Score >= s.cfg.ScoreThreshold {
				kept = append(kept, candidate)
			}
		}
		candidates = kept
	}
	report(onProgress, StageRetrieving, 40)

	if len(candidates) == 0 {
		// Not an error: answer with low confidence and skip the
		// generation backend entirely.
		logger.Info("no relevant context for question")
		return s.finalize(cannedNoContextAnswer, style, nil, false), nil
	}

	prompt := buildGroundedPrompt(question, history, candidates, s.cfg.HistoryTurns, style)
	report(onProgress, StageGenerating, 50)

	var raw string
	if onToken != nil {
		raw, err = s.generator.GenerateStream(ctx, prompt, onToken)
	} else {
		raw, err = s.generator.Generate(ctx, prompt)
	}
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("empty answer from generation backend")
	}
	report(onProgress, StageGenerating, 100)
	logger.Info("answer generated", zap.Int("candidates", len(candidates)), zap.Int("raw_len", len(raw)))
	return s.finalize(raw, style, candidates, true), nil
}

func (s *RAGService) finalize(raw, style string, sources []model.Candidate, grounded bool) *model.Answer {
	answer := &model.Answer{
		Style:    style,
		Sources:  sources,
		Grounded: grounded,
	}
	if style == model.AnswerStyleStructured {
		answer.Structured = NormalizeStructured(raw)
	} else {
		answer.Text = NormalizePlain(raw)
	}
	return answer
}

// RecordExchange persists a completed question/answer pair to the
// conversation store.
func (s *RAGService) RecordExchange(ctx context.Context, sessionID, question string, answer *model.Answer) error {
	now := timeutil.NowUnix()
	if err := s.turns.AppendTurn(ctx, &model.Turn{
		SessionID: sessionID,
		Role:      model.TurnRoleUser,
		Content:   question,
		Ctime:     now,
	}); err != nil {
		return err
	}
	text := answer.Text
	if answer.Structured != nil {
		text = answer.Structured.Answer
	}
	return s.turns.AppendTurn(ctx, &model.Turn{
		SessionID: sessionID,
		Role:      model.TurnRoleAssistant,
		Content:   text,
		Ctime:     now,
	})
}

// RecentHistory loads the truncated conversation window used for
// prompting.
func (s *RAGService) RecentHistory(ctx context.Context, sessionID string) ([]*model.Turn, error) {
	return s.turns.RecentTurns(ctx, sessionID, s.cfg.HistoryTurns)
}

// ShouldRunAsync is a capacity heuristic: sessions with a large
// indexed corpus or a long conversation are routed through the job
// engine instead of being answered inline.
func (s *RAGService) ShouldRunAsync(ctx context.Context, sessionID string) bool {
	if s.cfg.AsyncTurnLimit > 0 {
		turnCount, err := s.turns.CountBySession(ctx, sessionID)
		if err != nil {
			logutil.GetLogger(ctx).Warn("turn count for load shedding failed", zap.Error(err))
		} else if turnCount > s.cfg.AsyncTurnLimit {
			return true
		}
	}
	if s.cfg.AsyncChunkLimit <= 0 {
		return false
	}
	count, err := s.store.ChunkCountForSession(ctx, sessionID)
	if err != nil {
		logutil.GetLogger(ctx).Warn("chunk count for load shedding failed", zap.Error(err))
		return false
	}
	return count > s.cfg.AsyncChunkLimit
}

func (s *RAGService) cacheKey(sessionID, question, style string) string {
	hash := sha256.Sum256([]byte(sessionID + "\x00" + question + "\x00" + style))
	return hex.EncodeToString(hash[:])
}

func buildGroundedPrompt(question string, history []*model.Turn, candidates []model.Candidate, historyTurns int, style string) string {
	var sb strings.Builder
	sb.WriteString("You are a document assistant. Answer ONLY from the numbered context passages below.\n")
	sb.WriteString("If the context does not contain the answer, say so plainly. Do not invent facts.\n")
	if style == model.AnswerStyleStructured {
		sb.WriteString("Format the reply with exactly these sections: Answer, Key Points, Evidence, Follow-up.\n")
	}
	if len(history) > historyTurns {
		history = history[len(history)-historyTurns:]
	}
	if len(history) > 0 {
		sb.WriteString("\nRecent conversation:\n")
		for _, turn := range history {
			sb.WriteString(turn.Role)
			sb.WriteString(": ")
			sb.WriteString(turn.Content)
			sb.WriteString("\n")
		}
	}
	sb.WriteString("\nContext passages:\n")
	for i, candidate := range candidates {
		sb.WriteString(fmt.Sprintf("[%d] (score %.3f) %s\n", i+1, candidate.Score, candidate.Content))
	}
	sb.WriteString("\nQuestion: ")
	sb.WriteString(question)
	sb.WriteString("\n")
	return sb.String()
}
