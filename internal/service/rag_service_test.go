package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/renliu0x/askdoc/internal/embedder"
	"github.com/renliu0x/askdoc/internal/model"
	"github.com/renliu0x/askdoc/internal/vector"
)

type memChunkSource struct {
	chunks []*model.Chunk
}

func (m *memChunkSource) Replace(ctx context.Context, documentID string, chunks []*model.Chunk, replaceExisting bool) error {
	m.chunks = append(m.chunks, chunks...)
	return nil
}

func (m *memChunkSource) ListMetaPage(ctx context.Context, sessionID string, limit, offset int) ([]*model.Chunk, error) {
	var session []*model.Chunk
	for _, c := range m.chunks {
		if c.SessionID == sessionID {
			session = append(session, c)
		}
	}
	if offset >= len(session) {
		return nil, nil
	}
	end := offset + limit
	if end > len(session) {
		end = len(session)
	}
	return session[offset:end], nil
}

func (m *memChunkSource) GetVectors(ctx context.Context, ids []string) (map[string][]float32, error) {
	result := make(map[string][]float32, len(ids))
	for _, c := range m.chunks {
		for _, id := range ids {
			if c.ID == id {
				result[id] = c.Embedding
			}
		}
	}
	return result, nil
}

func (m *memChunkSource) CountBySession(ctx context.Context, sessionID string) (int, error) {
	count := 0
	for _, c := range m.chunks {
		if c.SessionID == sessionID {
			count++
		}
	}
	return count, nil
}

func (m *memChunkSource) RecentContentBySession(ctx context.Context, sessionID string, limit int) ([]string, error) {
	return nil, nil
}

type stubEmbedder struct{}

func (stubEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	return []float32{1, 0}, nil
}

func (stubEmbedder) ModelName() string { return "stub-embed" }

type recordingGenerator struct {
	reply string
	fail  error
	calls int
}

func (g *recordingGenerator) Name() string { return "recording" }

func (g *recordingGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.calls++
	if g.fail != nil {
		return "", g.fail
	}
	return g.reply, nil
}

func (g *recordingGenerator) GenerateStream(ctx context.Context, prompt string, sink func(token string) error) (string, error) {
	g.calls++
	if g.fail != nil {
		return "", g.fail
	}
	if sink != nil {
		if err := sink(g.reply); err != nil {
			return "", err
		}
	}
	return g.reply, nil
}

type memTurns struct {
	turns []*model.Turn
}

func (m *memTurns) AppendTurn(ctx context.Context, turn *model.Turn) error {
	m.turns = append(m.turns, turn)
	return nil
}

func (m *memTurns) RecentTurns(ctx context.Context, sessionID string, limit int) ([]*model.Turn, error) {
	var out []*model.Turn
	for _, turn := range m.turns {
		if turn.SessionID == sessionID {
			out = append(out, turn)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *memTurns) CountBySession(ctx context.Context, sessionID string) (int, error) {
	count := 0
	for _, turn := range m.turns {
		if turn.SessionID == sessionID {
			count++
		}
	}
	return count, nil
}

func newTestRAG(t *testing.T, source *memChunkSource, gen *recordingGenerator, cfg RAGConfig) *RAGService {
	t.Helper()
	store, err := vector.NewStore(source, 50)
	require.NoError(t, err)
	be := embedder.NewBatchEmbedder(stubEmbedder{})
	return NewRAGService(store, be, gen, &memTurns{}, cfg)
}

func seedChunks(source *memChunkSource, sessionID string, vecs ...[]float32) {
	for i, vec := range vecs {
		source.chunks = append(source.chunks, &model.Chunk{
			ID:         fmt.Sprintf("chunk-%d", i),
			DocumentID: "doc-1",
			SessionID:  sessionID,
			Content:    fmt.Sprintf("passage %d", i),
			Embedding:  vec,
			Dims:       len(vec),
		})
	}
}

func TestRunQueryNoContextSkipsGeneration(t *testing.T) {
	gen := &recordingGenerator{reply: "should never be used"}
	rag := newTestRAG(t, &memChunkSource{}, gen, RAGConfig{})

	answer, err := rag.RunQuery(context.Background(), "sess-1", "what is this?", nil, QueryOptions{})
	require.NoError(t, err)
	require.Equal(t, 0, gen.calls)
	require.False(t, answer.Grounded)
	require.Empty(t, answer.Sources)
	require.Equal(t, cannedNoContextAnswer, answer.Text)
}

func TestRunQueryThresholdFiltersAll(t *testing.T) {
	source := &memChunkSource{}
	seedChunks(source, "sess-1", []float32{0, 1}) // orthogonal to the query
	gen := &recordingGenerator{reply: "unused"}
	rag := newTestRAG(t, source, gen, RAGConfig{ScoreThreshold: 0.5})

	answer, err := rag.RunQuery(context.Background(), "sess-1", "question", nil, QueryOptions{})
	require.NoError(t, err)
	require.Equal(t, 0, gen.calls)
	require.False(t, answer.Grounded)
}

func TestRunQueryGroundedAnswer(t *testing.T) {
	source := &memChunkSource{}
	seedChunks(source, "sess-1", []float32{1, 0}, []float32{0.9, 0.1})
	gen := &recordingGenerator{reply: "The passage says hello."}
	rag := newTestRAG(t, source, gen, RAGConfig{TopK: 2})

	answer, err := rag.RunQuery(context.Background(), "sess-1", "what does it say?", nil, QueryOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, gen.calls)
	require.True(t, answer.Grounded)
	require.Len(t, answer.Sources, 2)
	require.Equal(t, "The passage says hello.", answer.Text)
}

func TestRunQueryAnswerCache(t *testing.T) {
	source := &memChunkSource{}
	seedChunks(source, "sess-1", []float32{1, 0})
	gen := &recordingGenerator{reply: "cached reply"}
	rag := newTestRAG(t, source, gen, RAGConfig{})

	first, err := rag.RunQuery(context.Background(), "sess-1", "same question", nil, QueryOptions{})
	require.NoError(t, err)
	second, err := rag.RunQuery(context.Background(), "sess-1", "same question", nil, QueryOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, gen.calls)
	require.Same(t, first, second)

	// A different style is a different cache entry.
	_, err = rag.RunQuery(context.Background(), "sess-1", "same question", nil, QueryOptions{Style: model.AnswerStyleStructured})
	require.NoError(t, err)
	require.Equal(t, 2, gen.calls)
}

func TestRunQueryStructuredStyle(t *testing.T) {
	source := &memChunkSource{}
	seedChunks(source, "sess-1", []float32{1, 0})
	gen := &recordingGenerator{reply: "## Answer\nYes.\n\n## Key Points\n- one"}
	rag := newTestRAG(t, source, gen, RAGConfig{})

	answer, err := rag.RunQuery(context.Background(), "sess-1", "structured?", nil, QueryOptions{Style: model.AnswerStyleStructured})
	require.NoError(t, err)
	require.NotNil(t, answer.Structured)
	require.Equal(t, "Yes.", answer.Structured.Answer)
	require.Equal(t, "- one", answer.Structured.KeyPoints)
	require.Equal(t, placeholderEvidence, answer.Structured.Evidence)
	require.Equal(t, placeholderFollowUp, answer.Structured.FollowUp)
}

func TestRunQueryGenerationFailureSurfaces(t *testing.T) {
	source := &memChunkSource{}
	seedChunks(source, "sess-1", []float32{1, 0})
	gen := &recordingGenerator{fail: fmt.Errorf("backend down")}
	rag := newTestRAG(t, source, gen, RAGConfig{})

	_, err := rag.RunQuery(context.Background(), "sess-1", "question", nil, QueryOptions{})
	require.ErrorContains(t, err, "backend down")
}

func TestRunQueryStreamingDeliversTokens(t *testing.T) {
	source := &memChunkSource{}
	seedChunks(source, "sess-1", []float32{1, 0})
	gen := &recordingGenerator{reply: "streamed text"}
	rag := newTestRAG(t, source, gen, RAGConfig{})

	var tokens []string
	answer, err := rag.RunQueryStreaming(context.Background(), "sess-1", "question", nil, QueryOptions{}, nil,
		func(token string) error {
			tokens = append(tokens, token)
			return nil
		})
	require.NoError(t, err)
	require.Equal(t, []string{"streamed text"}, tokens)
	require.Equal(t, "streamed text", answer.Text)
}

func TestShouldRunAsync(t *testing.T) {
	source := &memChunkSource{}
	seedChunks(source, "sess-big", []float32{1, 0}, []float32{0, 1}, []float32{1, 1})
	turns := &memTurns{}
	for i := 0; i < 5; i++ {
		require.NoError(t, turns.AppendTurn(context.Background(), &model.Turn{
			SessionID: "sess-chatty",
			Role:      model.TurnRoleUser,
			Content:   "question",
		}))
	}
	store, err := vector.NewStore(source, 50)
	require.NoError(t, err)
	rag := NewRAGService(store, embedder.NewBatchEmbedder(stubEmbedder{}), &recordingGenerator{}, turns,
		RAGConfig{AsyncChunkLimit: 2, AsyncTurnLimit: 4, HistoryTurns: 2})

	require.True(t, rag.ShouldRunAsync(context.Background(), "sess-big"))
	require.False(t, rag.ShouldRunAsync(context.Background(), "sess-small"))
	// The whole conversation length decides, not the prompt history
	// window, which is far smaller.
	require.True(t, rag.ShouldRunAsync(context.Background(), "sess-chatty"))
}

func TestBuildGroundedPromptTruncatesHistory(t *testing.T) {
	history := []*model.Turn{
		{Role: model.TurnRoleUser, Content: "oldest"},
		{Role: model.TurnRoleAssistant, Content: "old reply"},
		{Role: model.TurnRoleUser, Content: "newest"},
	}
	candidates := []model.Candidate{{Content: "ctx", Score: 0.9}}
	prompt := buildGroundedPrompt("q", history, candidates, 2, model.AnswerStylePlain)
	require.NotContains(t, prompt, "oldest")
	require.Contains(t, prompt, "newest")
	require.Contains(t, prompt, "ctx")
	require.Contains(t, prompt, "q")
}
