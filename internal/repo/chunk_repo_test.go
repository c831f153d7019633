package repo_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/renliu0x/askdoc/internal/model"
	appErr "github.com/renliu0x/askdoc/internal/pkg/errors"
	"github.com/renliu0x/askdoc/internal/pkg/timeutil"
	"github.com/renliu0x/askdoc/internal/repo"
)

func testChunk(id, docID, sessionID, content, idemKey string, vec []float32, ctime int64) *model.Chunk {
	return &model.Chunk{
		ID:         id,
		DocumentID: docID,
		SessionID:  sessionID,
		Content:    content,
		Embedding:  vec,
		Dims:       len(vec),
		IdemKey:    idemKey,
		Ctime:      ctime,
	}
}

func TestChunkRepoReplaceAndRead(t *testing.T) {
	conn, cleanup := openTestDB(t)
	defer cleanup()

	chunks := repo.NewChunkRepo(conn)
	now := timeutil.NowUnix()
	ctx := context.Background()

	err := chunks.Replace(ctx, "doc-1", []*model.Chunk{
		testChunk("c1", "doc-1", "sess-1", "first", "k1", []float32{1, 0, 0}, now),
		testChunk("c2", "doc-1", "sess-1", "second", "k2", []float32{0, 1, 0}, now+1),
	}, true)
	require.NoError(t, err)

	page, err := chunks.ListMetaPage(ctx, "sess-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.Equal(t, "first", page[0].Content)
	require.Equal(t, "second", page[1].Content)

	vectors, err := chunks.GetVectors(ctx, []string{"c1", "c2"})
	require.NoError(t, err)
	require.Equal(t, []float32{1, 0, 0}, vectors["c1"])
	require.Equal(t, []float32{0, 1, 0}, vectors["c2"])

	count, err := chunks.CountBySession(ctx, "sess-1")
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestChunkRepoReplaceIsAtomic(t *testing.T) {
	conn, cleanup := openTestDB(t)
	defer cleanup()

	chunks := repo.NewChunkRepo(conn)
	now := timeutil.NowUnix()
	ctx := context.Background()

	require.NoError(t, chunks.Replace(ctx, "doc-1", []*model.Chunk{
		testChunk("old-1", "doc-1", "sess-1", "old", "k1", []float32{1, 0}, now),
	}, true))

	// Replacing swaps the whole set.
	require.NoError(t, chunks.Replace(ctx, "doc-1", []*model.Chunk{
		testChunk("new-1", "doc-1", "sess-1", "new a", "k1", []float32{0, 1}, now+1),
		testChunk("new-2", "doc-1", "sess-1", "new b", "k2", []float32{1, 1}, now+2),
	}, true))

	page, err := chunks.ListMetaPage(ctx, "sess-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.Equal(t, "new a", page[0].Content)

	// A duplicate idem key without replacement is rejected and the
	// whole write rolls back.
	err = chunks.Replace(ctx, "doc-1", []*model.Chunk{
		testChunk("dup-1", "doc-1", "sess-1", "dup", "k1", []float32{1, 0}, now+3),
	}, false)
	require.ErrorIs(t, err, appErr.ErrConflict)

	count, err := chunks.CountByDocument(ctx, "doc-1")
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestChunkRepoPaging(t *testing.T) {
	conn, cleanup := openTestDB(t)
	defer cleanup()

	chunks := repo.NewChunkRepo(conn)
	now := timeutil.NowUnix()
	ctx := context.Background()

	var batch []*model.Chunk
	for i := 0; i < 5; i++ {
		batch = append(batch, testChunk(
			string(rune('a'+i))+"-chunk", "doc-1", "sess-1",
			"content", string(rune('a'+i)), []float32{float32(i), 1}, now+int64(i),
		))
	}
	require.NoError(t, chunks.Replace(ctx, "doc-1", batch, true))

	first, err := chunks.ListMetaPage(ctx, "sess-1", 2, 0)
	require.NoError(t, err)
	require.Len(t, first, 2)
	second, err := chunks.ListMetaPage(ctx, "sess-1", 2, 2)
	require.NoError(t, err)
	require.Len(t, second, 2)
	require.NotEqual(t, first[0].ID, second[0].ID)
	last, err := chunks.ListMetaPage(ctx, "sess-1", 2, 4)
	require.NoError(t, err)
	require.Len(t, last, 1)
}

func TestChunkRepoDelete(t *testing.T) {
	conn, cleanup := openTestDB(t)
	defer cleanup()

	chunks := repo.NewChunkRepo(conn)
	now := timeutil.NowUnix()
	ctx := context.Background()

	require.NoError(t, chunks.Replace(ctx, "doc-1", []*model.Chunk{
		testChunk("c1", "doc-1", "sess-1", "a", "k1", []float32{1, 0}, now),
	}, true))
	require.NoError(t, chunks.Replace(ctx, "doc-2", []*model.Chunk{
		testChunk("c2", "doc-2", "sess-1", "b", "k1", []float32{0, 1}, now),
	}, true))

	require.NoError(t, chunks.DeleteByDocument(ctx, "doc-1"))
	count, err := chunks.CountBySession(ctx, "sess-1")
	require.NoError(t, err)
	require.Equal(t, 1, count)

	require.NoError(t, chunks.DeleteBySession(ctx, "sess-1"))
	count, err = chunks.CountBySession(ctx, "sess-1")
	require.NoError(t, err)
	require.Equal(t, 0, count)
}

func TestChunkRepoRecentContent(t *testing.T) {
	conn, cleanup := openTestDB(t)
	defer cleanup()

	chunks := repo.NewChunkRepo(conn)
	now := timeutil.NowUnix()
	ctx := context.Background()

	require.NoError(t, chunks.Replace(ctx, "doc-1", []*model.Chunk{
		testChunk("c1", "doc-1", "sess-1", "oldest", "k1", []float32{1, 0}, now),
		testChunk("c2", "doc-1", "sess-1", "middle", "k2", []float32{0, 1}, now+1),
		testChunk("c3", "doc-1", "sess-1", "newest", "k3", []float32{1, 1}, now+2),
	}, true))
	require.NoError(t, chunks.Replace(ctx, "doc-2", []*model.Chunk{
		testChunk("c4", "doc-2", "sess-2", "other session", "k1", []float32{1, 0}, now+3),
	}, true))

	texts, err := chunks.RecentContentBySession(ctx, "sess-1", 2)
	require.NoError(t, err)
	require.Equal(t, []string{"newest", "middle"}, texts)
}
