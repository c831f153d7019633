package embedder

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct {
	calls   int
	failOn  string
	baddims string
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	f.calls++
	if text == f.failOn {
		return nil, fmt.Errorf("backend rejected %q", text)
	}
	if text == f.baddims {
		return []float32{1}, nil
	}
	// Deterministic per-text vector independent of call order.
	return []float32{float32(len(text)), 1}, nil
}

func (f *fakeEmbedder) ModelName() string {
	return "fake-embed"
}

func TestEmbedBatchOrderAndBatchSizeIndependence(t *testing.T) {
	texts := []string{"a", "bb", "ccc", "dddd", "eeeee", "ffffff", "g"}

	embedOne := NewBatchEmbedder(&fakeEmbedder{})
	one, err := embedOne.EmbedBatch(context.Background(), texts, 1, nil)
	require.NoError(t, err)

	embedBig := NewBatchEmbedder(&fakeEmbedder{})
	big, err := embedBig.EmbedBatch(context.Background(), texts, 100, nil)
	require.NoError(t, err)

	require.Equal(t, one, big)
	require.Len(t, one, len(texts))
	for i, text := range texts {
		require.Equal(t, float32(len(text)), one[i][0])
	}
}

func TestEmbedBatchProgress(t *testing.T) {
	texts := []string{"a", "b", "c", "d", "e"}
	be := NewBatchEmbedder(&fakeEmbedder{})

	var reports [][2]int
	_, err := be.EmbedBatch(context.Background(), texts, 2, func(processed, total int) {
		reports = append(reports, [2]int{processed, total})
	})
	require.NoError(t, err)
	require.Equal(t, [][2]int{{2, 5}, {4, 5}, {5, 5}}, reports)
}

func TestEmbedBatchFailsWhole(t *testing.T) {
	be := NewBatchEmbedder(&fakeEmbedder{failOn: "bad"})
	vectors, err := be.EmbedBatch(context.Background(), []string{"ok", "bad", "fine"}, 10, nil)
	require.Error(t, err)
	require.Nil(t, vectors)
}

func TestEmbedBatchDimensionMismatch(t *testing.T) {
	be := NewBatchEmbedder(&fakeEmbedder{baddims: "odd"})
	_, err := be.EmbedBatch(context.Background(), []string{"ok", "odd"}, 10, nil)
	require.ErrorContains(t, err, "dimension mismatch")
}

func TestEmbedBatchEmptyInput(t *testing.T) {
	be := NewBatchEmbedder(&fakeEmbedder{})
	vectors, err := be.EmbedBatch(context.Background(), nil, 8, nil)
	require.NoError(t, err)
	require.Nil(t, vectors)
}
