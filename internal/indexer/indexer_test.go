package indexer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/notebase-ai/notebase/internal/model"
)

type flakyEmbedder struct {
	failOn string
}

func (f flakyEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) > 0 && texts[0] == f.failOn {
		return nil, errors.New("provider unreachable")
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1}
	}
	return out, nil
}

func (f flakyEmbedder) ModelName() string { return "flaky-embed" }
func (f flakyEmbedder) MaxBatchSize() int { return 2 }

func TestEmbedChunksReportsFailedOrdinalRange(t *testing.T) {
	ix := New(nil, flakyEmbedder{failOn: "gamma"}, nil, nil, Config{Concurrency: 1, BatchSize: 2, RetryBudget: 1})
	chunks := make([]model.Chunk, 0, 5)
	for i, text := range []string{"alpha", "beta", "gamma", "delta", "epsilon"} {
		chunks = append(chunks, model.Chunk{Ordinal: i, Text: text})
	}
	err := ix.embedChunks(context.Background(), chunks)
	require.Error(t, err)
	require.Contains(t, err.Error(), "embed chunks 2-3")

	// the batch before the failure kept its vectors, the rest never embedded
	require.NotEmpty(t, chunks[0].Embedding)
	require.Empty(t, chunks[4].Embedding)
}
