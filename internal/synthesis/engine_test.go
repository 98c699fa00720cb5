package synthesis

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notebase-ai/notebase/internal/ai"
	"github.com/notebase-ai/notebase/internal/model"
	appErr "github.com/notebase-ai/notebase/internal/pkg/errors"
)

type fakeGenerator struct {
	deltas  []string
	failAt  int // fail after emitting failAt deltas, -1 disables
	failErr error
	calls   int
	gotMsgs []ai.ChatMessage
}

func (f *fakeGenerator) Generate(ctx context.Context, msgs []ai.ChatMessage, opts ai.GenerateOptions) (string, error) {
	return strings.Join(f.deltas, ""), nil
}

func (f *fakeGenerator) GenerateStream(ctx context.Context, msgs []ai.ChatMessage, opts ai.GenerateOptions, fn ai.StreamFunc) (string, error) {
	f.calls++
	f.gotMsgs = msgs
	var sb strings.Builder
	for i, d := range f.deltas {
		if f.failAt >= 0 && i == f.failAt {
			return sb.String(), f.failErr
		}
		if err := fn(d); err != nil {
			return sb.String(), err
		}
		sb.WriteString(d)
	}
	return sb.String(), nil
}

func (f *fakeGenerator) ModelName() string { return "fake-model" }

func fastRetry() ai.RetryConfig {
	return ai.RetryConfig{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
}

func testChunks() []model.RetrievalResult {
	return []model.RetrievalResult{
		{ChunkID: "c1", SourceID: "s1", SourceTitle: "Paper A", Ordinal: 0, Text: "alpha text"},
		{ChunkID: "c2", SourceID: "s2", SourceTitle: "Paper B", Ordinal: 3, Text: "beta text"},
	}
}

func TestSynthesizeGroundedWithCitations(t *testing.T) {
	gen := &fakeGenerator{deltas: []string{"Alpha ", "[1] and beta ", "[2]."}, failAt: -1}
	eng := NewEngine(gen, fastRetry(), ai.GenerateOptions{})

	var streamed strings.Builder
	res, err := eng.Synthesize(context.Background(), Request{
		Question: "what?",
		Chunks:   testChunks(),
	}, func(delta string) error {
		streamed.WriteString(delta)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, res.Grounded)
	assert.False(t, res.Interrupted)
	assert.Equal(t, "Alpha [1] and beta [2].", res.Text)
	assert.Equal(t, res.Text, streamed.String())
	require.Len(t, res.Citations, 2)
	assert.Equal(t, "c1", res.Citations[0].ChunkID)
	assert.Equal(t, "s2", res.Citations[1].SourceID)
	assert.Equal(t, "alpha text", res.Citations[0].Excerpt)
}

func TestSynthesizeCitationSplitAcrossDeltas(t *testing.T) {
	gen := &fakeGenerator{deltas: []string{"see [", "2", "]."}, failAt: -1}
	eng := NewEngine(gen, fastRetry(), ai.GenerateOptions{})

	res, err := eng.Synthesize(context.Background(), Request{Question: "q", Chunks: testChunks()},
		func(string) error { return nil })
	require.NoError(t, err)
	require.Len(t, res.Citations, 1)
	assert.Equal(t, 2, res.Citations[0].Index)
	assert.Equal(t, "c2", res.Citations[0].ChunkID)
}

func TestSynthesizeOutOfRangeMarkerDropped(t *testing.T) {
	gen := &fakeGenerator{deltas: []string{"bogus [9] real [1]"}, failAt: -1}
	eng := NewEngine(gen, fastRetry(), ai.GenerateOptions{})

	res, err := eng.Synthesize(context.Background(), Request{Question: "q", Chunks: testChunks()},
		func(string) error { return nil })
	require.NoError(t, err)
	require.Len(t, res.Citations, 1)
	assert.Equal(t, 1, res.Citations[0].Index)
}

func TestSynthesizeUngroundedFallback(t *testing.T) {
	gen := &fakeGenerator{deltas: []string{"General knowledge answer."}, failAt: -1}
	eng := NewEngine(gen, fastRetry(), ai.GenerateOptions{})

	res, err := eng.Synthesize(context.Background(), Request{Question: "q"}, func(string) error { return nil })
	require.NoError(t, err)
	assert.False(t, res.Grounded)
	assert.Empty(t, res.Citations)
	require.NotEmpty(t, gen.gotMsgs)
	assert.Contains(t, gen.gotMsgs[0].Content, "not grounded")
}

func TestSynthesizeMidStreamFailureKeepsPartial(t *testing.T) {
	gen := &fakeGenerator{deltas: []string{"partial ", "answer ", "never sent"}, failAt: 2, failErr: appErr.ErrProviderUnavailable}
	eng := NewEngine(gen, fastRetry(), ai.GenerateOptions{})

	res, err := eng.Synthesize(context.Background(), Request{Question: "q", Chunks: testChunks()},
		func(string) error { return nil })
	require.NoError(t, err)
	assert.True(t, res.Interrupted)
	assert.Equal(t, "partial answer ", res.Text)
	assert.ErrorIs(t, res.Err, appErr.ErrProviderUnavailable)
	// no retry once deltas reached the client
	assert.Equal(t, 1, gen.calls)
}

func TestSynthesizeRetriesBeforeFirstDelta(t *testing.T) {
	gen := &fakeGenerator{deltas: []string{"ok"}, failAt: 0, failErr: appErr.ErrProviderRateLimited}
	eng := NewEngine(gen, fastRetry(), ai.GenerateOptions{})

	_, err := eng.Synthesize(context.Background(), Request{Question: "q", Chunks: testChunks()},
		func(string) error { return nil })
	assert.Error(t, err)
	assert.Equal(t, 3, gen.calls)
}

func TestBuildMessagesHistoryRoles(t *testing.T) {
	eng := NewEngine(&fakeGenerator{failAt: -1}, fastRetry(), ai.GenerateOptions{})
	msgs := eng.buildMessages(Request{
		Question: "next question",
		Chunks:   testChunks(),
		History: []model.Message{
			{Role: model.RoleUser, Content: "first"},
			{Role: model.RoleAssistant, Content: "reply"},
		},
	}, true)
	require.Len(t, msgs, 5)
	assert.Equal(t, ai.RoleSystem, msgs[0].Role)
	assert.Contains(t, msgs[1].Content, "(Source: Paper A)")
	assert.Equal(t, ai.RoleUser, msgs[2].Role)
	assert.Equal(t, ai.RoleAssistant, msgs[3].Role)
	assert.Equal(t, "next question", msgs[4].Content)
}
