package ai

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, ErrAuth},
		{http.StatusForbidden, ErrAuth},
		{http.StatusTooManyRequests, ErrRateLimited},
		{http.StatusGatewayTimeout, ErrTimeout},
		{http.StatusInternalServerError, ErrUnavailable},
		{http.StatusBadGateway, ErrUnavailable},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			err := classifyStatus("test", tt.status, "detail")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestOpenAIGenerateStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Hello\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\" world\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\" [1]\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	p := newOpenAICompat("openai", server.URL, "test-key", 0)
	var deltas []string
	full, err := p.GenerateStream(context.Background(), "gpt-test", []ChatMessage{{Role: RoleUser, Content: "hi"}}, GenerateOptions{}, func(delta string) error {
		deltas = append(deltas, delta)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello world [1]", full)
	assert.Equal(t, []string{"Hello", " world", " [1]"}, deltas)
}

func TestOpenAIGenerateRetryOn429(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"choices":[{"message":{"content":"ok"}}]}`)
	}))
	defer server.Close()

	p := newOpenAICompat("openai", server.URL, "test-key", 0)
	var result string
	err := WithRetry(context.Background(), fastRetry(3), "generate", func() error {
		var genErr error
		result, genErr = p.Generate(context.Background(), "gpt-test", []ChatMessage{{Role: RoleUser, Content: "hi"}}, GenerateOptions{})
		return genErr
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 3, calls)
}

func TestOpenAIEmbedBatchOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/embeddings", r.URL.Path)
		// out-of-order indices must be reassembled in input order
		fmt.Fprint(w, `{"data":[{"index":1,"embedding":[0.2]},{"index":0,"embedding":[0.1]}]}`)
	}))
	defer server.Close()

	p := newOpenAICompat("openai", server.URL, "test-key", 0)
	vectors, err := p.EmbedBatch(context.Background(), "embed-test", []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{0.1}, vectors[0])
	assert.Equal(t, []float32{0.2}, vectors[1])
}

func TestOpenAIGenerateAuthError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"bad key"}}`)
	}))
	defer server.Close()

	p := newOpenAICompat("openai", server.URL, "bad-key", 0)
	_, err := p.Generate(context.Background(), "gpt-test", []ChatMessage{{Role: RoleUser, Content: "hi"}}, GenerateOptions{})
	require.ErrorIs(t, err, ErrAuth)
}

func TestSplitSystem(t *testing.T) {
	system, turns := splitSystem([]ChatMessage{
		{Role: RoleSystem, Content: "be helpful"},
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello"},
	})
	assert.Equal(t, "be helpful", system)
	require.Len(t, turns, 2)
	assert.Equal(t, RoleUser, turns[0].Role)
}
