package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/xxxsen/common/webapi"

	"github.com/notebase-ai/notebase/internal/ai"
	"github.com/notebase-ai/notebase/internal/chunker"
	"github.com/notebase-ai/notebase/internal/config"
	"github.com/notebase-ai/notebase/internal/filestore"
	"github.com/notebase-ai/notebase/internal/handler"
	"github.com/notebase-ai/notebase/internal/indexer"
	"github.com/notebase-ai/notebase/internal/jobs"
	"github.com/notebase-ai/notebase/internal/middleware"
	"github.com/notebase-ai/notebase/internal/pkg/jwt"
	"github.com/notebase-ai/notebase/internal/repo"
	"github.com/notebase-ai/notebase/internal/retriever"
	"github.com/notebase-ai/notebase/internal/service"
	"github.com/notebase-ai/notebase/internal/synthesis"
	"github.com/notebase-ai/notebase/test/testutil"
)

var testJWTSecret = []byte("test-secret")

type stubGenerator struct {
	reply string
}

func (s stubGenerator) Generate(ctx context.Context, msgs []ai.ChatMessage, opts ai.GenerateOptions) (string, error) {
	return s.reply, nil
}

func (s stubGenerator) GenerateStream(ctx context.Context, msgs []ai.ChatMessage, opts ai.GenerateOptions, fn ai.StreamFunc) (string, error) {
	if err := fn(s.reply); err != nil {
		return "", err
	}
	return s.reply, nil
}

func (s stubGenerator) ModelName() string { return "stub-chat" }

type stubEmbedder struct{}

func (stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		vec := make([]float32, 1536)
		vec[0] = 1
		out[i] = vec
	}
	return out, nil
}

func (stubEmbedder) ModelName() string { return "stub-embed" }

func (stubEmbedder) MaxBatchSize() int { return 16 }

func setupRouter(t *testing.T) (http.Handler, *jobs.Hub) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, cleanup := testutil.OpenTestDB(t)
	t.Cleanup(cleanup)

	notebookRepo := repo.NewNotebookRepo(db)
	sourceRepo := repo.NewSourceRepo(db)
	chunkRepo := repo.NewChunkRepo(db)
	sessionRepo := repo.NewChatSessionRepo(db)
	messageRepo := repo.NewMessageRepo(db)
	jobRepo := repo.NewJobRepo(db)

	generator := stubGenerator{reply: "stub answer [1]"}
	embedder := stubEmbedder{}
	retry := ai.DefaultRetry(1)

	ck := chunker.New(chunker.Config{WindowChars: 1000, OverlapFraction: 0.1, MaxSourceBytes: 1 << 20})
	ix := indexer.New(ck, embedder, sourceRepo, chunkRepo, indexer.Config{Concurrency: 1, BatchSize: 8})
	rt := retriever.New(embedder, chunkRepo, config.RetrievalConfig{TopK: 4, MinSimilarity: 0.1, TieEpsilon: 1e-6}, retry)
	engine := synthesis.NewEngine(generator, retry, ai.GenerateOptions{})

	hub := jobs.NewHub()
	manager := jobs.NewManager(jobRepo, hub)

	tmpDir, err := os.MkdirTemp("", "notebase-export-*")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(tmpDir) })
	store, err := filestore.New(config.FileStoreConfig{
		Type: "local",
		Data: map[string]interface{}{"dir": tmpDir},
	})
	require.NoError(t, err)

	notebookService := service.NewNotebookService(notebookRepo, sourceRepo)
	sourceService := service.NewSourceService(sourceRepo, ix)
	chatService := service.NewChatService(sessionRepo, messageRepo, rt, engine, 10, "")
	studioService := service.NewStudioService(manager, store)

	deps := handler.RouterDeps{
		Notebooks: handler.NewNotebookHandler(notebookService),
		Sources:   handler.NewSourceHandler(notebookService, sourceService),
		Chat:      handler.NewChatHandler(notebookService, chatService),
		Studio:    handler.NewStudioHandler(notebookService, studioService, hub),
		Files:     handler.NewFileHandler(store),
		JWTSecret: testJWTSecret,
	}

	router, err := webapi.NewEngine(
		"/api/v1",
		"",
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(nil),
		),
	)
	require.NoError(t, err)
	return router, hub
}

func authToken(t *testing.T, userID string) string {
	t.Helper()
	token, err := jwt.GenerateToken(userID, testJWTSecret, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

// decodeData unwraps the {code, message, data} envelope.
func decodeData(t *testing.T, recorder *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	var envelope struct {
		Code    uint32          `json:"code"`
		Message string          `json:"msg"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope))
	require.EqualValues(t, 0, envelope.Code, "unexpected error: %s", envelope.Message)
	if dst != nil {
		require.NoError(t, json.Unmarshal(envelope.Data, dst))
	}
}

func decodeCode(t *testing.T, recorder *httptest.ResponseRecorder) uint32 {
	t.Helper()
	var envelope struct {
		Code uint32 `json:"code"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope))
	return envelope.Code
}
