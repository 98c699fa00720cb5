package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/notebase-ai/notebase/internal/ai"
	"github.com/notebase-ai/notebase/internal/artifact"
	"github.com/notebase-ai/notebase/internal/chunker"
	"github.com/notebase-ai/notebase/internal/config"
	"github.com/notebase-ai/notebase/internal/db"
	"github.com/notebase-ai/notebase/internal/embedcache"
	"github.com/notebase-ai/notebase/internal/filestore"
	"github.com/notebase-ai/notebase/internal/handler"
	"github.com/notebase-ai/notebase/internal/indexer"
	schedulejob "github.com/notebase-ai/notebase/internal/job"
	"github.com/notebase-ai/notebase/internal/jobs"
	"github.com/notebase-ai/notebase/internal/middleware"
	"github.com/notebase-ai/notebase/internal/pkg/jwt"
	"github.com/notebase-ai/notebase/internal/repo"
	"github.com/notebase-ai/notebase/internal/retriever"
	"github.com/notebase-ai/notebase/internal/schedule"
	"github.com/notebase-ai/notebase/internal/service"
	"github.com/notebase-ai/notebase/internal/synthesis"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "notebase",
		Short: "notebase backend server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run notebase server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			conn, err := db.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := db.ApplyMigrations(conn); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			return runServer(cfg, conn)
		},
	}
	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")

	var tokenUserID string
	var tokenTTLHours int
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "issue a bearer token for a user id (development helper)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if tokenUserID == "" {
				return fmt.Errorf("--user is required")
			}
			ttl := cfg.JWTTTLHours
			if tokenTTLHours > 0 {
				ttl = tokenTTLHours
			}
			token, err := jwt.GenerateToken(tokenUserID, []byte(cfg.JWTSecret), time.Duration(ttl)*time.Hour)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	tokenCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	tokenCmd.Flags().StringVar(&tokenUserID, "user", "", "user id to embed in the token")
	tokenCmd.Flags().IntVar(&tokenTTLHours, "ttl-hours", 0, "token lifetime, defaults to jwt_ttl_hours")

	rootCmd.AddCommand(runCmd, tokenCmd)
	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func loadConfig(configPath string) (*config.Config, error) {
	if configPath == "" {
		return nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))
	return cfg, nil
}

func runServer(cfg *config.Config, conn *sql.DB) error {
	logutil.GetLogger(context.Background()).Info("starting server",
		zap.Int("port", cfg.Port),
		zap.String("chat_provider", cfg.AI.Chat.Provider),
		zap.String("embed_provider", cfg.AI.Embedding.Provider),
		zap.String("file_store", cfg.FileStore.Type),
	)

	notebookRepo := repo.NewNotebookRepo(conn)
	sourceRepo := repo.NewSourceRepo(conn)
	chunkRepo := repo.NewChunkRepo(conn)
	sessionRepo := repo.NewChatSessionRepo(conn)
	messageRepo := repo.NewMessageRepo(conn)
	jobRepo := repo.NewJobRepo(conn)
	embedCacheRepo := repo.NewEmbeddingCacheRepo(conn)

	chatProvider, err := ai.NewProvider(cfg.AI.Chat.Provider, cfg.AI.Chat.Data)
	if err != nil {
		return fmt.Errorf("init chat provider: %w", err)
	}
	embedProvider, err := ai.NewEmbedProvider(cfg.AI.Embedding.Provider, cfg.AI.Embedding.Data)
	if err != nil {
		return fmt.Errorf("init embed provider: %w", err)
	}
	generator := ai.NewGenerator(chatProvider, cfg.AI.Chat.Model)
	embedder := ai.NewEmbedder(embedProvider, cfg.AI.Embedding.Model)
	// cache tiers: in-process LRU in front of the persistent table
	embedder = embedcache.WrapDBCacheToEmbedder(embedder, embedCacheRepo)
	embedder = embedcache.WrapLruCacheToEmbedder(embedder, cfg.AI.EmbedCacheSize, time.Hour)

	retry := ai.DefaultRetry(cfg.AI.RetryBudget)

	ck := chunker.New(chunker.Config{
		WindowChars:     cfg.Chunker.WindowChars,
		OverlapFraction: cfg.Chunker.OverlapFraction,
		MaxSourceBytes:  cfg.Chunker.MaxSourceBytes,
	})
	ix := indexer.New(ck, embedder, sourceRepo, chunkRepo, indexer.Config{
		Concurrency: cfg.Jobs.IngestConcurrency,
		BatchSize:   cfg.AI.EmbedBatchSize,
		RetryBudget: cfg.AI.RetryBudget,
	})
	rt := retriever.New(embedder, chunkRepo, cfg.Retrieval, retry)
	engine := synthesis.NewEngine(generator, retry, ai.GenerateOptions{})

	hub := jobs.NewHub()
	manager := jobs.NewManager(jobRepo, hub)
	generators := artifact.NewGenerators(artifact.Limits{
		MaxMindmapNodes: cfg.Jobs.MaxMindmapNodes,
		MaxSlides:       cfg.Jobs.MaxSlides,
	})
	store, err := filestore.New(cfg.FileStore)
	if err != nil {
		return fmt.Errorf("init file store: %w", err)
	}
	pool := jobs.NewWorkerPool(jobRepo, notebookRepo, sourceRepo, chunkRepo,
		rt, generators, generator, hub, store, cfg.Jobs, cfg.AI.OutputLanguage)
	manager.AttachWorkers(pool)

	notebookService := service.NewNotebookService(notebookRepo, sourceRepo)
	sourceService := service.NewSourceService(sourceRepo, ix)
	chatService := service.NewChatService(sessionRepo, messageRepo, rt, engine,
		cfg.AI.HistoryWindow, cfg.AI.OutputLanguage)
	studioService := service.NewStudioService(manager, store)

	deps := handler.RouterDeps{
		Notebooks: handler.NewNotebookHandler(notebookService),
		Sources:   handler.NewSourceHandler(notebookService, sourceService),
		Chat:      handler.NewChatHandler(notebookService, chatService),
		Studio:    handler.NewStudioHandler(notebookService, studioService, hub),
		Files:     handler.NewFileHandler(store),
		JWTSecret: []byte(cfg.JWTSecret),
	}

	extraMiddlewares := []gin.HandlerFunc{
		middleware.CORS(cfg.CORSOrigins),
		middleware.RequestID(),
		gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/api/v1/chat", "/api/v1/studio"})),
	}
	if cfg.RateLimit.PerSec > 0 {
		extraMiddlewares = append(extraMiddlewares, middleware.RateLimit(cfg.RateLimit.PerSec, cfg.RateLimit.Burst))
	}

	engineAPI, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(extraMiddlewares...),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := schedule.NewScheduler()
	if err := scheduler.AddJob(schedulejob.NewIngestSweepJob(sourceRepo, ix, 20), "*/2 * * * *"); err != nil {
		return err
	}
	if err := scheduler.AddJob(schedulejob.NewStaleResetJob(sourceRepo, jobRepo, cfg.Jobs.StaleAfterMinutes), "*/5 * * * *"); err != nil {
		return err
	}
	if err := scheduler.AddJob(schedulejob.NewEmbeddingCacheCleanupJob(embedCacheRepo, 30), "0 4 * * *"); err != nil {
		return err
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	go func() {
		if err := pool.Run(ctx); err != nil && ctx.Err() == nil {
			logutil.GetLogger(ctx).Error("worker pool stopped", zap.Error(err))
		}
	}()

	go func() {
		if err := engineAPI.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()
	logutil.GetLogger(ctx).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
