package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port        int              `json:"port"`
	JWTSecret   string           `json:"jwt_secret"`
	JWTTTLHours int              `json:"jwt_ttl_hours"`
	LogConfig   logger.LogConfig `json:"log_config"`
	Database    DatabaseConfig   `json:"database"`
	AI          AIConfig         `json:"ai"`
	Chunker     ChunkerConfig    `json:"chunker"`
	Retrieval   RetrievalConfig  `json:"retrieval"`
	Jobs        JobsConfig       `json:"jobs"`
	FileStore   FileStoreConfig  `json:"file_store"`
	RateLimit   RateLimitConfig  `json:"rate_limit"`
	CORSOrigins []string         `json:"cors_origins"`
}

// RateLimitConfig bounds requests per caller at the API edge. PerSec <= 0
// disables limiting.
type RateLimitConfig struct {
	PerSec float64 `json:"per_sec"`
	Burst  int     `json:"burst"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
}

// ProviderConfig selects one gateway variant. Data is variant-specific and
// decoded by the provider factory.
type ProviderConfig struct {
	Provider string      `json:"provider"`
	Model    string      `json:"model"`
	Data     interface{} `json:"data"`
}

type AIConfig struct {
	Chat           ProviderConfig `json:"chat"`
	Embedding      ProviderConfig `json:"embedding"`
	OutputLanguage string         `json:"output_language"`
	TimeoutSeconds int            `json:"timeout_seconds"`
	RetryBudget    int            `json:"retry_budget"`
	EmbedBatchSize int            `json:"embed_batch_size"`
	EmbedCacheSize int            `json:"embed_cache_size"`
	HistoryWindow  int            `json:"history_window"`
}

type ChunkerConfig struct {
	WindowChars     int     `json:"window_chars"`
	OverlapFraction float64 `json:"overlap_fraction"`
	MaxSourceBytes  int     `json:"max_source_bytes"`
}

type RetrievalConfig struct {
	TopK          int     `json:"top_k"`
	MinSimilarity float64 `json:"min_similarity"`
	TieEpsilon    float64 `json:"tie_epsilon"`
}

type JobsConfig struct {
	Workers              int `json:"workers"`
	PerNotebookCalls     int `json:"per_notebook_calls"`
	ProviderCallsPerSec  int `json:"provider_calls_per_sec"`
	PollIntervalSeconds  int `json:"poll_interval_seconds"`
	StaleAfterMinutes    int `json:"stale_after_minutes"`
	IngestConcurrency    int `json:"ingest_concurrency"`
	MaxMindmapNodes      int `json:"max_mindmap_nodes"`
	MaxSlides            int `json:"max_slides"`
	ValidationRetryLimit int `json:"validation_retry_limit"`
}

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt_secret is required")
	}
	if cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return nil, fmt.Errorf("database.dsn or database.host is required")
	}
	if cfg.AI.Chat.Provider == "" {
		return nil, fmt.Errorf("ai.chat.provider is required")
	}
	if cfg.AI.Embedding.Provider == "" {
		return nil, fmt.Errorf("ai.embedding.provider is required")
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.JWTTTLHours == 0 {
		cfg.JWTTTLHours = 72
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.AI.TimeoutSeconds == 0 {
		cfg.AI.TimeoutSeconds = 120
	}
	if cfg.AI.RetryBudget == 0 {
		cfg.AI.RetryBudget = 3
	}
	if cfg.AI.EmbedBatchSize == 0 {
		cfg.AI.EmbedBatchSize = 32
	}
	if cfg.AI.EmbedCacheSize == 0 {
		cfg.AI.EmbedCacheSize = 10000
	}
	if cfg.AI.HistoryWindow == 0 {
		cfg.AI.HistoryWindow = 10
	}
	if cfg.Chunker.WindowChars == 0 {
		cfg.Chunker.WindowChars = 1000
	}
	if cfg.Chunker.OverlapFraction == 0 {
		cfg.Chunker.OverlapFraction = 0.1
	}
	if cfg.Chunker.MaxSourceBytes == 0 {
		cfg.Chunker.MaxSourceBytes = 4 << 20
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 8
	}
	if cfg.Retrieval.MinSimilarity == 0 {
		cfg.Retrieval.MinSimilarity = 0.25
	}
	if cfg.Retrieval.TieEpsilon == 0 {
		cfg.Retrieval.TieEpsilon = 1e-6
	}
	if cfg.Jobs.Workers == 0 {
		cfg.Jobs.Workers = 2
	}
	if cfg.Jobs.PerNotebookCalls == 0 {
		cfg.Jobs.PerNotebookCalls = 2
	}
	if cfg.Jobs.ProviderCallsPerSec == 0 {
		cfg.Jobs.ProviderCallsPerSec = 2
	}
	if cfg.Jobs.PollIntervalSeconds == 0 {
		cfg.Jobs.PollIntervalSeconds = 5
	}
	if cfg.Jobs.StaleAfterMinutes == 0 {
		cfg.Jobs.StaleAfterMinutes = 30
	}
	if cfg.Jobs.IngestConcurrency == 0 {
		cfg.Jobs.IngestConcurrency = 4
	}
	if cfg.Jobs.MaxMindmapNodes == 0 {
		cfg.Jobs.MaxMindmapNodes = 40
	}
	if cfg.Jobs.MaxSlides == 0 {
		cfg.Jobs.MaxSlides = 20
	}
	if cfg.Jobs.ValidationRetryLimit == 0 {
		cfg.Jobs.ValidationRetryLimit = 1
	}
	if cfg.FileStore.Type == "" {
		cfg.FileStore.Type = "local"
	}
	if cfg.RateLimit.PerSec > 0 && cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = int(cfg.RateLimit.PerSec) * 2
	}
}
