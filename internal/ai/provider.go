package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type GenerateOptions struct {
	Temperature float32
	MaxTokens   int
}

// StreamFunc receives each text delta in generation order. Returning an error
// aborts the stream.
type StreamFunc func(delta string) error

// IAIProvider is one gateway variant. GenerateStream must emit deltas in
// generation order and return the full concatenated text.
type IAIProvider interface {
	Name() string
	Generate(ctx context.Context, model string, msgs []ChatMessage, opts GenerateOptions) (string, error)
	GenerateStream(ctx context.Context, model string, msgs []ChatMessage, opts GenerateOptions, fn StreamFunc) (string, error)
}

// IEmbedProvider computes fixed-dimension vectors for batches of texts, at
// most MaxBatchSize per call.
type IEmbedProvider interface {
	Name() string
	EmbedBatch(ctx context.Context, model string, texts []string) ([][]float32, error)
	MaxBatchSize() int
}

// IGenerator is a provider bound to a model, the unit passed around by
// callers.
type IGenerator interface {
	Generate(ctx context.Context, msgs []ChatMessage, opts GenerateOptions) (string, error)
	GenerateStream(ctx context.Context, msgs []ChatMessage, opts GenerateOptions, fn StreamFunc) (string, error)
	ModelName() string
}

type IEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	ModelName() string
	MaxBatchSize() int
}

type generator struct {
	provider IAIProvider
	model    string
}

func NewGenerator(p IAIProvider, model string) IGenerator {
	return &generator{provider: p, model: model}
}

func (g *generator) Generate(ctx context.Context, msgs []ChatMessage, opts GenerateOptions) (string, error) {
	return g.provider.Generate(ctx, g.model, msgs, opts)
}

func (g *generator) GenerateStream(ctx context.Context, msgs []ChatMessage, opts GenerateOptions, fn StreamFunc) (string, error) {
	return g.provider.GenerateStream(ctx, g.model, msgs, opts, fn)
}

func (g *generator) ModelName() string {
	return g.model
}

type embedder struct {
	provider IEmbedProvider
	model    string
}

func NewEmbedder(p IEmbedProvider, model string) IEmbedder {
	return &embedder{provider: p, model: model}
}

func (e *embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return e.provider.EmbedBatch(ctx, e.model, texts)
}

func (e *embedder) ModelName() string {
	return e.model
}

func (e *embedder) MaxBatchSize() int {
	return e.provider.MaxBatchSize()
}

type ProviderFactory func(args interface{}) (IAIProvider, error)

type EmbedFactory func(args interface{}) (IEmbedProvider, error)

var (
	registry      = map[string]ProviderFactory{}
	embedRegistry = map[string]EmbedFactory{}
)

func Register(name string, factory ProviderFactory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registry[key] = factory
}

func RegisterEmbed(name string, factory EmbedFactory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	embedRegistry[key] = factory
}

func NewProvider(name string, args interface{}) (IAIProvider, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, fmt.Errorf("ai provider is required")
	}
	factory := registry[key]
	if factory == nil {
		return nil, fmt.Errorf("unsupported ai provider: %s", name)
	}
	return factory(args)
}

func NewEmbedProvider(name string, args interface{}) (IEmbedProvider, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, fmt.Errorf("embedding provider is required")
	}
	factory := embedRegistry[key]
	if factory == nil {
		return nil, fmt.Errorf("unsupported embedding provider: %s", name)
	}
	return factory(args)
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return fmt.Errorf("ai provider config is required")
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode ai provider config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode ai provider config: %w", err)
	}
	return nil
}
