package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

type geminiConfig struct {
	APIKey       string `json:"api_key"`
	MaxBatchSize int    `json:"max_batch_size"`
}

type geminiProvider struct {
	apiKey       string
	maxBatchSize int
}

func (p *geminiProvider) Name() string {
	return "gemini"
}

func (p *geminiProvider) MaxBatchSize() int {
	if p.maxBatchSize <= 0 {
		return 32
	}
	return p.maxBatchSize
}

func (p *geminiProvider) newClient(ctx context.Context) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  p.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, classifyTransport("gemini", err)
	}
	return client, nil
}

func toGeminiContents(msgs []ChatMessage) (*genai.Content, []*genai.Content) {
	var system *genai.Content
	contents := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			if system == nil {
				system = &genai.Content{Parts: []*genai.Part{{Text: m.Content}}}
			} else {
				system.Parts = append(system.Parts, &genai.Part{Text: m.Content})
			}
		case RoleAssistant:
			contents = append(contents, &genai.Content{
				Role:  genai.RoleModel,
				Parts: []*genai.Part{{Text: m.Content}},
			})
		default:
			contents = append(contents, &genai.Content{
				Role:  genai.RoleUser,
				Parts: []*genai.Part{{Text: m.Content}},
			})
		}
	}
	return system, contents
}

func geminiGenConfig(system *genai.Content, opts GenerateOptions) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{SystemInstruction: system}
	if opts.Temperature > 0 {
		cfg.Temperature = genai.Ptr(opts.Temperature)
	}
	if opts.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(opts.MaxTokens)
	}
	return cfg
}

// classifyGemini maps SDK errors onto the provider taxonomy.
func classifyGemini(err error) error {
	if err == nil {
		return nil
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus("gemini", apiErr.Code, apiErr.Message)
	}
	return classifyTransport("gemini", err)
}

func (p *geminiProvider) Generate(ctx context.Context, model string, msgs []ChatMessage, opts GenerateOptions) (string, error) {
	client, err := p.newClient(ctx)
	if err != nil {
		return "", err
	}
	system, contents := toGeminiContents(msgs)
	resp, err := client.Models.GenerateContent(ctx, model, contents, geminiGenConfig(system, opts))
	if err != nil {
		return "", classifyGemini(err)
	}
	return strings.TrimSpace(resp.Text()), nil
}

func (p *geminiProvider) GenerateStream(ctx context.Context, model string, msgs []ChatMessage, opts GenerateOptions, fn StreamFunc) (string, error) {
	client, err := p.newClient(ctx)
	if err != nil {
		return "", err
	}
	system, contents := toGeminiContents(msgs)
	var full strings.Builder
	for resp, err := range client.Models.GenerateContentStream(ctx, model, contents, geminiGenConfig(system, opts)) {
		if err != nil {
			return full.String(), classifyGemini(err)
		}
		delta := resp.Text()
		if delta == "" {
			continue
		}
		full.WriteString(delta)
		if fn != nil {
			if err := fn(delta); err != nil {
				return full.String(), err
			}
		}
	}
	return full.String(), nil
}

func (p *geminiProvider) EmbedBatch(ctx context.Context, model string, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	client, err := p.newClient(ctx)
	if err != nil {
		return nil, err
	}
	contents := make([]*genai.Content, 0, len(texts))
	for _, text := range texts {
		contents = append(contents, &genai.Content{Parts: []*genai.Part{{Text: text}}})
	}
	resp, err := client.Models.EmbedContent(ctx, model, contents, nil)
	if err != nil {
		return nil, classifyGemini(err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: gemini: got %d embeddings for %d inputs", ErrUnavailable, len(resp.Embeddings), len(texts))
	}
	vectors := make([][]float32, len(texts))
	for i, emb := range resp.Embeddings {
		vectors[i] = emb.Values
	}
	return vectors, nil
}

func createGeminiFactory(args interface{}) (IAIProvider, error) {
	cfg := &geminiConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api_key is required")
	}
	return &geminiProvider{apiKey: apiKey, maxBatchSize: cfg.MaxBatchSize}, nil
}

func createGeminiEmbedFactory(args interface{}) (IEmbedProvider, error) {
	p, err := createGeminiFactory(args)
	if err != nil {
		return nil, err
	}
	return p.(*geminiProvider), nil
}

func init() {
	Register("gemini", createGeminiFactory)
	RegisterEmbed("gemini", createGeminiEmbedFactory)
}
