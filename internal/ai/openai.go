package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// openAICompat implements the OpenAI wire protocol. The openai, local and
// azure variants all ride on it and differ only in endpoint shaping and
// headers.
type openAICompat struct {
	name         string
	chatURL      func(model string) string
	embedURL     func(model string) string
	setHeaders   func(h http.Header)
	client       *http.Client
	maxBatchSize int
}

type openAIChatMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatRequest struct {
	Model       string          `json:"model,omitempty"`
	Messages    []openAIChatMsg `json:"messages"`
	Stream      bool            `json:"stream"`
	Temperature float32         `json:"temperature,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type openAIStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

type openAIEmbedRequest struct {
	Model string   `json:"model,omitempty"`
	Input []string `json:"input"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (p *openAICompat) Name() string {
	return p.name
}

func (p *openAICompat) MaxBatchSize() int {
	if p.maxBatchSize <= 0 {
		return 32
	}
	return p.maxBatchSize
}

func (p *openAICompat) post(ctx context.Context, url string, payload interface{}) (*http.Response, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.setHeaders != nil {
		p.setHeaders(req.Header)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, classifyTransport(p.name, err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		resp.Body.Close()
		return nil, classifyStatus(p.name, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return resp, nil
}

func (p *openAICompat) Generate(ctx context.Context, model string, msgs []ChatMessage, opts GenerateOptions) (string, error) {
	reqBody := openAIChatRequest{
		Model:       model,
		Messages:    toOpenAIMsgs(msgs),
		Stream:      false,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
	resp, err := p.post(ctx, p.chatURL(model), reqBody)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	var out openAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", classifyTransport(p.name, err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%w: %s: response has no choices", ErrUnavailable, p.name)
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

func (p *openAICompat) GenerateStream(ctx context.Context, model string, msgs []ChatMessage, opts GenerateOptions, fn StreamFunc) (string, error) {
	reqBody := openAIChatRequest{
		Model:       model,
		Messages:    toOpenAIMsgs(msgs),
		Stream:      true,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
	resp, err := p.post(ctx, p.chatURL(model), reqBody)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var full strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			if payload == "[DONE]" {
				break
			}
			continue
		}
		var chunk openAIStreamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
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
	if err := scanner.Err(); err != nil {
		return full.String(), classifyTransport(p.name, err)
	}
	return full.String(), nil
}

func (p *openAICompat) EmbedBatch(ctx context.Context, model string, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := p.post(ctx, p.embedURL(model), openAIEmbedRequest{Model: model, Input: texts})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var out openAIEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, classifyTransport(p.name, err)
	}
	if len(out.Data) != len(texts) {
		return nil, fmt.Errorf("%w: %s: got %d embeddings for %d inputs", ErrUnavailable, p.name, len(out.Data), len(texts))
	}
	vectors := make([][]float32, len(texts))
	for _, item := range out.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			return nil, fmt.Errorf("%w: %s: embedding index %d out of range", ErrUnavailable, p.name, item.Index)
		}
		vectors[item.Index] = item.Embedding
	}
	return vectors, nil
}

func toOpenAIMsgs(msgs []ChatMessage) []openAIChatMsg {
	out := make([]openAIChatMsg, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, openAIChatMsg{Role: m.Role, Content: m.Content})
	}
	return out
}

type openAIConfig struct {
	APIKey       string `json:"api_key"`
	BaseURL      string `json:"base_url"`
	MaxBatchSize int    `json:"max_batch_size"`
}

func newOpenAICompat(name, baseURL, apiKey string, maxBatch int) *openAICompat {
	base := strings.TrimRight(baseURL, "/")
	return &openAICompat{
		name:         name,
		chatURL:      func(string) string { return base + "/chat/completions" },
		embedURL:     func(string) string { return base + "/embeddings" },
		maxBatchSize: maxBatch,
		client:       http.DefaultClient,
		setHeaders: func(h http.Header) {
			if apiKey != "" {
				h.Set("Authorization", "Bearer "+apiKey)
			}
		},
	}
}

func createOpenAIFactory(args interface{}) (IAIProvider, error) {
	cfg := &openAIConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("openai api_key is required")
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	return newOpenAICompat("openai", baseURL, strings.TrimSpace(cfg.APIKey), cfg.MaxBatchSize), nil
}

func createOpenAIEmbedFactory(args interface{}) (IEmbedProvider, error) {
	p, err := createOpenAIFactory(args)
	if err != nil {
		return nil, err
	}
	return p.(*openAICompat), nil
}

func init() {
	Register("openai", createOpenAIFactory)
	RegisterEmbed("openai", createOpenAIEmbedFactory)
}
