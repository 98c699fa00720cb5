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

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com"
	anthropicVersion        = "2023-06-01"
)

type anthropicConfig struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
}

type anthropicProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

type anthropicRequest struct {
	Model       string          `json:"model"`
	System      string          `json:"system,omitempty"`
	Messages    []openAIChatMsg `json:"messages"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float32         `json:"temperature,omitempty"`
	Stream      bool            `json:"stream,omitempty"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

type anthropicStreamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (p *anthropicProvider) Name() string {
	return "anthropic"
}

// splitSystem lifts system-role messages into the dedicated top-level field
// the messages API expects.
func splitSystem(msgs []ChatMessage) (string, []openAIChatMsg) {
	var system []string
	turns := make([]openAIChatMsg, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == RoleSystem {
			system = append(system, m.Content)
			continue
		}
		turns = append(turns, openAIChatMsg{Role: m.Role, Content: m.Content})
	}
	return strings.Join(system, "\n\n"), turns
}

func (p *anthropicProvider) post(ctx context.Context, reqBody anthropicRequest) (*http.Response, error) {
	data, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}
	endpoint := strings.TrimRight(p.baseURL, "/") + "/v1/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, classifyTransport("anthropic", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		resp.Body.Close()
		// 529 is anthropic's overloaded status
		status := resp.StatusCode
		if status == 529 {
			status = http.StatusTooManyRequests
		}
		return nil, classifyStatus("anthropic", status, strings.TrimSpace(string(body)))
	}
	return resp, nil
}

func (p *anthropicProvider) buildRequest(model string, msgs []ChatMessage, opts GenerateOptions, stream bool) anthropicRequest {
	system, turns := splitSystem(msgs)
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return anthropicRequest{
		Model:       model,
		System:      system,
		Messages:    turns,
		MaxTokens:   maxTokens,
		Temperature: opts.Temperature,
		Stream:      stream,
	}
}

func (p *anthropicProvider) Generate(ctx context.Context, model string, msgs []ChatMessage, opts GenerateOptions) (string, error) {
	resp, err := p.post(ctx, p.buildRequest(model, msgs, opts, false))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	var out anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", classifyTransport("anthropic", err)
	}
	var sb strings.Builder
	for _, block := range out.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("%w: anthropic: response has no text content", ErrUnavailable)
	}
	return strings.TrimSpace(sb.String()), nil
}

func (p *anthropicProvider) GenerateStream(ctx context.Context, model string, msgs []ChatMessage, opts GenerateOptions, fn StreamFunc) (string, error) {
	resp, err := p.post(ctx, p.buildRequest(model, msgs, opts, true))
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
		if payload == "" {
			continue
		}
		var event anthropicStreamEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			continue
		}
		switch event.Type {
		case "content_block_delta":
			if event.Delta.Type != "text_delta" || event.Delta.Text == "" {
				continue
			}
			full.WriteString(event.Delta.Text)
			if fn != nil {
				if err := fn(event.Delta.Text); err != nil {
					return full.String(), err
				}
			}
		case "error":
			return full.String(), fmt.Errorf("%w: anthropic: %s: %s", ErrUnavailable, event.Error.Type, event.Error.Message)
		case "message_stop":
			return full.String(), nil
		}
	}
	if err := scanner.Err(); err != nil {
		return full.String(), classifyTransport("anthropic", err)
	}
	return full.String(), nil
}

func createAnthropicFactory(args interface{}) (IAIProvider, error) {
	cfg := &anthropicConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic api_key is required")
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultAnthropicBaseURL
	}
	return &anthropicProvider{apiKey: apiKey, baseURL: baseURL, client: http.DefaultClient}, nil
}

func init() {
	Register("anthropic", createAnthropicFactory)
}
