package ai

import (
	"fmt"
	"strings"
)

// The local variant targets a self-hosted OpenAI-compatible server (ollama,
// vllm, llama.cpp). No auth header unless a key is configured.
type localConfig struct {
	BaseURL      string `json:"base_url"`
	APIKey       string `json:"api_key"`
	MaxBatchSize int    `json:"max_batch_size"`
}

func createLocalFactory(args interface{}) (IAIProvider, error) {
	cfg := &localConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, fmt.Errorf("local base_url is required")
	}
	return newOpenAICompat("local", baseURL, strings.TrimSpace(cfg.APIKey), cfg.MaxBatchSize), nil
}

func createLocalEmbedFactory(args interface{}) (IEmbedProvider, error) {
	p, err := createLocalFactory(args)
	if err != nil {
		return nil, err
	}
	return p.(*openAICompat), nil
}

func init() {
	Register("local", createLocalFactory)
	RegisterEmbed("local", createLocalEmbedFactory)
}
