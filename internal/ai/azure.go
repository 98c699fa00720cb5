package ai

import (
	"fmt"
	"net/http"
	"strings"
)

const defaultAzureAPIVersion = "2024-06-01"

// Azure-hosted OpenAI uses per-deployment URLs and an api-key header instead
// of a bearer token; the model name doubles as the deployment name.
type azureConfig struct {
	Endpoint     string `json:"endpoint"`
	APIKey       string `json:"api_key"`
	APIVersion   string `json:"api_version"`
	MaxBatchSize int    `json:"max_batch_size"`
}

func createAzureFactory(args interface{}) (IAIProvider, error) {
	cfg := &azureConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	apiKey := strings.TrimSpace(cfg.APIKey)
	if endpoint == "" || apiKey == "" {
		return nil, fmt.Errorf("azure endpoint and api_key are required")
	}
	version := strings.TrimSpace(cfg.APIVersion)
	if version == "" {
		version = defaultAzureAPIVersion
	}
	return &openAICompat{
		name: "azure",
		chatURL: func(model string) string {
			return fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s", endpoint, model, version)
		},
		embedURL: func(model string) string {
			return fmt.Sprintf("%s/openai/deployments/%s/embeddings?api-version=%s", endpoint, model, version)
		},
		maxBatchSize: cfg.MaxBatchSize,
		client:       http.DefaultClient,
		setHeaders: func(h http.Header) {
			h.Set("api-key", apiKey)
		},
	}, nil
}

func createAzureEmbedFactory(args interface{}) (IEmbedProvider, error) {
	p, err := createAzureFactory(args)
	if err != nil {
		return nil, err
	}
	return p.(*openAICompat), nil
}

func init() {
	Register("azure", createAzureFactory)
	RegisterEmbed("azure", createAzureEmbedFactory)
}
