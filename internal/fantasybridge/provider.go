package fantasybridge

import (
	"fmt"
	"net/http"
	"strings"

	"charm.land/fantasy"
	"charm.land/fantasy/providers/anthropic"
	"charm.land/fantasy/providers/azure"
	"charm.land/fantasy/providers/bedrock"
	fgoogle "charm.land/fantasy/providers/google"
	fopenai "charm.land/fantasy/providers/openai"
	fopenaicompat "charm.land/fantasy/providers/openaicompat"
	"charm.land/fantasy/providers/openrouter"
	"charm.land/fantasy/providers/vercel"
)

// Provider names as written in the settings file.
const (
	apiAnthropic  = "anthropic"
	apiAzure      = "azure"
	apiAzureAD    = "azure-ad"
	apiBedrock    = "bedrock"
	apiGoogle     = "google"
	apiOllama     = "ollama"
	apiOpenAI     = "openai"
	apiOpenRouter = "openrouter"
	apiVercel     = "vercel"
)

// DefaultOllamaURL is where a local Ollama serves its OpenAI compatible API.
const DefaultOllamaURL = "http://localhost:11434/v1"

type providerFactory func(cfg Config) (fantasy.Provider, error)

// providers maps a provider name to its constructor. Any other name is served
// by the OpenAI compatible provider under that name.
var providers = map[string]providerFactory{
	apiAnthropic:  newAnthropic,
	apiAzure:      newAzure,
	apiAzureAD:    newAzure,
	apiBedrock:    newBedrock,
	apiGoogle:     newGoogle,
	apiOllama:     newOllama,
	apiOpenAI:     newOpenAI,
	apiOpenRouter: newOpenRouter,
	apiVercel:     newVercel,
}

func newProvider(cfg Config) (fantasy.Provider, error) {
	factory, ok := providers[cfg.API]
	if !ok {
		factory = newCompatible
	}
	provider, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("new %s provider: %w", cfg.API, err)
	}
	return provider, nil
}

// transportOptions appends the base URL and HTTP client options carried by
// cfg. A nil setter means the provider does not take that option.
func transportOptions[O any](opts []O, cfg Config, baseURL func(string) O, client func(*http.Client) O) []O {
	if baseURL != nil && cfg.BaseURL != "" {
		opts = append(opts, baseURL(cfg.BaseURL))
	}
	if client != nil && cfg.HTTPClient != nil {
		opts = append(opts, client(cfg.HTTPClient))
	}
	return opts
}

func newOpenAI(cfg Config) (fantasy.Provider, error) {
	opts := []fopenai.Option{fopenai.WithAPIKey(cfg.APIKey)}
	return fopenai.New(transportOptions(opts, cfg, fopenai.WithBaseURL, fopenai.WithHTTPClient)...)
}

func newAnthropic(cfg Config) (fantasy.Provider, error) {
	// The anthropic client adds the version segment itself.
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/v1")
	opts := []anthropic.Option{anthropic.WithAPIKey(cfg.APIKey)}
	return anthropic.New(transportOptions(opts, cfg, anthropic.WithBaseURL, anthropic.WithHTTPClient)...)
}

func newGoogle(cfg Config) (fantasy.Provider, error) {
	opts := []fgoogle.Option{fgoogle.WithGeminiAPIKey(cfg.APIKey)}
	return fgoogle.New(transportOptions(opts, cfg, fgoogle.WithBaseURL, fgoogle.WithHTTPClient)...)
}

func newAzure(cfg Config) (fantasy.Provider, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("azure needs a baseUrl pointing at the resource endpoint")
	}
	opts := []azure.Option{azure.WithAPIKey(cfg.APIKey)}
	return azure.New(transportOptions(opts, cfg, azure.WithBaseURL, azure.WithHTTPClient)...)
}

func newOpenRouter(cfg Config) (fantasy.Provider, error) {
	opts := []openrouter.Option{openrouter.WithAPIKey(cfg.APIKey)}
	return openrouter.New(transportOptions(opts, cfg, nil, openrouter.WithHTTPClient)...)
}

func newVercel(cfg Config) (fantasy.Provider, error) {
	opts := []vercel.Option{vercel.WithAPIKey(cfg.APIKey)}
	return vercel.New(transportOptions(opts, cfg, vercel.WithBaseURL, vercel.WithHTTPClient)...)
}

// newBedrock falls back to the AWS credential chain when no key is set.
func newBedrock(cfg Config) (fantasy.Provider, error) {
	var opts []bedrock.Option
	if cfg.APIKey != "" {
		opts = append(opts, bedrock.WithAPIKey(cfg.APIKey))
	}
	return bedrock.New(transportOptions(opts, cfg, nil, bedrock.WithHTTPClient)...)
}

func newOllama(cfg Config) (fantasy.Provider, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOllamaURL
	}
	return newCompatible(cfg)
}

func newCompatible(cfg Config) (fantasy.Provider, error) {
	opts := []fopenaicompat.Option{fopenaicompat.WithName(cfg.API)}
	if cfg.APIKey != "" {
		opts = append(opts, fopenaicompat.WithAPIKey(cfg.APIKey))
	}
	return fopenaicompat.New(transportOptions(opts, cfg, fopenaicompat.WithBaseURL, fopenaicompat.WithHTTPClient)...)
}
