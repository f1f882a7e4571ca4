package agent

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/caarlos0/go-shellwords"
	"github.com/charmbracelet/x/exp/ordered"

	"github.com/dotcommander/dolphin/internal/config"
	"github.com/dotcommander/dolphin/internal/errs"
	"github.com/dotcommander/dolphin/internal/fantasybridge"
	"github.com/dotcommander/dolphin/internal/mcp"
	"github.com/dotcommander/dolphin/internal/present"
	"github.com/dotcommander/dolphin/internal/proto"
	"github.com/dotcommander/dolphin/internal/stream"
)

// ClientFactory creates the engine client for a resolved provider config.
type ClientFactory func(fantasybridge.Config) (stream.Client, error)

// Option configures a Service.
type Option func(*Service)

// WithClientFactory replaces the engine client factory.
func WithClientFactory(f ClientFactory) Option {
	return func(s *Service) { s.clientFactory = f }
}

// WithDialer replaces the function used to connect provider servers.
func WithDialer(dial mcp.DialFunc) Option {
	return func(s *Service) { s.dial = dial }
}

// WithClientVersion sets the version reported to provider servers.
func WithClientVersion(v string) Option {
	return func(s *Service) { s.version = v }
}

// WithReporter sets where progress diagnostics go.
func WithReporter(r *present.Reporter) Option {
	return func(s *Service) { s.reporter = r }
}

// Service resolves models and drives query runs.
type Service struct {
	cfg           *config.Config
	clientFactory ClientFactory
	dial          mcp.DialFunc
	reporter      *present.Reporter
	version       string
}

// New creates an agent service.
func New(cfg *config.Config, opts ...Option) *Service {
	s := &Service{
		cfg:           cfg,
		clientFactory: NewFantasyClient,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.dial == nil {
		s.dial = mcp.Dialer{InheritEnv: !cfg.NoInheritEnv, Version: s.version}.Dial
	}
	return s
}

// Connect starts the enabled provider servers of the configuration.
func (s *Service) Connect(ctx context.Context) (*mcp.Pool, error) {
	return mcp.Connect(ctx, s.cfg.EnabledServers(), mcp.Options{
		Dial:       s.dial,
		Timeout:    s.cfg.MCPTimeout,
		Quiet:      s.cfg.Quiet,
		Connected:  s.reporter.ServerStarted,
		Failed:     s.reporter.ServerFailed,
		ListFailed: s.reporter.ToolsFailed,
	})
}

// request builds the engine request for query. Tools and the tool caller are
// filled in by the caller once the pool is up.
func (s *Service) request(ctx context.Context, mod config.Model, query string) (proto.Request, error) {
	messages, err := buildMessages(ctx, mod, query)
	if err != nil {
		return proto.Request{}, err
	}

	request := proto.Request{
		Messages:    messages,
		API:         mod.Provider,
		Model:       mod.Name,
		User:        ordered.First(mod.User, s.cfg.User),
		Temperature: mod.Temperature,
		TopP:        mod.TopP,
		TopK:        mod.TopK,
		MaxSteps:    s.cfg.MaxSteps,
	}
	if mod.MaxTokens > 0 {
		request.MaxTokens = &mod.MaxTokens
	}
	if mod.MaxCompletionTokens > 0 {
		request.MaxCompletionTokens = &mod.MaxCompletionTokens
	}
	return request, nil
}

func buildMessages(ctx context.Context, mod config.Model, query string) ([]proto.Message, error) {
	messages := make([]proto.Message, 0, 2)
	if mod.SystemMessage != "" {
		content, err := config.LoadMsg(ctx, mod.SystemMessage)
		if err != nil {
			return nil, errs.Error{Err: err, Reason: "Could not load the system message."}
		}
		messages = append(messages, proto.Message{Role: proto.RoleSystem, Content: content})
	}
	messages = append(messages, proto.Message{Role: proto.RoleUser, Content: query})
	return messages, nil
}

// ResolveModel picks the model named name by id or title. An empty name
// selects the model marked default, then the first configured one.
func ResolveModel(models []config.Model, name string) (config.Model, error) {
	if len(models) == 0 {
		return config.Model{}, errs.Error{
			Reason: "No models are configured.",
			Err:    errs.UserErrorf("Add a %s entry to the settings file.", "models"),
		}
	}
	var mod config.Model
	if name != "" {
		found := false
		for _, m := range models {
			if m.Matches(name) {
				mod, found = m, true
				break
			}
		}
		if !found {
			available := make([]string, 0, len(models))
			for _, m := range models {
				available = append(available, ordered.First(m.Title, m.Name))
			}
			return config.Model{}, errs.Error{
				Reason: fmt.Sprintf("Model %s is not in the settings file.", name),
				Err:    errs.UserErrorf("Available models are: %s", strings.Join(available, ", ")),
			}
		}
	} else {
		mod = models[0]
		for _, m := range models {
			if m.Default {
				mod = m
				break
			}
		}
	}
	if mod.Name == "" {
		return config.Model{}, errs.Error{Reason: "A configured model has no model name."}
	}
	mod.Provider = strings.ToLower(ordered.First(mod.Provider, "openai"))
	return mod, nil
}

func prepareProviderConfig(ctx context.Context, mod config.Model) (fantasybridge.Config, error) {
	cfg := fantasybridge.Config{API: mod.Provider, BaseURL: mod.BaseURL}
	switch mod.Provider {
	case "ollama":
		return cfg, nil
	case "bedrock":
		key, err := resolveKey(ctx, mod, "")
		if err != nil {
			return fantasybridge.Config{}, errs.Error{Err: err, Reason: "Bedrock authentication failed"}
		}
		cfg.APIKey = key
		return cfg, nil
	case "azure-ad":
		cfg.API = "azure"
	}

	env, docsURL, title := keyHints(mod.Provider)
	key, err := resolveKey(ctx, mod, env)
	if err != nil {
		return fantasybridge.Config{}, errs.Error{Err: err, Reason: title + " authentication failed"}
	}
	if key == "" {
		return fantasybridge.Config{}, errs.Error{
			Reason: fmt.Sprintf("%s required; set %s or apiKey in the settings file.", env, env),
			Err:    errs.UserErrorf("You can grab one at %s", docsURL),
		}
	}
	cfg.APIKey = key
	if mod.Provider == "google" {
		cfg.ThinkingBudget = mod.ThinkingBudget
	}
	return cfg, nil
}

func keyHints(provider string) (env, docsURL, title string) {
	switch provider {
	case "anthropic":
		return "ANTHROPIC_API_KEY", "https://console.anthropic.com/settings/keys", "Anthropic"
	case "google":
		return "GOOGLE_API_KEY", "https://aistudio.google.com/app/apikey", "Google"
	case "azure", "azure-ad":
		return "AZURE_OPENAI_KEY", "https://aka.ms/oai/access", "Azure"
	case "openrouter":
		return "OPENROUTER_API_KEY", "https://openrouter.ai/keys", "OpenRouter"
	case "vercel":
		return "VERCEL_API_KEY", "https://vercel.com/dashboard/tokens", "Vercel AI Gateway"
	case "cohere":
		return "COHERE_API_KEY", "https://dashboard.cohere.com/api-keys", "Cohere"
	default:
		return "OPENAI_API_KEY", "https://platform.openai.com/account/api-keys", "OpenAI"
	}
}

// resolveKey returns the first key found in apiKey, apiKeyEnv, the output of
// apiKeyCmd and defaultEnv.
func resolveKey(ctx context.Context, mod config.Model, defaultEnv string) (string, error) {
	var fromEnv, fromCmd, fallback string
	if mod.APIKeyEnv != "" {
		fromEnv = os.Getenv(mod.APIKeyEnv)
	}
	if mod.APIKey == "" && fromEnv == "" && mod.APIKeyCmd != "" {
		args, err := shellwords.Parse(mod.APIKeyCmd)
		if err != nil {
			return "", errs.Error{Err: err, Reason: "Failed to parse apiKeyCmd"}
		}
		if len(args) == 0 {
			return "", errs.Error{Err: errors.New("empty command"), Reason: "Failed to parse apiKeyCmd"}
		}
		// #nosec G204 -- apiKeyCmd is explicitly configured by the local user.
		out, err := exec.CommandContext(ctx, args[0], args[1:]...).CombinedOutput()
		if err != nil {
			return "", errs.Error{Err: err, Reason: "Cannot exec apiKeyCmd"}
		}
		fromCmd = strings.TrimSpace(string(out))
	}
	if defaultEnv != "" {
		fallback = os.Getenv(defaultEnv)
	}
	return ordered.First(mod.APIKey, fromEnv, fromCmd, fallback), nil
}

// ApplyProxyConfig configures the provider HTTP client to use an HTTP proxy.
func ApplyProxyConfig(httpProxy string, providerCfg *fantasybridge.Config) error {
	if httpProxy == "" {
		return nil
	}
	proxyURL, err := url.Parse(httpProxy)
	if err != nil {
		return errs.Error{Err: err, Reason: "There was an error parsing your proxy URL."}
	}
	base, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return errs.Error{Err: fmt.Errorf("default transport is not *http.Transport"), Reason: "Could not configure proxy."}
	}
	tr := base.Clone()
	tr.Proxy = http.ProxyURL(proxyURL)
	tr.DialContext = (&net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}).DialContext
	tr.TLSHandshakeTimeout = 10 * time.Second
	tr.ResponseHeaderTimeout = 30 * time.Second
	tr.IdleConnTimeout = 90 * time.Second
	tr.ExpectContinueTimeout = 1 * time.Second
	providerCfg.HTTPClient = &http.Client{Transport: tr}
	return nil
}

// NewFantasyClient creates the fantasy bridge client.
func NewFantasyClient(cfg fantasybridge.Config) (stream.Client, error) {
	if cfg.API == "" {
		return nil, errs.Error{Reason: "missing fantasy provider configuration"}
	}
	client, err := fantasybridge.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("new fantasy bridge client: %w", err)
	}
	return client, nil
}
