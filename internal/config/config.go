package config

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/dotcommander/dolphin/internal/errs"
)

// DefaultPath is the settings file read when --config is not given.
const DefaultPath = "mcp_config.json"

const (
	defaultMCPTimeout = 30 * time.Second
	defaultMaxSteps   = 10
)

// Model describes one model the engine can be pointed at.
type Model struct {
	Name                string   `yaml:"model" validate:"required"`
	Title               string   `yaml:"title"`
	Provider            string   `yaml:"provider"`
	Default             bool     `yaml:"default"`
	APIKey              string   `yaml:"apiKey"`
	APIKeyEnv           string   `yaml:"apiKeyEnv"`
	APIKeyCmd           string   `yaml:"apiKeyCmd"`
	BaseURL             string   `yaml:"baseUrl"`
	User                string   `yaml:"user"`
	Temperature         *float64 `yaml:"temperature" validate:"omitnil,gte=0,lte=2"`
	TopP                *float64 `yaml:"topP" validate:"omitnil,gte=0,lte=1"`
	TopK                *int64   `yaml:"topK" validate:"omitnil,gte=0"`
	MaxTokens           int64    `yaml:"maxTokens" validate:"gte=0"`
	MaxCompletionTokens int64    `yaml:"maxCompletionTokens" validate:"gte=0"`
	SystemMessage       string   `yaml:"systemMessage"`
	ThinkingBudget      int      `yaml:"thinkingBudget,omitempty"`
}

// Matches reports whether name selects this model, either by model id or by
// its title.
func (m Model) Matches(name string) bool {
	return name != "" && (m.Name == name || m.Title == name)
}

// MCPServerConfig holds configuration for an MCP server.
type MCPServerConfig struct {
	Type     string            `yaml:"type"`
	Command  string            `yaml:"command"`
	Args     []string          `yaml:"args"`
	Env      map[string]string `yaml:"env"`
	URL      string            `yaml:"url"`
	Headers  map[string]string `yaml:"headers"`
	Disabled bool              `yaml:"disabled"`
}

// Environ returns the server environment as sorted KEY=VALUE pairs.
func (s MCPServerConfig) Environ() []string {
	keys := slices.Sorted(maps.Keys(s.Env))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+s.Env[k])
	}
	return out
}

// Settings holds configuration loaded from the settings file and environment
// variables.
type Settings struct {
	MCPServers   map[string]MCPServerConfig `yaml:"mcpServers"`
	Models       []Model                    `yaml:"models" validate:"dive"`
	Model        string                     `yaml:"defaultModel" env:"MODEL"`
	MCPTimeout   time.Duration              `yaml:"mcpTimeout" env:"MCP_TIMEOUT"`
	MaxSteps     int                        `yaml:"maxSteps" env:"MAX_STEPS" validate:"gte=0"`
	HTTPProxy    string                     `yaml:"httpProxy" env:"HTTP_PROXY"`
	NoInheritEnv bool                       `yaml:"noInheritEnv" env:"NO_INHERIT_ENV"`
	Quiet        bool                       `yaml:"quiet" env:"QUIET"`
	User         string                     `yaml:"user" env:"USER"`
}

// Runtime holds CLI-only options that are never read from the settings file.
type Runtime struct {
	ConfigPath      string
	LogMessagesPath string
	ListTools       bool
	ShowHelp        bool
	ShowMan         bool
	Version         bool
	Query           string
}

// Config is the application configuration (settings + runtime-only options).
type Config struct {
	Settings `yaml:",inline"`
	Runtime  `yaml:"-" env:"-"`
}

// Load reads the settings file at path, applies DOLPHIN_* environment
// overrides and fills in defaults.
func Load(path string) (Config, error) {
	c := Default()
	c.ConfigPath = path

	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return c, errs.Error{
			Err:    errs.UserErrorf("Pass a settings file with --config or create %s.", DefaultPath),
			Reason: fmt.Sprintf("Settings file %s does not exist.", path),
		}
	}
	if err != nil {
		return c, errs.Error{Err: err, Reason: "Could not read settings file."}
	}
	if err := Parse(content, &c); err != nil {
		return c, err
	}
	return c, nil
}

// Parse decodes settings content (JSON or YAML) into c and applies
// environment overrides and defaults.
func Parse(content []byte, c *Config) error {
	if err := yaml.Unmarshal(content, c); err != nil {
		return errs.Error{Err: err, Reason: "Could not parse settings file."}
	}
	if err := env.ParseWithOptions(c, env.Options{Prefix: "DOLPHIN_"}); err != nil {
		return errs.Error{Err: err, Reason: "Could not parse environment into settings."}
	}

	if c.MCPTimeout <= 0 {
		c.MCPTimeout = defaultMCPTimeout
	}
	if c.MaxSteps <= 0 {
		c.MaxSteps = defaultMaxSteps
	}
	if c.MCPServers == nil {
		c.MCPServers = map[string]MCPServerConfig{}
	}
	if err := validate.Struct(c.Settings); err != nil {
		return errs.Error{Err: err, Reason: "Invalid settings file."}
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// EnabledServers returns the configured servers that are not disabled.
func (c *Config) EnabledServers() map[string]MCPServerConfig {
	out := make(map[string]MCPServerConfig, len(c.MCPServers))
	for name, server := range c.MCPServers {
		if server.Disabled {
			continue
		}
		out[name] = server
	}
	return out
}

// Default returns the default configuration values.
func Default() Config {
	return Config{
		Settings: Settings{
			MCPServers: map[string]MCPServerConfig{},
			MCPTimeout: defaultMCPTimeout,
			MaxSteps:   defaultMaxSteps,
		},
	}
}
