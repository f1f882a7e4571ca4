package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dotcommander/dolphin/internal/errs"
)

const jsonSettings = `{
  "mcpServers": {
    "files": {
      "command": "npx",
      "args": ["-y", "@modelcontextprotocol/server-filesystem", "/tmp"],
      "env": {"B": "2", "A": "1"}
    },
    "remote": {"type": "sse", "url": "http://localhost:8080/sse", "disabled": true}
  },
  "models": [
    {"model": "gpt-4o", "provider": "openai", "title": "fast", "default": true},
    {"model": "claude-3-5-sonnet", "provider": "anthropic", "temperature": 0.2}
  ]
}`

func TestParse(t *testing.T) {
	t.Run("json settings", func(t *testing.T) {
		cfg := Default()
		require.NoError(t, Parse([]byte(jsonSettings), &cfg))

		require.Len(t, cfg.MCPServers, 2)
		require.Equal(t, "npx", cfg.MCPServers["files"].Command)
		require.Equal(t, []string{"A=1", "B=2"}, cfg.MCPServers["files"].Environ())
		require.Len(t, cfg.Models, 2)
		require.True(t, cfg.Models[0].Default)
		require.NotNil(t, cfg.Models[1].Temperature)
		require.InDelta(t, 0.2, *cfg.Models[1].Temperature, 0.0001)
		require.Nil(t, cfg.Models[0].Temperature)
	})

	t.Run("yaml settings", func(t *testing.T) {
		cfg := Default()
		content := "mcpTimeout: 5s\nmaxSteps: 3\nmcpServers:\n  web:\n    type: http\n    url: http://localhost:9000/mcp\n"
		require.NoError(t, Parse([]byte(content), &cfg))
		require.Equal(t, 5*time.Second, cfg.MCPTimeout)
		require.Equal(t, 3, cfg.MaxSteps)
		require.Equal(t, "http", cfg.MCPServers["web"].Type)
	})

	t.Run("defaults", func(t *testing.T) {
		cfg := Config{}
		require.NoError(t, Parse([]byte("{}"), &cfg))
		require.Equal(t, defaultMCPTimeout, cfg.MCPTimeout)
		require.Equal(t, defaultMaxSteps, cfg.MaxSteps)
		require.NotNil(t, cfg.MCPServers)
	})

	t.Run("environment overrides file", func(t *testing.T) {
		t.Setenv("DOLPHIN_MODEL", "claude-3-5-sonnet")
		t.Setenv("DOLPHIN_MCP_TIMEOUT", "2s")
		cfg := Default()
		require.NoError(t, Parse([]byte(`{"defaultModel": "gpt-4o"}`), &cfg))
		require.Equal(t, "claude-3-5-sonnet", cfg.Model)
		require.Equal(t, 2*time.Second, cfg.MCPTimeout)
	})

	t.Run("invalid model settings", func(t *testing.T) {
		for name, content := range map[string]string{
			"missing model name":   `{"models": [{"provider": "openai"}]}`,
			"temperature too high": `{"models": [{"model": "gpt-4o", "temperature": 3}]}`,
			"negative top p":       `{"models": [{"model": "gpt-4o", "topP": -0.5}]}`,
		} {
			t.Run(name, func(t *testing.T) {
				cfg := Default()
				err := Parse([]byte(content), &cfg)
				var uerr errs.Error
				require.ErrorAs(t, err, &uerr)
				require.Equal(t, "Invalid settings file.", uerr.ReasonText())
			})
		}
	})

	t.Run("invalid content", func(t *testing.T) {
		cfg := Default()
		err := Parse([]byte("mcpServers: [oops"), &cfg)
		require.Error(t, err)
		var uerr errs.Error
		require.ErrorAs(t, err, &uerr)
		require.Equal(t, "Could not parse settings file.", uerr.ReasonText())
	})
}

func TestLoad(t *testing.T) {
	t.Run("reads file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "mcp_config.json")
		require.NoError(t, os.WriteFile(path, []byte(jsonSettings), 0o600))

		cfg, err := Load(path)
		require.NoError(t, err)
		require.Equal(t, path, cfg.ConfigPath)
		require.Len(t, cfg.MCPServers, 2)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
		require.Error(t, err)
		var uerr errs.Error
		require.ErrorAs(t, err, &uerr)
		require.Contains(t, uerr.ReasonText(), "does not exist")
	})
}

func TestEnabledServers(t *testing.T) {
	cfg := Default()
	require.NoError(t, Parse([]byte(jsonSettings), &cfg))
	enabled := cfg.EnabledServers()
	require.Contains(t, enabled, "files")
	require.NotContains(t, enabled, "remote")
}

func TestModelMatches(t *testing.T) {
	m := Model{Name: "gpt-4o", Title: "fast"}
	require.True(t, m.Matches("gpt-4o"))
	require.True(t, m.Matches("fast"))
	require.False(t, m.Matches(""))
	require.False(t, m.Matches("gpt-4"))
}
