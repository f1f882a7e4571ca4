package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	mmcp "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"

	"github.com/dotcommander/dolphin/internal/agent"
	"github.com/dotcommander/dolphin/internal/config"
	"github.com/dotcommander/dolphin/internal/fantasybridge"
	"github.com/dotcommander/dolphin/internal/mcp"
	"github.com/dotcommander/dolphin/internal/proto"
	"github.com/dotcommander/dolphin/internal/stream"
)

const testSettings = `{
  "mcpServers": {
    "A": {"command": "server-a"},
    "B": {"command": "server-b"}
  },
  "models": [
    {"model": "gpt-test", "provider": "openai", "apiKey": "sk-test"}
  ]
}`

func newTestRuntime(t *testing.T, opts ...agent.Option) (*runtime, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	t.Setenv("DOLPHIN_CONFIG", "")
	var stdout, stderr bytes.Buffer
	return &runtime{
		build:     BuildInfo{Version: "1.2.3"},
		stdout:    &stdout,
		stderr:    &stderr,
		agentOpts: opts,
	}, &stdout, &stderr
}

func writeSettings(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mcp_config.json")
	require.NoError(t, os.WriteFile(path, []byte(testSettings), 0o600))
	return path
}

type fakeConn struct {
	tools    []mmcp.Tool
	toolsErr error
	closes   atomic.Int32
}

func (f *fakeConn) ListTools(context.Context) ([]mmcp.Tool, error) { return f.tools, f.toolsErr }

func (f *fakeConn) CallTool(context.Context, string, json.RawMessage) (string, error) {
	return "", nil
}

func (f *fakeConn) Close() error {
	f.closes.Add(1)
	return nil
}

// fakeServers brings up server A, and B when it is set, and fails every other
// one.
type fakeServers struct {
	a      *fakeConn
	b      *fakeConn
	dialed atomic.Int32
}

func newFakeServers() *fakeServers {
	return &fakeServers{a: &fakeConn{tools: []mmcp.Tool{{Name: " Foo \n", Description: "desc"}}}}
}

func (f *fakeServers) Dial(_ context.Context, name string, _ config.MCPServerConfig) (mcp.Connection, error) {
	f.dialed.Add(1)
	switch {
	case name == "A":
		return f.a, nil
	case name == "B" && f.b != nil:
		return f.b, nil
	}
	return nil, errors.New("connection refused")
}

// fragmentStream yields fragments, then fails with err if it is set.
type fragmentStream struct {
	fragments []string
	err       error
	pos       int
}

func (s *fragmentStream) Next() bool {
	if s.pos < len(s.fragments) {
		s.pos++
		return true
	}
	return false
}

func (s *fragmentStream) Current() (proto.Chunk, error) {
	return proto.Chunk{Content: s.fragments[s.pos-1]}, nil
}
func (s *fragmentStream) Err() error {
	if s.pos == len(s.fragments) {
		return s.err
	}
	return nil
}

func (s *fragmentStream) Close() error                      { return nil }
func (s *fragmentStream) Messages() []proto.Message         { return nil }
func (s *fragmentStream) CallTools() []proto.ToolCallStatus { return nil }
func (s *fragmentStream) DrainWarnings() []string           { return nil }

type fragmentClient struct {
	fragments []string
	err       error
}

func (c fragmentClient) Request(context.Context, proto.Request) stream.Stream {
	return &fragmentStream{fragments: c.fragments, err: c.err}
}

func fragmentFactory(fragments ...string) agent.ClientFactory {
	return failingFactory(nil, fragments...)
}

func failingFactory(err error, fragments ...string) agent.ClientFactory {
	return func(fantasybridge.Config) (stream.Client, error) {
		return fragmentClient{fragments: fragments, err: err}, nil
	}
}

type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestHelp(t *testing.T) {
	for name, args := range map[string][]string{
		"long":               {"--help"},
		"short":              {"-h"},
		"after a query":      {"what is up", "-h"},
		"with invalid flags": {"--model", "x", "--bogus", "--help"},
		"with tools mode":    {"--tools", "--help"},
	} {
		t.Run(name, func(t *testing.T) {
			servers := newFakeServers()
			rt, stdout, stderr := newTestRuntime(t, agent.WithDialer(servers.Dial))

			require.Equal(t, 0, rt.execute(context.Background(), args))
			require.Contains(t, stdout.String(), "Usage: dolphin-mcp-cli")
			require.Contains(t, stdout.String(), "--log-messages <file>")
			require.Contains(t, stdout.String(), "Show this help message")
			require.NotContains(t, stdout.String(), "--man")
			require.Empty(t, stderr.String())
			require.Zero(t, servers.dialed.Load())
		})
	}
}

func TestMissingQuery(t *testing.T) {
	for name, args := range map[string][]string{
		"no args":    {},
		"only flags": {"--quiet", "--model", "gpt-test"},
		"blank":      {"   "},
	} {
		t.Run(name, func(t *testing.T) {
			servers := newFakeServers()
			rt, stdout, stderr := newTestRuntime(t, agent.WithDialer(servers.Dial))

			require.Equal(t, 1, rt.execute(context.Background(), args))
			require.Contains(t, stdout.String(), "Usage: dolphin-mcp-cli [--model <name>]")
			require.Empty(t, stderr.String())
			require.Zero(t, servers.dialed.Load())
		})
	}
}

func TestListTools(t *testing.T) {
	servers := newFakeServers()
	rt, stdout, stderr := newTestRuntime(t, agent.WithDialer(servers.Dial))

	code := rt.execute(context.Background(), []string{"--config", writeSettings(t), "--tools", "ignored query"})
	require.Equal(t, 0, code, stderr.String())
	require.Equal(t, `{
  "A": [
    {
      "name": "Foo",
      "description": "desc"
    }
  ]
}
`, stdout.String())
	require.Contains(t, stderr.String(), "could not start")
	require.Contains(t, stderr.String(), "connection refused")
	require.EqualValues(t, 1, servers.a.closes.Load())
	require.EqualValues(t, 2, servers.dialed.Load())
}

func TestListToolsQuiet(t *testing.T) {
	servers := newFakeServers()
	rt, stdout, stderr := newTestRuntime(t, agent.WithDialer(servers.Dial))

	code := rt.execute(context.Background(), []string{"-t", "--quiet", "--config", writeSettings(t)})
	require.Equal(t, 0, code)
	require.Contains(t, stdout.String(), `"name": "Foo"`)
	require.Empty(t, stderr.String())
	require.EqualValues(t, 1, servers.a.closes.Load())
}

func TestAnswer(t *testing.T) {
	servers := newFakeServers()
	rt, stdout, stderr := newTestRuntime(t,
		agent.WithDialer(servers.Dial),
		agent.WithClientFactory(fragmentFactory("f1", "f2", "héllo <b>\n")),
	)

	code := rt.execute(context.Background(), []string{"--config", writeSettings(t), "--quiet", "what", "is", "up"})
	require.Equal(t, 0, code, stderr.String())
	require.Equal(t,
		"data: {\"content\": \"f1\"}\n\n"+
			"data: {\"content\": \"f2\"}\n\n"+
			"data: {\"content\": \"héllo <b>\\n\"}\n\n",
		stdout.String(),
	)
	require.Empty(t, stderr.String())
	require.EqualValues(t, 1, servers.a.closes.Load())
}

func TestListToolsServerCannotList(t *testing.T) {
	servers := newFakeServers()
	servers.b = &fakeConn{toolsErr: errors.New("method not found")}
	rt, stdout, stderr := newTestRuntime(t, agent.WithDialer(servers.Dial))

	code := rt.execute(context.Background(), []string{"--config", writeSettings(t), "--tools"})
	require.Equal(t, 0, code, stderr.String())
	require.JSONEq(t, `{"A": [{"name": "Foo", "description": "desc"}]}`, stdout.String())
	require.Contains(t, stderr.String(), "could not list the tools of")
	require.Contains(t, stderr.String(), "method not found")
	require.EqualValues(t, 1, servers.a.closes.Load())
	require.EqualValues(t, 1, servers.b.closes.Load())
}

func TestListToolsOutputFails(t *testing.T) {
	servers := newFakeServers()
	servers.b = &fakeConn{}
	rt, _, stderr := newTestRuntime(t, agent.WithDialer(servers.Dial))
	rt.stdout = brokenWriter{}

	code := rt.execute(context.Background(), []string{"--config", writeSettings(t), "--quiet", "--tools"})
	require.Equal(t, 1, code)
	require.Contains(t, stderr.String(), "Could not write to standard output.")
	require.EqualValues(t, 1, servers.a.closes.Load())
	require.EqualValues(t, 1, servers.b.closes.Load())
}

func TestAnswerStreamFails(t *testing.T) {
	servers := newFakeServers()
	rt, stdout, stderr := newTestRuntime(t,
		agent.WithDialer(servers.Dial),
		agent.WithClientFactory(failingFactory(errors.New("connection reset"), "f1", "f2")),
	)

	code := rt.execute(context.Background(), []string{"--config", writeSettings(t), "--quiet", "hi"})
	require.Equal(t, 1, code)
	require.Equal(t,
		"data: {\"content\": \"f1\"}\n\n"+
			"data: {\"content\": \"f2\"}\n\n",
		stdout.String(),
	)
	require.Contains(t, stderr.String(), "There was a problem with the openai API request.")
	require.EqualValues(t, 1, servers.a.closes.Load())
}

func TestAnswerOutputFails(t *testing.T) {
	servers := newFakeServers()
	rt, _, stderr := newTestRuntime(t,
		agent.WithDialer(servers.Dial),
		agent.WithClientFactory(fragmentFactory("f1", "f2")),
	)
	rt.stdout = brokenWriter{}

	code := rt.execute(context.Background(), []string{"--config", writeSettings(t), "--quiet", "hi"})
	require.Equal(t, 1, code)
	require.Contains(t, stderr.String(), "Could not write to standard output.")
	require.EqualValues(t, 1, servers.a.closes.Load())
}

func TestAnswerUnknownModel(t *testing.T) {
	servers := newFakeServers()
	rt, stdout, stderr := newTestRuntime(t,
		agent.WithDialer(servers.Dial),
		agent.WithClientFactory(fragmentFactory("never")),
	)

	code := rt.execute(context.Background(), []string{"--config", writeSettings(t), "--model", "nope", "hi"})
	require.Equal(t, 1, code)
	require.Empty(t, stdout.String())
	require.Contains(t, stderr.String(), "Model nope is not in the settings file.")
	require.Zero(t, servers.dialed.Load())
}

func TestMissingSettingsFile(t *testing.T) {
	rt, stdout, stderr := newTestRuntime(t)

	missing := filepath.Join(t.TempDir(), "nope.json")
	require.Equal(t, 1, rt.execute(context.Background(), []string{"--config", missing, "hi"}))
	require.Empty(t, stdout.String())
	require.Contains(t, stderr.String(), "does not exist.")
}

func TestUnknownFlag(t *testing.T) {
	rt, _, stderr := newTestRuntime(t)

	require.Equal(t, 1, rt.execute(context.Background(), []string{"--nope", "hi"}))
	require.Contains(t, stderr.String(), "--nope")
	require.Contains(t, stderr.String(), "is missing.")
}

func TestVersion(t *testing.T) {
	rt, stdout, _ := newTestRuntime(t)

	require.Equal(t, 0, rt.execute(context.Background(), []string{"--version"}))
	require.Contains(t, stdout.String(), "dolphin-mcp-cli 1.2.3")
}

func TestManPage(t *testing.T) {
	rt, stdout, _ := newTestRuntime(t)

	require.Equal(t, 0, rt.execute(context.Background(), []string{"--man"}))
	require.Contains(t, stdout.String(), ".TH")
}
