package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dotcommander/dolphin/internal/config"
)

// ClientName is reported to servers during the initialize handshake.
const ClientName = "dolphin-mcp-cli"

// Connection is one running provider server.
type Connection interface {
	// ListTools returns the server's tool catalog in the order it reported it.
	ListTools(ctx context.Context) ([]mcp.Tool, error)
	// CallTool invokes a tool and returns its text output.
	CallTool(ctx context.Context, name string, args json.RawMessage) (string, error)
	// Close stops the server. It is safe to call more than once.
	Close() error
}

// DialFunc establishes a connection to one configured server.
type DialFunc func(ctx context.Context, name string, server config.MCPServerConfig) (Connection, error)

// Dialer builds connections backed by mcp-go clients.
type Dialer struct {
	// InheritEnv passes the current process environment to stdio servers.
	InheritEnv bool
	// Version is reported as the client version.
	Version string
}

// Dial implements DialFunc.
func (d Dialer) Dial(ctx context.Context, name string, server config.MCPServerConfig) (Connection, error) {
	cli, err := d.newClient(server)
	if err != nil {
		return nil, fmt.Errorf("could not setup %s: %w", name, err)
	}

	if err := cli.Start(ctx); err != nil {
		cli.Close() //nolint:errcheck,gosec
		return nil, fmt.Errorf("could not start %s: %w", name, err)
	}

	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcp.Implementation{Name: ClientName, Version: d.Version}
	if _, err := cli.Initialize(ctx, req); err != nil {
		cli.Close() //nolint:errcheck,gosec
		return nil, fmt.Errorf("could not initialize %s: %w", name, err)
	}

	return &serverConn{cli: cli}, nil
}

func (d Dialer) newClient(server config.MCPServerConfig) (*client.Client, error) {
	switch server.Type {
	case "", "stdio":
		if server.Command == "" {
			return nil, errors.New("missing command for stdio server")
		}
		env := server.Environ()
		if d.InheritEnv {
			env = append(os.Environ(), env...)
		}
		cli, err := client.NewStdioMCPClient(server.Command, env, server.Args...)
		if err != nil {
			return nil, fmt.Errorf("failed to create MCP client: %w", err)
		}
		return cli, nil
	case "sse":
		var opts []transport.ClientOption
		if len(server.Headers) > 0 {
			opts = append(opts, transport.WithHeaders(server.Headers))
		}
		cli, err := client.NewSSEMCPClient(server.URL, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create MCP client: %w", err)
		}
		return cli, nil
	case "http":
		var opts []transport.StreamableHTTPCOption
		if len(server.Headers) > 0 {
			opts = append(opts, transport.WithHTTPHeaders(server.Headers))
		}
		cli, err := client.NewStreamableHttpClient(server.URL, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create MCP client: %w", err)
		}
		return cli, nil
	default:
		return nil, fmt.Errorf("unsupported MCP server type: %q, supported types are: stdio, sse, http", server.Type)
	}
}

// serverConn adapts an mcp-go client to Connection. The tool list is fetched
// on first use and reused afterwards.
type serverConn struct {
	cli *client.Client

	toolsOnce sync.Once
	tools     []mcp.Tool
	toolsErr  error

	closeOnce sync.Once
	closeErr  error
}

func (c *serverConn) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	c.toolsOnce.Do(func() {
		res, err := c.cli.ListTools(ctx, mcp.ListToolsRequest{})
		if err != nil {
			c.toolsErr = fmt.Errorf("list tools: %w", err)
			return
		}
		c.tools = res.Tools
	})
	return c.tools, c.toolsErr
}

func (c *serverConn) CallTool(ctx context.Context, name string, data json.RawMessage) (string, error) {
	var args map[string]any
	if len(data) > 0 {
		if err := json.Unmarshal(data, &args); err != nil {
			return "", fmt.Errorf("invalid tool arguments: %w: %s", err, string(data))
		}
	}

	request := mcp.CallToolRequest{}
	request.Params.Name = name
	request.Params.Arguments = args
	result, err := c.cli.CallTool(ctx, request)
	if err != nil {
		return "", fmt.Errorf("call tool: %w", err)
	}
	return toolResultText(result)
}

func (c *serverConn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.cli.Close()
	})
	return c.closeErr
}

func toolResultText(result *mcp.CallToolResult) (string, error) {
	var sb strings.Builder
	for _, content := range result.Content {
		switch content := content.(type) {
		case mcp.TextContent:
			sb.WriteString(content.Text)
		default:
			sb.WriteString("[Non-text content]")
		}
	}

	if result.IsError {
		return "", errors.New(sb.String())
	}
	return sb.String(), nil
}
