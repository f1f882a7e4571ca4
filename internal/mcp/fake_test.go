package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dotcommander/dolphin/internal/config"
)

type fakeConn struct {
	tools    []mcp.Tool
	toolsErr error
	closes   atomic.Int32
	calls    []string
	lastArgs json.RawMessage
}

func (f *fakeConn) ListTools(context.Context) ([]mcp.Tool, error) {
	return f.tools, f.toolsErr
}

func (f *fakeConn) CallTool(_ context.Context, name string, args json.RawMessage) (string, error) {
	f.calls = append(f.calls, name)
	f.lastArgs = args
	if name == "explode" {
		return "", errors.New("tool exploded")
	}
	return "ok:" + name, nil
}

func (f *fakeConn) Close() error {
	f.closes.Add(1)
	return nil
}

// fakeDialer returns the connection registered for a server name, or an error
// for names registered in failing.
type fakeDialer struct {
	conns   map[string]*fakeConn
	failing map[string]error
	dialed  atomic.Int32
}

func (d *fakeDialer) Dial(ctx context.Context, name string, _ config.MCPServerConfig) (Connection, error) {
	d.dialed.Add(1)
	if err, ok := d.failing[name]; ok {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return d.conns[name], nil
}
