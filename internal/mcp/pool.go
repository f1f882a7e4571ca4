package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"golang.org/x/sync/errgroup"

	"github.com/dotcommander/dolphin/internal/config"
)

// Options configure Connect.
type Options struct {
	// Dial establishes one connection. Defaults to Dialer{InheritEnv: true}.Dial.
	Dial DialFunc
	// Timeout bounds each server's connect handshake. Zero means no bound.
	Timeout time.Duration
	// Quiet suppresses progress reports.
	Quiet bool
	// Connected is called after a server came up.
	Connected func(name string)
	// Failed is called when a server could not be started.
	Failed func(name string, err error)
	// ListFailed is called when a connected server could not list its tools.
	ListFailed func(name string, err error)
}

// Pool owns the connections established for one invocation.
type Pool struct {
	mu     sync.Mutex
	conns  map[string]Connection
	closed bool

	listFailed func(name string, err error)
}

// NewPool wraps already established connections. The pool takes ownership of
// them.
func NewPool(conns map[string]Connection) *Pool {
	if conns == nil {
		conns = map[string]Connection{}
	}
	return &Pool{conns: conns}
}

// Connect starts every server concurrently. Servers that fail are reported
// through Options.Failed and left out of the pool; a partial pool is not an
// error. If ctx is done before all servers settled, every connection that did
// come up is closed and the context error is returned.
func Connect(ctx context.Context, servers map[string]config.MCPServerConfig, opts Options) (*Pool, error) {
	dial := opts.Dial
	if dial == nil {
		dial = Dialer{InheritEnv: true}.Dial
	}

	var (
		mu    sync.Mutex
		g     errgroup.Group
		conns = make(map[string]Connection, len(servers))
	)
	for name, server := range servers {
		// A failing server is reported and left out; it never fails the group.
		g.Go(func() error {
			dialCtx := ctx
			if opts.Timeout > 0 {
				var cancel context.CancelFunc
				dialCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
				defer cancel()
			}

			conn, err := dial(dialCtx, name, server)
			if errors.Is(err, context.DeadlineExceeded) {
				err = fmt.Errorf("timeout while starting %q - make sure the configuration is correct. If your server requires a docker container, make sure it's running", name)
			}
			if err != nil {
				if !opts.Quiet && opts.Failed != nil {
					opts.Failed(name, err)
				}
				return nil
			}

			mu.Lock()
			conns[name] = conn
			mu.Unlock()
			if !opts.Quiet && opts.Connected != nil {
				opts.Connected(name)
			}
			return nil
		})
	}
	_ = g.Wait()

	pool := NewPool(conns)
	if !opts.Quiet {
		pool.listFailed = opts.ListFailed
	}
	if err := ctx.Err(); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("mcp connect: %w", err)
	}
	return pool, nil
}

// Names returns the names of the connected servers in sorted order.
func (p *Pool) Names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Sorted(maps.Keys(p.conns))
}

// Len returns the number of connected servers.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns)
}

// Get returns the connection for name.
func (p *Pool) Get(name string) (Connection, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, false
	}
	conn, ok := p.conns[name]
	return conn, ok
}

// Tools lists the tools of every server, keyed by server name. A server that
// fails to list is reported through Options.ListFailed and left out, the same
// as a server that failed to start. Only a closed pool or a done ctx fail the
// whole listing.
func (p *Pool) Tools(ctx context.Context) (map[string][]mcp.Tool, error) {
	out := map[string][]mcp.Tool{}
	for _, name := range p.Names() {
		conn, ok := p.Get(name)
		if !ok {
			return nil, errPoolClosed
		}
		tools, err := conn.ListTools(ctx)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("mcp tools: %w", ctxErr)
		}
		if err != nil {
			if p.listFailed != nil {
				p.listFailed(name, err)
			}
			continue
		}
		out[name] = tools
	}
	return out, nil
}

// ToolName is the name a server's tool is exposed under: <server>_<tool>.
func ToolName(server, tool string) string {
	return server + toolNameSep + tool
}

const toolNameSep = "_"

// CallTool executes a tool call against the owning server.
// fullName must have been built by ToolName.
func (p *Pool) CallTool(ctx context.Context, fullName string, data []byte) (string, error) {
	name, tool, ok := p.split(fullName)
	if !ok {
		return "", fmt.Errorf("mcp: invalid tool name: %q", fullName)
	}
	conn, ok := p.Get(name)
	if !ok {
		return "", fmt.Errorf("mcp: invalid server name: %q", name)
	}
	out, err := conn.CallTool(ctx, tool, json.RawMessage(data))
	if err != nil {
		return "", fmt.Errorf("mcp: %w", err)
	}
	return out, nil
}

// split resolves fullName against the connected server names. Server names
// may themselves contain underscores, so the longest matching prefix wins.
func (p *Pool) split(fullName string) (string, string, bool) {
	names := p.Names()
	slices.SortFunc(names, func(a, b string) int { return len(b) - len(a) })
	for _, name := range names {
		if tool, ok := strings.CutPrefix(fullName, name+toolNameSep); ok && tool != "" {
			return name, tool, true
		}
	}
	return "", "", false
}

// Close tears down every connection. Only the first call has an effect; later
// calls return nil.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	conns := p.conns
	p.mu.Unlock()

	var errs []error
	for _, name := range slices.Sorted(maps.Keys(conns)) {
		if err := conns[name].Close(); err != nil {
			errs = append(errs, fmt.Errorf("stop %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

var errPoolClosed = errors.New("mcp: pool is closed")
