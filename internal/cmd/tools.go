package cmd

import (
	"context"
	"encoding/json"

	"github.com/dotcommander/dolphin/internal/config"
	"github.com/dotcommander/dolphin/internal/errs"
	"github.com/dotcommander/dolphin/internal/mcp"
)

// listTools prints the normalized tool catalog of every server that came up,
// then stops them all.
func (rt *runtime) listTools(ctx context.Context, cfg *config.Config) error {
	pool, err := rt.newService(cfg).Connect(ctx)
	if err != nil {
		return errs.Error{Err: err, Reason: "Could not start the MCP servers."}
	}
	defer func() { _ = pool.Close() }()

	catalog, err := mcp.Aggregate(ctx, pool)
	if err != nil {
		return errs.Error{Err: err, Reason: "Could not list the MCP server tools."}
	}

	enc := json.NewEncoder(rt.stdout)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(catalog); err != nil {
		return errs.Error{Err: err, Reason: "Could not write to standard output."}
	}
	return nil
}
