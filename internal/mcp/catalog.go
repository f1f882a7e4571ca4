package mcp

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/mark3labs/mcp-go/mcp"
)

// ToolDescriptor is the part of a server's tool record the catalog cares
// about. A nil field was absent from the record.
type ToolDescriptor struct {
	Name        *string
	Description *string
}

// DescriptorFromTool converts an mcp-go tool. Empty fields are treated as
// absent since the wire format omits them.
func DescriptorFromTool(tool mcp.Tool) ToolDescriptor {
	var d ToolDescriptor
	if tool.Name != "" {
		d.Name = &tool.Name
	}
	if tool.Description != "" {
		d.Description = &tool.Description
	}
	return d
}

// NormalizedTool is a catalog entry. Fields absent from the source descriptor
// are omitted from the JSON form.
type NormalizedTool struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// Catalog maps a server name to its tools in the order the server reported
// them.
type Catalog map[string][]NormalizedTool

// Normalize keeps the fields present in d with surrounding whitespace and
// invisible characters removed.
func Normalize(d ToolDescriptor) NormalizedTool {
	var t NormalizedTool
	if d.Name != nil {
		name := TrimInvisible(*d.Name)
		t.Name = &name
	}
	if d.Description != nil {
		desc := TrimInvisible(*d.Description)
		t.Description = &desc
	}
	return t
}

// TrimInvisible removes leading and trailing whitespace, control and format
// characters (zero-width spaces, byte order marks, bidi marks) from s.
func TrimInvisible(s string) string {
	return strings.TrimFunc(s, isInvisible)
}

func isInvisible(r rune) bool {
	return unicode.IsSpace(r) || unicode.IsControl(r) || unicode.Is(unicode.Cf, r)
}

// Aggregate reads every connection's tool catalog and normalizes it. It does
// not close the pool.
func Aggregate(ctx context.Context, pool *Pool) (Catalog, error) {
	tools, err := pool.Tools(ctx)
	if err != nil {
		return nil, fmt.Errorf("aggregate: %w", err)
	}

	catalog := make(Catalog, len(tools))
	for name, serverTools := range tools {
		entries := make([]NormalizedTool, 0, len(serverTools))
		for _, tool := range serverTools {
			entries = append(entries, Normalize(DescriptorFromTool(tool)))
		}
		catalog[name] = entries
	}
	return catalog, nil
}
