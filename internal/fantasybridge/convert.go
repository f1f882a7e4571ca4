// Package fantasybridge drives the model-invocation engine through
// charm.land/fantasy and converts between its types and the proto package.
package fantasybridge

import (
	"cmp"
	"errors"
	"maps"
	"slices"

	"charm.land/fantasy"
	"github.com/mark3labs/mcp-go/mcp"

	imcp "github.com/dotcommander/dolphin/internal/mcp"
	"github.com/dotcommander/dolphin/internal/proto"
)

func toFantasyPrompt(input []proto.Message) fantasy.Prompt {
	messages := make([]fantasy.Message, 0, len(input))
	for _, msg := range input {
		var m fantasy.Message
		switch msg.Role {
		case proto.RoleSystem:
			m = textMessage(fantasy.MessageRoleSystem, msg.Content)
		case proto.RoleUser:
			m = textMessage(fantasy.MessageRoleUser, msg.Content)
		case proto.RoleAssistant:
			m = assistantMessage(msg)
		case proto.RoleTool:
			m = toolResultMessage(msg)
		}
		// Assistant and tool messages without parts are dropped.
		if len(m.Content) > 0 {
			messages = append(messages, m)
		}
	}
	return messages
}

func textMessage(role fantasy.MessageRole, text string) fantasy.Message {
	return fantasy.Message{
		Role:    role,
		Content: []fantasy.MessagePart{fantasy.TextPart{Text: text}},
	}
}

func assistantMessage(msg proto.Message) fantasy.Message {
	parts := make([]fantasy.MessagePart, 0, 1+len(msg.ToolCalls))
	if msg.Content != "" {
		parts = append(parts, fantasy.TextPart{Text: msg.Content})
	}
	for _, call := range msg.ToolCalls {
		parts = append(parts, fantasy.ToolCallPart{
			ToolCallID: call.ID,
			ToolName:   call.Function.Name,
			Input:      string(call.Function.Arguments),
		})
	}
	return fantasy.Message{Role: fantasy.MessageRoleAssistant, Content: parts}
}

// toolResultMessage answers every call in msg with msg's content. Failed calls
// are sent as errors so the model can tell them apart.
func toolResultMessage(msg proto.Message) fantasy.Message {
	parts := make([]fantasy.MessagePart, 0, len(msg.ToolCalls))
	for _, call := range msg.ToolCalls {
		var output fantasy.ToolResultOutputContent = fantasy.ToolResultOutputContentText{Text: msg.Content}
		if call.IsError {
			output = fantasy.ToolResultOutputContentError{Error: errors.New(msg.Content)}
		}
		parts = append(parts, fantasy.ToolResultPart{ToolCallID: call.ID, Output: output})
	}
	return fantasy.Message{Role: fantasy.MessageRoleTool, Content: parts}
}

// fromMCPTools exposes the tools of every server under their pool names.
// Servers are walked in name order and each server keeps its own tool order.
// Tools without a name cannot be called and are skipped. When two servers
// produce the same name, the server with the longer name keeps it, since that
// is the server the pool routes the name to.
func fromMCPTools(servers map[string][]mcp.Tool) []fantasy.Tool {
	owners := map[string]string{}
	byLength := slices.SortedFunc(maps.Keys(servers), func(a, b string) int {
		return cmp.Or(cmp.Compare(len(b), len(a)), cmp.Compare(a, b))
	})
	for _, server := range byLength {
		for _, tool := range servers[server] {
			name := imcp.ToolName(server, tool.Name)
			if _, taken := owners[name]; !taken {
				owners[name] = server
			}
		}
	}

	tools := make([]fantasy.Tool, 0, len(owners))
	for _, server := range slices.Sorted(maps.Keys(servers)) {
		for _, tool := range servers[server] {
			name := imcp.ToolName(server, tool.Name)
			if tool.Name == "" || owners[name] != server {
				continue
			}
			// A server listing the same tool twice is exposed once.
			delete(owners, name)
			tools = append(tools, fantasy.FunctionTool{
				Name:        name,
				Description: imcp.TrimInvisible(tool.Description),
				InputSchema: inputSchema(tool.InputSchema),
			})
		}
	}
	return tools
}

// inputSchema renders a tool's parameters as a JSON schema object. Providers
// reject a null properties member, so it is always present.
func inputSchema(schema mcp.ToolInputSchema) map[string]any {
	properties := schema.Properties
	if properties == nil {
		properties = map[string]any{}
	}
	out := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(schema.Required) > 0 {
		out["required"] = schema.Required
	}
	return out
}

func toolChoiceForRequest(request proto.Request) *fantasy.ToolChoice {
	if len(request.Tools) == 0 {
		return nil
	}
	choice := fantasy.ToolChoiceAuto
	return &choice
}
