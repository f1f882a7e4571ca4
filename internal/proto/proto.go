// Package proto holds the engine-neutral request and message types shared by
// the orchestrator, the engine bridge and the message log.
package proto

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// Roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Chunk is one streamed piece of model output.
type Chunk struct {
	Content string
}

// ToolCallerFunc runs a tool by its fully qualified name.
type ToolCallerFunc = func(name string, data []byte) (string, error)

// Request is a completion request handed to a stream.Client.
type Request struct {
	Messages            []Message
	API                 string
	Model               string
	User                string
	Temperature         *float64
	TopP                *float64
	TopK                *int64
	MaxTokens           *int64
	MaxCompletionTokens *int64
	MaxSteps            int
	Tools               map[string][]mcp.Tool
	ToolCaller          ToolCallerFunc
}

// Function is the function part of a tool call.
type Function struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID       string   `json:"id"`
	IsError  bool     `json:"is_error,omitempty"`
	Function Function `json:"function"`
}

// Message is one exchanged message.
type Message struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

func (m Message) String() string {
	var sb strings.Builder
	switch m.Role {
	case RoleSystem:
		sb.WriteString("**System**: ")
	case RoleUser:
		sb.WriteString("**Prompt**: ")
	case RoleAssistant:
		sb.WriteString("**Assistant**: ")
	case RoleTool:
		for _, tool := range m.ToolCalls {
			fmt.Fprintf(&sb, "> Ran tool: `%s`\n", tool.Function.Name)
		}
		return sb.String()
	}
	sb.WriteString(m.Content)
	return sb.String()
}

// ToolCallStatus reports the outcome of one executed tool call.
type ToolCallStatus struct {
	Name string
	Err  error
}

func (s ToolCallStatus) String() string {
	if s.Err != nil {
		return fmt.Sprintf("Failed to call %q: %s", s.Name, s.Err)
	}
	return fmt.Sprintf("Ran %q", s.Name)
}
