// Package stream defines the contract between the orchestrator and the
// model-invocation engine.
package stream

import (
	"context"
	"errors"

	"github.com/dotcommander/dolphin/internal/proto"
)

// ErrNoContent is returned by Current when the last event carried no text.
var ErrNoContent = errors.New("no content")

// Client starts streaming completions.
type Client interface {
	Request(ctx context.Context, request proto.Request) Stream
}

// Stream is a single-pass stream of model output for one step. When Next
// returns false the step is over; CallTools executes the tool calls requested
// during the step and, when it returns a non-empty result, Next starts the
// following step.
type Stream interface {
	Next() bool
	Current() (proto.Chunk, error)
	Err() error
	Close() error
	Messages() []proto.Message
	CallTools() []proto.ToolCallStatus
	DrainWarnings() []string
}

// CallTool runs one tool call through caller and returns the tool message to
// append to the conversation along with its status.
func CallTool(id, name string, data []byte, caller proto.ToolCallerFunc) (proto.Message, proto.ToolCallStatus) {
	status := proto.ToolCallStatus{Name: name}
	var content string
	if caller == nil {
		status.Err = errors.New("tools are not available")
	} else {
		content, status.Err = caller(name, data)
	}
	if status.Err != nil {
		content = status.Err.Error()
	}
	return proto.Message{
		Role:    proto.RoleTool,
		Content: content,
		ToolCalls: []proto.ToolCall{{
			ID:      id,
			IsError: status.Err != nil,
			Function: proto.Function{
				Name:      name,
				Arguments: data,
			},
		}},
	}, status
}
