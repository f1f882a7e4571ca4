package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"

	mmcp "github.com/mark3labs/mcp-go/mcp"

	"github.com/dotcommander/dolphin/internal/config"
	"github.com/dotcommander/dolphin/internal/fantasybridge"
	"github.com/dotcommander/dolphin/internal/mcp"
	"github.com/dotcommander/dolphin/internal/proto"
	"github.com/dotcommander/dolphin/internal/stream"
)

type fakeConn struct {
	tools  []mmcp.Tool
	calls  []string
	closes atomic.Int32
}

func (f *fakeConn) ListTools(context.Context) ([]mmcp.Tool, error) {
	return f.tools, nil
}

func (f *fakeConn) CallTool(_ context.Context, name string, _ json.RawMessage) (string, error) {
	f.calls = append(f.calls, name)
	return "ok:" + name, nil
}

func (f *fakeConn) Close() error {
	f.closes.Add(1)
	return nil
}

type fakeServers struct {
	conns  map[string]*fakeConn
	dialed atomic.Int32
}

func (f *fakeServers) Dial(_ context.Context, name string, _ config.MCPServerConfig) (mcp.Connection, error) {
	f.dialed.Add(1)
	conn, ok := f.conns[name]
	if !ok {
		return nil, errors.New("exec: " + name + ": not found")
	}
	return conn, nil
}

type scriptStep struct {
	fragments []string
	calls     []proto.ToolCall
	err       error
}

// scriptStream plays back a fixed sequence of steps.
type scriptStream struct {
	steps    []scriptStep
	request  proto.Request
	messages []proto.Message
	step     int
	pos      int
	ended    bool
	closed   atomic.Bool
}

func (s *scriptStream) current() *scriptStep {
	if s.step >= len(s.steps) {
		return nil
	}
	return &s.steps[s.step]
}

func (s *scriptStream) Next() bool {
	st := s.current()
	if st == nil || s.closed.Load() {
		return false
	}
	if s.pos < len(st.fragments) {
		s.pos++
		return true
	}
	if !s.ended && st.err == nil {
		s.ended = true
		s.messages = append(s.messages, proto.Message{
			Role:      proto.RoleAssistant,
			Content:   strings.Join(st.fragments, ""),
			ToolCalls: st.calls,
		})
	}
	return false
}

func (s *scriptStream) Current() (proto.Chunk, error) {
	st := s.current()
	if st == nil || s.pos == 0 {
		return proto.Chunk{}, stream.ErrNoContent
	}
	return proto.Chunk{Content: st.fragments[s.pos-1]}, nil
}

func (s *scriptStream) Err() error {
	if st := s.current(); st != nil && s.pos == len(st.fragments) {
		return st.err
	}
	return nil
}

func (s *scriptStream) Close() error {
	s.closed.Store(true)
	return nil
}

func (s *scriptStream) Messages() []proto.Message { return s.messages }

func (s *scriptStream) CallTools() []proto.ToolCallStatus {
	st := s.current()
	if st == nil || len(st.calls) == 0 {
		return nil
	}
	statuses := make([]proto.ToolCallStatus, 0, len(st.calls))
	for _, call := range st.calls {
		msg, status := stream.CallTool(call.ID, call.Function.Name, call.Function.Arguments, s.request.ToolCaller)
		s.messages = append(s.messages, msg)
		statuses = append(statuses, status)
	}
	s.step++
	s.pos = 0
	s.ended = false
	return statuses
}

func (s *scriptStream) DrainWarnings() []string { return nil }

type scriptClient struct {
	stream  *scriptStream
	request proto.Request
	config  fantasybridge.Config
}

func (c *scriptClient) Request(_ context.Context, request proto.Request) stream.Stream {
	c.request = request
	c.stream.request = request
	c.stream.messages = append([]proto.Message(nil), request.Messages...)
	return c.stream
}

func (c *scriptClient) factory(cfg fantasybridge.Config) (stream.Client, error) {
	c.config = cfg
	return c, nil
}
