// Package mcp manages the MCP provider servers for one invocation.
//
// Connect starts every enabled server concurrently and returns a Pool holding
// the ones that came up; servers that fail are reported and left out. The Pool
// owns its connections: Close tears each of them down exactly once, and the
// caller that asked for the pool is expected to defer it. Aggregate turns a
// pool into a normalized tool catalog.
package mcp
