// Package mcp defines how tools of Model Context Protocol (MCP) servers are
// imported as chat functions.
//
// A [Host] connects to one or more MCP servers, lists their tools and exposes
// each of them as a [llamachat.Function] whose handler forwards the call to
// the owning server.
//
// Lifecycle:
//
//  1. Call [Host.RegisterServer] for each MCP server to connect to.
//  2. Register [Host.Functions] with a llamachat client.
//  3. Call [Host.Close] to release all connections.
//
// All methods must be safe for concurrent use.
package mcp

import (
	"context"
	"encoding/json"

	"github.com/thearyanag/llamachat/pkg/llamachat"
)

// Host manages connections to MCP servers and routes tool calls.
//
// Implementations must be safe for concurrent use.
type Host interface {
	// RegisterServer connects to the MCP server described by cfg and imports
	// its tool catalogue. A server registered again under the same Name is
	// reconnected and its tools replaced.
	RegisterServer(ctx context.Context, cfg ServerConfig) error

	// Functions returns one function per imported tool, sorted by name.
	Functions() []llamachat.Function

	// ExecuteTool calls the named tool with a JSON object of arguments and
	// returns its text output. A tool-level failure reported by the server is
	// returned as an error.
	ExecuteTool(ctx context.Context, name string, args json.RawMessage) (string, error)

	// Stats reports per-tool call statistics, sorted by name.
	Stats() []ToolStats

	// Close shuts down all server connections.
	Close() error
}
