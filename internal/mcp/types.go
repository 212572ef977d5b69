package mcp

// Transport selects the connection mechanism for an MCP server.
type Transport string

const (
	// TransportStdio spawns a subprocess and communicates over stdin/stdout.
	TransportStdio Transport = "stdio"

	// TransportStreamableHTTP communicates via the MCP Streamable HTTP protocol.
	TransportStreamableHTTP Transport = "streamable-http"
)

// IsValid reports whether t is a recognised transport.
func (t Transport) IsValid() bool {
	return t == TransportStdio || t == TransportStreamableHTTP
}

// ServerConfig describes how to connect to a single MCP server.
type ServerConfig struct {
	// Name identifies the server in logs and errors. Must be unique within a
	// single [Host].
	Name string

	// Transport specifies the connection mechanism.
	Transport Transport

	// Command is the executable path and optional arguments, split on
	// whitespace, used when Transport is [TransportStdio].
	// Example: "/usr/local/bin/mcp-server --root /srv/data"
	Command string

	// URL is the endpoint used when Transport is [TransportStreamableHTTP].
	URL string

	// BearerToken, when set, is sent as "Authorization: Bearer <token>" to
	// streamable-http servers.
	BearerToken string

	// Env holds additional environment variables for the subprocess of a
	// stdio server. The current environment is inherited. May be nil.
	Env map[string]string
}

// ToolStats summarises the calls made to one imported tool.
type ToolStats struct {
	// Name is the tool (and function) name.
	Name string

	// Server is the name of the MCP server that provides the tool.
	Server string

	// Calls is the total number of calls since the tool was imported.
	Calls int

	// P50Ms and P99Ms are latency percentiles over the most recent calls.
	P50Ms int64
	P99Ms int64

	// ErrorRate is the fraction of recent calls that failed (0.0–1.0).
	ErrorRate float64
}
