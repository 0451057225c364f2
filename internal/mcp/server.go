// Package mcp exposes tool handlers and resources over the Model Context
// Protocol, on stdio or streamable HTTP.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog/log"

	"github.com/incidentfox/incidentfox/internal/logging"
	"github.com/incidentfox/incidentfox/internal/metrics"
)

// ToolHandler handles one tool call. The returned value is sent to the
// client as indented JSON; a returned error becomes an isError result.
type ToolHandler func(ctx context.Context, args map[string]interface{}) (interface{}, error)

// ResourceHandler produces the text of a resource on each read
type ResourceHandler func(ctx context.Context) (string, error)

// Resource describes a readable MCP resource
type Resource struct {
	URI         string
	Name        string
	Description string
	MIMEType    string
}

// DomainError is implemented by tool results that report a handled failure,
// such as an unknown investigation id, rather than a successful answer
type DomainError interface {
	DomainError() bool
}

const callTimeout = 2 * time.Minute

// Server wraps an mcp-go server with logging and metrics around every call
type Server struct {
	mcp     *mcpserver.MCPServer
	metrics *metrics.Metrics

	mu    sync.RWMutex
	tools map[string]Tool
}

// NewServer creates a new MCP server. m may be nil.
func NewServer(name, version string, m *metrics.Metrics) *Server {
	return &Server{
		mcp: mcpserver.NewMCPServer(
			name,
			version,
			mcpserver.WithToolCapabilities(false),
			mcpserver.WithResourceCapabilities(false, false),
			mcpserver.WithLogging(),
		),
		metrics: m,
		tools:   make(map[string]Tool),
	}
}

// RegisterTool registers a tool with its handler. It panics on a schema that
// cannot be encoded, which is a programming error.
func (s *Server) RegisterTool(tool Tool, handler ToolHandler) {
	schema, err := tool.InputSchema.raw()
	if err != nil {
		panic(fmt.Sprintf("invalid schema for tool %s: %v", tool.Name, err))
	}

	s.mu.Lock()
	s.tools[tool.Name] = tool
	s.mu.Unlock()

	s.mcp.AddTool(mcpgo.NewToolWithRawSchema(tool.Name, tool.Description, schema), s.wrap(tool.Name, handler))
	log.Debug().Str("tool", tool.Name).Msg("Registered tool")
}

// RegisterResource registers a text resource
func (s *Server) RegisterResource(res Resource, handler ResourceHandler) {
	resource := mcpgo.NewResource(
		res.URI,
		res.Name,
		mcpgo.WithResourceDescription(res.Description),
		mcpgo.WithMIMEType(res.MIMEType),
	)
	s.mcp.AddResource(resource, func(ctx context.Context, req mcpgo.ReadResourceRequest) ([]mcpgo.ResourceContents, error) {
		text, err := handler(ctx)
		if err != nil {
			log.Error().Err(err).Str("uri", res.URI).Msg("Resource read failed")
			return nil, err
		}
		return []mcpgo.ResourceContents{
			mcpgo.TextResourceContents{URI: res.URI, MIMEType: res.MIMEType, Text: text},
		}, nil
	})
	log.Debug().Str("uri", res.URI).Msg("Registered resource")
}

// ToolNames lists registered tools in name order
func (s *Server) ToolNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.tools))
	for name := range s.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Server) wrap(name string, handler ToolHandler) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
		ctx, cancel := context.WithTimeout(ctx, callTimeout)
		defer cancel()

		start := time.Now()
		args := req.GetArguments()
		if args == nil {
			args = map[string]interface{}{}
		}

		result, err := handler(ctx, args)
		elapsed := time.Since(start)

		if err != nil {
			s.metrics.ObserveToolCall(name, metrics.OutcomeError, elapsed)
			log.Error().Err(err).Str("tool", name).Dur("duration", elapsed).Msg("Tool call failed")
			return mcpgo.NewToolResultError(err.Error()), nil
		}

		outcome := metrics.OutcomeOK
		if de, ok := result.(DomainError); ok && de.DomainError() {
			outcome = metrics.OutcomeDomainError
		}
		s.metrics.ObserveToolCall(name, outcome, elapsed)
		log.Debug().Str("tool", name).Str("outcome", outcome).Dur("duration", elapsed).Msg("Tool call")

		text, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return mcpgo.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
		}
		return mcpgo.NewToolResultText(string(text)), nil
	}
}

// HandleMessage processes one raw JSON-RPC message, as the transports do
func (s *Server) HandleMessage(ctx context.Context, msg json.RawMessage) mcpgo.JSONRPCMessage {
	return s.mcp.HandleMessage(ctx, msg)
}

// ServeStdio serves newline-delimited JSON-RPC on in/out until ctx is done
// or in is closed
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := mcpserver.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(logging.StdLogger("mcp-stdio"))
	log.Info().Int("tools", len(s.ToolNames())).Msg("MCP server listening on stdio")
	err := stdio.Listen(ctx, in, out)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF) {
		return fmt.Errorf("stdio transport: %w", err)
	}
	return nil
}

// HTTPHandler returns a stateless streamable HTTP handler to mount at path
func (s *Server) HTTPHandler(path string) http.Handler {
	return mcpserver.NewStreamableHTTPServer(
		s.mcp,
		mcpserver.WithEndpointPath(path),
		mcpserver.WithStateLess(true),
	)
}
