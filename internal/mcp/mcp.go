// Package mcp exposes the task tools over the Model Context Protocol,
// so external MCP clients (editors, agents) can manage tasks directly.
// Transport is stdio; all tool calls are scoped to a single configured user.
package mcp

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jkaninda/kazi/internal/tools"
)

// ServerName is the MCP server identifier advertised to clients.
const ServerName = "kazi"

// Server wraps an MCP server over the tool dispatcher.
type Server struct {
	mcpServer  *server.MCPServer
	dispatcher *tools.Dispatcher
	userID     string
	logger     *slog.Logger
}

// NewServer creates an MCP server exposing every registered tool.
// userID scopes all tool executions; stdio transport is single-user.
func NewServer(dispatcher *tools.Dispatcher, userID, version string, logger *slog.Logger) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			ServerName,
			version,
			server.WithToolCapabilities(true),
			server.WithRecovery(),
		),
		dispatcher: dispatcher,
		userID:     userID,
		logger:     logger,
	}

	for _, t := range dispatcher.Registry().All() {
		s.mcpServer.AddTool(toolDefinition(t), s.handlerFor(t.Name()))
	}

	return s
}

// ServeStdio blocks serving MCP over stdin/stdout until the client disconnects.
func (s *Server) ServeStdio() error {
	s.logger.Info("starting MCP server on stdio",
		slog.String("user_id", s.userID),
		slog.Int("tools", len(s.dispatcher.Registry().List())))
	return server.ServeStdio(s.mcpServer)
}

// handlerFor builds an MCP tool handler delegating to the dispatcher.
// Domain failures come back as tool results, never as protocol errors.
func (s *Server) handlerFor(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx = tools.ContextWithUserID(ctx, s.userID)

		res, err := s.dispatcher.Execute(ctx, name, req.GetArguments())
		if err != nil {
			s.logger.Error("tool execution failed",
				slog.String("tool", name),
				slog.String("error", err.Error()))
			return nil, err
		}
		if !res.Success {
			return mcp.NewToolResultError(res.Output), nil
		}
		return mcp.NewToolResultText(res.Output), nil
	}
}

// toolDefinition translates a tool's JSON Schema into an MCP tool definition.
func toolDefinition(t tools.Tool) mcp.Tool {
	opts := []mcp.ToolOption{mcp.WithDescription(t.Description())}

	schema := t.InputSchema()
	props, _ := schema["properties"].(map[string]any)
	required := map[string]bool{}
	if reqs, ok := schema["required"].([]string); ok {
		for _, r := range reqs {
			required[r] = true
		}
	} else if reqs, ok := schema["required"].([]any); ok {
		for _, r := range reqs {
			if name, ok := r.(string); ok {
				required[name] = true
			}
		}
	}

	for name, raw := range props {
		prop, ok := raw.(map[string]any)
		if !ok {
			continue
		}

		var popts []mcp.PropertyOption
		if desc, ok := prop["description"].(string); ok && desc != "" {
			popts = append(popts, mcp.Description(desc))
		}
		if required[name] {
			popts = append(popts, mcp.Required())
		}
		if values := enumValues(prop); len(values) > 0 {
			popts = append(popts, mcp.Enum(values...))
		}

		switch prop["type"] {
		case "boolean":
			opts = append(opts, mcp.WithBoolean(name, popts...))
		case "integer", "number":
			opts = append(opts, mcp.WithNumber(name, popts...))
		case "array":
			opts = append(opts, mcp.WithArray(name, popts...))
		default:
			opts = append(opts, mcp.WithString(name, popts...))
		}
	}

	return mcp.NewTool(t.Name(), opts...)
}

func enumValues(prop map[string]any) []string {
	raw, ok := prop["enum"].([]any)
	if !ok {
		if typed, ok := prop["enum"].([]string); ok {
			return typed
		}
		return nil
	}
	values := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			values = append(values, s)
		}
	}
	return values
}
