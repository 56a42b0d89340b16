// Package mcp exposes bearing's plan_route tool over the Model Context
// Protocol, so any MCP client (an agent, an IDE assistant) can submit
// routing requests against a live dispatcher.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/go-kratos/bearing"
	"github.com/go-kratos/bearing/tools"
)

const (
	serverName = "bearing-navigation"
	toolName   = "plan_route"
	toolDesc   = "Compute a route between an origin and a destination, optionally via intermediate stops, returning either a completed route or the result code the request ended with."
)

// Server wraps an mcp.Server exposing a single plan_route tool backed by
// a bearing.Dispatcher.
type Server struct {
	log   *slog.Logger
	mcp   *mcp.Server
	tools []*tools.Tool
}

// New constructs the MCP server and registers plan_route against d.
func New(log *slog.Logger, d *bearing.Dispatcher, version string) (*Server, error) {
	if log == nil {
		log = slog.Default()
	}

	routeTool, err := tools.NewRouteTool(d, log)
	if err != nil {
		return nil, fmt.Errorf("mcp: building plan_route tool: %w", err)
	}

	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    serverName,
		Version: version,
	}, nil)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:         toolName,
		Description:  toolDesc,
		InputSchema:  routeTool.InputSchema,
		OutputSchema: routeTool.OutputSchema,
	}, func(ctx context.Context, _ *mcp.CallToolRequest, req tools.PlanRouteRequest) (*mcp.CallToolResult, tools.PlanRouteResponse, error) {
		encoded, err := json.Marshal(req)
		if err != nil {
			return nil, tools.PlanRouteResponse{}, fmt.Errorf("mcp: encoding plan_route request: %w", err)
		}
		out, err := routeTool.Handler.Handle(ctx, string(encoded))
		if err != nil {
			log.Warn("mcp: plan_route call failed", "error", err)
			return nil, tools.PlanRouteResponse{}, err
		}
		var resp tools.PlanRouteResponse
		if err := json.Unmarshal([]byte(out), &resp); err != nil {
			return nil, tools.PlanRouteResponse{}, fmt.Errorf("mcp: decoding plan_route response: %w", err)
		}
		return nil, resp, nil
	})

	return &Server{log: log, mcp: mcpServer, tools: []*tools.Tool{routeTool}}, nil
}

// GetTools reports the tools this server exposes: the single plan_route
// tool registered at construction.
func (s *Server) GetTools(ctx context.Context) ([]*tools.Tool, error) {
	return s.tools, nil
}

// Close releases nothing today: the underlying mcp.Server has no
// persistent connections of its own until a transport is attached
// (Run/ServeHTTP), and closing is then the transport's responsibility.
func (s *Server) Close() error {
	return nil
}

// Underlying returns the wrapped *mcp.Server for attaching a transport
// (stdio, StreamableHTTP, ...).
func (s *Server) Underlying() *mcp.Server {
	return s.mcp
}
