// Package mcpserver exposes the inventory tools over the Model Context Protocol.
package mcpserver

import (
	"context"
	"fmt"
	"math"

	"inventory-service/internal/service"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	ServerName    = "inventory-mcp"
	ServerVersion = "1.0.0"
)

type toolHandlers struct {
	tools *service.Tools
}

// NewServer registers get_item_stock_price, change_item_stock and
// get_stock_history_by_date on a new MCP server.
func NewServer(tools *service.Tools) *server.MCPServer {
	s := server.NewMCPServer(ServerName, ServerVersion,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	h := &toolHandlers{tools: tools}

	s.AddTool(mcp.NewTool(service.ToolGetItemStockPrice,
		mcp.WithDescription("Look up price and stock of an item by name."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Item name")),
	), h.getItemStockPrice)

	s.AddTool(mcp.NewTool(service.ToolChangeItemStock,
		mcp.WithDescription("Change the stock of an item by a signed delta, with an optional reason."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Item name")),
		mcp.WithNumber("delta", mcp.Required(), mcp.Description("Signed integer change; negative for outbound")),
		mcp.WithString("reason", mcp.Description("Why the stock changed")),
	), h.changeItemStock)

	s.AddTool(mcp.NewTool(service.ToolGetStockHistoryByDate,
		mcp.WithDescription("List stock changes of one calendar day (YYYY-MM-DD)."),
		mcp.WithString("date", mcp.Required(), mcp.Description("Calendar date, YYYY-MM-DD")),
	), h.getStockHistoryByDate)

	return s
}

// NewHTTPHandler serves the MCP server over streamable HTTP
func NewHTTPHandler(s *server.MCPServer) *server.StreamableHTTPServer {
	return server.NewStreamableHTTPServer(s)
}

// ServeStdio serves the MCP server on stdin/stdout until EOF or a signal
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func (h *toolHandlers) getItemStockPrice(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	out, err := h.tools.GetItemStockPrice(ctx, name)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(out), nil
}

func (h *toolHandlers) changeItemStock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	raw, err := req.RequireFloat("delta")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if raw != math.Trunc(raw) || math.Abs(raw) > math.MaxInt64/2 {
		return mcp.NewToolResultError(fmt.Sprintf("delta must be an integer, got %v", raw)), nil
	}

	var reason *string
	if r := req.GetString("reason", ""); r != "" {
		reason = &r
	}

	out, err := h.tools.ChangeItemStock(ctx, name, int64(raw), reason)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(out), nil
}

func (h *toolHandlers) getStockHistoryByDate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	date, err := req.RequireString("date")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	out, err := h.tools.GetStockHistoryByDate(ctx, date)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(out), nil
}
