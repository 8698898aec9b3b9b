package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"inventory-service/internal/clock"
	"inventory-service/internal/service"
	"inventory-service/internal/store"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)

func setupHandlers(t *testing.T) *toolHandlers {
	t.Helper()

	s, err := store.NewStore(store.DriverSQLite, "file::memory:?_foreign_keys=on")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	ctx := context.Background()
	require.NoError(t, s.Migrate(ctx))
	_, err = s.SeedIfEmpty(ctx, store.StarterItems, testNow)
	require.NoError(t, err)

	svc := service.NewInventoryService(s, nil, nil, clock.Func(func() time.Time { return testNow }), time.UTC)
	return &toolHandlers{tools: service.NewTools(svc, time.UTC)}
}

func request(t *testing.T, tool, args string) mcp.CallToolRequest {
	t.Helper()
	var req mcp.CallToolRequest
	raw := fmt.Sprintf(`{"method":"tools/call","params":{"name":%q,"arguments":%s}}`, tool, args)
	require.NoError(t, json.Unmarshal([]byte(raw), &req))
	return req
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.Len(t, res.Content, 1)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestToolsOverMCP(t *testing.T) {
	h := setupHandlers(t)
	ctx := context.Background()

	res, err := h.changeItemStock(ctx, request(t, service.ToolChangeItemStock, `{"name":"Mouse","delta":-5,"reason":"sale"}`))
	require.NoError(t, err)
	assert.Equal(t, "'Mouse' stock changed from 50 to 45. (delta: -5, reason: sale)", text(t, res))

	res, err = h.getItemStockPrice(ctx, request(t, service.ToolGetItemStockPrice, `{"name":"Mouse"}`))
	require.NoError(t, err)
	assert.Equal(t, "Mouse | price: 25000 | stock: 45", text(t, res))

	res, err = h.getStockHistoryByDate(ctx, request(t, service.ToolGetStockHistoryByDate, `{"date":"2026-10-18"}`))
	require.NoError(t, err)
	assert.Equal(t, "[2026-10-18 10:00:00] Mouse | delta: -5 | reason: sale", text(t, res))

	res, err = h.changeItemStock(ctx, request(t, service.ToolChangeItemStock, `{"name":"Mouse","delta":-1000}`))
	require.NoError(t, err)
	assert.Equal(t, "Insufficient stock! Current stock: 45", text(t, res))
}

func TestToolArgumentErrors(t *testing.T) {
	h := setupHandlers(t)
	ctx := context.Background()

	res, err := h.getItemStockPrice(ctx, request(t, service.ToolGetItemStockPrice, `{}`))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = h.changeItemStock(ctx, request(t, service.ToolChangeItemStock, `{"name":"Mouse","delta":1.5}`))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = h.changeItemStock(ctx, request(t, service.ToolChangeItemStock, `{"name":"Mouse"}`))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestNewServerBuilds(t *testing.T) {
	h := setupHandlers(t)
	assert.NotNil(t, NewServer(h.tools))
	assert.NotNil(t, NewHTTPHandler(NewServer(h.tools)))
}
