package mcpserver

import (
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/jitter/engine"
	jittest "github.com/teranos/jitter/internal/testing"
	"github.com/teranos/jitter/live"
)

const taxSrc = `package tax

// Rate returns the rate for a region, looked up in @shop.tables
func Rate(region string) float64 {
	panic("not implemented")
}

var Current = Rate
`

const cartSrc = `package cart

import "example.com/shop/tax"

var rate = tax.Rate

func Total(n int) float64 { return float64(n) * rate("eu") }
`

func newServer(t *testing.T) (*Server, *live.Registry) {
	t.Helper()
	root := jittest.WriteModule(t, map[string]string{
		"go.mod":           "module example.com/shop\n\ngo 1.22\n",
		"tax/tax.go":       taxSrc,
		"cart/cart.go":     cartSrc,
		"tables/tables.go": "package tables\n\nvar EU = 0.2\n",
	})
	reg := live.NewRegistry()
	return New(engine.New(engine.Options{Root: root, MaxDepth: 4}, reg)), reg
}

func makeReq(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(r *mcp.CallToolResult) string {
	if r == nil {
		return ""
	}
	for _, c := range r.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestHandleContext(t *testing.T) {
	jittest.RequireGo(t)
	s, _ := newServer(t)

	res, err := s.handleContext(context.Background(), makeReq(map[string]interface{}{"symbol": "example.com/shop/tax.Rate"}))
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(res))
	text := resultText(res)
	assert.Contains(t, text, "== target ==")
	assert.Contains(t, text, "example.com/shop/tax.Rate")
	assert.Contains(t, text, "== collaborators (1) ==")

	res, err = s.handleContext(context.Background(), makeReq(map[string]interface{}{
		"symbol": "example.com/shop/tax.Rate",
		"format": "json",
	}))
	require.NoError(t, err)
	assert.Contains(t, resultText(res), `"qualified_name": "example.com/shop/tax.Rate"`)
}

func TestHandleContext_Errors(t *testing.T) {
	s, _ := newServer(t)

	tests := []struct {
		name string
		args map[string]interface{}
	}{
		{"missing symbol", map[string]interface{}{}},
		{"unknown symbol", map[string]interface{}{"symbol": "example.com/shop/tax.Missing"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.handleContext(context.Background(), makeReq(tt.args))
			require.NoError(t, err)
			assert.True(t, res.IsError)
		})
	}
}

func TestHandleAliases(t *testing.T) {
	s, _ := newServer(t)

	res, err := s.handleAliases(context.Background(), makeReq(map[string]interface{}{"symbol": "example.com/shop/tax.Rate"}))
	require.NoError(t, err)
	text := resultText(res)
	assert.Contains(t, text, "Found 2 alias(es)")
	assert.Contains(t, text, "example.com/shop/cart.rate  cart/cart.go:5  (import)")
	assert.Contains(t, text, "example.com/shop/tax.Current  tax/tax.go:8  (local)")

	res, err = s.handleAliases(context.Background(), makeReq(map[string]interface{}{"symbol": "example.com/shop/tax"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestHandlePending(t *testing.T) {
	s, _ := newServer(t)

	res, err := s.handlePending(context.Background(), makeReq(nil))
	require.NoError(t, err)
	text := resultText(res)
	assert.Contains(t, text, "Found 1 pending function(s)")
	assert.Contains(t, text, "example.com/shop/tax.Rate  tax/tax.go:4")
}

func TestHandleSymbols(t *testing.T) {
	s, reg := newServer(t)

	res, err := s.handleSymbols(context.Background(), makeReq(nil))
	require.NoError(t, err)
	assert.Equal(t, "No symbols declared", resultText(res))

	rate := func(region string) float64 { return 0 }
	require.NoError(t, reg.Declare("example.com/shop/tax.Rate", &rate))
	res, err = s.handleSymbols(context.Background(), makeReq(nil))
	require.NoError(t, err)
	assert.Contains(t, resultText(res), "example.com/shop/tax.Rate  pending")
}
