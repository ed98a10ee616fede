// Package mcpserver exposes discovery over the Model Context Protocol so an
// assistant can fetch the context of a pending function itself.
package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/teranos/jitter/am"
	"github.com/teranos/jitter/bundle"
	"github.com/teranos/jitter/engine"
	"github.com/teranos/jitter/logger"
	"github.com/teranos/jitter/source"
	"github.com/teranos/jitter/version"
)

// Server serves jitter tools over MCP
type Server struct {
	eng    *engine.Engine
	server *server.MCPServer
	log    *zap.SugaredLogger
}

// New creates a server that discovers through eng
func New(eng *engine.Engine) *Server {
	s := &Server{
		eng: eng,
		log: logger.ComponentLogger("mcp"),
	}
	s.server = server.NewMCPServer(
		"jitter",
		version.Get().Version,
		server.WithToolCapabilities(true),
	)
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	contextTool := mcp.NewTool("jitter_context",
		mcp.WithDescription("Build the context bundle for a Go function: its signature and doc, every type it refers to, and the collaborators its doc names"),
		mcp.WithString("symbol",
			mcp.Required(),
			mcp.Description("Qualified function name, e.g. example.com/app/tax.Rate or example.com/app/cart.Cart.Total"),
		),
		mcp.WithString("format",
			mcp.Description("text (default), json or yaml"),
		),
	)
	s.server.AddTool(contextTool, s.handleContext)

	aliasesTool := mcp.NewTool("jitter_aliases",
		mcp.WithDescription("List package-level variables bound directly to a function, which a live install has to update"),
		mcp.WithString("symbol",
			mcp.Required(),
			mcp.Description("Qualified name of the function variable"),
		),
	)
	s.server.AddTool(aliasesTool, s.handleAliases)

	pendingTool := mcp.NewTool("jitter_pending",
		mcp.WithDescription("List every pending (not yet implemented) function in the source root"),
	)
	s.server.AddTool(pendingTool, s.handlePending)

	symbolsTool := mcp.NewTool("jitter_symbols",
		mcp.WithDescription("List the function variables declared for live substitution in this process and whether each is installed"),
	)
	s.server.AddTool(symbolsTool, s.handleSymbols)
}

func (s *Server) handleContext(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	symbol, err := request.RequireString("symbol")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	format := request.GetString("format", am.FormatText)

	d, err := s.eng.DiscoverSymbol(ctx, symbol)
	if err != nil {
		s.log.Debugw("Context request failed", logger.FieldSymbol, symbol, logger.FieldError, err)
		return mcp.NewToolResultError(fmt.Sprintf("Failed to build context for %s: %v", symbol, err)), nil
	}

	var sb strings.Builder
	if err := bundle.Encode(&sb, d.Bundle, format); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (s *Server) handleAliases(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	symbol, err := request.RequireString("symbol")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	scope, names := source.SplitQualified(symbol)
	if len(names) != 1 {
		return mcp.NewToolResultError(fmt.Sprintf("%s is not import/path.Name", symbol)), nil
	}

	snap, err := s.snapshot()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	aliases, err := snap.Aliases(ctx, scope, names[0])
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to scan for aliases: %v", err)), nil
	}

	if len(aliases) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No aliases of %s", symbol)), nil
	}
	result := fmt.Sprintf("Found %d alias(es) of %s:\n", len(aliases), symbol)
	for i, a := range aliases {
		result += fmt.Sprintf("%d. %s.%s  %s:%d  (%s)\n", i+1, a.Scope, a.Local, a.File, a.Line, a.Via)
	}
	return mcp.NewToolResultText(result), nil
}

func (s *Server) handlePending(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap, err := s.snapshot()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	funcs, err := snap.PendingFuncs(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list pending functions: %v", err)), nil
	}

	if len(funcs) == 0 {
		return mcp.NewToolResultText("No pending functions"), nil
	}
	result := fmt.Sprintf("Found %d pending function(s):\n", len(funcs))
	for i, fn := range funcs {
		result += fmt.Sprintf("%d. %s  %s:%d\n", i+1, fn.QualifiedName(), fn.File.Rel, fn.File.LineOf(fn.Pos()))
	}
	return mcp.NewToolResultText(result), nil
}

func (s *Server) handleSymbols(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	syms := s.eng.Registry().Symbols()
	if len(syms) == 0 {
		return mcp.NewToolResultText("No symbols declared"), nil
	}
	result := fmt.Sprintf("%d declared symbol(s):\n", len(syms))
	for _, sym := range syms {
		result += fmt.Sprintf("- %s  %s  %s\n", sym.Qualified, sym.State, sym.Current)
	}
	return mcp.NewToolResultText(result), nil
}

func (s *Server) snapshot() (*source.Snapshot, error) {
	opts := s.eng.Options()
	return source.Open(opts.Root, source.WithTests(opts.IncludeTests))
}

// Serve runs the server on stdin and stdout until the client disconnects
func (s *Server) Serve() error {
	s.log.Infow("Serving MCP on stdio", logger.FieldRoot, s.eng.Options().Root)
	return server.ServeStdio(s.server)
}
