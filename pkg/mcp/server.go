// Package mcp exposes the matching engine as an MCP server on stdio so
// coding agents can query static chains against observed traces.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/condlab/chainmatch/internal/manager"
	"github.com/condlab/chainmatch/pkg/match"
	"github.com/condlab/chainmatch/pkg/static"
	"github.com/condlab/chainmatch/pkg/trace"
)

// MCPServer wraps the session manager to expose it via MCP.
type MCPServer struct {
	manager *manager.SessionManager
}

// Run starts the MCP server on Stdio.
func Run(ctx context.Context, mgr *manager.SessionManager) error {
	s := server.NewMCPServer(
		"ChainMatch",
		"0.1.0",
		server.WithResourceCapabilities(true, true),
		server.WithLogging(),
	)

	ms := &MCPServer{manager: mgr}

	// --- Resources ---

	s.AddResource(
		mcp.NewResource(
			"chainmatch://sessions",
			"Sessions",
			mcp.WithResourceDescription("Metadata snapshots available for matching"),
			mcp.WithMIMEType("application/json"),
		),
		ms.handleSessions,
	)

	s.AddResource(
		mcp.NewResource(
			"chainmatch://index/{session}",
			"Index Summary",
			mcp.WithResourceDescription("Static chain index summary for one session"),
			mcp.WithMIMEType("application/json"),
		),
		ms.handleIndexSummary,
	)

	// --- Tools ---

	s.AddTool(
		mcp.NewTool(
			"search_functions",
			mcp.WithDescription("Fuzzy-search instrumented functions by name or signature."),
			mcp.WithString("session", mcp.Required(), mcp.Description("Session (snapshot directory) ID")),
			mcp.WithString("query", mcp.Required(), mcp.Description("The search query string")),
			mcp.WithNumber("limit", mcp.Description("Max number of results (default 10)")),
		),
		ms.handleSearchFunctions,
	)

	s.AddTool(
		mcp.NewTool(
			"match_chain",
			mcp.WithDescription("Rank a function's static condition chains against an observed runtime trace. "+
				"Events is a JSON array of {cond_hash, cond_norm, cond_kind, val, norm_flip}."),
			mcp.WithString("session", mcp.Required(), mcp.Description("Session (snapshot directory) ID")),
			mcp.WithString("func_hash", mcp.Required(), mcp.Description("Hash of the function whose chains to rank")),
			mcp.WithString("events", mcp.Required(), mcp.Description("Runtime trace events as a JSON array")),
			mcp.WithNumber("topk", mcp.Description("Max candidates to return (default 3)")),
			mcp.WithNumber("threshold", mcp.Description("Minimum score to keep (default 0.6)")),
		),
		ms.handleMatchChain,
	)

	s.AddTool(
		mcp.NewTool(
			"compress_trace",
			mcp.WithDescription("Collapse loop iterations in a raw trace to its first-iteration form. "+
				"Events is a JSON array of {cond_hash, cond_norm, cond_kind, val, norm_flip}."),
			mcp.WithString("events", mcp.Required(), mcp.Description("Runtime trace events as a JSON array")),
		),
		ms.handleCompressTrace,
	)

	// Start the server on Stdio
	slog.Info("Starting MCP server on Stdio")
	return server.ServeStdio(s)
}

// --- Resource Handlers ---

func (ms *MCPServer) handleSessions(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	infos, err := ms.manager.List()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	jsonBytes, err := json.MarshalIndent(infos, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal sessions: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(jsonBytes),
		},
	}, nil
}

func (ms *MCPServer) handleIndexSummary(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	// Extract session from URI: chainmatch://index/{session}
	uriStr := request.Params.URI
	prefix := "chainmatch://index/"
	if !strings.HasPrefix(uriStr, prefix) {
		return nil, fmt.Errorf("invalid URI format")
	}
	id := strings.TrimPrefix(uriStr, prefix)

	sess, err := ms.manager.Get(id)
	if err != nil {
		return nil, fmt.Errorf("session not found: %s", id)
	}

	summary := map[string]interface{}{
		"session":    sess.ID,
		"functions":  sess.Index.FuncCount(),
		"chains":     sess.Index.ChainTotal(),
		"conditions": len(sess.Meta.ConditionsByHash),
	}
	jsonBytes, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal summary: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(jsonBytes),
		},
	}, nil
}

// --- Tool Handlers ---

func (ms *MCPServer) handleSearchFunctions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	id, ok := args["session"].(string)
	if !ok {
		return mcp.NewToolResultError("session argument required"), nil
	}
	query, ok := args["query"].(string)
	if !ok {
		return mcp.NewToolResultError("query argument required"), nil
	}

	limit := 10
	if l, ok := args["limit"].(float64); ok {
		limit = int(l)
	}

	sess, err := ms.manager.Get(id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("session not found: %v", err)), nil
	}

	matches := static.SearchFunctions(query, sess.Meta.FunctionsByHash, limit)
	if len(matches) == 0 {
		return mcp.NewToolResultText("No matching functions."), nil
	}

	var formatted []string
	for _, m := range matches {
		formatted = append(formatted, fmt.Sprintf("%s  %s  %s  (%.2f)",
			m.Function.Hash, m.Function.Name, m.Function.Signature, m.Score))
	}
	return mcp.NewToolResultText(strings.Join(formatted, "\n")), nil
}

func (ms *MCPServer) handleMatchChain(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	id, ok := args["session"].(string)
	if !ok {
		return mcp.NewToolResultError("session argument required"), nil
	}
	funcHash, ok := args["func_hash"].(string)
	if !ok {
		return mcp.NewToolResultError("func_hash argument required"), nil
	}
	eventsJSON, ok := args["events"].(string)
	if !ok {
		return mcp.NewToolResultError("events argument required"), nil
	}

	var events []trace.Event
	if err := json.Unmarshal([]byte(eventsJSON), &events); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid events JSON: %v", err)), nil
	}

	opts := match.Options{}
	if v, ok := args["topk"].(float64); ok {
		opts.TopK = int(v)
	}
	if v, ok := args["threshold"].(float64); ok {
		opts.Threshold = v
	}

	sess, err := ms.manager.Get(id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("session not found: %v", err)), nil
	}

	candidates := sess.Matcher.Match(funcHash, trace.Compress(events), opts)
	if len(candidates) == 0 {
		return mcp.NewToolResultText("No candidate chains above threshold."), nil
	}

	jsonBytes, err := json.MarshalIndent(candidates, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal candidates: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (ms *MCPServer) handleCompressTrace(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	eventsJSON, ok := args["events"].(string)
	if !ok {
		return mcp.NewToolResultError("events argument required"), nil
	}

	var events []trace.Event
	if err := json.Unmarshal([]byte(eventsJSON), &events); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid events JSON: %v", err)), nil
	}

	jsonBytes, err := json.Marshal(trace.Compress(events))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal trace: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}
