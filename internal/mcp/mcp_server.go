// Package mcp provides the Model Context Protocol (MCP) server implementation.
package mcp

import (
	"context"

	"github.com/huangsam/querymancer/internal/engine"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer initializes and configures the querymancer MCP server without starting it.
// This is exposed for unit testing.
func NewMCPServer(eng *engine.Engine, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"Querymancer Routing Server",
		version,
		server.WithLogging(),
	)

	h := &toolHandler{eng: eng}

	// --- 1. Tool: route_query ---
	s.AddTool(mcp.NewTool("route_query",
		mcp.WithDescription("Refine a query, score its complexity and pick the fast or accurate backend. Returns the optimized request."),
		mcp.WithString("query", mcp.Description("The natural-language or SQL query to route."), mcp.Required()),
		mcp.WithString("history", mcp.Description(`Optional conversation history as a JSON array of {"role","content"} objects.`)),
	), h.handleRouteQuery)

	// --- 2. Tool: record_feedback ---
	s.AddTool(mcp.NewTool("record_feedback",
		mcp.WithDescription("Rate the response to a previously routed query (1-5). Ratings drive threshold calibration."),
		mcp.WithString("query", mcp.Description("The query exactly as it was routed."), mcp.Required()),
		mcp.WithNumber("rating", mcp.Description("Rating from 1 (poor) to 5 (excellent). Out of range values are clamped."), mcp.Required()),
		mcp.WithString("comment", mcp.Description("Optional free-text comment.")),
	), h.handleRecordFeedback)

	// --- 3. Tool: calibrate_threshold ---
	s.AddTool(mcp.NewTool("calibrate_threshold",
		mcp.WithDescription("Recalibrate the routing threshold from the collected feedback now."),
	), h.handleCalibrateThreshold)

	// --- 4. Tool: refine_query ---
	s.AddTool(mcp.NewTool("refine_query",
		mcp.WithDescription("Strip filler and boilerplate from a query and report the token savings."),
		mcp.WithString("query", mcp.Description("The query to refine."), mcp.Required()),
	), h.handleRefineQuery)

	// --- 5. Tool: execute_sql ---
	s.AddTool(mcp.NewTool("execute_sql",
		mcp.WithDescription("Execute a SQL statement through the result cache and connection pool."),
		mcp.WithString("statement", mcp.Description("The SQL statement to run."), mcp.Required()),
	), h.handleExecuteSQL)

	// --- 6. Tool: list_tables ---
	s.AddTool(mcp.NewTool("list_tables",
		mcp.WithDescription("List the user tables of the connected database."),
	), h.handleListTables)

	// --- 7. Tool: describe_table ---
	s.AddTool(mcp.NewTool("describe_table",
		mcp.WithDescription("Describe the columns of a table."),
		mcp.WithString("table", mcp.Description("The table name."), mcp.Required()),
	), h.handleDescribeTable)

	// --- 8. Tool: advise_sql ---
	s.AddTool(mcp.NewTool("advise_sql",
		mcp.WithDescription("Suggest rewrites and indexes for a SQL statement, optionally with its query plan."),
		mcp.WithString("statement", mcp.Description("The SQL statement to inspect."), mcp.Required()),
		mcp.WithBoolean("explain", mcp.Description("Include the execution plan.")),
	), h.handleAdviseSQL)

	// --- 9. Tool: db_stats ---
	s.AddTool(mcp.NewTool("db_stats",
		mcp.WithDescription("Report the routing threshold, per-backend feedback, cache and pool counters, and tuning recommendations."),
	), h.handleDBStats)

	return s
}

// StartMCPServer starts the querymancer MCP server on stdio.
func StartMCPServer(_ context.Context, eng *engine.Engine, version string) error {
	s := NewMCPServer(eng, version)
	return server.ServeStdio(s)
}
