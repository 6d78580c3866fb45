package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/huangsam/querymancer/internal/contract"
	"github.com/huangsam/querymancer/internal/engine"
	"github.com/huangsam/querymancer/schema"
	"github.com/mark3labs/mcp-go/mcp"
)

// toolHandler holds common dependencies for MCP tool handlers.
type toolHandler struct {
	eng *engine.Engine
}

// jsonResult renders v as an indented JSON text result.
func jsonResult(v any) *mcp.CallToolResult {
	jsonData, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(jsonData))
}

func (h *toolHandler) handleRouteQuery(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := request.GetString("query", "")
	if strings.TrimSpace(query) == "" {
		return mcp.NewToolResultError("query is required"), nil
	}

	var history []schema.Message
	if raw := request.GetString("history", ""); raw != "" {
		if err := json.Unmarshal([]byte(raw), &history); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid history: %v", err)), nil
		}
	}

	// A persistence failure still yields a complete request.
	req, err := h.eng.Route(query, history)
	if err != nil {
		contract.Logger().Warn().Err(err).Str("request_id", req.ID).Msg("selection not persisted")
	}
	return jsonResult(req), nil
}

func (h *toolHandler) handleRecordFeedback(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := request.GetString("query", "")
	if strings.TrimSpace(query) == "" {
		return mcp.NewToolResultError("query is required"), nil
	}
	rating := request.GetInt("rating", 0)
	comment := request.GetString("comment", "")

	if err := h.eng.Feedback(query, rating, comment); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to record feedback: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Recorded rating %d", schema.ClampRating(rating))), nil
}

func (h *toolHandler) handleCalibrateThreshold(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ev, applied, err := h.eng.Calibrate()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("calibration failed: %v", err)), nil
	}
	return jsonResult(map[string]any{
		"applied":   applied,
		"threshold": h.eng.Router().Threshold(),
		"event":     ev,
	}), nil
}

func (h *toolHandler) handleRefineQuery(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := request.GetString("query", "")
	if strings.TrimSpace(query) == "" {
		return mcp.NewToolResultError("query is required"), nil
	}
	return jsonResult(h.eng.Refine(query)), nil
}

func (h *toolHandler) handleExecuteSQL(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	statement := request.GetString("statement", "")
	if strings.TrimSpace(statement) == "" {
		return mcp.NewToolResultError("statement is required"), nil
	}
	rs, _, err := h.eng.Query(ctx, statement)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
	}
	return jsonResult(rs), nil
}

func (h *toolHandler) handleListTables(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	exec, err := h.eng.Executor()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("database unavailable: %v", err)), nil
	}
	tables, err := exec.AllTables(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list tables: %v", err)), nil
	}
	return jsonResult(tables), nil
}

func (h *toolHandler) handleDescribeTable(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	table := request.GetString("table", "")
	if table == "" {
		return mcp.NewToolResultError("table is required"), nil
	}
	exec, err := h.eng.Executor()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("database unavailable: %v", err)), nil
	}
	columns, err := exec.TableSchema(ctx, table)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to describe %s: %v", table, err)), nil
	}
	return jsonResult(columns), nil
}

func (h *toolHandler) handleAdviseSQL(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	statement := request.GetString("statement", "")
	if strings.TrimSpace(statement) == "" {
		return mcp.NewToolResultError("statement is required"), nil
	}
	advisor, err := h.eng.Advisor()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("database unavailable: %v", err)), nil
	}
	advice, err := advisor.Advise(ctx, statement, request.GetBool("explain", false))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("advice failed: %v", err)), nil
	}
	return jsonResult(advice), nil
}

func (h *toolHandler) handleDBStats(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(h.eng.Stats(true)), nil
}
