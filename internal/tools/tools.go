package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wagnerlima/memory-cloud/knowledge-graph/internal/logger"
	"github.com/wagnerlima/memory-cloud/knowledge-graph/internal/metrics"
)

// Handler is the shape of every tool handler in this package.
type Handler[In any] func(ctx context.Context, req *mcp.CallToolRequest, input In) (*mcp.CallToolResult, any, error)

// Observe wraps h so each call is counted, timed and, on failure, logged.
// m and log may be nil.
func Observe[In any](m *metrics.Metrics, log *logger.Logger, name string, h Handler[In]) Handler[In] {
	if log == nil {
		log = logger.NewNop()
	}
	log = log.With("tool", name)
	return func(ctx context.Context, req *mcp.CallToolRequest, input In) (*mcp.CallToolResult, any, error) {
		started := time.Now()
		res, out, err := h(ctx, req, input)

		status := "ok"
		if err != nil || (res != nil && res.IsError) {
			status = "error"
			log.Warn("tool call failed", "error", errorText(res, err))
		} else {
			log.Debug("tool call", "elapsed", time.Since(started))
		}
		m.Observe(name, status, started)
		return res, out, err
	}
}

func errorText(res *mcp.CallToolResult, err error) string {
	if err != nil {
		return err.Error()
	}
	for _, c := range res.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

// --- Helpers ---

func toolText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func toolError(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}

func toolJSON(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return toolError("Failed to marshal result: %v", err), nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}

func parseTimeArg(name, v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, fmt.Errorf("%s must be RFC3339: %w", name, err)
	}
	return &t, nil
}
