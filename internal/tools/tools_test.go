package tools

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wagnerlima/memory-cloud/knowledge-graph/internal/logger"
	"github.com/wagnerlima/memory-cloud/knowledge-graph/internal/metrics"
)

func callCount(t *testing.T, reg *prometheus.Registry, tool, status string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "knowledge_graph_tool_calls_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			var gotTool, gotStatus string
			for _, lp := range m.GetLabel() {
				switch lp.GetName() {
				case "tool":
					gotTool = lp.GetValue()
				case "status":
					gotStatus = lp.GetValue()
				}
			}
			if gotTool == tool && gotStatus == status {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	ctx := context.Background()

	ok := Observe(m, logger.NewNop(), "echo", func(_ context.Context, _ *mcp.CallToolRequest, in string) (*mcp.CallToolResult, any, error) {
		return toolText(in), nil, nil
	})
	res, _, err := ok(ctx, nil, "hi")
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, "hi", errorText(res, nil))

	failing := Observe(m, logger.NewNop(), "fail", func(_ context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, any, error) {
		return toolError("Failed: %v", errors.New("boom")), nil, nil
	})
	res, _, err = failing(ctx, nil, struct{}{})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Equal(t, "Failed: boom", errorText(res, nil))

	_, _, _ = ok(ctx, nil, "again")

	assert.Equal(t, 2.0, callCount(t, reg, "echo", "ok"))
	assert.Equal(t, 1.0, callCount(t, reg, "fail", "error"))
	assert.Equal(t, 0.0, callCount(t, reg, "echo", "error"))
}

func TestObserveLogsFailuresWithToolName(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	log := logger.FromZap(zap.New(core))

	h := Observe(nil, log, "get_entity", func(_ context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, any, error) {
		return toolError("Failed to get entity: not found"), nil, nil
	})
	_, _, err := h(context.Background(), nil, struct{}{})
	require.NoError(t, err)

	entries := logs.FilterMessage("tool call failed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "get_entity", fields["tool"])
	assert.Equal(t, "Failed to get entity: not found", fields["error"])
}

func TestObserveNilCollaborators(t *testing.T) {
	h := Observe(nil, nil, "bare", func(_ context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, any, error) {
		return nil, nil, errors.New("protocol failure")
	})
	_, _, err := h(context.Background(), nil, struct{}{})
	assert.EqualError(t, err, "protocol failure")
}

func TestToolJSON(t *testing.T) {
	res, _, err := toolJSON(map[string]int{"n": 1})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.JSONEq(t, `{"n": 1}`, errorText(res, nil))

	res, _, err = toolJSON(make(chan int))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestParseTimeArg(t *testing.T) {
	got, err := parseTimeArg("created_after", "")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = parseTimeArg("created_after", "2024-03-01T10:00:00Z")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Equal(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)))

	_, err = parseTimeArg("created_after", "yesterday")
	assert.ErrorContains(t, err, "created_after must be RFC3339")
}
