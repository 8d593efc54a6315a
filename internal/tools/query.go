package tools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/DeusData/codegraph/internal/cypher"
	"github.com/DeusData/codegraph/internal/metrics"
)

func (s *Server) handleQueryGraph(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}

	q := getStringArg(args, "query")
	if q == "" {
		return errResult("missing required 'query' parameter"), nil
	}

	exec := &cypher.Executor{Store: s.store}
	result, err := exec.Execute(q)
	metrics.RecordQuery("cypher", err)
	if err != nil {
		return errResult(fmt.Sprintf("query error: %v", err)), nil
	}

	return jsonResult(map[string]any{
		"columns": result.Columns,
		"rows":    result.Rows,
		"total":   len(result.Rows),
	}), nil
}
