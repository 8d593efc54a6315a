package tools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/DeusData/codegraph/internal/query"
)

func (s *Server) handleGetGraphSchema(_ context.Context, _ *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	schema, err := s.store.GetSchema()
	if err != nil {
		return errResult(fmt.Sprintf("schema: %v", err)), nil
	}
	return jsonResult(schema), nil
}

func (s *Server) handleIndexStatus(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	info, err := query.Status(ctx, s.store, getBoolArg(args, "files"))
	if err != nil {
		return errResult(fmt.Sprintf("status: %v", err)), nil
	}
	return jsonResult(info), nil
}
