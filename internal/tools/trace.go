package tools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/DeusData/codegraph/internal/query"
)

const maxTraceDepth = 10

type hopEntry struct {
	symbolEntry
	Depth int    `json:"depth"`
	From  string `json:"from"`
	To    string `json:"to"`
}

func (s *Server) handleTraceCallPath(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}

	arg := getStringArg(args, "symbol")
	if arg == "" {
		return errResult("symbol is required"), nil
	}
	dir, err := query.ParseDirection(getStringArg(args, "direction"))
	if err != nil {
		return errResult(err.Error()), nil
	}
	depth := getIntArg(args, "depth", query.DefaultDepth)
	depth = max(1, min(depth, maxTraceDepth))

	root, toolErr := s.resolveArg(ctx, arg)
	if toolErr != nil {
		return toolErr, nil
	}

	hops, err := query.CallGraph(ctx, s.store, root.ID, dir, depth)
	if err != nil {
		return errResult(fmt.Sprintf("trace: %v", err)), nil
	}

	entries := make([]hopEntry, 0, len(hops))
	for _, h := range hops {
		entries = append(entries, hopEntry{
			symbolEntry: buildSymbolEntry(h.Symbol),
			Depth:       h.Depth,
			From:        h.Via.SourceID,
			To:          h.Via.TargetID,
		})
	}
	return jsonResult(map[string]any{
		"root":          buildSymbolEntry(root),
		"direction":     dir,
		"depth":         depth,
		"hops":          entries,
		"total_results": len(entries),
	}), nil
}
