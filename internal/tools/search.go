package tools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/DeusData/codegraph/internal/graph"
	"github.com/DeusData/codegraph/internal/lang"
	"github.com/DeusData/codegraph/internal/query"
)

func (s *Server) handleSearchSymbols(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}

	opts := query.FindOptions{
		Pattern: getStringArg(args, "pattern"),
		Limit:   getIntArg(args, "limit", query.DefaultLimit),
	}
	if opts.Pattern == "" {
		return errResult("pattern is required"), nil
	}
	if k := getStringArg(args, "kind"); k != "" {
		kind, ok := graph.ParseKind(k)
		if !ok {
			return errResult(fmt.Sprintf("unknown kind %q", k)), nil
		}
		opts.Kinds = []graph.Kind{kind}
	}
	if l := getStringArg(args, "language"); l != "" {
		known, unknown := lang.ParseLanguages(l)
		if len(unknown) > 0 {
			return errResult(fmt.Sprintf("unknown language %q", l)), nil
		}
		opts.Languages = known
	}

	syms, err := query.FindSymbols(ctx, s.store, opts)
	if err != nil {
		return errResult(fmt.Sprintf("search: %v", err)), nil
	}

	results := make([]symbolEntry, 0, len(syms))
	for _, n := range syms {
		results = append(results, buildSymbolEntry(n))
	}
	return jsonResult(map[string]any{
		"pattern": opts.Pattern,
		"total":   len(results),
		"limit":   opts.Limit,
		"results": results,
	}), nil
}
