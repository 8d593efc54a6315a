// Package tools exposes the code graph as MCP tools over stdio.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/DeusData/codegraph/internal/graph"
	"github.com/DeusData/codegraph/internal/pipeline"
	"github.com/DeusData/codegraph/internal/query"
	"github.com/DeusData/codegraph/internal/store"
)

// Server wraps the MCP server with tool handlers.
type Server struct {
	mcp    *mcp.Server
	store  *store.Store
	engine *pipeline.Engine

	// indexMu serialises runs started by tools and by the watcher.
	indexMu sync.Mutex
}

// NewServer creates a new MCP server with all tools registered.
func NewServer(s *store.Store, e *pipeline.Engine, version string) *Server {
	srv := &Server{
		store:  s,
		engine: e,
		mcp: mcp.NewServer(
			&mcp.Implementation{
				Name:    "codegraph",
				Version: version,
			},
			nil,
		),
	}
	srv.registerTools()
	return srv
}

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Update runs one engine pass under the server's index lock. The watcher
// uses it so its runs never overlap a tool-triggered one.
func (s *Server) Update(ctx context.Context, opts pipeline.Options) (*pipeline.Report, error) {
	s.indexMu.Lock()
	defer s.indexMu.Unlock()
	return s.engine.Run(ctx, opts)
}

func (s *Server) registerTools() {
	s.mcp.AddTool(&mcp.Tool{
		Name:        "index_repository",
		Description: "Build or update the code graph of the repository. By default only files changed since the last indexed commit are re-parsed; set full to rebuild everything. With dry_run the change set is computed and reported but nothing is written.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"full": {
					"type": "boolean",
					"description": "Re-parse every file instead of only the changed ones"
				},
				"dry_run": {
					"type": "boolean",
					"description": "Report the delta without committing it"
				},
				"since": {
					"type": "string",
					"description": "Git ref to diff against instead of the last indexed commit"
				},
				"languages": {
					"type": "array",
					"items": {"type": "string"},
					"description": "Restrict indexing to these languages (cpp, go, javascript, python, rust, typescript)"
				}
			}
		}`),
	}, s.handleIndexRepository)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "search_symbols",
		Description: "Find symbols whose name matches a case-sensitive glob (* any run, ? one character). A pattern with a dot matches qualified names, e.g. 'Service.*'. Results are ordered by file, then position.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"pattern": {
					"type": "string",
					"description": "Glob over the symbol name, e.g. 'User*' or 'handle?'"
				},
				"kind": {
					"type": "string",
					"description": "Symbol kind filter: function, method, class, struct, interface, enum, variable, module, other"
				},
				"language": {
					"type": "string",
					"description": "Language filter, e.g. 'go' or 'py'"
				},
				"limit": {
					"type": "integer",
					"description": "Max results (default 20)"
				}
			},
			"required": ["pattern"]
		}`),
	}, s.handleSearchSymbols)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "trace_call_path",
		Description: "Walk resolved call edges breadth-first from a symbol. Every reachable symbol is listed once with its shallowest depth. Ambiguous and unresolved calls are not followed.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"symbol": {
					"type": "string",
					"description": "Symbol ID, qualified name or simple name; prefix with 'path:' to pick a file"
				},
				"direction": {
					"type": "string",
					"description": "'callees' (what it calls), 'callers' (what calls it) or 'both'",
					"enum": ["callees", "callers", "both"]
				},
				"depth": {
					"type": "integer",
					"description": "Maximum depth (default 3)"
				}
			},
			"required": ["symbol"]
		}`),
	}, s.handleTraceCallPath)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "query_graph",
		Description: "Execute a read-only Cypher-like query. Labels are symbol kinds (Function, Method, Class, ...) and relationship types are edge kinds (CALLS, INHERITS, IMPLEMENTS, REFERENCES, CONTAINS). Supports WHERE filters (=, =~, CONTAINS, STARTS WITH, >, <) and RETURN with COUNT/ORDER BY/LIMIT/DISTINCT.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"query": {
					"type": "string",
					"description": "Cypher query, e.g. MATCH (f:Function)-[:CALLS]->(g:Function) WHERE f.name = 'main' RETURN g.name LIMIT 20"
				}
			},
			"required": ["query"]
		}`),
	}, s.handleQueryGraph)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "get_graph_schema",
		Description: "Return symbol kind counts, edge kind counts, relationship patterns (e.g. Function-CALLS->Method) and sample names. Use before writing a query.",
		InputSchema: json.RawMessage(`{"type": "object"}`),
	}, s.handleGetGraphSchema)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "get_code_snippet",
		Description: "Return the source of a symbol, read from disk using its recorded line range, with line numbers.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"symbol": {
					"type": "string",
					"description": "Symbol ID, qualified name or simple name; prefix with 'path:' to pick a file"
				}
			},
			"required": ["symbol"]
		}`),
	}, s.handleGetCodeSnippet)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "index_status",
		Description: "Show the indexed commit, schema version, generation, file/symbol/edge counts, edge confidence counts and a per-language breakdown.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"files": {
					"type": "boolean",
					"description": "Also list every indexed file with its language and line count"
				}
			}
		}`),
	}, s.handleIndexStatus)
}

// jsonResult marshals data to JSON and returns as tool result.
func jsonResult(data any) *mcp.CallToolResult {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return errResult("json marshal err=" + err.Error())
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(b)},
		},
	}
}

// errResult returns a tool result indicating an error.
func errResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
		IsError: true,
	}
}

// parseArgs unmarshals the raw JSON arguments into a map.
func parseArgs(req *mcp.CallToolRequest) (map[string]any, error) {
	if req.Params == nil || len(req.Params.Arguments) == 0 {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(req.Params.Arguments, &m); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	return m, nil
}

// getStringArg extracts a string argument from parsed args.
func getStringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

// getIntArg extracts an integer argument with a default value.
func getIntArg(args map[string]any, key string, defaultVal int) int {
	f, ok := args[key].(float64) // JSON numbers decode as float64
	if !ok {
		return defaultVal
	}
	return int(f)
}

// getBoolArg extracts a boolean argument from parsed args.
func getBoolArg(args map[string]any, key string) bool {
	b, _ := args[key].(bool)
	return b
}

// getStringsArg extracts a string array argument.
func getStringsArg(args map[string]any, key string) []string {
	raw, _ := args[key].([]any)
	var out []string
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

type symbolEntry struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	QualifiedName string `json:"qualified_name"`
	Kind          string `json:"kind"`
	Language      string `json:"language"`
	FilePath      string `json:"file_path"`
	StartLine     int    `json:"start_line"`
	EndLine       int    `json:"end_line"`
	Signature     string `json:"signature,omitempty"`
}

func buildSymbolEntry(n *graph.Symbol) symbolEntry {
	return symbolEntry{
		ID:            n.ID,
		Name:          n.Name,
		QualifiedName: n.QualifiedName,
		Kind:          string(n.Kind),
		Language:      n.Language,
		FilePath:      n.Path,
		StartLine:     n.Span.StartLine,
		EndLine:       n.Span.EndLine,
		Signature:     n.Signature,
	}
}

// resolveArg maps a symbol argument to one symbol, turning an ambiguous
// name into a result that lists the candidates.
func (s *Server) resolveArg(ctx context.Context, arg string) (*graph.Symbol, *mcp.CallToolResult) {
	sym, err := query.ResolveSymbol(ctx, s.store, arg)
	if err == nil {
		return sym, nil
	}
	var amb *query.AmbiguousError
	if errors.As(err, &amb) {
		candidates := make([]symbolEntry, len(amb.Candidates))
		for i, c := range amb.Candidates {
			candidates[i] = buildSymbolEntry(c)
		}
		res := jsonResult(map[string]any{
			"error":      fmt.Sprintf("%q is ambiguous; pass an ID or path:name", arg),
			"candidates": candidates,
		})
		res.IsError = true
		return nil, res
	}
	return nil, errResult(err.Error())
}
