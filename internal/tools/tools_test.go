package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DeusData/codegraph/internal/meta"
	"github.com/DeusData/codegraph/internal/pipeline"
	"github.com/DeusData/codegraph/internal/store"
)

func newTestServer(t *testing.T, files map[string]string) *Server {
	t.Helper()
	dir := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	s, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	m, err := meta.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return NewServer(s, pipeline.New(s, m, dir), "test")
}

func call(t *testing.T, h func(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error), args string) (string, bool) {
	t.Helper()
	req := &mcp.CallToolRequest{Params: &mcp.CallToolParamsRaw{Arguments: json.RawMessage(args)}}
	res, err := h(context.Background(), req)
	require.NoError(t, err, "handler returned error")
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok, "unexpected content %T", res.Content[0])
	return text.Text, res.IsError
}

func decode(t *testing.T, text string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(text), &m), "decode %q", text)
	return m
}

var sources = map[string]string{
	"a.py": "def foo():\n    return 1\n",
	"b.py": "from a import foo\n\n\ndef bar():\n    return foo()\n",
	"x.py": "def helper():\n    pass\n",
	"y.py": "def helper():\n    pass\n\n\nclass UserService:\n    pass\n",
}

func indexed(t *testing.T) *Server {
	t.Helper()
	srv := newTestServer(t, sources)
	text, isErr := call(t, srv.handleIndexRepository, `{}`)
	require.False(t, isErr, "index failed: %s", text)
	return srv
}

func TestIndexRepository(t *testing.T) {
	srv := newTestServer(t, sources)

	text, isErr := call(t, srv.handleIndexRepository, `{"dry_run": true}`)
	require.False(t, isErr, "dry run failed: %s", text)
	rep := decode(t, text)
	assert.Equal(t, string(pipeline.Staged), rep["state"])
	n, err := srv.store.CountSymbols()
	require.NoError(t, err)
	assert.Zero(t, n, "dry run wrote symbols")

	text, isErr = call(t, srv.handleIndexRepository, `{}`)
	require.False(t, isErr, "index failed: %s", text)
	rep = decode(t, text)
	assert.Equal(t, string(pipeline.Committed), rep["state"])
	assert.EqualValues(t, 1, rep["generation"])
	assert.NotContains(t, rep, "ambiguities", "no call is ambiguous yet")
}

func TestIndexRepositoryRejectsUnknownLanguage(t *testing.T) {
	srv := newTestServer(t, sources)
	text, isErr := call(t, srv.handleIndexRepository, `{"languages": ["cobol"]}`)
	assert.True(t, isErr)
	assert.Contains(t, text, "cobol")
}

func TestSearchSymbols(t *testing.T) {
	srv := indexed(t)

	text, isErr := call(t, srv.handleSearchSymbols, `{"pattern": "User*"}`)
	require.False(t, isErr, "search failed: %s", text)
	results := decode(t, text)["results"].([]any)
	require.Len(t, results, 1, text)
	assert.Equal(t, "UserService", results[0].(map[string]any)["name"])

	text, _ = call(t, srv.handleSearchSymbols, `{"pattern": "*", "kind": "function", "limit": 2}`)
	assert.Len(t, decode(t, text)["results"].([]any), 2)

	_, isErr = call(t, srv.handleSearchSymbols, `{}`)
	assert.True(t, isErr, "missing pattern should be an error")
	_, isErr = call(t, srv.handleSearchSymbols, `{"pattern": "*", "kind": "widget"}`)
	assert.True(t, isErr, "unknown kind should be an error")
}

func TestTraceCallPath(t *testing.T) {
	srv := indexed(t)

	text, isErr := call(t, srv.handleTraceCallPath, `{"symbol": "bar"}`)
	require.False(t, isErr, "trace failed: %s", text)
	hops := decode(t, text)["hops"].([]any)
	require.Len(t, hops, 1, text)
	hop := hops[0].(map[string]any)
	assert.Equal(t, "foo", hop["name"])
	assert.EqualValues(t, 1, hop["depth"])

	text, _ = call(t, srv.handleTraceCallPath, `{"symbol": "foo", "direction": "callers"}`)
	hops = decode(t, text)["hops"].([]any)
	require.Len(t, hops, 1, text)
	assert.Equal(t, "bar", hops[0].(map[string]any)["name"])

	text, isErr = call(t, srv.handleTraceCallPath, `{"symbol": "bar", "direction": "sideways"}`)
	assert.True(t, isErr, "bad direction should be an error, got %s", text)
}

func TestAmbiguousSymbolListsCandidates(t *testing.T) {
	srv := indexed(t)

	text, isErr := call(t, srv.handleTraceCallPath, `{"symbol": "helper"}`)
	require.True(t, isErr, "ambiguous name should be an error, got %s", text)
	candidates := decode(t, text)["candidates"].([]any)
	require.Len(t, candidates, 2, text)
	assert.Equal(t, "x.py", candidates[0].(map[string]any)["file_path"])
	assert.Equal(t, "y.py", candidates[1].(map[string]any)["file_path"])

	text, isErr = call(t, srv.handleTraceCallPath, `{"symbol": "y.py:helper"}`)
	assert.False(t, isErr, "path-qualified name should resolve: %s", text)
}

func TestGetCodeSnippet(t *testing.T) {
	srv := indexed(t)

	text, isErr := call(t, srv.handleGetCodeSnippet, `{"symbol": "bar"}`)
	require.False(t, isErr, "snippet failed: %s", text)
	source := decode(t, text)["source"].(string)
	assert.Contains(t, source, "def bar():")
	assert.Contains(t, source, "return foo()")
	assert.NotContains(t, source, "import", "snippet should not include lines outside the symbol")

	_, isErr = call(t, srv.handleGetCodeSnippet, `{"symbol": "missing"}`)
	assert.True(t, isErr, "unknown symbol should be an error")
}

func TestQueryGraph(t *testing.T) {
	srv := indexed(t)

	text, isErr := call(t, srv.handleQueryGraph,
		`{"query": "MATCH (f:Function)-[:CALLS]->(g:Function) WHERE f.name = 'bar' RETURN g.name"}`)
	require.False(t, isErr, "query failed: %s", text)
	assert.EqualValues(t, 1, decode(t, text)["total"])
	assert.Contains(t, text, "foo")

	text, isErr = call(t, srv.handleQueryGraph, `{"query": "MATCH (n:Widget) RETURN n"}`)
	assert.True(t, isErr, "unknown label should be an error")
	assert.Contains(t, text, "Widget")

	text, isErr = call(t, srv.handleQueryGraph, `{"query": "MATCH (n:Function) RETURN n.colour"}`)
	assert.True(t, isErr, "unknown property should be an error")
	assert.Contains(t, text, "colour")
}

func TestSchemaAndStatus(t *testing.T) {
	srv := indexed(t)

	text, isErr := call(t, srv.handleGetGraphSchema, `{}`)
	require.False(t, isErr, "schema failed: %s", text)
	assert.Contains(t, text, "function")

	text, isErr = call(t, srv.handleIndexStatus, `{"files": true}`)
	require.False(t, isErr, "status failed: %s", text)
	st := decode(t, text)
	assert.Equal(t, true, st["indexed"])
	assert.EqualValues(t, 4, st["files"])
	assert.Len(t, st["file_list"].([]any), 4)
}

func TestStatusBeforeIndex(t *testing.T) {
	srv := newTestServer(t, sources)
	text, isErr := call(t, srv.handleIndexStatus, `{}`)
	require.False(t, isErr, "status failed: %s", text)
	assert.Equal(t, false, decode(t, text)["indexed"])
}
