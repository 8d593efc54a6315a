package cypher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DeusData/codegraph/internal/graph"
	"github.com/DeusData/codegraph/internal/store"
)

// --- Lexer tests ---

func tokenTypes(tokens []Token) []TokenType {
	out := make([]TokenType, len(tokens))
	for i, t := range tokens {
		out[i] = t.Type
	}
	return out
}

func TestLexBasicQuery(t *testing.T) {
	tokens, err := Lex(`MATCH (f:Function) WHERE f.name = "Hello" RETURN f.name`)
	require.NoError(t, err)
	assert.Equal(t, []TokenType{
		TokMatch, TokLParen, TokIdent, TokColon, TokIdent, TokRParen,
		TokWhere, TokIdent, TokDot, TokIdent, TokEQ, TokString,
		TokReturn, TokIdent, TokDot, TokIdent, TokEOF,
	}, tokenTypes(tokens))
}

func TestLexRegexOperator(t *testing.T) {
	tokens, err := Lex(`f.name =~ ".*Handler"`)
	require.NoError(t, err)
	// f, ., name, =~, ".*Handler"
	assert.Equal(t, TokRegex, tokens[3].Type)
}

func TestLexVariableLengthPath(t *testing.T) {
	tokens, err := Lex(`[:CALLS*1..3]`)
	require.NoError(t, err)
	assert.Equal(t, []TokenType{
		TokLBracket, TokColon, TokIdent, TokStar, TokNumber, TokDotDot, TokNumber, TokRBracket, TokEOF,
	}, tokenTypes(tokens))
}

func TestLexCommentsAndQuotedIdent(t *testing.T) {
	tokens, err := Lex("// header\nmatch (`my node`) /* note */ RETURN x")
	require.NoError(t, err)
	assert.Equal(t, TokMatch, tokens[0].Type)
	assert.Equal(t, "MATCH", tokens[0].Value)
	assert.Equal(t, TokIdent, tokens[2].Type)
	assert.Equal(t, "my node", tokens[2].Value)
	assert.Equal(t, TokReturn, tokens[4].Type, "block comment not skipped")

	for _, bad := range []string{`"open`, "`open", "a ; b"} {
		_, err := Lex(bad)
		assert.Error(t, err, bad)
	}
}

// --- Parser tests ---

func parseRel(t *testing.T, query string) *RelPattern {
	t.Helper()
	q, err := Parse(query)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(q.Match.Pattern.Elements), 3)
	rel, ok := q.Match.Pattern.Elements[1].(*RelPattern)
	require.True(t, ok, "expected *RelPattern, got %T", q.Match.Pattern.Elements[1])
	return rel
}

func firstCondition(t *testing.T, query string) Condition {
	t.Helper()
	q, err := Parse(query)
	require.NoError(t, err)
	require.NotNil(t, q.Where)
	require.NotEmpty(t, q.Where.Conditions)
	return q.Where.Conditions[0]
}

func TestParseNodePattern(t *testing.T) {
	q, err := Parse(`MATCH (f:Function {name: "Hello"}) RETURN f`)
	require.NoError(t, err)
	require.NotNil(t, q.Match)
	require.Len(t, q.Match.Pattern.Elements, 1)
	node, ok := q.Match.Pattern.Elements[0].(*NodePattern)
	require.True(t, ok)
	assert.Equal(t, "f", node.Variable)
	assert.Equal(t, "Function", node.Label)
	assert.Equal(t, map[string]string{"name": "Hello"}, node.Props)
}

func TestParseRelationship(t *testing.T) {
	rel := parseRel(t, `MATCH (f)-[:CALLS]->(g) RETURN f.name, g.name`)
	assert.Equal(t, []string{"CALLS"}, rel.Types)
	assert.Equal(t, store.Outbound, rel.Direction)
	assert.Equal(t, 1, rel.MinHops)
	assert.Equal(t, 1, rel.MaxHops)
}

func TestParseDirections(t *testing.T) {
	assert.Equal(t, store.Both, parseRel(t, `MATCH (f:Function)-[:CALLS]-(g) RETURN g.name`).Direction)
	assert.Equal(t, store.Inbound, parseRel(t, `MATCH (f:Function)<-[:CALLS]-(g) RETURN f.name`).Direction)
	assert.Equal(t, store.Outbound, parseRel(t, `MATCH (f)-->(g) RETURN g`).Direction)
}

func TestParseMultipleRelTypes(t *testing.T) {
	rel := parseRel(t, `MATCH (f)-[:CALLS|INHERITS]->(g) RETURN g.name`)
	assert.Equal(t, []string{"CALLS", "INHERITS"}, rel.Types)
}

func TestParseHopRanges(t *testing.T) {
	tests := []struct {
		rel      string
		min, max int
	}{
		{"[:CALLS]", 1, 1},
		{"[:CALLS*]", 1, 0},
		{"[:CALLS*2]", 1, 2},
		{"[:CALLS*..4]", 1, 4},
		{"[:CALLS*2..]", 2, 0},
		{"[:CALLS*2..5]", 2, 5},
		{"[:CALLS*1..3]", 1, 3},
	}
	for _, tt := range tests {
		rel := parseRel(t, "MATCH (a)-"+tt.rel+"->(b) RETURN b")
		assert.Equal(t, tt.min, rel.MinHops, tt.rel)
		assert.Equal(t, tt.max, rel.MaxHops, tt.rel)
	}
}

func TestParseConditions(t *testing.T) {
	tests := []struct {
		where string
		op    Op
		value string
	}{
		{`f.name =~ ".*Handler"`, OpRegex, ".*Handler"},
		{`f.name STARTS WITH "Send"`, OpStartsWith, "Send"},
		{`f.name CONTAINS "Handler"`, OpContains, "Handler"},
		{`f.start_line > 10`, OpGT, "10"},
		{`f.start_line <= 10`, OpLTE, "10"},
		{`f.file_path <> "main.go"`, OpNeq, "main.go"},
	}
	for _, tt := range tests {
		c := firstCondition(t, "MATCH (f:Function) WHERE "+tt.where+" RETURN f")
		assert.Equal(t, tt.op, c.Op, tt.where)
		assert.Equal(t, tt.value, c.Value, tt.where)
		assert.Equal(t, "f", c.Variable)
	}
}

func TestParseWhereJoins(t *testing.T) {
	q, err := Parse(`MATCH (f) WHERE f.label = "Function" AND f.name = "Foo" RETURN f`)
	require.NoError(t, err)
	assert.Len(t, q.Where.Conditions, 2)
	assert.False(t, q.Where.Any)

	q, err = Parse(`MATCH (f) WHERE f.name = "A" OR f.name = "B" RETURN f`)
	require.NoError(t, err)
	assert.True(t, q.Where.Any)
}

func TestParseNotAndNotEqual(t *testing.T) {
	q, err := Parse(`MATCH (f:Function) WHERE NOT f.name STARTS WITH "Test" AND f.file_path <> "main.go" RETURN f.name`)
	require.NoError(t, err)
	require.Len(t, q.Where.Conditions, 2)
	assert.True(t, q.Where.Conditions[0].Negate)
	assert.False(t, q.Where.Conditions[1].Negate)
	assert.Equal(t, OpNeq, q.Where.Conditions[1].Op)
}

func TestParseReturnWithCount(t *testing.T) {
	q, err := Parse(`MATCH (f)-[:CALLS]->(g) RETURN f.name, COUNT(g) AS cnt ORDER BY cnt DESC LIMIT 10`)
	require.NoError(t, err)
	require.NotNil(t, q.Return)
	assert.Equal(t, []ReturnItem{
		{Variable: "f", Property: "name"},
		{Variable: "g", Alias: "cnt", Count: true},
	}, q.Return.Items)
	assert.Equal(t, "cnt", q.Return.OrderBy)
	assert.True(t, q.Return.Desc)
	assert.Equal(t, 10, q.Return.Limit)
}

func TestParseDistinctSkip(t *testing.T) {
	q, err := Parse(`MATCH (f:Function) RETURN DISTINCT f.name ORDER BY f.name ASC SKIP 5 LIMIT 10`)
	require.NoError(t, err)
	assert.True(t, q.Return.Distinct)
	assert.False(t, q.Return.Desc)
	assert.Equal(t, 5, q.Return.Skip)
	assert.Equal(t, 10, q.Return.Limit)
}

func TestReturnItemColumn(t *testing.T) {
	assert.Equal(t, "f", ReturnItem{Variable: "f"}.Column())
	assert.Equal(t, "f.name", ReturnItem{Variable: "f", Property: "name"}.Column())
	assert.Equal(t, "COUNT(g)", ReturnItem{Variable: "g", Count: true}.Column())
	assert.Equal(t, "n", ReturnItem{Variable: "g", Count: true, Alias: "n"}.Column())
}

func TestParseErrors(t *testing.T) {
	for _, q := range []string{
		`NOT A VALID QUERY`,
		`MATCH (f) RETURN f.name LIMIT 3 )`,
		`MATCH (f)-[:CALLS->(g) RETURN g`,
		`MATCH (f) WHERE f.name = RETURN f`,
		`MATCH (f) RETURN COUNT(`,
	} {
		_, err := Parse(q)
		assert.Error(t, err, q)
	}
}

// --- Planner tests ---

func compileQuery(t *testing.T, query string) (*plan, error) {
	t.Helper()
	q, err := Parse(query)
	require.NoError(t, err)
	return compile(q)
}

func TestCompileMapsLabelsAndTypes(t *testing.T) {
	p, err := compileQuery(t, `MATCH (c:class)-[r:INHERITS|implements]->(b:Interface) RETURN c.name, r.type`)
	require.NoError(t, err)
	assert.Equal(t, graph.Class, p.start.Kind)
	require.Len(t, p.expands, 1)
	x := p.expands[0]
	assert.Equal(t, []graph.EdgeKind{graph.Inherits, graph.Implements}, x.Kinds)
	assert.Equal(t, graph.Interface, x.To.Kind)
	assert.Equal(t, "c", x.From)
	assert.Equal(t, "r", x.RelVar)
}

func TestCompileSplitsStartConditions(t *testing.T) {
	p, err := compileQuery(t, `MATCH (f:Function)-[:CALLS]->(g) WHERE f.name = "a" AND g.name = "b" RETURN g`)
	require.NoError(t, err)
	require.Len(t, p.early, 1)
	assert.Equal(t, "f", p.early[0].Variable)
	require.NotNil(t, p.where)
	require.Len(t, p.where.Conditions, 1)
	assert.Equal(t, "g", p.where.Conditions[0].Variable)

	// OR cannot be split.
	p, err = compileQuery(t, `MATCH (f)-[:CALLS]->(g) WHERE f.name = "a" OR g.name = "b" RETURN g`)
	require.NoError(t, err)
	assert.Empty(t, p.early)
	assert.Len(t, p.where.Conditions, 2)
}

func TestCompileVariableLength(t *testing.T) {
	p, err := compileQuery(t, `MATCH (f)-[*2..]->(g) RETURN g`)
	require.NoError(t, err)
	x := p.expands[0]
	assert.Equal(t, 2, x.MinHops)
	assert.Equal(t, maxHops, x.MaxHops)
	assert.Equal(t, []graph.EdgeKind{graph.Calls}, x.Kinds)
	assert.True(t, x.variableLength())
}

func TestCompileAnonymousNodes(t *testing.T) {
	p, err := compileQuery(t, `MATCH (:Function)-[:CALLS]->()-[:CALLS]->(h) RETURN h`)
	require.NoError(t, err)
	require.Len(t, p.expands, 2)
	assert.Equal(t, p.start.Var, p.expands[0].From)
	assert.Equal(t, p.expands[0].To.Var, p.expands[1].From)
	assert.True(t, isAnonymous(p.start.Var))
}

func TestCompileRejects(t *testing.T) {
	tests := []struct {
		query string
		msg   string
	}{
		{`MATCH (f:Widget) RETURN f.name`, `unknown label "Widget"`},
		{`MATCH (f)-[:HTTP_CALLS]->(g) RETURN g.name`, `unknown relationship type "HTTP_CALLS"`},
		{`MATCH (f) WHERE g.name = "x" RETURN f`, `unknown variable "g"`},
		{`MATCH (f) RETURN f.color`, `unknown symbol property f.color`},
		{`MATCH (f {color: "red"}) RETURN f`, `unknown symbol property "color"`},
		{`MATCH (f)-[r:CALLS]->(g) RETURN r.name`, `unknown relationship property r.name`},
		{`MATCH (f)-[:CALLS]->(f) RETURN f`, `variable "f" is bound twice`},
		{`MATCH (f)-[r:CALLS*1..2]->(g) RETURN g`, `variable-length`},
		{`MATCH (f)-[:CALLS*3..2]->(g) RETURN g`, `empty hop range`},
		{`MATCH (f)-[:CALLS]->(g) RETURN COUNT(f), COUNT(g)`, `at most one COUNT`},
		{`MATCH (f) RETURN f.name ORDER BY f.path`, `not a returned column`},
		{"MATCH (`$0`) RETURN f", `invalid variable name`},
	}
	for _, tt := range tests {
		_, err := compileQuery(t, tt.query)
		assert.ErrorContains(t, err, tt.msg, tt.query)
	}
}

// --- Execution ---

func testSymbol(kind graph.Kind, name, qn, path string, startLine, endLine int) *graph.Symbol {
	return &graph.Symbol{
		ID:            graph.SymbolID(path, qn, kind),
		Kind:          kind,
		Name:          name,
		QualifiedName: qn,
		Path:          path,
		Language:      "go",
		Span:          graph.Span{StartByte: startLine * 10, EndByte: endLine * 10, StartLine: startLine, EndLine: endLine},
	}
}

func testEdge(kind graph.EdgeKind, from *graph.Symbol, to *graph.Symbol, name string) *graph.Edge {
	e := &graph.Edge{
		Kind:       kind,
		SourceID:   from.ID,
		TargetName: name,
		Path:       from.Path,
		Ref:        name,
		Confidence: graph.Unresolved,
	}
	if to != nil {
		e.TargetID = to.ID
		e.Confidence = graph.Resolved
	}
	e.ID = graph.EdgeID(kind, from.ID, name)
	return e
}

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	handle := testSymbol(graph.Function, "HandleOrder", "main.HandleOrder", "main.go", 10, 30)
	validate := testSymbol(graph.Function, "ValidateOrder", "service.ValidateOrder", "service.go", 5, 20)
	submit := testSymbol(graph.Function, "SubmitOrder", "service.SubmitOrder", "service.go", 25, 50)
	logErr := testSymbol(graph.Function, "LogError", "util.LogError", "util.go", 1, 5)
	svc := testSymbol(graph.Class, "OrderService", "svc.OrderService", "svc.py", 1, 40)
	svc.Language = "python"
	base := testSymbol(graph.Class, "Base", "svc.Base", "svc.py", 42, 50)
	base.Language = "python"
	require.NoError(t, s.UpsertSymbolBatch([]*graph.Symbol{handle, validate, submit, logErr, svc, base}))

	// HandleOrder -> ValidateOrder -> SubmitOrder, HandleOrder -> LogError
	ambiguous := testEdge(graph.Calls, submit, nil, "helper")
	ambiguous.Confidence = graph.Ambiguous
	ambiguous.Candidates = []string{handle.ID, logErr.ID}
	require.NoError(t, s.UpsertEdgeBatch([]*graph.Edge{
		testEdge(graph.Calls, handle, validate, "ValidateOrder"),
		testEdge(graph.Calls, validate, submit, "SubmitOrder"),
		testEdge(graph.Calls, handle, logErr, "LogError"),
		testEdge(graph.Calls, logErr, nil, "fmt.Println"),
		testEdge(graph.Inherits, svc, base, "Base"),
		ambiguous,
	}))
	return s
}

func execute(t *testing.T, s *store.Store, query string) *Result {
	t.Helper()
	result, err := (&Executor{Store: s}).Execute(query)
	require.NoError(t, err, query)
	return result
}

func names(result *Result, col string) []string {
	out := make([]string, 0, len(result.Rows))
	for _, row := range result.Rows {
		v, _ := row[col].(string)
		out = append(out, v)
	}
	return out
}

func TestExecuteSimpleMatch(t *testing.T) {
	s := setupTestStore(t)
	result := execute(t, s, `MATCH (f:Function) RETURN f.name`)
	assert.Len(t, result.Rows, 4)
}

func TestExecuteRelationshipQuery(t *testing.T) {
	s := setupTestStore(t)
	result := execute(t, s, `MATCH (f:Function)-[:CALLS]->(g:Function) RETURN f.name, g.name`)

	// Ambiguous and unresolved calls are not traversed.
	require.Len(t, result.Rows, 3)
	assert.Equal(t, []string{"f.name", "g.name"}, result.Columns)
	assert.Contains(t, result.Rows, map[string]any{"f.name": "HandleOrder", "g.name": "ValidateOrder"})
}

func TestExecuteWhereFilter(t *testing.T) {
	s := setupTestStore(t)
	result := execute(t, s, `MATCH (f:Function) WHERE f.name = "HandleOrder" RETURN f.name, f.file_path`)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "main.go", result.Rows[0]["f.file_path"])
}

func TestExecuteWhereOperators(t *testing.T) {
	s := setupTestStore(t)
	tests := []struct {
		query string
		want  int
	}{
		{`MATCH (f:Function) WHERE f.name =~ ".*Order" RETURN f.name`, 3},
		{`MATCH (f:Function) WHERE f.name STARTS WITH "Validate" RETURN f.name`, 1},
		{`MATCH (f:Function) WHERE f.name CONTAINS "Order" RETURN f.name`, 3},
		{`MATCH (f:Function) WHERE f.start_line > 8 RETURN f.name`, 2},
		{`MATCH (f:Function) WHERE f.start_line <= 5 RETURN f.name`, 2},
		{`MATCH (f:Function) WHERE f.file_path <> "service.go" RETURN f.name`, 2},
		{`MATCH (f:Function) WHERE NOT f.name STARTS WITH "Handle" RETURN f.name`, 3},
		{`MATCH (f) WHERE f.name = "LogError" OR f.name = "Base" RETURN f.name`, 2},
		{`MATCH (f) WHERE f.language = "python" RETURN f.name`, 2},
		{`MATCH (f:Function)-[:CALLS]->(g) WHERE f.name = "HandleOrder" AND g.name CONTAINS "Log" RETURN g.name`, 1},
	}
	for _, tt := range tests {
		result := execute(t, s, tt.query)
		assert.Len(t, result.Rows, tt.want, tt.query)
	}
}

func TestExecuteInvalidRegex(t *testing.T) {
	s := setupTestStore(t)
	_, err := (&Executor{Store: s}).Execute(`MATCH (f:Function) WHERE f.name =~ "(" RETURN f.name`)
	assert.ErrorContains(t, err, "regex")
}

func TestExecuteVariableLength(t *testing.T) {
	s := setupTestStore(t)
	result := execute(t, s, `MATCH (f:Function {name: "HandleOrder"})-[:CALLS*1..3]->(g) RETURN g.name`)
	assert.ElementsMatch(t, []string{"ValidateOrder", "LogError", "SubmitOrder"}, names(result, "g.name"))

	result = execute(t, s, `MATCH (f:Function {name: "HandleOrder"})-[:CALLS*2..3]->(g) RETURN g.name`)
	assert.Equal(t, []string{"SubmitOrder"}, names(result, "g.name"))
}

func TestExecuteOrderSkipLimit(t *testing.T) {
	s := setupTestStore(t)

	result := execute(t, s, `MATCH (f:Function) RETURN f.name LIMIT 2`)
	assert.Len(t, result.Rows, 2)

	result = execute(t, s, `MATCH (f:Function) RETURN f.name ORDER BY f.name DESC`)
	assert.Equal(t, "ValidateOrder", names(result, "f.name")[0])

	result = execute(t, s, `MATCH (f:Function) RETURN f.name ORDER BY f.name SKIP 1 LIMIT 2`)
	assert.Equal(t, []string{"LogError", "SubmitOrder"}, names(result, "f.name"))

	result = execute(t, s, `MATCH (f:Function) RETURN f.name SKIP 10`)
	assert.Empty(t, result.Rows)

	result = execute(t, s, `MATCH (f:Function) RETURN f.name AS n ORDER BY n`)
	assert.Equal(t, "HandleOrder", names(result, "n")[0])
}

func TestExecuteCountAggregation(t *testing.T) {
	s := setupTestStore(t)
	result := execute(t, s, `MATCH (f:Function)-[:CALLS]->(g) RETURN f.name, COUNT(g) AS cnt ORDER BY cnt DESC`)
	require.Len(t, result.Rows, 2)
	assert.Equal(t, []string{"f.name", "cnt"}, result.Columns)
	assert.Equal(t, map[string]any{"f.name": "HandleOrder", "cnt": 2}, result.Rows[0])

	result = execute(t, s, `MATCH (f:Function) RETURN COUNT(f)`)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, []string{"COUNT(f)"}, result.Columns)
	assert.Equal(t, 4, result.Rows[0]["COUNT(f)"])
}

func TestExecuteInboundRelationship(t *testing.T) {
	s := setupTestStore(t)
	result := execute(t, s, `MATCH (f:Function)<-[:CALLS]-(g) WHERE f.name = "SubmitOrder" RETURN g.name`)
	assert.Equal(t, []string{"ValidateOrder"}, names(result, "g.name"))
}

func TestExecuteBidirectional(t *testing.T) {
	s := setupTestStore(t)
	result := execute(t, s, `MATCH (f:Function {name: "ValidateOrder"})-[:CALLS]-(g) RETURN g.name ORDER BY g.name`)
	assert.Equal(t, []string{"HandleOrder", "SubmitOrder"}, names(result, "g.name"))
}

func TestExecuteAnonymousStart(t *testing.T) {
	s := setupTestStore(t)
	result := execute(t, s, `MATCH (:Class)-[:INHERITS]->(b) RETURN b.name`)
	assert.Equal(t, []string{"Base"}, names(result, "b.name"))
}

func TestExecuteDistinct(t *testing.T) {
	s := setupTestStore(t)
	result := execute(t, s, `MATCH (f:Function) RETURN DISTINCT f.file_path`)
	assert.Len(t, result.Rows, 3)
}

func TestExecuteInlinePropertyFilter(t *testing.T) {
	s := setupTestStore(t)
	result := execute(t, s, `MATCH (f:Function {name: "SubmitOrder"}) RETURN f.name, f.label, f.start_line`)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "Function", result.Rows[0]["f.label"])
	assert.Equal(t, 25, result.Rows[0]["f.start_line"])
}

func TestExecuteNoResults(t *testing.T) {
	s := setupTestStore(t)
	result := execute(t, s, `MATCH (f:Function) WHERE f.name = "NonExistent" RETURN f.name`)
	assert.Empty(t, result.Rows)
	assert.NotNil(t, result.Rows)
}

func TestExecuteWithoutReturn(t *testing.T) {
	s := setupTestStore(t)
	result := execute(t, s, `MATCH (c:Class)-[r:INHERITS]->(:Class)`)
	assert.Equal(t, []string{"c.label", "c.name", "c.qualified_name", "r.type"}, result.Columns)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "OrderService", result.Rows[0]["c.name"])
}

func TestExecuteRejectsUnknownNames(t *testing.T) {
	s := setupTestStore(t)
	exec := &Executor{Store: s}
	_, err := exec.Execute(`MATCH (f:Widget) RETURN f.name`)
	assert.ErrorContains(t, err, "unknown label")
	_, err = exec.Execute(`MATCH (f)-[:HTTP_CALLS]->(g) RETURN g.name`)
	assert.ErrorContains(t, err, "unknown relationship type")
}

func TestExecuteEdgeProperties(t *testing.T) {
	s := setupTestStore(t)
	result := execute(t, s, `MATCH (a)-[r:CALLS]->(b) WHERE b.name = "ValidateOrder" RETURN a.name, r.type, r.confidence, r.target_name`)
	require.Len(t, result.Rows, 1)
	row := result.Rows[0]
	assert.Equal(t, "CALLS", row["r.type"])
	assert.Equal(t, "resolved", row["r.confidence"])
	assert.Equal(t, "ValidateOrder", row["r.target_name"])
}

func TestExecuteEdgePropertyInWhere(t *testing.T) {
	s := setupTestStore(t)
	result := execute(t, s, `MATCH (a)-[r:CALLS]->(b) WHERE r.target_name STARTS WITH "Log" RETURN a.name, b.name`)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "LogError", result.Rows[0]["b.name"])
}

func TestExecuteInherits(t *testing.T) {
	s := setupTestStore(t)
	result := execute(t, s, `MATCH (c:Class)-[r:INHERITS]->(b:Class) RETURN c.name, b.name, r.type`)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, map[string]any{"c.name": "OrderService", "b.name": "Base", "r.type": "INHERITS"}, result.Rows[0])
}

func TestExecuteWholeNodeProjection(t *testing.T) {
	s := setupTestStore(t)
	result := execute(t, s, `MATCH (f:Function {name: "LogError"}) RETURN f`)
	require.Len(t, result.Rows, 1)
	node, ok := result.Rows[0]["f"].(map[string]any)
	require.True(t, ok, "expected map projection, got %T", result.Rows[0]["f"])
	assert.Equal(t, "util.LogError", node["qualified_name"])
	assert.Equal(t, "util.go", node["file_path"])
}
