package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DeusData/codegraph/internal/diag"
	"github.com/DeusData/codegraph/internal/graph"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func openFile(t *testing.T, path string) *Store {
	t.Helper()
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testSymbol(path, qn string, kind graph.Kind, start int) *graph.Symbol {
	return &graph.Symbol{
		ID:            graph.SymbolID(path, qn, kind),
		Kind:          kind,
		Name:          graph.LastSegment(qn),
		QualifiedName: qn,
		Path:          path,
		Language:      "python",
		Span:          graph.Span{StartByte: start, EndByte: start + 10, StartLine: start/10 + 1, EndLine: start/10 + 2},
		Fingerprint:   graph.Fingerprint([]byte(qn)),
	}
}

func testCall(from, to *graph.Symbol) *graph.Edge {
	return &graph.Edge{
		ID:         graph.EdgeID(graph.Calls, from.ID, to.Name),
		Kind:       graph.Calls,
		SourceID:   from.ID,
		TargetID:   to.ID,
		TargetName: to.Name,
		Confidence: graph.Resolved,
		Path:       from.Path,
		Ref:        to.Name,
		Scopes:     []string{from.QualifiedName, ""},
		LookupKey:  to.Name,
	}
}

func commit(t *testing.T, s *Store, d *graph.Delta) *MetaRecord {
	t.Helper()
	gen, err := s.Generation()
	require.NoError(t, err)
	m := &MetaRecord{SchemaVersion: SchemaVersion, Commit: "abc", Generation: gen + 1, IndexedAt: Now()}
	require.NoError(t, s.Commit(context.Background(), d, m))
	return m
}

func TestOpenMemory(t *testing.T) {
	s, err := OpenMemory()
	require.NoError(t, err)
	s.Close()
}

func TestOpenFailure(t *testing.T) {
	// A directory cannot be opened as a database file.
	_, err := Open(t.TempDir())
	require.Error(t, err)
	assert.True(t, diag.Is(err, diag.StoreConnectionFailure), "got %v", err)
}

func TestOpenFile(t *testing.T) {
	s := openFile(t, filepath.Join(t.TempDir(), "nested", "graph.db"))

	var mode string
	require.NoError(t, s.DB().QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestOpenReadOnlyMissing(t *testing.T) {
	dir := t.TempDir()
	_, err := OpenReadOnly(filepath.Join(dir, ".codegraph", "graph.db"))
	require.ErrorIs(t, err, ErrNoDatabase)
	assert.NoDirExists(t, filepath.Join(dir, ".codegraph"))
}

func TestOpenReadOnlyWithoutSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.db")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	_, err := OpenReadOnly(path)
	assert.ErrorIs(t, err, ErrNoDatabase)
}

func TestOpenReadOnlyReadsCommittedGraph(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.db")
	w, err := Open(path)
	require.NoError(t, err)
	a := testSymbol("a.py", "a", graph.Function, 0)
	commit(t, w, &graph.Delta{UpsertSymbols: []*graph.Symbol{a}})
	require.NoError(t, w.Close())

	s, err := OpenReadOnly(path)
	require.NoError(t, err)
	defer s.Close()

	m, err := s.Meta()
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, int64(1), m.Generation)
	found, err := s.FindSymbolByID(a.ID)
	require.NoError(t, err)
	assert.NotNil(t, found)

	err = s.Commit(context.Background(), &graph.Delta{DeleteSymbols: []string{a.ID}},
		&MetaRecord{SchemaVersion: SchemaVersion, Generation: 2})
	assert.Error(t, err)
}

func TestReadSnapshotSeesOneGeneration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.db")
	r := openFile(t, path)
	w := openFile(t, path)
	commit(t, w, &graph.Delta{UpsertSymbols: []*graph.Symbol{testSymbol("a.py", "a", graph.Function, 0)}})

	err := r.ReadSnapshot(context.Background(), func(snap *Store) error {
		m, err := snap.Meta()
		require.NoError(t, err)
		require.Equal(t, int64(1), m.Generation)

		commit(t, w, &graph.Delta{UpsertSymbols: []*graph.Symbol{testSymbol("b.py", "b", graph.Function, 0)}})

		m, err = snap.Meta()
		require.NoError(t, err)
		assert.Equal(t, int64(1), m.Generation)
		n, err := snap.CountSymbols()
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		return nil
	})
	require.NoError(t, err)

	gen, err := r.Generation()
	require.NoError(t, err)
	assert.Equal(t, int64(2), gen)
	n, err := r.CountSymbols()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSymbolRoundTrip(t *testing.T) {
	s := openTest(t)
	n := testSymbol("app/service.py", "Service.run", graph.Method, 40)
	n.Signature = "def run(self)"
	n.Visibility = "public"
	n.Docstring = "Run the service."
	n.ParentID = "parent"

	commit(t, s, &graph.Delta{UpsertSymbols: []*graph.Symbol{n}})

	found, err := s.FindSymbolByID(n.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, *n, *found)

	missing, err := s.FindSymbolByID("nope")
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUpsertIdempotent(t *testing.T) {
	s := openTest(t)
	a := testSymbol("a.py", "a", graph.Function, 0)
	b := testSymbol("a.py", "b", graph.Function, 20)
	e := testCall(a, b)
	d := &graph.Delta{UpsertSymbols: []*graph.Symbol{a, b}, UpsertEdges: []*graph.Edge{e}}

	commit(t, s, d)
	commit(t, s, d)

	nodes, _ := s.CountSymbols()
	edges, _ := s.CountEdges()
	assert.Equal(t, 2, nodes)
	assert.Equal(t, 1, edges)

	got, err := s.FindEdgesBySource(a.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, graph.EdgeEqual(got[0], e), "edge round trip mismatch: %+v", got[0])
}

func TestCommitGenerationGuard(t *testing.T) {
	s := openTest(t)
	a := testSymbol("a.py", "a", graph.Function, 0)
	commit(t, s, &graph.Delta{UpsertSymbols: []*graph.Symbol{a}})

	// A second writer based on generation 0 loses.
	b := testSymbol("b.py", "b", graph.Function, 0)
	err := s.Commit(context.Background(), &graph.Delta{UpsertSymbols: []*graph.Symbol{b}},
		&MetaRecord{SchemaVersion: SchemaVersion, Generation: 1})
	require.ErrorIs(t, err, ErrGenerationConflict)
	assert.True(t, diag.Is(err, diag.StoreCommitFailure), "got %v", err)
	n, _ := s.FindSymbolByID(b.ID)
	assert.Nil(t, n, "losing writer must not write")
}

func TestCommitRollsBack(t *testing.T) {
	s := openTest(t)
	a := testSymbol("a.py", "a", graph.Function, 0)
	first := commit(t, s, &graph.Delta{UpsertSymbols: []*graph.Symbol{a}})

	stageHook = func(stage string) error {
		if stage == "upsert_edges" {
			return fmt.Errorf("disk full")
		}
		return nil
	}
	defer func() { stageHook = nil }()

	b := testSymbol("b.py", "b", graph.Function, 0)
	err := s.Commit(context.Background(), &graph.Delta{
		DeleteSymbols: []string{a.ID},
		UpsertSymbols: []*graph.Symbol{b},
		UpsertEdges:   []*graph.Edge{testCall(b, a)},
	}, &MetaRecord{SchemaVersion: SchemaVersion, Generation: first.Generation + 1})
	require.True(t, diag.Is(err, diag.StoreCommitFailure), "got %v", err)

	n, _ := s.FindSymbolByID(a.ID)
	assert.NotNil(t, n, "delete of a must be rolled back")
	n, _ = s.FindSymbolByID(b.ID)
	assert.Nil(t, n, "upsert of b must be rolled back")
	gen, _ := s.Generation()
	assert.Equal(t, first.Generation, gen)
}

func TestCommitCancelled(t *testing.T) {
	s := openTest(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.Commit(ctx, &graph.Delta{UpsertSymbols: []*graph.Symbol{testSymbol("a.py", "a", graph.Function, 0)}},
		&MetaRecord{SchemaVersion: SchemaVersion, Generation: 1})
	require.Error(t, err)
	n, _ := s.CountSymbols()
	assert.Zero(t, n)
}

func TestMetaRoundTrip(t *testing.T) {
	s := openTest(t)
	m, err := s.Meta()
	require.NoError(t, err)
	require.Nil(t, m, "no meta on an empty store")

	want := &MetaRecord{SchemaVersion: SchemaVersion, Commit: "deadbeef", Generation: 1, Languages: []string{"go", "python"}, IndexedAt: "2026-01-02T03:04:05Z"}
	require.NoError(t, s.Commit(context.Background(), &graph.Delta{}, want))

	got, err := s.Meta()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFilesAndBreakdown(t *testing.T) {
	s := openTest(t)
	files := []*graph.FileRecord{
		{Path: "a.py", IdentityPath: "a.py", Language: "python", Fingerprint: "f1", LineCount: 10,
			Imports: []graph.Binding{{Alias: "os", Module: "os"}}},
		{Path: "b.py", IdentityPath: "old/b.py", Language: "python", Fingerprint: "f2", LineCount: 5},
		{Path: "main.go", IdentityPath: "main.go", Language: "go", Fingerprint: "f3", LineCount: 7},
	}
	commit(t, s, &graph.Delta{
		UpsertFiles:   files,
		UpsertSymbols: []*graph.Symbol{testSymbol("a.py", "a", graph.Function, 0)},
	})

	got, err := s.Files()
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i := range files {
		assert.True(t, graph.FileEqual(got[i], files[i]), "file %d mismatch: %+v", i, got[i])
	}

	some, err := s.FilesByPaths([]string{"main.go", "b.py", "missing.rs"})
	require.NoError(t, err)
	require.Len(t, some, 2)
	assert.Equal(t, "b.py", some[0].Path)
	assert.Equal(t, "old/b.py", some[0].IdentityPath)
	assert.Equal(t, "main.go", some[1].Path)

	bd, err := s.LanguageBreakdown()
	require.NoError(t, err)
	require.Len(t, bd, 2)
	assert.Equal(t, LanguageCount{Language: "python", Files: 2, Lines: 15, Symbols: 1}, bd[0])

	commit(t, s, &graph.Delta{DeleteFiles: []string{"a.py"}})
	n, _ := s.CountFiles()
	assert.Equal(t, 2, n)
}

func TestEdgesByFilesAndLookupKeys(t *testing.T) {
	s := openTest(t)
	a := testSymbol("a.py", "a", graph.Function, 0)
	b := testSymbol("b.py", "b", graph.Function, 0)
	c := testSymbol("c.py", "c", graph.Function, 0)
	ab, bc := testCall(a, b), testCall(b, c)
	commit(t, s, &graph.Delta{UpsertSymbols: []*graph.Symbol{a, b, c}, UpsertEdges: []*graph.Edge{ab, bc}})

	got, err := s.EdgesByFiles([]string{"a.py"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, ab.ID, got[0].ID)

	got, err = s.EdgesByLookupKeys([]string{"c", "zzz"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, bc.ID, got[0].ID)

	aliased := &graph.Edge{
		ID:         graph.EdgeID(graph.Calls, a.ID, "f"),
		Kind:       graph.Calls,
		SourceID:   a.ID,
		TargetName: "f",
		Confidence: graph.Unresolved,
		Path:       a.Path,
		Ref:        "f",
		LookupKey:  "f",
		ImportKey:  "foo",
	}
	commit(t, s, &graph.Delta{UpsertEdges: []*graph.Edge{aliased}})
	for _, key := range []string{"f", "foo"} {
		got, err = s.EdgesByLookupKeys([]string{key, "c"})
		require.NoError(t, err)
		require.Len(t, got, 2, "key %q", key)
		for _, e := range got {
			if e.ID == aliased.ID {
				assert.Equal(t, "foo", e.ImportKey)
			}
		}
	}
}

func TestEdgesTargeting(t *testing.T) {
	s := openTest(t)
	a := testSymbol("a.py", "helper", graph.Function, 0)
	b := testSymbol("b.py", "helper", graph.Function, 0)
	m := testSymbol("m.py", "main", graph.Function, 0)
	amb := &graph.Edge{
		ID:         graph.EdgeID(graph.Calls, m.ID, "helper"),
		Kind:       graph.Calls,
		SourceID:   m.ID,
		TargetName: "helper",
		Confidence: graph.Ambiguous,
		Candidates: []string{a.ID, b.ID},
		Path:       m.Path,
		Ref:        "helper",
		LookupKey:  "helper",
	}
	direct := testCall(m, a)
	direct.ID = graph.EdgeID(graph.References, m.ID, "helper")
	direct.Kind = graph.References
	commit(t, s, &graph.Delta{UpsertSymbols: []*graph.Symbol{a, b, m}, UpsertEdges: []*graph.Edge{amb, direct}})

	got, err := s.EdgesTargeting([]string{b.ID})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, amb.ID, got[0].ID)
	assert.Len(t, got[0].Candidates, 2)

	got, err = s.EdgesTargeting([]string{a.ID})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestSearchSymbols(t *testing.T) {
	s := openTest(t)
	syms := []*graph.Symbol{
		testSymbol("b.py", "UserService", graph.Class, 0),
		testSymbol("a.py", "UserRepo", graph.Class, 50),
		testSymbol("a.py", "User", graph.Class, 10),
		testSymbol("a.py", "userService", graph.Function, 80),
		testSymbol("a.py", "MyUser", graph.Class, 120),
		testSymbol("a.py", "User.save", graph.Method, 20),
	}
	syms[1].Language = "go"
	commit(t, s, &graph.Delta{UpsertSymbols: syms})

	tests := []struct {
		name   string
		params SearchParams
		want   []string
	}{
		{"prefix glob", SearchParams{NamePattern: "User*"}, []string{"User", "UserRepo", "UserService"}},
		{"case sensitive", SearchParams{NamePattern: "user*"}, []string{"userService"}},
		{"anchored", SearchParams{NamePattern: "User"}, []string{"User"}},
		{"single char", SearchParams{NamePattern: "Use?"}, []string{"User"}},
		{"kind filter", SearchParams{NamePattern: "*", Kinds: []graph.Kind{graph.Method}}, []string{"save"}},
		{"language filter", SearchParams{NamePattern: "User*", Languages: []string{"go"}}, []string{"UserRepo"}},
		{"qualified", SearchParams{NamePattern: "User.*"}, []string{"save"}},
		{"limit", SearchParams{NamePattern: "User*", Limit: 2}, []string{"User", "UserRepo"}},
		{"literal bracket", SearchParams{NamePattern: "[U]ser"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.SearchSymbols(tt.params)
			require.NoError(t, err)
			var names []string
			for _, n := range got {
				names = append(names, n.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestBFS(t *testing.T) {
	s := openTest(t)
	a := testSymbol("a.py", "a", graph.Function, 0)
	b := testSymbol("a.py", "b", graph.Function, 20)
	c := testSymbol("a.py", "c", graph.Function, 40)
	commit(t, s, &graph.Delta{
		UpsertSymbols: []*graph.Symbol{a, b, c},
		UpsertEdges:   []*graph.Edge{testCall(a, b), testCall(b, a), testCall(b, c)},
	})

	res, err := s.BFS(a.ID, Outbound, []graph.EdgeKind{graph.Calls}, 5, 100)
	require.NoError(t, err)
	require.Len(t, res.Visited, 2)
	assert.Equal(t, b.ID, res.Visited[0].Symbol.ID)
	assert.Equal(t, 1, res.Visited[0].Hop)
	assert.Equal(t, c.ID, res.Visited[1].Symbol.ID)
	assert.Equal(t, 2, res.Visited[1].Hop)

	res, err = s.BFS(c.ID, Inbound, nil, 1, 100)
	require.NoError(t, err)
	require.Len(t, res.Visited, 1)
	assert.Equal(t, b.ID, res.Visited[0].Symbol.ID)
}

func TestGetSchema(t *testing.T) {
	s := openTest(t)
	a := testSymbol("a.py", "a", graph.Function, 0)
	b := testSymbol("a.py", "B", graph.Class, 20)
	commit(t, s, &graph.Delta{UpsertSymbols: []*graph.Symbol{a, b}, UpsertEdges: []*graph.Edge{testCall(a, b)}})

	info, err := s.GetSchema()
	require.NoError(t, err)
	assert.Len(t, info.NodeLabels, 2)
	assert.Equal(t, []string{"(:Function)-[:CALLS]->(:Class)  [1x]"}, info.RelationshipPatterns)
}

func TestBatchSizeSafety(t *testing.T) {
	assert.LessOrEqual(t, symbolsBatchSize*numSymbolCols, 999)
	assert.LessOrEqual(t, edgesBatchSize*numEdgeCols, 999)
}

func TestLargeBatch(t *testing.T) {
	s := openTest(t)
	var syms []*graph.Symbol
	var ids []string
	for i := range 1500 {
		n := testSymbol(fmt.Sprintf("pkg%d/f.py", i%7), fmt.Sprintf("f%d", i), graph.Function, i)
		syms = append(syms, n)
		ids = append(ids, n.ID)
	}
	commit(t, s, &graph.Delta{UpsertSymbols: syms})
	n, _ := s.CountSymbols()
	require.Equal(t, 1500, n)

	found, err := s.FindSymbolsByIDs(ids)
	require.NoError(t, err)
	assert.Len(t, found, 1500)

	commit(t, s, &graph.Delta{DeleteSymbols: ids})
	n, _ = s.CountSymbols()
	assert.Zero(t, n)
}
