package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSymbolIDStable(t *testing.T) {
	a := SymbolID("pkg/a.py", "Service.run", Method)
	b := SymbolID("pkg/a.py", "Service.run", Method)
	assert.Equal(t, a, b)
	assert.Len(t, a, 32)

	assert.NotEqual(t, a, SymbolID("pkg/b.py", "Service.run", Method), "path is part of identity")
	assert.NotEqual(t, a, SymbolID("pkg/a.py", "Service.run", Function), "kind is part of identity")
	assert.NotEqual(t, a, SymbolID("pkg/a.py", "Service.ru", Method))
}

func TestIDSeparatorPreventsCollisions(t *testing.T) {
	assert.NotEqual(t, SymbolID("ab", "c", Function), SymbolID("a", "bc", Function))
	assert.NotEqual(t, EdgeID(Calls, "x", "yz"), EdgeID(Calls, "xy", "z"))
}

func TestEdgeAccepts(t *testing.T) {
	assert.True(t, Calls.Accepts(Function))
	assert.True(t, Calls.Accepts(Class))
	assert.False(t, Calls.Accepts(Variable))
	assert.False(t, Calls.Accepts(Interface))
	assert.True(t, Inherits.Accepts(Interface))
	assert.False(t, Inherits.Accepts(Function))
	assert.True(t, References.Accepts(Variable))
	assert.False(t, References.Accepts(Module))
}

func TestParseKind(t *testing.T) {
	k, ok := ParseKind("Trait")
	require.True(t, ok)
	assert.Equal(t, Interface, k)
	k, ok = ParseKind("struct")
	require.True(t, ok)
	assert.Equal(t, Struct, k)
	_, ok = ParseKind("banana")
	assert.False(t, ok)
}

func TestQNHelpers(t *testing.T) {
	assert.Equal(t, "a.b", JoinQN("a", "b"))
	assert.Equal(t, "b", JoinQN("", "b"))
	assert.Equal(t, "a", JoinQN("a", ""))
	assert.Equal(t, "c", LastSegment("a.b.c"))
	assert.Equal(t, "c", LastSegment("c"))
	assert.Equal(t, []string{"a", "b"}, SplitQN("a.b"))
	assert.Nil(t, SplitQN(""))
}

func sym(path, qn string, kind Kind) *Symbol {
	return &Symbol{
		ID:            SymbolID(path, qn, kind),
		Kind:          kind,
		Name:          LastSegment(qn),
		QualifiedName: qn,
		Path:          path,
	}
}

func TestDiff(t *testing.T) {
	foo := sym("a.py", "foo", Function)
	bar := sym("a.py", "bar", Function)
	baz := sym("a.py", "baz", Function)

	prev := NewRegion()
	prev.Symbols[foo.ID] = foo
	prev.Symbols[bar.ID] = bar
	prev.Files["a.py"] = &FileRecord{Path: "a.py", IdentityPath: "a.py", Fingerprint: "1"}

	movedBar := *bar
	movedBar.Span = Span{StartByte: 10, EndByte: 20, StartLine: 2, EndLine: 3}

	e := &Edge{ID: EdgeID(Calls, baz.ID, "foo"), Kind: Calls, SourceID: baz.ID, TargetName: "foo", Confidence: Unresolved}

	next := NewRegion()
	next.Symbols[bar.ID] = &movedBar
	next.Symbols[baz.ID] = baz
	next.Edges[e.ID] = e
	next.Files["a.py"] = &FileRecord{Path: "a.py", IdentityPath: "a.py", Fingerprint: "2"}

	d := Diff(prev, next)
	assert.Equal(t, DeltaStats{
		NodesAdded: 1, NodesUpdated: 1, NodesRemoved: 1,
		EdgesAdded: 1, FilesUpdated: 1,
	}, d.Stats)
	assert.Equal(t, []string{foo.ID}, d.DeleteSymbols)
	assert.Len(t, d.UpsertSymbols, 2)
	assert.False(t, d.Empty())

	assert.True(t, Diff(next, next).Empty(), "diffing a region with itself yields nothing")
}

func TestFileEqualIgnoresCommit(t *testing.T) {
	a := &FileRecord{Path: "x.go", Fingerprint: "f", Commit: "c1"}
	b := &FileRecord{Path: "x.go", Fingerprint: "f", Commit: "c2"}
	assert.True(t, FileEqual(a, b))
}

func TestCanonicalIgnoresIdentityPath(t *testing.T) {
	s1 := sym("old.py", "foo", Function)
	s1.Path = "new.py"
	s2 := sym("new.py", "foo", Function)

	caller := sym("c.py", "main", Function)
	e1 := &Edge{Kind: Calls, SourceID: caller.ID, TargetID: s1.ID, TargetName: "foo", Confidence: Resolved}
	e2 := &Edge{Kind: Calls, SourceID: caller.ID, TargetID: s2.ID, TargetName: "foo", Confidence: Resolved}

	assert.Equal(t,
		Canonical([]*Symbol{s1, caller}, []*Edge{e1}),
		Canonical([]*Symbol{s2, caller}, []*Edge{e2}))
}
