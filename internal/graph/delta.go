package graph

import (
	"slices"
	"sort"
)

// Delta is the minimal change set between two graph states.
type Delta struct {
	UpsertSymbols []*Symbol
	DeleteSymbols []string
	UpsertEdges   []*Edge
	DeleteEdges   []string
	UpsertFiles   []*FileRecord
	DeleteFiles   []string

	Stats DeltaStats
}

// DeltaStats counts the changes in a Delta.
type DeltaStats struct {
	NodesAdded   int `json:"nodes_added"`
	NodesUpdated int `json:"nodes_updated"`
	NodesRemoved int `json:"nodes_removed"`
	EdgesAdded   int `json:"edges_added"`
	EdgesUpdated int `json:"edges_updated"`
	EdgesRemoved int `json:"edges_removed"`
	FilesAdded   int `json:"files_added"`
	FilesUpdated int `json:"files_updated"`
	FilesRemoved int `json:"files_removed"`
}

// Empty reports whether the delta changes nothing.
func (d *Delta) Empty() bool {
	return len(d.UpsertSymbols) == 0 && len(d.DeleteSymbols) == 0 &&
		len(d.UpsertEdges) == 0 && len(d.DeleteEdges) == 0 &&
		len(d.UpsertFiles) == 0 && len(d.DeleteFiles) == 0
}

// Region is a slice of graph state keyed by ID (symbols, edges) or path
// (files). Diff compares two regions covering the same scope.
type Region struct {
	Symbols map[string]*Symbol
	Edges   map[string]*Edge
	Files   map[string]*FileRecord
}

// NewRegion returns an empty region.
func NewRegion() *Region {
	return &Region{
		Symbols: make(map[string]*Symbol),
		Edges:   make(map[string]*Edge),
		Files:   make(map[string]*FileRecord),
	}
}

// Diff computes the delta turning prev into next. Output slices are sorted
// by key so commits are deterministic.
func Diff(prev, next *Region) *Delta {
	d := &Delta{}

	for _, id := range sortedKeys(next.Symbols) {
		s := next.Symbols[id]
		old, ok := prev.Symbols[id]
		switch {
		case !ok:
			d.Stats.NodesAdded++
		case SymbolEqual(old, s):
			continue
		default:
			d.Stats.NodesUpdated++
		}
		d.UpsertSymbols = append(d.UpsertSymbols, s)
	}
	for _, id := range sortedKeys(prev.Symbols) {
		if _, ok := next.Symbols[id]; !ok {
			d.DeleteSymbols = append(d.DeleteSymbols, id)
			d.Stats.NodesRemoved++
		}
	}

	for _, id := range sortedKeys(next.Edges) {
		e := next.Edges[id]
		old, ok := prev.Edges[id]
		switch {
		case !ok:
			d.Stats.EdgesAdded++
		case EdgeEqual(old, e):
			continue
		default:
			d.Stats.EdgesUpdated++
		}
		d.UpsertEdges = append(d.UpsertEdges, e)
	}
	for _, id := range sortedKeys(prev.Edges) {
		if _, ok := next.Edges[id]; !ok {
			d.DeleteEdges = append(d.DeleteEdges, id)
			d.Stats.EdgesRemoved++
		}
	}

	for _, p := range sortedKeys(next.Files) {
		f := next.Files[p]
		old, ok := prev.Files[p]
		switch {
		case !ok:
			d.Stats.FilesAdded++
		case FileEqual(old, f):
			continue
		default:
			d.Stats.FilesUpdated++
		}
		d.UpsertFiles = append(d.UpsertFiles, f)
	}
	for _, p := range sortedKeys(prev.Files) {
		if _, ok := next.Files[p]; !ok {
			d.DeleteFiles = append(d.DeleteFiles, p)
			d.Stats.FilesRemoved++
		}
	}
	return d
}

// SymbolEqual compares every attribute of two symbols.
func SymbolEqual(a, b *Symbol) bool {
	return *a == *b
}

// EdgeEqual compares every attribute of two edges.
func EdgeEqual(a, b *Edge) bool {
	return a.ID == b.ID && a.Kind == b.Kind && a.SourceID == b.SourceID &&
		a.TargetID == b.TargetID && a.TargetName == b.TargetName &&
		a.Confidence == b.Confidence && slices.Equal(a.Candidates, b.Candidates) &&
		a.Path == b.Path && a.Ref == b.Ref && slices.Equal(a.Scopes, b.Scopes) &&
		a.LookupKey == b.LookupKey && a.ImportKey == b.ImportKey
}

// FileEqual compares two file records. Commit is ignored: a file whose content
// is unchanged is not rewritten just because HEAD moved.
func FileEqual(a, b *FileRecord) bool {
	return a.Path == b.Path && a.IdentityPath == b.IdentityPath &&
		a.Language == b.Language && a.Fingerprint == b.Fingerprint &&
		a.LineCount == b.LineCount && slices.Equal(a.Imports, b.Imports)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
