// Package resolve binds relationship candidates to symbols.
//
// Resolution runs in two phases. Every file is extracted first and its
// symbols are added to a Builder; once extraction is complete the builder is
// frozen into a NameIndex, which is never mutated again and is safe to read
// from any number of goroutines.
package resolve

import (
	"path"
	"slices"
	"strings"

	"github.com/DeusData/codegraph/internal/graph"
)

// Entry is the part of a symbol the resolver needs.
type Entry struct {
	ID            string
	QualifiedName string
	Kind          graph.Kind
	Path          string
}

// NameIndex maps qualified names to the symbols declaring them.
type NameIndex struct {
	byQN    map[string][]Entry
	imports map[string][]graph.Binding
	size    int
}

// Builder accumulates symbols and import bindings before the barrier.
// It is not safe for concurrent use.
type Builder struct {
	byQN    map[string][]Entry
	imports map[string][]graph.Binding
	seen    map[string]bool
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{
		byQN:    make(map[string][]Entry),
		imports: make(map[string][]graph.Binding),
		seen:    make(map[string]bool),
	}
}

// AddSymbol registers a symbol. Re-adding an ID is a no-op.
func (b *Builder) AddSymbol(s *graph.Symbol) {
	if b.seen[s.ID] {
		return
	}
	b.seen[s.ID] = true
	b.byQN[s.QualifiedName] = append(b.byQN[s.QualifiedName], Entry{
		ID:            s.ID,
		QualifiedName: s.QualifiedName,
		Kind:          s.Kind,
		Path:          s.Path,
	})
}

// AddSymbols registers every symbol in syms.
func (b *Builder) AddSymbols(syms []*graph.Symbol) {
	for _, s := range syms {
		b.AddSymbol(s)
	}
}

// SetImports records the import bindings of a file, replacing earlier ones.
func (b *Builder) SetImports(filePath string, bindings []graph.Binding) {
	if len(bindings) == 0 {
		delete(b.imports, filePath)
		return
	}
	b.imports[filePath] = slices.Clone(bindings)
}

// Build freezes the builder. The builder must not be used afterwards.
func (b *Builder) Build() *NameIndex {
	for qn, entries := range b.byQN {
		slices.SortFunc(entries, func(x, y Entry) int { return strings.Compare(x.ID, y.ID) })
		b.byQN[qn] = entries
	}
	idx := &NameIndex{byQN: b.byQN, imports: b.imports, size: len(b.seen)}
	b.byQN, b.imports, b.seen = nil, nil, nil
	return idx
}

// Len is the number of indexed symbols.
func (x *NameIndex) Len() int { return x.size }

// Lookup returns the symbols declaring qn, ordered by ID. The slice is shared
// and must not be modified.
func (x *NameIndex) Lookup(qn string) []Entry {
	return x.byQN[qn]
}

// Imports returns the bindings recorded for a file.
func (x *NameIndex) Imports(filePath string) []graph.Binding {
	return x.imports[filePath]
}

// moduleMatches reports whether an import module string plausibly names the
// file at filePath. Both are reduced to segments and compared by suffix,
// against either the file or its directory.
func moduleMatches(module, filePath string) bool {
	mod := moduleSegments(module)
	if len(mod) == 0 {
		return false
	}
	fileSegs := dropIndexStem(splitSegments(trimExt(filePath)))
	dirSegs := splitSegments(path.Dir(filePath))
	return suffixEqual(mod, fileSegs) || suffixEqual(mod, dirSegs)
}

// moduleSegments normalises an import module. Extensions are only stripped
// from path-like modules and headers; in "a.b.c" every dot is a separator.
func moduleSegments(module string) []string {
	if ext := extOf(module); headerExts[ext] || sourceExts[ext] && strings.ContainsAny(module, "/\\") {
		module = trimExt(module)
	}
	return dropIndexStem(splitSegments(module))
}

func dropIndexStem(segs []string) []string {
	if n := len(segs); n > 0 && isIndexStem(segs[n-1]) {
		return segs[:n-1]
	}
	return segs
}

// splitSegments splits on path separators and dots, dropping relative and
// crate-root markers.
func splitSegments(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == '/' || r == '\\' || r == ':' || r == '.'
	})
	out := fields[:0]
	for _, f := range fields {
		switch f {
		case "crate", "self", "super":
			continue
		}
		out = append(out, f)
	}
	return out
}

var headerExts = map[string]bool{"h": true, "hh": true, "hpp": true, "hxx": true}

var sourceExts = map[string]bool{
	"go": true, "py": true, "rs": true, "js": true, "jsx": true, "mjs": true, "cjs": true,
	"ts": true, "tsx": true, "mts": true, "cts": true, "cc": true, "cpp": true, "cxx": true,
}

func extOf(name string) string {
	if i := strings.LastIndexByte(name, '.'); i > 0 && !strings.ContainsAny(name[i:], "/\\") {
		return name[i+1:]
	}
	return ""
}

func trimExt(name string) string {
	if ext := extOf(name); ext != "" {
		return name[:len(name)-len(ext)-1]
	}
	return name
}

func isIndexStem(stem string) bool {
	switch stem {
	case "__init__", "index", "mod", "lib":
		return true
	}
	return false
}

func suffixEqual(a, b []string) bool {
	n := min(len(a), len(b))
	if n == 0 {
		return false
	}
	return slices.Equal(a[len(a)-n:], b[len(b)-n:])
}
