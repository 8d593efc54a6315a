// Package query answers name searches and call-graph questions over a
// committed graph.
package query

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/DeusData/codegraph/internal/graph"
	"github.com/DeusData/codegraph/internal/lang"
	"github.com/DeusData/codegraph/internal/metrics"
	"github.com/DeusData/codegraph/internal/store"
)

// DefaultLimit is the result cap the command line applies to searches.
const DefaultLimit = 20

// Store is the read side of the graph store.
type Store interface {
	SearchSymbols(params store.SearchParams) ([]*graph.Symbol, error)
	FindSymbolByID(id string) (*graph.Symbol, error)
	FindSymbolsByQN(qualifiedName string) ([]*graph.Symbol, error)
	FindSymbolsByName(name string) ([]*graph.Symbol, error)
	FindEdgesBySourceAndKind(sourceID string, kind graph.EdgeKind) ([]*graph.Edge, error)
	FindEdgesByTargetAndKind(targetID string, kind graph.EdgeKind) ([]*graph.Edge, error)
}

var _ Store = (*store.Store)(nil)

var (
	// ErrEmptyPattern is returned for a search without a pattern.
	ErrEmptyPattern = errors.New("empty search pattern")
	// ErrNotFound is returned when no symbol matches an argument.
	ErrNotFound = errors.New("symbol not found")
)

// FindOptions filters a name search.
type FindOptions struct {
	// Pattern is a case-sensitive glob over the whole name: * matches any
	// run of characters, ? exactly one. A pattern with a dot is matched
	// against qualified names.
	Pattern   string
	Kinds     []graph.Kind
	Languages []lang.Language
	// Limit caps the result count; 0 means no cap.
	Limit int
}

// FindSymbols returns the symbols matching opts, ordered by path, then
// position in the file.
func FindSymbols(ctx context.Context, s Store, opts FindOptions) (syms []*graph.Symbol, err error) {
	defer func() { metrics.RecordQuery("find", err) }()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if opts.Pattern == "" {
		return nil, ErrEmptyPattern
	}
	langs := make([]string, 0, len(opts.Languages))
	for _, l := range opts.Languages {
		langs = append(langs, string(l))
	}
	syms, err = s.SearchSymbols(store.SearchParams{
		NamePattern: opts.Pattern,
		Kinds:       opts.Kinds,
		Languages:   langs,
		Limit:       opts.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("find %q: %w", opts.Pattern, err)
	}
	return syms, nil
}

// AmbiguousError lists the symbols an argument could name.
type AmbiguousError struct {
	Arg        string
	Candidates []*graph.Symbol
}

func (e *AmbiguousError) Error() string {
	names := make([]string, len(e.Candidates))
	for i, c := range e.Candidates {
		names[i] = fmt.Sprintf("%s:%s (%s)", c.Path, c.QualifiedName, c.Kind)
	}
	return fmt.Sprintf("%q is ambiguous, %d candidates: %s", e.Arg, len(e.Candidates), strings.Join(names, ", "))
}

// ResolveSymbol maps a user argument to one symbol. The argument may be a
// symbol ID, an exact qualified name, a simple name, or any of the two
// names prefixed with "path:" to pick one file.
func ResolveSymbol(ctx context.Context, s Store, arg string) (sym *graph.Symbol, err error) {
	defer func() { metrics.RecordQuery("resolve", err) }()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if arg == "" {
		return nil, fmt.Errorf("%w: empty name", ErrNotFound)
	}

	if sym, err = s.FindSymbolByID(arg); err != nil || sym != nil {
		return sym, err
	}

	name, path := arg, ""
	if i := strings.LastIndexByte(arg, ':'); i > 0 {
		path, name = arg[:i], arg[i+1:]
	}
	for _, find := range []func(string) ([]*graph.Symbol, error){s.FindSymbolsByQN, s.FindSymbolsByName} {
		found, err := find(name)
		if err != nil {
			return nil, fmt.Errorf("resolve %q: %w", arg, err)
		}
		if path != "" {
			found = inFile(found, path)
		}
		switch len(found) {
		case 0:
			continue
		case 1:
			return found[0], nil
		default:
			return nil, &AmbiguousError{Arg: arg, Candidates: found}
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, arg)
}

func inFile(syms []*graph.Symbol, path string) []*graph.Symbol {
	var out []*graph.Symbol
	for _, s := range syms {
		if s.Path == path {
			out = append(out, s)
		}
	}
	return out
}
