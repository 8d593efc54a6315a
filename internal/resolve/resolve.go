package resolve

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/DeusData/codegraph/internal/graph"
)

// Resolver binds candidate edges against a frozen NameIndex.
type Resolver struct {
	idx *NameIndex
}

// New creates a resolver over idx.
func New(idx *NameIndex) *Resolver {
	return &Resolver{idx: idx}
}

// Stats counts resolution outcomes.
type Stats struct {
	Resolved   int `json:"resolved"`
	Ambiguous  int `json:"ambiguous"`
	Unresolved int `json:"unresolved"`
}

func (s *Stats) add(c graph.Confidence) {
	switch c {
	case graph.Resolved:
		s.Resolved++
	case graph.Ambiguous:
		s.Ambiguous++
	default:
		s.Unresolved++
	}
}

// Resolve returns a copy of e with its target bound. Contains edges are
// returned unchanged. With no match the edge stays unresolved and keeps its
// raw target name; with several equally specific matches it is ambiguous
// and lists every candidate.
func (r *Resolver) Resolve(e *graph.Edge) *graph.Edge {
	out := *e
	if e.Kind == graph.Contains {
		return &out
	}
	out.TargetID = ""
	out.Candidates = nil
	out.Confidence = graph.Unresolved

	matches := r.lookup(e)
	switch len(matches) {
	case 0:
	case 1:
		out.TargetID = matches[0]
		out.Confidence = graph.Resolved
	default:
		out.Candidates = matches
		out.Confidence = graph.Ambiguous
	}
	return &out
}

// ResolveAll resolves edges with up to jobs workers. The input slice is not
// modified; the result is in input order.
func (r *Resolver) ResolveAll(ctx context.Context, edges []*graph.Edge, jobs int) ([]*graph.Edge, Stats, error) {
	t := time.Now()
	out := make([]*graph.Edge, len(edges))
	if jobs < 1 {
		jobs = 1
	}
	const chunk = 512

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for start := 0; start < len(edges); start += chunk {
		end := min(start+chunk, len(edges))
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for i := start; i < end; i++ {
				out[i] = r.Resolve(edges[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, Stats{}, err
	}

	var stats Stats
	for _, e := range out {
		if e.Kind != graph.Contains {
			stats.add(e.Confidence)
		}
	}
	slog.Debug("resolve.done",
		"edges", len(edges),
		"resolved", stats.Resolved,
		"ambiguous", stats.Ambiguous,
		"unresolved", stats.Unresolved,
		"elapsed", time.Since(t),
	)
	return out, stats, nil
}

// lookup tries each tier in turn; the first tier with any match wins.
func (r *Resolver) lookup(e *graph.Edge) []string {
	ref := e.Ref
	if ref == "" {
		ref = e.TargetName
	}
	if ref == "" {
		return nil
	}
	if ids := r.scoped(e, ref, true); len(ids) > 0 {
		return ids
	}
	if ids := r.imported(e, ref); len(ids) > 0 {
		return ids
	}
	if ids := r.scoped(e, ref, false); len(ids) > 0 {
		return ids
	}
	// Receiver chains such as a.b.method fall back to shorter suffixes.
	parts := graph.SplitQN(ref)
	for i := 1; i < len(parts); i++ {
		suffix := strings.Join(parts[i:], ".")
		if ids := r.scoped(e, suffix, true); len(ids) > 0 {
			return ids
		}
		if ids := r.scoped(e, suffix, false); len(ids) > 0 {
			return ids
		}
	}
	return nil
}

// scoped looks ref up under each visible scope, innermost first. With local set
// only symbols in the edge's own file count.
func (r *Resolver) scoped(e *graph.Edge, ref string, local bool) []string {
	scopes := e.Scopes
	if len(scopes) == 0 {
		scopes = []string{""}
	}
	for _, scope := range scopes {
		ids := r.match(e, graph.JoinQN(scope, ref), func(en Entry) bool {
			return !local || en.Path == e.Path
		})
		if len(ids) > 0 {
			return ids
		}
	}
	return nil
}

// imported resolves through the file's import bindings. The longest alias
// that prefixes ref wins; wildcard bindings are tried after named ones.
func (r *Resolver) imported(e *graph.Edge, ref string) []string {
	bindings := r.idx.Imports(e.Path)
	if len(bindings) == 0 {
		return nil
	}
	// A bare module alias names no symbol by itself.
	if b, rest := bestBinding(bindings, ref); b != nil && (b.Symbol != "" || rest != "") {
		if ids := r.viaModule(e, b.Module, bindingQN(*b, rest)); len(ids) > 0 {
			return ids
		}
	}

	var ids []string
	for _, b := range bindings {
		if b.Alias != graph.Wildcard {
			continue
		}
		ids = append(ids, r.viaModule(e, b.Module, ref)...)
	}
	return dedupe(ids)
}

// bestBinding returns the named binding with the longest alias prefixing
// ref, and the part of ref after that alias.
func bestBinding(bindings []graph.Binding, ref string) (*graph.Binding, string) {
	var best *graph.Binding
	var rest string
	for i := range bindings {
		b := &bindings[i]
		if b.Alias == graph.Wildcard {
			continue
		}
		var tail string
		switch {
		case ref == b.Alias:
		case strings.HasPrefix(ref, b.Alias+"."):
			tail = ref[len(b.Alias)+1:]
		default:
			continue
		}
		if best == nil || len(b.Alias) > len(best.Alias) {
			best, rest = b, tail
		}
	}
	return best, rest
}

// bindingQN is the name looked up inside the bound module: the imported symbol
// followed by rest, or rest alone for a module alias.
func bindingQN(b graph.Binding, rest string) string {
	if b.Symbol == "" {
		return rest
	}
	return graph.JoinQN(moduleQN(b.Symbol), rest)
}

// LookupKeys returns the simple names a symbol must have to bind ref. Every
// scoped, wildcard and suffix lookup ends in key, the last segment of ref.
// importKey is set when a named import redirects ref to a symbol whose last
// segment differs, as in "from lib import foo as f".
func LookupKeys(ref string, imports []graph.Binding) (key, importKey string) {
	key = graph.LastSegment(ref)
	b, rest := bestBinding(imports, ref)
	if b == nil || (b.Symbol == "" && rest == "") {
		return key, ""
	}
	qn := bindingQN(*b, rest)
	if qn == "" {
		qn = moduleQN(b.Module)
	}
	if k := graph.LastSegment(qn); k != key {
		importKey = k
	}
	return key, importKey
}

// viaModule finds qn among symbols whose file matches module, or declared
// inside a namespace named by module.
func (r *Resolver) viaModule(e *graph.Edge, module, qn string) []string {
	ids := r.match(e, qn, func(en Entry) bool { return moduleMatches(module, en.Path) })
	if len(ids) > 0 {
		return ids
	}
	if ns := moduleQN(module); ns != "" {
		return r.match(e, graph.JoinQN(ns, qn), nil)
	}
	return nil
}

// match returns the IDs declaring qn whose kind the edge accepts, excluding
// the edge's own source for non-call edges.
func (r *Resolver) match(e *graph.Edge, qn string, keep func(Entry) bool) []string {
	var ids []string
	for _, en := range r.idx.Lookup(qn) {
		if !e.Kind.Accepts(en.Kind) {
			continue
		}
		if en.ID == e.SourceID && e.Kind != graph.Calls {
			continue
		}
		if keep != nil && !keep(en) {
			continue
		}
		ids = append(ids, en.ID)
	}
	return ids
}

// moduleQN converts a namespace-style module to qualified-name form. Path
// and URL style modules have none.
func moduleQN(module string) string {
	if module == "" || strings.ContainsAny(module, "/\\\"<>") {
		return ""
	}
	qn := strings.ReplaceAll(module, "::", ".")
	for {
		trimmed := qn
		for _, p := range []string{"crate.", "self.", "super."} {
			trimmed = strings.TrimPrefix(trimmed, p)
		}
		if trimmed == qn {
			break
		}
		qn = trimmed
	}
	switch qn {
	case "crate", "self", "super":
		return ""
	}
	return strings.Trim(qn, ".")
}

func dedupe(ids []string) []string {
	if len(ids) < 2 {
		return ids
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}
