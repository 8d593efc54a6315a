package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/DeusData/codegraph/internal/diag"
	"github.com/DeusData/codegraph/internal/graph"
	"github.com/DeusData/codegraph/internal/meta"
	"github.com/DeusData/codegraph/internal/metrics"
	"github.com/DeusData/codegraph/internal/resolve"
)

// resolve freezes the name index and binds every candidate edge in scope.
func (r *run) resolve(ctx context.Context) error {
	var err error
	if r.report.Mode == ModeFull {
		err = r.prepareFull()
	} else {
		err = r.prepareIncremental()
	}
	if err != nil {
		return diag.New(diag.StoreConnectionFailure, err)
	}

	resolved, stats, err := resolve.New(r.index).ResolveAll(ctx, r.candidates, r.jobs)
	if err != nil {
		return err
	}
	r.resolved = resolved
	r.report.Resolution = stats
	metrics.AddEdges(string(graph.Resolved), stats.Resolved)
	metrics.AddEdges(string(graph.Ambiguous), stats.Ambiguous)
	metrics.AddEdges(string(graph.Unresolved), stats.Unresolved)

	for _, e := range resolved {
		if e.Confidence != graph.Ambiguous {
			continue
		}
		if len(r.report.Ambiguities) >= maxReportedAmbiguities {
			break
		}
		r.report.Ambiguities = append(r.report.Ambiguities,
			diag.Newf(diag.ResolutionAmbiguous, "%s %q matches %d symbols", e.Kind, e.Ref, len(e.Candidates)).WithPath(e.Path))
	}
	slog.Info("incremental.resolve",
		"run", r.report.RunID,
		"edges", len(r.candidates),
		"indexed", r.index.Len(),
		"resolved", stats.Resolved,
		"ambiguous", stats.Ambiguous,
		"unresolved", stats.Unresolved,
	)
	return nil
}

// prepareFull scopes a rebuild: the whole store is the previous region and
// every extracted file the next one.
func (r *run) prepareFull() error {
	prev := graph.NewRegion()
	syms, err := r.e.Store.AllSymbols()
	if err != nil {
		return fmt.Errorf("load symbols: %w", err)
	}
	edges, err := r.e.Store.AllEdges()
	if err != nil {
		return fmt.Errorf("load edges: %w", err)
	}
	files, err := r.e.Store.Files()
	if err != nil {
		return fmt.Errorf("load files: %w", err)
	}
	addToRegion(prev, syms, edges, files)

	next := graph.NewRegion()
	b := resolve.NewBuilder()
	for _, fr := range r.results {
		r.addResult(next, b, fr)
	}
	r.index = b.Build()
	r.prevRegion, r.nextRegion = prev, next
	return nil
}

// prepareIncremental scopes an update to the changed files plus every stored
// edge whose target may have moved: those looked up under a touched name and
// those bound to a symbol of a changed file.
func (r *run) prepareIncremental() error {
	c := r.changes
	affected := make(map[string]bool)
	for _, p := range c.Modified {
		affected[p] = true
	}
	for _, p := range c.Deleted {
		affected[p] = true
	}
	for _, o := range c.Renamed {
		affected[o] = true
	}
	affectedPaths := sortedKeys(affected)

	oldSyms, err := r.e.Store.SymbolsByFiles(affectedPaths)
	if err != nil {
		return fmt.Errorf("load changed symbols: %w", err)
	}
	oldEdges, err := r.e.Store.EdgesByFiles(affectedPaths)
	if err != nil {
		return fmt.Errorf("load changed edges: %w", err)
	}
	oldFiles, err := r.e.Store.FilesByPaths(affectedPaths)
	if err != nil {
		return fmt.Errorf("load changed files: %w", err)
	}
	prev := graph.NewRegion()
	addToRegion(prev, oldSyms, oldEdges, oldFiles)

	next := graph.NewRegion()
	b := resolve.NewBuilder()
	touched := make(map[string]bool)
	touch := func(s *graph.Symbol) {
		touched[s.Name] = true
		touched[graph.LastSegment(s.QualifiedName)] = true
	}
	for _, s := range oldSyms {
		touch(s)
	}

	// Content-identical renames keep their IDs: only the path moves.
	for _, n := range sortedKeys(c.Renamed) {
		o := c.Renamed[n]
		rec := prev.Files[o]
		if rec == nil {
			return fmt.Errorf("renamed file %s has no record", o)
		}
		moved := *rec
		moved.Path = n
		moved.Commit = r.head
		next.Files[n] = &moved
		b.SetImports(n, moved.Imports)
		for _, s := range oldSyms {
			if s.Path != o {
				continue
			}
			cp := *s
			cp.Path = n
			next.Symbols[cp.ID] = &cp
			b.AddSymbol(&cp)
		}
		for _, e := range oldEdges {
			if e.Path != o {
				continue
			}
			cp := *e
			cp.Path = n
			r.candidates = append(r.candidates, &cp)
		}
	}

	for _, fr := range r.results {
		r.addResult(next, b, fr)
		for _, s := range fr.result.Symbols {
			touch(s)
		}
	}

	oldIDs := make([]string, 0, len(oldSyms))
	for _, s := range oldSyms {
		oldIDs = append(oldIDs, s.ID)
	}
	byKey, err := r.e.Store.EdgesByLookupKeys(sortedKeys(touched))
	if err != nil {
		return fmt.Errorf("load dependent edges: %w", err)
	}
	byTarget, err := r.e.Store.EdgesTargeting(oldIDs)
	if err != nil {
		return fmt.Errorf("load bound edges: %w", err)
	}
	depFiles := make(map[string]bool)
	dependents := 0
	for _, e := range append(byKey, byTarget...) {
		if affected[e.Path] || e.Kind == graph.Contains {
			continue
		}
		if _, dup := prev.Edges[e.ID]; dup {
			continue
		}
		prev.Edges[e.ID] = e
		r.candidates = append(r.candidates, e)
		depFiles[e.Path] = true
		dependents++
	}
	if len(depFiles) > 0 {
		recs, err := r.e.Store.FilesByPaths(sortedKeys(depFiles))
		if err != nil {
			return fmt.Errorf("load dependent files: %w", err)
		}
		for _, f := range recs {
			b.SetImports(f.Path, f.Imports)
		}
	}

	all, err := r.e.Store.AllSymbols()
	if err != nil {
		return fmt.Errorf("load symbols: %w", err)
	}
	for _, s := range all {
		if !affected[s.Path] {
			b.AddSymbol(s)
		}
	}
	r.index = b.Build()
	r.prevRegion, r.nextRegion = prev, next
	slog.Info("incremental.scope",
		"run", r.report.RunID,
		"affected_files", len(affectedPaths),
		"touched_names", len(touched),
		"dependent_edges", dependents,
		"dependent_files", len(depFiles),
	)
	return nil
}

// addResult puts one extracted file into next and the index builder, and
// queues its edges for resolution.
func (r *run) addResult(next *graph.Region, b *resolve.Builder, fr *fileResult) {
	res := fr.result
	for _, s := range res.Symbols {
		next.Symbols[s.ID] = s
	}
	b.AddSymbols(res.Symbols)
	b.SetImports(res.Path, res.Imports)
	next.Files[res.Path] = &graph.FileRecord{
		Path:         res.Path,
		IdentityPath: fr.identity,
		Language:     string(fr.file.Language),
		Fingerprint:  fr.file.Fingerprint,
		Commit:       r.head,
		LineCount:    res.LineCount,
		Imports:      res.Imports,
	}
	r.candidates = append(r.candidates, res.Edges...)
}

// stage computes the minimal delta between the previous and next regions.
func (r *run) stage(context.Context) error {
	for _, e := range r.resolved {
		r.nextRegion.Edges[e.ID] = e
	}
	r.delta = graph.Diff(r.prevRegion, r.nextRegion)
	r.report.Delta = r.delta.Stats
	r.report.Changes = r.delta
	st := r.delta.Stats
	slog.Info("pipeline.staged",
		"run", r.report.RunID,
		"nodes_added", st.NodesAdded,
		"nodes_updated", st.NodesUpdated,
		"nodes_removed", st.NodesRemoved,
		"edges_added", st.EdgesAdded,
		"edges_updated", st.EdgesUpdated,
		"edges_removed", st.EdgesRemoved,
	)
	return nil
}

// nextFileStates is the per-file metadata after this run commits.
func (r *run) nextFileStates() map[string]meta.FileState {
	out := make(map[string]meta.FileState)
	c := r.changes
	if r.report.Mode != ModeFull && r.prev != nil {
		for p, fs := range r.prev.Files {
			out[p] = fs
		}
		for _, p := range c.Deleted {
			delete(out, p)
		}
		for n, o := range c.Renamed {
			fs := r.prev.Files[o]
			fs.IdentityPath = c.Identity[n]
			delete(out, o)
			out[n] = fs
		}
	}
	for _, fr := range r.results {
		out[fr.file.RelPath] = meta.FileState{
			Fingerprint:  fr.file.Fingerprint,
			IdentityPath: fr.identity,
			Language:     string(fr.file.Language),
		}
	}
	return out
}

func addToRegion(reg *graph.Region, syms []*graph.Symbol, edges []*graph.Edge, files []*graph.FileRecord) {
	for _, s := range syms {
		reg.Symbols[s.ID] = s
	}
	for _, e := range edges {
		reg.Edges[e.ID] = e
	}
	for _, f := range files {
		reg.Files[f.Path] = f
	}
}
