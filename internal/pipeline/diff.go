package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"

	"github.com/DeusData/codegraph/internal/diag"
	"github.com/DeusData/codegraph/internal/discover"
	"github.com/DeusData/codegraph/internal/gitdiff"
	"github.com/DeusData/codegraph/internal/lang"
	"github.com/DeusData/codegraph/internal/meta"
	"github.com/DeusData/codegraph/internal/metrics"
	"github.com/DeusData/codegraph/internal/store"
)

// sourceFile is a file of the working tree with its content fingerprint.
type sourceFile struct {
	discover.FileInfo
	Fingerprint string
}

// changeSet classifies the working tree against the recorded state.
type changeSet struct {
	Unchanged []string
	Added     []string
	Modified  []string
	Deleted   []string
	// Renamed maps new path to old path for content-identical renames.
	Renamed map[string]string
	// Identity holds the identity path of every current file.
	Identity map[string]string
}

// reparse lists the files whose content must be extracted.
func (c *changeSet) reparse() []string {
	out := make([]string, 0, len(c.Added)+len(c.Modified))
	out = append(out, c.Added...)
	out = append(out, c.Modified...)
	sort.Strings(out)
	return out
}

func (r *run) computeDiff(ctx context.Context) error {
	base, err := r.e.Store.Generation()
	if err != nil {
		return diag.New(diag.StoreConnectionFailure, fmt.Errorf("read generation: %w", err))
	}
	r.base = base
	if r.prev, err = r.loadPrevious(base); err != nil {
		return diag.New(diag.StoreConnectionFailure, err)
	}

	r.openRepo(ctx)
	r.langs = r.effectiveLanguages()

	files, err := r.listFiles(ctx)
	if err != nil {
		return fmt.Errorf("list files: %w", err)
	}
	if r.current, err = hashFiles(ctx, files, r.jobs); err != nil {
		return err
	}

	renames, forced := r.chooseMode(ctx)
	if err := ctx.Err(); err != nil {
		return err
	}
	var prevFiles map[string]meta.FileState
	if r.prev != nil {
		prevFiles = r.prev.Files
	}
	full := r.report.Mode == ModeFull
	r.changes = classify(prevFiles, r.current, renames, forced, !full)

	c := r.changes
	if full {
		// A full build derives every ID from the file's current path.
		for p := range c.Identity {
			c.Identity[p] = p
		}
		r.report.Files = FileCounts{Added: len(r.current), Deleted: len(c.Deleted)}
	} else {
		r.report.Files = FileCounts{
			Unchanged: len(c.Unchanged),
			Added:     len(c.Added),
			Modified:  len(c.Modified),
			Deleted:   len(c.Deleted),
			Renamed:   len(c.Renamed),
		}
	}
	fc := r.report.Files
	metrics.AddFiles("unchanged", fc.Unchanged)
	metrics.AddFiles("added", fc.Added)
	metrics.AddFiles("modified", fc.Modified)
	metrics.AddFiles("deleted", fc.Deleted)
	metrics.AddFiles("renamed", fc.Renamed)
	slog.Info("incremental.classify",
		"run", r.report.RunID,
		"mode", r.report.Mode,
		"unchanged", fc.Unchanged,
		"added", fc.Added,
		"modified", fc.Modified,
		"deleted", fc.Deleted,
		"renamed", fc.Renamed,
	)
	return nil
}

// loadPrevious returns the recorded state of the store at generation base.
// The local copy is used when it is current; otherwise the state is read
// back from the store.
func (r *run) loadPrevious(base int64) (*meta.State, error) {
	if base == 0 {
		return nil, nil
	}
	if r.e.Meta != nil {
		st, err := r.e.Meta.Load()
		switch {
		case err != nil:
			slog.Warn("meta.load.err", "err", err)
		case st != nil && st.Generation == base:
			return st, nil
		default:
			slog.Info("meta.stale", "store_generation", base)
		}
	}

	m, err := r.e.Store.Meta()
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, nil
	}
	files, err := r.e.Store.Files()
	if err != nil {
		return nil, err
	}
	st := &meta.State{
		SchemaVersion: m.SchemaVersion,
		Commit:        m.Commit,
		Generation:    m.Generation,
		Languages:     m.Languages,
		IndexedAt:     m.IndexedAt,
		Files:         make(map[string]meta.FileState, len(files)),
	}
	for _, f := range files {
		st.Files[f.Path] = meta.FileState{Fingerprint: f.Fingerprint, IdentityPath: f.IdentityPath, Language: f.Language}
	}
	return st, nil
}

func (r *run) openRepo(ctx context.Context) {
	repo, err := gitdiff.Open(ctx, r.e.RepoPath)
	if err != nil {
		slog.Debug("git.unavailable", "path", r.e.RepoPath, "err", err)
		return
	}
	r.repo = repo
	head, err := repo.HEAD(ctx)
	if err != nil {
		slog.Debug("git.no_head", "err", err)
		return
	}
	r.head = head
	r.report.Commit = head
}

// effectiveLanguages picks the language filter: explicit options first, the
// recorded set on updates, everything otherwise.
func (r *run) effectiveLanguages() []lang.Language {
	if len(r.opts.Languages) > 0 {
		return r.opts.Languages
	}
	if r.opts.Full || r.prev == nil || len(r.prev.Languages) == 0 {
		return nil
	}
	known, unknown := lang.ParseLanguages(strings.Join(r.prev.Languages, ","))
	if len(unknown) > 0 {
		slog.Warn("meta.languages.unknown", "languages", unknown)
	}
	return known
}

// listFiles lists the working tree from git when possible, else by walking.
func (r *run) listFiles(ctx context.Context) ([]discover.FileInfo, error) {
	opts := &discover.Options{Ignore: r.e.Ignore, Languages: r.langs}
	if r.repo != nil {
		rels, err := r.repo.ListFiles(ctx)
		if err == nil {
			return discover.Filter(r.e.RepoPath, rels, opts), nil
		}
		slog.Warn("git.ls_files.err", "err", err)
	}
	return discover.Discover(ctx, r.e.RepoPath, opts)
}

// chooseMode decides between a full rebuild and an incremental update. For
// updates based on a commit it returns the rename pairs git reports (new
// path to old path) and, with --since, the paths to treat as modified.
func (r *run) chooseMode(ctx context.Context) (map[string]string, map[string]bool) {
	switch {
	case r.opts.Full:
		r.report.Mode = ModeFull
		return nil, nil
	case r.prev == nil:
		r.fallback("no previous index")
		return nil, nil
	case r.prev.SchemaVersion != store.SchemaVersion:
		r.fallback(fmt.Sprintf("schema version %d, want %d", r.prev.SchemaVersion, store.SchemaVersion))
		return nil, nil
	}

	base := r.prev.Commit
	if r.opts.Since != "" {
		if r.repo == nil {
			r.unavailable(r.opts.Since, errors.New("not a git repository"))
			return nil, nil
		}
		sha, err := r.repo.ResolveRef(ctx, r.opts.Since)
		if err != nil {
			r.unavailable(r.opts.Since, err)
			return nil, nil
		}
		base = sha
	}
	if base == "" {
		// Indexed without history; fingerprints alone drive the update.
		return nil, nil
	}
	if r.repo == nil || r.head == "" {
		r.unavailable(base, errors.New("no git history"))
		return nil, nil
	}
	ok, err := r.repo.IsAncestor(ctx, base, r.head)
	if err != nil {
		r.unavailable(base, err)
		return nil, nil
	}
	if !ok {
		r.unavailable(base, fmt.Errorf("not an ancestor of HEAD %s", r.head))
		return nil, nil
	}
	r.report.BaseCommit = base

	changes, err := r.repo.DiffNameStatus(ctx, base)
	if err != nil {
		slog.Warn("git.diff.err", "base", base, "err", err)
		return nil, nil
	}
	renames := make(map[string]string)
	forced := make(map[string]bool)
	for _, c := range changes {
		if c.Status == gitdiff.Renamed {
			renames[c.Path] = c.OldPath
		}
		if r.opts.Since != "" && c.Status != gitdiff.Deleted {
			forced[c.Path] = true
		}
	}
	return renames, forced
}

func (r *run) unavailable(commit string, err error) {
	r.warn(diag.New(diag.DiffUnavailable, err).WithCommit(commit))
	r.fallback("diff unavailable: " + err.Error())
}

// classify compares the working tree with the recorded file states.
// renames holds candidate pairs (new path to old path); a pair counts only
// when the content is identical. forced paths are modified even when their
// fingerprint matches. With pairContent, a deleted and an added file that
// uniquely share a fingerprint are also taken as a rename.
func classify(prev map[string]meta.FileState, cur map[string]*sourceFile, renames map[string]string, forced map[string]bool, pairContent bool) *changeSet {
	added := make(map[string]bool)
	modified := make(map[string]bool)
	unchanged := make(map[string]bool)
	deleted := make(map[string]bool)
	for p, f := range cur {
		st, ok := prev[p]
		switch {
		case !ok:
			added[p] = true
		case st.Fingerprint == f.Fingerprint && !forced[p]:
			unchanged[p] = true
		default:
			modified[p] = true
		}
	}
	for p := range prev {
		if _, ok := cur[p]; !ok {
			deleted[p] = true
		}
	}

	renamed := make(map[string]string)
	pair := func(newPath, oldPath string) {
		delete(added, newPath)
		delete(deleted, oldPath)
		renamed[newPath] = oldPath
	}
	sameContent := func(newPath, oldPath string) bool {
		return cur[newPath].Fingerprint == prev[oldPath].Fingerprint &&
			string(cur[newPath].Language) == prev[oldPath].Language
	}
	for _, n := range sortedKeys(renames) {
		o := renames[n]
		if added[n] && deleted[o] && sameContent(n, o) {
			pair(n, o)
		}
	}
	if pairContent {
		news := make(map[string][]string)
		for p := range added {
			k := cur[p].Fingerprint + "/" + string(cur[p].Language)
			news[k] = append(news[k], p)
		}
		olds := make(map[string][]string)
		for p := range deleted {
			k := prev[p].Fingerprint + "/" + prev[p].Language
			olds[k] = append(olds[k], p)
		}
		for _, k := range sortedKeys(news) {
			if len(news[k]) == 1 && len(olds[k]) == 1 {
				pair(news[k][0], olds[k][0])
			}
		}
	}

	identity := make(map[string]string, len(cur))
	recorded := func(p string) string {
		if id := prev[p].IdentityPath; id != "" {
			return id
		}
		return p
	}
	for p := range cur {
		switch {
		case added[p]:
			identity[p] = p
		case renamed[p] != "":
			identity[p] = recorded(renamed[p])
		default:
			identity[p] = recorded(p)
		}
	}

	// Two files must never derive IDs from the same identity path. The file
	// living at that path keeps it; every other holder falls back to its own
	// path and is reparsed.
	for {
		owners := make(map[string][]string)
		for p, id := range identity {
			owners[id] = append(owners[id], p)
		}
		reset := false
		for _, id := range sortedKeys(owners) {
			ps := owners[id]
			if len(ps) < 2 {
				continue
			}
			sort.Strings(ps)
			keeper := ps[0]
			if slices.Contains(ps, id) {
				keeper = id
			}
			for _, p := range ps {
				if p == keeper {
					continue
				}
				if o, ok := renamed[p]; ok {
					delete(renamed, p)
					added[p] = true
					deleted[o] = true
				} else if unchanged[p] {
					delete(unchanged, p)
					modified[p] = true
				}
				identity[p] = p
				reset = true
			}
		}
		if !reset {
			break
		}
	}

	return &changeSet{
		Unchanged: sortedKeys(unchanged),
		Added:     sortedKeys(added),
		Modified:  sortedKeys(modified),
		Deleted:   sortedKeys(deleted),
		Renamed:   renamed,
		Identity:  identity,
	}
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
