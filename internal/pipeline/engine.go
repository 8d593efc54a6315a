// Package pipeline builds and incrementally updates the code graph.
//
// A run moves through Idle, DiffComputed, Extracting, Resolving, Staged and
// Committed. Any failure moves it to Aborted; nothing reaches the store
// before Committed, so an aborted run leaves the graph as it was.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"

	"github.com/DeusData/codegraph/internal/diag"
	"github.com/DeusData/codegraph/internal/gitdiff"
	"github.com/DeusData/codegraph/internal/graph"
	"github.com/DeusData/codegraph/internal/lang"
	"github.com/DeusData/codegraph/internal/meta"
	"github.com/DeusData/codegraph/internal/metrics"
	"github.com/DeusData/codegraph/internal/resolve"
	"github.com/DeusData/codegraph/internal/store"
)

// State is a step of the update state machine.
type State string

const (
	Idle         State = "Idle"
	DiffComputed State = "DiffComputed"
	Extracting   State = "Extracting"
	Resolving    State = "Resolving"
	Staged       State = "Staged"
	Committed    State = "Committed"
	Aborted      State = "Aborted"
)

// Mode tells whether a run rebuilt everything or only the changed files.
type Mode string

const (
	ModeFull        Mode = "full"
	ModeIncremental Mode = "incremental"
)

// maxReportedAmbiguities caps the ambiguity notes carried in a Report.
const maxReportedAmbiguities = 50

// GraphStore is the part of the graph store a run reads and commits to.
// *store.Store implements it.
type GraphStore interface {
	Meta() (*store.MetaRecord, error)
	Generation() (int64, error)
	Files() ([]*graph.FileRecord, error)
	FilesByPaths(paths []string) ([]*graph.FileRecord, error)
	AllSymbols() ([]*graph.Symbol, error)
	AllEdges() ([]*graph.Edge, error)
	SymbolsByFiles(paths []string) ([]*graph.Symbol, error)
	EdgesByFiles(paths []string) ([]*graph.Edge, error)
	EdgesByLookupKeys(keys []string) ([]*graph.Edge, error)
	EdgesTargeting(ids []string) ([]*graph.Edge, error)
	Commit(ctx context.Context, d *graph.Delta, m *store.MetaRecord) error
}

var _ GraphStore = (*store.Store)(nil)

// Options controls one run.
type Options struct {
	// Full rebuilds every file regardless of recorded state.
	Full bool
	// DryRun stops at Staged and writes nothing.
	DryRun bool
	// Since replaces the recorded commit as the diff base.
	Since string
	// Languages restricts indexing. Empty reuses the recorded set, or all.
	Languages []lang.Language
	// Jobs bounds parallelism. Zero means runtime.NumCPU().
	Jobs int
}

// FileCounts counts files per change class.
type FileCounts struct {
	Unchanged int `json:"unchanged"`
	Added     int `json:"added"`
	Modified  int `json:"modified"`
	Deleted   int `json:"deleted"`
	Renamed   int `json:"renamed"`
}

// Report describes a finished run.
type Report struct {
	RunID          string           `json:"run_id"`
	State          State            `json:"state"`
	Mode           Mode             `json:"mode"`
	FallbackReason string           `json:"fallback_reason,omitempty"`
	DryRun         bool             `json:"dry_run,omitempty"`
	BaseCommit     string           `json:"base_commit,omitempty"`
	Commit         string           `json:"commit,omitempty"`
	Generation     int64            `json:"generation"`
	Files          FileCounts       `json:"files"`
	Delta          graph.DeltaStats `json:"delta"`
	Resolution     resolve.Stats    `json:"resolution"`
	Warnings       []*diag.Error    `json:"-"`
	Ambiguities    []*diag.Error    `json:"-"`
	Duration       time.Duration    `json:"duration"`

	// Changes is the staged delta, kept for dry runs and tests.
	Changes *graph.Delta `json:"-"`
}

// Engine runs builds and updates of one repository against one store.
// Runs on the same store must not overlap; the store's generation check
// rejects the second commit if they do.
type Engine struct {
	Store    GraphStore
	Meta     *meta.Store // optional local copy of the index metadata
	RepoPath string
	// Ignore holds extra .gitignore-style patterns.
	Ignore []string
}

// New creates an engine for the repository at repoPath.
func New(s GraphStore, m *meta.Store, repoPath string) *Engine {
	return &Engine{Store: s, Meta: m, RepoPath: repoPath}
}

// run is the mutable state of one Run call.
type run struct {
	e      *Engine
	opts   Options
	report *Report
	jobs   int
	start  time.Time

	base  int64
	prev  *meta.State
	repo  *gitdiff.Repo
	head  string
	langs []lang.Language

	current map[string]*sourceFile
	changes *changeSet

	results    []*fileResult
	candidates []*graph.Edge
	resolved   []*graph.Edge
	index      *resolve.NameIndex
	prevRegion *graph.Region
	nextRegion *graph.Region
	delta      *graph.Delta
}

// Run executes one build or update. The returned Report is never nil; on
// failure its State is Aborted and the error says why.
func (e *Engine) Run(ctx context.Context, opts Options) (*Report, error) {
	r := &run{
		e:      e,
		opts:   opts,
		report: &Report{RunID: uuid.NewString(), State: Idle, Mode: ModeIncremental, DryRun: opts.DryRun},
		jobs:   opts.Jobs,
		start:  time.Now(),
	}
	if r.jobs <= 0 {
		r.jobs = runtime.NumCPU()
	}
	slog.Info("pipeline.start", "run", r.report.RunID, "path", e.RepoPath, "full", opts.Full, "dry_run", opts.DryRun)

	err := r.execute(ctx)
	r.report.Duration = time.Since(r.start)
	if err != nil {
		r.report.State = Aborted
		slog.Warn("pipeline.state", "run", r.report.RunID, "state", Aborted, "err", err)
	}
	metrics.RecordRun(string(r.report.Mode), string(r.report.State), r.report.Duration)
	slog.Info("pipeline.done",
		"run", r.report.RunID,
		"state", r.report.State,
		"mode", r.report.Mode,
		"nodes_added", r.report.Delta.NodesAdded,
		"nodes_removed", r.report.Delta.NodesRemoved,
		"edges_added", r.report.Delta.EdgesAdded,
		"edges_removed", r.report.Delta.EdgesRemoved,
		"elapsed", r.report.Duration,
	)
	return r.report, err
}

func (r *run) execute(ctx context.Context) error {
	if err := r.timed(ctx, "diff", r.computeDiff); err != nil {
		return err
	}
	r.enter(DiffComputed)

	r.enter(Extracting)
	if err := r.timed(ctx, "extract", r.extract); err != nil {
		return err
	}

	r.enter(Resolving)
	if err := r.timed(ctx, "resolve", r.resolve); err != nil {
		return err
	}

	if err := r.timed(ctx, "stage", r.stage); err != nil {
		return err
	}
	r.enter(Staged)
	if r.opts.DryRun {
		return nil
	}

	if err := r.timed(ctx, "commit", r.commit); err != nil {
		return err
	}
	r.enter(Committed)
	return nil
}

// timed runs one phase, refusing to start it once ctx is done. A commit
// that went through stands even if ctx ends right after.
func (r *run) timed(ctx context.Context, phase string, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t := time.Now()
	err := fn(ctx)
	metrics.ObservePhase(phase, time.Since(t))
	slog.Info("pass.timing", "run", r.report.RunID, "pass", phase, "elapsed", time.Since(t))
	if err == nil && phase != "commit" {
		err = ctx.Err()
	}
	return err
}

func (r *run) enter(s State) {
	r.report.State = s
	slog.Info("pipeline.state", "run", r.report.RunID, "state", s, "elapsed", time.Since(r.start))
}

// warn records a non-fatal diagnostic.
func (r *run) warn(d *diag.Error) {
	r.report.Warnings = append(r.report.Warnings, d)
	metrics.RecordWarning(string(d.Kind))
	slog.Warn("pipeline.warning", "run", r.report.RunID, "kind", d.Kind, "path", d.Path, "commit", d.Commit, "err", d.Err)
}

// fallback switches the run to a full rebuild.
func (r *run) fallback(reason string) {
	r.report.Mode = ModeFull
	r.report.FallbackReason = reason
	slog.Info("pipeline.fallback", "run", r.report.RunID, "reason", reason)
}

func (r *run) commit(ctx context.Context) error {
	m := &store.MetaRecord{
		SchemaVersion: store.SchemaVersion,
		Commit:        r.head,
		Generation:    r.base + 1,
		Languages:     languageNames(r.langs),
		IndexedAt:     store.Now(),
	}
	if err := r.e.Store.Commit(ctx, r.delta, m); err != nil {
		if !diag.Is(err, diag.StoreCommitFailure) && !errors.Is(err, context.Canceled) {
			err = diag.New(diag.StoreCommitFailure, err)
		}
		return err
	}
	r.report.Generation = m.Generation
	r.saveMeta(m)
	return nil
}

// saveMeta refreshes the local metadata copy. The store already holds the
// committed state, so a failure here only costs the next run a files scan.
func (r *run) saveMeta(m *store.MetaRecord) {
	if r.e.Meta == nil {
		return
	}
	st := &meta.State{
		SchemaVersion: m.SchemaVersion,
		Commit:        m.Commit,
		Generation:    m.Generation,
		Languages:     m.Languages,
		IndexedAt:     m.IndexedAt,
		Files:         r.nextFileStates(),
	}
	if err := r.e.Meta.Save(st); err != nil {
		slog.Warn("meta.save.err", "run", r.report.RunID, "err", fmt.Errorf("generation %d: %w", m.Generation, err))
	}
}

func languageNames(langs []lang.Language) []string {
	out := make([]string, 0, len(langs))
	for _, l := range langs {
		out = append(out, string(l))
	}
	return out
}
