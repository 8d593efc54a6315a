package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/DeusData/codegraph/internal/diag"
	"github.com/DeusData/codegraph/internal/graph"
)

// ErrGenerationConflict means another writer committed since the run read
// the store.
var ErrGenerationConflict = errors.New("generation conflict")

// Commit applies d and m in one transaction. m.Generation must be exactly one
// past the committed generation; otherwise nothing is written and the error
// wraps ErrGenerationConflict. Every failure is a StoreCommitFailure and
// leaves the store as it was.
func (s *Store) Commit(ctx context.Context, d *graph.Delta, m *MetaRecord) error {
	t := time.Now()
	err := s.WithTransaction(ctx, func(tx *Store) error {
		cur, err := tx.Generation()
		if err != nil {
			return err
		}
		if cur != m.Generation-1 {
			return fmt.Errorf("%w: store at %d, run based on %d", ErrGenerationConflict, cur, m.Generation-1)
		}
		return tx.apply(d, m)
	})
	if err != nil {
		return diag.New(diag.StoreCommitFailure, fmt.Errorf("commit generation %d: %w", m.Generation, err))
	}
	slog.Info("store.commit",
		"generation", m.Generation,
		"symbols_upserted", len(d.UpsertSymbols),
		"symbols_deleted", len(d.DeleteSymbols),
		"edges_upserted", len(d.UpsertEdges),
		"edges_deleted", len(d.DeleteEdges),
		"elapsed", time.Since(t),
	)
	return nil
}

// commitStages run in order inside the commit transaction. Deletes go first
// so a symbol moved between files never collides with its old row.
var commitStages = []struct {
	name string
	run  func(s *Store, d *graph.Delta, m *MetaRecord) error
}{
	{"delete_edges", func(s *Store, d *graph.Delta, _ *MetaRecord) error { return s.DeleteEdges(d.DeleteEdges) }},
	{"delete_symbols", func(s *Store, d *graph.Delta, _ *MetaRecord) error { return s.DeleteSymbols(d.DeleteSymbols) }},
	{"delete_files", func(s *Store, d *graph.Delta, _ *MetaRecord) error { return s.DeleteFiles(d.DeleteFiles) }},
	{"upsert_symbols", func(s *Store, d *graph.Delta, _ *MetaRecord) error { return s.UpsertSymbolBatch(d.UpsertSymbols) }},
	{"upsert_edges", func(s *Store, d *graph.Delta, _ *MetaRecord) error { return s.UpsertEdgeBatch(d.UpsertEdges) }},
	{"upsert_files", func(s *Store, d *graph.Delta, _ *MetaRecord) error { return s.UpsertFiles(d.UpsertFiles) }},
	{"meta", func(s *Store, _ *graph.Delta, m *MetaRecord) error { return s.writeMeta(m) }},
}

// stageHook, when set, runs before each commit stage. Tests use it to fail a
// commit half way through.
var stageHook func(stage string) error

func (s *Store) apply(d *graph.Delta, m *MetaRecord) error {
	for _, st := range commitStages {
		if stageHook != nil {
			if err := stageHook(st.name); err != nil {
				return err
			}
		}
		if err := st.run(s, d, m); err != nil {
			return fmt.Errorf("%s: %w", st.name, err)
		}
	}
	return nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
