package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/DeusData/codegraph/internal/diag"
	"github.com/DeusData/codegraph/internal/extract"
	"github.com/DeusData/codegraph/internal/lang"
	"github.com/DeusData/codegraph/internal/parser"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// fileResult is the extraction output of one file. A file that could not
// be parsed still yields an empty result so its record is kept.
type fileResult struct {
	file     *sourceFile
	identity string
	result   *extract.Result
	warning  *diag.Error
}

// extract parses and extracts the files that need it, in parallel.
func (r *run) extract(ctx context.Context) error {
	paths := r.changes.reparse()
	if r.report.Mode == ModeFull {
		paths = sortedKeys(r.current)
	}

	results := make([]*fileResult, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.jobs)
	for i, p := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = extractFile(r.current[p], r.changes.Identity[p])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	symbols := 0
	for _, fr := range results {
		if fr.warning != nil {
			r.warn(fr.warning)
		}
		symbols += len(fr.result.Symbols)
	}
	r.results = results
	slog.Info("pipeline.extracted", "run", r.report.RunID, "files", len(results), "symbols", symbols)
	return nil
}

func extractFile(f *sourceFile, identity string) *fileResult {
	fr := &fileResult{
		file:     f,
		identity: identity,
		result:   &extract.Result{Path: f.RelPath, Language: f.Language},
	}

	source, err := os.ReadFile(f.Path)
	if err != nil {
		fr.warning = diag.New(diag.ParseFailure, fmt.Errorf("read: %w", err)).WithPath(f.RelPath)
		return fr
	}
	source = bytes.TrimPrefix(source, utf8BOM)

	spec := lang.ForPath(f.RelPath)
	if spec == nil {
		fr.warning = diag.Newf(diag.UnsupportedLanguage, "no grammar for %s", f.Language).WithPath(f.RelPath)
		return fr
	}
	tree, err := parser.Parse(spec, source)
	if err != nil {
		var de *diag.Error
		if errors.As(err, &de) {
			fr.warning = de.WithPath(f.RelPath)
		} else {
			fr.warning = diag.New(diag.ParseFailure, err).WithPath(f.RelPath)
		}
		return fr
	}
	defer tree.Close()

	if tree.HasErrors() {
		fr.warning = diag.Newf(diag.ParseFailure, "syntax errors, extraction is partial").WithPath(f.RelPath)
	}
	fr.result = extract.File(extract.Input{Path: f.RelPath, IdentityPath: identity, Tree: tree})
	return fr
}
