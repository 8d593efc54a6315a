package pipeline

import (
	"context"
	"encoding/hex"
	"io"
	"log/slog"
	"os"

	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"

	"github.com/DeusData/codegraph/internal/discover"
)

// hashFiles fingerprints files in parallel, keyed by repo-relative path.
// Files that cannot be read are left out, as if they did not exist.
func hashFiles(ctx context.Context, files []discover.FileInfo, jobs int) (map[string]*sourceFile, error) {
	results := make([]*sourceFile, len(files))
	numWorkers := min(jobs, len(files))
	if numWorkers < 1 {
		numWorkers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(numWorkers)
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			hash, err := fileHash(f.Path)
			if err != nil {
				slog.Debug("hash.skip", "path", f.RelPath, "err", err)
				return nil
			}
			results[i] = &sourceFile{FileInfo: f, Fingerprint: hash}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]*sourceFile, len(files))
	for _, f := range results {
		if f != nil {
			out[f.RelPath] = f
		}
	}
	return out, nil
}

func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := xxh3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	sum := h.Sum128().Bytes()
	return hex.EncodeToString(sum[:]), nil
}
