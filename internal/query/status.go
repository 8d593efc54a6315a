package query

import (
	"context"
	"fmt"

	"github.com/DeusData/codegraph/internal/graph"
	"github.com/DeusData/codegraph/internal/store"
)

// StatusStore is the part of the store a status report reads.
type StatusStore interface {
	Meta() (*store.MetaRecord, error)
	CountFiles() (int, error)
	CountSymbols() (int, error)
	CountEdges() (int, error)
	ConfidenceBreakdown() (map[graph.Confidence]int, error)
	LanguageBreakdown() ([]store.LanguageCount, error)
	Files() ([]*graph.FileRecord, error)
}

var _ StatusStore = (*store.Store)(nil)

// FileStatus is one indexed file in a status report.
type FileStatus struct {
	Path     string `json:"path"`
	Language string `json:"language"`
	Lines    int    `json:"lines"`
}

// StatusInfo summarises the committed graph.
type StatusInfo struct {
	Indexed       bool                     `json:"indexed"`
	Commit        string                   `json:"commit,omitempty"`
	SchemaVersion int                      `json:"schema_version"`
	Generation    int64                    `json:"generation"`
	IndexedAt     string                   `json:"indexed_at,omitempty"`
	Languages     []string                 `json:"languages,omitempty"`
	Files         int                      `json:"files"`
	Symbols       int                      `json:"symbols"`
	Edges         int                      `json:"edges"`
	Confidence    map[graph.Confidence]int `json:"confidence"`
	ByLanguage    []store.LanguageCount    `json:"by_language"`
	FileList      []FileStatus             `json:"file_list,omitempty"`
}

// Status reads the committed metadata and counts from one read transaction,
// so a concurrent commit never mixes two generations into the report.
// withFiles adds the list of indexed files.
func Status(ctx context.Context, s *store.Store, withFiles bool) (*StatusInfo, error) {
	var info *StatusInfo
	err := s.ReadSnapshot(ctx, func(snap *store.Store) error {
		var err error
		info, err = readStatus(ctx, snap, withFiles)
		return err
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

func readStatus(ctx context.Context, s StatusStore, withFiles bool) (info *StatusInfo, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m, err := s.Meta()
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	info = &StatusInfo{Confidence: map[graph.Confidence]int{}}
	if m == nil {
		return info, nil
	}
	info.Indexed = true
	info.Commit = m.Commit
	info.SchemaVersion = m.SchemaVersion
	info.Generation = m.Generation
	info.IndexedAt = m.IndexedAt
	info.Languages = m.Languages

	if info.Files, err = s.CountFiles(); err != nil {
		return nil, fmt.Errorf("count files: %w", err)
	}
	if info.Symbols, err = s.CountSymbols(); err != nil {
		return nil, fmt.Errorf("count symbols: %w", err)
	}
	if info.Edges, err = s.CountEdges(); err != nil {
		return nil, fmt.Errorf("count edges: %w", err)
	}
	if info.Confidence, err = s.ConfidenceBreakdown(); err != nil {
		return nil, err
	}
	if info.ByLanguage, err = s.LanguageBreakdown(); err != nil {
		return nil, err
	}
	if withFiles {
		files, err := s.Files()
		if err != nil {
			return nil, fmt.Errorf("list files: %w", err)
		}
		for _, f := range files {
			info.FileList = append(info.FileList, FileStatus{Path: f.Path, Language: f.Language, Lines: f.LineCount})
		}
	}
	return info, nil
}
