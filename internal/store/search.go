package store

import (
	"fmt"
	"strings"

	"github.com/DeusData/codegraph/internal/graph"
)

// SearchParams defines structured search parameters.
type SearchParams struct {
	// NamePattern is a case-sensitive glob: * matches any run, ? one
	// character. A pattern containing a dot matches qualified names.
	NamePattern string
	Kinds       []graph.Kind
	Languages   []string
	FilePattern string
	// Limit 0 means no limit.
	Limit int
}

// SearchSymbols runs a glob search ordered by path, then span.
func (s *Store) SearchSymbols(params SearchParams) ([]*graph.Symbol, error) {
	var conditions []string
	var args []any

	if params.NamePattern != "" {
		col := "name"
		if strings.Contains(params.NamePattern, ".") {
			col = "qualified_name"
		}
		// GLOB is case-sensitive and anchored at both ends.
		conditions = append(conditions, col+" GLOB ?")
		args = append(args, escapeGlob(params.NamePattern))
	}

	if len(params.Kinds) > 0 {
		conditions = append(conditions, fmt.Sprintf("kind IN (%s)", placeholders(len(params.Kinds))))
		for _, k := range params.Kinds {
			args = append(args, string(k))
		}
	}

	if len(params.Languages) > 0 {
		conditions = append(conditions, fmt.Sprintf("language IN (%s)", placeholders(len(params.Languages))))
		for _, l := range params.Languages {
			args = append(args, l)
		}
	}

	if params.FilePattern != "" {
		conditions = append(conditions, "file_path GLOB ?")
		args = append(args, escapeGlob(params.FilePattern))
	}

	query := `SELECT ` + symbolCols + ` FROM symbols`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY file_path, start_byte, end_byte, id"
	if params.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, params.Limit)
	}

	result, err := s.querySymbols(query, args...)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return result, nil
}

// escapeGlob keeps only * and ? special; a literal [ is bracketed.
func escapeGlob(pattern string) string {
	return strings.ReplaceAll(pattern, "[", "[[]")
}
