package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/DeusData/codegraph/internal/graph"
)

const symbolCols = `id, kind, name, qualified_name, file_path, language, start_byte, end_byte,
	start_line, end_line, fingerprint, signature, visibility, docstring, parent_id`

// Formula-derived batch size: SQLite has a 999 bind variable limit.
const numSymbolCols = 15
const symbolsBatchSize = 999 / numSymbolCols // = 66

// UpsertSymbolBatch inserts or updates symbols in batched multi-row INSERTs.
// Upserting the same symbol twice leaves one row.
func (s *Store) UpsertSymbolBatch(symbols []*graph.Symbol) error {
	for i := 0; i < len(symbols); i += symbolsBatchSize {
		end := min(i+symbolsBatchSize, len(symbols))
		if err := s.upsertSymbolChunk(symbols[i:end]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) upsertSymbolChunk(batch []*graph.Symbol) error {
	var sb strings.Builder
	sb.WriteString(`INSERT INTO symbols (` + symbolCols + `) VALUES `)

	args := make([]any, 0, len(batch)*numSymbolCols)
	for i, n := range batch {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString("(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)")
		args = append(args, n.ID, string(n.Kind), n.Name, n.QualifiedName, n.Path, n.Language,
			n.Span.StartByte, n.Span.EndByte, n.Span.StartLine, n.Span.EndLine,
			n.Fingerprint, n.Signature, n.Visibility, n.Docstring, n.ParentID)
	}
	sb.WriteString(` ON CONFLICT(id) DO UPDATE SET
		kind=excluded.kind, name=excluded.name, qualified_name=excluded.qualified_name,
		file_path=excluded.file_path, language=excluded.language,
		start_byte=excluded.start_byte, end_byte=excluded.end_byte,
		start_line=excluded.start_line, end_line=excluded.end_line,
		fingerprint=excluded.fingerprint, signature=excluded.signature,
		visibility=excluded.visibility, docstring=excluded.docstring, parent_id=excluded.parent_id`)

	if _, err := s.q.Exec(sb.String(), args...); err != nil {
		return fmt.Errorf("upsert symbol batch: %w", err)
	}
	return nil
}

// DeleteSymbols removes symbols by ID.
func (s *Store) DeleteSymbols(ids []string) error {
	for _, chunk := range chunks(ids, maxVars) {
		q := fmt.Sprintf("DELETE FROM symbols WHERE id IN (%s)", placeholders(len(chunk)))
		if _, err := s.q.Exec(q, toArgs(chunk)...); err != nil {
			return fmt.Errorf("delete symbols: %w", err)
		}
	}
	return nil
}

// FindSymbolByID finds a symbol by ID. A missing symbol is (nil, nil).
func (s *Store) FindSymbolByID(id string) (*graph.Symbol, error) {
	row := s.q.QueryRow(`SELECT `+symbolCols+` FROM symbols WHERE id=?`, id)
	return scanSymbol(row)
}

// FindSymbolsByQN finds symbols by qualified name, ordered by path and span.
func (s *Store) FindSymbolsByQN(qualifiedName string) ([]*graph.Symbol, error) {
	return s.querySymbols(`SELECT `+symbolCols+` FROM symbols WHERE qualified_name=?
		ORDER BY file_path, start_byte, id`, qualifiedName)
}

// FindSymbolsByName finds symbols by simple name, ordered by path and span.
func (s *Store) FindSymbolsByName(name string) ([]*graph.Symbol, error) {
	return s.querySymbols(`SELECT `+symbolCols+` FROM symbols WHERE name=?
		ORDER BY file_path, start_byte, id`, name)
}

// FindSymbolsByKind finds all symbols of a kind.
func (s *Store) FindSymbolsByKind(kind graph.Kind) ([]*graph.Symbol, error) {
	return s.querySymbols(`SELECT `+symbolCols+` FROM symbols WHERE kind=?
		ORDER BY file_path, start_byte, id`, string(kind))
}

// AllSymbols returns every symbol, ordered by path and span.
func (s *Store) AllSymbols() ([]*graph.Symbol, error) {
	return s.querySymbols(`SELECT ` + symbolCols + ` FROM symbols ORDER BY file_path, start_byte, id`)
}

// SymbolsByFiles returns the symbols declared in the given files.
func (s *Store) SymbolsByFiles(paths []string) ([]*graph.Symbol, error) {
	var out []*graph.Symbol
	for _, chunk := range chunks(paths, maxVars) {
		found, err := s.querySymbols(fmt.Sprintf(`SELECT `+symbolCols+` FROM symbols
			WHERE file_path IN (%s) ORDER BY file_path, start_byte, id`, placeholders(len(chunk))), toArgs(chunk)...)
		if err != nil {
			return nil, err
		}
		out = append(out, found...)
	}
	return out, nil
}

// FindSymbolsByIDs returns a map of ID to symbol for the given IDs.
func (s *Store) FindSymbolsByIDs(ids []string) (map[string]*graph.Symbol, error) {
	result := make(map[string]*graph.Symbol, len(ids))
	for _, chunk := range chunks(ids, maxVars) {
		found, err := s.querySymbols(fmt.Sprintf(`SELECT `+symbolCols+` FROM symbols WHERE id IN (%s)`,
			placeholders(len(chunk))), toArgs(chunk)...)
		if err != nil {
			return nil, err
		}
		for _, n := range found {
			result[n.ID] = n
		}
	}
	return result, nil
}

// CountSymbols returns the number of symbols.
func (s *Store) CountSymbols() (int, error) {
	var count int
	err := s.q.QueryRow("SELECT COUNT(*) FROM symbols").Scan(&count)
	return count, err
}

func (s *Store) querySymbols(query string, args ...any) ([]*graph.Symbol, error) {
	rows, err := s.q.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query symbols: %w", err)
	}
	defer rows.Close()
	var result []*graph.Symbol
	for rows.Next() {
		n, err := scanSymbol(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSymbol(row scanner) (*graph.Symbol, error) {
	var n graph.Symbol
	var kind string
	err := row.Scan(&n.ID, &kind, &n.Name, &n.QualifiedName, &n.Path, &n.Language,
		&n.Span.StartByte, &n.Span.EndByte, &n.Span.StartLine, &n.Span.EndLine,
		&n.Fingerprint, &n.Signature, &n.Visibility, &n.Docstring, &n.ParentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	n.Kind = graph.Kind(kind)
	return &n, nil
}
