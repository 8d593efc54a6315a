package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/DeusData/codegraph/internal/graph"
)

// UpsertFiles creates or updates file records.
func (s *Store) UpsertFiles(files []*graph.FileRecord) error {
	for _, f := range files {
		imports := "[]"
		if len(f.Imports) > 0 {
			b, err := json.Marshal(f.Imports)
			if err != nil {
				return fmt.Errorf("marshal imports %s: %w", f.Path, err)
			}
			imports = string(b)
		}
		_, err := s.q.Exec(`
			INSERT INTO files (path, identity_path, language, fingerprint, commit_sha, line_count, imports)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(path) DO UPDATE SET identity_path=excluded.identity_path,
				language=excluded.language, fingerprint=excluded.fingerprint,
				commit_sha=excluded.commit_sha, line_count=excluded.line_count, imports=excluded.imports`,
			f.Path, f.IdentityPath, f.Language, f.Fingerprint, f.Commit, f.LineCount, imports)
		if err != nil {
			return fmt.Errorf("upsert file %s: %w", f.Path, err)
		}
	}
	return nil
}

// DeleteFiles removes file records by path.
func (s *Store) DeleteFiles(paths []string) error {
	for _, chunk := range chunks(paths, maxVars) {
		q := fmt.Sprintf("DELETE FROM files WHERE path IN (%s)", placeholders(len(chunk)))
		if _, err := s.q.Exec(q, toArgs(chunk)...); err != nil {
			return fmt.Errorf("delete files: %w", err)
		}
	}
	return nil
}

const fileCols = `path, identity_path, language, fingerprint, commit_sha, line_count, imports`

// Files returns every file record ordered by path.
func (s *Store) Files() ([]*graph.FileRecord, error) {
	result, err := s.queryFiles(`SELECT ` + fileCols + ` FROM files ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	return result, nil
}

// FilesByPaths returns the records of the given paths that exist.
func (s *Store) FilesByPaths(paths []string) ([]*graph.FileRecord, error) {
	var out []*graph.FileRecord
	for _, chunk := range chunks(paths, maxVars) {
		found, err := s.queryFiles(fmt.Sprintf(`SELECT `+fileCols+` FROM files WHERE path IN (%s) ORDER BY path`,
			placeholders(len(chunk))), toArgs(chunk)...)
		if err != nil {
			return nil, fmt.Errorf("files by path: %w", err)
		}
		out = append(out, found...)
	}
	return out, nil
}

func (s *Store) queryFiles(query string, args ...any) ([]*graph.FileRecord, error) {
	rows, err := s.q.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []*graph.FileRecord
	for rows.Next() {
		var f graph.FileRecord
		var imports string
		if err := rows.Scan(&f.Path, &f.IdentityPath, &f.Language, &f.Fingerprint, &f.Commit, &f.LineCount, &imports); err != nil {
			return nil, err
		}
		if imports != "" && imports != "[]" {
			if err := json.Unmarshal([]byte(imports), &f.Imports); err != nil {
				return nil, fmt.Errorf("imports of %s: %w", f.Path, err)
			}
		}
		result = append(result, &f)
	}
	return result, rows.Err()
}

// CountFiles returns the number of indexed files.
func (s *Store) CountFiles() (int, error) {
	var count int
	err := s.q.QueryRow("SELECT COUNT(*) FROM files").Scan(&count)
	return count, err
}

// LanguageCount is a language with its file, line and symbol totals.
type LanguageCount struct {
	Language string `json:"language"`
	Files    int    `json:"files"`
	Lines    int    `json:"lines"`
	Symbols  int    `json:"symbols"`
}

// LanguageBreakdown returns per-language totals ordered by file count.
func (s *Store) LanguageBreakdown() ([]LanguageCount, error) {
	rows, err := s.q.Query(`SELECT f.language, COUNT(*), COALESCE(SUM(f.line_count), 0),
		(SELECT COUNT(*) FROM symbols n WHERE n.language = f.language)
		FROM files f GROUP BY f.language`)
	if err != nil {
		return nil, fmt.Errorf("language breakdown: %w", err)
	}
	defer rows.Close()
	var out []LanguageCount
	for rows.Next() {
		var lc LanguageCount
		if err := rows.Scan(&lc.Language, &lc.Files, &lc.Lines, &lc.Symbols); err != nil {
			return nil, err
		}
		out = append(out, lc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Files != out[j].Files {
			return out[i].Files > out[j].Files
		}
		return out[i].Language < out[j].Language
	})
	return out, nil
}

// MetaRecord is the index metadata committed with the graph.
type MetaRecord struct {
	SchemaVersion int      `json:"schema_version"`
	Commit        string   `json:"commit"`
	Generation    int64    `json:"generation"`
	Languages     []string `json:"languages,omitempty"`
	IndexedAt     string   `json:"indexed_at"`
}

// Meta returns the committed metadata, or nil for a store that was never
// committed to.
func (s *Store) Meta() (*MetaRecord, error) {
	rows, err := s.q.Query("SELECT key, value FROM meta")
	if err != nil {
		return nil, fmt.Errorf("read meta: %w", err)
	}
	defer rows.Close()
	kv := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		kv[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(kv) == 0 {
		return nil, nil
	}

	m := &MetaRecord{Commit: kv["commit"], IndexedAt: kv["indexed_at"]}
	if m.SchemaVersion, err = strconv.Atoi(kv["schema_version"]); err != nil {
		return nil, fmt.Errorf("meta schema_version: %w", err)
	}
	if m.Generation, err = strconv.ParseInt(kv["generation"], 10, 64); err != nil {
		return nil, fmt.Errorf("meta generation: %w", err)
	}
	m.Languages = unmarshalList(kv["languages"])
	return m, nil
}

// Generation returns the committed generation, 0 for an empty store.
func (s *Store) Generation() (int64, error) {
	var v string
	err := s.q.QueryRow("SELECT value FROM meta WHERE key='generation'").Scan(&v)
	if err != nil {
		if isNoRows(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read generation: %w", err)
	}
	return strconv.ParseInt(v, 10, 64)
}

func (s *Store) writeMeta(m *MetaRecord) error {
	kv := map[string]string{
		"schema_version": strconv.Itoa(m.SchemaVersion),
		"commit":         m.Commit,
		"generation":     strconv.FormatInt(m.Generation, 10),
		"languages":      marshalList(m.Languages),
		"indexed_at":     m.IndexedAt,
	}
	for k, v := range kv {
		if _, err := s.q.Exec(`INSERT INTO meta (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value=excluded.value`, k, v); err != nil {
			return fmt.Errorf("write meta %s: %w", k, err)
		}
	}
	return nil
}
