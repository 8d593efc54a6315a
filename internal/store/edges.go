package store

import (
	"fmt"
	"strings"

	"github.com/DeusData/codegraph/internal/graph"
)

const edgeCols = `id, kind, source_id, target_id, target_name, confidence, candidates,
	file_path, ref, scopes, lookup_key, import_key`

const numEdgeCols = 12

// edgesBatchSize is the max rows per batch INSERT for edges (12 cols × 80 = 960 vars < 999).
const edgesBatchSize = 80

// UpsertEdgeBatch inserts or updates edges in batched multi-row INSERTs.
func (s *Store) UpsertEdgeBatch(edges []*graph.Edge) error {
	for i := 0; i < len(edges); i += edgesBatchSize {
		end := min(i+edgesBatchSize, len(edges))
		if err := s.upsertEdgeChunk(edges[i:end]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) upsertEdgeChunk(batch []*graph.Edge) error {
	var sb strings.Builder
	sb.WriteString(`INSERT INTO edges (` + edgeCols + `) VALUES `)

	args := make([]any, 0, len(batch)*numEdgeCols)
	for i, e := range batch {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString("(?,?,?,?,?,?,?,?,?,?,?,?)")
		args = append(args, e.ID, string(e.Kind), e.SourceID, e.TargetID, e.TargetName,
			string(e.Confidence), marshalList(e.Candidates), e.Path, e.Ref,
			marshalList(e.Scopes), e.LookupKey, e.ImportKey)
	}
	sb.WriteString(` ON CONFLICT(id) DO UPDATE SET
		kind=excluded.kind, source_id=excluded.source_id, target_id=excluded.target_id,
		target_name=excluded.target_name, confidence=excluded.confidence,
		candidates=excluded.candidates, file_path=excluded.file_path, ref=excluded.ref,
		scopes=excluded.scopes, lookup_key=excluded.lookup_key, import_key=excluded.import_key`)

	if _, err := s.q.Exec(sb.String(), args...); err != nil {
		return fmt.Errorf("upsert edge batch: %w", err)
	}
	return nil
}

// DeleteEdges removes edges by ID.
func (s *Store) DeleteEdges(ids []string) error {
	for _, chunk := range chunks(ids, maxVars) {
		q := fmt.Sprintf("DELETE FROM edges WHERE id IN (%s)", placeholders(len(chunk)))
		if _, err := s.q.Exec(q, toArgs(chunk)...); err != nil {
			return fmt.Errorf("delete edges: %w", err)
		}
	}
	return nil
}

// FindEdgesBySource finds all edges from a given source symbol.
func (s *Store) FindEdgesBySource(sourceID string) ([]*graph.Edge, error) {
	return s.queryEdges(`SELECT `+edgeCols+` FROM edges WHERE source_id=? ORDER BY id`, sourceID)
}

// FindEdgesByTarget finds all resolved edges to a given target symbol.
func (s *Store) FindEdgesByTarget(targetID string) ([]*graph.Edge, error) {
	return s.queryEdges(`SELECT `+edgeCols+` FROM edges WHERE target_id=? ORDER BY id`, targetID)
}

// FindEdgesBySourceAndKind finds edges from a source with a specific kind.
func (s *Store) FindEdgesBySourceAndKind(sourceID string, kind graph.EdgeKind) ([]*graph.Edge, error) {
	return s.queryEdges(`SELECT `+edgeCols+` FROM edges WHERE source_id=? AND kind=? ORDER BY id`,
		sourceID, string(kind))
}

// FindEdgesByTargetAndKind finds resolved edges to a target with a specific kind.
func (s *Store) FindEdgesByTargetAndKind(targetID string, kind graph.EdgeKind) ([]*graph.Edge, error) {
	return s.queryEdges(`SELECT `+edgeCols+` FROM edges WHERE target_id=? AND kind=? ORDER BY id`,
		targetID, string(kind))
}

// FindEdgesByKind returns all edges of a kind.
func (s *Store) FindEdgesByKind(kind graph.EdgeKind) ([]*graph.Edge, error) {
	return s.queryEdges(`SELECT `+edgeCols+` FROM edges WHERE kind=? ORDER BY id`, string(kind))
}

// AllEdges returns every edge.
func (s *Store) AllEdges() ([]*graph.Edge, error) {
	return s.queryEdges(`SELECT ` + edgeCols + ` FROM edges ORDER BY id`)
}

// EdgesByFiles returns the edges extracted from the given source files.
func (s *Store) EdgesByFiles(paths []string) ([]*graph.Edge, error) {
	return s.edgesIn("file_path", paths)
}

// EdgesByLookupKeys returns the edges that a symbol named by one of keys
// could bind, under either their own name or an imported one.
func (s *Store) EdgesByLookupKeys(keys []string) ([]*graph.Edge, error) {
	var out []*graph.Edge
	for _, chunk := range chunks(keys, maxVars/2) {
		ph := placeholders(len(chunk))
		found, err := s.queryEdges(fmt.Sprintf(`SELECT `+edgeCols+` FROM edges
			WHERE lookup_key IN (%s) OR import_key IN (%s) ORDER BY id`, ph, ph),
			append(toArgs(chunk), toArgs(chunk)...)...)
		if err != nil {
			return nil, err
		}
		out = append(out, found...)
	}
	return dedupeEdges(out), nil
}

// EdgesTargeting returns edges bound to any of ids, as resolved target or
// as an ambiguous candidate.
func (s *Store) EdgesTargeting(ids []string) ([]*graph.Edge, error) {
	var out []*graph.Edge
	for _, chunk := range chunks(ids, maxVars/2) {
		ph := placeholders(len(chunk))
		args := append(toArgs(chunk), toArgs(chunk)...)
		found, err := s.queryEdges(fmt.Sprintf(`SELECT `+edgeCols+` FROM edges
			WHERE target_id IN (%s)
			OR (confidence = 'ambiguous' AND EXISTS (
				SELECT 1 FROM json_each(edges.candidates) WHERE json_each.value IN (%s)))
			ORDER BY id`, ph, ph), args...)
		if err != nil {
			return nil, err
		}
		out = append(out, found...)
	}
	return dedupeEdges(out), nil
}

func (s *Store) edgesIn(col string, keys []string) ([]*graph.Edge, error) {
	var out []*graph.Edge
	for _, chunk := range chunks(keys, maxVars) {
		found, err := s.queryEdges(fmt.Sprintf(`SELECT `+edgeCols+` FROM edges WHERE %s IN (%s) ORDER BY id`,
			col, placeholders(len(chunk))), toArgs(chunk)...)
		if err != nil {
			return nil, err
		}
		out = append(out, found...)
	}
	return out, nil
}

// CountEdges returns the number of edges.
func (s *Store) CountEdges() (int, error) {
	var count int
	err := s.q.QueryRow("SELECT COUNT(*) FROM edges").Scan(&count)
	return count, err
}

// ConfidenceBreakdown counts non-contains edges per confidence.
func (s *Store) ConfidenceBreakdown() (map[graph.Confidence]int, error) {
	rows, err := s.q.Query("SELECT confidence, COUNT(*) FROM edges WHERE kind != 'contains' GROUP BY confidence")
	if err != nil {
		return nil, fmt.Errorf("confidence breakdown: %w", err)
	}
	defer rows.Close()
	out := make(map[graph.Confidence]int)
	for rows.Next() {
		var c string
		var n int
		if err := rows.Scan(&c, &n); err != nil {
			return nil, err
		}
		out[graph.Confidence(c)] = n
	}
	return out, rows.Err()
}

func (s *Store) queryEdges(query string, args ...any) ([]*graph.Edge, error) {
	rows, err := s.q.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query edges: %w", err)
	}
	defer rows.Close()
	var result []*graph.Edge
	for rows.Next() {
		var e graph.Edge
		var kind, confidence, candidates, scopes string
		if err := rows.Scan(&e.ID, &kind, &e.SourceID, &e.TargetID, &e.TargetName, &confidence,
			&candidates, &e.Path, &e.Ref, &scopes, &e.LookupKey, &e.ImportKey); err != nil {
			return nil, err
		}
		e.Kind = graph.EdgeKind(kind)
		e.Confidence = graph.Confidence(confidence)
		e.Candidates = unmarshalList(candidates)
		e.Scopes = unmarshalList(scopes)
		result = append(result, &e)
	}
	return result, rows.Err()
}

func dedupeEdges(edges []*graph.Edge) []*graph.Edge {
	seen := make(map[string]bool, len(edges))
	out := edges[:0]
	for _, e := range edges {
		if !seen[e.ID] {
			seen[e.ID] = true
			out = append(out, e)
		}
	}
	return out
}
