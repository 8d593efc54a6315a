package store

import (
	"fmt"
	"sort"
)

// SchemaInfo contains graph schema statistics.
type SchemaInfo struct {
	NodeLabels           []LabelCount `json:"node_labels"`
	RelationshipTypes    []TypeCount  `json:"relationship_types"`
	RelationshipPatterns []string     `json:"relationship_patterns"`
	SampleFunctionNames  []string     `json:"sample_function_names"`
	SampleClassNames     []string     `json:"sample_class_names"`
	SampleQualifiedNames []string     `json:"sample_qualified_names"`
}

// LabelCount is a symbol kind with its count.
type LabelCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// TypeCount is an edge kind with its count.
type TypeCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// GetSchema returns graph schema statistics.
func (s *Store) GetSchema() (*SchemaInfo, error) {
	info := &SchemaInfo{}

	var err error
	if info.NodeLabels, err = s.countBy("SELECT kind, COUNT(*) AS cnt FROM symbols GROUP BY kind ORDER BY cnt DESC, kind"); err != nil {
		return nil, fmt.Errorf("schema kinds: %w", err)
	}
	types, err := s.countBy("SELECT kind, COUNT(*) AS cnt FROM edges GROUP BY kind ORDER BY cnt DESC, kind")
	if err != nil {
		return nil, fmt.Errorf("schema edge kinds: %w", err)
	}
	for _, t := range types {
		info.RelationshipTypes = append(info.RelationshipTypes, TypeCount{Type: t.Label, Count: t.Count})
	}
	if info.RelationshipPatterns, err = s.schemaRelPatterns(); err != nil {
		return nil, err
	}
	if info.SampleFunctionNames, err = s.sampleStrings("SELECT name FROM symbols WHERE kind='function' ORDER BY name LIMIT 30"); err != nil {
		return nil, err
	}
	if info.SampleClassNames, err = s.sampleStrings("SELECT name FROM symbols WHERE kind IN ('class','struct') ORDER BY name LIMIT 20"); err != nil {
		return nil, err
	}
	if info.SampleQualifiedNames, err = s.sampleStrings("SELECT qualified_name FROM symbols WHERE qualified_name LIKE '%.%' ORDER BY qualified_name LIMIT 5"); err != nil {
		return nil, err
	}
	return info, nil
}

func (s *Store) countBy(query string) ([]LabelCount, error) {
	rows, err := s.q.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []LabelCount
	for rows.Next() {
		var lc LabelCount
		if err := rows.Scan(&lc.Label, &lc.Count); err != nil {
			return nil, err
		}
		out = append(out, lc)
	}
	return out, rows.Err()
}

// schemaRelPatterns builds (:kind)-[:EDGE]->(:kind) patterns from resolved
// edges with a single join.
func (s *Store) schemaRelPatterns() ([]string, error) {
	rows, err := s.q.Query(`
		SELECT a.kind, e.kind, b.kind, COUNT(*) AS cnt
		FROM edges e
		JOIN symbols a ON a.id = e.source_id
		JOIN symbols b ON b.id = e.target_id
		GROUP BY a.kind, e.kind, b.kind`)
	if err != nil {
		return nil, fmt.Errorf("schema patterns: %w", err)
	}
	defer rows.Close()

	type patternEntry struct {
		src, rel, tgt string
		cnt           int
	}
	var entries []patternEntry
	for rows.Next() {
		var p patternEntry
		if err := rows.Scan(&p.src, &p.rel, &p.tgt, &p.cnt); err != nil {
			return nil, err
		}
		entries = append(entries, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].cnt > entries[j].cnt })
	if len(entries) > 25 {
		entries = entries[:25]
	}
	patterns := make([]string, 0, len(entries))
	for _, e := range entries {
		patterns = append(patterns, fmt.Sprintf("(:%s)-[:%s]->(:%s)  [%dx]", Label(e.src), RelType(e.rel), Label(e.tgt), e.cnt))
	}
	return patterns, nil
}

func (s *Store) sampleStrings(query string) ([]string, error) {
	rows, err := s.q.Query(query)
	if err != nil {
		return nil, fmt.Errorf("schema sample: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
