package graph

import (
	"fmt"
	"sort"
	"strings"
)

// Canonical renders a graph as sorted lines that do not depend on symbol IDs.
// Two graphs describing the same code produce the same lines even when one of
// them carried identity paths forward across renames.
func Canonical(symbols []*Symbol, edges []*Edge) []string {
	byID := make(map[string]*Symbol, len(symbols))
	for _, s := range symbols {
		byID[s.ID] = s
	}
	key := func(id string) string {
		s, ok := byID[id]
		if !ok {
			return "!missing:" + id
		}
		return fmt.Sprintf("%s:%s:%s", s.Path, s.QualifiedName, s.Kind)
	}

	lines := make([]string, 0, len(symbols)+len(edges))
	for _, s := range symbols {
		lines = append(lines, fmt.Sprintf("N %s %d-%d %s", key(s.ID),
			s.Span.StartByte, s.Span.EndByte, s.Fingerprint))
	}
	for _, e := range edges {
		var target string
		switch e.Confidence {
		case Resolved:
			target = key(e.TargetID)
		case Ambiguous:
			cands := make([]string, len(e.Candidates))
			for i, c := range e.Candidates {
				cands[i] = key(c)
			}
			sort.Strings(cands)
			target = "{" + strings.Join(cands, ",") + "}"
		default:
			target = "?" + e.TargetName
		}
		lines = append(lines, fmt.Sprintf("E %s %s -> %s %s", e.Kind, key(e.SourceID), target, e.Confidence))
	}
	sort.Strings(lines)
	return lines
}
