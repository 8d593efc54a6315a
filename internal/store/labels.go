package store

import (
	"strings"

	"github.com/DeusData/codegraph/internal/graph"
)

// Label renders a symbol kind as a graph label ("function" -> "Function").
func Label(kind string) string {
	if kind == "" {
		return ""
	}
	return strings.ToUpper(kind[:1]) + kind[1:]
}

// RelType renders an edge kind as a relationship type ("calls" -> "CALLS").
func RelType(kind string) string {
	return strings.ToUpper(kind)
}

// KindForLabel maps a label back to a symbol kind, case-insensitively.
func KindForLabel(label string) (graph.Kind, bool) {
	k := graph.Kind(strings.ToLower(label))
	for _, known := range graph.AllKinds() {
		if k == known {
			return k, true
		}
	}
	return "", false
}

// EdgeKindForType maps a relationship type back to an edge kind.
func EdgeKindForType(relType string) (graph.EdgeKind, bool) {
	k := graph.EdgeKind(strings.ToLower(relType))
	for _, known := range graph.AllEdgeKinds() {
		if k == known {
			return k, true
		}
	}
	return "", false
}
