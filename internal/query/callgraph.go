package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/DeusData/codegraph/internal/graph"
	"github.com/DeusData/codegraph/internal/metrics"
)

// DefaultDepth bounds a call traversal when no depth is given.
const DefaultDepth = 3

// Direction selects which side of the call relation to follow.
type Direction string

const (
	Callees Direction = "callees"
	Callers Direction = "callers"
	Both    Direction = "both"
)

// ParseDirection accepts callees, callers and both, plus the out/in
// spellings used by the graph query language.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(s) {
	case "", "callees", "out", "outbound":
		return Callees, nil
	case "callers", "in", "inbound":
		return Callers, nil
	case "both", "any":
		return Both, nil
	}
	return "", fmt.Errorf("unknown direction %q (want callees, callers or both)", s)
}

// Hop is a symbol reached by a traversal.
type Hop struct {
	Symbol *graph.Symbol
	// Depth is the number of calls between the root and Symbol.
	Depth int
	// Via is the edge that first reached Symbol.
	Via *graph.Edge
}

// CallGraph walks resolved calls edges breadth-first from rootID. Every
// symbol is reported once, at its shallowest depth. The root is reported
// only when a cycle leads back to it.
func CallGraph(ctx context.Context, s Store, rootID string, dir Direction, depth int) (hops []Hop, err error) {
	defer func() { metrics.RecordQuery("calls", err) }()
	if depth <= 0 {
		depth = DefaultDepth
	}
	root, err := s.FindSymbolByID(rootID)
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, rootID)
	}

	visited := map[string]bool{rootID: true}
	rootSeen := false
	frontier := []string{rootID}
	for d := 1; d <= depth && len(frontier) > 0; d++ {
		var next []string
		for _, id := range frontier {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			steps, err := neighbours(s, id, dir)
			if err != nil {
				return nil, err
			}
			for _, st := range steps {
				if st.other == rootID {
					if !rootSeen {
						rootSeen = true
						hops = append(hops, Hop{Symbol: root, Depth: d, Via: st.edge})
					}
					continue
				}
				if visited[st.other] {
					continue
				}
				visited[st.other] = true
				sym, err := s.FindSymbolByID(st.other)
				if err != nil {
					return nil, err
				}
				if sym == nil {
					continue
				}
				hops = append(hops, Hop{Symbol: sym, Depth: d, Via: st.edge})
				next = append(next, st.other)
			}
		}
		frontier = next
	}
	return hops, nil
}

type step struct {
	edge  *graph.Edge
	other string
}

// neighbours lists the resolved calls at id in the given direction.
func neighbours(s Store, id string, dir Direction) ([]step, error) {
	var out []step
	if dir != Callers {
		edges, err := s.FindEdgesBySourceAndKind(id, graph.Calls)
		if err != nil {
			return nil, fmt.Errorf("callees of %s: %w", id, err)
		}
		for _, e := range edges {
			if e.Confidence == graph.Resolved && e.TargetID != "" {
				out = append(out, step{edge: e, other: e.TargetID})
			}
		}
	}
	if dir != Callees {
		edges, err := s.FindEdgesByTargetAndKind(id, graph.Calls)
		if err != nil {
			return nil, fmt.Errorf("callers of %s: %w", id, err)
		}
		for _, e := range edges {
			if e.Confidence == graph.Resolved {
				out = append(out, step{edge: e, other: e.SourceID})
			}
		}
	}
	return out, nil
}
