package store

import "github.com/DeusData/codegraph/internal/graph"

// TraverseResult holds BFS traversal results.
type TraverseResult struct {
	Root    *graph.Symbol
	Visited []*NodeHop
	Edges   []EdgeInfo
}

// NodeHop is a symbol with its BFS hop distance.
type NodeHop struct {
	Symbol *graph.Symbol
	Hop    int
	// Via is the edge that first reached the symbol.
	Via *graph.Edge
}

// EdgeInfo is a simplified edge for output.
type EdgeInfo struct {
	FromName string
	ToName   string
	Kind     graph.EdgeKind
}

// Direction selects which end of an edge BFS follows.
type Direction string

const (
	Outbound Direction = "outbound"
	Inbound  Direction = "inbound"
	Both     Direction = "both"
)

type bfsQueue struct {
	id  string
	hop int
}

// fetchEdgesForNode retrieves resolved edges at a symbol in the given
// direction, optionally restricted to kinds.
func (s *Store) fetchEdgesForNode(id string, direction Direction, kinds []graph.EdgeKind) ([]*graph.Edge, error) {
	var edges []*graph.Edge
	fetch := func(out bool) error {
		if len(kinds) == 0 {
			var found []*graph.Edge
			var err error
			if out {
				found, err = s.FindEdgesBySource(id)
			} else {
				found, err = s.FindEdgesByTarget(id)
			}
			edges = append(edges, found...)
			return err
		}
		for _, k := range kinds {
			var found []*graph.Edge
			var err error
			if out {
				found, err = s.FindEdgesBySourceAndKind(id, k)
			} else {
				found, err = s.FindEdgesByTargetAndKind(id, k)
			}
			if err != nil {
				return err
			}
			edges = append(edges, found...)
		}
		return nil
	}
	if direction != Inbound {
		if err := fetch(true); err != nil {
			return nil, err
		}
	}
	if direction != Outbound {
		if err := fetch(false); err != nil {
			return nil, err
		}
	}
	resolved := edges[:0]
	for _, e := range edges {
		if e.Confidence == graph.Resolved && e.TargetID != "" {
			resolved = append(resolved, e)
		}
	}
	return resolved, nil
}

// BFS performs breadth-first traversal following resolved edges of the given
// kinds. Each symbol is visited once, at its shallowest hop; the start symbol
// is never reported. maxDepth caps the depth, maxResults the visited count.
func (s *Store) BFS(startID string, direction Direction, kinds []graph.EdgeKind, maxDepth, maxResults int) (*TraverseResult, error) {
	if maxDepth <= 0 {
		maxDepth = 3
	}
	if maxResults <= 0 {
		maxResults = 200
	}

	root, err := s.FindSymbolByID(startID)
	if err != nil {
		return nil, err
	}
	result := &TraverseResult{Root: root}
	visited := map[string]int{startID: 0}
	cache := make(map[string]*graph.Symbol)
	if root != nil {
		cache[startID] = root
	}

	queue := []bfsQueue{{startID, 0}}
	for len(queue) > 0 && len(result.Visited) < maxResults {
		item := queue[0]
		queue = queue[1:]
		if item.hop >= maxDepth {
			continue
		}

		edges, err := s.fetchEdgesForNode(item.id, direction, kinds)
		if err != nil {
			return nil, err
		}
		for _, e := range edges {
			next := e.TargetID
			if next == item.id {
				next = e.SourceID
			}
			if _, seen := visited[next]; !seen {
				visited[next] = item.hop + 1
				sym, err := s.lookup(cache, next)
				if err != nil {
					return nil, err
				}
				if sym == nil {
					continue
				}
				result.Visited = append(result.Visited, &NodeHop{Symbol: sym, Hop: item.hop + 1, Via: e})
				queue = append(queue, bfsQueue{next, item.hop + 1})
				if len(result.Visited) >= maxResults {
					break
				}
			}
			from, _ := s.lookup(cache, e.SourceID)
			to, _ := s.lookup(cache, e.TargetID)
			result.Edges = append(result.Edges, EdgeInfo{FromName: nameOf(from), ToName: nameOf(to), Kind: e.Kind})
		}
	}
	return result, nil
}

// lookup returns a symbol by ID, using the cache first.
func (s *Store) lookup(cache map[string]*graph.Symbol, id string) (*graph.Symbol, error) {
	if n, ok := cache[id]; ok {
		return n, nil
	}
	n, err := s.FindSymbolByID(id)
	if err != nil {
		return nil, err
	}
	cache[id] = n
	return n, nil
}

func nameOf(n *graph.Symbol) string {
	if n == nil {
		return ""
	}
	return n.Name
}
