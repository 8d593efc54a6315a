package cypher

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/DeusData/codegraph/internal/graph"
	"github.com/DeusData/codegraph/internal/store"
)

const (
	// maxResultRows caps the rows a query returns.
	maxResultRows = 200
	// maxBindings caps the intermediate matches an expand may produce.
	maxBindings = 10000
)

// Executor runs read-only queries against a store. Labels are symbol kinds
// (Function, Class, ...) and relationship types are edge kinds (CALLS,
// INHERITS, ...). Only resolved edges are traversed.
type Executor struct {
	Store *store.Store
}

// Result holds the tabular output of a query.
type Result struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

// symbolProps are the readable properties of a symbol variable.
var symbolProps = map[string]func(*graph.Symbol) any{
	"id":             func(s *graph.Symbol) any { return s.ID },
	"name":           func(s *graph.Symbol) any { return s.Name },
	"qualified_name": func(s *graph.Symbol) any { return s.QualifiedName },
	"label":          func(s *graph.Symbol) any { return store.Label(string(s.Kind)) },
	"kind":           func(s *graph.Symbol) any { return string(s.Kind) },
	"file_path":      func(s *graph.Symbol) any { return s.Path },
	"path":           func(s *graph.Symbol) any { return s.Path },
	"language":       func(s *graph.Symbol) any { return s.Language },
	"start_line":     func(s *graph.Symbol) any { return s.Span.StartLine },
	"end_line":       func(s *graph.Symbol) any { return s.Span.EndLine },
	"start_byte":     func(s *graph.Symbol) any { return s.Span.StartByte },
	"end_byte":       func(s *graph.Symbol) any { return s.Span.EndByte },
	"signature":      func(s *graph.Symbol) any { return s.Signature },
	"visibility":     func(s *graph.Symbol) any { return s.Visibility },
	"docstring":      func(s *graph.Symbol) any { return s.Docstring },
	"parent_id":      func(s *graph.Symbol) any { return s.ParentID },
	"fingerprint":    func(s *graph.Symbol) any { return s.Fingerprint },
}

// edgeProps are the readable properties of a relationship variable.
var edgeProps = map[string]func(*graph.Edge) any{
	"id":          func(e *graph.Edge) any { return e.ID },
	"type":        func(e *graph.Edge) any { return store.RelType(string(e.Kind)) },
	"kind":        func(e *graph.Edge) any { return string(e.Kind) },
	"source_id":   func(e *graph.Edge) any { return e.SourceID },
	"target_id":   func(e *graph.Edge) any { return e.TargetID },
	"target_name": func(e *graph.Edge) any { return e.TargetName },
	"confidence":  func(e *graph.Edge) any { return string(e.Confidence) },
	"file_path":   func(e *graph.Edge) any { return e.Path },
	"path":        func(e *graph.Edge) any { return e.Path },
	"candidates":  func(e *graph.Edge) any { return len(e.Candidates) },
}

// binding is one match: variables bound to symbols and edges.
type binding struct {
	nodes map[string]*graph.Symbol
	edges map[string]*graph.Edge
}

// with returns a copy of b with node bound to nodeVar and, when relVar is
// set, edge bound to relVar.
func (b binding) with(nodeVar string, node *graph.Symbol, relVar string, edge *graph.Edge) binding {
	c := binding{
		nodes: make(map[string]*graph.Symbol, len(b.nodes)+1),
		edges: make(map[string]*graph.Edge, len(b.edges)+1),
	}
	for k, v := range b.nodes {
		c.nodes[k] = v
	}
	for k, v := range b.edges {
		c.edges[k] = v
	}
	c.nodes[nodeVar] = node
	if relVar != "" && edge != nil {
		c.edges[relVar] = edge
	}
	return c
}

// value reads v.prop; a bare variable yields its projection map.
func (b binding) value(v, prop string) any {
	if n, ok := b.nodes[v]; ok {
		if prop == "" {
			return map[string]any{
				"name":           n.Name,
				"qualified_name": n.QualifiedName,
				"label":          store.Label(string(n.Kind)),
				"file_path":      n.Path,
				"start_line":     n.Span.StartLine,
				"end_line":       n.Span.EndLine,
			}
		}
		return symbolProps[prop](n)
	}
	if e, ok := b.edges[v]; ok {
		if prop == "" {
			return map[string]any{
				"type":      store.RelType(string(e.Kind)),
				"source_id": e.SourceID,
				"target_id": e.TargetID,
			}
		}
		return edgeProps[prop](e)
	}
	return nil
}

// Execute parses, plans and runs a query.
func (e *Executor) Execute(query string) (*Result, error) {
	q, err := Parse(query)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	p, err := compile(q)
	if err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}
	rows, err := e.match(p)
	if err != nil {
		return nil, err
	}
	return project(rows, p), nil
}

func (e *Executor) match(p *plan) ([]binding, error) {
	rows, err := e.scan(&p.start)
	if err != nil {
		return nil, err
	}
	if rows, err = filter(rows, p.early, false); err != nil {
		return nil, err
	}
	for i := range p.expands {
		if rows, err = e.expand(&p.expands[i], rows); err != nil {
			return nil, err
		}
	}
	if p.where != nil {
		return filter(rows, p.where.Conditions, p.where.Any)
	}
	return rows, nil
}

func (e *Executor) scan(n *nodeStep) ([]binding, error) {
	var syms []*graph.Symbol
	var err error
	if n.Kind != "" {
		syms, err = e.Store.FindSymbolsByKind(n.Kind)
	} else {
		syms, err = e.Store.AllSymbols()
	}
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	var rows []binding
	for _, s := range syms {
		if n.accepts(s) {
			rows = append(rows, binding{}.with(n.Var, s, "", nil))
		}
	}
	return rows, nil
}

func (e *Executor) expand(x *expandStep, rows []binding) ([]binding, error) {
	var out []binding
	for _, b := range rows {
		from := b.nodes[x.From]
		if from == nil {
			continue
		}
		if x.variableLength() {
			res, err := e.Store.BFS(from.ID, x.Dir, x.Kinds, x.MaxHops, maxBindings)
			if err != nil {
				return nil, fmt.Errorf("traverse from %s: %w", from.QualifiedName, err)
			}
			for _, h := range res.Visited {
				if h.Hop >= x.MinHops && x.To.accepts(h.Symbol) {
					out = append(out, b.with(x.To.Var, h.Symbol, "", nil))
				}
			}
		} else {
			hops, err := e.neighbours(from.ID, x)
			if err != nil {
				return nil, err
			}
			for _, h := range hops {
				if x.To.accepts(h.node) {
					out = append(out, b.with(x.To.Var, h.node, x.RelVar, h.edge))
				}
			}
		}
		if len(out) >= maxBindings {
			return out[:maxBindings], nil
		}
	}
	return out, nil
}

// hop is a symbol one resolved edge away.
type hop struct {
	node *graph.Symbol
	edge *graph.Edge
}

// neighbours returns the symbols one resolved edge of x.Kinds away from id,
// each once.
func (e *Executor) neighbours(id string, x *expandStep) ([]hop, error) {
	var edges []*graph.Edge
	load := func(outbound bool) error {
		kinds := x.Kinds
		if len(kinds) == 0 {
			kinds = []graph.EdgeKind{""}
		}
		for _, k := range kinds {
			var found []*graph.Edge
			var err error
			switch {
			case outbound && k == "":
				found, err = e.Store.FindEdgesBySource(id)
			case outbound:
				found, err = e.Store.FindEdgesBySourceAndKind(id, k)
			case k == "":
				found, err = e.Store.FindEdgesByTarget(id)
			default:
				found, err = e.Store.FindEdgesByTargetAndKind(id, k)
			}
			if err != nil {
				return fmt.Errorf("load edges of %s: %w", id, err)
			}
			edges = append(edges, found...)
		}
		return nil
	}
	if x.Dir != store.Inbound {
		if err := load(true); err != nil {
			return nil, err
		}
	}
	if x.Dir != store.Outbound {
		if err := load(false); err != nil {
			return nil, err
		}
	}

	seen := make(map[string]bool)
	var out []hop
	for _, edge := range edges {
		if edge.Confidence != graph.Resolved || edge.TargetID == "" {
			continue
		}
		other := edge.TargetID
		if other == id && x.Dir != store.Outbound {
			other = edge.SourceID
		}
		if seen[other] {
			continue
		}
		seen[other] = true
		node, err := e.Store.FindSymbolByID(other)
		if err != nil {
			return nil, fmt.Errorf("load symbol %s: %w", other, err)
		}
		if node != nil {
			out = append(out, hop{node: node, edge: edge})
		}
	}
	return out, nil
}

// filter keeps the rows satisfying every condition, or any of them.
func filter(rows []binding, conds []Condition, anyOf bool) ([]binding, error) {
	if len(conds) == 0 {
		return rows, nil
	}
	var out []binding
	for _, b := range rows {
		keep := !anyOf
		for _, c := range conds {
			ok, err := c.holds(b)
			if err != nil {
				return nil, err
			}
			if ok == anyOf {
				keep = anyOf
				break
			}
		}
		if keep {
			out = append(out, b)
		}
	}
	return out, nil
}

func (c Condition) holds(b binding) (bool, error) {
	ok, err := c.compare(b.value(c.Variable, c.Property))
	return ok != c.Negate, err
}

func (c Condition) compare(actual any) (bool, error) {
	switch c.Op {
	case OpEq:
		return fmt.Sprint(actual) == c.Value, nil
	case OpNeq:
		return fmt.Sprint(actual) != c.Value, nil
	case OpGT, OpLT, OpGTE, OpLTE:
		a, ok := toFloat(actual)
		want, err := strconv.ParseFloat(c.Value, 64)
		if !ok || err != nil {
			return false, nil
		}
		switch c.Op {
		case OpGT:
			return a > want, nil
		case OpLT:
			return a < want, nil
		case OpGTE:
			return a >= want, nil
		default:
			return a <= want, nil
		}
	}

	s, ok := actual.(string)
	if !ok {
		return false, nil
	}
	switch c.Op {
	case OpRegex:
		re, err := regexp.Compile(c.Value)
		if err != nil {
			return false, fmt.Errorf("regex %q: %w", c.Value, err)
		}
		return re.MatchString(s), nil
	case OpContains:
		return strings.Contains(s, c.Value), nil
	case OpStartsWith:
		return strings.HasPrefix(s, c.Value), nil
	}
	return false, fmt.Errorf("unsupported operator %s", c.Op)
}

func project(rows []binding, p *plan) *Result {
	if p.ret == nil {
		return projectAll(rows)
	}
	cols := make([]string, len(p.ret.Items))
	for i, it := range p.ret.Items {
		cols[i] = it.Column()
	}

	var out []map[string]any
	if countAt := countItem(p.ret); countAt >= 0 {
		out = aggregate(rows, p.ret.Items, countAt)
	} else {
		seen := make(map[string]bool)
		for _, b := range rows {
			row := make(map[string]any, len(cols))
			for i, it := range p.ret.Items {
				row[cols[i]] = b.value(it.Variable, it.Property)
			}
			if p.ret.Distinct {
				key := rowKey(row, cols)
				if seen[key] {
					continue
				}
				seen[key] = true
			}
			out = append(out, row)
		}
	}
	if p.orderCol != "" {
		sortRows(out, p.orderCol, p.ret.Desc)
	}
	return &Result{Columns: cols, Rows: page(out, p.ret.Skip, p.ret.Limit)}
}

// projectAll returns name, qualified name and label of every named symbol
// and the type of every named relationship.
func projectAll(rows []binding) *Result {
	colSet := make(map[string]bool)
	out := make([]map[string]any, 0, len(rows))
	for _, b := range rows {
		row := make(map[string]any)
		for v, n := range b.nodes {
			if isAnonymous(v) {
				continue
			}
			row[v+".name"] = n.Name
			row[v+".qualified_name"] = n.QualifiedName
			row[v+".label"] = store.Label(string(n.Kind))
		}
		for v, e := range b.edges {
			row[v+".type"] = store.RelType(string(e.Kind))
		}
		for c := range row {
			colSet[c] = true
		}
		out = append(out, row)
	}
	cols := make([]string, 0, len(colSet))
	for c := range colSet {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return &Result{Columns: cols, Rows: page(out, 0, 0)}
}

func countItem(r *ReturnClause) int {
	for i, it := range r.Items {
		if it.Count {
			return i
		}
	}
	return -1
}

// aggregate groups rows by every item except the COUNT and counts each
// group, keeping first-seen order.
func aggregate(rows []binding, items []ReturnItem, countAt int) []map[string]any {
	counts := make(map[string]int)
	groups := make(map[string]map[string]any)
	var order []string
	for _, b := range rows {
		row := make(map[string]any, len(items))
		var key strings.Builder
		for i, it := range items {
			if i == countAt {
				continue
			}
			v := b.value(it.Variable, it.Property)
			row[it.Column()] = v
			fmt.Fprintf(&key, "%v\x00", v)
		}
		k := key.String()
		if _, ok := groups[k]; !ok {
			groups[k] = row
			order = append(order, k)
		}
		counts[k]++
	}
	out := make([]map[string]any, 0, len(order))
	col := items[countAt].Column()
	for _, k := range order {
		row := groups[k]
		row[col] = counts[k]
		out = append(out, row)
	}
	return out
}

func rowKey(row map[string]any, cols []string) string {
	var sb strings.Builder
	for _, c := range cols {
		fmt.Fprintf(&sb, "%v\x00", row[c])
	}
	return sb.String()
}

// page applies skip, then limit, within maxResultRows.
func page(rows []map[string]any, skip, limit int) []map[string]any {
	if skip >= len(rows) {
		return []map[string]any{}
	}
	rows = rows[skip:]
	if limit <= 0 || limit > maxResultRows {
		limit = maxResultRows
	}
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}

func sortRows(rows []map[string]any, col string, desc bool) {
	sort.SliceStable(rows, func(i, j int) bool {
		c := compareValues(rows[i][col], rows[j][col])
		if desc {
			return c > 0
		}
		return c < 0
	})
}

// compareValues orders numbers numerically and anything else by its
// printed form.
func compareValues(a, b any) int {
	x, aok := toFloat(a)
	y, bok := toFloat(b)
	if !aok || !bok {
		return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
	}
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}
