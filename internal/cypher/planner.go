package cypher

import (
	"fmt"
	"strings"

	"github.com/DeusData/codegraph/internal/graph"
	"github.com/DeusData/codegraph/internal/store"
)

// maxHops bounds open-ended variable-length relationships.
const maxHops = 10

// plan is a query bound to the graph model: labels are symbol kinds,
// relationship types are edge kinds, and every variable and property the
// query reads is known to exist.
type plan struct {
	start nodeStep
	// early holds conditions on the start variable alone, applied before
	// the first expand.
	early   []Condition
	expands []expandStep
	where   *WhereClause
	ret     *ReturnClause
	// orderCol is the result column ORDER BY sorts on.
	orderCol string
}

// nodeStep matches symbols of one kind, or any kind when Kind is empty.
type nodeStep struct {
	Var   string
	Kind  graph.Kind
	Props map[string]string
}

func (n *nodeStep) accepts(s *graph.Symbol) bool {
	if n.Kind != "" && s.Kind != n.Kind {
		return false
	}
	for k, v := range n.Props {
		if fmt.Sprint(symbolProps[k](s)) != v {
			return false
		}
	}
	return true
}

// expandStep follows resolved edges of Kinds from the symbol bound to From.
type expandStep struct {
	From    string
	RelVar  string
	Kinds   []graph.EdgeKind
	Dir     store.Direction
	MinHops int
	MaxHops int
	To      nodeStep
}

func (x *expandStep) variableLength() bool {
	return x.MinHops != 1 || x.MaxHops != 1
}

type varKind int

const (
	nodeVar varKind = iota + 1
	relVar
)

// anonymous names an unnamed node so later steps can refer to it. Query
// variables may not start with '$'.
func anonymous(i int) string {
	return fmt.Sprintf("$%d", i)
}

func isAnonymous(v string) bool {
	return strings.HasPrefix(v, "$")
}

// compile checks q against the graph model and orders its steps.
func compile(q *Query) (*plan, error) {
	els := q.Match.Pattern.Elements
	vars := make(map[string]varKind)
	declare := func(name string, k varKind) error {
		if name == "" {
			return nil
		}
		if isAnonymous(name) {
			return fmt.Errorf("invalid variable name %q", name)
		}
		if _, ok := vars[name]; ok {
			return fmt.Errorf("variable %q is bound twice", name)
		}
		vars[name] = k
		return nil
	}
	node := func(i int) (nodeStep, error) {
		n := els[i].(*NodePattern)
		step := nodeStep{Var: n.Variable, Props: n.Props}
		if step.Var == "" {
			step.Var = anonymous(i)
		}
		if n.Label != "" {
			k, ok := store.KindForLabel(n.Label)
			if !ok {
				return step, fmt.Errorf("unknown label %q", n.Label)
			}
			step.Kind = k
		}
		for k := range n.Props {
			if _, ok := symbolProps[k]; !ok {
				return step, fmt.Errorf("unknown symbol property %q", k)
			}
		}
		return step, declare(n.Variable, nodeVar)
	}

	p := &plan{ret: q.Return}
	var err error
	if p.start, err = node(0); err != nil {
		return nil, err
	}
	for i := 1; i+1 < len(els); i += 2 {
		rel := els[i].(*RelPattern)
		x := expandStep{
			From:    els[i-1].(*NodePattern).Variable,
			RelVar:  rel.Variable,
			Dir:     rel.Direction,
			MinHops: rel.MinHops,
			MaxHops: rel.MaxHops,
		}
		if x.From == "" {
			x.From = anonymous(i - 1)
		}
		for _, t := range rel.Types {
			k, ok := store.EdgeKindForType(t)
			if !ok {
				return nil, fmt.Errorf("unknown relationship type %q", t)
			}
			x.Kinds = append(x.Kinds, k)
		}
		if x.variableLength() {
			if x.RelVar != "" {
				return nil, fmt.Errorf("relationship variable %q on a variable-length pattern", x.RelVar)
			}
			if x.MaxHops == 0 {
				x.MaxHops = maxHops
			}
			if x.MinHops > x.MaxHops {
				return nil, fmt.Errorf("empty hop range %d..%d", x.MinHops, x.MaxHops)
			}
			if len(x.Kinds) == 0 {
				// Untyped paths follow calls.
				x.Kinds = []graph.EdgeKind{graph.Calls}
			}
		}
		if err := declare(x.RelVar, relVar); err != nil {
			return nil, err
		}
		if x.To, err = node(i + 1); err != nil {
			return nil, err
		}
		p.expands = append(p.expands, x)
	}

	if err := p.splitWhere(q.Where, vars); err != nil {
		return nil, err
	}
	if err := p.checkReturn(vars); err != nil {
		return nil, err
	}
	return p, nil
}

// checkProperty reports whether v.prop can be read.
func checkProperty(vars map[string]varKind, v, prop string) error {
	switch vars[v] {
	case nodeVar:
		if _, ok := symbolProps[prop]; !ok && prop != "" {
			return fmt.Errorf("unknown symbol property %s.%s", v, prop)
		}
	case relVar:
		if _, ok := edgeProps[prop]; !ok && prop != "" {
			return fmt.Errorf("unknown relationship property %s.%s", v, prop)
		}
	default:
		return fmt.Errorf("unknown variable %q", v)
	}
	return nil
}

// splitWhere moves AND-ed conditions on the start variable in front of the
// expands; everything else is filtered after them.
func (p *plan) splitWhere(w *WhereClause, vars map[string]varKind) error {
	if w == nil {
		return nil
	}
	for _, c := range w.Conditions {
		if err := checkProperty(vars, c.Variable, c.Property); err != nil {
			return err
		}
	}
	if w.Any || len(p.expands) == 0 {
		p.where = w
		return nil
	}
	rest := &WhereClause{}
	for _, c := range w.Conditions {
		if c.Variable == p.start.Var {
			p.early = append(p.early, c)
		} else {
			rest.Conditions = append(rest.Conditions, c)
		}
	}
	if len(rest.Conditions) > 0 {
		p.where = rest
	}
	return nil
}

func (p *plan) checkReturn(vars map[string]varKind) error {
	r := p.ret
	if r == nil {
		return nil
	}
	counts := 0
	cols := make(map[string]bool, len(r.Items))
	for _, it := range r.Items {
		if err := checkProperty(vars, it.Variable, it.Property); err != nil {
			return err
		}
		if it.Count {
			counts++
		}
		cols[it.Column()] = true
	}
	if counts > 1 {
		return fmt.Errorf("at most one COUNT per RETURN")
	}
	if r.OrderBy != "" {
		if !cols[r.OrderBy] {
			return fmt.Errorf("ORDER BY %s: not a returned column", r.OrderBy)
		}
		p.orderCol = r.OrderBy
	}
	return nil
}
