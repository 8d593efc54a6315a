package cypher

import "github.com/DeusData/codegraph/internal/store"

// Query is one MATCH [WHERE] [RETURN] statement.
type Query struct {
	Match  *MatchClause
	Where  *WhereClause
	Return *ReturnClause
}

// MatchClause holds the MATCH pattern.
type MatchClause struct {
	Pattern *Pattern
}

// Pattern alternates nodes and relationships, starting and ending with a
// node.
type Pattern struct {
	Elements []PatternElement
}

// PatternElement is a *NodePattern or a *RelPattern.
type PatternElement interface {
	patternElement()
}

// NodePattern is (var:Label {prop: "value"}). Label is a symbol kind as
// written in the query; the planner maps it to a graph.Kind.
type NodePattern struct {
	Variable string
	Label    string
	Props    map[string]string
}

func (*NodePattern) patternElement() {}

// RelPattern is -[var:TYPE|TYPE*min..max]-> with the arrow giving the
// direction. Types are edge kinds as written in the query.
type RelPattern struct {
	Variable  string
	Types     []string
	Direction store.Direction
	MinHops   int
	MaxHops   int // 0 is unbounded
}

func (*RelPattern) patternElement() {}

// Op is a WHERE comparison operator.
type Op string

const (
	OpEq         Op = "="
	OpNeq        Op = "<>"
	OpRegex      Op = "=~"
	OpGT         Op = ">"
	OpLT         Op = "<"
	OpGTE        Op = ">="
	OpLTE        Op = "<="
	OpContains   Op = "CONTAINS"
	OpStartsWith Op = "STARTS WITH"
)

// WhereClause joins its conditions with AND, or with OR when Any is set.
// A clause mixing both is read as OR.
type WhereClause struct {
	Conditions []Condition
	Any        bool
}

// Condition is [NOT] var.prop <op> value.
type Condition struct {
	Variable string
	Property string
	Op       Op
	Value    string
	Negate   bool
}

// ReturnClause is the projection with its ordering and paging.
type ReturnClause struct {
	Items    []ReturnItem
	Distinct bool
	OrderBy  string // a returned column or alias
	Desc     bool
	Skip     int
	Limit    int // 0 means the row cap
}

// ReturnItem is var, var.prop or COUNT(var), optionally AS alias.
type ReturnItem struct {
	Variable string
	Property string // empty projects the whole symbol or edge
	Alias    string
	Count    bool
}

// Column is the result column the item fills.
func (it ReturnItem) Column() string {
	switch {
	case it.Alias != "":
		return it.Alias
	case it.Count:
		return "COUNT(" + it.Variable + ")"
	case it.Property != "":
		return it.Variable + "." + it.Property
	default:
		return it.Variable
	}
}
