package extract

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/DeusData/codegraph/internal/graph"
	"github.com/DeusData/codegraph/internal/lang"
	"github.com/DeusData/codegraph/internal/parser"
)

// declare returns the declarations introduced at node, or nil when the node
// only looks like a declaration (locals, forward declarations, prototypes).
func (e *extractor) declare(node *tree_sitter.Node, rule lang.Rule, sc *scope) []decl {
	kind := graph.Kind(rule.Kind)
	if kind == graph.Variable && (sc.inFunc || sc.typeBody) {
		return nil
	}
	if needsBody(node.Kind()) && node.ChildByFieldName("body") == nil {
		return nil
	}

	switch e.spec.Language {
	case lang.Go:
		return e.declareGo(node, rule, sc)
	case lang.CPP:
		return e.declareCPP(node, rule, sc)
	case lang.JavaScript, lang.TypeScript:
		if node.Kind() == "variable_declarator" {
			return e.declareJSVariable(node, rule, sc)
		}
	case lang.Python:
		if node.Kind() == "assignment" {
			left := node.ChildByFieldName("left")
			if left == nil || left.Kind() != "identifier" {
				return nil
			}
		}
	}
	return e.declareNamed(node, rule, sc)
}

func needsBody(kind string) bool {
	switch kind {
	case "mod_item", "class_specifier", "struct_specifier", "union_specifier",
		"enum_specifier", "internal_module", "module":
		return true
	}
	return false
}

func (e *extractor) declareNamed(node *tree_sitter.Node, rule lang.Rule, sc *scope) []decl {
	nameNode := node.ChildByFieldName(rule.NameField)
	name := cleanName(parser.NodeText(nameNode, e.src))
	if name == "" {
		return nil
	}
	kind := graph.Kind(rule.Kind)
	return []decl{{
		name:     name,
		kind:     kind,
		scopeQN:  sc.qn,
		nameNode: nameNode,
		opens:    rule.Scope,
		function: kind == graph.Function || kind == graph.Method,
	}}
}

// cleanName normalises a declared name to a qualified-name fragment.
// Computed or otherwise non-literal names yield "".
func cleanName(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"'`)
	if s == "" || strings.ContainsAny(s, " \t\n([{=,;") {
		return ""
	}
	s = stripTemplateArgs(s)
	s = strings.ReplaceAll(s, "::", ".")
	return strings.Trim(s, ".")
}

// stripTemplateArgs removes <...> argument lists, leaving operator names
// such as operator< untouched.
func stripTemplateArgs(s string) string {
	if !strings.Contains(s, "<") || strings.Contains(s, "operator") {
		return s
	}
	var b strings.Builder
	depth := 0
	for _, r := range s {
		switch {
		case r == '<':
			depth++
		case r == '>' && depth > 0:
			depth--
		case depth == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Go

func (e *extractor) declareGo(node *tree_sitter.Node, rule lang.Rule, sc *scope) []decl {
	switch node.Kind() {
	case "method_declaration":
		nameNode := node.ChildByFieldName("name")
		name := parser.NodeText(nameNode, e.src)
		recvVar, recvType := e.goReceiver(node.ChildByFieldName("receiver"))
		if name == "" || recvType == "" {
			return nil
		}
		class := graph.JoinQN(sc.qn, recvType)
		return []decl{{
			name:     name,
			kind:     graph.Method,
			scopeQN:  class,
			nameNode: nameNode,
			opens:    true,
			function: true,
			class:    class,
			receiver: recvVar,
		}}

	case "type_spec":
		ds := e.declareNamed(node, rule, sc)
		if len(ds) == 0 {
			return nil
		}
		switch t := node.ChildByFieldName("type"); {
		case t == nil:
		case t.Kind() == "struct_type":
			ds[0].kind = graph.Struct
		case t.Kind() == "interface_type":
			ds[0].kind = graph.Interface
		}
		return ds

	case "const_spec", "var_spec":
		var ds []decl
		for i := uint(0); i < node.NamedChildCount(); i++ {
			child := node.NamedChild(i)
			if child == nil || child.Kind() != "identifier" {
				continue
			}
			name := parser.NodeText(child, e.src)
			if name == "_" {
				continue
			}
			ds = append(ds, decl{name: name, kind: graph.Variable, scopeQN: sc.qn, nameNode: child})
		}
		return ds
	}
	return e.declareNamed(node, rule, sc)
}

// goReceiver returns the receiver variable and its base type name.
func (e *extractor) goReceiver(params *tree_sitter.Node) (string, string) {
	if params == nil {
		return "", ""
	}
	for i := uint(0); i < params.NamedChildCount(); i++ {
		p := params.NamedChild(i)
		if p == nil || p.Kind() != "parameter_declaration" {
			continue
		}
		return parser.FieldText(p, "name", e.src), e.goBaseType(p.ChildByFieldName("type"))
	}
	return "", ""
}

func (e *extractor) goBaseType(t *tree_sitter.Node) string {
	for t != nil {
		switch t.Kind() {
		case "pointer_type":
			t = t.NamedChild(0)
		case "generic_type":
			t = t.ChildByFieldName("type")
		case "type_identifier":
			return parser.NodeText(t, e.src)
		default:
			return ""
		}
	}
	return ""
}

// addGoEmbeds records embedded struct fields and embedded interfaces as
// inherits candidates.
func (e *extractor) addGoEmbeds(node *tree_sitter.Node, p *pending, sc *scope) {
	t := node.ChildByFieldName("type")
	if t == nil {
		return
	}
	var embeds []*tree_sitter.Node
	switch t.Kind() {
	case "struct_type":
		parser.Walk(t, func(n *tree_sitter.Node) bool {
			if n.Kind() != "field_declaration" {
				return true
			}
			if n.ChildByFieldName("name") == nil {
				if typ := n.ChildByFieldName("type"); typ != nil {
					embeds = append(embeds, typ)
				}
			}
			return false
		})
	case "interface_type":
		for i := uint(0); i < t.NamedChildCount(); i++ {
			child := t.NamedChild(i)
			if child == nil {
				continue
			}
			switch child.Kind() {
			case "type_elem", "constraint_elem", "type_identifier", "qualified_type":
				embeds = append(embeds, child)
			}
		}
	}
	for _, n := range embeds {
		for _, raw := range e.typeNames(n) {
			e.addCandidate(graph.Inherits, p, raw, normalizeRef(raw), visibleScopes(sc))
		}
	}
}

// C++

func (e *extractor) declareCPP(node *tree_sitter.Node, rule lang.Rule, sc *scope) []decl {
	switch node.Kind() {
	case "function_definition":
		fn := unwrapDeclarator(node.ChildByFieldName("declarator"))
		if fn == nil || fn.Kind() != "function_declarator" {
			return nil
		}
		nameNode := fn.ChildByFieldName("declarator")
		qualified := cleanName(parser.NodeText(nameNode, e.src))
		if qualified == "" {
			return nil
		}
		scopeQN := sc.qn
		name := qualified
		class := ""
		if i := strings.LastIndexByte(qualified, '.'); i >= 0 {
			scopeQN = graph.JoinQN(sc.qn, qualified[:i])
			name = qualified[i+1:]
			class = scopeQN
		}
		return []decl{{
			name:     name,
			kind:     graph.Function,
			scopeQN:  scopeQN,
			nameNode: nameNode,
			opens:    true,
			function: true,
			class:    class,
		}}

	case "declaration":
		d := unwrapDeclarator(node.ChildByFieldName("declarator"))
		if d != nil && d.Kind() == "init_declarator" {
			d = unwrapDeclarator(d.ChildByFieldName("declarator"))
		}
		if d == nil || d.Kind() != "identifier" {
			return nil
		}
		return []decl{{
			name:     parser.NodeText(d, e.src),
			kind:     graph.Variable,
			scopeQN:  sc.qn,
			nameNode: d,
		}}
	}
	return e.declareNamed(node, rule, sc)
}

// unwrapDeclarator strips pointer, reference and parenthesised layers.
func unwrapDeclarator(n *tree_sitter.Node) *tree_sitter.Node {
	for n != nil {
		switch n.Kind() {
		case "pointer_declarator", "reference_declarator", "parenthesized_declarator", "attributed_declarator":
			next := n.ChildByFieldName("declarator")
			if next == nil && n.NamedChildCount() > 0 {
				next = n.NamedChild(n.NamedChildCount() - 1)
			}
			n = next
		default:
			return n
		}
	}
	return nil
}

// JavaScript and TypeScript

func (e *extractor) declareJSVariable(node *tree_sitter.Node, rule lang.Rule, sc *scope) []decl {
	if sc.inFunc {
		return nil
	}
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil || nameNode.Kind() != "identifier" {
		return nil
	}
	d := decl{
		name:     parser.NodeText(nameNode, e.src),
		kind:     graph.Variable,
		scopeQN:  sc.qn,
		nameNode: nameNode,
		opens:    rule.Scope,
	}
	if v := node.ChildByFieldName("value"); v != nil {
		switch v.Kind() {
		case "arrow_function", "function_expression", "function", "generator_function":
			d.kind = graph.Function
			d.function = true
		case "class":
			d.kind = graph.Class
		}
	}
	return []decl{d}
}

// Rust

// visitRustImpl scopes the functions of an impl block under the implementing
// type and records `impl Trait for Type` for the implements pass.
func (e *extractor) visitRustImpl(node *tree_sitter.Node, sc *scope) {
	typeName := cleanName(e.rustTypeName(node.ChildByFieldName("type")))
	body := node.ChildByFieldName("body")
	if typeName == "" || body == nil {
		e.visitChildren(node, sc)
		return
	}
	typeQN := graph.JoinQN(sc.qn, typeName)
	if trait := node.ChildByFieldName("trait"); trait != nil {
		raw := e.rustTypeName(trait)
		e.implsFor = append(e.implsFor, implPair{
			typeQN: typeQN,
			trait:  raw,
			ref:    normalizeRef(raw),
			scopes: visibleScopes(sc),
		})
	}
	e.visitMembers(body, &scope{
		qn:       typeQN,
		class:    typeQN,
		typeBody: true,
		inFunc:   sc.inFunc,
		hidden:   e.hide(sc.hidden, typeQN),
	})
}

func (e *extractor) rustTypeName(t *tree_sitter.Node) string {
	for t != nil {
		switch t.Kind() {
		case "generic_type":
			t = t.ChildByFieldName("type")
		case "reference_type":
			t = t.ChildByFieldName("type")
		case "type_identifier", "scoped_type_identifier", "identifier", "scoped_identifier":
			return parser.NodeText(t, e.src)
		default:
			return ""
		}
	}
	return ""
}

// Inheritance clauses

// addBaseClauses turns base-class and implements clauses of a type
// declaration into candidates. Names resolve from the scope enclosing the
// declaration.
func (e *extractor) addBaseClauses(node *tree_sitter.Node, p *pending, sc *scope) {
	if !isTypeKind(p.sym.Kind) {
		return
	}
	var visit func(n *tree_sitter.Node, depth int)
	visit = func(n *tree_sitter.Node, depth int) {
		for i := uint(0); i < n.ChildCount(); i++ {
			child := n.Child(i)
			if child == nil {
				continue
			}
			kind := child.Kind()
			var ek graph.EdgeKind
			switch {
			case e.spec.IsImplementsClause(kind):
				ek = graph.Implements
			case e.spec.IsBaseClause(kind):
				ek = graph.Inherits
			case kind == "class_heritage" && depth == 0:
				visit(child, depth+1)
				continue
			default:
				continue
			}
			for _, raw := range e.typeNames(child) {
				e.addCandidate(ek, p, raw, normalizeRef(raw), visibleScopes(sc))
			}
		}
	}
	visit(node, 0)
}

// typeNames lists the type names mentioned by a clause, skipping generic
// arguments, access specifiers and keyword arguments.
func (e *extractor) typeNames(n *tree_sitter.Node) []string {
	if n == nil {
		return nil
	}
	switch n.Kind() {
	case "identifier", "type_identifier", "attribute", "member_expression",
		"nested_type_identifier", "scoped_type_identifier", "qualified_identifier",
		"scoped_identifier", "qualified_type", "dotted_name", "nested_identifier":
		return []string{parser.NodeText(n, e.src)}
	case "generic_type", "template_type":
		inner := n.ChildByFieldName("name")
		if inner == nil {
			inner = n.ChildByFieldName("type")
		}
		if inner == nil {
			inner = n.NamedChild(0)
		}
		return e.typeNames(inner)
	case "keyword_argument", "type_arguments", "template_argument_list",
		"access_specifier", "lifetime", "comment", "type_parameters", "call_expression":
		return nil
	}
	var out []string
	for i := uint(0); i < n.NamedChildCount(); i++ {
		out = append(out, e.typeNames(n.NamedChild(i))...)
	}
	return out
}
