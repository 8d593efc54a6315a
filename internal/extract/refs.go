package extract

import (
	"strings"
	"unicode/utf8"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/DeusData/codegraph/internal/graph"
	"github.com/DeusData/codegraph/internal/lang"
	"github.com/DeusData/codegraph/internal/parser"
)

const maxRawLen = 200

// addCall records a call from the enclosing declaration.
func (e *extractor) addCall(callee *tree_sitter.Node, sc *scope) {
	if callee == nil || sc.source == nil {
		return
	}
	segs := e.chain(callee)
	ref := e.bindReceiver(segs, sc)
	if ref == "" {
		return
	}
	e.addCandidate(graph.Calls, sc.source, rawText(callee, e.src), ref, visibleScopes(sc))
}

// addTypeRefs records references to named types. It returns true when the
// node's subtree has been fully handled.
func (e *extractor) addTypeRefs(node *tree_sitter.Node, sc *scope) bool {
	if sc.source == nil {
		return false
	}
	switch node.Kind() {
	case "type":
		// Python annotation: every plain name inside it.
		parser.Walk(node, func(n *tree_sitter.Node) bool {
			if n.Kind() == "identifier" {
				e.addReference(parser.NodeText(n, e.src), sc)
			}
			return true
		})
	default:
		e.addReference(parser.NodeText(node, e.src), sc)
	}
	return true
}

func (e *extractor) addReference(raw string, sc *scope) {
	if raw == "" || isBuiltinType(e.spec.Language, raw) {
		return
	}
	ref := normalizeRef(raw)
	// A type naming its own declaration (Go receivers, constructors) is
	// not a reference worth keeping.
	if ref == sc.source.sym.QualifiedName {
		return
	}
	e.addCandidate(graph.References, sc.source, raw, ref, visibleScopes(sc))
}

// chain flattens a callee expression into name segments. A receiver that is
// not itself a plain name chain (a call result, an index) is dropped and only
// the member name is kept.
func (e *extractor) chain(n *tree_sitter.Node) []string {
	if n == nil {
		return nil
	}
	switch n.Kind() {
	case "identifier", "field_identifier", "property_identifier", "type_identifier",
		"namespace_identifier", "package_identifier", "private_property_identifier",
		"this", "self", "super", "crate", "primitive_type":
		return []string{parser.NodeText(n, e.src)}

	case "selector_expression":
		return e.member(n.ChildByFieldName("operand"), n.ChildByFieldName("field"))
	case "attribute":
		return e.member(n.ChildByFieldName("object"), n.ChildByFieldName("attribute"))
	case "member_expression":
		return e.member(n.ChildByFieldName("object"), n.ChildByFieldName("property"))
	case "field_expression":
		obj := n.ChildByFieldName("value")
		if obj == nil {
			obj = n.ChildByFieldName("argument")
		}
		return e.member(obj, n.ChildByFieldName("field"))
	case "qualified_type":
		return e.member(n.ChildByFieldName("package"), n.ChildByFieldName("name"))

	case "scoped_identifier", "qualified_identifier", "scoped_type_identifier":
		path := n.ChildByFieldName("path")
		if path == nil {
			path = n.ChildByFieldName("scope")
		}
		segs := e.member(path, n.ChildByFieldName("name"))
		if e.spec.Language == lang.Rust {
			for len(segs) > 1 && (segs[0] == "crate" || segs[0] == "super" || segs[0] == "self") {
				segs = segs[1:]
			}
		}
		return segs

	case "nested_identifier", "nested_type_identifier":
		return strings.Split(parser.NodeText(n, e.src), ".")

	case "generic_function":
		return e.chain(n.ChildByFieldName("function"))
	case "template_function", "template_type":
		return e.chain(n.ChildByFieldName("name"))
	case "generic_type":
		inner := n.ChildByFieldName("name")
		if inner == nil {
			inner = n.ChildByFieldName("type")
		}
		return e.chain(inner)
	case "parenthesized_expression", "non_null_expression":
		return e.chain(n.NamedChild(0))
	}
	return nil
}

func (e *extractor) member(obj, prop *tree_sitter.Node) []string {
	name := e.chain(prop)
	if len(name) == 0 {
		return nil
	}
	if obj == nil {
		return name
	}
	left := e.chain(obj)
	if len(left) == 0 {
		return name
	}
	return append(left, name...)
}

// bindReceiver rewrites self/this/Self and Go receiver variables to the
// enclosing type, then joins the chain into a lookup reference.
func (e *extractor) bindReceiver(segs []string, sc *scope) string {
	if len(segs) == 0 {
		return ""
	}
	first := segs[0]
	if e.spec.IsReceiver(first) || (sc.receiver != "" && first == sc.receiver) {
		rest := segs[1:]
		if sc.class == "" {
			segs = rest
		} else {
			segs = append(graph.SplitQN(sc.class), rest...)
		}
	}
	if len(segs) == 0 {
		return ""
	}
	return strings.Join(segs, ".")
}

// normalizeRef turns a raw type or path expression into dotted form.
func normalizeRef(raw string) string {
	s := stripTemplateArgs(strings.TrimSpace(raw))
	s = strings.NewReplacer("::", ".", "->", ".", "?.", ".", " ", "", "\n", "", "\t", "").Replace(s)
	s = strings.TrimLeft(s, "*&.")
	for _, prefix := range []string{"crate.", "super.", "self."} {
		for strings.HasPrefix(s, prefix) {
			s = strings.TrimPrefix(s, prefix)
		}
	}
	return strings.Trim(s, ".")
}

// rawText is the callee as written, whitespace collapsed.
func rawText(n *tree_sitter.Node, src []byte) string {
	return clip(strings.Join(strings.Fields(parser.NodeText(n, src)), " "), maxRawLen)
}

// clip cuts s to at most n bytes without splitting a rune.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

var builtinTypes = map[lang.Language]map[string]bool{
	lang.Go: set("bool", "byte", "complex64", "complex128", "error", "float32", "float64",
		"int", "int8", "int16", "int32", "int64", "rune", "string", "uint", "uint8",
		"uint16", "uint32", "uint64", "uintptr", "any", "comparable"),
	lang.Python: set("int", "str", "float", "bool", "bytes", "list", "dict", "set", "tuple",
		"object", "None", "type", "Any", "Optional", "List", "Dict", "Set", "Tuple",
		"Callable", "Union", "Iterable", "Iterator"),
}

func isBuiltinType(l lang.Language, name string) bool {
	return builtinTypes[l][name]
}

func set(names ...string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}
