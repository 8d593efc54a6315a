// Package extract turns a parsed file into symbol and relationship candidates.
//
// Extraction is a pure function of (path, identity path, source): it touches
// no shared state, so files can be extracted concurrently.
package extract

import (
	"bytes"
	"slices"
	"sort"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/DeusData/codegraph/internal/graph"
	"github.com/DeusData/codegraph/internal/lang"
	"github.com/DeusData/codegraph/internal/parser"
	"github.com/DeusData/codegraph/internal/resolve"
)

// Input is one parsed file.
type Input struct {
	Path string
	// IdentityPath feeds symbol IDs. Empty means Path.
	IdentityPath string
	Tree         *parser.Tree
}

// Result is the extraction output for one file. Contains edges are resolved;
// every other edge is a candidate awaiting the resolver.
type Result struct {
	Path      string
	Language  lang.Language
	Symbols   []*graph.Symbol
	Edges     []*graph.Edge
	Imports   []graph.Binding
	LineCount int
}

// scope is the lexical context of a node.
type scope struct {
	qn string
	// source is the innermost declaration, the owner of nested calls.
	source *pending
	// class is the qualified name of the innermost type-like scope.
	class string
	// receiver is a Go method receiver variable bound to class.
	receiver string
	// typeBody is set directly inside a class, struct, trait or impl body.
	typeBody bool
	inFunc   bool
	// hidden are enclosing type scopes whose members are not visible by
	// bare name (everything but C++, which has implicit this).
	hidden []string
}

// pending is a symbol whose ID is assigned once the whole file is walked.
type pending struct {
	sym      *graph.Symbol
	parentQN string
}

type candidate struct {
	kind   graph.EdgeKind
	source *pending
	raw    string
	ref    string
	scopes []string
}

type candKey struct {
	kind   graph.EdgeKind
	source *pending
	raw    string
}

type extractor struct {
	spec   *lang.LanguageSpec
	src    []byte
	path   string
	idPath string

	symbols []*pending
	byKey   map[string]*pending
	cands   []candidate
	seen    map[candKey]bool
	imports []graph.Binding
	// nameNodes are declaration name nodes, never type references.
	nameNodes map[uintptr]bool
	implsFor  []implPair
}

// implPair is a Rust `impl Trait for Type` block.
type implPair struct {
	typeQN string
	trait  string
	ref    string
	scopes []string
}

// File extracts symbols, relationship candidates and import bindings.
func File(in Input) *Result {
	idPath := in.IdentityPath
	if idPath == "" {
		idPath = in.Path
	}
	e := &extractor{
		spec:      in.Tree.Spec,
		src:       in.Tree.Source,
		path:      in.Path,
		idPath:    idPath,
		byKey:     make(map[string]*pending),
		seen:      make(map[candKey]bool),
		nameNodes: make(map[uintptr]bool),
	}
	e.visit(in.Tree.RootNode(), &scope{})

	res := &Result{
		Path:      in.Path,
		Language:  e.spec.Language,
		Imports:   e.imports,
		LineCount: countLines(e.src),
	}
	res.Symbols, res.Edges = e.finish()
	return res
}

func (e *extractor) visit(node *tree_sitter.Node, sc *scope) {
	if node == nil {
		return
	}
	kind := node.Kind()

	if e.spec.IsImport(kind) {
		e.imports = append(e.imports, parseImports(e.spec.Language, node, e.src)...)
		return
	}

	if kind == "impl_item" && e.spec.Language == lang.Rust {
		e.visitRustImpl(node, sc)
		return
	}

	if rule, ok := e.spec.Rule(kind); ok {
		if decls := e.declare(node, rule, sc); len(decls) > 0 {
			for _, d := range decls {
				e.visitDecl(node, d, sc)
			}
			return
		}
	}

	if field, ok := e.spec.CallField(kind); ok {
		e.addCall(node.ChildByFieldName(field), sc)
	}

	if e.spec.IsTypeRef(kind) && !e.nameNodes[node.Id()] {
		if e.addTypeRefs(node, sc) {
			return
		}
	}

	e.visitChildren(node, sc)
}

func (e *extractor) visitChildren(node *tree_sitter.Node, sc *scope) {
	for i := uint(0); i < node.ChildCount(); i++ {
		e.visit(node.Child(i), sc)
	}
}

// decl is one declaration found at a node.
type decl struct {
	name     string
	kind     graph.Kind
	scopeQN  string
	nameNode *tree_sitter.Node
	opens    bool
	function bool
	// class and receiver override the type scope of the body (Go methods).
	class    string
	receiver string
}

func (e *extractor) visitDecl(node *tree_sitter.Node, d decl, sc *scope) {
	if d.kind == graph.Function && sc.typeBody {
		d.kind = graph.Method
	}
	qn := graph.JoinQN(d.scopeQN, d.name)
	p := e.addSymbol(node, d, qn)
	if d.nameNode != nil {
		e.nameNodes[d.nameNode.Id()] = true
	}

	inner := &scope{
		qn:       sc.qn,
		source:   p,
		class:    sc.class,
		receiver: sc.receiver,
		inFunc:   sc.inFunc || d.function,
		hidden:   sc.hidden,
	}
	if d.opens {
		inner.qn = qn
	}
	if isTypeKind(d.kind) {
		inner.class = qn
		inner.receiver = ""
		inner.typeBody = true
	}
	if d.class != "" {
		inner.class = d.class
		inner.receiver = d.receiver
	}
	if inner.class != sc.class {
		inner.hidden = e.hide(sc.hidden, inner.class)
	}

	e.addBaseClauses(node, p, sc)
	if e.spec.Language == lang.Go && node.Kind() == "type_spec" {
		e.addGoEmbeds(node, p, sc)
	}
	e.visitBody(node, inner)
}

// visitBody walks a declaration's children. Only the direct body of a type
// keeps typeBody set; anything deeper is ordinary code.
func (e *extractor) visitBody(node *tree_sitter.Node, sc *scope) {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		if sc.typeBody && e.isClause(child.Kind()) {
			continue
		}
		if sc.typeBody && !isBodyNode(child.Kind()) {
			flat := *sc
			flat.typeBody = false
			e.visit(child, &flat)
			continue
		}
		if sc.typeBody {
			e.visitMembers(child, sc)
			continue
		}
		e.visit(child, sc)
	}
}

// visitMembers walks a type body, looking through wrappers such as
// decorators, exports, templates and access sections.
func (e *extractor) visitMembers(body *tree_sitter.Node, sc *scope) {
	for i := uint(0); i < body.ChildCount(); i++ {
		child := body.Child(i)
		if child == nil {
			continue
		}
		if isMemberWrapper(child.Kind()) {
			e.visitMembers(child, sc)
			continue
		}
		e.visit(child, sc)
	}
}

func (e *extractor) isClause(kind string) bool {
	return kind == "class_heritage" || e.spec.IsBaseClause(kind) || e.spec.IsImplementsClause(kind)
}

func isBodyNode(kind string) bool {
	switch kind {
	case "block", "class_body", "field_declaration_list", "declaration_list",
		"object_type", "interface_body", "enum_body", "enum_variant_list",
		"struct_type", "interface_type":
		return true
	}
	return false
}

func isMemberWrapper(kind string) bool {
	switch kind {
	case "decorated_definition", "template_declaration", "export_statement",
		"expression_statement", "field_declaration":
		return true
	}
	return false
}

func isTypeKind(k graph.Kind) bool {
	switch k {
	case graph.Class, graph.Struct, graph.Interface, graph.Enum:
		return true
	}
	return false
}

func (e *extractor) addSymbol(node *tree_sitter.Node, d decl, qn string) *pending {
	key := qn + "\x00" + string(d.kind)
	if existing, ok := e.byKey[key]; ok {
		// Redeclarations (overloads, property setters, repeated init) merge
		// into the first occurrence.
		return existing
	}
	text := parser.NodeText(node, e.src)
	p := &pending{
		sym: &graph.Symbol{
			Kind:          d.kind,
			Name:          d.name,
			QualifiedName: qn,
			Path:          e.path,
			Language:      string(e.spec.Language),
			Span: graph.Span{
				StartByte: int(node.StartByte()),
				EndByte:   int(node.EndByte()),
				StartLine: safeRowToLine(node.StartPosition().Row),
				EndLine:   safeRowToLine(node.EndPosition().Row),
			},
			Fingerprint: graph.Fingerprint([]byte(text)),
			Signature:   signature(node, e.src),
			Visibility:  e.visibility(node, d.name),
			Docstring:   e.docstring(node),
		},
		parentQN: d.scopeQN,
	}
	e.byKey[key] = p
	e.symbols = append(e.symbols, p)
	return p
}

// hide extends hidden with a type scope when the language has no implicit
// member access.
func (e *extractor) hide(hidden []string, qn string) []string {
	if e.spec.Language == lang.CPP || qn == "" {
		return hidden
	}
	out := make([]string, len(hidden), len(hidden)+1)
	copy(out, hidden)
	return append(out, qn)
}

// visibleScopes lists the scopes a bare name at sc may bind in.
func visibleScopes(sc *scope) []string {
	chain := ScopeChain(sc.qn)
	if len(sc.hidden) == 0 {
		return chain
	}
	out := chain[:0]
	for _, s := range chain {
		if !slices.Contains(sc.hidden, s) {
			out = append(out, s)
		}
	}
	return out
}

// addCandidate records a relationship candidate owned by source.
func (e *extractor) addCandidate(kind graph.EdgeKind, source *pending, raw, ref string, scopes []string) {
	if source == nil || ref == "" {
		return
	}
	k := candKey{kind: kind, source: source, raw: raw}
	if e.seen[k] {
		return
	}
	e.seen[k] = true
	e.cands = append(e.cands, candidate{
		kind:   kind,
		source: source,
		raw:    raw,
		ref:    ref,
		scopes: scopes,
	})
}

// finish links parents, assigns IDs and materialises edges.
func (e *extractor) finish() ([]*graph.Symbol, []*graph.Edge) {
	// Parents are matched by qualified name within the file, so out-of-line
	// members (Go methods, C++ A::f definitions) attach to their type
	// wherever it is declared. Types and modules win over same-named values.
	byQN := make(map[string]*pending)
	for _, p := range e.symbols {
		if preferParent(p.sym.Kind) {
			if _, ok := byQN[p.sym.QualifiedName]; !ok {
				byQN[p.sym.QualifiedName] = p
			}
		}
	}
	for _, p := range e.symbols {
		if _, ok := byQN[p.sym.QualifiedName]; !ok {
			byQN[p.sym.QualifiedName] = p
		}
	}

	parents := make(map[*pending]*pending)
	for _, p := range e.symbols {
		if p.parentQN == "" {
			continue
		}
		parent, ok := byQN[p.parentQN]
		if !ok || parent == p {
			continue
		}
		parents[p] = parent
		if p.sym.Kind == graph.Function && isTypeKind(parent.sym.Kind) {
			p.sym.Kind = graph.Method
		}
	}

	symbols := make([]*graph.Symbol, 0, len(e.symbols))
	owner := make(map[string]*pending, len(e.symbols))
	alias := make(map[*pending]bool)
	for _, p := range e.symbols {
		p.sym.ID = graph.SymbolID(e.idPath, p.sym.QualifiedName, p.sym.Kind)
		if first, ok := owner[p.sym.ID]; ok {
			// A function refined to a method can collide with an explicit
			// one; the later declaration folds into the first.
			p.sym = first.sym
			alias[p] = true
			continue
		}
		owner[p.sym.ID] = p
		symbols = append(symbols, p.sym)
	}

	var edges []*graph.Edge
	for child, parent := range parents {
		if alias[child] || child.sym.ID == parent.sym.ID {
			continue
		}
		child.sym.ParentID = parent.sym.ID
		edges = append(edges, &graph.Edge{
			ID:         graph.EdgeID(graph.Contains, parent.sym.ID, child.sym.ID),
			Kind:       graph.Contains,
			SourceID:   parent.sym.ID,
			TargetID:   child.sym.ID,
			TargetName: child.sym.QualifiedName,
			Confidence: graph.Resolved,
			Path:       e.path,
			Ref:        child.sym.QualifiedName,
		})
	}

	for _, impl := range e.implsFor {
		if typ, ok := byQN[impl.typeQN]; ok && isTypeKind(typ.sym.Kind) {
			e.cands = append(e.cands, candidate{
				kind:   graph.Implements,
				source: typ,
				raw:    impl.trait,
				ref:    impl.ref,
				scopes: impl.scopes,
			})
		}
	}

	emitted := make(map[string]bool)
	for _, c := range e.cands {
		id := graph.EdgeID(c.kind, c.source.sym.ID, c.raw)
		if emitted[id] {
			continue
		}
		emitted[id] = true
		key, importKey := resolve.LookupKeys(c.ref, e.imports)
		edges = append(edges, &graph.Edge{
			ID:         id,
			Kind:       c.kind,
			SourceID:   c.source.sym.ID,
			TargetName: c.raw,
			Confidence: graph.Unresolved,
			Path:       e.path,
			Ref:        c.ref,
			Scopes:     c.scopes,
			LookupKey:  key,
			ImportKey:  importKey,
		})
	}

	sort.Slice(symbols, func(i, j int) bool {
		if symbols[i].Span.StartByte != symbols[j].Span.StartByte {
			return symbols[i].Span.StartByte < symbols[j].Span.StartByte
		}
		return symbols[i].ID < symbols[j].ID
	})
	sort.Slice(edges, func(i, j int) bool { return edges[i].ID < edges[j].ID })
	return symbols, edges
}

func preferParent(k graph.Kind) bool {
	return isTypeKind(k) || k == graph.Module || k == graph.Other
}

// ScopeChain lists the scopes visible from qn, innermost first, ending with
// the file scope "".
func ScopeChain(qn string) []string {
	parts := graph.SplitQN(qn)
	chain := make([]string, 0, len(parts)+1)
	for i := len(parts); i > 0; i-- {
		chain = append(chain, strings.Join(parts[:i], "."))
	}
	return append(chain, "")
}

func countLines(src []byte) int {
	if len(src) == 0 {
		return 0
	}
	n := bytes.Count(src, []byte{'\n'})
	if src[len(src)-1] != '\n' {
		n++
	}
	return n
}

// safeRowToLine converts a 0-based tree-sitter row to a 1-based line.
func safeRowToLine(row uint) int {
	return int(row) + 1
}
