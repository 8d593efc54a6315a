package extract

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/DeusData/codegraph/internal/graph"
	"github.com/DeusData/codegraph/internal/lang"
	"github.com/DeusData/codegraph/internal/parser"
)

// parseImports extracts the bindings an import node introduces.
func parseImports(l lang.Language, node *tree_sitter.Node, src []byte) []graph.Binding {
	switch l {
	case lang.Python:
		if node.Kind() == "import_from_statement" {
			return parsePythonFromImport(node, src)
		}
		return parsePythonImport(node, src)
	case lang.Go:
		return parseGoImports(node, src)
	case lang.JavaScript, lang.TypeScript:
		return parseJSImport(node, src)
	case lang.Rust:
		return parseRustUse(node.ChildByFieldName("argument"), "", src)
	case lang.CPP:
		return parseCPPInclude(node, src)
	}
	return nil
}

// parsePythonImport handles "import a.b" and "import a.b as c".
func parsePythonImport(node *tree_sitter.Node, src []byte) []graph.Binding {
	var out []graph.Binding
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "dotted_name":
			name := parser.NodeText(child, src)
			out = append(out, graph.Binding{Alias: name, Module: name})
		case "aliased_import":
			name := parser.FieldText(child, "name", src)
			alias := parser.FieldText(child, "alias", src)
			if alias == "" {
				alias = name
			}
			out = append(out, graph.Binding{Alias: alias, Module: name})
		}
	}
	return out
}

// parsePythonFromImport handles "from m import a, b as c" and "from m import *".
func parsePythonFromImport(node *tree_sitter.Node, src []byte) []graph.Binding {
	moduleNode := node.ChildByFieldName("module_name")
	module := strings.TrimLeft(parser.NodeText(moduleNode, src), ".")

	var out []graph.Binding
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child == nil || (moduleNode != nil && child.StartByte() == moduleNode.StartByte()) {
			continue
		}
		switch child.Kind() {
		case "dotted_name":
			name := parser.NodeText(child, src)
			out = append(out, graph.Binding{Alias: graph.LastSegment(name), Module: module, Symbol: name})
		case "aliased_import":
			name := parser.FieldText(child, "name", src)
			alias := parser.FieldText(child, "alias", src)
			if alias == "" {
				alias = graph.LastSegment(name)
			}
			out = append(out, graph.Binding{Alias: alias, Module: module, Symbol: name})
		case "wildcard_import":
			out = append(out, graph.Binding{Alias: graph.Wildcard, Module: module})
		}
	}
	return out
}

// parseGoImports handles single and grouped import declarations.
func parseGoImports(node *tree_sitter.Node, src []byte) []graph.Binding {
	var out []graph.Binding
	parser.Walk(node, func(child *tree_sitter.Node) bool {
		if child.Kind() != "import_spec" {
			return true
		}
		path := stripQuotes(parser.FieldText(child, "path", src))
		if path == "" {
			return false
		}
		alias := lastPathSegment(path)
		switch name := parser.FieldText(child, "name", src); name {
		case "_":
			return false
		case ".":
			alias = graph.Wildcard
		case "":
		default:
			alias = name
		}
		out = append(out, graph.Binding{Alias: alias, Module: path})
		return false
	})
	return out
}

// parseJSImport handles default, namespace and named imports.
func parseJSImport(node *tree_sitter.Node, src []byte) []graph.Binding {
	module := stripQuotes(parser.FieldText(node, "source", src))
	if module == "" {
		return nil
	}
	var out []graph.Binding
	parser.Walk(node, func(n *tree_sitter.Node) bool {
		switch n.Kind() {
		case "import_clause":
			// A default import binds the exported declaration under a local
			// name; assume it carries that name.
			for i := uint(0); i < n.NamedChildCount(); i++ {
				if c := n.NamedChild(i); c != nil && c.Kind() == "identifier" {
					name := parser.NodeText(c, src)
					out = append(out, graph.Binding{Alias: name, Module: module, Symbol: name})
				}
			}
			return true
		case "namespace_import":
			for i := uint(0); i < n.NamedChildCount(); i++ {
				if c := n.NamedChild(i); c != nil && c.Kind() == "identifier" {
					out = append(out, graph.Binding{Alias: parser.NodeText(c, src), Module: module})
				}
			}
			return false
		case "import_specifier":
			name := parser.FieldText(n, "name", src)
			alias := parser.FieldText(n, "alias", src)
			if alias == "" {
				alias = name
			}
			out = append(out, graph.Binding{Alias: alias, Module: module, Symbol: name})
			return false
		}
		return true
	})
	return out
}

// parseRustUse flattens a use tree under prefix.
func parseRustUse(n *tree_sitter.Node, prefix string, src []byte) []graph.Binding {
	if n == nil {
		return nil
	}
	join := func(a, b string) string {
		if a == "" {
			return b
		}
		return a + "::" + b
	}
	switch n.Kind() {
	case "identifier", "scoped_identifier", "crate", "super":
		full := join(prefix, parser.NodeText(n, src))
		module, name := splitRustPath(full)
		if module == "" {
			return []graph.Binding{{Alias: name, Module: name}}
		}
		return []graph.Binding{{Alias: name, Module: module, Symbol: name}}
	case "self":
		// `use a::b::{self}` binds the module b.
		if prefix == "" {
			return nil
		}
		_, name := splitRustPath(prefix)
		return []graph.Binding{{Alias: name, Module: prefix}}
	case "use_as_clause":
		full := join(prefix, parser.FieldText(n, "path", src))
		module, name := splitRustPath(full)
		alias := parser.FieldText(n, "alias", src)
		if module == "" {
			return []graph.Binding{{Alias: alias, Module: name}}
		}
		return []graph.Binding{{Alias: alias, Module: module, Symbol: name}}
	case "use_wildcard":
		path := strings.TrimSuffix(strings.TrimSpace(parser.NodeText(n, src)), "*")
		return []graph.Binding{{Alias: graph.Wildcard, Module: join(prefix, strings.TrimSuffix(path, "::"))}}
	case "scoped_use_list":
		p := join(prefix, parser.FieldText(n, "path", src))
		return parseRustUse(n.ChildByFieldName("list"), p, src)
	case "use_list":
		var out []graph.Binding
		for i := uint(0); i < n.NamedChildCount(); i++ {
			out = append(out, parseRustUse(n.NamedChild(i), prefix, src)...)
		}
		return out
	}
	return nil
}

func splitRustPath(p string) (module, name string) {
	if i := strings.LastIndex(p, "::"); i >= 0 {
		return p[:i], p[i+2:]
	}
	return "", p
}

// parseCPPInclude handles quoted includes and using declarations. System
// includes name no indexed file and are skipped.
func parseCPPInclude(node *tree_sitter.Node, src []byte) []graph.Binding {
	switch node.Kind() {
	case "preproc_include":
		path := node.ChildByFieldName("path")
		if path == nil || path.Kind() != "string_literal" {
			return nil
		}
		return []graph.Binding{{Alias: graph.Wildcard, Module: stripQuotes(parser.NodeText(path, src))}}
	case "using_declaration":
		text := strings.TrimSuffix(strings.TrimSpace(parser.NodeText(node, src)), ";")
		text = strings.TrimSpace(strings.TrimPrefix(text, "using"))
		if ns, ok := strings.CutPrefix(text, "namespace"); ok {
			return []graph.Binding{{Alias: graph.Wildcard, Module: strings.TrimSpace(ns)}}
		}
		module, name := splitRustPath(text)
		if name == "" {
			return nil
		}
		return []graph.Binding{{Alias: name, Module: module, Symbol: name}}
	}
	return nil
}

// stripQuotes removes surrounding quotes from a string literal.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
		// Handle backtick quotes (Go raw strings)
		if s[0] == '`' && s[len(s)-1] == '`' {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// lastPathSegment returns the last segment of a /-separated path.
func lastPathSegment(path string) string {
	parts := strings.Split(path, "/")
	return parts[len(parts)-1]
}
