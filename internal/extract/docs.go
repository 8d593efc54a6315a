package extract

import (
	"strings"
	"unicode"
	"unicode/utf8"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/DeusData/codegraph/internal/lang"
	"github.com/DeusData/codegraph/internal/parser"
)

const maxSignatureLen = 240

// signature is the declaration head: everything before the body, collapsed
// onto one line.
func signature(node *tree_sitter.Node, src []byte) string {
	end := node.EndByte()
	if body := node.ChildByFieldName("body"); body != nil {
		end = body.StartByte()
	}
	start := node.StartByte()
	if end > uint(len(src)) || start >= end {
		return ""
	}
	head := string(src[start:end])
	if i := strings.IndexByte(head, '\n'); i >= 0 && node.ChildByFieldName("body") == nil {
		head = head[:i]
	}
	head = strings.Join(strings.Fields(head), " ")
	head = strings.TrimRight(head, " {:=")
	if len(head) > maxSignatureLen {
		head = head[:maxSignatureLen]
	}
	return head
}

func (e *extractor) visibility(node *tree_sitter.Node, name string) string {
	switch e.spec.Language {
	case lang.Go:
		r, _ := utf8.DecodeRuneInString(name)
		if unicode.IsUpper(r) {
			return "public"
		}
		return "private"
	case lang.Python:
		if strings.HasPrefix(name, "_") && !strings.HasSuffix(name, "__") {
			return "private"
		}
		return "public"
	case lang.Rust:
		for i := uint(0); i < node.NamedChildCount(); i++ {
			if c := node.NamedChild(i); c != nil && c.Kind() == "visibility_modifier" {
				return "public"
			}
		}
		return "private"
	case lang.JavaScript, lang.TypeScript:
		if strings.HasPrefix(name, "#") {
			return "private"
		}
		for i := uint(0); i < node.NamedChildCount(); i++ {
			if c := node.NamedChild(i); c != nil && c.Kind() == "accessibility_modifier" {
				return parser.NodeText(c, e.src)
			}
		}
		return "public"
	}
	return ""
}

// docstring returns the Python body docstring, or the comment block directly
// above the declaration for other languages.
func (e *extractor) docstring(node *tree_sitter.Node) string {
	if e.spec.Language == lang.Python {
		return e.pythonDocstring(node)
	}
	var lines []string
	target := node
	// Comments sit above export/template/declaration wrappers, not the
	// declaration itself.
	for target.Parent() != nil && isDocWrapper(target.Parent().Kind()) {
		target = target.Parent()
	}
	prevRow := target.StartPosition().Row
	for sib := target.PrevNamedSibling(); sib != nil; sib = sib.PrevNamedSibling() {
		if !e.spec.IsComment(sib.Kind()) || sib.EndPosition().Row+1 < prevRow {
			break
		}
		lines = append([]string{cleanComment(parser.NodeText(sib, e.src))}, lines...)
		prevRow = sib.StartPosition().Row
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func (e *extractor) pythonDocstring(node *tree_sitter.Node) string {
	body := node.ChildByFieldName("body")
	if body == nil || body.NamedChildCount() == 0 {
		return ""
	}
	first := body.NamedChild(0)
	if first == nil || first.Kind() != "expression_statement" || first.NamedChildCount() == 0 {
		return ""
	}
	str := first.NamedChild(0)
	if str == nil || str.Kind() != "string" {
		return ""
	}
	text := parser.NodeText(str, e.src)
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if strings.HasPrefix(text, q) && strings.HasSuffix(text, q) && len(text) >= 2*len(q) {
			return strings.TrimSpace(text[len(q) : len(text)-len(q)])
		}
	}
	return strings.TrimSpace(text)
}

func cleanComment(c string) string {
	c = strings.TrimSpace(c)
	c = strings.TrimPrefix(c, "/**")
	c = strings.TrimPrefix(c, "/*")
	c = strings.TrimSuffix(c, "*/")
	var out []string
	for _, line := range strings.Split(c, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "/!#*")
		out = append(out, strings.TrimSpace(line))
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func isDocWrapper(kind string) bool {
	switch kind {
	case "export_statement", "template_declaration", "decorated_definition",
		"type_declaration", "const_declaration", "var_declaration",
		"lexical_declaration", "variable_declaration", "declaration":
		return true
	}
	return false
}
