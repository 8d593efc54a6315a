// Package parser adapts tree-sitter grammars to the fixed language set.
package parser

import (
	"fmt"
	"sync"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	tree_sitter_cpp "github.com/tree-sitter/tree-sitter-cpp/bindings/go"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"github.com/DeusData/codegraph/internal/diag"
	"github.com/DeusData/codegraph/internal/lang"
)

var (
	languagesOnce sync.Once
	languages     map[lang.Grammar]*tree_sitter.Language
	parserPools   map[lang.Grammar]*sync.Pool
)

func initLanguages() {
	languagesOnce.Do(func() {
		languages = map[lang.Grammar]*tree_sitter.Language{
			lang.GrammarCPP:        tree_sitter.NewLanguage(tree_sitter_cpp.Language()),
			lang.GrammarGo:         tree_sitter.NewLanguage(tree_sitter_go.Language()),
			lang.GrammarJavaScript: tree_sitter.NewLanguage(tree_sitter_javascript.Language()),
			lang.GrammarTypeScript: tree_sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript()),
			lang.GrammarTSX:        tree_sitter.NewLanguage(tree_sitter_typescript.LanguageTSX()),
			lang.GrammarPython:     tree_sitter.NewLanguage(tree_sitter_python.Language()),
			lang.GrammarRust:       tree_sitter.NewLanguage(tree_sitter_rust.Language()),
		}

		parserPools = make(map[lang.Grammar]*sync.Pool, len(languages))
		for g, tsLang := range languages {
			tsLang := tsLang
			parserPools[g] = &sync.Pool{
				New: func() any {
					p := tree_sitter.NewParser()
					if err := p.SetLanguage(tsLang); err != nil {
						panic(fmt.Sprintf("set language: %v", err))
					}
					return p
				},
			}
		}
	})
}

// GetLanguage returns the tree-sitter Language for a grammar.
func GetLanguage(g lang.Grammar) (*tree_sitter.Language, error) {
	initLanguages()
	tsLang, ok := languages[g]
	if !ok {
		return nil, diag.Newf(diag.UnsupportedLanguage, "no grammar for %q", g)
	}
	return tsLang, nil
}

// Tree is a parsed file. Close must be called when done.
type Tree struct {
	*tree_sitter.Tree
	Source []byte
	Spec   *lang.LanguageSpec
}

// HasErrors reports whether error recovery produced ERROR or MISSING nodes.
func (t *Tree) HasErrors() bool {
	root := t.RootNode()
	return root != nil && root.HasError()
}

// Parse parses source with the grammar of spec.
// Malformed input still yields a best-effort tree; only a missing tree is a
// ParseFailure.
func Parse(spec *lang.LanguageSpec, source []byte) (*Tree, error) {
	if spec == nil {
		return nil, diag.Newf(diag.UnsupportedLanguage, "no language spec")
	}
	initLanguages()

	pool, ok := parserPools[spec.Grammar]
	if !ok {
		return nil, diag.Newf(diag.UnsupportedLanguage, "unsupported language: %s", spec.Language)
	}

	p, _ := pool.Get().(*tree_sitter.Parser)
	if p == nil {
		return nil, diag.Newf(diag.ParseFailure, "no parser for grammar %s", spec.Grammar)
	}
	tree := p.Parse(source, nil)
	pool.Put(p)

	if tree == nil {
		return nil, diag.Newf(diag.ParseFailure, "parse failed for language %s", spec.Language)
	}
	return &Tree{Tree: tree, Source: source, Spec: spec}, nil
}

// ParseLanguage parses source for a language tag from the supported set.
func ParseLanguage(l lang.Language, source []byte) (*Tree, error) {
	spec := lang.ForLanguage(l)
	if spec == nil {
		return nil, diag.Newf(diag.UnsupportedLanguage, "unsupported language: %s", l)
	}
	return Parse(spec, source)
}

// WalkFunc is called for each node during AST traversal.
// Return false to skip children.
type WalkFunc func(node *tree_sitter.Node) bool

// Walk traverses the AST in depth-first order.
func Walk(node *tree_sitter.Node, fn WalkFunc) {
	if node == nil {
		return
	}
	if !fn(node) {
		return
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child != nil {
			Walk(child, fn)
		}
	}
}

// NodeText returns the text content of a node.
func NodeText(node *tree_sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	start, end := node.StartByte(), node.EndByte()
	if end > uint(len(source)) || start > end {
		return ""
	}
	return string(source[start:end])
}

// FieldText returns the text of a named field child, or "".
func FieldText(node *tree_sitter.Node, field string, source []byte) string {
	if node == nil {
		return ""
	}
	return NodeText(node.ChildByFieldName(field), source)
}
