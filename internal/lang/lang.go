package lang

import (
	"path/filepath"
	"sort"
	"strings"
)

// Language represents a supported programming language.
type Language string

const (
	CPP        Language = "cpp"
	Go         Language = "go"
	JavaScript Language = "javascript"
	TypeScript Language = "typescript"
	Python     Language = "python"
	Rust       Language = "rust"
)

// Grammar names a concrete tree-sitter grammar. Most languages have exactly
// one; TypeScript has a second one for .tsx files.
type Grammar string

const (
	GrammarCPP        Grammar = "cpp"
	GrammarGo         Grammar = "go"
	GrammarJavaScript Grammar = "javascript"
	GrammarTypeScript Grammar = "typescript"
	GrammarTSX        Grammar = "tsx"
	GrammarPython     Grammar = "python"
	GrammarRust       Grammar = "rust"
)

// AllLanguages returns the fixed set of supported languages.
func AllLanguages() []Language {
	return []Language{CPP, Go, JavaScript, TypeScript, Python, Rust}
}

// IsSupported reports whether l is one of AllLanguages.
func IsSupported(l Language) bool {
	for _, s := range AllLanguages() {
		if s == l {
			return true
		}
	}
	return false
}

// Rule maps a declaration node type to a symbol kind.
type Rule struct {
	NodeType string
	// Kind is the graph symbol kind (function, class, struct, ...).
	Kind string
	// NameField is the field holding the declared name. Defaults to "name".
	NameField string
	// Scope marks declarations that qualify the names nested inside them.
	Scope bool
}

// CallRule describes a call-like node and the field holding its callee.
type CallRule struct {
	NodeType string
	Field    string
}

// LanguageSpec is the declarative extraction table for one grammar.
type LanguageSpec struct {
	Language       Language
	Grammar        Grammar
	FileExtensions []string

	Declarations []Rule
	CallRules    []CallRule

	ImportNodeTypes []string

	// BaseClauseTypes hold the parent types of a class-like declaration.
	BaseClauseTypes []string

	// ImplementsClauseTypes hold the interfaces a declaration implements.
	ImplementsClauseTypes []string

	// TypeRefNodeTypes are node kinds naming a type inside a body or signature.
	TypeRefNodeTypes []string

	// ReceiverNames are identifiers that denote the enclosing type (self, this).
	ReceiverNames []string

	CommentNodeTypes []string
}

// registry maps file extensions to language specs.
var registry = map[string]*LanguageSpec{}

// Register adds a LanguageSpec to the global registry.
func Register(spec *LanguageSpec) {
	if spec.Grammar == "" {
		spec.Grammar = Grammar(spec.Language)
	}
	for i := range spec.Declarations {
		if spec.Declarations[i].NameField == "" {
			spec.Declarations[i].NameField = "name"
		}
	}
	for _, ext := range spec.FileExtensions {
		registry[ext] = spec
	}
}

// ForExtension returns the LanguageSpec for a file extension (e.g. ".go").
func ForExtension(ext string) *LanguageSpec {
	return registry[strings.ToLower(ext)]
}

// ForPath returns the LanguageSpec for a file path, or nil.
func ForPath(path string) *LanguageSpec {
	return ForExtension(filepath.Ext(path))
}

// ForLanguage returns the primary LanguageSpec for a language.
func ForLanguage(l Language) *LanguageSpec {
	return ForGrammar(Grammar(l))
}

// ForGrammar returns the LanguageSpec registered for a grammar.
func ForGrammar(g Grammar) *LanguageSpec {
	for _, spec := range registry {
		if spec.Grammar == g {
			return spec
		}
	}
	return nil
}

// LanguageForExtension returns the Language for a file extension.
func LanguageForExtension(ext string) (Language, bool) {
	spec := ForExtension(ext)
	if spec == nil {
		return "", false
	}
	return spec.Language, true
}

// Extensions returns every registered extension for l, sorted.
func Extensions(l Language) []string {
	var out []string
	for ext, spec := range registry {
		if spec.Language == l {
			out = append(out, ext)
		}
	}
	sort.Strings(out)
	return out
}

// Rule returns the declaration rule for a node type, if any.
func (s *LanguageSpec) Rule(nodeType string) (Rule, bool) {
	for _, r := range s.Declarations {
		if r.NodeType == nodeType {
			return r, true
		}
	}
	return Rule{}, false
}

// CallField returns the callee field for a call-like node type.
func (s *LanguageSpec) CallField(nodeType string) (string, bool) {
	for _, c := range s.CallRules {
		if c.NodeType == nodeType {
			return c.Field, true
		}
	}
	return "", false
}

// IsImport reports whether nodeType is an import declaration.
func (s *LanguageSpec) IsImport(nodeType string) bool {
	return contains(s.ImportNodeTypes, nodeType)
}

// IsBaseClause reports whether nodeType lists parent types.
func (s *LanguageSpec) IsBaseClause(nodeType string) bool {
	return contains(s.BaseClauseTypes, nodeType)
}

// IsImplementsClause reports whether nodeType lists implemented interfaces.
func (s *LanguageSpec) IsImplementsClause(nodeType string) bool {
	return contains(s.ImplementsClauseTypes, nodeType)
}

// IsTypeRef reports whether nodeType names a type.
func (s *LanguageSpec) IsTypeRef(nodeType string) bool {
	return contains(s.TypeRefNodeTypes, nodeType)
}

// IsReceiver reports whether ident denotes the enclosing type.
func (s *LanguageSpec) IsReceiver(ident string) bool {
	return contains(s.ReceiverNames, ident)
}

// IsComment reports whether nodeType is a comment.
func (s *LanguageSpec) IsComment(nodeType string) bool {
	return contains(s.CommentNodeTypes, nodeType)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ParseLanguages parses a comma-separated language filter. Unknown names are
// returned separately so the caller can warn about them.
func ParseLanguages(csv string) (known []Language, unknown []string) {
	seen := map[Language]bool{}
	for _, part := range strings.Split(csv, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		if name == "" {
			continue
		}
		l := normalizeName(name)
		if !IsSupported(l) {
			unknown = append(unknown, name)
			continue
		}
		if !seen[l] {
			seen[l] = true
			known = append(known, l)
		}
	}
	return known, unknown
}

func normalizeName(name string) Language {
	switch name {
	case "c++", "cxx", "cc":
		return CPP
	case "golang":
		return Go
	case "js", "jsx":
		return JavaScript
	case "ts", "tsx":
		return TypeScript
	case "py":
		return Python
	case "rs":
		return Rust
	}
	return Language(name)
}
