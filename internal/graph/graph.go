// Package graph holds the in-memory model of symbols, edges and file records
// and the rules for their identity.
package graph

import (
	"encoding/hex"
	"strings"

	"github.com/zeebo/xxh3"
)

// Kind is a symbol kind.
type Kind string

const (
	Function  Kind = "function"
	Method    Kind = "method"
	Class     Kind = "class"
	Struct    Kind = "struct"
	Interface Kind = "interface"
	Enum      Kind = "enum"
	Variable  Kind = "variable"
	Module    Kind = "module"
	Other     Kind = "other"
)

// AllKinds lists every symbol kind.
func AllKinds() []Kind {
	return []Kind{Function, Method, Class, Struct, Interface, Enum, Variable, Module, Other}
}

// ParseKind maps a user-facing name to a Kind.
func ParseKind(s string) (Kind, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "fn", "func":
		return Function, true
	case "trait":
		return Interface, true
	case "namespace", "mod":
		return Module, true
	case "const", "constant", "var":
		return Variable, true
	}
	for _, k := range AllKinds() {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// Callable reports whether a call expression may target this kind.
// Types count because calling a class or struct name constructs it.
func (k Kind) Callable() bool {
	switch k {
	case Function, Method, Class, Struct:
		return true
	}
	return false
}

// IsType reports whether the kind can be a base or implemented type.
func (k Kind) IsType() bool {
	switch k {
	case Class, Struct, Interface, Enum, Other:
		return true
	}
	return false
}

// EdgeKind is a relationship kind.
type EdgeKind string

const (
	Calls      EdgeKind = "calls"
	Inherits   EdgeKind = "inherits"
	Implements EdgeKind = "implements"
	References EdgeKind = "references"
	Contains   EdgeKind = "contains"
)

// AllEdgeKinds lists every relationship kind.
func AllEdgeKinds() []EdgeKind {
	return []EdgeKind{Calls, Inherits, Implements, References, Contains}
}

// Accepts reports whether a symbol of kind k is a valid target for edges of
// kind e.
func (e EdgeKind) Accepts(k Kind) bool {
	switch e {
	case Calls:
		return k.Callable()
	case Inherits, Implements:
		return k.IsType()
	case References:
		return k != Module
	}
	return true
}

// Confidence is the resolution outcome of an edge target.
type Confidence string

const (
	Resolved   Confidence = "resolved"
	Ambiguous  Confidence = "ambiguous"
	Unresolved Confidence = "unresolved"
)

// Span locates a declaration. Lines are 1-based.
type Span struct {
	StartByte int `json:"start_byte"`
	EndByte   int `json:"end_byte"`
	StartLine int `json:"start_line"`
	EndLine   int `json:"end_line"`
}

// Symbol is a node of the graph.
type Symbol struct {
	ID            string
	Kind          Kind
	Name          string
	QualifiedName string
	Path          string
	Language      string
	Span          Span
	Fingerprint   string
	Signature     string
	Visibility    string
	Docstring     string
	ParentID      string
}

// Edge is a directed relationship. SourceID always names an existing symbol;
// TargetID is set only when Confidence is Resolved.
type Edge struct {
	ID         string
	Kind       EdgeKind
	SourceID   string
	TargetID   string
	TargetName string
	Confidence Confidence
	Candidates []string

	// Resolution context, kept so the edge can be re-resolved without
	// reparsing its file.
	Path      string
	Ref       string
	Scopes    []string
	LookupKey string
	// ImportKey is the imported name an aliased reference is also looked
	// up under; empty when it equals LookupKey.
	ImportKey string
}

// Binding is an import visible in a file. Alias "*" marks a wildcard import
// whose Module only narrows lookups.
type Binding struct {
	Alias  string `json:"alias"`
	Module string `json:"module,omitempty"`
	Symbol string `json:"symbol,omitempty"`
}

// Wildcard is the alias used for glob imports and includes.
const Wildcard = "*"

// FileRecord describes an indexed file.
type FileRecord struct {
	Path string
	// IdentityPath is the path symbol IDs are derived from. It differs from
	// Path only after a rename with unchanged content.
	IdentityPath string
	Language     string
	Fingerprint  string
	Commit       string
	LineCount    int
	Imports      []Binding
}

// SymbolID derives the stable identifier of a declaration.
func SymbolID(identityPath, qualifiedName string, kind Kind) string {
	return hash128(identityPath, qualifiedName, string(kind))
}

// EdgeID derives the identifier of a relationship from its source and raw
// target, so re-extraction of unchanged code yields the same edge.
func EdgeID(kind EdgeKind, sourceID, target string) string {
	return hash128(string(kind), sourceID, target)
}

func hash128(parts ...string) string {
	h := xxh3.New()
	for i, p := range parts {
		if i > 0 {
			_, _ = h.Write([]byte{0})
		}
		_, _ = h.WriteString(p)
	}
	sum := h.Sum128().Bytes()
	return hex.EncodeToString(sum[:])
}

// Fingerprint hashes content for change detection.
func Fingerprint(content []byte) string {
	sum := xxh3.Hash128(content).Bytes()
	return hex.EncodeToString(sum[:])
}

// SplitQN splits a qualified name into its segments.
func SplitQN(qn string) []string {
	if qn == "" {
		return nil
	}
	return strings.Split(qn, ".")
}

// JoinQN joins a scope and a name, skipping empty parts.
func JoinQN(scope, name string) string {
	switch {
	case scope == "":
		return name
	case name == "":
		return scope
	}
	return scope + "." + name
}

// LastSegment returns the final segment of a qualified name.
func LastSegment(qn string) string {
	if i := strings.LastIndexByte(qn, '.'); i >= 0 {
		return qn[i+1:]
	}
	return qn
}
