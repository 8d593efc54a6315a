package lang

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForExtension(t *testing.T) {
	tests := []struct {
		ext     string
		lang    Language
		grammar Grammar
	}{
		{".py", Python, GrammarPython},
		{".go", Go, GrammarGo},
		{".js", JavaScript, GrammarJavaScript},
		{".mjs", JavaScript, GrammarJavaScript},
		{".cjs", JavaScript, GrammarJavaScript},
		{".ts", TypeScript, GrammarTypeScript},
		{".tsx", TypeScript, GrammarTSX},
		{".rs", Rust, GrammarRust},
		{".cpp", CPP, GrammarCPP},
		{".c++", CPP, GrammarCPP},
		{".h", CPP, GrammarCPP},
		{".hxx", CPP, GrammarCPP},
		{".CPP", CPP, GrammarCPP},
	}
	for _, tt := range tests {
		spec := ForExtension(tt.ext)
		if !assert.NotNil(t, spec, tt.ext) {
			continue
		}
		assert.Equal(t, tt.lang, spec.Language, tt.ext)
		assert.Equal(t, tt.grammar, spec.Grammar, tt.ext)
	}
}

func TestForLanguage(t *testing.T) {
	for _, l := range AllLanguages() {
		spec := ForLanguage(l)
		require.NotNil(t, spec, l)
		assert.NotEmpty(t, spec.Declarations, "%s has no declaration rules", l)
		for _, r := range spec.Declarations {
			assert.NotEmpty(t, r.NameField, "%s rule %s has empty NameField after Register", l, r.NodeType)
		}
	}
}

func TestUnknownExtension(t *testing.T) {
	for _, ext := range []string{".xyz", ".java", ".c", ""} {
		assert.Nil(t, ForExtension(ext), ext)
	}
}

func TestGoRules(t *testing.T) {
	spec := ForLanguage(Go)
	r, ok := spec.Rule("method_declaration")
	require.True(t, ok)
	assert.EqualValues(t, "method", r.Kind)
	f, ok := spec.CallField("call_expression")
	require.True(t, ok)
	assert.Equal(t, "function", f)
	assert.True(t, spec.IsImport("import_declaration"))
}

func TestParseLanguages(t *testing.T) {
	known, unknown := ParseLanguages("py, Go,ts,tsx,java,,rust")
	assert.Equal(t, []Language{Python, Go, TypeScript, Rust}, known)
	assert.Equal(t, []string{"java"}, unknown)
}

func TestExtensions(t *testing.T) {
	exts := Extensions(TypeScript)
	assert.Contains(t, exts, ".ts")
	assert.Contains(t, exts, ".tsx")
}
