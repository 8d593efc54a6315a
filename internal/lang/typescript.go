package lang

func init() {
	Register(typescriptSpec(GrammarTypeScript, []string{".ts", ".mts", ".cts"}))
	Register(typescriptSpec(GrammarTSX, []string{".tsx"}))
}

// typescriptSpec builds the shared table for the .ts and .tsx grammars.
func typescriptSpec(g Grammar, exts []string) *LanguageSpec {
	return &LanguageSpec{
		Language:       TypeScript,
		Grammar:        g,
		FileExtensions: exts,
		Declarations: []Rule{
			{NodeType: "function_declaration", Kind: "function", Scope: true},
			{NodeType: "generator_function_declaration", Kind: "function", Scope: true},
			{NodeType: "function_signature", Kind: "function"},
			{NodeType: "class_declaration", Kind: "class", Scope: true},
			{NodeType: "abstract_class_declaration", Kind: "class", Scope: true},
			{NodeType: "interface_declaration", Kind: "interface", Scope: true},
			{NodeType: "enum_declaration", Kind: "enum"},
			{NodeType: "type_alias_declaration", Kind: "other"},
			{NodeType: "internal_module", Kind: "module", Scope: true},
			{NodeType: "module", Kind: "module", Scope: true},
			{NodeType: "method_definition", Kind: "method", Scope: true},
			{NodeType: "method_signature", Kind: "method"},
			{NodeType: "abstract_method_signature", Kind: "method"},
			{NodeType: "variable_declarator", Kind: "variable", Scope: true},
		},
		CallRules: []CallRule{
			{NodeType: "call_expression", Field: "function"},
			{NodeType: "new_expression", Field: "constructor"},
		},
		ImportNodeTypes:       []string{"import_statement"},
		BaseClauseTypes:       []string{"extends_clause", "extends_type_clause"},
		ImplementsClauseTypes: []string{"implements_clause"},
		TypeRefNodeTypes:      []string{"type_identifier"},
		ReceiverNames:         []string{"this"},
		CommentNodeTypes:      []string{"comment"},
	}
}
