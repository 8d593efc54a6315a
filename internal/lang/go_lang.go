package lang

func init() {
	Register(&LanguageSpec{
		Language:       Go,
		FileExtensions: []string{".go"},
		Declarations: []Rule{
			{NodeType: "function_declaration", Kind: "function", Scope: true},
			{NodeType: "method_declaration", Kind: "method", Scope: true},
			{NodeType: "method_elem", Kind: "method"},
			// Refined to struct/interface by the type expression.
			{NodeType: "type_spec", Kind: "other", Scope: true},
			{NodeType: "type_alias", Kind: "other"},
			{NodeType: "const_spec", Kind: "variable"},
			{NodeType: "var_spec", Kind: "variable"},
		},
		CallRules:        []CallRule{{NodeType: "call_expression", Field: "function"}},
		ImportNodeTypes:  []string{"import_declaration"},
		TypeRefNodeTypes: []string{"type_identifier", "qualified_type"},
		CommentNodeTypes: []string{"comment"},
	})
}
