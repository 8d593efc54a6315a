package lang

func init() {
	Register(&LanguageSpec{
		Language:       CPP,
		FileExtensions: []string{".cpp", ".cc", ".cxx", ".c++", ".h", ".hpp", ".hxx", ".hh"},
		Declarations: []Rule{
			// Names come from the declarator chain, not a name field.
			{NodeType: "function_definition", Kind: "function", NameField: "declarator", Scope: true},
			{NodeType: "class_specifier", Kind: "class", Scope: true},
			{NodeType: "struct_specifier", Kind: "struct", Scope: true},
			{NodeType: "union_specifier", Kind: "struct", Scope: true},
			{NodeType: "enum_specifier", Kind: "enum"},
			{NodeType: "namespace_definition", Kind: "module", Scope: true},
			{NodeType: "alias_declaration", Kind: "other"},
			{NodeType: "declaration", Kind: "variable", NameField: "declarator"},
		},
		CallRules: []CallRule{
			{NodeType: "call_expression", Field: "function"},
			{NodeType: "new_expression", Field: "type"},
		},
		ImportNodeTypes:  []string{"preproc_include", "using_declaration"},
		BaseClauseTypes:  []string{"base_class_clause"},
		TypeRefNodeTypes: []string{"type_identifier"},
		ReceiverNames:    []string{"this"},
		CommentNodeTypes: []string{"comment"},
	})
}
