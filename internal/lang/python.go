package lang

func init() {
	Register(&LanguageSpec{
		Language:       Python,
		FileExtensions: []string{".py", ".pyi"},
		Declarations: []Rule{
			{NodeType: "function_definition", Kind: "function", Scope: true},
			{NodeType: "class_definition", Kind: "class", Scope: true},
			{NodeType: "assignment", Kind: "variable", NameField: "left"},
		},
		CallRules:        []CallRule{{NodeType: "call", Field: "function"}},
		ImportNodeTypes:  []string{"import_statement", "import_from_statement"},
		BaseClauseTypes:  []string{"argument_list"},
		TypeRefNodeTypes: []string{"type"},
		ReceiverNames:    []string{"self", "cls"},
		CommentNodeTypes: []string{"comment"},
	})
}
