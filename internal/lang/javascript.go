package lang

func init() {
	Register(&LanguageSpec{
		Language:       JavaScript,
		FileExtensions: []string{".js", ".jsx", ".mjs", ".cjs"},
		Declarations: []Rule{
			{NodeType: "function_declaration", Kind: "function", Scope: true},
			{NodeType: "generator_function_declaration", Kind: "function", Scope: true},
			{NodeType: "class_declaration", Kind: "class", Scope: true},
			{NodeType: "method_definition", Kind: "method", Scope: true},
			// Refined to function when the value is a function expression.
			{NodeType: "variable_declarator", Kind: "variable", Scope: true},
		},
		CallRules: []CallRule{
			{NodeType: "call_expression", Field: "function"},
			{NodeType: "new_expression", Field: "constructor"},
		},
		ImportNodeTypes:  []string{"import_statement"},
		BaseClauseTypes:  []string{"class_heritage"},
		ReceiverNames:    []string{"this"},
		CommentNodeTypes: []string{"comment"},
	})
}
