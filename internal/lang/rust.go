package lang

func init() {
	Register(&LanguageSpec{
		Language:       Rust,
		FileExtensions: []string{".rs"},
		Declarations: []Rule{
			{NodeType: "function_item", Kind: "function", Scope: true},
			{NodeType: "function_signature_item", Kind: "method"},
			{NodeType: "struct_item", Kind: "struct", Scope: true},
			{NodeType: "union_item", Kind: "struct", Scope: true},
			{NodeType: "enum_item", Kind: "enum", Scope: true},
			{NodeType: "trait_item", Kind: "interface", Scope: true},
			{NodeType: "type_item", Kind: "other"},
			{NodeType: "mod_item", Kind: "module", Scope: true},
			{NodeType: "const_item", Kind: "variable"},
			{NodeType: "static_item", Kind: "variable"},
		},
		CallRules:        []CallRule{{NodeType: "call_expression", Field: "function"}},
		ImportNodeTypes:  []string{"use_declaration"},
		BaseClauseTypes:  []string{"trait_bounds"},
		TypeRefNodeTypes: []string{"type_identifier"},
		ReceiverNames:    []string{"self", "Self"},
		CommentNodeTypes: []string{"line_comment", "block_comment"},
	})
}
