package tools

// Metadata returns discovery metadata
func (t *CallAPIEndpointTool) Metadata() *ToolMetadata {
	return &ToolMetadata{
		Categories:   []ToolCategory{CategoryAPI},
		Keywords:     []string{"api", "endpoint", "request", "pool", "osd", "server", "rbd", "s3"},
		Complexity:   ComplexityIntermediate,
		UseCases:     []string{"Read cluster state", "Change cluster configuration"},
		RelatedTools: []string{"list_api_endpoints", "get_reference_schema", "search_last_result"},
	}
}

// Metadata returns discovery metadata
func (t *LogSearchTool) Metadata() *ToolMetadata {
	return &ToolMetadata{
		Categories:   []ToolCategory{CategoryLogs},
		Keywords:     []string{"logs", "journal", "errors", "osd", "mon", "mgr", "rgw", "mds", "kernel"},
		Complexity:   ComplexitySimple,
		UseCases:     []string{"Investigate an incident", "Find errors of a Ceph daemon"},
		RelatedTools: []string{"croit_log_shortcut", "croit_debug_templates", "croit_log_servers", "search_last_result"},
	}
}

// Metadata returns discovery metadata
func (t *DebugTemplatesTool) Metadata() *ToolMetadata {
	return &ToolMetadata{
		Categories:   []ToolCategory{CategoryLogs},
		Keywords:     []string{"debug", "template", "scenario", "slow requests", "osd flapping", "pg"},
		Complexity:   ComplexitySimple,
		UseCases:     []string{"Start an investigation of a known Ceph problem"},
		RelatedTools: []string{"croit_log_search"},
	}
}

// Metadata returns discovery metadata
func (t *SearchLastResultTool) Metadata() *ToolMetadata {
	return &ToolMetadata{
		Categories:   []ToolCategory{CategoryCache},
		Keywords:     []string{"drill down", "filter", "summary", "response id"},
		Complexity:   ComplexityAdvanced,
		UseCases:     []string{"Inspect items behind a summarized response"},
		RelatedTools: []string{"call_api_endpoint", "croit_log_search"},
	}
}
