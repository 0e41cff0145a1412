package tools

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/croit/mcp-croit-ceph/internal/catalog"
	"github.com/croit/mcp-croit-ceph/internal/client"
	mcperrors "github.com/croit/mcp-croit-ceph/internal/errors"
)

// responseControlProperties are the response-shaping arguments shared by
// every tool that calls the cluster API.
func responseControlProperties() map[string]interface{} {
	return map[string]interface{}{
		"fields": map[string]interface{}{
			"type":        "array",
			"items":       map[string]interface{}{"type": "string"},
			"description": "Only return these fields of each item, e.g. [\"id\", \"name\", \"status\"]",
		},
		"filters": map[string]interface{}{
			"type": "object",
			"description": "Filter items before they are returned. Equality {\"status\": \"error\"}, " +
				"membership {\"status\": [\"error\", \"down\"]}, regex {\"name\": \"~^osd\"}, " +
				"numeric {\"size\": \">1000\"}, text {\"_text\": \"timeout\"}, " +
				"suffixes name__contains, size__gt, size__gte, size__lt, size__lte, status__ne, name__regex",
		},
		"no_optimize": map[string]interface{}{
			"type":        "boolean",
			"description": "Return the full response without truncation or summaries",
		},
		"intent": map[string]interface{}{
			"type":        "string",
			"description": "The question behind the call, e.g. 'how many osds are down'. Reshapes list responses (counts, errors only, status summary)",
		},
		"page_size": map[string]interface{}{
			"type":        "integer",
			"description": "Wrap list responses with a cursor for the next page",
		},
		"compress": map[string]interface{}{
			"type":        "boolean",
			"description": "Return large list payloads gzip-compressed and base64-encoded",
		},
	}
}

// readResponseControls fills the response controls of call from args.
func readResponseControls(args map[string]interface{}, call *APICall) error {
	var err error
	if call.Fields, err = GetStringArrayParam(args, "fields", false); err != nil {
		return err
	}
	if call.Filters, err = GetObjectParam(args, "filters", false); err != nil {
		return err
	}
	if call.NoOptimize, err = GetBoolParam(args, "no_optimize", false); err != nil {
		return err
	}
	if call.Intent, err = GetStringParam(args, "intent", false); err != nil {
		return err
	}
	if call.PageSize, err = GetIntParam(args, "page_size", false); err != nil {
		return err
	}
	if call.Compress, err = GetBoolParam(args, "compress", false); err != nil {
		return err
	}
	return nil
}

// envelopeResult formats an API envelope; codes of 400 and above are
// flagged as errors.
func (t *BaseTool) envelopeResult(env map[string]interface{}) (*mcp.CallToolResult, error) {
	result, err := t.FormatResponse(env)
	if err != nil {
		return nil, err
	}
	if code, ok := env["code"].(int); ok && code >= http.StatusBadRequest {
		result.IsError = true
	}
	return result, nil
}

// ListAPIEndpointsTool lists the cluster API paths.
type ListAPIEndpointsTool struct {
	*BaseTool
	doc            *catalog.Document
	offerWholeSpec bool
}

// NewListAPIEndpointsTool creates the tool. With offerWholeSpec the whole
// OpenAPI document is returned instead of its paths.
func NewListAPIEndpointsTool(c *client.Client, doc *catalog.Document, offerWholeSpec bool, logger *zap.Logger) *ListAPIEndpointsTool {
	return &ListAPIEndpointsTool{BaseTool: NewBaseTool(c, logger), doc: doc, offerWholeSpec: offerWholeSpec}
}

// Name returns the tool name
func (t *ListAPIEndpointsTool) Name() string { return "list_api_endpoints" }

// Description returns the tool description
func (t *ListAPIEndpointsTool) Description() string {
	if t.offerWholeSpec {
		return "Return the croit cluster OpenAPI document. Use it to find the endpoint, method and body for call_api_endpoint."
	}
	return "List the croit cluster API paths with their operations and parameters. " +
		"Pass 'search' to only list paths containing a term, e.g. 'pools' or 'osds'. " +
		"Use get_reference_schema to expand $ref entries and call_api_endpoint to call a path."
}

// InputSchema returns the input schema
func (t *ListAPIEndpointsTool) InputSchema() interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"search": map[string]interface{}{
				"type":        "string",
				"description": "Only include paths containing this term (case-insensitive)",
			},
		},
	}
}

// Annotations returns tool hints
func (t *ListAPIEndpointsTool) Annotations() *mcp.ToolAnnotations {
	return ReadOnlyAnnotations("List API Endpoints")
}

// Execute returns the paths, or the whole document.
func (t *ListAPIEndpointsTool) Execute(_ context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	search, err := GetStringParam(args, "search", false)
	if err != nil {
		return NewMissingArgumentResult(err), nil
	}

	if t.offerWholeSpec && search == "" {
		return t.FormatResponse(t.doc.Raw)
	}

	paths := t.doc.Paths()
	if search != "" {
		term := strings.ToLower(search)
		matched := make(map[string]interface{})
		for p, v := range paths {
			if strings.Contains(strings.ToLower(p), term) {
				matched[p] = v
			}
		}
		if len(matched) == 0 {
			return NewToolResultErrorWithSuggestion(
				fmt.Sprintf("No API path contains %q", search),
				"Try a broader term, or call list_api_endpoints without search"), nil
		}
		paths = matched
	}
	return t.FormatResponse(paths)
}

// GetReferenceSchemaTool expands a $ref of the OpenAPI document.
type GetReferenceSchemaTool struct {
	*BaseTool
	doc *catalog.Document
}

// NewGetReferenceSchemaTool creates the tool over the unresolved document.
func NewGetReferenceSchemaTool(c *client.Client, doc *catalog.Document, logger *zap.Logger) *GetReferenceSchemaTool {
	return &GetReferenceSchemaTool{BaseTool: NewBaseTool(c, logger), doc: doc}
}

// Name returns the tool name
func (t *GetReferenceSchemaTool) Name() string { return "get_reference_schema" }

// Description returns the tool description
func (t *GetReferenceSchemaTool) Description() string {
	return "Get the schema a $ref points to, e.g. '#/components/schemas/Pool'. " +
		"Set resolve=true to also expand the references inside it."
}

// InputSchema returns the input schema
func (t *GetReferenceSchemaTool) InputSchema() interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"reference_path": map[string]interface{}{
				"type":        "string",
				"description": "The $ref value, e.g. #/components/schemas/Pool",
			},
			"resolve": map[string]interface{}{
				"type":        "boolean",
				"description": "Expand nested references (cycles and deep chains are marked, not expanded)",
			},
		},
		"required": []string{"reference_path"},
	}
}

// Annotations returns tool hints
func (t *GetReferenceSchemaTool) Annotations() *mcp.ToolAnnotations {
	return ReadOnlyAnnotations("Get Reference Schema")
}

// Execute looks the reference up.
func (t *GetReferenceSchemaTool) Execute(_ context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	ref, err := GetStringParam(args, "reference_path", true)
	if err != nil {
		return NewMissingArgumentResult(err), nil
	}
	resolve, err := GetBoolParam(args, "resolve", false)
	if err != nil {
		return NewMissingArgumentResult(err), nil
	}

	schema, err := t.doc.Lookup(ref)
	if err != nil {
		return HandleError(err, "get_reference_schema"), nil
	}
	if resolve {
		schema = catalog.NewResolver(t.doc, t.logger).ResolveValue(schema)
	}
	return t.FormatResponse(schema)
}

var callMethods = []string{"get", "post", "put", "patch", "delete"}

// CallAPIEndpointTool calls any cluster API endpoint.
type CallAPIEndpointTool struct {
	*BaseTool
	pipeline *APIPipeline
}

// NewCallAPIEndpointTool creates the tool.
func NewCallAPIEndpointTool(c *client.Client, pipeline *APIPipeline, logger *zap.Logger) *CallAPIEndpointTool {
	return &CallAPIEndpointTool{BaseTool: NewBaseTool(c, logger), pipeline: pipeline}
}

// Name returns the tool name
func (t *CallAPIEndpointTool) Name() string { return "call_api_endpoint" }

// Description returns the tool description
func (t *CallAPIEndpointTool) Description() string {
	return "Call a croit cluster API endpoint. The path is relative to /api, e.g. /pools or /servers/1/disks. " +
		"Large list responses are truncated or summarized; the summary carries a response id for search_last_result. " +
		"Use fields and filters to keep responses small."
}

// InputSchema returns the input schema
func (t *CallAPIEndpointTool) InputSchema() interface{} {
	properties := responseControlProperties()
	properties["endpoint"] = map[string]interface{}{
		"type":        "string",
		"description": "API path relative to /api with parameters filled in, e.g. /pools/rbd",
	}
	properties["method"] = map[string]interface{}{
		"type":        "string",
		"enum":        callMethods,
		"description": "HTTP method",
	}
	properties["body"] = map[string]interface{}{
		"type":        "object",
		"description": "JSON request body",
	}
	properties["queryParams"] = map[string]interface{}{
		"type": "array",
		"items": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"name":  map[string]interface{}{"type": "string"},
				"value": map[string]interface{}{},
			},
			"required": []string{"name", "value"},
		},
		"description": "Query parameters as name/value pairs. Object values are JSON-encoded, lists repeated.",
	}
	properties["default_limit"] = map[string]interface{}{
		"type":        "boolean",
		"description": "Add a conservative limit parameter to list endpoints that accept one",
	}
	return map[string]interface{}{
		"type":       "object",
		"properties": properties,
		"required":   []string{"endpoint", "method"},
	}
}

// Annotations returns tool hints
func (t *CallAPIEndpointTool) Annotations() *mcp.ToolAnnotations {
	return DefaultAnnotations("Call API Endpoint")
}

// Execute runs the call through the pipeline.
func (t *CallAPIEndpointTool) Execute(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	endpoint, err := GetStringParam(args, "endpoint", true)
	if err != nil {
		return NewMissingArgumentResult(err), nil
	}
	method, err := GetStringParam(args, "method", true)
	if err != nil {
		return NewMissingArgumentResult(err), nil
	}
	method = strings.ToLower(method)
	if !containsString(callMethods, method) {
		return NewStructuredErrorResult(mcperrors.NewInvalidInput(
			fmt.Sprintf("unsupported method %q", method)).
			WithSuggestion("Use one of: " + strings.Join(callMethods, ", "))), nil
	}
	if missing := catalog.MissingPathParams(endpoint); len(missing) > 0 {
		return NewStructuredErrorResult(mcperrors.NewInvalidInput(
			"endpoint still contains placeholders: " + strings.Join(missing, ", ")).
			WithSuggestion("Fill in path parameters, e.g. /pools/{name} becomes /pools/rbd")), nil
	}

	call := APICall{Method: method, Path: endpoint}
	if body, ok := args["body"]; ok && body != nil {
		call.Body = body
	}
	pairs, err := GetArrayParam(args, "queryParams", false)
	if err != nil {
		return NewMissingArgumentResult(err), nil
	}
	if len(pairs) > 0 {
		if call.Query, err = catalog.QueryFromPairs(pairs); err != nil {
			return NewMissingArgumentResult(err), nil
		}
	}
	if err := readResponseControls(args, &call); err != nil {
		return NewMissingArgumentResult(err), nil
	}
	if call.DefaultLimit, err = GetBoolParam(args, "default_limit", false); err != nil {
		return NewMissingArgumentResult(err), nil
	}

	return t.envelopeResult(t.pipeline.Execute(ctx, t.Client(ctx), call))
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// queryOrEmpty keeps nil queries out of the pipeline.
func queryOrEmpty(q url.Values) url.Values {
	if q == nil {
		return url.Values{}
	}
	return q
}
