package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/croit/mcp-croit-ceph/internal/catalog"
	"github.com/croit/mcp-croit-ceph/internal/client"
	mcperrors "github.com/croit/mcp-croit-ceph/internal/errors"
)

// EndpointTool exposes a single API operation as a tool.
type EndpointTool struct {
	*BaseTool
	entry    catalog.Entry
	pipeline *APIPipeline
}

// NewEndpointTool creates a tool for a direct registry entry.
func NewEndpointTool(c *client.Client, entry catalog.Entry, pipeline *APIPipeline, logger *zap.Logger) *EndpointTool {
	return &EndpointTool{BaseTool: NewBaseTool(c, logger), entry: entry, pipeline: pipeline}
}

// Name returns the tool name
func (t *EndpointTool) Name() string { return t.entry.Name }

// Description returns the tool description
func (t *EndpointTool) Description() string { return t.entry.Description }

// InputSchema adds the response controls to the operation's own parameters.
// A control never shadows a parameter of the same name.
func (t *EndpointTool) InputSchema() interface{} {
	schema := make(map[string]interface{}, len(t.entry.InputSchema))
	for k, v := range t.entry.InputSchema {
		schema[k] = v
	}
	own, _ := t.entry.InputSchema["properties"].(map[string]interface{})
	properties := make(map[string]interface{}, len(own)+6)
	for k, v := range own {
		properties[k] = v
	}
	for k, v := range responseControlProperties() {
		if _, taken := properties[k]; !taken {
			properties[k] = v
		}
	}
	schema["properties"] = properties
	return schema
}

// Annotations derives hints from the HTTP method.
func (t *EndpointTool) Annotations() *mcp.ToolAnnotations {
	if t.entry.Endpoint == nil {
		return DefaultAnnotations(t.entry.Name)
	}
	return MethodAnnotations(t.entry.Endpoint.Method, t.entry.Name)
}

// Execute maps the arguments onto path, query and body.
func (t *EndpointTool) Execute(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	binding := t.entry.Binding
	if binding == nil {
		return NewInternalErrorResult(fmt.Errorf("tool %s has no endpoint binding", t.entry.Name)), nil
	}

	for _, name := range binding.PathParams {
		if v, ok := args[name]; !ok || v == nil || v == "" {
			return NewStructuredErrorResult(mcperrors.NewMissingParameter(name)), nil
		}
	}
	for name, qp := range binding.QueryParams {
		if _, ok := args[name]; qp.Required && !ok {
			return NewStructuredErrorResult(mcperrors.NewMissingParameter(name)), nil
		}
	}

	call := APICall{
		Method: binding.Method,
		Path:   catalog.BuildPath(binding.Path, args),
		Query:  catalog.BuildQuery(*binding, args),
	}
	if binding.ExpectsBody {
		call.Body = args["body"]
	}

	controls := make(map[string]interface{}, len(args))
	for k, v := range args {
		if _, isQuery := binding.QueryParams[k]; isQuery || containsString(binding.PathParams, k) {
			continue
		}
		controls[k] = v
	}
	if err := readResponseControls(controls, &call); err != nil {
		return NewMissingArgumentResult(err), nil
	}

	return t.envelopeResult(t.pipeline.Execute(ctx, t.Client(ctx), call))
}

// CategoryTool serves all endpoints of a category behind one action-based
// tool.
type CategoryTool struct {
	*BaseTool
	entry    catalog.Entry
	pipeline *APIPipeline
}

// NewCategoryTool creates a tool for a category registry entry.
func NewCategoryTool(c *client.Client, entry catalog.Entry, pipeline *APIPipeline, logger *zap.Logger) *CategoryTool {
	return &CategoryTool{BaseTool: NewBaseTool(c, logger), entry: entry, pipeline: pipeline}
}

// Name returns the tool name
func (t *CategoryTool) Name() string { return t.entry.Name }

// Description returns the tool description
func (t *CategoryTool) Description() string { return t.entry.Description }

// InputSchema returns the shared category schema plus the response controls.
func (t *CategoryTool) InputSchema() interface{} {
	schema := make(map[string]interface{}, len(t.entry.InputSchema))
	for k, v := range t.entry.InputSchema {
		schema[k] = v
	}
	own, _ := t.entry.InputSchema["properties"].(map[string]interface{})
	properties := make(map[string]interface{}, len(own)+6)
	for k, v := range responseControlProperties() {
		properties[k] = v
	}
	for k, v := range own {
		properties[k] = v
	}
	properties["method"] = map[string]interface{}{
		"type":        "string",
		"enum":        callMethods,
		"description": "HTTP method for the call action (default get)",
	}
	schema["properties"] = properties
	return schema
}

// Annotations returns default hints: the delete action is destructive.
func (t *CategoryTool) Annotations() *mcp.ToolAnnotations {
	title := t.entry.Name
	if t.entry.Category != nil {
		title = "Manage " + t.entry.Category.Title
	}
	return DefaultAnnotations(title)
}

// Execute resolves the action to an endpoint and calls it.
func (t *CategoryTool) Execute(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	if t.entry.Category == nil {
		return NewInternalErrorResult(fmt.Errorf("tool %s has no category", t.entry.Name)), nil
	}
	action, err := GetStringParam(args, "action", true)
	if err != nil {
		return NewMissingArgumentResult(err), nil
	}
	action = strings.ToLower(action)
	if !containsString(catalog.Actions, action) {
		return NewStructuredErrorResult(mcperrors.NewInvalidInput(
			fmt.Sprintf("unknown action %q", action)).
			WithSuggestion("Use one of: " + strings.Join(catalog.Actions, ", "))), nil
	}
	explicit, err := GetStringParam(args, "endpoint", false)
	if err != nil {
		return NewMissingArgumentResult(err), nil
	}

	resolveAs := action
	if action == catalog.ActionCall && explicit != "" {
		method, err := GetStringParam(args, "method", false)
		if err != nil {
			return NewMissingArgumentResult(err), nil
		}
		resolveAs = actionForMethod(method)
	}

	endpoint, err := t.entry.Category.Resolve(resolveAs, explicit)
	if err != nil {
		return HandleError(err, t.entry.Name), nil
	}

	pathValues, err := GetObjectParam(args, "path_params", false)
	if err != nil {
		return NewMissingArgumentResult(err), nil
	}
	path, err := categoryPath(endpoint.Path, explicit, pathValues, args["id"])
	if err != nil {
		return HandleError(err, t.entry.Name), nil
	}

	params, err := GetObjectParam(args, "params", false)
	if err != nil {
		return NewMissingArgumentResult(err), nil
	}

	call := APICall{
		Method: endpoint.Method,
		Path:   path,
		Query:  queryOrEmpty(catalog.QueryFromMap(params)),
	}
	if body, ok := args["body"]; ok && body != nil {
		call.Body = body
	}
	if err := readResponseControls(args, &call); err != nil {
		return NewMissingArgumentResult(err), nil
	}

	t.logger.Debug("Resolved category action",
		zap.String("tool", t.entry.Name),
		zap.String("action", action),
		zap.String("endpoint", endpoint.String()),
	)
	return t.envelopeResult(t.pipeline.Execute(ctx, t.Client(ctx), call))
}

// actionForMethod picks the endpoint of an explicit path by HTTP method.
func actionForMethod(method string) string {
	switch strings.ToLower(method) {
	case "post":
		return catalog.ActionCreate
	case "put", "patch":
		return catalog.ActionUpdate
	case "delete":
		return catalog.ActionDelete
	}
	return catalog.ActionGet
}

// categoryPath fills the template of the resolved endpoint. A concrete
// explicit path is used as given; otherwise placeholders come from
// pathValues, and the last one may come from id.
func categoryPath(template, explicit string, pathValues map[string]interface{}, id interface{}) (string, error) {
	if explicit != "" && len(catalog.MissingPathParams(explicit)) == 0 {
		if !strings.HasPrefix(explicit, "/") {
			explicit = "/" + explicit
		}
		return explicit, nil
	}

	values := make(map[string]interface{}, len(pathValues)+1)
	for k, v := range pathValues {
		values[k] = v
	}
	if last := catalog.ParamName(template); last != "" && id != nil && id != "" {
		if _, set := values[last]; !set {
			values[last] = id
		}
	}

	path := catalog.BuildPath(template, values)
	if missing := catalog.MissingPathParams(path); len(missing) > 0 {
		return "", mcperrors.NewMissingParameter(missing[0]).
			WithSuggestion(fmt.Sprintf("Pass id or path_params for %s (endpoint %s)",
				strings.Join(missing, ", "), template))
	}
	return path, nil
}
