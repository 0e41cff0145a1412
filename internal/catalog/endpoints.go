package catalog

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// MaxDescriptionLength caps tool descriptions built from operations.
const MaxDescriptionLength = 500

var httpMethods = map[string]int{"get": 0, "post": 1, "put": 2, "patch": 3, "delete": 4}

// Parameter is an OpenAPI parameter object.
type Parameter struct {
	Name        string
	In          string
	Required    bool
	Description string
	Schema      map[string]interface{}
}

// EndpointDescriptor is one operation of the API document.
type EndpointDescriptor struct {
	Path        string
	Method      string
	OperationID string
	Summary     string
	Description string
	Parameters  []Parameter
	RequestBody map[string]interface{}
	Tags        []string
	Deprecated  bool
}

// ToolDescription combines summary and description, falling back to
// "METHOD path".
func (e EndpointDescriptor) ToolDescription() string {
	desc := e.Summary
	switch {
	case desc != "" && e.Description != "":
		desc = desc + " - " + e.Description
	case desc == "":
		desc = e.Description
	}
	if desc == "" {
		desc = strings.ToUpper(e.Method) + " " + e.Path
	}
	if len(desc) > MaxDescriptionLength {
		desc = desc[:MaxDescriptionLength]
	}
	return desc
}

// ToolName converts an operation id into a tool name.
func ToolName(operationID string) string {
	name := strings.ReplaceAll(operationID, "-", "_")
	name = strings.ReplaceAll(name, " ", "_")
	return strings.ToLower(name)
}

// Endpoints lists the non-deprecated operations of doc, ordered by path and
// method. Path-level parameters are merged into each operation.
func Endpoints(doc *Document, logger *zap.Logger) []EndpointDescriptor {
	var out []EndpointDescriptor
	for path, rawItem := range doc.Paths() {
		item, ok := rawItem.(map[string]interface{})
		if !ok {
			continue
		}
		shared := parseParameters(item["parameters"])

		for method, rawOp := range item {
			lower := strings.ToLower(method)
			if _, ok := httpMethods[lower]; !ok {
				continue
			}
			op, ok := rawOp.(map[string]interface{})
			if !ok {
				continue
			}
			if deprecated, _ := op["deprecated"].(bool); deprecated {
				continue
			}

			e := EndpointDescriptor{
				Path:       path,
				Method:     lower,
				Parameters: mergeParameters(shared, parseParameters(op["parameters"])),
			}
			e.OperationID, _ = op["operationId"].(string)
			e.Summary, _ = op["summary"].(string)
			e.Description, _ = op["description"].(string)
			e.RequestBody, _ = op["requestBody"].(map[string]interface{})
			if tags, ok := op["tags"].([]interface{}); ok {
				for _, t := range tags {
					if s, ok := t.(string); ok {
						e.Tags = append(e.Tags, s)
					}
				}
			}
			if e.OperationID == "" && logger != nil {
				logger.Error("API endpoint has no operation id",
					zap.String("path", path),
					zap.String("method", lower),
				)
			}
			out = append(out, e)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return httpMethods[out[i].Method] < httpMethods[out[j].Method]
	})
	return out
}

func parseParameters(raw interface{}) []Parameter {
	list, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	params := make([]Parameter, 0, len(list))
	for _, item := range list {
		obj, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		p := Parameter{}
		p.Name, _ = obj["name"].(string)
		p.In, _ = obj["in"].(string)
		p.Required, _ = obj["required"].(bool)
		p.Description, _ = obj["description"].(string)
		p.Schema, _ = obj["schema"].(map[string]interface{})
		if p.Name == "" {
			continue
		}
		params = append(params, p)
	}
	return params
}

// mergeParameters lets operation parameters override path-level ones with
// the same name and location.
func mergeParameters(shared, own []Parameter) []Parameter {
	if len(shared) == 0 {
		return own
	}
	seen := map[string]bool{}
	for _, p := range own {
		seen[p.In+":"+p.Name] = true
	}
	out := make([]Parameter, 0, len(shared)+len(own))
	for _, p := range shared {
		if !seen[p.In+":"+p.Name] {
			out = append(out, p)
		}
	}
	return append(out, own...)
}

// QueryParam describes how a query argument is encoded.
type QueryParam struct {
	IsArray  bool
	Required bool
}

// EndpointBinding maps tool arguments onto an HTTP request.
type EndpointBinding struct {
	Path        string
	Method      string
	PathParams  []string
	QueryParams map[string]QueryParam
	ExpectsBody bool
}

// InputSchema builds the tool input schema for e. Path and query
// parameters become properties; path parameters are always required. A JSON
// request body is exposed as "body".
func InputSchema(e EndpointDescriptor) (map[string]interface{}, EndpointBinding) {
	properties := map[string]interface{}{}
	required := []string{}
	binding := EndpointBinding{
		Path:        e.Path,
		Method:      e.Method,
		PathParams:  []string{},
		QueryParams: map[string]QueryParam{},
	}

	for _, p := range e.Parameters {
		if p.In != "path" && p.In != "query" {
			continue
		}
		schema := jsonSchema(p.Schema, p.Description)
		properties[p.Name] = schema
		if p.Required || p.In == "path" {
			required = append(required, p.Name)
		}
		if p.In == "path" {
			binding.PathParams = append(binding.PathParams, p.Name)
			continue
		}
		t, _ := schema["type"].(string)
		binding.QueryParams[p.Name] = QueryParam{IsArray: t == "array", Required: p.Required}
	}

	if content, ok := e.RequestBody["content"].(map[string]interface{}); ok {
		if media, ok := content["application/json"].(map[string]interface{}); ok {
			schema, _ := media["schema"].(map[string]interface{})
			desc, _ := e.RequestBody["description"].(string)
			properties["body"] = jsonSchema(schema, desc)
			if req, _ := e.RequestBody["required"].(bool); req {
				required = append(required, "body")
			}
			binding.ExpectsBody = true
		}
	}

	return map[string]interface{}{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}, binding
}

// jsonSchema copies an OpenAPI schema object, which is close enough to JSON
// schema to be used directly. The parameter description fills a missing
// schema description.
func jsonSchema(schema map[string]interface{}, description string) map[string]interface{} {
	out := make(map[string]interface{}, len(schema)+1)
	for k, v := range schema {
		out[k] = v
	}
	if d, _ := out["description"].(string); d == "" {
		out["description"] = description
	}
	return out
}

// String identifies the endpoint in logs.
func (e EndpointDescriptor) String() string {
	return fmt.Sprintf("%s %s", strings.ToUpper(e.Method), e.Path)
}
