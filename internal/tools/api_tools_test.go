package tools

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/croit/mcp-croit-ceph/internal/catalog"
)

const testDocument = `{
  "openapi": "3.0.1",
  "info": {"title": "croit API", "version": "2409.0"},
  "paths": {
    "/pools": {
      "get": {
        "operationId": "listPools",
        "summary": "List pools",
        "tags": ["pools"],
        "parameters": [{"name": "limit", "in": "query", "schema": {"type": "integer"}}]
      },
      "post": {
        "operationId": "createPool",
        "tags": ["pools"],
        "requestBody": {"content": {"application/json": {"schema": {"$ref": "#/components/schemas/Pool"}}}}
      }
    },
    "/pools/{name}": {
      "parameters": [{"name": "name", "in": "path", "required": true, "schema": {"type": "string"}}],
      "get": {"operationId": "getPool", "tags": ["pools"]},
      "delete": {"operationId": "deletePool", "tags": ["pools"]}
    },
    "/servers": {
      "get": {"operationId": "listServers", "tags": ["servers"]}
    }
  },
  "components": {
    "schemas": {
      "Pool": {"type": "object", "properties": {"name": {"type": "string"}, "rule": {"$ref": "#/components/schemas/Rule"}}},
      "Rule": {"type": "object", "properties": {"id": {"type": "integer"}}}
    }
  }
}`

func testDoc(t *testing.T) *catalog.Document {
	t.Helper()
	doc, err := catalog.ParseDocument([]byte(testDocument))
	require.NoError(t, err)
	return doc
}

func testRegistry(t *testing.T) *catalog.Registry {
	t.Helper()
	r, err := catalog.Build(catalog.Endpoints(testDoc(t), zap.NewNop()),
		catalog.BuildOptions{EndpointsAsTools: true, CategoryTools: true}, zap.NewNop())
	require.NoError(t, err)
	return r
}

// recordedRequest is what the API double saw.
type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Body   map[string]interface{}
}

type apiRecorder struct {
	mu       sync.Mutex
	requests []recordedRequest
}

func (a *apiRecorder) last(t *testing.T) recordedRequest {
	t.Helper()
	a.mu.Lock()
	defer a.mu.Unlock()
	require.NotEmpty(t, a.requests)
	return a.requests[len(a.requests)-1]
}

func (a *apiRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rec := recordedRequest{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery}
	if data, _ := io.ReadAll(r.Body); len(data) > 0 {
		_ = json.Unmarshal(data, &rec.Body)
	}
	a.mu.Lock()
	a.requests = append(a.requests, rec)
	a.mu.Unlock()

	if r.URL.Path == "/api/pools/missing" {
		http.Error(w, "no such pool", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]interface{}{"ok": true})
}

func TestCallAPIEndpoint(t *testing.T) {
	api := &apiRecorder{}
	c, _ := newTestClient(t, api)
	p, _ := newTestPipeline()
	tool := NewCallAPIEndpointTool(c, p, zap.NewNop())

	result, err := tool.Execute(context.Background(), map[string]interface{}{
		"endpoint": "/pools",
		"method":   "POST",
		"body":     map[string]interface{}{"name": "rbd"},
		"queryParams": []interface{}{
			map[string]interface{}{"name": "dry", "value": true},
		},
	})
	require.NoError(t, err)
	assert.False(t, result.IsError)

	env := resultJSON(t, result)
	assert.Equal(t, float64(200), env["code"])

	req := api.last(t)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/api/pools", req.Path)
	assert.Equal(t, "dry=true", req.Query)
	assert.Equal(t, "rbd", req.Body["name"])
}

func TestCallAPIEndpointValidation(t *testing.T) {
	api := &apiRecorder{}
	c, _ := newTestClient(t, api)
	p, _ := newTestPipeline()
	tool := NewCallAPIEndpointTool(c, p, zap.NewNop())

	tests := []struct {
		name string
		args map[string]interface{}
		want string
	}{
		{"missing endpoint", map[string]interface{}{"method": "get"}, "endpoint"},
		{"bad method", map[string]interface{}{"endpoint": "/pools", "method": "head"}, "unsupported method"},
		{"placeholder", map[string]interface{}{"endpoint": "/pools/{name}", "method": "get"}, "placeholders"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := tool.Execute(context.Background(), tt.args)
			require.NoError(t, err)
			assert.True(t, result.IsError)
			assert.Contains(t, resultText(t, result), tt.want)
		})
	}
	assert.Empty(t, api.requests)
}

func TestCallAPIEndpointHTTPError(t *testing.T) {
	c, _ := newTestClient(t, &apiRecorder{})
	p, _ := newTestPipeline()
	tool := NewCallAPIEndpointTool(c, p, zap.NewNop())

	result, err := tool.Execute(context.Background(), map[string]interface{}{"endpoint": "/pools/missing", "method": "get"})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	env := resultJSON(t, result)
	assert.Equal(t, float64(404), env["code"])
	assert.Contains(t, env["error"], "no such pool")
}

func TestListAPIEndpoints(t *testing.T) {
	doc := testDoc(t)

	tool := NewListAPIEndpointsTool(nil, doc, false, zap.NewNop())
	result, err := tool.Execute(context.Background(), map[string]interface{}{"search": "POOL"})
	require.NoError(t, err)
	paths := resultJSON(t, result)
	assert.Len(t, paths, 2)
	assert.Contains(t, paths, "/pools/{name}")

	result, err = tool.Execute(context.Background(), map[string]interface{}{"search": "rgw"})
	require.NoError(t, err)
	assert.True(t, result.IsError)

	whole := NewListAPIEndpointsTool(nil, doc, true, zap.NewNop())
	result, err = whole.Execute(context.Background(), map[string]interface{}{})
	require.NoError(t, err)
	assert.Contains(t, resultJSON(t, result), "components")
}

func TestGetReferenceSchema(t *testing.T) {
	tool := NewGetReferenceSchemaTool(nil, testDoc(t), zap.NewNop())

	result, err := tool.Execute(context.Background(), map[string]interface{}{
		"reference_path": "#/components/schemas/Pool",
		"resolve":        true,
	})
	require.NoError(t, err)
	require.False(t, result.IsError)
	schema := resultJSON(t, result)
	rule := schema["properties"].(map[string]interface{})["rule"].(map[string]interface{})
	assert.Equal(t, "object", rule["type"])

	result, err = tool.Execute(context.Background(), map[string]interface{}{"reference_path": "#/components/schemas/Nope"})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestEndpointTool(t *testing.T) {
	api := &apiRecorder{}
	c, _ := newTestClient(t, api)
	p, _ := newTestPipeline()
	r := testRegistry(t)

	entry, ok := r.Lookup("getpool")
	require.True(t, ok)
	tool := NewEndpointTool(c, entry, p, zap.NewNop())
	assert.True(t, tool.Annotations().ReadOnlyHint)

	result, err := tool.Execute(context.Background(), map[string]interface{}{})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "name")

	result, err = tool.Execute(context.Background(), map[string]interface{}{"name": "rbd"})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, "/api/pools/rbd", api.last(t).Path)

	list, ok := r.Lookup("listpools")
	require.True(t, ok)
	listTool := NewEndpointTool(c, list, p, zap.NewNop())
	props := listTool.InputSchema().(map[string]interface{})["properties"].(map[string]interface{})
	assert.Contains(t, props, "limit")
	assert.Contains(t, props, "fields")

	_, err = listTool.Execute(context.Background(), map[string]interface{}{"limit": float64(5), "fields": []interface{}{"name"}})
	require.NoError(t, err)
	assert.Equal(t, "limit=5", api.last(t).Query)
}

func TestCategoryTool(t *testing.T) {
	api := &apiRecorder{}
	c, _ := newTestClient(t, api)
	p, _ := newTestPipeline()
	r := testRegistry(t)

	entry, ok := r.Lookup("manage_pools")
	require.True(t, ok)
	tool := NewCategoryTool(c, entry, p, zap.NewNop())

	result, err := tool.Execute(context.Background(), map[string]interface{}{"action": "list"})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, "/api/pools", api.last(t).Path)

	_, err = tool.Execute(context.Background(), map[string]interface{}{"action": "delete", "id": "old"})
	require.NoError(t, err)
	req := api.last(t)
	assert.Equal(t, http.MethodDelete, req.Method)
	assert.Equal(t, "/api/pools/old", req.Path)

	_, err = tool.Execute(context.Background(), map[string]interface{}{
		"action": "create",
		"body":   map[string]interface{}{"name": "fresh"},
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh", api.last(t).Body["name"])

	_, err = tool.Execute(context.Background(), map[string]interface{}{
		"action":   "call",
		"endpoint": "/pools/rbd",
		"params":   map[string]interface{}{"verbose": true},
	})
	require.NoError(t, err)
	req = api.last(t)
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "/api/pools/rbd", req.Path)
	assert.Equal(t, "verbose=true", req.Query)

	_, err = tool.Execute(context.Background(), map[string]interface{}{
		"action":   "call",
		"endpoint": "/pools/rbd",
		"method":   "delete",
	})
	require.NoError(t, err)
	assert.Equal(t, http.MethodDelete, api.last(t).Method)
}

func TestCategoryToolErrors(t *testing.T) {
	api := &apiRecorder{}
	c, _ := newTestClient(t, api)
	p, _ := newTestPipeline()
	entry, _ := testRegistry(t).Lookup("manage_pools")
	tool := NewCategoryTool(c, entry, p, zap.NewNop())

	result, err := tool.Execute(context.Background(), map[string]interface{}{"action": "explode"})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "unknown action")

	result, err = tool.Execute(context.Background(), map[string]interface{}{"action": "get"})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "name")

	result, err = tool.Execute(context.Background(), map[string]interface{}{"action": "call"})
	require.NoError(t, err)
	assert.True(t, result.IsError)

	assert.Empty(t, api.requests)
}

func TestCategoryPath(t *testing.T) {
	path, err := categoryPath("/pools/{pool}/images/{image}", "", map[string]interface{}{"pool": "rbd"}, "vm-1")
	require.NoError(t, err)
	assert.Equal(t, "/pools/rbd/images/vm-1", path)

	path, err = categoryPath("/pools/{name}", "pools/rbd", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "/pools/rbd", path)

	_, err = categoryPath("/pools/{pool}/images/{image}", "", nil, "vm-1")
	assert.Error(t, err)
}
