package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/croit/mcp-croit-ceph/internal/client"
	"github.com/croit/mcp-croit-ceph/internal/config"
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
        "parameters": [
          {"name": "pagination", "in": "query", "schema": {"$ref": "#/components/schemas/PaginationRequest"}},
          {"name": "fields", "in": "query", "description": "fields to return", "schema": {"type": "array", "items": {"type": "string"}}}
        ]
      },
      "post": {
        "operationId": "create-Pool",
        "tags": ["pools"],
        "requestBody": {
          "required": true,
          "content": {"application/json": {"schema": {"$ref": "#/components/schemas/Pool"}}}
        }
      }
    },
    "/pools/{name}": {
      "parameters": [{"name": "name", "in": "path", "schema": {"type": "string"}}],
      "get": {"operationId": "getPool", "tags": ["pools"]},
      "delete": {"operationId": "deletePool", "tags": ["pools"]},
      "put": {"operationId": "updatePool", "tags": ["pools"], "deprecated": true}
    },
    "/servers": {
      "get": {"operationId": "listServers", "description": "All servers", "tags": ["servers"]},
      "x-internal": {"operationId": "ignored"}
    },
    "/cluster/status": {
      "get": {"summary": "no id"}
    }
  },
  "components": {
    "schemas": {
      "Pool": {
        "type": "object",
        "properties": {
          "name": {"type": "string"},
          "parent": {"$ref": "#/components/schemas/Pool"},
          "rule": {"$ref": "#/components/schemas/Rule"}
        }
      },
      "Rule": {"type": "object", "properties": {"id": {"type": "integer"}}},
      "PaginationRequest": {"type": "object", "properties": {"where": {"$ref": "#/components/schemas/PaginationRequest"}}}
    }
  }
}`

func testDoc(t *testing.T) *Document {
	doc, err := ParseDocument([]byte(testDocument))
	require.NoError(t, err)
	return doc
}

func find(t *testing.T, endpoints []EndpointDescriptor, method, path string) EndpointDescriptor {
	for _, e := range endpoints {
		if e.Method == method && e.Path == path {
			return e
		}
	}
	t.Fatalf("endpoint %s %s not found", method, path)
	return EndpointDescriptor{}
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/swagger.json", r.URL.Path)
		assert.Equal(t, "Bearer doc-token", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(testDocument))
	}))
	defer srv.Close()

	c, err := client.New(&config.Config{
		Host:     srv.URL,
		APIToken: "doc-token", // pragma: allowlist secret
		Timeout:  5 * time.Second,
	}, zap.NewNop(), "test")
	require.NoError(t, err)
	defer c.Close()

	doc, err := Fetch(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, "croit API", doc.Title())
	assert.Equal(t, "2409.0", doc.Version())
	assert.Len(t, doc.Paths(), 4)
}

type statusGetter int

func (s statusGetter) Get(context.Context, string, url.Values) (*client.Response, error) {
	return &client.Response{StatusCode: int(s), Body: []byte("nope")}, nil
}

func TestFetchHTTPError(t *testing.T) {
	_, err := Fetch(context.Background(), statusGetter(http.StatusUnauthorized))
	require.Error(t, err)

	_, err = ParseDocument([]byte("not json"))
	assert.Error(t, err)
}

func TestLookup(t *testing.T) {
	doc := testDoc(t)

	rule, err := doc.Lookup("#/components/schemas/Rule")
	require.NoError(t, err)
	assert.Equal(t, "object", rule.(map[string]interface{})["type"])

	item, err := doc.Lookup("#/paths/~1pools~1{name}/get")
	require.NoError(t, err)
	assert.Equal(t, "getPool", item.(map[string]interface{})["operationId"])

	_, err = doc.Lookup("#/components/schemas/Missing")
	assert.Error(t, err)
}

func TestResolveCyclesAndPagination(t *testing.T) {
	doc := testDoc(t)
	r := NewResolver(doc, zap.NewNop())

	pool := r.ResolveValue(map[string]interface{}{"$ref": "#/components/schemas/Pool"}).(map[string]interface{})
	props := pool["properties"].(map[string]interface{})

	assert.Equal(t, map[string]interface{}{"$ref": "#/components/schemas/Pool", "_recursive": true}, props["parent"])
	rule := props["rule"].(map[string]interface{})
	assert.Equal(t, "object", rule["type"])

	pagination := r.ResolveValue(map[string]interface{}{"$ref": PaginationRef}).(map[string]interface{})
	assert.Equal(t, "string", pagination["type"])
	assert.Contains(t, pagination["description"], "_search")

	missing := r.ResolveValue(map[string]interface{}{"$ref": "#/nope"}).(map[string]interface{})
	assert.Equal(t, true, missing["_unresolved"])
}

func TestResolveSiblingsAreIndependent(t *testing.T) {
	doc := testDoc(t)
	r := NewResolver(doc, zap.NewNop())

	// the same ref twice on sibling branches is not a cycle
	out := r.ResolveValue([]interface{}{
		map[string]interface{}{"$ref": "#/components/schemas/Rule"},
		map[string]interface{}{"$ref": "#/components/schemas/Rule"},
	}).([]interface{})
	for _, item := range out {
		assert.Equal(t, "object", item.(map[string]interface{})["type"])
	}
}

func TestResolveDepthCeiling(t *testing.T) {
	schemas := map[string]interface{}{}
	for i := 0; i < 15; i++ {
		schemas[string(rune('a'+i))] = map[string]interface{}{
			"next": map[string]interface{}{"$ref": "#/components/schemas/" + string(rune('a'+i+1))},
		}
	}
	doc := &Document{Raw: map[string]interface{}{"components": map[string]interface{}{"schemas": schemas}}}
	r := NewResolver(doc, zap.NewNop())

	node := r.ResolveValue(map[string]interface{}{"$ref": "#/components/schemas/a"})
	depth := 0
	for {
		m := node.(map[string]interface{})
		if m["_max_depth"] == true {
			break
		}
		node = m["next"]
		depth++
	}
	assert.Equal(t, MaxResolveDepth, depth)
}

func TestResolveDocument(t *testing.T) {
	doc := testDoc(t)
	resolved := NewResolver(doc, zap.NewNop()).ResolveDocument()

	post := resolved.Paths()["/pools"].(map[string]interface{})["post"].(map[string]interface{})
	schema := post["requestBody"].(map[string]interface{})["content"].(map[string]interface{})["application/json"].(map[string]interface{})["schema"].(map[string]interface{})
	assert.Equal(t, "object", schema["type"])

	// the original document is untouched
	orig := doc.Paths()["/pools"].(map[string]interface{})["post"].(map[string]interface{})
	origSchema := orig["requestBody"].(map[string]interface{})["content"].(map[string]interface{})["application/json"].(map[string]interface{})["schema"].(map[string]interface{})
	assert.Equal(t, "#/components/schemas/Pool", origSchema["$ref"])
}

func TestEndpoints(t *testing.T) {
	endpoints := Endpoints(testDoc(t), zap.NewNop())

	// deprecated put and the x- key are skipped
	require.Len(t, endpoints, 6)
	assert.Equal(t, "/cluster/status", endpoints[0].Path)
	assert.Equal(t, "get", endpoints[1].Method)
	assert.Equal(t, "post", endpoints[2].Method)

	get := find(t, endpoints, "get", "/pools/{name}")
	require.Len(t, get.Parameters, 1)
	assert.Equal(t, "path", get.Parameters[0].In)

	assert.Equal(t, "All servers", find(t, endpoints, "get", "/servers").ToolDescription())
	assert.Equal(t, "GET /cluster/status", EndpointDescriptor{Method: "get", Path: "/cluster/status"}.ToolDescription())
	assert.Equal(t, "a - b", EndpointDescriptor{Summary: "a", Description: "b"}.ToolDescription())
}

func TestToolName(t *testing.T) {
	assert.Equal(t, "create_pool", ToolName("create-Pool"))
	assert.Equal(t, "list_all_pools", ToolName("List all-pools"))
}

func TestInputSchema(t *testing.T) {
	endpoints := Endpoints(testDoc(t), zap.NewNop())

	schema, binding := InputSchema(find(t, endpoints, "get", "/pools"))
	props := schema["properties"].(map[string]interface{})
	assert.Contains(t, props, "pagination")
	assert.Equal(t, "fields to return", props["fields"].(map[string]interface{})["description"])
	assert.Empty(t, schema["required"])
	assert.True(t, binding.QueryParams["fields"].IsArray)
	assert.False(t, binding.QueryParams["pagination"].IsArray)
	assert.False(t, binding.ExpectsBody)

	schema, binding = InputSchema(find(t, endpoints, "post", "/pools"))
	assert.Equal(t, []string{"body"}, schema["required"])
	assert.True(t, binding.ExpectsBody)

	schema, binding = InputSchema(find(t, endpoints, "get", "/pools/{name}"))
	assert.Equal(t, []string{"name"}, schema["required"])
	assert.Equal(t, []string{"name"}, binding.PathParams)
}

func TestCategorize(t *testing.T) {
	endpoints := Endpoints(testDoc(t), zap.NewNop())

	cats := Categorize(endpoints, 10)
	require.Len(t, cats, 3)
	assert.Equal(t, "pools", cats[0].Name)
	assert.Equal(t, "Pools", cats[0].Title)
	assert.Len(t, cats[0].Endpoints, 4)
	assert.Equal(t, "manage_pools", cats[0].ToolName())
	// untagged endpoints fall back to the first path segment
	assert.Equal(t, "cluster", cats[1].Name)

	assert.Len(t, Categorize(endpoints, 1), 1)
	assert.Equal(t, "manage_s3_buckets", Category{Name: "S3 Buckets"}.ToolName())
}

func TestCategoryResolve(t *testing.T) {
	pools := Categorize(Endpoints(testDoc(t), zap.NewNop()), 10)[0]

	tests := []struct {
		action, endpoint string
		wantMethod       string
		wantPath         string
	}{
		{ActionList, "", "get", "/pools"},
		{ActionGet, "", "get", "/pools/{name}"},
		{ActionCreate, "", "post", "/pools"},
		{ActionDelete, "", "delete", "/pools/{name}"},
		{ActionGet, "/pools/rbd", "get", "/pools/{name}"},
		{ActionCall, "pools/rbd", "get", "/pools/{name}"},
		{ActionDelete, "/pools/rbd", "delete", "/pools/{name}"},
	}
	for _, tt := range tests {
		e, err := pools.Resolve(tt.action, tt.endpoint)
		require.NoError(t, err, tt.action)
		assert.Equal(t, tt.wantMethod, e.Method, tt.action)
		assert.Equal(t, tt.wantPath, e.Path, tt.action)
	}

	_, err := pools.Resolve(ActionUpdate, "")
	assert.Error(t, err)
	_, err = pools.Resolve(ActionCall, "")
	assert.Error(t, err)
	_, err = pools.Resolve(ActionGet, "/servers")
	assert.Error(t, err)
}

func TestMatchPathAndParamName(t *testing.T) {
	assert.True(t, MatchPath("/pools/{name}", "/pools/rbd"))
	assert.False(t, MatchPath("/pools/{name}", "/pools"))
	assert.False(t, MatchPath("/pools/{name}", "/servers/1"))
	assert.Equal(t, "name", ParamName("/pools/{name}"))
	assert.Equal(t, "", ParamName("/pools"))
}

func TestBuildURLAndQuery(t *testing.T) {
	args := map[string]interface{}{
		"name":       "rbd pool",
		"id":         float64(12),
		"pagination": map[string]interface{}{"limit": float64(5)},
		"fields":     []interface{}{"name", "size"},
		"body":       map[string]interface{}{"x": 1},
	}

	assert.Equal(t, "https://croit.local/api/pools/rbd%20pool/12",
		BuildURL("https://croit.local/", "/pools/{name}/{id}", args))
	assert.Equal(t, []string{"x"}, MissingPathParams("/a/{x}/b"))
	assert.Empty(t, MissingPathParams("/a/b"))

	binding := EndpointBinding{QueryParams: map[string]QueryParam{
		"pagination": {},
		"fields":     {IsArray: true},
	}}
	q := BuildQuery(binding, args)
	assert.Equal(t, `{"limit":5}`, q.Get("pagination"))
	assert.Equal(t, []string{"name", "size"}, q["fields"])
	assert.NotContains(t, q, "name")
	assert.NotContains(t, q, "body")

	pairs, err := QueryFromPairs([]interface{}{
		map[string]interface{}{"name": "where", "value": map[string]interface{}{"status": "up"}},
		map[string]interface{}{"name": "limit", "value": float64(10)},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"status":"up"}`, pairs.Get("where"))
	assert.Equal(t, "10", pairs.Get("limit"))

	_, err = QueryFromPairs([]interface{}{"bad"})
	assert.Error(t, err)
}

func TestBuildRegistry(t *testing.T) {
	endpoints := Endpoints(testDoc(t), zap.NewNop())

	r, err := Build(endpoints, BuildOptions{EndpointsAsTools: true, CategoryTools: true}, zap.NewNop())
	require.NoError(t, err)

	// five endpoints with ids plus three categories
	assert.Equal(t, 8, r.Len())
	assert.Equal(t, map[string]int{"direct": 5, "category": 3}, r.CountByKind())

	e, ok := r.Lookup("create_pool")
	require.True(t, ok)
	assert.Equal(t, KindDirect, e.Kind)
	assert.True(t, e.Binding.ExpectsBody)

	cat, ok := r.Lookup("manage_pools")
	require.True(t, ok)
	assert.Equal(t, KindCategory, cat.Kind)
	assert.Len(t, cat.Category.Endpoints, 4)

	_, ok = r.Lookup("nope")
	assert.False(t, ok)

	assert.Error(t, r.Add(Entry{Name: "create_pool"}))
	assert.NoError(t, r.Add(Entry{Name: "croit_log_search", Kind: KindLogSearch}))
	assert.Equal(t, "log_search", KindLogSearch.String())
}

func TestBuildRegistryDescribeHook(t *testing.T) {
	endpoints := Endpoints(testDoc(t), zap.NewNop())
	r, err := Build(endpoints, BuildOptions{
		EndpointsAsTools: true,
		Describe:         func(d, p string) string { return d + " @" + p },
	}, zap.NewNop())
	require.NoError(t, err)

	e, _ := r.Lookup("listservers")
	assert.Equal(t, "All servers @/servers", e.Description)
}
