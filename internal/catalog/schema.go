package catalog

import (
	"go.uber.org/zap"
)

// MaxResolveDepth bounds the number of nested $ref expansions on one branch.
const MaxResolveDepth = 10

// PaginationRef is replaced by PaginationSchema during resolution; the
// schema it points to is self-referential.
const PaginationRef = "#/components/schemas/PaginationRequest"

// PaginationSchema describes the JSON-in-a-string pagination parameter.
var PaginationSchema = map[string]interface{}{
	"type": "string",
	"description": `Pagination is JSON encoded in a string.
The JSON (optionally) contains the fields "after", "limit", "where" and "sortBy".
"after" and "limit" are both integers, specifying the offset in all the data and the limit for this page.
"sortBy" is a list of JSON objects. Each object looks like this: {"column": "...", "order": "ASC"}.
"column" is the field to sort by, "order" is either "ASC" or "DESC".
"where" is also a list of JSON objects. Each object has an operation as key: {"<operation>": <object>}.
Operations are:
- "_and", <object> then is a list of "where" objects to AND together.
- "_or", <object> then is a list of "where" objects to OR together.
- "_not", <object> then is a single "where" object whose condition is inverted.
- "_search", <object> is a string to do full-text search with.
Alternatively, instead of an operation a where object can look like this: {"<field name>": <field condition object>}.
In this case, a filter will be applied to filter fields based on the given condition.
The field condition object looks like this: {"<filter op>": <filter value>}
Valid filter ops are:
- "_eq", the field value needs to be equal the filter value
- "_neq", not equal
- "_gt", greater than
- "_gte", greater than or equals
- "_lt", less than
- "_lte", less than or equals
- "_regex", matches regex (filter value is a regex)
- "_in", in the filter value as element of a list or substring of a string
- "_nin", not in
- "_contains", field contains the filter value`,
}

// Node is a decoded JSON schema fragment.
type Node interface {
	// Value converts the node back to plain decoded JSON.
	Value() interface{}
}

// ObjectNode is a JSON object that is not a pure reference.
type ObjectNode struct {
	Fields map[string]Node
}

// ArrayNode is a JSON array.
type ArrayNode struct {
	Items []Node
}

// RefNode is an object whose only key is "$ref".
type RefNode struct {
	Ref string
}

// PrimitiveNode is a string, number, bool or null.
type PrimitiveNode struct {
	V interface{}
}

// Value returns the fields as a plain map.
func (n ObjectNode) Value() interface{} {
	out := make(map[string]interface{}, len(n.Fields))
	for k, f := range n.Fields {
		out[k] = f.Value()
	}
	return out
}

// Value returns the items as a plain slice.
func (n ArrayNode) Value() interface{} {
	out := make([]interface{}, len(n.Items))
	for i, item := range n.Items {
		out[i] = item.Value()
	}
	return out
}

// Value returns the {"$ref": ...} object.
func (n RefNode) Value() interface{} {
	return map[string]interface{}{"$ref": n.Ref}
}

// Value returns the scalar unchanged.
func (n PrimitiveNode) Value() interface{} {
	return n.V
}

// NodeOf converts decoded JSON into a Node tree.
func NodeOf(v interface{}) Node {
	switch t := v.(type) {
	case map[string]interface{}:
		if ref, ok := t["$ref"].(string); ok && len(t) == 1 {
			return RefNode{Ref: ref}
		}
		fields := make(map[string]Node, len(t))
		for k, f := range t {
			fields[k] = NodeOf(f)
		}
		return ObjectNode{Fields: fields}
	case []interface{}:
		items := make([]Node, len(t))
		for i, item := range t {
			items[i] = NodeOf(item)
		}
		return ArrayNode{Items: items}
	}
	return PrimitiveNode{V: v}
}

// Resolver inlines $ref targets from a document.
type Resolver struct {
	doc      *Document
	logger   *zap.Logger
	maxDepth int
}

// NewResolver creates a resolver over doc.
func NewResolver(doc *Document, logger *zap.Logger) *Resolver {
	return &Resolver{doc: doc, logger: logger, maxDepth: MaxResolveDepth}
}

// Resolve returns node with references inlined. visited holds the refs
// expanded on the current branch and is not modified; depth counts those
// expansions. Cycles and the depth ceiling leave placeholders behind.
func (r *Resolver) Resolve(node Node, visited map[string]bool, depth int) Node {
	switch n := node.(type) {
	case RefNode:
		if n.Ref == PaginationRef {
			return NodeOf(PaginationSchema)
		}
		if visited[n.Ref] {
			r.logger.Debug("Recursive reference", zap.String("ref", n.Ref))
			return NodeOf(map[string]interface{}{"$ref": n.Ref, "_recursive": true})
		}
		if depth >= r.maxDepth {
			return NodeOf(map[string]interface{}{"$ref": n.Ref, "_max_depth": true})
		}
		target, err := r.doc.Lookup(n.Ref)
		if err != nil {
			r.logger.Warn("Unresolvable reference", zap.String("ref", n.Ref))
			return NodeOf(map[string]interface{}{"$ref": n.Ref, "_unresolved": true})
		}
		branch := make(map[string]bool, len(visited)+1)
		for k := range visited {
			branch[k] = true
		}
		branch[n.Ref] = true
		return r.Resolve(NodeOf(target), branch, depth+1)

	case ObjectNode:
		fields := make(map[string]Node, len(n.Fields))
		for k, f := range n.Fields {
			fields[k] = r.Resolve(f, visited, depth)
		}
		return ObjectNode{Fields: fields}

	case ArrayNode:
		items := make([]Node, len(n.Items))
		for i, item := range n.Items {
			items[i] = r.Resolve(item, visited, depth)
		}
		return ArrayNode{Items: items}
	}
	return node
}

// ResolveValue resolves decoded JSON.
func (r *Resolver) ResolveValue(v interface{}) interface{} {
	return r.Resolve(NodeOf(v), nil, 0).Value()
}

// ResolveDocument returns a copy of the document with every reference under
// paths inlined.
func (r *Resolver) ResolveDocument() *Document {
	paths, _ := r.ResolveValue(r.doc.Paths()).(map[string]interface{})
	return r.doc.WithPaths(paths)
}
