// Package catalog turns the cluster's OpenAPI document into endpoint
// descriptors, tool input schemas and the tool registry.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/croit/mcp-croit-ceph/internal/client"
	mcperrors "github.com/croit/mcp-croit-ceph/internal/errors"
)

// SwaggerPath is the document location relative to <host>/api.
const SwaggerPath = "/swagger.json"

// Getter is the part of the API client Fetch needs.
type Getter interface {
	Get(ctx context.Context, path string, query url.Values) (*client.Response, error)
}

// Document is a decoded OpenAPI document.
type Document struct {
	Raw map[string]interface{}
}

// Fetch downloads and decodes the cluster's OpenAPI document.
func Fetch(ctx context.Context, c Getter) (*Document, error) {
	resp, err := c.Get(ctx, SwaggerPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch API document: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, mcperrors.FromHTTPStatus(resp.StatusCode, string(resp.Body))
	}
	return ParseDocument(resp.Body)
}

// ParseDocument decodes a JSON OpenAPI document.
func ParseDocument(data []byte) (*Document, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse API document: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("API document is empty")
	}
	return &Document{Raw: raw}, nil
}

// Paths returns the document's path items.
func (d *Document) Paths() map[string]interface{} {
	paths, _ := d.Raw["paths"].(map[string]interface{})
	if paths == nil {
		return map[string]interface{}{}
	}
	return paths
}

// Title returns info.title.
func (d *Document) Title() string {
	info, _ := d.Raw["info"].(map[string]interface{})
	title, _ := info["title"].(string)
	return title
}

// Version returns info.version.
func (d *Document) Version() string {
	info, _ := d.Raw["info"].(map[string]interface{})
	version, _ := info["version"].(string)
	return version
}

// Lookup follows a local JSON pointer such as "#/components/schemas/Pool".
func (d *Document) Lookup(ref string) (interface{}, error) {
	pointer := strings.TrimPrefix(ref, "#")
	pointer = strings.Trim(pointer, "/")
	if pointer == "" {
		return d.Raw, nil
	}

	var current interface{} = d.Raw
	for _, token := range strings.Split(pointer, "/") {
		token = strings.ReplaceAll(token, "~1", "/")
		token = strings.ReplaceAll(token, "~0", "~")

		obj, ok := current.(map[string]interface{})
		if !ok {
			return nil, mcperrors.NewResourceNotFound("reference", ref)
		}
		next, ok := obj[token]
		if !ok {
			return nil, mcperrors.NewResourceNotFound("reference", ref)
		}
		current = next
	}
	return current, nil
}

// WithPaths returns a copy of the document with its paths replaced.
func (d *Document) WithPaths(paths map[string]interface{}) *Document {
	raw := make(map[string]interface{}, len(d.Raw))
	for k, v := range d.Raw {
		raw[k] = v
	}
	raw["paths"] = paths
	return &Document{Raw: raw}
}
