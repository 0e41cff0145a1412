package catalog

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// BuildPath fills the {name} placeholders of path from args.
func BuildPath(path string, args map[string]interface{}) string {
	for name, value := range args {
		if name == "body" {
			continue
		}
		placeholder := "{" + name + "}"
		if strings.Contains(path, placeholder) {
			path = strings.ReplaceAll(path, placeholder, url.PathEscape(stringify(value)))
		}
	}
	return path
}

// BuildURL returns <host>/api<path> with placeholders filled.
func BuildURL(host, path string, args map[string]interface{}) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return strings.TrimRight(host, "/") + "/api" + BuildPath(path, args)
}

// MissingPathParams returns the placeholders left in a built path.
func MissingPathParams(path string) []string {
	var missing []string
	for {
		start := strings.Index(path, "{")
		if start < 0 {
			return missing
		}
		end := strings.Index(path[start:], "}")
		if end < 0 {
			return missing
		}
		missing = append(missing, path[start+1:start+end])
		path = path[start+end+1:]
	}
}

// BuildQuery encodes the query arguments known to binding. Objects are
// JSON-encoded and array parameters are repeated.
func BuildQuery(binding EndpointBinding, args map[string]interface{}) url.Values {
	query := url.Values{}
	for name, value := range args {
		param, ok := binding.QueryParams[name]
		if !ok || name == "body" || value == nil {
			continue
		}
		addQueryValue(query, name, value, param.IsArray)
	}
	return query
}

// QueryFromPairs encodes [{"name": ..., "value": ...}] pairs.
func QueryFromPairs(pairs []interface{}) (url.Values, error) {
	query := url.Values{}
	for i, raw := range pairs {
		pair, ok := raw.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("queryParams[%d] must be an object", i)
		}
		name, _ := pair["name"].(string)
		if name == "" {
			return nil, fmt.Errorf("queryParams[%d] has no name", i)
		}
		_, isList := pair["value"].([]interface{})
		addQueryValue(query, name, pair["value"], isList)
	}
	return query, nil
}

// QueryFromMap encodes a flat parameter map; lists are repeated.
func QueryFromMap(params map[string]interface{}) url.Values {
	query := url.Values{}
	for name, value := range params {
		if value == nil {
			continue
		}
		_, isList := value.([]interface{})
		addQueryValue(query, name, value, isList)
	}
	return query
}

func addQueryValue(query url.Values, name string, value interface{}, repeat bool) {
	if repeat {
		if list, ok := value.([]interface{}); ok {
			for _, v := range list {
				query.Add(name, stringify(v))
			}
			return
		}
	}
	query.Add(name, stringify(value))
}

// stringify renders a decoded JSON value as a query or path value.
func stringify(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case map[string]interface{}, []interface{}:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(data)
	}
	return fmt.Sprint(v)
}
