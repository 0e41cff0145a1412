package catalog

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	mcperrors "github.com/croit/mcp-croit-ceph/internal/errors"
)

// MaxCategoryTools is the number of category tools generated.
const MaxCategoryTools = 10

// Category actions.
const (
	ActionList   = "list"
	ActionGet    = "get"
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionCall   = "call"
)

// Actions lists the accepted category actions.
var Actions = []string{ActionList, ActionGet, ActionCreate, ActionUpdate, ActionDelete, ActionCall}

// Category groups endpoints sharing a tag or first path segment.
type Category struct {
	Name      string
	Title     string
	Endpoints []EndpointDescriptor
}

// ToolName returns the manage_<category> tool name.
func (c Category) ToolName() string {
	return "manage_" + slug(c.Name)
}

// Description summarizes the category for its tool.
func (c Category) Description() string {
	paths := make([]string, 0, len(c.Endpoints))
	seen := map[string]bool{}
	for _, e := range c.Endpoints {
		if !seen[e.Path] {
			seen[e.Path] = true
			paths = append(paths, e.Path)
		}
	}
	const shown = 8
	more := ""
	if len(paths) > shown {
		more = fmt.Sprintf(" and %d more", len(paths)-shown)
		paths = paths[:shown]
	}
	return fmt.Sprintf("Manage %s (%d endpoints). Actions: %s. Paths: %s%s",
		c.Title, len(c.Endpoints), strings.Join(Actions, ", "), strings.Join(paths, ", "), more)
}

func slug(s string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore && b.Len() > 0 {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	return strings.TrimRight(b.String(), "_")
}

// categoryOf returns the first tag, else the first path segment.
func categoryOf(e EndpointDescriptor) string {
	if len(e.Tags) > 0 && e.Tags[0] != "" {
		return e.Tags[0]
	}
	for _, seg := range strings.Split(e.Path, "/") {
		if seg != "" && !strings.HasPrefix(seg, "{") {
			return seg
		}
	}
	return "misc"
}

// Categorize groups endpoints and keeps the limit largest groups, largest
// first. Ties are ordered by name.
func Categorize(endpoints []EndpointDescriptor, limit int) []Category {
	title := cases.Title(language.English)
	groups := map[string]*Category{}
	for _, e := range endpoints {
		name := categoryOf(e)
		c, ok := groups[name]
		if !ok {
			c = &Category{Name: name, Title: title.String(strings.NewReplacer("_", " ", "-", " ").Replace(name))}
			groups[name] = c
		}
		c.Endpoints = append(c.Endpoints, e)
	}

	out := make([]Category, 0, len(groups))
	for _, c := range groups {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i].Endpoints) != len(out[j].Endpoints) {
			return len(out[i].Endpoints) > len(out[j].Endpoints)
		}
		return out[i].Name < out[j].Name
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func endsWithParam(path string) bool {
	return strings.HasSuffix(strings.TrimRight(path, "/"), "}")
}

// MatchPath reports whether a concrete path fits a templated one.
func MatchPath(template, path string) bool {
	t := strings.Split(strings.Trim(template, "/"), "/")
	p := strings.Split(strings.Trim(path, "/"), "/")
	if len(t) != len(p) {
		return false
	}
	for i := range t {
		if strings.HasPrefix(t[i], "{") && strings.HasSuffix(t[i], "}") {
			if p[i] == "" {
				return false
			}
			continue
		}
		if t[i] != p[i] {
			return false
		}
	}
	return true
}

// Resolve picks the endpoint for an action. An explicit endpoint path wins;
// otherwise the action selects by method and path shape, preferring the
// shortest path.
func (c Category) Resolve(action, endpoint string) (EndpointDescriptor, error) {
	action = strings.ToLower(action)

	if endpoint != "" {
		if !strings.HasPrefix(endpoint, "/") {
			endpoint = "/" + endpoint
		}
		var pathMatches []EndpointDescriptor
		for _, e := range c.Endpoints {
			if e.Path == endpoint || MatchPath(e.Path, endpoint) {
				pathMatches = append(pathMatches, e)
			}
		}
		if len(pathMatches) == 0 {
			return EndpointDescriptor{}, mcperrors.NewResourceNotFound("endpoint", endpoint).
				WithSuggestion("Use an endpoint path listed in the tool description")
		}
		for _, e := range pathMatches {
			if methodFor(action, e) {
				return e, nil
			}
		}
		return pathMatches[0], nil
	}

	if action == ActionCall {
		return EndpointDescriptor{}, mcperrors.NewMissingParameter("endpoint").
			WithSuggestion("The call action needs an explicit endpoint path")
	}

	var candidates []EndpointDescriptor
	for _, e := range c.Endpoints {
		if !methodFor(action, e) {
			continue
		}
		switch action {
		case ActionList:
			if endsWithParam(e.Path) {
				continue
			}
		case ActionGet, ActionUpdate, ActionDelete:
			if !endsWithParam(e.Path) {
				continue
			}
		}
		candidates = append(candidates, e)
	}
	if len(candidates) == 0 {
		return EndpointDescriptor{}, mcperrors.NewInvalidInput(
			fmt.Sprintf("no %s endpoint in category %s", action, c.Name)).
			WithSuggestion("Pass an explicit endpoint path with action 'call'")
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return len(candidates[i].Path) < len(candidates[j].Path)
	})
	return candidates[0], nil
}

func methodFor(action string, e EndpointDescriptor) bool {
	switch action {
	case ActionList, ActionGet:
		return e.Method == "get"
	case ActionCreate:
		return e.Method == "post"
	case ActionUpdate:
		return e.Method == "put" || e.Method == "patch"
	case ActionDelete:
		return e.Method == "delete"
	}
	return true
}

// ParamName returns the name of the last path parameter of a template.
func ParamName(path string) string {
	segs := strings.Split(strings.Trim(path, "/"), "/")
	for i := len(segs) - 1; i >= 0; i-- {
		if strings.HasPrefix(segs[i], "{") && strings.HasSuffix(segs[i], "}") {
			return strings.Trim(segs[i], "{}")
		}
	}
	return ""
}
