package tools

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/croit/mcp-croit-ceph/internal/cache"
	"github.com/croit/mcp-croit-ceph/internal/client"
	mcperrors "github.com/croit/mcp-croit-ceph/internal/errors"
	"github.com/croit/mcp-croit-ceph/internal/filter"
	"github.com/croit/mcp-croit-ceph/internal/optimizer"
	"github.com/croit/mcp-croit-ceph/internal/security"
	"github.com/croit/mcp-croit-ceph/internal/tracing"
)

// APICall is one cluster API request plus the response controls the caller
// asked for.
type APICall struct {
	Method string
	// Path is relative to <host>/api with placeholders filled in.
	Path  string
	Query url.Values
	Body  interface{}

	Fields     []string
	Filters    map[string]interface{}
	NoOptimize bool
	// Intent is the question behind the call; it reshapes list responses.
	Intent string
	// PageSize > 0 wraps list responses with a cursor for the next page.
	PageSize int
	// Compress forces compression of list payloads above the threshold.
	Compress bool
	// DefaultLimit adds a conservative limit parameter to list endpoints.
	DefaultLimit bool
}

// APIPipeline runs cluster API calls through the response cache, filters
// and the optimizer. It is shared by every tool that talks to the cluster.
type APIPipeline struct {
	cache             *cache.Cache
	optimizer         *optimizer.Optimizer
	compressThreshold int
	logger            *zap.Logger
}

// NewAPIPipeline creates a pipeline. A nil cache disables response caching.
func NewAPIPipeline(c *cache.Cache, o *optimizer.Optimizer, compressThreshold int, logger *zap.Logger) *APIPipeline {
	if compressThreshold <= 0 {
		compressThreshold = optimizer.DefaultCompressThreshold
	}
	return &APIPipeline{
		cache:             c,
		optimizer:         o,
		compressThreshold: compressThreshold,
		logger:            logger,
	}
}

// Optimizer returns the optimizer used by the pipeline.
func (p *APIPipeline) Optimizer() *optimizer.Optimizer {
	return p.optimizer
}

// Cache returns the response cache, which may be nil.
func (p *APIPipeline) Cache() *cache.Cache {
	return p.cache
}

// Execute performs the call and returns the {code, result} or {code, error}
// envelope. Transport failures become a 500 envelope.
func (p *APIPipeline) Execute(ctx context.Context, c *client.Client, call APICall) map[string]interface{} {
	method := strings.ToUpper(call.Method)
	if method == "" {
		method = http.MethodGet
	}
	path := call.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	query := call.Query
	if query == nil {
		query = url.Values{}
	}

	if call.DefaultLimit && optimizer.ShouldOptimize(path, method) {
		query = withDefaultLimit(path, query)
	}

	fullURL := c.BuildURL(path, query)
	key := cache.RequestKey(method, fullURL, nil)
	cacheable := method == http.MethodGet && p.cache != nil

	var data interface{}
	status := http.StatusOK
	hit := false
	if cacheable {
		data, hit = p.cache.Get(key)
		_, span := tracing.CacheSpan(ctx, "get", hit)
		span.End()
	}

	if !hit {
		code, body, envelope := p.fetch(ctx, c, method, path, query, call.Body)
		if envelope != nil {
			return envelope
		}
		status, data = code, body
		if cacheable {
			p.cache.SetTagged(key, cacheTag(path), data, cache.TTLFor(path))
		} else if method != http.MethodGet && p.cache != nil {
			// a successful write makes cached reads of the same resource stale
			if n := p.cache.InvalidateTag(cacheTag(path)); n > 0 {
				p.logger.Debug("Invalidated cached responses",
					zap.String("path", path),
					zap.Int("entries", n),
				)
			}
		}
	} else {
		p.logger.Debug("Response cache hit", zap.String("path", path))
	}

	return Envelope(status, p.shape(data, path, method, call))
}

func (p *APIPipeline) fetch(ctx context.Context, c *client.Client, method, path string, query url.Values, body interface{}) (int, interface{}, map[string]interface{}) {
	ctx, span := tracing.APISpan(ctx, method, path)
	defer span.End()

	p.logger.Info("Calling cluster API",
		zap.String("method", method),
		zap.String("path", path),
	)

	resp, err := c.Do(ctx, &client.Request{
		Method:  method,
		Path:    path,
		Query:   query,
		Body:    body,
		Headers: tracing.FromContext(ctx).Headers(),
	})
	if err != nil {
		tracing.RecordError(span, err)
		p.logger.Error("Cluster API request failed",
			zap.String("path", path),
			zap.String("error", security.SanitizeError(err)),
		)
		env := map[string]interface{}{
			"code":  http.StatusInternalServerError,
			"error": "Request failed: " + security.SanitizeError(err),
		}
		var se *mcperrors.StructuredError
		if errors.As(err, &se) {
			env["code"] = se.HTTPStatus()
			if se.Suggestion != "" {
				env["suggestion"] = se.Suggestion
			}
		}
		return 0, nil, env
	}

	if !resp.IsSuccess() {
		tracing.RecordError(span, fmt.Errorf("HTTP %d", resp.StatusCode))
		detail := strings.TrimSpace(string(resp.Body))
		msg := http.StatusText(resp.StatusCode)
		if detail != "" {
			msg += ": " + mcperrors.Truncate(detail, MaxResultSize/4)
		}
		env := map[string]interface{}{
			"code":  resp.StatusCode,
			"error": msg,
		}
		if se := mcperrors.FromHTTPStatus(resp.StatusCode, detail); se.Suggestion != "" {
			env["suggestion"] = se.Suggestion
		}
		return 0, nil, env
	}

	tracing.SetSuccess(span)
	return resp.StatusCode, resp.JSON(), nil
}

// shape applies filters, the query-intent view, pagination, the optimizer
// ladder and compression, in that order.
func (p *APIPipeline) shape(data interface{}, path, method string, call APICall) interface{} {
	if len(call.Filters) > 0 {
		data = applyFilters(data, call.Filters)
	}

	if call.NoOptimize {
		return data
	}

	if call.Intent != "" {
		data = optimizer.OptimizeForContext(data, optimizer.AnalyzeQueryContext(call.Intent))
	}
	if call.PageSize > 0 {
		data = optimizer.AddProgressiveLoading(data, call.PageSize)
	}

	if p.optimizer != nil {
		data = p.optimizer.Optimize(data, optimizer.Context{
			URL:    path,
			Method: method,
			Fields: call.Fields,
		})
	} else if len(call.Fields) > 0 {
		data = optimizer.ProjectFields(data, call.Fields)
	}

	threshold := p.compressThreshold
	if !call.Compress {
		threshold = MaxResultSize
	}
	if compressed, err := optimizer.Compress(data, threshold); err != nil {
		p.logger.Warn("Compression failed, returning plain data", zap.Error(err))
	} else {
		data = compressed
	}
	return data
}

// applyFilters filters a list, or the list inside a {data: [...]} wrapper.
func applyFilters(data interface{}, filters map[string]interface{}) interface{} {
	if wrapper, ok := data.(map[string]interface{}); ok {
		if inner, ok := wrapper["data"].([]interface{}); ok {
			out := make(map[string]interface{}, len(wrapper))
			for k, v := range wrapper {
				out[k] = v
			}
			out["data"] = filter.Apply(inner, filters)
			return out
		}
	}
	return filter.Apply(data, filters)
}

// withDefaultLimit merges optimizer.AddDefaultLimit into a query.
func withDefaultLimit(path string, query url.Values) url.Values {
	params := make(map[string]interface{}, len(query))
	for k := range query {
		params[k] = query.Get(k)
	}
	limited := optimizer.AddDefaultLimit(path, params)
	if _, had := params["limit"]; had {
		return query
	}
	limit, ok := limited["limit"]
	if !ok {
		return query
	}
	out := url.Values{}
	for k, v := range query {
		out[k] = append([]string(nil), v...)
	}
	out.Set("limit", fmt.Sprint(limit))
	return out
}

// cacheTag is the first path segment, e.g. /pools for /pools/rbd/images.
func cacheTag(path string) string {
	segs := strings.SplitN(strings.Trim(path, "/"), "/", 2)
	return "/" + segs[0]
}
