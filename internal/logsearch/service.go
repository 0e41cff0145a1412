package logsearch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/croit/mcp-croit-ceph/internal/cache"
	mcperrors "github.com/croit/mcp-croit-ceph/internal/errors"
)

// Search limits.
const (
	DefaultLimit     = 1000
	MaxLimit         = 10000
	DefaultHoursBack = 1.0
	MaxHoursBack     = 168.0

	checkLimit          = 100
	serverSampleSize    = 10000
	transportSampleSize = 2000
	serverCacheTTL      = time.Hour
	serverCacheKey      = "servers"
)

// SearchRequest carries the log search arguments. Either Text or Where (or
// at least Search) must be set.
type SearchRequest struct {
	Text           string
	Where          map[string]interface{}
	Search         string
	Limit          int
	After          int
	HoursBack      float64
	StartTimestamp int64
	EndTimestamp   int64
	Token          string
	Analyze        bool
}

// SearchResponse is the outcome of a search. On a *BothFailedError the
// response is still returned, with an empty log list.
type SearchResponse struct {
	Result        *Result                `json:"result"`
	Intent        *SearchIntent          `json:"intent,omitempty"`
	Query         string                 `json:"query,omitempty"`
	Where         map[string]interface{} `json:"where"`
	HoursSearched float64                `json:"hours_searched"`
	Analysis      *Analysis              `json:"analysis,omitempty"`
	Summary       *Summary               `json:"summary,omitempty"`
}

// Service combines parsing, query building, execution and analysis.
type Service struct {
	parser   *Parser
	executor *Executor
	servers  *cache.Cache
	logger   *zap.Logger
	now      func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithServiceClock sets the clock used for relative time windows.
func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// NewService creates a log search service on top of executor.
func NewService(executor *Executor, logger *zap.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		executor: executor,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.parser = NewParser(WithNow(s.now))
	s.servers = cache.New(1, serverCacheTTL, cache.WithClock(s.now))
	return s
}

// Parser returns the intent parser.
func (s *Service) Parser() *Parser {
	return s.parser
}

func (s *Service) window(req SearchRequest, fallback TimeRange) (TimeRange, error) {
	switch {
	case req.StartTimestamp > 0 && req.EndTimestamp > 0:
		if req.EndTimestamp < req.StartTimestamp {
			return TimeRange{}, mcperrors.NewInvalidInput("end_timestamp must not be before start_timestamp")
		}
		return FromUnix(req.StartTimestamp, req.EndTimestamp), nil
	case req.StartTimestamp > 0 || req.EndTimestamp > 0:
		return TimeRange{}, mcperrors.NewInvalidInput("start_timestamp and end_timestamp must be given together")
	case req.HoursBack < 0 || req.HoursBack > MaxHoursBack:
		return TimeRange{}, mcperrors.NewInvalidInput(fmt.Sprintf("hours_back must be between 0 and %.0f", MaxHoursBack))
	case req.HoursBack > 0:
		return LastHours(s.now(), req.HoursBack), nil
	case !fallback.IsZero():
		return fallback, nil
	}
	return LastHours(s.now(), DefaultHoursBack), nil
}

// Search runs a natural-language or structured log search.
func (s *Service) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	limit := req.Limit
	switch {
	case limit <= 0:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}
	if req.After < 0 {
		return nil, mcperrors.NewInvalidInput("after must not be negative")
	}

	resp := &SearchResponse{}
	var intentRange TimeRange

	switch {
	case len(req.Where) > 0:
		if err := ValidateWhere(req.Where); err != nil {
			return nil, mcperrors.NewInvalidQuery(err.Error())
		}
		resp.Where = MergeSearch(req.Where, req.Search)
	case strings.TrimSpace(req.Text) != "":
		intent := s.parser.Parse(req.Text)
		resp.Intent = &intent
		resp.Query = BuildFlat(intent)
		resp.Where = MergeSearch(BuildWhere(intent), req.Search)
		intentRange = intent.TimeRange
	case strings.TrimSpace(req.Search) != "":
		resp.Where = MergeSearch(nil, req.Search)
	default:
		return nil, mcperrors.NewMissingParameter("query").
			WithSuggestion("Provide a natural-language query, a where predicate or a _search text")
	}

	tr, err := s.window(req, intentRange)
	if err != nil {
		return nil, err
	}
	resp.HoursSearched = tr.Hours()

	result, err := s.executor.Execute(ctx, LogQuery{
		Where: resp.Where,
		Start: tr.StartUnix(),
		End:   tr.EndUnix(),
		Limit: limit,
		After: req.After,
		Token: req.Token,
	})
	if err != nil {
		if !IsBothFailed(err) {
			return nil, err
		}
		resp.Result = result
		return resp, err
	}
	resp.Result = result

	if req.Analyze {
		analysis := Analyze(result.Logs)
		summary := Summarize(result.Logs, 15, 10)
		resp.Analysis = &analysis
		resp.Summary = &summary
	}
	return resp, nil
}

// ShortcutKind selects a preset severity search.
type ShortcutKind string

// Shortcut kinds.
const (
	ShortcutErrors   ShortcutKind = "errors"
	ShortcutWarnings ShortcutKind = "warnings"
	ShortcutInfo     ShortcutKind = "info"
	ShortcutCritical ShortcutKind = "critical"
)

// Shortcut is a preset severity search.
type Shortcut struct {
	MaxPriority Severity
	HoursBack   float64
	Limit       int
}

// Shortcuts maps each kind to its preset.
var Shortcuts = map[ShortcutKind]Shortcut{
	ShortcutErrors:   {MaxPriority: Error, HoursBack: 24, Limit: 100},
	ShortcutWarnings: {MaxPriority: Warning, HoursBack: 24, Limit: 200},
	ShortcutInfo:     {MaxPriority: Info, HoursBack: 6, Limit: 500},
	ShortcutCritical: {MaxPriority: Critical, HoursBack: 48, Limit: 50},
}

// ShortcutRequest overrides parts of a preset.
type ShortcutRequest struct {
	Kind      ShortcutKind
	Text      string
	ServerID  string
	HoursBack float64
	Limit     int
	Token     string
}

// ShortcutResponse is the outcome of a preset search.
type ShortcutResponse struct {
	Kind           ShortcutKind           `json:"kind"`
	Where          map[string]interface{} `json:"where"`
	TotalCount     int                    `json:"total_count"`
	DisplayedCount int                    `json:"displayed_count"`
	HoursSearched  float64                `json:"hours_searched"`
	Results        []Record               `json:"results"`
	Summary        Summary                `json:"summary"`
	Channel        string                 `json:"channel,omitempty"`
}

// ShortcutWhere builds the predicate of a preset search.
func ShortcutWhere(max Severity, serverID, text string) map[string]interface{} {
	conditions := []map[string]interface{}{PriorityAtMost(max)}
	if serverID != "" {
		conditions = append(conditions, leaf("CROIT_SERVERID", "_eq", serverID))
	}
	if text = strings.TrimSpace(text); text != "" {
		conditions = append(conditions, map[string]interface{}{OpSearch: text})
	}
	if len(conditions) == 1 {
		return conditions[0]
	}
	return allOf(conditions...)
}

// Shortcut runs a preset severity search. Large result sets are reduced to
// the most critical and most recent records.
func (s *Service) Shortcut(ctx context.Context, req ShortcutRequest) (*ShortcutResponse, error) {
	preset, ok := Shortcuts[req.Kind]
	if !ok {
		return nil, mcperrors.NewInvalidInput(fmt.Sprintf("unknown shortcut %q", req.Kind)).
			WithSuggestion("Use one of: errors, warnings, info, critical")
	}
	if req.HoursBack > 0 {
		preset.HoursBack = req.HoursBack
	}
	if req.Limit > 0 {
		preset.Limit = req.Limit
	}

	where := ShortcutWhere(preset.MaxPriority, req.ServerID, req.Text)
	tr := LastHours(s.now(), preset.HoursBack)

	result, err := s.executor.Execute(ctx, LogQuery{
		Where: where,
		Start: tr.StartUnix(),
		End:   tr.EndUnix(),
		Limit: preset.Limit,
		Token: req.Token,
	})
	if err != nil {
		return nil, err
	}

	logs := result.Logs
	display := logs
	if len(logs) > preset.Limit/2 {
		third := preset.Limit / 3
		display = Prioritize(logs, third, third, preset.Limit/2)
	}

	return &ShortcutResponse{
		Kind:           req.Kind,
		Where:          where,
		TotalCount:     len(logs),
		DisplayedCount: len(display),
		HoursSearched:  tr.Hours(),
		Results:        display,
		Summary:        Summarize(logs, 15, 10),
		Channel:        result.Channel,
	}, nil
}

// CheckRequest asks whether conditions occurred recently.
type CheckRequest struct {
	Conditions []string
	Threshold  int
	TimeWindow time.Duration
	Token      string
}

// ConditionCheck is the outcome for one condition.
type ConditionCheck struct {
	Condition string `json:"condition"`
	Count     int    `json:"count"`
	Threshold int    `json:"threshold"`
	Triggered bool   `json:"triggered"`
	Severity  string `json:"severity"`
	Error     string `json:"error,omitempty"`
}

// ConditionAlert is a triggered condition with sample records.
type ConditionAlert struct {
	Condition  string   `json:"condition"`
	Count      int      `json:"count"`
	Severity   string   `json:"severity"`
	SampleLogs []Record `json:"sample_logs"`
}

// CheckReport is the snapshot result of Check.
type CheckReport struct {
	Checks         []ConditionCheck `json:"checks"`
	Alerts         []ConditionAlert `json:"alerts"`
	Summary        string           `json:"summary"`
	TimeWindow     string           `json:"time_window"`
	Recommendation string           `json:"recommendation"`
}

// Check counts matches of each condition in the recent window and reports
// the ones at or above the threshold.
func (s *Service) Check(ctx context.Context, req CheckRequest) (*CheckReport, error) {
	if len(req.Conditions) == 0 {
		return nil, mcperrors.NewMissingParameter("conditions").WithSuggestion("Conditions are required")
	}
	threshold := req.Threshold
	if threshold <= 0 {
		threshold = 5
	}
	window := req.TimeWindow
	if window <= 0 {
		window = 5 * time.Minute
	}

	report := &CheckReport{
		Checks:     make([]ConditionCheck, 0, len(req.Conditions)),
		Alerts:     []ConditionAlert{},
		TimeWindow: fmt.Sprintf("Last %d seconds", int(window.Seconds())),
	}

	for _, cond := range req.Conditions {
		intent := s.parser.Parse(cond)
		tr := LastDuration(s.now(), window)

		check := ConditionCheck{Condition: cond, Threshold: threshold, Severity: "none"}
		result, err := s.executor.Execute(ctx, LogQuery{
			Where: BuildWhere(intent),
			Start: tr.StartUnix(),
			End:   tr.EndUnix(),
			Limit: checkLimit,
			Token: req.Token,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			check.Error = err.Error()
			report.Checks = append(report.Checks, check)
			continue
		}

		check.Count = len(result.Logs)
		check.Triggered = check.Count >= threshold
		if check.Count > 0 {
			check.Severity = Analyze(result.Logs).Severity
		}
		report.Checks = append(report.Checks, check)

		if check.Triggered {
			samples := result.Logs
			if len(samples) > 3 {
				samples = samples[:3]
			}
			report.Alerts = append(report.Alerts, ConditionAlert{
				Condition:  cond,
				Count:      check.Count,
				Severity:   check.Severity,
				SampleLogs: samples,
			})
		}
	}

	report.Summary = fmt.Sprintf("%d of %d conditions triggered", len(report.Alerts), len(req.Conditions))
	report.Recommendation = "All clear"
	if len(report.Alerts) > 0 {
		report.Recommendation = "Run again later to check for changes"
	}
	return report, nil
}

// DiscoverServers returns the per-server log distribution of the last day.
// Results are cached for an hour unless refresh is set.
func (s *Service) DiscoverServers(ctx context.Context, refresh bool, token string) (ServerReport, error) {
	if !refresh {
		if v, ok := s.servers.Get(serverCacheKey); ok {
			if report, ok := v.(ServerReport); ok {
				return report, nil
			}
		}
	}

	tr := LastHours(s.now(), 24)
	result, err := s.executor.Execute(ctx, LogQuery{
		Where: leaf(FieldServerID, "_exists", true),
		Start: tr.StartUnix(),
		End:   tr.EndUnix(),
		Limit: serverSampleSize,
		Token: token,
	})
	if err != nil {
		return ServerReport{}, err
	}

	report := ServerDistribution(result.Logs)
	s.servers.Set(serverCacheKey, report, 0)
	return report, nil
}

// AnalyzeTransports samples recent records and groups them by transport.
func (s *Service) AnalyzeTransports(ctx context.Context, hoursBack float64, token string) (TransportReport, error) {
	if hoursBack <= 0 {
		hoursBack = 24
	}
	tr := LastHours(s.now(), hoursBack)
	result, err := s.executor.Execute(ctx, LogQuery{
		Where: map[string]interface{}{OpSearch: ""},
		Start: tr.StartUnix(),
		End:   tr.EndUnix(),
		Limit: transportSampleSize,
		Token: token,
	})
	if err != nil {
		return TransportReport{}, err
	}
	return TransportDistribution(result.Logs), nil
}

// FindKernelLogs runs every kernel strategy and recommends the best one.
// A failing strategy is reported, not fatal.
func (s *Service) FindKernelLogs(ctx context.Context, hoursBack float64, limit int, token string) (map[string]KernelSearchResult, []string, error) {
	if hoursBack <= 0 {
		hoursBack = 24
	}
	if limit <= 0 {
		limit = 100
	}

	results := map[string]KernelSearchResult{}
	for _, strategy := range KernelStrategies() {
		tr := LastHours(s.now(), hoursBack)
		result, err := s.executor.Execute(ctx, LogQuery{
			Where: strategy.Where,
			Start: tr.StartUnix(),
			End:   tr.EndUnix(),
			Limit: limit,
			Token: token,
		})
		if err != nil && ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		var logs []Record
		if result != nil {
			logs = result.Logs
		}
		results[strategy.Name] = KernelSearchOutcome(strategy, logs, err)
	}
	return results, KernelRecommendations(results), nil
}

// RunTemplate executes a debug template.
func (s *Service) RunTemplate(ctx context.Context, id, token string) (*DebugTemplate, *Result, error) {
	tmpl, ok := FindTemplate(id)
	if !ok {
		return nil, nil, mcperrors.NewResourceNotFound("debug template", id).
			WithSuggestion("Available scenarios: " + strings.Join(TemplateIDs(), ", "))
	}
	tr := LastHours(s.now(), float64(tmpl.HoursBack))
	result, err := s.executor.Execute(ctx, LogQuery{
		Where: tmpl.Where,
		Start: tr.StartUnix(),
		End:   tr.EndUnix(),
		Limit: tmpl.Limit,
		Token: token,
	})
	return &tmpl, result, err
}

// IsBothFailed reports whether err means neither channel answered.
func IsBothFailed(err error) bool {
	var bf *BothFailedError
	return errors.As(err, &bf)
}
