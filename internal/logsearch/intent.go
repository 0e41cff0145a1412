package logsearch

import (
	"regexp"
	"sort"
	"strings"
	"time"
)

// Mode selects a point-in-time search or a follow-style tail.
type Mode string

// Search modes.
const (
	ModeQuery Mode = "query"
	ModeTail  Mode = "tail"
)

// SearchIntent is the structured reading of a free-text log search. An empty
// Severities slice means no severity filter.
type SearchIntent struct {
	Mode       Mode       `json:"type"`
	Services   []string   `json:"services"`
	Severities []Severity `json:"levels"`
	Keywords   []string   `json:"keywords"`
	Patterns   []string   `json:"patterns,omitempty"`
	TimeRange  TimeRange  `json:"time_range"`
}

// IsEmpty reports an intent with no service, severity or keyword filter.
func (i SearchIntent) IsEmpty() bool {
	return len(i.Services) == 0 && len(i.Severities) == 0 && len(i.Keywords) == 0
}

// topicPattern contributes services, severities and keywords when its regex
// matches the search text.
type topicPattern struct {
	name       string
	regex      *regexp.Regexp
	services   []string
	severities []Severity
	keywords   []string
}

var topicPatterns = []topicPattern{
	{
		name:       "osd_issues",
		regex:      regexp.MustCompile(`(?i)(osd|object.?storage).*?(fail|down|crash|slow|error|flap|timeout)`),
		services:   []string{"ceph-osd", "ceph-mon"},
		severities: []Severity{Error, Warning, Emergency},
		keywords:   []string{"OSD", "failed", "down", "crashed", "flapping"},
	},
	{
		name:       "slow_requests",
		regex:      regexp.MustCompile(`(?i)(slow|blocked|stuck|delayed)\s+(request|operation|op|query|io)`),
		services:   []string{"ceph-osd", "ceph-mon", "ceph-mds"},
		severities: []Severity{Warning, Error},
		keywords:   []string{"slow request", "blocked", "timeout", "stuck"},
	},
	{
		name:       "auth_failures",
		regex:      regexp.MustCompile(`(?i)(auth|authentication|login|permission).*?(fail|denied|error)`),
		services:   []string{"ceph-mon", "ceph-mgr"},
		severities: []Severity{Error, Warning},
		keywords:   []string{"authentication", "failed", "denied", "unauthorized"},
	},
	{
		name:       "network_problems",
		regex:      regexp.MustCompile(`(?i)(network|connection|timeout|unreachable|heartbeat|msgr)`),
		services:   []string{"ceph-mon", "ceph-osd", "ceph-mds", "ceph-mgr"},
		severities: []Severity{Error, Warning},
		keywords:   []string{"connection", "timeout", "network", "unreachable", "heartbeat"},
	},
	{
		name:       "pool_issues",
		regex:      regexp.MustCompile(`(?i)pool.*?(full|create|delete|error)`),
		services:   []string{"ceph-mon", "ceph-mgr"},
		severities: []Severity{Error, Warning},
		keywords:   []string{"pool", "full", "quota", "space"},
	},
	{
		name:       "mon_issues",
		regex:      regexp.MustCompile(`(?i)\bmon(itor)?s?\b.*?(election|quorum|paxos|skew)`),
		services:   []string{"ceph-mon"},
		severities: []Severity{Error, Warning},
		keywords:   []string{"election", "quorum", "clock skew"},
	},
	{
		name:       "mds_issues",
		regex:      regexp.MustCompile(`(?i)(mds|metadata server|cephfs).*?(fail|slow|behind|trim|damage|error|laggy)`),
		services:   []string{"ceph-mds", "ceph-mon"},
		severities: []Severity{Error, Warning},
		keywords:   []string{"mds", "behind on trimming", "damaged", "laggy"},
	},
	{
		name:       "rgw_issues",
		regex:      regexp.MustCompile(`(?i)(rgw|radosgw|gateway|s3|bucket).*?(fail|error|timeout|denied|slow|5\d\d)`),
		services:   []string{"ceph-radosgw"},
		severities: []Severity{Error, Warning},
		keywords:   []string{"rgw", "bucket", "timeout", "denied"},
	},
}

var (
	kernelWords      = []string{"kernel", "hardware", "driver", "system"}
	problemWords     = []string{"error", "fail", "problem", "issue", "crash", "wrong", "slow", "timeout", "stuck"}
	performanceWords = []string{"performance", "slow", "fast", "latency", "throughput", "bandwidth"}
	allLevelPhrases  = []string{"all level", "all log", "everything"}
	tailPattern      = regexp.MustCompile(`\b(monitor|stream|follow|tail|live)`)
)

// Parser reads free-text log searches. The zero value is not usable; call
// NewParser.
type Parser struct {
	now func() time.Time
}

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithNow sets the clock used to anchor relative time expressions.
func WithNow(now func() time.Time) ParserOption {
	return func(p *Parser) { p.now = now }
}

// NewParser returns a Parser using the wall clock unless overridden.
func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse never fails. Text it cannot interpret yields an intent without
// filters over the last hour.
func (p *Parser) Parse(text string) SearchIntent {
	lower := strings.ToLower(text)

	services := map[string]struct{}{}
	for _, ref := range DetectServices(text) {
		unit := TranslateService(ref)
		services[unit] = struct{}{}
		lower = strings.ReplaceAll(lower, strings.ToLower(ref), strings.ToLower(unit))
	}

	levels := map[Severity]struct{}{}
	keywords := map[string]struct{}{}
	var matched []string
	for _, tp := range topicPatterns {
		if !tp.regex.MatchString(lower) {
			continue
		}
		matched = append(matched, tp.name)
		for _, s := range tp.services {
			services[s] = struct{}{}
		}
		for _, s := range tp.severities {
			levels[s] = struct{}{}
		}
		for _, k := range tp.keywords {
			keywords[k] = struct{}{}
		}
	}

	levels = resolveSeverities(lower, levels, keywords)

	mode := ModeQuery
	if tailPattern.MatchString(lower) {
		mode = ModeTail
	}

	return SearchIntent{
		Mode:       mode,
		Services:   sortedKeys(services),
		Severities: sortedSeverities(levels),
		Keywords:   sortedKeys(keywords),
		Patterns:   matched,
		TimeRange:  ParseTimeRange(lower, p.now()),
	}
}

// resolveSeverities applies the explicit level ladder, then the kernel and
// performance defaults. An all-levels phrase always wins.
func resolveSeverities(text string, levels map[Severity]struct{}, keywords map[string]struct{}) map[Severity]struct{} {
	add := func(threshold Severity) {
		for _, s := range AtOrAbove(threshold) {
			levels[s] = struct{}{}
		}
	}

	allLevels := containsAny(text, allLevelPhrases)
	switch {
	case allLevels:
		levels = map[Severity]struct{}{}
	case strings.Contains(text, "critical") || strings.Contains(text, "emergency"):
		add(Critical)
	case strings.Contains(text, "error") && !strings.Contains(text, "no error"):
		add(Error)
	case strings.Contains(text, "warn"):
		add(Warning)
	case strings.Contains(text, "info") && !keywordMentions(keywords, "info"):
		add(Info)
	case strings.Contains(text, "debug"):
		add(Debug)
	case strings.Contains(text, "trace"):
		levels = map[Severity]struct{}{}
	}

	// Kernel topics without an explicit level: NOTICE and above, narrowed
	// to WARNING and above once a problem is mentioned.
	if containsAny(text, kernelWords) && len(levels) == 0 && !containsAny(text, []string{"all", "everything"}) {
		switch {
		case !containsAny(text, problemWords):
			add(Notice)
		case !containsAny(text, []string{"debug", "trace", "info"}):
			add(Warning)
		}
	}

	if containsAny(text, performanceWords) && (len(levels) == 0 || isErrorWarningOnly(levels)) {
		for _, s := range []Severity{Info, Notice, Warning, Error} {
			levels[s] = struct{}{}
		}
	}

	if allLevels {
		return map[Severity]struct{}{}
	}
	return levels
}

func isErrorWarningOnly(levels map[Severity]struct{}) bool {
	if len(levels) != 2 {
		return false
	}
	_, e := levels[Error]
	_, w := levels[Warning]
	return e && w
}

func keywordMentions(keywords map[string]struct{}, word string) bool {
	for k := range keywords {
		if strings.Contains(strings.ToLower(k), word) {
			return true
		}
	}
	return false
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedSeverities(set map[Severity]struct{}) []Severity {
	out := make([]Severity, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
