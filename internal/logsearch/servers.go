package logsearch

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// ServerInfo describes the log volume of one croit server.
type ServerInfo struct {
	LogCount      int      `json:"log_count"`
	LogPercentage float64  `json:"log_percentage"`
	Services      []string `json:"services"`
	Hostname      string   `json:"hostname"`
	Active        bool     `json:"active"`
}

// ServerReport is the per-server distribution of a log sample.
type ServerReport struct {
	Servers      map[string]ServerInfo `json:"servers"`
	TotalServers int                   `json:"total_servers"`
	MostActive   string                `json:"most_active,omitempty"`
	LogsAnalyzed int                   `json:"logs_analyzed"`
}

// ServerFilter is a suggested where predicate restricting a search to one
// server.
type ServerFilter struct {
	Type     string                 `json:"type"`
	ServerID string                 `json:"server_id"`
	Hostname string                 `json:"hostname,omitempty"`
	Filter   map[string]interface{} `json:"filter"`
	Reason   string                 `json:"reason"`
}

const activeServerThreshold = 10

func percentage(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(total)*1000) / 10
}

// ServerDistribution counts records per CROIT_SERVER_ID.
func ServerDistribution(logs []Record) ServerReport {
	counts := map[string]int{}
	services := map[string]map[string]struct{}{}
	hostnames := map[string]string{}

	for _, r := range logs {
		id := r.ServerID()
		if id == "" {
			continue
		}
		counts[id]++
		if services[id] == nil {
			services[id] = map[string]struct{}{}
		}
		unit := r.firstString(FieldUnit)
		if unit == "" {
			unit = "unknown"
		}
		services[id][unit] = struct{}{}
		if h := r.firstString(FieldHostname); h != "" {
			if _, ok := hostnames[id]; !ok {
				hostnames[id] = h
			}
		}
	}

	report := ServerReport{
		Servers:      make(map[string]ServerInfo, len(counts)),
		TotalServers: len(counts),
		LogsAnalyzed: len(logs),
	}
	for id, n := range counts {
		host := hostnames[id]
		if host == "" {
			host = "unknown"
		}
		report.Servers[id] = ServerInfo{
			LogCount:      n,
			LogPercentage: percentage(n, len(logs)),
			Services:      sortedKeys(services[id]),
			Hostname:      host,
			Active:        n > activeServerThreshold,
		}
	}
	if top := topByCount(counts, 1); len(top) == 1 {
		report.MostActive = top[0]
	}
	return report
}

// SuggestServerFilter proposes a server restriction for a search text:
// an explicitly named server or hostname first, then the only OSD server,
// then the most active server for performance questions.
func SuggestServerFilter(text string, report ServerReport) *ServerFilter {
	if len(report.Servers) == 0 {
		return nil
	}
	lower := strings.ToLower(text)

	ids := make([]string, 0, len(report.Servers))
	for id := range report.Servers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if strings.Contains(lower, "server "+strings.ToLower(id)) || strings.Contains(lower, "node "+strings.ToLower(id)) {
			return serverFilter("specific_server", id, fmt.Sprintf("User mentioned server %s", id))
		}
	}

	for _, id := range ids {
		host := strings.ToLower(report.Servers[id].Hostname)
		if host != "" && host != "unknown" && strings.Contains(lower, host) {
			f := serverFilter("hostname_match", id, fmt.Sprintf("User mentioned hostname %s", host))
			f.Hostname = host
			return f
		}
	}

	if strings.Contains(lower, "osd") {
		var osdServers []string
		for _, id := range ids {
			for _, svc := range report.Servers[id].Services {
				if strings.Contains(svc, "ceph-osd") {
					osdServers = append(osdServers, id)
					break
				}
			}
		}
		if len(osdServers) == 1 {
			return serverFilter("service_specific", osdServers[0],
				fmt.Sprintf("Only server %s runs OSD services", osdServers[0]))
		}
	}

	if containsAny(lower, []string{"slow", "performance", "issue", "problem"}) && report.MostActive != "" {
		return serverFilter("performance_focus", report.MostActive,
			fmt.Sprintf("Server %s is most active (%.1f%% of logs)", report.MostActive,
				report.Servers[report.MostActive].LogPercentage))
	}
	return nil
}

func serverFilter(kind, id, reason string) *ServerFilter {
	return &ServerFilter{
		Type:     kind,
		ServerID: id,
		Filter:   leaf("CROIT_SERVERID", "_eq", id),
		Reason:   reason,
	}
}

// TransportInfo describes the records received over one journald transport.
type TransportInfo struct {
	LogCount             int            `json:"log_count"`
	Percentage           float64        `json:"percentage"`
	PriorityDistribution map[string]int `json:"priority_distribution"`
	Services             []string       `json:"services"`
	SampleMessages       []string       `json:"sample_messages"`
	CriticalLogs         int            `json:"critical_logs"`
}

// KernelInvestigation summarizes where kernel messages can be found.
type KernelInvestigation struct {
	KernelTransports  []string `json:"kernel_transports_found"`
	KernelDirectCount int      `json:"kernel_direct_count"`
	SyslogCount       int      `json:"syslog_count"`
	JournalCount      int      `json:"journal_count"`
	Recommendation    string   `json:"recommendation"`
}

// TransportReport is the per-transport distribution of a log sample.
type TransportReport struct {
	TotalLogs             int                      `json:"total_logs_analyzed"`
	TransportsFound       int                      `json:"transports_found"`
	TransportDistribution map[string]int           `json:"transport_distribution"`
	TransportDetails      map[string]TransportInfo `json:"transport_details"`
	Kernel                KernelInvestigation      `json:"kernel_investigation"`
}

// TransportDistribution groups records by _TRANSPORT.
func TransportDistribution(logs []Record) TransportReport {
	counts := map[string]int{}
	priorities := map[string]map[string]int{}
	services := map[string]map[string]struct{}{}
	samples := map[string][]string{}

	for _, r := range logs {
		t := r.Transport()
		counts[t]++

		p, ok := r.Priority()
		if !ok {
			p = defaultPriority
		}
		if priorities[t] == nil {
			priorities[t] = map[string]int{}
			services[t] = map[string]struct{}{}
		}
		priorities[t][fmt.Sprint(int(p))]++
		services[t][unitOf(r)] = struct{}{}

		if len(samples[t]) < 3 {
			if msg := truncateRunes(r.firstString(FieldMessage, "message"), messagePreviewLen); msg != "" {
				samples[t] = append(samples[t], msg)
			}
		}
	}

	report := TransportReport{
		TotalLogs:             len(logs),
		TransportsFound:       len(counts),
		TransportDistribution: counts,
		TransportDetails:      make(map[string]TransportInfo, len(counts)),
	}

	for t, n := range counts {
		svc := sortedKeys(services[t])
		if len(svc) > maxServices {
			svc = svc[:maxServices]
		}
		critical := 0
		for _, s := range AtOrAbove(Error) {
			critical += priorities[t][fmt.Sprint(int(s))]
		}
		msgs := samples[t]
		if msgs == nil {
			msgs = []string{}
		}
		report.TransportDetails[t] = TransportInfo{
			LogCount:             n,
			Percentage:           percentage(n, len(logs)),
			PriorityDistribution: priorities[t],
			Services:             svc,
			SampleMessages:       msgs,
			CriticalLogs:         critical,
		}
	}

	kernel := KernelInvestigation{
		KernelTransports:  []string{},
		KernelDirectCount: counts["kernel"],
		SyslogCount:       counts["syslog"],
		JournalCount:      counts["journal"],
		Recommendation:    kernelRecommendation(counts),
	}
	for t := range counts {
		if strings.Contains(strings.ToLower(t), "kernel") {
			kernel.KernelTransports = append(kernel.KernelTransports, t)
		}
	}
	sort.Strings(kernel.KernelTransports)
	report.Kernel = kernel

	return report
}

func kernelRecommendation(counts map[string]int) string {
	switch {
	case counts["kernel"] > 0:
		return "Use _TRANSPORT: 'kernel' - direct kernel logs found"
	case counts["syslog"] > 0:
		return "Try _TRANSPORT: 'syslog' with SYSLOG_IDENTIFIER: 'kernel' - kernel logs likely in syslog"
	case counts["journal"] > 0:
		return "Try _TRANSPORT: 'journal' with systemd journal filtering - kernel logs in journal"
	}
	available := make([]string, 0, len(counts))
	for t := range counts {
		available = append(available, t)
	}
	sort.Strings(available)
	return fmt.Sprintf("No kernel transport found. Available: [%s]. Try SYSLOG_IDENTIFIER filtering instead.",
		strings.Join(available, ", "))
}

// KernelStrategy is one way of locating kernel messages.
type KernelStrategy struct {
	Name  string
	Where map[string]interface{}
}

// KernelStrategies lists the kernel log lookups, most specific first.
func KernelStrategies() []KernelStrategy {
	and := func(leaves ...map[string]interface{}) map[string]interface{} {
		return map[string]interface{}{OpAnd: toList(leaves)}
	}
	return []KernelStrategy{
		{
			Name:  "Direct kernel transport",
			Where: and(leaf(FieldTransport, "_eq", "kernel"), PriorityAtMost(Notice)),
		},
		{
			Name: "Syslog with kernel identifier",
			Where: and(leaf(FieldTransport, "_eq", "syslog"), leaf(FieldSyslogID, "_eq", "kernel"),
				PriorityAtMost(Notice)),
		},
		{
			Name:  "Kernel in message content",
			Where: and(leaf(FieldMessage, "_contains", "kernel"), PriorityAtMost(Warning)),
		},
		{
			Name:  "Hardware/driver messages",
			Where: and(leaf(FieldMessage, "_regex", "(hardware|driver|device|disk|network)"), PriorityAtMost(Warning)),
		},
	}
}

// KernelSearchResult is the outcome of one kernel strategy.
type KernelSearchResult struct {
	Success         bool                   `json:"success"`
	LogCount        int                    `json:"log_count"`
	SampleMessages  []string               `json:"sample_messages,omitempty"`
	TransportsFound []string               `json:"transports_found,omitempty"`
	Error           string                 `json:"error,omitempty"`
	QueryUsed       map[string]interface{} `json:"query_used"`
}

// KernelSearchOutcome builds the result entry for a strategy run.
func KernelSearchOutcome(strategy KernelStrategy, logs []Record, err error) KernelSearchResult {
	res := KernelSearchResult{QueryUsed: map[string]interface{}{"where": strategy.Where}}
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Success = len(logs) > 0
	res.LogCount = len(logs)
	transports := map[string]struct{}{}
	for i, r := range logs {
		if i < 3 {
			res.SampleMessages = append(res.SampleMessages, truncateRunes(r.Message(), messagePreviewLen))
		}
		transports[r.Transport()] = struct{}{}
	}
	res.TransportsFound = sortedKeys(transports)
	return res
}

// KernelRecommendations names the most productive strategy.
func KernelRecommendations(results map[string]KernelSearchResult) []string {
	best := ""
	for _, s := range KernelStrategies() {
		r, ok := results[s.Name]
		if !ok || !r.Success {
			continue
		}
		if best == "" || r.LogCount > results[best].LogCount {
			best = s.Name
		}
	}
	if best == "" {
		return []string{
			"No kernel logs found with standard methods",
			"Check the log backend configuration for kernel log ingestion",
			"Consider using broader searches with hardware/system keywords",
		}
	}
	return []string{
		fmt.Sprintf("Best kernel log strategy: %s", best),
		fmt.Sprintf("Found %d logs with this method", results[best].LogCount),
	}
}
