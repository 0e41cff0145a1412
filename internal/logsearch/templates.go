package logsearch

import "strings"

// DebugTemplate is a ready-made where predicate for a common Ceph debugging
// scenario.
type DebugTemplate struct {
	ID                  string                 `json:"id"`
	Name                string                 `json:"name"`
	Description         string                 `json:"description"`
	Where               map[string]interface{} `json:"where"`
	HoursBack           int                    `json:"hours_back"`
	Limit               int                    `json:"limit"`
	UserFriendlyExample string                 `json:"user_friendly_example,omitempty"`
	Examples            map[string]string      `json:"examples,omitempty"`
	UsageExamples       []string               `json:"usage_examples,omitempty"`
}

func allOf(leaves ...map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{OpAnd: toList(leaves)}
}

// DebugTemplates returns the scenario templates in display order. Each call
// returns fresh values that callers may modify.
func DebugTemplates() []DebugTemplate {
	return []DebugTemplate{
		{
			ID:          "osd_health_check",
			Name:        "OSD Health Check",
			Description: "Check for OSD failures, flapping, and performance issues",
			Where:       allOf(leaf(FieldUnit, "_regex", "ceph-osd@.*"), PriorityAtMost(Warning)),
			HoursBack:   24,
			Limit:       100,
		},
		{
			ID:          "cluster_status_errors",
			Name:        "Cluster Status Errors",
			Description: "Find critical cluster-wide errors and warnings",
			Where: allOf(
				leaf(FieldUnit, "_contains", "ceph-mon"),
				PriorityAtMost(Error),
				leaf(FieldMessage, "_regex", "(error|fail|critical|emergency)"),
			),
			HoursBack: 48,
			Limit:     50,
		},
		{
			ID:          "slow_requests",
			Name:        "Slow Request Analysis",
			Description: "Identify slow operations and blocked requests",
			Where:       allOf(leaf(FieldMessage, "_contains", "slow request"), PriorityAtMost(Notice)),
			HoursBack:   12,
			Limit:       200,
		},
		{
			ID:          "pg_issues",
			Name:        "Placement Group Issues",
			Description: "Find PG-related problems: inconsistent, incomplete, degraded",
			Where: allOf(
				leaf(FieldMessage, "_regex", "(pg|placement.?group)"),
				leaf(FieldMessage, "_regex", "(inconsistent|incomplete|degraded|stuck|unclean)"),
				PriorityAtMost(Warning),
			),
			HoursBack: 72,
			Limit:     100,
		},
		{
			ID:          "network_errors",
			Name:        "Network Connectivity Issues",
			Description: "Detect network timeouts, connection failures, and heartbeat issues",
			Where: allOf(
				leaf(FieldMessage, "_regex", "(network|connection|timeout|heartbeat|unreachable)"),
				PriorityAtMost(Warning),
			),
			HoursBack: 24,
			Limit:     150,
		},
		{
			ID:          "mon_election",
			Name:        "Monitor Election Issues",
			Description: "Check for monitor election problems and quorum issues",
			Where: allOf(
				leaf(FieldUnit, "_contains", "ceph-mon"),
				leaf(FieldMessage, "_regex", "(election|quorum|leader|paxos)"),
				PriorityAtMost(Notice),
			),
			HoursBack: 24,
			Limit:     100,
		},
		{
			ID:          "storage_errors",
			Name:        "Storage Hardware Errors",
			Description: "Find disk errors, SMART failures, and storage subsystem issues",
			Where: allOf(
				leaf(FieldMessage, "_regex", "(disk|storage|smart|hardware|device)"),
				leaf(FieldMessage, "_regex", "(error|fail|abort|timeout)"),
				PriorityAtMost(Warning),
			),
			HoursBack: 168,
			Limit:     100,
		},
		{
			ID:          "kernel_ceph_errors",
			Name:        "Kernel Ceph Issues",
			Description: "Check kernel-level Ceph messages and errors",
			Where: allOf(
				leaf(FieldTransport, "_eq", "kernel"),
				leaf(FieldMessage, "_regex", "(ceph|rbd|rados)"),
				PriorityAtMost(Warning),
			),
			HoursBack: 48,
			Limit:     100,
		},
		{
			ID:          "rbd_mapping_issues",
			Name:        "RBD Mapping Problems",
			Description: "Find RBD image mapping/unmapping issues and client problems",
			Where: allOf(
				leaf(FieldMessage, "_contains", "rbd"),
				leaf(FieldMessage, "_regex", "(map|unmap|mount|unmount|client)"),
				PriorityAtMost(Notice),
			),
			HoursBack: 24,
			Limit:     100,
		},
		{
			ID:          "recent_startup",
			Name:        "Recent Service Startups",
			Description: "Check recent Ceph service startups and initialization",
			Where: allOf(
				leaf(FieldUnit, "_regex", "ceph-.*"),
				leaf(FieldMessage, "_regex", "(start|init|boot|mount|active)"),
				PriorityAtMost(Info),
			),
			HoursBack: 6,
			Limit:     200,
		},
		{
			ID:                  "specific_osd_analysis",
			Name:                "Specific OSD Analysis (Ceph-friendly syntax)",
			Description:         "Analyze specific OSD using natural Ceph syntax (e.g., 'osd.12')",
			Where:               allOf(leaf(FieldUnit, "_contains", "ceph-osd@12"), PriorityAtMost(Notice)),
			HoursBack:           48,
			Limit:               150,
			UserFriendlyExample: "Search for 'osd.12 issues' - automatically translates to systemd service name",
		},
		{
			ID:          "mon_specific_debugging",
			Name:        "Monitor Service Debugging (Ceph-friendly syntax)",
			Description: "Debug specific monitor using natural Ceph syntax (e.g., 'mon.node1')",
			Where: allOf(
				leaf(FieldUnit, "_contains", "ceph-mon@node1"),
				PriorityAtMost(Warning),
				leaf(FieldMessage, "_regex", "(error|warn|fail|election|quorum)"),
			),
			HoursBack:           24,
			Limit:               100,
			UserFriendlyExample: "Search for 'mon.node1 election problems' - auto-translates service names",
		},
		{
			ID:          "ceph_service_translation_showcase",
			Name:        "Ceph Service Translation Examples",
			Description: "Showcase automatic translation of Ceph service names to systemd format",
			Examples: map[string]string{
				"osd.12":       "Translates to " + TranslateService("osd.12"),
				"mon.hostname": "Translates to " + TranslateService("mon.hostname"),
				"mgr.node1":    "Translates to " + TranslateService("mgr.node1"),
				"mds.fs-node":  "Translates to " + TranslateService("mds.fs-node"),
				"rgw.gateway":  "Translates to " + TranslateService("rgw.gateway"),
			},
			UsageExamples: []string{
				"Search: 'osd.5 slow requests' finds ceph-osd@5.service logs",
				"Search: 'mon.ceph01 election' finds ceph-mon@ceph01.service logs",
				"Search: 'mgr.primary errors' finds ceph-mgr@primary.service logs",
			},
			Where: allOf(
				leaf(FieldUnit, "_regex", "ceph-(osd|mon|mgr|mds|radosgw)@.*"),
				PriorityAtMost(Info),
			),
			HoursBack: 12,
			Limit:     100,
		},
	}
}

// FindTemplate returns the template with the given id.
func FindTemplate(id string) (DebugTemplate, bool) {
	for _, t := range DebugTemplates() {
		if t.ID == id {
			return t, true
		}
	}
	return DebugTemplate{}, false
}

// TemplateIDs lists the scenario ids.
func TemplateIDs() []string {
	templates := DebugTemplates()
	ids := make([]string, len(templates))
	for i, t := range templates {
		ids[i] = t.ID
	}
	return ids
}

// SearchTemplates returns templates whose name or description contains
// keyword, case-insensitively.
func SearchTemplates(keyword string) []DebugTemplate {
	kw := strings.ToLower(keyword)
	var out []DebugTemplate
	for _, t := range DebugTemplates() {
		if strings.Contains(strings.ToLower(t.Name), kw) || strings.Contains(strings.ToLower(t.Description), kw) {
			out = append(out, t)
		}
	}
	return out
}
