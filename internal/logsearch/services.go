package logsearch

import (
	"regexp"
	"strings"
)

var serviceRefPattern = regexp.MustCompile(`(?i)\b(osd|mon|mgr|mds|rgw)\.[\w\-.]+\b`)

type unitRule struct {
	pattern *regexp.Regexp
	unit    string
}

// one rule per daemon family; the capture group is the instance id
var unitRules = []unitRule{
	{regexp.MustCompile(`^osd\.(\d+)$`), "ceph-osd@%s.service"},
	{regexp.MustCompile(`^mon\.(.+)$`), "ceph-mon@%s.service"},
	{regexp.MustCompile(`^mgr\.(.+)$`), "ceph-mgr@%s.service"},
	{regexp.MustCompile(`^mds\.(.+)$`), "ceph-mds@%s.service"},
	{regexp.MustCompile(`^rgw\.(.+)$`), "ceph-radosgw@%s.service"},
}

// TranslateService maps a Ceph daemon name such as osd.12 to its systemd
// unit, ceph-osd@12.service. Names that match no rule are returned as is.
func TranslateService(name string) string {
	lower := strings.ToLower(name)
	for _, rule := range unitRules {
		if m := rule.pattern.FindStringSubmatch(lower); m != nil {
			// keep the instance id as written
			id := name[len(name)-len(m[1]):]
			return strings.Replace(rule.unit, "%s", id, 1)
		}
	}
	return name
}

// DetectServices returns the daemon references (osd.3, mon.node1, ...) found
// in text, in order of appearance.
func DetectServices(text string) []string {
	return serviceRefPattern.FindAllString(text, -1)
}
