package cache

import (
	"crypto/md5" // #nosec G501 -- cache key, not a security boundary
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// TTL tiers by endpoint shape.
const (
	StatusTTL  = 60 * time.Second
	StatsTTL   = 180 * time.Second
	ListTTL    = 600 * time.Second
	DefaultTTL = 300 * time.Second
)

// RequestKey returns a stable key for a request: the md5 of
// METHOD:url, with the params appended as JSON sorted by key.
func RequestKey(method, url string, params map[string]interface{}) string {
	raw := strings.ToUpper(method) + ":" + url
	if len(params) > 0 {
		raw += ":" + sortedJSON(params)
	}
	sum := md5.Sum([]byte(raw)) // #nosec G401
	return hex.EncodeToString(sum[:])
}

// sortedJSON encodes params with sorted keys. encoding/json already sorts
// map keys; the explicit pass keeps the order independent of the encoder.
func sortedJSON(params map[string]interface{}) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		kb, _ := json.Marshal(k)
		vb, err := json.Marshal(params[k])
		if err != nil {
			vb = []byte(`null`)
		}
		b.Write(kb)
		b.WriteByte(':')
		b.Write(vb)
	}
	b.WriteByte('}')
	return b.String()
}

var ttlTiers = []struct {
	patterns []string
	ttl      time.Duration
}{
	{[]string{"/status", "/health"}, StatusTTL},
	{[]string{"/stats", "/metrics"}, StatsTTL},
	{[]string{"/list", "/all"}, ListTTL},
}

// TTLFor picks a TTL from the shape of the URL. The first matching tier wins.
func TTLFor(url string) time.Duration {
	u := strings.ToLower(url)
	for _, tier := range ttlTiers {
		for _, p := range tier.patterns {
			if strings.Contains(u, p) {
				return tier.ttl
			}
		}
	}
	return DefaultTTL
}
