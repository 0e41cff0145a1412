// Package security provides masking helpers that keep the croit API token
// out of logs, audit entries and error messages.
package security

import (
	"regexp"
	"strings"
)

const redacted = "***REDACTED***"

// MaskBearerToken masks a bearer token for safe logging
func MaskBearerToken(token string) string {
	if len(token) <= 10 {
		return redacted
	}
	return token[:6] + "..." + token[len(token)-4:]
}

// SensitivePatterns contains regex patterns for sensitive data
var SensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(api[_-]?key|apikey|api[_-]?token)[=:]["']?([a-zA-Z0-9_.-]{8,})["']?`),
	regexp.MustCompile(`(?i)(bearer\s+)([a-zA-Z0-9_.-]{8,})`),
	regexp.MustCompile(`(?i)(password|passwd|pwd)[=:]["']?([^"'\s&]+)["']?`),
	regexp.MustCompile(`(?i)(secret|token)[=:]["']?([a-zA-Z0-9_.-]{8,})["']?`),
}

// MaskSensitiveData masks sensitive data in a string using pattern matching
func MaskSensitiveData(data string) string {
	result := data

	for _, pattern := range SensitivePatterns {
		result = pattern.ReplaceAllStringFunc(result, func(match string) string {
			// Keep the key name, mask the value
			parts := pattern.FindStringSubmatch(match)
			if len(parts) >= 3 {
				return parts[1] + redacted
			}
			return redacted
		})
	}

	return result
}

var sensitiveURLParams = func() []*regexp.Regexp {
	params := []string{
		"api_key", "apikey", "api_token",
		"token", "access_token", "auth_token",
		"password", "secret",
	}
	out := make([]*regexp.Regexp, 0, len(params))
	for _, p := range params {
		out = append(out, regexp.MustCompile(`(?i)([?&]`+regexp.QuoteMeta(p)+`=)([^&\s]+)`))
	}
	return out
}()

// MaskURL masks sensitive query parameters in URLs, such as the token the
// log stream passes in its query string.
func MaskURL(rawURL string) string {
	result := rawURL
	for _, pattern := range sensitiveURLParams {
		result = pattern.ReplaceAllString(result, "${1}"+redacted)
	}
	return result
}

// IsSensitiveField checks if a field name indicates sensitive data
func IsSensitiveField(fieldName string) bool {
	sensitiveNames := []string{
		"password", "passwd", "secret", "token", "apikey", "api_key",
		"authorization", "credential", "private", "ssh",
	}

	fieldLower := strings.ToLower(fieldName)
	for _, name := range sensitiveNames {
		if strings.Contains(fieldLower, name) {
			return true
		}
	}

	return false
}

// RedactArguments returns a shallow copy of tool arguments with sensitive
// values masked. Nested maps are redacted recursively.
func RedactArguments(args map[string]interface{}) map[string]interface{} {
	if args == nil {
		return nil
	}
	out := make(map[string]interface{}, len(args))
	for k, v := range args {
		if IsSensitiveField(k) {
			out[k] = redacted
			continue
		}
		if nested, ok := v.(map[string]interface{}); ok {
			out[k] = RedactArguments(nested)
			continue
		}
		out[k] = v
	}
	return out
}

// SanitizeError removes sensitive data from error messages
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return MaskURL(MaskSensitiveData(err.Error()))
}
