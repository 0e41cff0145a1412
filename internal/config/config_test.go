package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// isolate clears the environment and points the config path at a file that
// does not exist.
func isolate(t *testing.T) {
	t.Helper()
	os.Clearenv()
	_ = os.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.json"))
}

func TestLoadConfiguration(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr bool
	}{
		{
			name: "valid configuration",
			envVars: map[string]string{
				"CROIT_HOST":      "https://croit.example.com",
				"CROIT_API_TOKEN": "test-api-token", // pragma: allowlist secret
			},
			wantErr: false,
		},
		{
			name: "missing host",
			envVars: map[string]string{
				"CROIT_API_TOKEN": "test-api-token", // pragma: allowlist secret
			},
			wantErr: true,
		},
		{
			name: "missing token",
			envVars: map[string]string{
				"CROIT_HOST": "https://croit.example.com",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			for k, v := range tt.envVars {
				_ = os.Setenv(k, v)
			}

			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load() failed: %v", err)
			}

			err = cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigDefaults(t *testing.T) {
	isolate(t)
	_ = os.Setenv("CROIT_HOST", "http://10.0.0.1/")
	_ = os.Setenv("CROIT_API_TOKEN", "test-token") // pragma: allowlist secret

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Host != "http://10.0.0.1" {
		t.Errorf("Expected trailing slash stripped, got %q", cfg.Host)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Expected default timeout 30s, got %v", cfg.Timeout)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("Expected default max_retries 3, got %d", cfg.MaxRetries)
	}
	if cfg.CacheMaxEntries != 100 {
		t.Errorf("Expected default cache size 100, got %d", cfg.CacheMaxEntries)
	}
	if cfg.StoreMaxEntries != 50 || cfg.StoreTTL != 30*time.Minute {
		t.Errorf("Expected response store 50 entries / 30m, got %d / %v", cfg.StoreMaxEntries, cfg.StoreTTL)
	}
	if cfg.StreamSessionTimeout != 30*time.Second || cfg.StreamMessageTimeout != 5*time.Second {
		t.Errorf("Unexpected stream timeouts %v / %v", cfg.StreamSessionTimeout, cfg.StreamMessageTimeout)
	}
	if !cfg.TLSVerify {
		t.Error("Expected TLSVerify to be true by default")
	}
	if !cfg.ResolveReferences || !cfg.EnableCategoryTools || !cfg.EnableLogTools {
		t.Error("Expected reference resolution, category tools and log tools on by default")
	}
}

func TestLoadFromFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{"host": "https://file.example.com/", "api_token": "file-token", "cache_max_entries": 7}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	_ = os.Setenv("CONFIG_PATH", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Host != "https://file.example.com" {
		t.Errorf("Host = %q", cfg.Host)
	}
	if cfg.APIToken != "file-token" { // pragma: allowlist secret
		t.Errorf("APIToken = %q", cfg.APIToken)
	}
	if cfg.CacheMaxEntries != 7 {
		t.Errorf("CacheMaxEntries = %d, want 7", cfg.CacheMaxEntries)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("keys absent from the file should keep defaults, got timeout %v", cfg.Timeout)
	}

	// Environment wins over the file
	_ = os.Setenv("CROIT_HOST", "https://env.example.com")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Host != "https://env.example.com" {
		t.Errorf("env should override file, got %q", cfg.Host)
	}
}

func TestLoadExplicitMissingFile(t *testing.T) {
	isolate(t)
	_ = os.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "nope.json"))

	if _, err := Load(); err == nil {
		t.Error("expected an error for a missing CONFIG_FILE")
	}
}

func TestParseHost(t *testing.T) {
	tests := []struct {
		input string
		want  Endpoint
	}{
		{"https://cluster.example.com:9000", Endpoint{"https", "cluster.example.com", 9000, true}},
		{"http://192.168.1.100", Endpoint{"http", "192.168.1.100", 8080, false}},
		{"https://croit.local/", Endpoint{"https", "croit.local", 443, true}},
		{"invalid-url", Endpoint{"http", "invalid-url", 8080, false}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseHost(tt.input)
			if err != nil {
				t.Fatalf("ParseHost() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseHost(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}

	if _, err := ParseHost(""); err == nil {
		t.Error("expected an error for an empty host")
	}
}

func TestLogEndpoint(t *testing.T) {
	cfg := &Config{Host: "https://croit.local", LogPort: 8080}
	ep := cfg.LogEndpoint()
	if ep.Port != 8080 || ep.WebSocketScheme() != "wss" {
		t.Errorf("LogEndpoint() = %+v", ep)
	}
	if got := ep.BaseURL(); got != "https://croit.local:8080" {
		t.Errorf("BaseURL() = %q", got)
	}
}

func TestConfigRedact(t *testing.T) {
	cfg := &Config{
		Host:     "https://croit.example.com",
		APIToken: "secret-key-12345", // pragma: allowlist secret
	}

	redacted := cfg.Redact()

	expectedMasked := "secr...2345"          // pragma: allowlist secret
	if redacted.APIToken != expectedMasked { // pragma: allowlist secret
		t.Errorf("Expected %s, got %s", expectedMasked, redacted.APIToken)
	}
	if redacted.Host != cfg.Host {
		t.Error("Host should not be changed")
	}
	if cfg.APIToken != "secret-key-12345" { // pragma: allowlist secret
		t.Error("Redact must not modify the original")
	}

	short := (&Config{APIToken: "short"}).Redact()
	if short.APIToken != "***REDACTED***" {
		t.Errorf("Expected ***REDACTED***, got %s", short.APIToken)
	}
}

func TestMaskAPIKey(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", ""},
		{"short", "***"},
		{"exactly8", "***"},
		{"secret-key-12345", "secr...2345"}, // pragma: allowlist secret
		{"abcdefghijklmnopqrstuvwxyz", "abcd...wxyz"},
	}

	for _, tt := range tests {
		result := MaskAPIKey(tt.input)
		if result != tt.expected {
			t.Errorf("MaskAPIKey(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestConfigValidation(t *testing.T) {
	valid := func() Config {
		c := *Defaults()
		c.Host = "https://croit.example.com"
		c.APIToken = "test-key" // pragma: allowlist secret
		return c
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid config", func(*Config) {}, false},
		{"invalid timeout", func(c *Config) { c.Timeout = 0 }, true},
		{"invalid log level", func(c *Config) { c.LogLevel = "invalid" }, true},
		{"zero cache size", func(c *Config) { c.CacheMaxEntries = 0 }, true},
		{"rate limit disabled", func(c *Config) { c.RateLimit = 0; c.EnableRateLimit = false }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
