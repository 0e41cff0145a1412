package auth

import (
	"net/http"
	"testing"

	"go.uber.org/zap"
)

func TestNewAuthenticator(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{
			name:    "valid token",
			token:   "test-api-token-12345", //nolint:gosec // test value, not a real secret
			wantErr: false,
		},
		{
			name:    "empty token",
			token:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth, err := New(tt.token, logger)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && auth == nil {
				t.Error("Expected authenticator to be created")
			}
		})
	}
}

func TestAuthenticate(t *testing.T) {
	auth, err := New("test-api-token", zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to create authenticator: %v", err)
	}

	req, _ := http.NewRequest("GET", "https://croit.example.com/api/servers", nil)
	if err := auth.Authenticate(req); err != nil {
		t.Fatalf("Authenticate() failed: %v", err)
	}

	if got := req.Header.Get("Authorization"); got != "Bearer test-api-token" {
		t.Errorf("Authorization = %q", got)
	}
	if got := auth.Header().Get("Authorization"); got != "Bearer test-api-token" {
		t.Errorf("Header() = %q", got)
	}
}

func TestAuthenticateNilRequest(t *testing.T) {
	auth, err := New("test-api-token", zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to create authenticator: %v", err)
	}

	if err := auth.Authenticate(nil); err == nil {
		t.Error("Expected error for nil request")
	}
}

func TestWithToken(t *testing.T) {
	auth, err := New("default-token", zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	same, err := auth.WithToken("")
	if err != nil || same != auth {
		t.Error("empty override should return the same authenticator")
	}

	other, err := auth.WithToken("override-token")
	if err != nil {
		t.Fatal(err)
	}
	if other.Token() != "override-token" {
		t.Errorf("Token() = %q", other.Token())
	}
	if auth.Token() != "default-token" {
		t.Error("override must not change the original")
	}
}
