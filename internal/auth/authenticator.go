// Package auth authenticates requests against the croit API with a static
// bearer token.
package auth

import (
	"fmt"
	"net/http"

	"github.com/IBM/go-sdk-core/v5/core"
	"go.uber.org/zap"

	"github.com/croit/mcp-croit-ceph/internal/security"
)

// Authenticator adds the croit bearer token to outgoing requests
type Authenticator struct {
	authenticator *core.BearerTokenAuthenticator
	logger        *zap.Logger
}

// New creates a new bearer token authenticator
func New(token string, logger *zap.Logger) (*Authenticator, error) {
	if token == "" {
		return nil, fmt.Errorf("API token is required")
	}

	authenticator, err := core.NewBearerTokenAuthenticator(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create authenticator: %w", err)
	}

	logger.Debug("Bearer token authenticator initialized",
		zap.String("token", security.MaskBearerToken(token)),
	)

	return &Authenticator{
		authenticator: authenticator,
		logger:        logger,
	}, nil
}

// Authenticate adds authentication to an HTTP request
func (a *Authenticator) Authenticate(req *http.Request) error {
	if req == nil {
		return fmt.Errorf("request cannot be nil")
	}

	if err := a.authenticator.Authenticate(req); err != nil {
		a.logger.Error("Authentication failed", zap.Error(err))
		return fmt.Errorf("authentication failed: %w", err)
	}

	return nil
}

// Header returns the Authorization header value, for transports that do not
// go through net/http requests such as the log stream handshake.
func (a *Authenticator) Header() http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+a.authenticator.BearerToken)
	return h
}

// Token returns the raw bearer token.
func (a *Authenticator) Token() string {
	return a.authenticator.BearerToken
}

// WithToken returns an authenticator for a per-call token override.
func (a *Authenticator) WithToken(token string) (*Authenticator, error) {
	if token == "" || token == a.Token() {
		return a, nil
	}
	return New(token, a.logger)
}
