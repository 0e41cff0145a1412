package health

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/croit/mcp-croit-ceph/internal/client"
	"github.com/croit/mcp-croit-ceph/internal/security"
)

// Status represents the health status
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// probePath is the cheapest authenticated endpoint every croit release serves.
const probePath = "/swagger.json"

// slowProbe marks a reachable but sluggish cluster as degraded.
const slowProbe = 3 * time.Second

// Check represents a health check result
type Check struct {
	Name      string        `json:"name"`
	Status    Status        `json:"status"`
	Message   string        `json:"message,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`
}

// Checker performs health checks
type Checker struct {
	client *client.Client
	logger *zap.Logger
}

// New creates a new health checker
func New(c *client.Client, logger *zap.Logger) *Checker {
	return &Checker{
		client: c,
		logger: logger,
	}
}

// CheckAll performs all health checks
func (c *Checker) CheckAll(ctx context.Context) (Status, []Check) {
	checks := []Check{
		c.checkConfiguration(),
		c.checkAPIConnectivity(ctx),
	}

	overallStatus := StatusHealthy
	for _, check := range checks {
		if check.Status == StatusUnhealthy {
			overallStatus = StatusUnhealthy
			break
		} else if check.Status == StatusDegraded && overallStatus == StatusHealthy {
			overallStatus = StatusDegraded
		}
	}

	return overallStatus, checks
}

// checkConfiguration verifies host and token are present
func (c *Checker) checkConfiguration() Check {
	start := time.Now()
	check := Check{
		Name:      "configuration",
		Timestamp: start,
		Status:    StatusHealthy,
		Message:   "Host and API token configured",
	}

	cfg := c.client.Config()
	switch {
	case cfg.Host == "":
		check.Status = StatusUnhealthy
		check.Message = "CROIT_HOST is not set"
	case cfg.APIToken == "":
		check.Status = StatusUnhealthy
		check.Message = "CROIT_API_TOKEN is not set"
	}
	check.Duration = time.Since(start)
	return check
}

// checkAPIConnectivity fetches the API document with the configured token
func (c *Checker) checkAPIConnectivity(ctx context.Context) Check {
	start := time.Now()
	check := Check{
		Name:      "api_connectivity",
		Timestamp: start,
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	resp, err := c.client.Get(checkCtx, probePath, nil)
	check.Duration = time.Since(start)

	switch {
	case err != nil:
		if check.Duration > slowProbe {
			check.Status = StatusDegraded
			check.Message = "API responding slowly"
		} else {
			check.Status = StatusUnhealthy
			check.Message = "API unreachable: " + security.SanitizeError(err)
		}
		c.logger.Warn("Health check failed: API connectivity",
			zap.String("error", security.SanitizeError(err)),
			zap.Duration("duration", check.Duration),
		)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		check.Status = StatusUnhealthy
		check.Message = fmt.Sprintf("API token rejected (HTTP %d)", resp.StatusCode)
		c.logger.Error("Health check failed: authentication",
			zap.Int("status", resp.StatusCode),
		)
	case !resp.IsSuccess():
		check.Status = StatusDegraded
		check.Message = fmt.Sprintf("API returned HTTP %d", resp.StatusCode)
	case check.Duration > slowProbe:
		check.Status = StatusDegraded
		check.Message = "API responding slowly"
	default:
		check.Status = StatusHealthy
		check.Message = "API reachable"
		c.logger.Debug("Health check passed: API connectivity",
			zap.Duration("duration", check.Duration),
		)
	}

	return check
}
