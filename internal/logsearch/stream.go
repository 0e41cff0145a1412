package logsearch

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/croit/mcp-croit-ceph/internal/config"
)

// Control message types sent by the log backend.
const (
	ControlClear   = "clear"
	ControlEmpty   = "empty"
	ControlTooWide = "too_wide"
	ControlHits    = "hits"
	ControlError   = "error"
)

// Default stream deadlines.
const (
	DefaultSessionTimeout = 30 * time.Second
	DefaultMessageTimeout = 5 * time.Second
)

// ParseControl recognizes the backend's sentinel strings. The second return
// value is false for ordinary log payloads.
func ParseControl(msg string) (ControlMessage, bool) {
	trimmed := strings.TrimSpace(msg)
	switch trimmed {
	case ControlClear:
		return ControlMessage{Type: ControlClear, Message: "Log display cleared"}, true
	case ControlEmpty:
		return ControlMessage{Type: ControlEmpty, Message: "No logs found for current query"}, true
	case ControlTooWide:
		return ControlMessage{Type: ControlTooWide, Message: "Query too broad (>1M logs), please add more filters"}, true
	}

	if rest, ok := strings.CutPrefix(trimmed, "hits:"); ok {
		rest = strings.TrimSpace(rest)
		cm := ControlMessage{Type: ControlHits}
		if rest != "" && rest != "null" {
			if v, err := DecodeLine([]byte(rest)); err == nil {
				cm.Data = v
			} else {
				cm.Message = rest
			}
		}
		return cm, true
	}

	if rest, ok := strings.CutPrefix(trimmed, "error:"); ok {
		return ControlMessage{Type: ControlError, Message: strings.TrimSpace(rest)}, true
	}

	return ControlMessage{}, false
}

// terminal control messages end the read loop
func isTerminal(cm ControlMessage) bool {
	switch cm.Type {
	case ControlEmpty, ControlTooWide, ControlError:
		return true
	}
	return false
}

// StreamChannel queries the log backend over its WebSocket endpoint.
type StreamChannel struct {
	endpoint       config.Endpoint
	token          string
	dialer         *websocket.Dialer
	sessionTimeout time.Duration
	messageTimeout time.Duration
	logger         *zap.Logger
}

// StreamOption configures a StreamChannel.
type StreamOption func(*StreamChannel)

// WithTimeouts overrides the session and per-message deadlines.
func WithTimeouts(session, message time.Duration) StreamOption {
	return func(s *StreamChannel) {
		if session > 0 {
			s.sessionTimeout = session
		}
		if message > 0 {
			s.messageTimeout = message
		}
	}
}

// NewStreamChannel creates a stream channel for endpoint. tlsConfig may be
// nil for plain ws endpoints.
func NewStreamChannel(endpoint config.Endpoint, token string, tlsConfig *tls.Config, logger *zap.Logger, opts ...StreamOption) *StreamChannel {
	s := &StreamChannel{
		endpoint: endpoint,
		token:    token,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
			TLSClientConfig:  tlsConfig,
			Proxy:            http.ProxyFromEnvironment,
		},
		sessionTimeout: DefaultSessionTimeout,
		messageTimeout: DefaultMessageTimeout,
		logger:         logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements Channel.
func (s *StreamChannel) Name() string { return ChannelStream }

// URL returns the WebSocket URL for token.
func (s *StreamChannel) URL(token string) string {
	u := url.URL{
		Scheme: s.endpoint.WebSocketScheme(),
		Host:   net.JoinHostPort(s.endpoint.Hostname, fmt.Sprint(s.endpoint.Port)),
		Path:   "/api/logs",
	}
	if token != "" {
		u.RawQuery = url.Values{"token": {token}}.Encode()
	}
	return u.String()
}

// Fetch sends q and collects messages until a deadline, a close frame or a
// terminal control message. Deadlines end the read loop without error.
func (s *StreamChannel) Fetch(ctx context.Context, q LogQuery) (*Result, error) {
	token := s.token
	if q.Token != "" {
		token = q.Token
	}

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	dialCtx, cancelDial := context.WithTimeout(ctx, s.sessionTimeout)
	defer cancelDial()

	conn, resp, err := s.dialer.DialContext(dialCtx, s.URL(token), header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket handshake failed: HTTP %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket connect failed: %w", err)
	}
	defer conn.Close()

	// unblock the read loop when the caller gives up
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	payload, err := json.Marshal(q.Message())
	if err != nil {
		return nil, fmt.Errorf("failed to encode log query: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return nil, fmt.Errorf("failed to send log query: %w", err)
	}

	result := &Result{TimeRange: q.TimeRange()}
	sessionDeadline := time.Now().Add(s.sessionTimeout)

	for {
		deadline := time.Now().Add(s.messageTimeout)
		if deadline.After(sessionDeadline) {
			deadline = sessionDeadline
		}
		if err := conn.SetReadDeadline(deadline); err != nil {
			return nil, fmt.Errorf("failed to set read deadline: %w", err)
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if isGracefulEnd(err) {
				s.logger.Debug("Log stream ended",
					zap.Int("records", len(result.Logs)),
					zap.String("reason", err.Error()),
				)
				return result, nil
			}
			return nil, fmt.Errorf("websocket read failed: %w", err)
		}

		if cm, ok := ParseControl(string(data)); ok {
			result.addControl(cm)
			if cm.Type == ControlError {
				s.logger.Warn("Log backend reported an error", zap.String("message", cm.Message))
			}
			if isTerminal(cm) {
				return result, nil
			}
			continue
		}

		records, err := DecodeRecords(data)
		if err != nil {
			result.Logs = append(result.Logs, ParseFailure(string(data), len(result.Logs)+1, err))
			continue
		}
		result.Logs = append(result.Logs, records...)
	}
}

func isGracefulEnd(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var closeErr *websocket.CloseError
	return errors.As(err, &closeErr)
}
