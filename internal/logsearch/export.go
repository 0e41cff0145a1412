package logsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/croit/mcp-croit-ceph/internal/auth"
	"github.com/croit/mcp-croit-ceph/internal/client"
	"github.com/croit/mcp-croit-ceph/internal/config"
	mcperrors "github.com/croit/mcp-croit-ceph/internal/errors"
)

// ExportPath is the batch export endpoint of the log backend.
const ExportPath = "/api/logs/export"

var (
	zipMagic  = []byte("PK\x03\x04")
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// ExportChannel queries the log backend through its batch export endpoint.
type ExportChannel struct {
	client   *client.Client
	endpoint config.Endpoint
	logger   *zap.Logger
}

// NewExportChannel creates an export channel against endpoint.
func NewExportChannel(c *client.Client, endpoint config.Endpoint, logger *zap.Logger) *ExportChannel {
	return &ExportChannel{client: c, endpoint: endpoint, logger: logger}
}

// Name implements Channel.
func (e *ExportChannel) Name() string { return ChannelExport }

// URL returns the export request URL for q.
func (e *ExportChannel) URL(q LogQuery) (string, error) {
	payload, err := json.Marshal(q.Message())
	if err != nil {
		return "", fmt.Errorf("failed to encode log query: %w", err)
	}
	params := url.Values{
		"format": {"RAW"},
		"query":  {string(payload)},
	}
	return e.endpoint.BaseURL() + ExportPath + "?" + params.Encode(), nil
}

// Fetch runs q. Inline {"logs": [...]} responses are used directly; a
// {"url": ...} response is downloaded and extracted. Any other body is read
// as NDJSON.
func (e *ExportChannel) Fetch(ctx context.Context, q LogQuery) (*Result, error) {
	requestURL, err := e.URL(q)
	if err != nil {
		return nil, err
	}

	var authenticator client.Authenticator
	if q.Token != "" {
		a, err := auth.New(q.Token, e.logger)
		if err != nil {
			return nil, err
		}
		authenticator = a
	}

	resp, err := e.client.Do(ctx, &client.Request{
		Method:        http.MethodGet,
		URL:           requestURL,
		Authenticator: authenticator,
	})
	if err != nil {
		return nil, fmt.Errorf("export request failed: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("export request failed: HTTP %d: %s",
			resp.StatusCode, mcperrors.Truncate(string(resp.Body), 200))
	}

	result := &Result{TimeRange: q.TimeRange()}

	body, err := DecodeLine(resp.Body)
	if err != nil {
		// some backends answer with the NDJSON stream directly
		result.Logs = ParseLines(resp.Body)
		return result, nil
	}

	obj, ok := body.(map[string]interface{})
	if !ok {
		result.Logs = recordsFrom(body)
		return result, nil
	}

	if logs, ok := obj["logs"].([]interface{}); ok {
		result.Logs = recordsFrom(logs)
		return result, nil
	}

	download, _ := obj["url"].(string)
	if download == "" {
		if msg, ok := obj["error"].(string); ok {
			return nil, fmt.Errorf("export failed: %s", msg)
		}
		// a one-line NDJSON body decodes as a single object
		if rec := Record(obj); rec.Message() != "" {
			result.Logs = []Record{rec}
			return result, nil
		}
		return nil, fmt.Errorf("export response has neither logs nor a download url")
	}

	archive, err := e.client.Download(ctx, download, authenticator)
	if err != nil {
		return nil, err
	}

	logs, err := ExtractArchive(archive.Body)
	if err != nil {
		return nil, err
	}
	result.Logs = logs
	result.addControl(ControlMessage{Type: "success", Message: fmt.Sprintf("Downloaded %d logs", len(logs))})

	e.logger.Debug("Extracted log archive",
		zap.Int("bytes", len(archive.Body)),
		zap.Int("records", len(logs)),
	)
	return result, nil
}

// ExtractArchive returns one record per non-blank line of every member of a
// ZIP archive. gzip or zstd compressed and plain NDJSON payloads are also
// accepted.
func ExtractArchive(data []byte) ([]Record, error) {
	switch {
	case bytes.HasPrefix(data, zipMagic):
		return extractZip(data)
	case bytes.HasPrefix(data, gzipMagic):
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("invalid gzip archive: %w", err)
		}
		defer zr.Close()
		plain, err := io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("failed to read gzip archive: %w", err)
		}
		return ParseLines(plain), nil
	case bytes.HasPrefix(data, zstdMagic):
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		plain, err := dec.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("invalid zstd archive: %w", err)
		}
		return ParseLines(plain), nil
	}
	return ParseLines(data), nil
}

func extractZip(data []byte) ([]Record, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("invalid zip archive: %w", err)
	}

	var logs []Record
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", f.Name, err)
		}
		content, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", f.Name, err)
		}
		logs = append(logs, ParseLines(content)...)
	}
	if logs == nil {
		logs = []Record{}
	}
	return logs, nil
}
