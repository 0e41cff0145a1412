package optimizer

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/gzip"
)

// DefaultCompressThreshold is the JSON size above which lists are compressed.
const DefaultCompressThreshold = 10 * 1024

// CompressionMethod identifies the payload encoding.
const CompressionMethod = "gzip+base64"

var compressionBufferPool = sync.Pool{
	New: func() interface{} {
		return new(bytes.Buffer)
	},
}

// Compress gzips and base64-encodes lists whose compact JSON is larger than
// threshold. Anything else is returned unchanged.
func Compress(data interface{}, threshold int) (interface{}, error) {
	if threshold <= 0 {
		threshold = DefaultCompressThreshold
	}
	if _, ok := data.([]interface{}); !ok {
		return data, nil
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode response: %w", err)
	}
	if len(raw) <= threshold {
		return data, nil
	}

	buf := compressionBufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer compressionBufferPool.Put(buf)

	gz, err := gzip.NewWriterLevel(buf, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := gz.Write(raw); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}

	encoded := base64.StdEncoding.EncodeToString(buf.Bytes())
	ratio := float64(len(encoded)) / float64(len(raw))

	return map[string]interface{}{
		"_compressed": true,
		"data":        encoded,
		"compression_info": map[string]interface{}{
			"original_size":      len(raw),
			"compressed_size":    len(encoded),
			"compression_ratio":  fmt.Sprintf("%.3f", ratio),
			"space_saved":        fmt.Sprintf("%.1f%%", (1-ratio)*100),
			"decompression_note": "Data is gzip-compressed and base64-encoded. Use standard gzip + base64 decoding.",
		},
		"original_format":    "application/json",
		"compression_method": CompressionMethod,
	}, nil
}

// Decompress reverses Compress. Values that are not compressed envelopes are
// returned unchanged.
func Decompress(data interface{}) (interface{}, error) {
	env, ok := data.(map[string]interface{})
	if !ok || env["_compressed"] != true {
		return data, nil
	}
	encoded, ok := env["data"].(string)
	if !ok {
		return nil, fmt.Errorf("compressed envelope has no data")
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}
	gz, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to open gzip payload: %w", err)
	}
	defer gz.Close()

	plain, err := io.ReadAll(gz)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress payload: %w", err)
	}

	var out interface{}
	if err := json.Unmarshal(plain, &out); err != nil {
		return nil, fmt.Errorf("failed to parse payload: %w", err)
	}
	return out, nil
}
