package middleware

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/klauspost/compress/gzhttp"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/openctemio/toolstudio/pkg/apierror"
)

// CompressMinSize is the smallest response body that gets gzipped.
const CompressMinSize = 1024

// Compress gzips responses for clients that accept it.
func Compress() (func(http.Handler) http.Handler, error) {
	wrap, err := gzhttp.NewWrapper(
		gzhttp.MinSize(CompressMinSize),
		gzhttp.ContentTypes([]string{"application/json", "text/plain", "text/event-stream"}),
	)
	if err != nil {
		return nil, fmt.Errorf("gzip wrapper: %w", err)
	}
	return func(next http.Handler) http.Handler {
		return wrap(next)
	}, nil
}

// DecompressConfig bounds request body decompression.
type DecompressConfig struct {
	// MaxDecompressedSize caps the inflated body.
	MaxDecompressedSize int64
	// MaxCompressionRatio rejects bodies that inflate beyond this factor.
	MaxCompressionRatio float64
}

// DefaultDecompressConfig returns limits sized for catalog payloads.
func DefaultDecompressConfig() DecompressConfig {
	return DecompressConfig{
		MaxDecompressedSize: 8 << 20,
		MaxCompressionRatio: 100,
	}
}

// Decompress inflates gzip or zstd request bodies so bulk imports and large
// schemas can be sent compressed. Install it after BodyLimit so the wire
// limit applies to the compressed bytes.
func Decompress(cfg DecompressConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			encoding := strings.ToLower(strings.TrimSpace(r.Header.Get("Content-Encoding")))
			if encoding == "" || encoding == "identity" || r.Body == nil {
				next.ServeHTTP(w, r)
				return
			}

			requestID := GetRequestID(r.Context())
			if encoding != "gzip" && encoding != "zstd" {
				apierror.New(http.StatusUnsupportedMediaType, apierror.CodeBadRequest,
					"Unsupported Content-Encoding").WriteJSONWithRequestID(w, requestID)
				return
			}

			body, err := inflate(r.Body, encoding, cfg)
			if err != nil {
				apierror.BadRequest("Invalid compressed request body").WriteJSONWithRequestID(w, requestID)
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			r.ContentLength = int64(len(body))
			r.Header.Del("Content-Encoding")
			r.Header.Del("Content-Length")

			next.ServeHTTP(w, r)
		})
	}
}

// countingReader counts the compressed bytes consumed.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func inflate(body io.ReadCloser, encoding string, cfg DecompressConfig) ([]byte, error) {
	defer body.Close()

	src := &countingReader{r: body}
	var reader io.Reader
	switch encoding {
	case "gzip":
		gr, err := gzip.NewReader(src)
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		defer gr.Close()
		reader = gr
	case "zstd":
		//nolint:gosec // MaxDecompressedSize is positive
		zr, err := zstd.NewReader(src,
			zstd.WithDecoderMaxMemory(uint64(cfg.MaxDecompressedSize)),
			zstd.WithDecoderConcurrency(1),
		)
		if err != nil {
			return nil, fmt.Errorf("zstd reader: %w", err)
		}
		defer zr.Close()
		reader = zr
	default:
		return nil, fmt.Errorf("unsupported encoding %q", encoding)
	}

	out, err := io.ReadAll(io.LimitReader(reader, cfg.MaxDecompressedSize+1))
	if err != nil {
		return nil, fmt.Errorf("inflate: %w", err)
	}
	if int64(len(out)) > cfg.MaxDecompressedSize {
		return nil, fmt.Errorf("decompressed body exceeds %d bytes", cfg.MaxDecompressedSize)
	}
	if src.n > 0 && cfg.MaxCompressionRatio > 0 {
		if ratio := float64(len(out)) / float64(src.n); ratio > cfg.MaxCompressionRatio {
			return nil, fmt.Errorf("compression ratio %.1f exceeds %.1f", ratio, cfg.MaxCompressionRatio)
		}
	}
	return out, nil
}
