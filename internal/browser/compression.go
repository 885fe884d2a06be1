// File: internal/browser/compression.go
package browser

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
)

// Pools for decompression readers to reduce allocation overhead. Captured
// response bodies arrive in bursts during navigation, so reader reuse pays off.
var (
	gzipReaderPool = sync.Pool{
		New: func() interface{} {
			// Allocate the struct only; Reset() initializes it before use.
			return new(gzip.Reader)
		},
	}

	brotliReaderPool = sync.Pool{
		New: func() interface{} {
			// brotli.NewReader(nil) yields a reusable reader ready for Reset().
			return brotli.NewReader(nil)
		},
	}
)

// Shared empty reader used for safely resetting pooled readers before they go
// back to the pool.
var emptyReader = strings.NewReader("")

func getGzipReader(r io.Reader) (*gzip.Reader, error) {
	zr := gzipReaderPool.Get().(*gzip.Reader)
	if err := zr.Reset(r); err != nil {
		// The allocation is still reusable after a failed Reset.
		gzipReaderPool.Put(zr)
		return nil, err
	}
	return zr, nil
}

func putGzipReader(zr *gzip.Reader) {
	if zr == nil {
		return
	}
	// Reset with an empty reader rather than nil so stale references are
	// released without risking a header read on a nil source.
	_ = zr.Reset(emptyReader)
	gzipReaderPool.Put(zr)
}

func getBrotliReader(r io.Reader) (*brotli.Reader, error) {
	br := brotliReaderPool.Get().(*brotli.Reader)
	if err := br.Reset(r); err != nil {
		brotliReaderPool.Put(br)
		return nil, err
	}
	return br, nil
}

func putBrotliReader(br *brotli.Reader) {
	if br == nil {
		return
	}
	_ = br.Reset(emptyReader)
	brotliReaderPool.Put(br)
}

// decodeBody reverses the Content-Encoding layers applied to a captured
// response body. Encodings are listed in the order they were applied, so they
// are undone in reverse. Supported layers: gzip, br, deflate (zlib-wrapped or
// raw) and identity. An unknown layer is an error; the caller decides whether
// to keep the raw bytes.
func decodeBody(body []byte, contentEncoding string) ([]byte, error) {
	if len(body) == 0 || contentEncoding == "" {
		return body, nil
	}

	encodings := strings.Split(contentEncoding, ",")
	for i := len(encodings) - 1; i >= 0; i-- {
		encoding := strings.ToLower(strings.TrimSpace(encodings[i]))

		switch encoding {
		case "gzip":
			zr, err := getGzipReader(bytes.NewReader(body))
			if err != nil {
				return nil, fmt.Errorf("gzip initialization error: %w", err)
			}
			decoded, err := io.ReadAll(zr)
			putGzipReader(zr)
			if err != nil {
				return nil, fmt.Errorf("gzip decode error: %w", err)
			}
			body = decoded

		case "br":
			br, err := getBrotliReader(bytes.NewReader(body))
			if err != nil {
				return nil, fmt.Errorf("brotli initialization error: %w", err)
			}
			decoded, err := io.ReadAll(br)
			putBrotliReader(br)
			if err != nil {
				return nil, fmt.Errorf("brotli decode error: %w", err)
			}
			body = decoded

		case "deflate":
			decoded, err := inflate(body)
			if err != nil {
				return nil, fmt.Errorf("deflate decode error: %w", err)
			}
			body = decoded

		case "identity", "":
			// No compression at this layer.

		default:
			return nil, fmt.Errorf("unsupported Content-Encoding layer: %s", encoding)
		}
	}

	return body, nil
}

// inflate decodes a deflate body, accepting both the zlib-wrapped form
// (RFC 1950) and the raw stream (RFC 1951) some servers send.
func inflate(body []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(body))
	if err == nil {
		defer zr.Close()
		return io.ReadAll(zr)
	}

	fr := flate.NewReader(bytes.NewReader(body))
	defer fr.Close()
	return io.ReadAll(fr)
}
