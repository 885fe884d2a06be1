// File: internal/browser/compression_test.go
package browser

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gzipCompress(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func brotliCompress(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := brotli.NewWriter(&buf)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func zlibCompress(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func flateCompress(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestDecodeBody(t *testing.T) {
	payload := []byte(`{"answer":42,"source":"wire"}`)

	tests := []struct {
		name     string
		body     []byte
		encoding string
	}{
		{"gzip", nil, "gzip"},
		{"brotli", nil, "br"},
		{"zlib wrapped deflate", nil, "deflate"},
		{"raw deflate", nil, "deflate"},
	}
	tests[0].body = gzipCompress(t, payload)
	tests[1].body = brotliCompress(t, payload)
	tests[2].body = zlibCompress(t, payload)
	tests[3].body = flateCompress(t, payload)

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := decodeBody(tc.body, tc.encoding)
			require.NoError(t, err)
			assert.Equal(t, payload, got)
		})
	}

	t.Run("identity is a passthrough", func(t *testing.T) {
		got, err := decodeBody(payload, "identity")
		require.NoError(t, err)
		assert.Equal(t, payload, got)
	})

	t.Run("empty encoding is a passthrough", func(t *testing.T) {
		got, err := decodeBody(payload, "")
		require.NoError(t, err)
		assert.Equal(t, payload, got)
	})

	t.Run("layered encodings decode in reverse order", func(t *testing.T) {
		// Applied br first, then gzip, so the header reads "br, gzip".
		wire := gzipCompress(t, brotliCompress(t, payload))
		got, err := decodeBody(wire, "br, gzip")
		require.NoError(t, err)
		assert.Equal(t, payload, got)
	})

	t.Run("unknown encoding errors", func(t *testing.T) {
		_, err := decodeBody(payload, "zstd")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported Content-Encoding")
	})

	t.Run("corrupt gzip stream errors", func(t *testing.T) {
		_, err := decodeBody([]byte("junk bytes"), "gzip")
		require.Error(t, err)
	})

	t.Run("pooled readers survive reuse", func(t *testing.T) {
		for i := 0; i < 8; i++ {
			got, err := decodeBody(gzipCompress(t, payload), "gzip")
			require.NoError(t, err)
			assert.Equal(t, payload, got)

			got, err = decodeBody(brotliCompress(t, payload), "br")
			require.NoError(t, err)
			assert.Equal(t, payload, got)
		}
	})
}
