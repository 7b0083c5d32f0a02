package middleware

import (
	"net/http"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
)

// BrotliConfig tunes response compression. MinLength keeps small
// envelopes (error bodies, state snapshots) uncompressed — the header
// overhead outweighs the gain below it.
type BrotliConfig struct {
	Quality   int
	Skipper   func(c *gin.Context) bool
	MinLength int
}

var DefaultBrotliConfig = BrotliConfig{
	Quality:   brotli.DefaultCompression,
	MinLength: 1024,
}

// brotliWriter buffers until MinLength is reached, then commits to
// compressed output. A response that never crosses the threshold is
// flushed verbatim at the end of the request.
type brotliWriter struct {
	gin.ResponseWriter
	writer     *brotli.Writer
	pending    []byte
	minLength  int
	commit     sync.Once
	compressed bool
}

func (bw *brotliWriter) Write(data []byte) (int, error) {
	bw.pending = append(bw.pending, data...)

	if !bw.compressed && len(bw.pending) < bw.minLength {
		return len(data), nil
	}

	bw.commit.Do(func() {
		bw.compressed = true
		bw.ResponseWriter.Header().Set("Content-Encoding", "br")
		bw.ResponseWriter.Header().Del("Content-Length")
	})
	if _, err := bw.writer.Write(bw.pending); err != nil {
		return 0, err
	}
	bw.pending = bw.pending[:0]
	return len(data), nil
}

func (bw *brotliWriter) WriteString(s string) (int, error) {
	return bw.Write([]byte(s))
}

// Flush drains the buffer and forwards the flush, so streaming
// endpoints that slip past the skipper still deliver promptly.
func (bw *brotliWriter) Flush() {
	if len(bw.pending) > 0 {
		if bw.compressed {
			_, _ = bw.writer.Write(bw.pending)
			_ = bw.writer.Flush()
		} else {
			_, _ = bw.ResponseWriter.Write(bw.pending)
		}
		bw.pending = bw.pending[:0]
	}
	bw.ResponseWriter.Flush()
}

func (bw *brotliWriter) finish() error {
	if len(bw.pending) == 0 {
		return nil
	}
	var err error
	if bw.compressed {
		_, err = bw.writer.Write(bw.pending)
	} else {
		_, err = bw.ResponseWriter.Write(bw.pending)
	}
	bw.pending = bw.pending[:0]
	return err
}

// Brotli compresses responses with the default configuration.
func Brotli() gin.HandlerFunc {
	return BrotliWithConfig(DefaultBrotliConfig)
}

// BrotliWithConfig compresses responses for clients that accept br,
// passing streaming protocols through untouched.
func BrotliWithConfig(cfg BrotliConfig) gin.HandlerFunc {
	if cfg.Quality < 0 || cfg.Quality > 11 {
		cfg.Quality = brotli.DefaultCompression
	}
	if cfg.MinLength <= 0 {
		cfg.MinLength = DefaultBrotliConfig.MinLength
	}

	return func(c *gin.Context) {
		if isStreamingExchange(c) {
			c.Next()
			return
		}
		if cfg.Skipper != nil && cfg.Skipper(c) {
			c.Next()
			return
		}
		if !acceptsBrotli(c.Request) {
			c.Next()
			return
		}

		c.Header("Vary", "Accept-Encoding")

		bw := &brotliWriter{
			ResponseWriter: c.Writer,
			minLength:      cfg.MinLength,
			writer:         brotli.NewWriterLevel(c.Writer, cfg.Quality),
		}

		defer func() {
			if err := bw.finish(); err != nil {
				_ = c.Error(err)
			}
			if bw.compressed {
				bw.writer.Close()
			}
		}()

		c.Writer = bw
		c.Next()
	}
}

// isStreamingExchange reports whether the request runs a protocol that
// buffered compression would break: SSE needs immediate delivery, and a
// WebSocket handshake must not have its response wrapped.
func isStreamingExchange(c *gin.Context) bool {
	if strings.Contains(c.GetHeader("Accept"), "text/event-stream") {
		return true
	}
	return strings.EqualFold(c.GetHeader("Upgrade"), "websocket")
}

func acceptsBrotli(r *http.Request) bool {
	for _, enc := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		if strings.TrimSpace(strings.ToLower(enc)) == "br" {
			return true
		}
	}
	return false
}
