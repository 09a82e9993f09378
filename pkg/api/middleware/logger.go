// Package middleware provides HTTP middleware components.
package middleware

import (
	"net/http"
	"time"

	"github.com/strainwise/convmem/pkg/logger"
)

// responseWriter wraps http.ResponseWriter to capture status code and size.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	size       int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	size, err := rw.ResponseWriter.Write(b)
	rw.size += size
	return size, err
}

// Logger returns a middleware that logs HTTP requests. Server errors log at
// error level; the route pattern is logged instead of the raw path so user
// IDs stay out of access logs.
func Logger(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(wrapped, r)

			args := []any{
				"method", r.Method,
				"route", metricsPath(r),
				"status", wrapped.statusCode,
				"duration_ms", time.Since(start).Milliseconds(),
				"size", wrapped.size,
				"remote_addr", r.RemoteAddr,
				"request_id", GetRequestID(r.Context()),
			}
			ctx := r.Context()
			switch {
			case wrapped.statusCode >= http.StatusInternalServerError:
				log.ErrorContext(ctx, "HTTP request", args...)
			case wrapped.statusCode == http.StatusTooManyRequests:
				log.WarnContext(ctx, "HTTP request", args...)
			default:
				log.InfoContext(ctx, "HTTP request", args...)
			}
		})
	}
}
