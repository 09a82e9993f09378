package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"
)

// MetricsRecorder defines the interface for recording HTTP metrics.
type MetricsRecorder interface {
	RecordHTTPRequest(method, path, status string, duration time.Duration)
	IncActiveConnections()
	DecActiveConnections()
}

// ContextMetricsRecorder is implemented by recorders that attach trace
// exemplars. Metrics prefers it over RecordHTTPRequest.
type ContextMetricsRecorder interface {
	RecordHTTPRequestWithContext(ctx context.Context, method, path, status string, duration time.Duration)
}

// Metrics returns a middleware that records HTTP metrics. Paths are
// labelled by their chi route pattern when one matched.
func Metrics(recorder MetricsRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Skip metrics endpoint to avoid recursion
			if strings.HasPrefix(r.URL.Path, "/metrics") {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			recorder.IncActiveConnections()
			defer recorder.DecActiveConnections()

			// Wrap response writer to capture status code
			wrapped := &metricsResponseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			// Handle panics to ensure metrics are recorded
			defer func() {
				if err := recover(); err != nil {
					wrapped.statusCode = http.StatusInternalServerError
					record(recorder, r, wrapped.statusCode, time.Since(start))
					panic(err) // Re-panic after recording
				}
			}()

			next.ServeHTTP(wrapped, r)

			record(recorder, r, wrapped.statusCode, time.Since(start))
		})
	}
}

func record(recorder MetricsRecorder, r *http.Request, status int, duration time.Duration) {
	path := metricsPath(r)
	if cr, ok := recorder.(ContextMetricsRecorder); ok {
		cr.RecordHTTPRequestWithContext(r.Context(), r.Method, path, strconv.Itoa(status), duration)
		return
	}
	recorder.RecordHTTPRequest(r.Method, path, strconv.Itoa(status), duration)
}

// metricsPath prefers the matched route pattern so user IDs never become
// label values.
func metricsPath(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return normalizePath(r.URL.Path)
}

// metricsResponseWriter wraps http.ResponseWriter to capture the status code.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *metricsResponseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.written = true
	}
	return rw.ResponseWriter.Write(b)
}

// normalizePath normalizes URL paths to reduce cardinality.
// Replaces UUIDs, ULIDs and numeric IDs with placeholders.
func normalizePath(path string) string {
	parts := strings.Split(path, "/")
	for i, part := range parts {
		// Replace UUIDs (8-4-4-4-12 format)
		if len(part) == 36 && strings.Count(part, "-") == 4 {
			parts[i] = ":id"
			continue
		}
		if _, err := ulid.ParseStrict(part); err == nil {
			parts[i] = ":id"
			continue
		}
		// Replace numeric IDs
		if _, err := strconv.Atoi(part); err == nil && len(part) > 0 {
			parts[i] = ":id"
		}
	}
	return strings.Join(parts, "/")
}

