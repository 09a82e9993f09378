package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/strainwise/convmem/pkg/api/response"
	"github.com/strainwise/convmem/pkg/logger"
)

// Recovery returns a middleware that recovers from panics.
func Recovery(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					// Log the panic with stack trace
					stack := debug.Stack()
					log.Error("Panic recovered",
						"error", fmt.Sprint(err),
						"request_id", GetRequestID(r.Context()),
						"path", r.URL.Path,
						"method", r.Method,
						"stack", string(stack),
					)

					requestID := GetRequestID(r.Context())
					if requestID == "" {
						requestID = "unknown"
					}

					// The panic value may carry user content; keep it in the log only.
					response.Error(w,
						http.StatusInternalServerError,
						response.ErrCodeInternalServer,
						"Internal server error",
						requestID,
					)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
