package middleware

import (
	"bufio"
	"net"
	"net/http"
)

// The status-capturing writers must stay hijackable so event streams can
// upgrade to websockets behind the global middleware chain.

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return http.NewResponseController(rw.ResponseWriter).Hijack()
}

func (rw *responseWriter) Unwrap() http.ResponseWriter { return rw.ResponseWriter }

func (rw *metricsResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return http.NewResponseController(rw.ResponseWriter).Hijack()
}

func (rw *metricsResponseWriter) Unwrap() http.ResponseWriter { return rw.ResponseWriter }

func (rw *tracingResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return http.NewResponseController(rw.ResponseWriter).Hijack()
}

func (rw *tracingResponseWriter) Unwrap() http.ResponseWriter { return rw.ResponseWriter }
