package telemetry

import (
	"fmt"
	"net/http"
	"strconv"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.statusCode = http.StatusOK
		rw.written = true
	}
	return rw.ResponseWriter.Write(b)
}

// Flush implements http.Flusher to support streaming responses.
func (rw *responseWriter) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Middleware returns HTTP middleware that records one "http.request" span
// per inbound request, tagged with method and path on open and with the
// response status code on close. Status codes >= 500 complete the span with
// status "error"; everything else completes "ok". The span completes on
// every exit path: a handler panic marks it "error" and is re-raised
// unchanged for the server's recovery machinery.
func Middleware(c *Client) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scope := c.Span("http.request", map[string]string{
				"method": r.Method,
				"path":   r.URL.Path,
			})

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			defer func() {
				if rec := recover(); rec != nil {
					scope.AddTag("status_code", strconv.Itoa(http.StatusInternalServerError))
					c.CompleteSpan(scope.SpanID(), StatusError, fmt.Sprintf("%v", rec))
					panic(rec)
				}
				scope.AddTag("status_code", strconv.Itoa(wrapped.statusCode))
				if wrapped.statusCode >= http.StatusInternalServerError {
					scope.SetStatus(StatusError)
				}
				scope.End()
			}()

			next.ServeHTTP(wrapped, r)
		})
	}
}

// NewTracedHTTPClient creates an HTTP client that propagates W3C trace
// context to downstream services. Handlers that call other services while
// forwarding telemetry should reuse one of these for connection pooling.
func NewTracedHTTPClient(baseTransport http.RoundTripper) *http.Client {
	if baseTransport == nil {
		baseTransport = http.DefaultTransport
	}
	return &http.Client{
		Transport: otelhttp.NewTransport(baseTransport),
	}
}
