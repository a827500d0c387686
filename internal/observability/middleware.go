package observability

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
)

// statusRecorder captures what the wrapped handler wrote so middleware can
// report on the response after the fact.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	bytes      int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.statusCode = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(p []byte) (int, error) {
	n, err := r.ResponseWriter.Write(p)
	r.bytes += n
	return n, err
}

// RequestLoggingMiddleware emits one structured line per handled request.
// Request bodies and credentials never appear in the fields.
func RequestLoggingMiddleware(logger *Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now().UTC()
		recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(recorder, r)

		logger.Info("http_request", Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      recorder.statusCode,
			"bytes":       recorder.bytes,
			"duration_ms": time.Since(start).Milliseconds(),
			"ip":          clientIP(r),
		})
	})
}

// RecoverMiddleware converts a handler panic into a 500 response, reporting
// the panic value and stack to Sentry and the log before answering.
func RecoverMiddleware(logger *Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}

			panicValue := fmt.Sprintf("%v", rec)
			stack := string(debug.Stack())

			sentry.WithScope(func(scope *sentry.Scope) {
				scope.SetExtra("panic", panicValue)
				scope.SetExtra("stack", stack)
				scope.SetExtra("path", r.URL.Path)
				sentry.CaptureMessage("panic in request")
			})

			logger.Error("panic_recovered", Fields{
				"method": r.Method,
				"path":   r.URL.Path,
				"ip":     clientIP(r),
				"panic":  panicValue,
			})

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "internal server error"})
		}()

		next.ServeHTTP(w, r)
	})
}

// clientIP resolves the caller address for log lines: the first
// X-Forwarded-For hop when present, otherwise the peer host without its
// source port. Log attribution only; never an authorization input.
func clientIP(r *http.Request) string {
	if xForwardedFor := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xForwardedFor != "" {
		if ip := strings.TrimSpace(strings.SplitN(xForwardedFor, ",", 2)[0]); ip != "" {
			return ip
		}
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}

	return "unknown"
}
