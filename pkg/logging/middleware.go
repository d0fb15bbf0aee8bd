package logging

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// pollPaths are hit periodically by scrapers and dashboards; successful
// requests to them are logged at debug level
var pollPaths = map[string]bool{
	"/metrics":    true,
	"/api/status": true,
}

// RequestIDMiddleware adds a request ID to each HTTP request and logs request/response
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx := WithRequestID(r.Context(), requestID)
		r = r.WithContext(ctx)
		w.Header().Set("X-Request-ID", requestID)

		// Event streams stay open for the life of the client
		if strings.HasPrefix(r.URL.Path, "/api/subscribe/") {
			start := time.Now()
			DebugContext(ctx, "stream opened", "path", r.URL.Path, "remoteAddr", r.RemoteAddr)
			next.ServeHTTP(w, r)
			DebugContext(ctx, "stream closed", "path", r.URL.Path, "durationMs", time.Since(start).Milliseconds())
			return
		}

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(wrapped, r)

		level, msg := slog.LevelInfo, "request completed"
		switch {
		case wrapped.statusCode >= 500:
			level, msg = slog.LevelError, "request failed"
		case wrapped.statusCode >= 400:
			level, msg = slog.LevelWarn, "request rejected"
		case pollPaths[r.URL.Path]:
			level = slog.LevelDebug
		}

		current().Log(ctx, level, msg, withRequestID(ctx, []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.statusCode,
			"bytes", wrapped.written,
			"durationMs", time.Since(start).Milliseconds(),
		})...)
	})
}

// responseWriter captures the status code and body size
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(p []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(p)
	rw.written += n
	return n, err
}
