package api

import (
	"log/slog"
	"net/http"
	"time"

	"wxsync/internal/logger"
)

// accessLogMiddleware stamps the method and path onto the request context so
// every log line emitted while handling the request carries them, then logs a
// completion line with the status and duration.
func accessLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logger.Ctx(r.Context(),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)

		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r.WithContext(ctx))

		slog.InfoContext(ctx, "request completed",
			"status", sw.code,
			"duration", time.Since(start),
		)
	})
}

// statusWriter records the response code; handlers that never call
// WriteHeader implicitly respond 200.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
