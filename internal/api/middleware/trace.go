package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/stackmesh/commerce-api/internal/platform/logger"
)

// traceHeader is the response header carrying the request's trace ID.
const traceHeader = "X-Trace-Id"

// Trace assigns each request a trace ID, attaches a logger carrying it
// to the context and logs the request on completion.
func Trace(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			traceID := r.Header.Get(traceHeader)
			if traceID == "" {
				traceID = uuid.New().String()
			}
			w.Header().Set(traceHeader, traceID)

			reqLog := log.With(
				slog.String("trace_id", traceID),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)
			ctx := logger.WithLogger(r.Context(), reqLog)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r.WithContext(ctx))

			reqLog.Info("request completed",
				slog.Int("status", ww.Status()),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}
