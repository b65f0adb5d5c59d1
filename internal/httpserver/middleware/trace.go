package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/davidbz/ember/internal/observability"
)

// Response headers carrying correlation data.
const (
	HeaderTraceID    = "X-Trace-ID"
	HeaderRequestID  = "X-Request-ID"
	HeaderDurationMs = "X-Duration-Ms"
)

// untracedPaths are probe and scrape endpoints that get no IDs and no logs.
//
//nolint:gochecknoglobals // Immutable lookup table
var untracedPaths = map[string]struct{}{
	"/health":  {},
	"/ready":   {},
	"/metrics": {},
}

// Trace creates a middleware that injects trace ID and request ID into every
// request. With requestLogging set it logs the start and the end of each request.
func Trace(requestLogging bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, skip := untracedPaths[r.URL.Path]; skip {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()

			traceID := observability.GenerateTraceID()
			ctx = observability.WithTraceID(ctx, traceID)

			spanID := observability.GenerateSpanID()
			ctx = observability.WithSpanID(ctx, spanID)

			requestID := observability.GenerateRequestID()
			ctx = observability.WithRequestID(ctx, requestID)

			w.Header().Set(HeaderTraceID, traceID)
			w.Header().Set(HeaderRequestID, requestID)

			if !requestLogging {
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			contextLogger := observability.FromContext(ctx)
			contextLogger.Info("request started",
				observability.String("method", r.Method),
				observability.String("path", r.URL.Path),
				observability.String("remote_addr", r.RemoteAddr),
			)

			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r.WithContext(ctx))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			contextLogger.Info("request completed",
				observability.String("method", r.Method),
				observability.String("path", r.URL.Path),
				observability.Int("status", status),
				observability.Int("bytes", ww.BytesWritten()),
				observability.Duration("duration", time.Since(start)),
			)
		})
	}
}
