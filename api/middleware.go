package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/CreativeUnicorns/suiteprefs"
	"github.com/CreativeUnicorns/suiteprefs/telemetry"
)

// LoggerMiddleware returns a middleware that logs requests using the provided logger.
func LoggerMiddleware(logger suiteprefs.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			t0 := time.Now()
			defer func() {
				logger.Info("Served request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"latency_ms", float64(time.Since(t0).Microseconds())/1000.0,
					"request_id", middleware.GetReqID(r.Context()),
				)
			}()
			next.ServeHTTP(ww, r)
		}
		return http.HandlerFunc(fn)
	}
}

// RecoverMiddleware reports handler panics to the error tracker and answers 500.
// http.ErrAbortHandler is re-panicked so net/http can abort the response.
func RecoverMiddleware(tracker *telemetry.ErrorTracker, logger suiteprefs.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				tracker.AddBreadcrumb(telemetry.Breadcrumb{
					Type:     "http",
					Category: "request",
					Message:  r.Method + " " + r.URL.Path,
					Level:    telemetry.LevelError,
					Data:     map[string]any{"request_id": middleware.GetReqID(r.Context())},
				})
				id := tracker.CapturePanic(r.Context(), rec)
				logger.Error("Handler panicked", "path", r.URL.Path, "panic", rec, "event_id", id)

				respondWithJSONRaw(w, http.StatusInternalServerError, errorBody("Internal server error", ""))
			}()
			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(fn)
	}
}

// MetricsMiddleware records request counts and latencies by route pattern.
func MetricsMiddleware(m *metrics) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			path := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					path = pattern
				}
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			m.requests.WithLabelValues(r.Method, path, strconv.Itoa(status)).Inc()
			m.duration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		}
		return http.HandlerFunc(fn)
	}
}
