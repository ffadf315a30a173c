package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jontk/ticketd/pkg/logging"
)

const requestIDHeader = "X-Request-Id"

// withRequestID tags every inbound request with a UUID used for log
// correlation and echoed back to the caller, matching the teacher's
// per-request trace-ID convention.
func withRequestID(log logging.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set(requestIDHeader, id)
		reqLog := log.With("request_id", id, "method", r.Method, "path", r.URL.Path)
		reqLog.Info("request received")
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the status code written by downstream handlers.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// withMetrics records request/response counts and latency keyed by the
// mux route template (e.g. "/orders/{index}/refund"), not the raw path,
// so per-order and per-train paths don't fragment the aggregate. It
// must be installed via router.Use, not wrapped outside the router —
// mux.CurrentRoute is only populated once a route has been matched.
func withMetrics(stats *routeStats) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := r.URL.Path
			if rt := mux.CurrentRoute(r); rt != nil {
				if tmpl, err := rt.GetPathTemplate(); err == nil {
					route = tmpl
				}
			}
			start := time.Now()
			stats.recordRequest(route)
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			stats.recordResponse(route, rec.status, time.Since(start))
		})
	}
}
