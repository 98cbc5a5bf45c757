package middleware

import (
	"net/http"
	"time"
)

// requestRecorder is implemented by internal/metrics.
type requestRecorder interface {
	RequestServed(method, route string, status int, d time.Duration)
}

// Metrics records the count and latency of every request by route.
// It must sit directly around the mux so the matched pattern is visible.
func Metrics(rec requestRecorder) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := newStatusWriter(w)
			next.ServeHTTP(sw, r)
			rec.RequestServed(r.Method, route(r), sw.status, time.Since(start))
		})
	}
}
