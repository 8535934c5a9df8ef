package middleware

import (
	"net/http"
	"time"
)

type httpRecorder interface {
	ObserveHTTP(route, method string, status int, elapsed time.Duration)
}

// Metrics records request counts and latency labelled by chi route pattern.
func Metrics(recorder httpRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if recorder == nil {
				next.ServeHTTP(w, r)
				return
			}
			rec := &statusRecorder{ResponseWriter: w}
			start := time.Now()
			next.ServeHTTP(rec, r)

			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			recorder.ObserveHTTP(routePattern(r), r.Method, status, time.Since(start))
		})
	}
}
