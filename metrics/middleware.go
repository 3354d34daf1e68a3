package metrics

import (
	"net/http"

	"github.com/giygas/httpstats/interfaces"
)

// adminPaths serve the monitors themselves and are not client traffic
var adminPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
	"/stats":   true,
}

type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	// 1xx informational headers are not the final status, except 101
	if !rw.wroteHeader && (code >= 200 || code == http.StatusSwitchingProtocols) {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Frontend counts the final status of every client-facing response as
// frontend traffic. It must sit outside any middleware that can answer on
// its own (recoverer, rate limiter) so those answers are counted too.
func Frontend(rec interfaces.StatsRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if adminPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			HTTPRequestInFlight.Inc()
			defer HTTPRequestInFlight.Dec()

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			completed := false
			defer func() {
				// An aborted handler still counts once its status was sent
				if completed || wrapped.wroteHeader {
					rec.RecordFrontend(wrapped.statusCode)
				}
			}()

			next.ServeHTTP(wrapped, r)
			completed = true
		})
	}
}
