package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const middlewareLogPrefix = "server:middleware"

// statusRecorder captures the status code written by the wrapped handler.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	start       time.Time
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.status = code
		r.wroteHeader = true
		r.Header().Set("X-Process-Time", formatSeconds(time.Since(r.start)))
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	return r.ResponseWriter.Write(b)
}

// withRequestLogging logs every request and sets X-Process-Time (seconds) on the response.
func withRequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK, start: time.Now()}
		slog.Debug(fmt.Sprintf("%s - %s %s from %s", middlewareLogPrefix, r.Method, r.URL.Path, r.RemoteAddr))

		next.ServeHTTP(rec, r)
		if !rec.wroteHeader {
			rec.WriteHeader(http.StatusOK)
		}

		slog.Info(fmt.Sprintf("%s - %s %s %d %s", middlewareLogPrefix, r.Method, r.URL.Path, rec.status, formatSeconds(time.Since(rec.start))))
	})
}

func formatSeconds(d time.Duration) string {
	return fmt.Sprintf("%.4f", d.Seconds())
}
