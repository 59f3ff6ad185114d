package middleware

import (
	"net/http"
	"time"

	"github.com/helpchat/internal/logger"
)

// RequestLog logs every HTTP request with its status and duration. The
// write is asynchronous and never blocks the handler.
func RequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrap := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrap, r)
		logger.Infof("http %s %s status=%d duration_ms=%d",
			r.Method, r.URL.Path, wrap.status, time.Since(start).Milliseconds())
	})
}
