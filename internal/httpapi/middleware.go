package httpapi

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/solward/flywheel/internal/httputil"
	"github.com/solward/flywheel/internal/ratelimit"
	"github.com/solward/flywheel/internal/svcerr"
	"github.com/solward/flywheel/pkg/logger"
)

func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	allowAll := len(allowedOrigins) == 0
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if allowAll {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			} else if _, ok := allowed[origin]; ok {
				w.Header().Set("Access-Control-Allow-Origin", origin)
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// loggingMiddleware logs every request's method, path, status, and latency,
// matching the teacher's per-request access-log shape.
func loggingMiddleware(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r)
			log.WithField("method", r.Method).
				WithField("path", r.URL.Path).
				WithField("status", rw.status).
				WithField("duration", time.Since(start).String()).
				Info("http request")
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// auditMiddleware records mutating admin operations distinctly from routine
// reads, since §4.9 requires every admin write to be traceable.
func auditMiddleware(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet && r.Method != http.MethodHead {
				log.WithField("method", r.Method).
					WithField("path", r.URL.Path).
					WithField("subject", r.Header.Get("X-Auth-Subject")).
					Warn("admin mutating request")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// rateLimitMiddleware caps each caller to its own token bucket, keyed by
// auth subject when present and falling back to remote address for the
// unauthenticated wallet-auth routes.
func rateLimitMiddleware(limiter *ratelimit.KeyedLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-Auth-Subject")
			if key == "" {
				key = r.RemoteAddr
			}
			if !limiter.Allow(key) {
				httputil.WriteServiceError(w, svcerr.RateLimitExceeded(0, "1s"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func metricsMiddleware(requests *prometheus.CounterVec) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r)
			requests.WithLabelValues(r.Method, r.URL.Path, http.StatusText(rw.status)).Inc()
		})
	}
}
