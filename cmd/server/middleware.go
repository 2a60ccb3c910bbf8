package main

import (
	"crypto/subtle"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"
)

func (s *server) withInternalAuth(next http.Handler) http.Handler {
	shared := []byte(s.cfg.Server.InternalSharedSecret)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get("X-Internal-Auth")
		if len(shared) == 0 || subtle.ConstantTimeCompare([]byte(got), shared) != 1 {
			writeErr(w, http.StatusUnauthorized, "unauthorized", "Invalid authentication")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *server) withConcurrencyLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := s.requestSem.Acquire(r.Context(), 1); err != nil {
			writeErr(w, http.StatusServiceUnavailable, "capacity", "Service at capacity")
			return
		}
		defer s.requestSem.Release(1)

		s.metrics.totalRequests.Add(1)
		s.metrics.activeReqs.Add(1)
		defer s.metrics.activeReqs.Add(-1)

		next.ServeHTTP(w, r)
	})
}

func (s *server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.rateLimiter(clientIP(r)).Allow() {
			w.Header().Set("Retry-After", "60")
			writeErr(w, http.StatusTooManyRequests, "rate_limit", "Rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *server) withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.log.Error("panic", "error", err, "path", sanitizeLogString(r.URL.Path), "request_id", middleware.GetReqID(r.Context()))
				writeErr(w, http.StatusInternalServerError, "internal_error", "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &wrapWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)

		if ww.status >= http.StatusInternalServerError {
			s.metrics.failures.Add(1)
		}
		s.log.Info("request",
			"method", r.Method,
			"path", sanitizeLogString(r.URL.Path),
			"status", ww.status,
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

type wrapWriter struct {
	http.ResponseWriter
	status int
}

func (w *wrapWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (s *server) rateLimiter(ip string) *rate.Limiter {
	m := s.limiters.Load()
	if v, ok := m.Load(ip); ok {
		return v.(*rate.Limiter)
	}

	every := s.cfg.Server.RateLimitEvery
	if every <= 0 {
		every = 600 * time.Millisecond // ~100/min
	}
	burst := s.cfg.Server.RateLimitBurst
	if burst <= 0 {
		burst = 20
	}

	v, _ := m.LoadOrStore(ip, rate.NewLimiter(rate.Every(every), burst))
	return v.(*rate.Limiter)
}

// clientIP reads RemoteAddr, which middleware.RealIP has already rewritten
// from X-Forwarded-For / X-Real-IP.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
