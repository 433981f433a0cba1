// Package middleware holds the HTTP-layer concerns shared by every
// route: CORS, request rate limiting, and access logging.
package middleware

import (
	"log"
	"net/http"
	"time"

	"github.com/doodledash/server/internal/config"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"golang.org/x/time/rate"
)

// ApplyMiddleware wraps router with the standard chain: CORS on the
// outside, then access logging, then rate limiting closest to the handler
// (so rate-limited requests are logged with their status too).
func ApplyMiddleware(router *mux.Router, cfg *config.Config) http.Handler {
	chain := withAccessLog(withRateLimit(router, newLimiter(cfg.RateLimit)))
	return newCORS(cfg.CORS).Handler(chain)
}

func newCORS(cfg config.CORSConfig) *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   cfg.AllowedMethods,
		AllowedHeaders:   cfg.AllowedHeaders,
		AllowCredentials: true,
	})
}

// newLimiter converts the configured requests-per-minute budget into the
// per-second rate the token bucket expects.
func newLimiter(cfg config.RateLimitConfig) *rate.Limiter {
	return rate.NewLimiter(rate.Limit(cfg.RequestsPerMinute)/60, cfg.BurstSize)
}

// statusWriter records the status code a handler wrote, defaulting to 200
// when the handler never calls WriteHeader explicitly.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sw, r)
		log.Printf("%s %s -> %d (%s)", r.Method, r.URL.Path, sw.status, time.Since(start))
	})
}

func withRateLimit(next http.Handler, limiter *rate.Limiter) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := limiter.Wait(r.Context()); err != nil {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

