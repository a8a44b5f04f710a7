package server

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"atscore/internal/errors"

	"golang.org/x/time/rate"
)

const limiterIdleTTL = 10 * time.Minute

type clientBudget struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LimiterManager keeps one token bucket per client key (API key or IP).
// Buckets idle for longer than limiterIdleTTL are evicted in the background.
type LimiterManager struct {
	mu       sync.Mutex
	clients  map[string]*clientBudget
	rate     rate.Limit
	burst    int
	rejected int64

	done   chan struct{}
	once   sync.Once
	logger *errors.Logger
}

// RateLimiter is the limiter type the server holds
type RateLimiter = LimiterManager

// NewRateLimiter allows requestsPerMin per key with bursts of burstCapacity.
// Close stops its eviction goroutine.
func NewRateLimiter(requestsPerMin int, burstCapacity int, logger *errors.Logger) *LimiterManager {
	if logger == nil {
		logger = errors.Discard()
	}
	if burstCapacity <= 0 {
		burstCapacity = 1
	}

	m := &LimiterManager{
		clients: make(map[string]*clientBudget),
		rate:    rate.Limit(float64(requestsPerMin) / 60.0),
		burst:   burstCapacity,
		done:    make(chan struct{}),
		logger:  logger,
	}

	go m.evictLoop(limiterIdleTTL)
	return m
}

func (m *LimiterManager) budget(key string, now time.Time) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.clients[key]
	if !ok {
		b = &clientBudget{limiter: rate.NewLimiter(m.rate, m.burst)}
		m.clients[key] = b
	}
	b.lastSeen = now
	return b.limiter
}

// Allow takes one token for key. When none is available it reports how long
// the client should wait before the next token.
func (m *LimiterManager) Allow(key string) (bool, time.Duration) {
	now := time.Now()
	reservation := m.budget(key, now).ReserveN(now, 1)
	if !reservation.OK() {
		m.countRejection()
		return false, 0
	}
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		m.countRejection()
		return false, delay
	}
	return true, 0
}

func (m *LimiterManager) countRejection() {
	m.mu.Lock()
	m.rejected++
	m.mu.Unlock()
}

// GetStats returns current rate limiter statistics
func (m *LimiterManager) GetStats() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()

	return map[string]any{
		"enabled":           true,
		"active_limiters":   len(m.clients),
		"rate_per_minute":   float64(m.rate) * 60.0,
		"burst_capacity":    m.burst,
		"rejected_requests": m.rejected,
	}
}

func (m *LimiterManager) evictLoop(ttl time.Duration) {
	ticker := time.NewTicker(ttl)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			m.evictIdle(now, ttl)
		case <-m.done:
			return
		}
	}
}

// evictIdle drops buckets not used within ttl of now
func (m *LimiterManager) evictIdle(now time.Time, ttl time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	evicted := 0
	for key, b := range m.clients {
		if now.Sub(b.lastSeen) > ttl {
			delete(m.clients, key)
			evicted++
		}
	}

	m.logger.Debug("Evicted idle rate limiters", "evicted", evicted, "remaining", len(m.clients))
	return evicted
}

// Close stops the eviction goroutine. It is safe to call more than once.
func (m *LimiterManager) Close() {
	m.once.Do(func() { close(m.done) })
}

// rateLimitMiddleware rejects requests over the per-client budget with 429
// and a Retry-After hint in whole seconds.
func (s *Server) rateLimitMiddleware() func(http.HandlerFunc) http.HandlerFunc {
	if s.RateLimit == nil || !s.RateLimit.Enabled || s.RateLimiter == nil {
		return func(next http.HandlerFunc) http.HandlerFunc { return next }
	}

	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			key := clientKey(r, s.RateLimit.ByAPIKey, s.RateLimit.ByIP)
			if key == "" {
				next(w, r)
				return
			}

			allowed, wait := s.RateLimiter.Allow(key)
			if !allowed {
				s.Logger.Info("Rate limit exceeded",
					"endpoint", r.URL.Path,
					"client_ip", getClientIP(r),
					"retry_after", wait.String())
				s.observability.GetMetrics().RecordRateLimitHit(r.Context(), r.Pattern)
				if wait > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				}
				writeErrorResponse(w, "Rate limit exceeded", "RATE_LIMITED", "Too many requests", http.StatusTooManyRequests)
				return
			}

			next(w, r)
		}
	}
}

// clientKey prefers the API key and falls back to the client IP
func clientKey(r *http.Request, byAPIKey, byIP bool) string {
	if byAPIKey {
		if apiKey := requestAPIKey(r); apiKey != "" {
			return "api:" + apiKey
		}
	}
	if byIP {
		return "ip:" + getClientIP(r)
	}
	return ""
}

// getClientIP honours proxy headers before the socket address
func getClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		for candidate := range strings.SplitSeq(forwarded, ",") {
			candidate = strings.TrimSpace(candidate)
			if net.ParseIP(candidate) != nil {
				return candidate
			}
		}
	}

	if realIP := r.Header.Get("X-Real-IP"); net.ParseIP(realIP) != nil {
		return realIP
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
