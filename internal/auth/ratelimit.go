package auth

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LoginRateLimiter throttles login attempts per client IP with a token
// bucket. State is in-process only; it protects against bursts, not against a
// distributed attacker.
type LoginRateLimiter struct {
	mu         sync.Mutex
	limit      rate.Limit
	burst      int
	byIP       map[string]*ipLimiter
	maxEntries int
	trustProxy bool
}

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLoginRateLimiter builds a limiter allowing maxHits per window per
// client. trustProxy declares that a proxy in front sets X-Forwarded-For;
// without it the header is ignored, since any direct client can fabricate it.
func NewLoginRateLimiter(maxHits int, window time.Duration, trustProxy bool) *LoginRateLimiter {
	if maxHits <= 0 {
		maxHits = 10
	}
	if window <= 0 {
		window = time.Minute
	}

	return &LoginRateLimiter{
		limit:      rate.Limit(float64(maxHits) / window.Seconds()),
		burst:      maxHits,
		byIP:       make(map[string]*ipLimiter),
		maxEntries: 5000,
		trustProxy: trustProxy,
	}
}

func (l *LoginRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(l.clientKey(r), time.Now().UTC()) {
			retryAfterSec := int(math.Ceil(1.0 / float64(l.limit)))
			if retryAfterSec < 1 {
				retryAfterSec = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
			writeError(w, http.StatusTooManyRequests, "too many login attempts")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (l *LoginRateLimiter) allow(ip string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.byIP[ip]
	if !ok {
		entry = &ipLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.byIP[ip] = entry
	}
	entry.lastSeen = now

	if len(l.byIP) > l.maxEntries {
		l.sweep(now)
	}

	return entry.limiter.Allow()
}

// sweep drops entries whose bucket has fully refilled. Caller holds the lock.
func (l *LoginRateLimiter) sweep(now time.Time) {
	refill := time.Duration(float64(l.burst)/float64(l.limit)) * time.Second
	for ip, entry := range l.byIP {
		if now.Sub(entry.lastSeen) > refill {
			delete(l.byIP, ip)
		}
	}
}

// clientKey buckets by caller IP. The source port is stripped from
// RemoteAddr so a reconnecting client keeps hitting the same bucket.
func (l *LoginRateLimiter) clientKey(r *http.Request) string {
	if l.trustProxy {
		xForwardedFor := strings.TrimSpace(r.Header.Get("X-Forwarded-For"))
		if xForwardedFor != "" {
			if ip := strings.TrimSpace(strings.SplitN(xForwardedFor, ",", 2)[0]); ip != "" {
				return ip
			}
		}
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}

	return "unknown"
}
