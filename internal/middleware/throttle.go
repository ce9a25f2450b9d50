package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"login-gate/internal/logger"
	"login-gate/internal/metrics"
)

// idle client buckets are forgotten after this long
const throttleIdleTTL = 15 * time.Minute

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LoginThrottle limits login attempts per client key with a token
// bucket. It slows down guessing; it never locks an account.
type LoginThrottle struct {
	mu        sync.Mutex
	clients   map[string]*clientBucket
	limit     rate.Limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
}

// NewLoginThrottle allows perMinute attempts per key with the given
// burst. perMinute <= 0 disables throttling.
func NewLoginThrottle(perMinute, burst int) *LoginThrottle {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Limit(float64(perMinute) / 60.0)
	}
	return &LoginThrottle{
		clients: make(map[string]*clientBucket),
		limit:   limit,
		burst:   burst,
		now:     time.Now,
	}
}

// Allow spends one token for key. When none is left it reports how
// long until the next one.
func (t *LoginThrottle) Allow(key string) (bool, time.Duration) {
	if t.limit == rate.Inf {
		return true, 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if now.Sub(t.lastSweep) > throttleIdleTTL {
		t.sweep(now)
	}

	b, ok := t.clients[key]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(t.limit, t.burst)}
		t.clients[key] = b
	}
	b.lastSeen = now

	r := b.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, throttleIdleTTL
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

func (t *LoginThrottle) sweep(now time.Time) {
	for key, b := range t.clients {
		if now.Sub(b.lastSeen) > throttleIdleTTL {
			delete(t.clients, key)
		}
	}
	t.lastSweep = now
}

// Len returns the number of tracked client keys.
func (t *LoginThrottle) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.clients)
}

// Middleware throttles by client IP and answers 429 with Retry-After.
func (t *LoginThrottle) Middleware(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		ok, retryAfter := t.Allow(ip)
		if ok {
			c.Next()
			return
		}

		m.Login(metrics.LoginRateLimited)
		logger.Warn("login throttled", map[string]any{
			"ip":          ip,
			"retry_after": retryAfter.String(),
		})

		secs := int64(math.Ceil(retryAfter.Seconds()))
		if secs < 1 {
			secs = 1
		}
		c.Header("Retry-After", strconv.FormatInt(secs, 10))
		c.String(http.StatusTooManyRequests, "too many login attempts, try again later")
		c.Abort()
	}
}
