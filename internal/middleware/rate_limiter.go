package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"metersquare/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const purgeInterval = 5 * time.Minute

// windowLimiter counts requests per client IP in fixed windows. Expired
// entries are swept on the request path at most once per purgeInterval.
type windowLimiter struct {
	limit  int
	window time.Duration

	mu        sync.Mutex
	clients   map[string]*clientWindow
	lastPurge time.Time
}

type clientWindow struct {
	count int
	ends  time.Time
}

func newWindowLimiter(limit int, window time.Duration) *windowLimiter {
	return &windowLimiter{
		limit:     limit,
		window:    window,
		clients:   make(map[string]*clientWindow),
		lastPurge: time.Now(),
	}
}

// take records one request from key. It reports whether the request fits
// and, when it does not, how long until the window resets.
func (l *windowLimiter) take(key string, now time.Time) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastPurge) >= purgeInterval {
		l.purgeLocked(now)
	}

	w, ok := l.clients[key]
	if !ok || now.After(w.ends) {
		w = &clientWindow{ends: now.Add(l.window)}
		l.clients[key] = w
	}
	w.count++
	if w.count > l.limit {
		return false, w.ends.Sub(now)
	}
	return true, 0
}

func (l *windowLimiter) purgeLocked(now time.Time) {
	purged := 0
	for key, w := range l.clients {
		if now.After(w.ends) {
			delete(l.clients, key)
			purged++
		}
	}
	l.lastPurge = now
	if purged > 0 {
		log.Debug().Int("purged", purged).Int("remaining", len(l.clients)).Msg("rate limiter entries purged")
	}
}

func (l *windowLimiter) middleware(detail string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, wait := l.take(c.ClientIP(), time.Now())
		if !ok {
			c.Header("Retry-After", strconv.Itoa(int(wait.Seconds())+1))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.New(apierror.KindRateLimited, detail))
			return
		}
		c.Next()
	}
}

// LoginRateLimiter allows limit login attempts per minute per IP
// (RATE_LIMIT_PER_MINUTE, default 10).
func LoginRateLimiter(limit int) gin.HandlerFunc {
	if limit <= 0 {
		limit = 10
	}
	return newWindowLimiter(limit, time.Minute).middleware("too many login attempts, try again in a minute")
}

// RateLimiter is the general per-IP limiter for the whole API.
func RateLimiter(limit int, window time.Duration) gin.HandlerFunc {
	return newWindowLimiter(limit, window).middleware("too many requests, try again shortly")
}
