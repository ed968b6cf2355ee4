package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/mtoman/newsfeed/internal/auth"
)

// IdentityMiddleware asks the account gateway who the visitor is and, when
// known, attaches the identity to the request context. Anonymous requests
// pass through; endpoints that need an identity enforce it themselves.
func IdentityMiddleware(gw auth.Gateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		if id, ok := gw.Resolve(c.Request); ok {
			c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), id))
		}
		c.Next()
	}
}

func identityFrom(c *gin.Context) auth.Identity {
	return auth.FromContext(c.Request.Context())
}

// AdminAuthMiddleware protects the admin group with a shared token header.
// With no token configured the group fails closed.
func AdminAuthMiddleware(requiredToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if requiredToken == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"code":    "admin_disabled",
				"message": "admin endpoints are not configured",
			})
			return
		}
		supplied := c.GetHeader("X-Admin-Token")
		if supplied == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    "unauthorized",
				"message": "admin token required",
			})
			return
		}
		if supplied != requiredToken {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"code":    "forbidden",
				"message": "invalid admin token",
			})
			return
		}
		c.Next()
	}
}

const (
	// visitorTTL is how long an idle IP keeps its limiter state.
	visitorTTL = 10 * time.Minute
	// maxTrackedIPs triggers a sweep of idle visitors before admitting a
	// new one, keeping the map bounded under IP churn.
	maxTrackedIPs = 10000
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter hands out one token-bucket limiter per client IP. Idle
// entries are swept once the map grows past maxTrackedIPs.
type IPRateLimiter struct {
	visitors map[string]*visitor
	mu       sync.Mutex
	rps      rate.Limit
	burst    int
}

func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	return &IPRateLimiter{
		visitors: make(map[string]*visitor),
		rps:      r,
		burst:    b,
	}
}

func (rl *IPRateLimiter) limiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := time.Now()
	if len(rl.visitors) >= maxTrackedIPs {
		rl.sweep(now)
	}
	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter
}

// sweep drops visitors idle past the TTL. Callers must hold mu.
func (rl *IPRateLimiter) sweep(now time.Time) {
	for ip, v := range rl.visitors {
		if now.Sub(v.lastSeen) > visitorTTL {
			delete(rl.visitors, ip)
		}
	}
}

// RateLimitMiddleware throttles mutating endpoints per client IP.
func RateLimitMiddleware(rl *IPRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.limiter(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":    "rate_limited",
				"message": "too many requests",
			})
			return
		}
		c.Next()
	}
}
