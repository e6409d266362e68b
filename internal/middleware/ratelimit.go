package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"regtrack/internal/metrics"
)

const idleLimiterTTL = 3 * time.Minute

// TenantRateLimiter keeps one token bucket per tenant.
type TenantRateLimiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	tenants   map[uint]*visitor
	lastSweep time.Time
	now       func() time.Time
	metrics   *metrics.Metrics
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewTenantRateLimiter(rps float64, burst int, m *metrics.Metrics) *TenantRateLimiter {
	return &TenantRateLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		tenants: make(map[uint]*visitor),
		now:     time.Now,
		metrics: m,
	}
}

func (rl *TenantRateLimiter) limiter(tenantID uint) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastSweep) > time.Minute {
		for id, v := range rl.tenants {
			if now.Sub(v.lastSeen) > idleLimiterTTL {
				delete(rl.tenants, id)
			}
		}
		rl.lastSweep = now
	}

	v, ok := rl.tenants[tenantID]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.tenants[tenantID] = v
	}
	v.lastSeen = now
	return v.limiter
}

// Middleware must run after RequireAuth; requests without a tenant pass.
func (rl *TenantRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tc, ok := Tenant(c)
		if !ok {
			c.Next()
			return
		}
		if !rl.limiter(tc.TenantID).Allow() {
			rl.metrics.IncrementRateLimited()
			c.Header("Retry-After", "1")
			Abort(c, http.StatusTooManyRequests, "rate_limited", "too many requests for this tenant")
			return
		}
		c.Next()
	}
}
