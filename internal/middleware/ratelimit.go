package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const rateLimiterExpiry = 5 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter 按客户端 IP 的令牌桶限流
type RateLimiter struct {
	mu          sync.Mutex
	visitors    map[string]*visitor
	limit       rate.Limit
	burst       int
	lastCleanup time.Time
	now         func() time.Time
}

func NewRateLimiter(ratePerSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Limit(ratePerSecond),
		burst:    burst,
		now:      time.Now,
	}
}

// Allow 消耗 key 的一个令牌
func (l *RateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now

	if now.Sub(l.lastCleanup) > rateLimiterExpiry {
		l.cleanup(now)
	}

	return v.limiter.AllowN(now, 1)
}

// cleanup 清理长时间不活跃的客户端，每个过期周期最多执行一次
func (l *RateLimiter) cleanup(now time.Time) {
	for k, v := range l.visitors {
		if now.Sub(v.lastSeen) > rateLimiterExpiry {
			delete(l.visitors, k)
		}
	}
	l.lastCleanup = now
}

// size 当前跟踪的客户端数
func (l *RateLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}

func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": gin.H{"type": "rate_limited", "message": "rate limit exceeded"},
			})
			return
		}
		c.Next()
	}
}
