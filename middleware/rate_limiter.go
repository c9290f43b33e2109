package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// limiterIdleTTL is how long a client's bucket survives without requests.
const limiterIdleTTL = 10 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter hands out one token bucket per client IP. Client IPs come from
// gin's ClientIP, so forwarding headers only count from the engine's trusted proxies.
type RateLimiter struct {
	perMinute int
	burst     int
	idleTTL   time.Duration
	now       func() time.Time

	mu        sync.Mutex
	visitors  map[string]*visitor
	lastSweep time.Time
}

// NewRateLimiter allows perMinute requests per client, with bursts of the same size.
// A non-positive perMinute disables limiting.
func NewRateLimiter(perMinute int) *RateLimiter {
	return &RateLimiter{
		perMinute: perMinute,
		burst:     perMinute,
		idleTTL:   limiterIdleTTL,
		now:       time.Now,
		visitors:  make(map[string]*visitor),
	}
}

// limiterFor returns the rate limiter for a given IP, creating one if it doesn't exist.
// Idle buckets are dropped at most once per idleTTL.
func (s *RateLimiter) limiterFor(ip string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastSweep) >= s.idleTTL {
		for key, v := range s.visitors {
			if now.Sub(v.lastSeen) >= s.idleTTL {
				delete(s.visitors, key)
			}
		}
		s.lastSweep = now
	}

	v, exists := s.visitors[ip]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(s.perMinute)), s.burst)}
		s.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter
}

func (s *RateLimiter) tracked() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.visitors)
}

// Middleware limits requests per IP address.
func (s *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.perMinute <= 0 {
			c.Next()
			return
		}
		ip := c.ClientIP()
		if !s.limiterFor(ip).Allow() {
			loggerFrom(c).Warn("Rate limit exceeded", zap.String("ip", ip))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"message": "Rate limit exceeded. Try again later."})
			return
		}
		c.Next()
	}
}
