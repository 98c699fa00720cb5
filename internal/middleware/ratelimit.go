package middleware

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/notebase-ai/notebase/internal/pkg/errcode"
	"github.com/notebase-ai/notebase/internal/pkg/response"
)

type keyedLimiter struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	rps      rate.Limit
	burst    int
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimit applies a per-(ip, user, route) token bucket. rps <= 0 disables
// the middleware.
func RateLimit(rps float64, burst int) gin.HandlerFunc {
	if rps <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if burst <= 0 {
		burst = 1
	}
	kl := &keyedLimiter{
		limiters: map[string]*limiterEntry{},
		rps:      rate.Limit(rps),
		burst:    burst,
	}
	go kl.evictLoop()
	return kl.handle
}

func (kl *keyedLimiter) handle(c *gin.Context) {
	uid := "0"
	if v, ok := c.Get(ContextUserIDKey); ok {
		if id, ok := v.(string); ok && id != "" {
			uid = id
		}
	}
	path := c.FullPath()
	if path == "" {
		path = c.Request.URL.Path
	}
	key := strings.Join([]string{c.ClientIP(), uid, path}, "|")

	if !kl.get(key).Allow() {
		logutil.GetLogger(c.Request.Context()).Warn("rate limit hit",
			zap.String("user_id", uid),
			zap.String("path", path),
		)
		response.Error(c, errcode.ErrTooMany, http.StatusText(http.StatusTooManyRequests))
		c.Abort()
		return
	}
	c.Next()
}

func (kl *keyedLimiter) get(key string) *rate.Limiter {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	entry, ok := kl.limiters[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(kl.rps, kl.burst)}
		kl.limiters[key] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter
}

func (kl *keyedLimiter) evictLoop() {
	for range time.Tick(time.Minute) {
		cutoff := time.Now().Add(-10 * time.Minute)
		kl.mu.Lock()
		for key, entry := range kl.limiters {
			if entry.lastSeen.Before(cutoff) {
				delete(kl.limiters, key)
			}
		}
		kl.mu.Unlock()
	}
}
