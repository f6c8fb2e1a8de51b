package server

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chessticulate/chessticulate-api/internal/config"
	"github.com/chessticulate/chessticulate-api/internal/logging"
)

// RateLimiter implements per-client token bucket rate limiting keyed by IP.
type RateLimiter struct {
	buckets     map[string]*tokenBucket
	bucketMutex sync.RWMutex
	cfg         *config.RateLimitConfig
	log         logging.Logger
	cleaner     *time.Ticker
	stopCleaner chan struct{}
}

type tokenBucket struct {
	mutex      sync.Mutex
	tokens     int
	capacity   int
	refillRate int // tokens per minute
	lastRefill time.Time
	lastAccess time.Time
}

// RateLimitResult reports one admission decision.
type RateLimitResult struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// NewRateLimiter builds a limiter and starts its idle-bucket cleanup loop.
func NewRateLimiter(cfg *config.RateLimitConfig, log logging.Logger) *RateLimiter {
	rl := &RateLimiter{
		buckets:     make(map[string]*tokenBucket),
		cfg:         cfg,
		log:         log.WithComponent("ratelimit"),
		stopCleaner: make(chan struct{}),
	}
	rl.cleaner = time.NewTicker(5 * time.Minute)
	go rl.cleanupLoop()
	return rl
}

// Check consumes one token for the given key, usually a client IP.
func (rl *RateLimiter) Check(key string) RateLimitResult {
	if !rl.cfg.Enabled {
		return RateLimitResult{Allowed: true, Remaining: rl.cfg.BurstSize}
	}
	return rl.getBucket(key).consume()
}

func (rl *RateLimiter) getBucket(key string) *tokenBucket {
	rl.bucketMutex.RLock()
	bucket, exists := rl.buckets[key]
	rl.bucketMutex.RUnlock()
	if exists {
		bucket.touch()
		return bucket
	}

	rl.bucketMutex.Lock()
	defer rl.bucketMutex.Unlock()
	if bucket, exists := rl.buckets[key]; exists {
		bucket.touch()
		return bucket
	}

	now := time.Now()
	bucket = &tokenBucket{
		tokens:     rl.cfg.BurstSize,
		capacity:   rl.cfg.BurstSize,
		refillRate: rl.cfg.RequestsPerMinute,
		lastRefill: now,
		lastAccess: now,
	}
	rl.buckets[key] = bucket
	return bucket
}

func (tb *tokenBucket) touch() {
	tb.mutex.Lock()
	tb.lastAccess = time.Now()
	tb.mutex.Unlock()
}

func (tb *tokenBucket) consume() RateLimitResult {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()

	now := time.Now()
	tb.refill(now)

	if tb.tokens > 0 {
		tb.tokens--
		return RateLimitResult{Allowed: true, Remaining: tb.tokens}
	}

	retryAfter := time.Minute / time.Duration(tb.refillRate)
	return RateLimitResult{Allowed: false, RetryAfter: retryAfter}
}

func (tb *tokenBucket) refill(now time.Time) {
	elapsed := now.Sub(tb.lastRefill)
	if elapsed < time.Second {
		return
	}
	tokensToAdd := int(elapsed.Minutes() * float64(tb.refillRate))
	if tokensToAdd > 0 {
		tb.tokens += tokensToAdd
		if tb.tokens > tb.capacity {
			tb.tokens = tb.capacity
		}
		tb.lastRefill = now
	}
}

func (rl *RateLimiter) cleanupLoop() {
	for {
		select {
		case <-rl.cleaner.C:
			rl.removeIdleBuckets()
		case <-rl.stopCleaner:
			rl.cleaner.Stop()
			return
		}
	}
}

func (rl *RateLimiter) removeIdleBuckets() {
	rl.bucketMutex.Lock()
	defer rl.bucketMutex.Unlock()

	now := time.Now()
	const expiry = 10 * time.Minute
	for key, bucket := range rl.buckets {
		bucket.mutex.Lock()
		idle := now.Sub(bucket.lastAccess) > expiry
		bucket.mutex.Unlock()
		if idle {
			delete(rl.buckets, key)
		}
	}
}

// Stop terminates the cleanup loop.
func (rl *RateLimiter) Stop() {
	close(rl.stopCleaner)
}

// RateLimitMiddleware rejects clients that exhausted their bucket with 429.
func RateLimitMiddleware(limiter *RateLimiter) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := getClientIP(r)
			result := limiter.Check(clientIP)

			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", limiter.cfg.RequestsPerMinute))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", result.Remaining))

			if !result.Allowed {
				w.Header().Set("Retry-After", fmt.Sprintf("%.0f", result.RetryAfter.Seconds()))
				limiter.log.Warn(r.Context(), nil, "rate limit exceeded",
					"client_ip", clientIP, "path", r.URL.Path, "method", r.Method)
				writeJSON(w, http.StatusTooManyRequests, errorBody{Detail: "rate limit exceeded"})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
