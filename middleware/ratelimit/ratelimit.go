// Package ratelimit throttles requests per client with a token bucket
package ratelimit

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"
)

// DetailTooManyAttempts is the default 429 detail
const DetailTooManyAttempts = "Too many login attempts"

type Config struct {
	// PerMinute is the sustained rate, 0 disables the limiter
	PerMinute int
	Burst     int
	// KeyGenerator defaults to the client IP
	KeyGenerator func(*fiber.Ctx) string
	LimitReached fiber.Handler
	// IdleTTL drops buckets not used for this long
	IdleTTL       time.Duration
	SweepInterval time.Duration
	Now           func() time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter holds one bucket per key
type Limiter struct {
	cfg     Config
	limit   rate.Limit
	mu      sync.Mutex
	buckets map[string]*bucket
	done    chan struct{}
	once    sync.Once
}

// New starts a limiter, Close stops its sweeper
func New(config ...Config) *Limiter {
	cfg := GetDefaultConfig(config...)

	l := &Limiter{
		cfg:     cfg,
		limit:   rate.Limit(float64(cfg.PerMinute) / 60),
		buckets: map[string]*bucket{},
		done:    make(chan struct{}),
	}

	if cfg.PerMinute > 0 {
		go l.sweep()
	}
	return l
}

func GetDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.Burst < 1 {
		cfg.Burst = 1
	}

	if cfg.KeyGenerator == nil {
		cfg.KeyGenerator = func(c *fiber.Ctx) string {
			return c.IP()
		}
	}

	if cfg.LimitReached == nil {
		cfg.LimitReached = func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"detail": DetailTooManyAttempts})
		}
	}

	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 10 * time.Minute
	}

	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}

	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return cfg
}

// Handler returns the fiber middleware
func (l *Limiter) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if l.cfg.PerMinute <= 0 {
			return c.Next()
		}

		if !l.Allow(l.cfg.KeyGenerator(c)) {
			c.Set(fiber.HeaderRetryAfter, "60")
			return l.cfg.LimitReached(c)
		}
		return c.Next()
	}
}

// Allow takes one token from the bucket of key
func (l *Limiter) Allow(key string) bool {
	if l.cfg.PerMinute <= 0 {
		return true
	}

	now := l.cfg.Now()

	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.cfg.Burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	l.mu.Unlock()

	return b.limiter.AllowN(now, 1)
}

// Len is the number of tracked keys
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Prune drops buckets idle for longer than IdleTTL
func (l *Limiter) Prune() {
	cutoff := l.cfg.Now().Add(-l.cfg.IdleTTL)

	l.mu.Lock()
	defer l.mu.Unlock()
	for key, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
}

func (l *Limiter) Close() {
	l.once.Do(func() {
		close(l.done)
	})
}

func (l *Limiter) sweep() {
	ticker := time.NewTicker(l.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.Prune()
		}
	}
}
