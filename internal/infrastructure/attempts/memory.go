package attempts

import (
	"context"
	"sync"
	"time"

	"github.com/manorfm/healthshield-mfa/internal/infrastructure/clock"
	"golang.org/x/time/rate"
)

const cleanupInterval = time.Minute

type keyLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// MemoryLimiter keeps one token bucket per key. Keys idle for longer than ttl
// are evicted by a background sweep until Close is called.
type MemoryLimiter struct {
	mu       sync.Mutex
	keys     map[string]*keyLimiter
	rate     rate.Limit
	burst    int
	ttl      time.Duration
	clock    clock.Clocker
	done     chan struct{}
	stopOnce sync.Once
}

// PerWindow returns the refill rate that allows max attempts per window
func PerWindow(max int, window time.Duration) rate.Limit {
	return rate.Every(window / time.Duration(max))
}

// NewMemoryLimiter creates a keyed limiter with the given refill rate and burst
func NewMemoryLimiter(r rate.Limit, burst int, ttl time.Duration, clk clock.Clocker) *MemoryLimiter {
	l := &MemoryLimiter{
		keys:  make(map[string]*keyLimiter),
		rate:  r,
		burst: burst,
		ttl:   ttl,
		clock: clk,
		done:  make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

// Allow reports whether key may make another attempt now
func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	v, ok := l.keys[key]
	if !ok {
		v = &keyLimiter{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.keys[key] = v
	}
	v.lastSeen = now

	return v.limiter.AllowN(now, 1), nil
}

// Close stops the background sweep
func (l *MemoryLimiter) Close() error {
	l.stopOnce.Do(func() { close(l.done) })
	return nil
}

func (l *MemoryLimiter) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.evictIdle()
		}
	}
}

func (l *MemoryLimiter) evictIdle() {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	for key, v := range l.keys {
		if now.Sub(v.lastSeen) > l.ttl {
			delete(l.keys, key)
		}
	}
}

func (l *MemoryLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.keys)
}
