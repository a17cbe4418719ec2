package rate

import (
	"context"
	"strings"
	"sync"
	"time"

	xrate "golang.org/x/time/rate"
)

const localPruneThreshold = 10_000

// Local is an in-process limiter. Each key owns a token bucket holding
// MaxLoginAttempts tokens that refills completely over Cooldown; a failure
// spends one token.
type Local struct {
	config Config

	mu       sync.Mutex
	limiters map[string]*xrate.Limiter
}

// NewLocal creates an in-process limiter.
func NewLocal(cfg Config) *Local {
	return &Local{config: cfg, limiters: make(map[string]*xrate.Limiter)}
}

func (l *Local) keys(identifier, ip string) []string {
	keys := []string{"u:" + strings.ToLower(strings.TrimSpace(identifier))}
	if l.config.EnableIPThrottle && ip != "" {
		keys = append(keys, "ip:"+ip)
	}
	return keys
}

func (l *Local) every() xrate.Limit {
	if l.config.MaxLoginAttempts <= 0 || l.config.Cooldown <= 0 {
		return xrate.Inf
	}
	return xrate.Every(l.config.Cooldown / time.Duration(l.config.MaxLoginAttempts))
}

func (l *Local) limiter(key string, create bool) *xrate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.limiters[key]
	if ok || !create {
		return lim
	}
	if len(l.limiters) >= localPruneThreshold {
		l.pruneLocked(time.Now())
	}
	lim = xrate.NewLimiter(l.every(), l.config.MaxLoginAttempts)
	l.limiters[key] = lim
	return lim
}

// pruneLocked drops buckets that have fully refilled; they carry no state.
func (l *Local) pruneLocked(now time.Time) {
	for key, lim := range l.limiters {
		if lim.TokensAt(now) >= float64(lim.Burst()) {
			delete(l.limiters, key)
		}
	}
}

func (l *Local) CheckLogin(_ context.Context, identifier, ip string) error {
	now := time.Now()
	for _, key := range l.keys(identifier, ip) {
		if lim := l.limiter(key, false); lim != nil && lim.TokensAt(now) < 1 {
			return ErrRateLimited
		}
	}
	return nil
}

func (l *Local) IncrementLogin(_ context.Context, identifier, ip string) error {
	now := time.Now()
	for _, key := range l.keys(identifier, ip) {
		l.limiter(key, true).AllowN(now, 1)
	}
	return nil
}

func (l *Local) ResetLogin(_ context.Context, identifier, _ string) error {
	l.mu.Lock()
	delete(l.limiters, l.keys(identifier, "")[0])
	l.mu.Unlock()
	return nil
}
