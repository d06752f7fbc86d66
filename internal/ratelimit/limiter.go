// Package ratelimit limits actions per client with fixed-window counters kept
// in redis, so every server process shares the same counts.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

type Rule struct {
	Limit  int64
	Window time.Duration
}

type Limiter struct {
	counter Counter
	rules   map[string]Rule
	now     func() time.Time
}

type CheckResult struct {
	Allowed   bool
	Remaining int64
	ResetAt   time.Time
	Limit     int64
}

// RetryAfterSeconds is the time left until the window resets, rounded up to
// a whole second and never below one.
func (r *CheckResult) RetryAfterSeconds(now time.Time) int64 {
	d := r.ResetAt.Sub(now)
	secs := int64((d + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}

func NewLimiter(counter Counter, rules map[string]Rule) *Limiter {
	return &Limiter{counter: counter, rules: rules, now: time.Now}
}

// Check counts one hit of action by clientID.
func (l *Limiter) Check(ctx context.Context, clientID, action string) (*CheckResult, error) {
	rule, ok := l.rules[action]
	if !ok {
		return &CheckResult{Allowed: true, Remaining: -1}, nil
	}

	key := fmt.Sprintf("rate:%s:%s", action, clientID)
	count, ttl, err := l.counter.Incr(ctx, key, rule.Window)
	if err != nil {
		return nil, fmt.Errorf("failed to increment counter: %w", err)
	}

	remaining := rule.Limit - count
	if remaining < 0 {
		remaining = 0
	}
	return &CheckResult{
		Allowed:   count <= rule.Limit,
		Remaining: remaining,
		ResetAt:   l.now().Add(ttl),
		Limit:     rule.Limit,
	}, nil
}
