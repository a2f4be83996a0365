// Package ratelimit implements fixed-window request counters keyed by rule
// and caller.
//
// A window opens on the first counted request for a key and lasts for the
// rule's Window. Requests 1..Limit inside it are allowed, later ones are
// rejected until it expires. Rejected requests are not counted.
//
// RedisLimiter shares counters across API instances. MemoryLimiter keeps
// them in process and is used when Redis is not configured, and as the
// fallback when Redis is unreachable.
package ratelimit

import (
	"context"
	"time"

	"github.com/ignite/campaign-dashboard/internal/pkg/logger"
)

// Rule is a named limit of Limit requests per Window.
type Rule struct {
	Name   string
	Limit  int
	Window time.Duration
}

// Built-in rules.
var (
	SendEmail    = Rule{Name: "send_email", Limit: 10, Window: time.Minute}
	SendCampaign = Rule{Name: "send_campaign", Limit: 5, Window: 5 * time.Minute}
	Global       = Rule{Name: "global", Limit: 1000, Window: 15 * time.Minute}
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Count     int
	Remaining int
	// RetryAfter is the time left in the current window.
	RetryAfter time.Duration
}

// Limiter decides whether one more request under rule is allowed for key.
type Limiter interface {
	Allow(ctx context.Context, rule Rule, key string) (Decision, error)
}

func decide(rule Rule, allowed bool, count int, ttl time.Duration) Decision {
	remaining := rule.Limit - count
	if remaining < 0 {
		remaining = 0
	}
	if ttl < 0 {
		ttl = 0
	}
	return Decision{Allowed: allowed, Count: count, Remaining: remaining, RetryAfter: ttl}
}

func storageKey(rule Rule, key string) string {
	return "ratelimit:" + rule.Name + ":" + key
}

// Fallback uses Primary and switches to Secondary for any call where
// Primary returns an error.
type Fallback struct {
	Primary   Limiter
	Secondary Limiter
}

// Allow implements Limiter.
func (f Fallback) Allow(ctx context.Context, rule Rule, key string) (Decision, error) {
	d, err := f.Primary.Allow(ctx, rule, key)
	if err == nil {
		return d, nil
	}
	logger.Warn("ratelimit: primary store failed, using fallback", "rule", rule.Name, "error", err)
	return f.Secondary.Allow(ctx, rule, key)
}
