// Package ratelimit gates requests with a sliding window counted by an
// external store. The store owns atomicity; this package only asks it.
package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"problem-radar/internal/logger"
)

// Config parameterises a single check.
type Config struct {
	MaxRequests   int
	WindowMinutes int
}

var (
	Standard  = Config{MaxRequests: 60, WindowMinutes: 1}
	Sensitive = Config{MaxRequests: 10, WindowMinutes: 1}
	Search    = Config{MaxRequests: 20, WindowMinutes: 60}
	Public    = Config{MaxRequests: 100, WindowMinutes: 1}
	Strict    = Config{MaxRequests: 5, WindowMinutes: 1}
)

var presets = map[string]Config{
	"standard":  Standard,
	"sensitive": Sensitive,
	"search":    Search,
	"public":    Public,
	"strict":    Strict,
}

// Preset looks up a named configuration.
func Preset(name string) (Config, bool) {
	cfg, ok := presets[strings.ToLower(name)]
	return cfg, ok
}

// DefaultRetryAfter is used when the store rejects without a retry hint.
const DefaultRetryAfter = 60

type Result struct {
	Allowed    bool `json:"allowed"`
	Current    int  `json:"current"`
	Limit      int  `json:"limit"`
	Remaining  *int `json:"remaining,omitempty"`
	RetryAfter *int `json:"retry_after,omitempty"`
}

// RetryAfterSeconds returns the store's hint or DefaultRetryAfter.
func (r Result) RetryAfterSeconds() int {
	if r.RetryAfter != nil && *r.RetryAfter > 0 {
		return *r.RetryAfter
	}
	return DefaultRetryAfter
}

// Store performs an atomic check-and-increment for one identifier/endpoint pair.
type Store interface {
	CheckAndIncrement(ctx context.Context, identifier, endpoint string, cfg Config) (Result, error)
}

type Limiter struct {
	store Store
	log   *logger.Logger
}

func New(store Store, log *logger.Logger) *Limiter {
	return &Limiter{store: store, log: log.With("component", "ratelimit")}
}

// Check never fails: when the store errors or is missing the request is
// allowed through.
func (l *Limiter) Check(ctx context.Context, identifier, endpoint string, cfg Config) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Warn("Rate limit store panicked, failing open", "identifier", identifier, "endpoint", endpoint, "panic", fmt.Sprint(r))
			res = failOpen(cfg)
		}
	}()

	if l.store == nil {
		return failOpen(cfg)
	}
	res, err := l.store.CheckAndIncrement(ctx, identifier, endpoint, cfg)
	if err != nil {
		l.log.Warn("Rate limit check failed, failing open", "identifier", identifier, "endpoint", endpoint, "error", err)
		return failOpen(cfg)
	}
	if !res.Allowed {
		l.log.Info("Rate limit exceeded", "identifier", identifier, "endpoint", endpoint, "current", res.Current, "limit", res.Limit)
	}
	return res
}

func failOpen(cfg Config) Result {
	return Result{Allowed: true, Current: 0, Limit: cfg.MaxRequests}
}

// Identifier prefers the authenticated user, then the first X-Forwarded-For
// entry, X-Real-IP, CF-Connecting-IP, and finally "anonymous".
func Identifier(userID string, h http.Header) string {
	if userID != "" {
		return "user:" + userID
	}
	if fwd := h.Get("X-Forwarded-For"); fwd != "" {
		if ip := strings.TrimSpace(strings.Split(fwd, ",")[0]); ip != "" {
			return "ip:" + ip
		}
	}
	if ip := strings.TrimSpace(h.Get("X-Real-IP")); ip != "" {
		return "ip:" + ip
	}
	if ip := strings.TrimSpace(h.Get("CF-Connecting-IP")); ip != "" {
		return "ip:" + ip
	}
	return "anonymous"
}

func intPtr(v int) *int { return &v }
