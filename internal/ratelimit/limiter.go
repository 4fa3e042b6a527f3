// Package ratelimit enforces the per-owner generation request ceiling. The
// counter is an injected dependency so a single-process deployment can use
// the in-memory window while multi-process deployments share one through
// Redis.
package ratelimit

import (
	"context"
	"time"
)

// Result reports one admission decision. ResetAt tells a rejected caller when
// the current window expires.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter admits or rejects one generation request for an owner. The count
// must be updated atomically with respect to concurrent requests from the
// same owner.
type Limiter interface {
	Allow(ctx context.Context, ownerID string) (Result, error)
}
