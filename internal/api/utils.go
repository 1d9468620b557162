// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"fmt"
	"net/http"

	"github.com/go-redis/redis_rate/v10"
	"github.com/sapcc/go-bits/httpext"

	"github.com/sapcc/stackgate/internal/stackgate"
)

// RateLimitedAction is an enum of all actions that can be rate-limited.
type RateLimitedAction string

const (
	// LoginAction is a RateLimitedAction.
	LoginAction RateLimitedAction = "login"
)

// RateLimiter holds the limits for each RateLimitedAction. Actions without a
// limit are not rate-limited.
type RateLimiter struct {
	Limiter *redis_rate.Limiter
	Limits  map[RateLimitedAction]redis_rate.Limit
}

// CheckRateLimit performs a rate limit check for the requester's IP and
// returns a 429 error if the rate limit is exceeded.
func CheckRateLimit(r *http.Request, rl *RateLimiter, action RateLimitedAction) error {
	// rate-limiting is optional
	if rl == nil {
		return nil
	}
	limit, ok := rl.Limits[action]
	if !ok {
		return nil
	}

	key := fmt.Sprintf("stackgate-ratelimit-%s-%s", string(action), httpext.GetRequesterIPFor(r))
	result, err := rl.Limiter.Allow(r.Context(), key, limit)
	if err != nil {
		return fmt.Errorf("cannot check rate limit: %w", err)
	}
	if result.Allowed <= 0 {
		perr := stackgate.ErrTooManyRequests.With("too many %s attempts, please try again later", string(action))
		perr.RetryAfter = result.RetryAfter
		return perr
	}
	return nil
}
