// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a Store that keeps sessions in Redis, so that they survive
// restarts and are shared between replicas. Expiry is left to Redis.
type RedisStore struct {
	Client  *redis.Client
	timeNow func() time.Time
}

// NewRedisStore builds a new RedisStore.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{Client: client, timeNow: time.Now}
}

// OverrideTimeNow replaces time.Now with a test double.
func (r *RedisStore) OverrideTimeNow(timeNow func() time.Time) *RedisStore {
	r.timeNow = timeNow
	return r
}

func redisKey(id string) string {
	return "stackgate-session-" + id
}

// Load implements the Store interface.
func (r *RedisStore) Load(ctx context.Context, id string) (*Session, error) {
	payload, err := r.Client.Get(ctx, redisKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot load session from Redis: %w", err)
	}

	var s Session
	err = json.Unmarshal(payload, &s)
	if err != nil {
		return nil, fmt.Errorf("cannot decode session from Redis: %w", err)
	}
	return &s, nil
}

// Save implements the Store interface.
func (r *RedisStore) Save(ctx context.Context, s Session) error {
	ttl := s.ExpiresAt.Sub(r.timeNow())
	if ttl <= 0 {
		return r.Delete(ctx, s.ID)
	}

	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("cannot encode session for Redis: %w", err)
	}
	err = r.Client.Set(ctx, redisKey(s.ID), payload, ttl).Err()
	if err != nil {
		return fmt.Errorf("cannot store session in Redis: %w", err)
	}
	return nil
}

// Delete implements the Store interface.
func (r *RedisStore) Delete(ctx context.Context, id string) error {
	err := r.Client.Del(ctx, redisKey(id)).Err()
	if err != nil {
		return fmt.Errorf("cannot delete session from Redis: %w", err)
	}
	return nil
}
