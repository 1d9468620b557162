// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sapcc/go-bits/assert"
	"github.com/sapcc/go-bits/must"
)

func exampleSession(id string, expiresAt time.Time) Session {
	return Session{
		ID:             id,
		UnscopedToken:  "unscoped-token",
		ProjectToken:   "project-token",
		ProjectID:      "pid-demo",
		RegionID:       "us-east-1",
		UserID:         "uid-alice",
		UserName:       "alice",
		DomainName:     "Default",
		ExpiresAt:      expiresAt,
		TokenExpiresAt: expiresAt.Add(time.Hour),
	}
}

// Runs the same checks against every Store implementation.
func testStoreBasics(t *testing.T, store Store, advance func(time.Duration), now func() time.Time) {
	t.Helper()
	ctx := context.Background()

	s, err := store.Load(ctx, "missing")
	must.SucceedT(t, err)
	assert.DeepEqual(t, "missing session", s, (*Session)(nil))

	original := exampleSession("first", now().Add(time.Hour))
	must.SucceedT(t, store.Save(ctx, original))
	s, err = store.Load(ctx, "first")
	must.SucceedT(t, err)
	assert.DeepEqual(t, "loaded session", s, &original)

	// update in place
	original.ProjectID = "pid-prod"
	original.ProjectToken = "other-project-token"
	must.SucceedT(t, store.Save(ctx, original))
	s, err = store.Load(ctx, "first")
	must.SucceedT(t, err)
	assert.DeepEqual(t, "updated session", s, &original)

	must.SucceedT(t, store.Delete(ctx, "first"))
	s, err = store.Load(ctx, "first")
	must.SucceedT(t, err)
	assert.DeepEqual(t, "deleted session", s, (*Session)(nil))

	// deleting twice is fine
	must.SucceedT(t, store.Delete(ctx, "first"))

	// expiry
	must.SucceedT(t, store.Save(ctx, exampleSession("second", now().Add(time.Minute))))
	advance(2 * time.Minute)
	s, err = store.Load(ctx, "second")
	must.SucceedT(t, err)
	assert.DeepEqual(t, "expired session", s, (*Session)(nil))
}

func TestMemoryStore(t *testing.T) {
	now := time.Unix(1000, 0).UTC()
	timeNow := func() time.Time { return now }
	store := NewMemoryStore().OverrideTimeNow(timeNow)
	testStoreBasics(t, store, func(d time.Duration) { now = now.Add(d) }, timeNow)
}

func TestMemoryStoreSweep(t *testing.T) {
	now := time.Unix(1000, 0).UTC()
	store := NewMemoryStore().OverrideTimeNow(func() time.Time { return now })
	ctx := context.Background()

	must.SucceedT(t, store.Save(ctx, exampleSession("short", now.Add(time.Minute))))
	must.SucceedT(t, store.Save(ctx, exampleSession("long", now.Add(time.Hour))))

	job := store.SweepExpiredSessionsJob(prometheus.NewPedanticRegistry())

	// nothing expired yet
	must.SucceedT(t, job.ProcessOne(ctx))
	assert.DeepEqual(t, "sessions before expiry", store.Len(), 2)

	now = now.Add(time.Minute)
	must.SucceedT(t, job.ProcessOne(ctx))
	assert.DeepEqual(t, "sessions after first expiry", store.Len(), 1)

	s, err := store.Load(ctx, "long")
	must.SucceedT(t, err)
	assert.DeepEqual(t, "remaining session ID", s.ID, "long")
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	now := time.Unix(1000, 0).UTC()
	timeNow := func() time.Time { return now }

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(client).OverrideTimeNow(timeNow)
	testStoreBasics(t, store, func(d time.Duration) {
		now = now.Add(d)
		mr.FastForward(d)
	}, timeNow)
}

func TestRedisStoreUsesSessionLifetimeAsTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	now := time.Unix(1000, 0).UTC()
	ctx := context.Background()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(client).OverrideTimeNow(func() time.Time { return now })

	must.SucceedT(t, store.Save(ctx, exampleSession("first", now.Add(30*time.Minute))))
	assert.DeepEqual(t, "TTL", mr.TTL("stackgate-session-first"), 30*time.Minute)

	// saving an already expired session removes it
	must.SucceedT(t, store.Save(ctx, exampleSession("first", now.Add(-time.Second))))
	assert.DeepEqual(t, "key exists", mr.Exists("stackgate-session-first"), false)
}
