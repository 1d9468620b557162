// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package openstack

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gophercloud/gophercloud/v2/openstack/identity/v3/tokens"
	"github.com/redis/go-redis/v9"
	"github.com/sapcc/go-bits/logg"
)

// CatalogCache stores service catalogs for a limited time. Stale reads are
// acceptable since catalogs change rarely.
type CatalogCache interface {
	LoadCatalog(ctx context.Context, cacheKey string) ([]tokens.CatalogEntry, bool)
	StoreCatalog(ctx context.Context, cacheKey string, catalog []tokens.CatalogEntry, ttl time.Duration)
}

// Tokens must never appear in cache keys verbatim.
func hashCacheKey(keystoneURL, token string) string {
	sha256Hash := sha256.Sum256([]byte(keystoneURL + "\x00" + token))
	return "stackgate-catalog-" + hex.EncodeToString(sha256Hash[:])
}

////////////////////////////////////////////////////////////////////////////////
// in-memory implementation

// MemoryCatalogCache is a CatalogCache that lives in process memory.
type MemoryCatalogCache struct {
	mutex   sync.Mutex
	entries map[string]memoryCacheEntry
	timeNow func() time.Time
}

type memoryCacheEntry struct {
	Catalog   []tokens.CatalogEntry
	ExpiresAt time.Time
}

// NewMemoryCatalogCache builds a new MemoryCatalogCache.
func NewMemoryCatalogCache() *MemoryCatalogCache {
	return &MemoryCatalogCache{
		entries: make(map[string]memoryCacheEntry),
		timeNow: time.Now,
	}
}

// OverrideTimeNow replaces time.Now with a test double.
func (c *MemoryCatalogCache) OverrideTimeNow(timeNow func() time.Time) *MemoryCatalogCache {
	c.timeNow = timeNow
	return c
}

// LoadCatalog implements the CatalogCache interface.
func (c *MemoryCatalogCache) LoadCatalog(_ context.Context, cacheKey string) ([]tokens.CatalogEntry, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry, exists := c.entries[cacheKey]
	if !exists {
		return nil, false
	}
	if !c.timeNow().Before(entry.ExpiresAt) {
		delete(c.entries, cacheKey)
		return nil, false
	}
	return entry.Catalog, true
}

// StoreCatalog implements the CatalogCache interface.
func (c *MemoryCatalogCache) StoreCatalog(_ context.Context, cacheKey string, catalog []tokens.CatalogEntry, ttl time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	// every token gets its own entry, so drop expired ones here to keep the map
	// from growing without bound
	now := c.timeNow()
	for key, entry := range c.entries {
		if !now.Before(entry.ExpiresAt) {
			delete(c.entries, key)
		}
	}

	c.entries[cacheKey] = memoryCacheEntry{
		Catalog:   catalog,
		ExpiresAt: now.Add(ttl),
	}
}

// Len returns the number of entries (including expired ones that were not
// pruned yet).
func (c *MemoryCatalogCache) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.entries)
}

////////////////////////////////////////////////////////////////////////////////
// Redis implementation

// RedisCatalogCache is an adapter around *redis.Client that implements the
// CatalogCache interface.
type RedisCatalogCache struct {
	*redis.Client
}

// LoadCatalog implements the CatalogCache interface.
func (c RedisCatalogCache) LoadCatalog(ctx context.Context, cacheKey string) ([]tokens.CatalogEntry, bool) {
	payload, err := c.Get(ctx, cacheKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		logg.Error("cannot retrieve service catalog from Redis: %s", err.Error())
		return nil, false
	}

	var catalog []tokens.CatalogEntry
	err = json.Unmarshal(payload, &catalog)
	if err != nil {
		logg.Error("cannot decode service catalog from Redis: %s", err.Error())
		return nil, false
	}
	return catalog, true
}

// StoreCatalog implements the CatalogCache interface.
func (c RedisCatalogCache) StoreCatalog(ctx context.Context, cacheKey string, catalog []tokens.CatalogEntry, ttl time.Duration) {
	payload, err := json.Marshal(catalog)
	if err != nil {
		logg.Error("cannot encode service catalog for Redis: %s", err.Error())
		return
	}
	err = c.Set(ctx, cacheKey, payload, ttl).Err()
	if err != nil {
		logg.Error("cannot cache service catalog in Redis: %s", err.Error())
	}
}
