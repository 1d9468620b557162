// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

// Package openstack contains everything that talks to Keystone directly:
//
// - the CatalogResolver, which maps a region and service to the public
// endpoint URL from the caller's service catalog.
//
// - the IdentityClient, which issues and scopes tokens for the session layer.
package openstack

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gophercloud/gophercloud/v2/openstack/identity/v3/catalog"
	"github.com/gophercloud/gophercloud/v2/openstack/identity/v3/tokens"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sapcc/go-bits/logg"

	"github.com/sapcc/stackgate/internal/stackgate"
)

var catalogLookupCounter = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "stackgate_catalog_lookups",
		Help: "Counts service catalog lookups, by whether the catalog was found in the cache.",
	},
	[]string{"result"},
)

func init() {
	prometheus.MustRegister(catalogLookupCounter)
}

// CatalogResolver finds endpoint URLs in the Keystone service catalog.
type CatalogResolver struct {
	// KeystoneURL is the base URL of Keystone without "/v3".
	KeystoneURL string
	// Cache is optional. If nil, the catalog is fetched on every call.
	Cache    CatalogCache
	CacheTTL time.Duration
}

// NewCatalogResolver builds a CatalogResolver from the given configuration.
func NewCatalogResolver(cfg stackgate.Configuration, cache CatalogCache) *CatalogResolver {
	return &CatalogResolver{
		KeystoneURL: cfg.KeystoneBaseURL(),
		Cache:       cache,
		CacheTTL:    cfg.CatalogCacheTTL,
	}
}

// Resolve returns the base URL for the given service in the given region.
// Keystone itself and everything in the "global" region resolve to the
// configured KeystoneURL without a catalog lookup. Otherwise, the catalog is
// obtained with `token`.
//
// ok is false if the catalog could not be obtained, if the service is not in
// it, or if it has no public endpoint in the region.
func (r *CatalogResolver) Resolve(ctx context.Context, region, serviceType, serviceName, token string) (baseURL string, ok bool) {
	if stackgate.IsGlobal(region, serviceName) {
		return r.KeystoneURL, true
	}

	entries, err := r.GetCatalog(ctx, token)
	if err != nil {
		logg.Error("cannot obtain service catalog from %s: %s", r.KeystoneURL, err.Error())
		return "", false
	}
	return SelectEndpoint(entries, region, serviceType, serviceName)
}

// GetCatalog returns the service catalog for the given token, from cache if
// possible.
func (r *CatalogResolver) GetCatalog(ctx context.Context, token string) ([]tokens.CatalogEntry, error) {
	cacheKey := hashCacheKey(r.KeystoneURL, token)
	if r.Cache != nil {
		entries, ok := r.Cache.LoadCatalog(ctx, cacheKey)
		if ok {
			catalogLookupCounter.With(prometheus.Labels{"result": "hit"}).Inc()
			return entries, nil
		}
	}

	entries, err := r.fetchCatalog(ctx, token)
	if err != nil {
		catalogLookupCounter.With(prometheus.Labels{"result": "error"}).Inc()
		return nil, err
	}
	catalogLookupCounter.With(prometheus.Labels{"result": "miss"}).Inc()

	if r.Cache != nil {
		r.Cache.StoreCatalog(ctx, cacheKey, entries, r.CacheTTL)
	}
	return entries, nil
}

func (r *CatalogResolver) fetchCatalog(ctx context.Context, token string) ([]tokens.CatalogEntry, error) {
	client := newIdentityServiceClient(r.KeystoneURL, token)
	page, err := catalog.List(client).AllPages(ctx)
	if err != nil {
		return nil, fmt.Errorf("while listing catalog: %w", err)
	}
	entries, err := catalog.ExtractServiceCatalog(page)
	if err != nil {
		return nil, fmt.Errorf("while parsing catalog: %w", err)
	}
	return entries, nil
}

// SelectEndpoint finds the public endpoint for a service in a catalog.
//
// The first entry whose type equals serviceType or whose name equals
// serviceName wins. Within that entry, the endpoint must have the "public"
// interface and belong to the given region. If region is empty, any public
// endpoint is accepted.
func SelectEndpoint(entries []tokens.CatalogEntry, region, serviceType, serviceName string) (string, bool) {
	for _, entry := range entries {
		if entry.Type != serviceType && entry.Name != serviceName {
			continue
		}

		for _, endpoint := range entry.Endpoints {
			if endpoint.Interface != "public" {
				continue
			}
			if region == "" || endpoint.Region == region || endpoint.RegionID == region {
				return strings.TrimSuffix(endpoint.URL, "/"), true
			}
		}
		return "", false
	}
	return "", false
}
