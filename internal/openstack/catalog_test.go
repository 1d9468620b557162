// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package openstack

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gophercloud/gophercloud/v2/openstack/identity/v3/tokens"
	"github.com/jarcoal/httpmock"
	"github.com/sapcc/go-bits/assert"
)

const testKeystoneURL = "https://identity.example.com"

var testCatalog = []tokens.CatalogEntry{
	{
		ID:   "svc-identity",
		Name: "keystone",
		Type: "identity",
		Endpoints: []tokens.Endpoint{
			{ID: "ep1", Interface: "public", Region: "us-east-1", RegionID: "us-east-1", URL: "https://identity.example.com"},
		},
	},
	{
		ID:   "svc-compute",
		Name: "nova",
		Type: "compute",
		Endpoints: []tokens.Endpoint{
			{ID: "ep2", Interface: "admin", Region: "us-east-1", RegionID: "us-east-1", URL: "https://nova-admin.us-east-1.example.com/v2.1"},
			{ID: "ep3", Interface: "public", Region: "us-east-1", RegionID: "us-east-1", URL: "https://nova.us-east-1.example.com/v2.1/"},
			{ID: "ep4", Interface: "public", Region: "eu-de-1", RegionID: "eu-de-1", URL: "https://nova.eu-de-1.example.com/v2.1"},
		},
	},
	{
		ID:   "svc-network",
		Name: "neutron",
		Type: "network",
		Endpoints: []tokens.Endpoint{
			{ID: "ep5", Interface: "internal", Region: "us-east-1", RegionID: "us-east-1", URL: "http://neutron.internal:9696"},
		},
	},
	{
		// legacy entry that is only recognizable by name
		ID:   "svc-legacy",
		Name: "cinder",
		Type: "volume",
		Endpoints: []tokens.Endpoint{
			{ID: "ep6", Interface: "public", Region: "", RegionID: "us-east-1", URL: "https://cinder.us-east-1.example.com/v3/abc"},
		},
	},
}

func TestSelectEndpoint(t *testing.T) {
	testCases := []struct {
		Region      string
		ServiceType string
		ServiceName string
		ExpectURL   string
		ExpectOK    bool
	}{
		// public endpoint in the requested region, trailing slash removed
		{"us-east-1", "compute", "nova", "https://nova.us-east-1.example.com/v2.1", true},
		{"eu-de-1", "compute", "nova", "https://nova.eu-de-1.example.com/v2.1", true},
		// no endpoint in this region
		{"us-west-2", "compute", "nova", "", false},
		// no region filter: any public endpoint
		{"", "compute", "nova", "https://nova.us-east-1.example.com/v2.1", true},
		// only an internal endpoint exists
		{"us-east-1", "network", "neutron", "", false},
		// matched by name, region matched by region_id
		{"us-east-1", "volumev3", "cinder", "https://cinder.us-east-1.example.com/v3/abc", true},
		// not in catalog at all
		{"us-east-1", "dns", "designate", "", false},
	}

	for _, tc := range testCases {
		url, ok := SelectEndpoint(testCatalog, tc.Region, tc.ServiceType, tc.ServiceName)
		label := tc.ServiceName + " in " + tc.Region
		assert.DeepEqual(t, "ok for "+label, ok, tc.ExpectOK)
		assert.DeepEqual(t, "url for "+label, url, tc.ExpectURL)
	}
}

func TestSelectEndpointFirstMatchWins(t *testing.T) {
	entries := []tokens.CatalogEntry{
		{Name: "nova-legacy", Type: "compute", Endpoints: []tokens.Endpoint{
			{Interface: "public", Region: "us-west-2", URL: "https://legacy.example.com"},
		}},
		{Name: "nova", Type: "compute", Endpoints: []tokens.Endpoint{
			{Interface: "public", Region: "us-east-1", URL: "https://nova.example.com"},
		}},
	}

	// the first entry matches by type, so the second entry is never considered
	_, ok := SelectEndpoint(entries, "us-east-1", "compute", "nova")
	assert.DeepEqual(t, "ok", ok, false)
}

// respondTo makes the responses of `responder` refer back to their request,
// like those of a real transport. gophercloud's pager builds page URLs from
// resp.Request.
func respondTo(responder httpmock.Responder) httpmock.Responder {
	return func(req *http.Request) (*http.Response, error) {
		resp, err := responder(req)
		if resp != nil {
			resp.Request = req
		}
		return resp, err
	}
}

func registerCatalogResponder(t *testing.T, expectedToken string) {
	t.Helper()
	httpmock.RegisterResponder(http.MethodGet, testKeystoneURL+"/v3/auth/catalog",
		respondTo(func(req *http.Request) (*http.Response, error) {
			if req.Header.Get("X-Auth-Token") != expectedToken {
				return httpmock.NewStringResponse(http.StatusUnauthorized, `{"error":{"code":401}}`), nil
			}
			return httpmock.NewJsonResponse(http.StatusOK, map[string]any{
				"catalog": testCatalog,
				"links":   map[string]any{"self": testKeystoneURL + "/v3/auth/catalog"},
			})
		}),
	)
}

func TestCatalogResolver(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()
	registerCatalogResponder(t, "project-token")

	now := time.Unix(1000, 0)
	cache := NewMemoryCatalogCache().OverrideTimeNow(func() time.Time { return now })
	r := &CatalogResolver{
		KeystoneURL: testKeystoneURL,
		Cache:       cache,
		CacheTTL:    5 * time.Minute,
	}
	ctx := context.Background()

	url, ok := r.Resolve(ctx, "us-east-1", "compute", "nova", "project-token")
	assert.DeepEqual(t, "ok", ok, true)
	assert.DeepEqual(t, "url", url, "https://nova.us-east-1.example.com/v2.1")
	assert.DeepEqual(t, "catalog fetches", httpmock.GetTotalCallCount(), 1)

	// second lookup within the TTL is served from the cache
	url, ok = r.Resolve(ctx, "eu-de-1", "compute", "nova", "project-token")
	assert.DeepEqual(t, "ok", ok, true)
	assert.DeepEqual(t, "url", url, "https://nova.eu-de-1.example.com/v2.1")
	assert.DeepEqual(t, "catalog fetches", httpmock.GetTotalCallCount(), 1)

	// after the TTL expires, the catalog is fetched again
	now = now.Add(5 * time.Minute)
	_, ok = r.Resolve(ctx, "us-east-1", "compute", "nova", "project-token")
	assert.DeepEqual(t, "ok", ok, true)
	assert.DeepEqual(t, "catalog fetches", httpmock.GetTotalCallCount(), 2)

	// region without matching endpoint
	_, ok = r.Resolve(ctx, "us-west-2", "compute", "nova", "project-token")
	assert.DeepEqual(t, "ok", ok, false)
}

func TestCatalogResolverBypassesCatalogForGlobalServices(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	r := &CatalogResolver{KeystoneURL: testKeystoneURL}
	ctx := context.Background()

	url, ok := r.Resolve(ctx, "us-east-1", "identity", "keystone", "whatever")
	assert.DeepEqual(t, "ok", ok, true)
	assert.DeepEqual(t, "url", url, testKeystoneURL)

	url, ok = r.Resolve(ctx, "global", "compute", "nova", "whatever")
	assert.DeepEqual(t, "ok", ok, true)
	assert.DeepEqual(t, "url", url, testKeystoneURL)

	assert.DeepEqual(t, "catalog fetches", httpmock.GetTotalCallCount(), 0)
}

func TestCatalogResolverFetchFailure(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()
	registerCatalogResponder(t, "project-token")

	cache := NewMemoryCatalogCache()
	r := &CatalogResolver{KeystoneURL: testKeystoneURL, Cache: cache, CacheTTL: time.Minute}

	_, ok := r.Resolve(context.Background(), "us-east-1", "compute", "nova", "expired-token")
	assert.DeepEqual(t, "ok", ok, false)
	// failures are not cached
	assert.DeepEqual(t, "cache size", cache.Len(), 0)
}
