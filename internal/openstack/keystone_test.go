// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package openstack

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/sapcc/go-bits/assert"
)

func registerTokenResponder(t *testing.T) {
	t.Helper()
	httpmock.RegisterResponder(http.MethodPost, testKeystoneURL+"/v3/auth/tokens",
		respondTo(func(req *http.Request) (*http.Response, error) {
			body, err := io.ReadAll(req.Body)
			if err != nil {
				return nil, err
			}
			var payload struct {
				Auth struct {
					Identity struct {
						Methods  []string `json:"methods"`
						Password struct {
							User struct {
								Name     string `json:"name"`
								Password string `json:"password"`
							} `json:"user"`
						} `json:"password"`
						Token struct {
							ID string `json:"id"`
						} `json:"token"`
					} `json:"identity"`
					Scope struct {
						Project struct {
							ID string `json:"id"`
						} `json:"project"`
					} `json:"scope"`
				} `json:"auth"`
			}
			err = json.Unmarshal(body, &payload)
			if err != nil {
				return httpmock.NewStringResponse(http.StatusBadRequest, err.Error()), nil
			}

			identity := payload.Auth.Identity
			token := map[string]any{
				"expires_at": "2026-10-16T20:00:00.000000Z",
				"user": map[string]any{
					"id":     "uid-alice",
					"name":   "alice",
					"domain": map[string]any{"id": "did-default", "name": "Default"},
				},
			}
			var tokenID string
			switch {
			case identity.Password.User.Name == "alice" && identity.Password.User.Password == "swordfish":
				tokenID = "unscoped-token"
			case identity.Token.ID == "unscoped-token" && payload.Auth.Scope.Project.ID == "pid-demo":
				tokenID = "project-token"
				token["project"] = map[string]any{"id": "pid-demo", "name": "demo"}
			default:
				return httpmock.NewStringResponse(http.StatusUnauthorized, `{"error":{"code":401,"title":"Unauthorized"}}`), nil
			}

			resp, err := httpmock.NewJsonResponse(http.StatusCreated, map[string]any{"token": token})
			if err != nil {
				return nil, err
			}
			resp.Header.Set("X-Subject-Token", tokenID)
			return resp, nil
		}),
	)
}

func TestCreateTokens(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()
	registerTokenResponder(t)

	c := IdentityClient{KeystoneURL: testKeystoneURL}
	ctx := context.Background()
	expiresAt := time.Date(2026, 10, 16, 20, 0, 0, 0, time.UTC)

	unscoped, err := c.CreateUnscopedToken(ctx, "alice", "swordfish", "Default")
	assert.DeepEqual(t, "error", err, nil)
	assert.DeepEqual(t, "unscoped token", unscoped, IssuedToken{
		ID:         "unscoped-token",
		ExpiresAt:  expiresAt,
		UserID:     "uid-alice",
		UserName:   "alice",
		DomainName: "Default",
	})

	scoped, err := c.CreateProjectToken(ctx, unscoped.ID, "pid-demo")
	assert.DeepEqual(t, "error", err, nil)
	assert.DeepEqual(t, "project token", scoped, IssuedToken{
		ID:         "project-token",
		ExpiresAt:  expiresAt,
		UserID:     "uid-alice",
		UserName:   "alice",
		DomainName: "Default",
		ProjectID:  "pid-demo",
	})
}

func TestCreateTokensWithInvalidCredentials(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()
	registerTokenResponder(t)

	c := IdentityClient{KeystoneURL: testKeystoneURL}
	ctx := context.Background()

	_, err := c.CreateUnscopedToken(ctx, "alice", "wrong", "Default")
	assert.DeepEqual(t, "wrong password", errors.Is(err, ErrInvalidCredentials), true)

	_, err = c.CreateProjectToken(ctx, "unscoped-token", "pid-other")
	assert.DeepEqual(t, "foreign project", errors.Is(err, ErrInvalidCredentials), true)
}

func TestListProjectsAndRegions(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	requireToken := func(payload map[string]any) httpmock.Responder {
		return respondTo(func(req *http.Request) (*http.Response, error) {
			if req.Header.Get("X-Auth-Token") != "unscoped-token" {
				return httpmock.NewStringResponse(http.StatusUnauthorized, `{}`), nil
			}
			return httpmock.NewJsonResponse(http.StatusOK, payload)
		})
	}
	httpmock.RegisterResponder(http.MethodGet, testKeystoneURL+"/v3/auth/projects", requireToken(map[string]any{
		"projects": []map[string]any{
			{"id": "pid-demo", "name": "demo", "domain_id": "did-default", "enabled": true},
			{"id": "pid-prod", "name": "prod", "domain_id": "did-default", "enabled": true},
		},
		"links": map[string]any{},
	}))
	httpmock.RegisterResponder(http.MethodGet, testKeystoneURL+"/v3/regions", requireToken(map[string]any{
		"regions": []map[string]any{
			{"id": "eu-de-1", "description": "Frankfurt"},
			{"id": "us-east-1", "description": "Virginia"},
		},
		"links": map[string]any{},
	}))

	c := IdentityClient{KeystoneURL: testKeystoneURL}
	ctx := context.Background()

	projects, err := c.ListAvailableProjects(ctx, "unscoped-token")
	assert.DeepEqual(t, "error", err, nil)
	assert.DeepEqual(t, "project count", len(projects), 2)
	assert.DeepEqual(t, "first project", projects[0].ID, "pid-demo")
	assert.DeepEqual(t, "second project", projects[1].Name, "prod")

	regions, err := c.ListRegions(ctx, "unscoped-token")
	assert.DeepEqual(t, "error", err, nil)
	assert.DeepEqual(t, "region count", len(regions), 2)
	assert.DeepEqual(t, "first region", regions[0].ID, "eu-de-1")
	assert.DeepEqual(t, "second region", regions[1].Description, "Virginia")

	_, err = c.ListAvailableProjects(ctx, "bogus")
	assert.DeepEqual(t, "projects with bogus token", errors.Is(err, ErrInvalidCredentials), true)
	_, err = c.ListRegions(ctx, "bogus")
	assert.DeepEqual(t, "regions with bogus token", errors.Is(err, ErrInvalidCredentials), true)
}
