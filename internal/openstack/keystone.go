// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package openstack

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gophercloud/gophercloud/v2"
	"github.com/gophercloud/gophercloud/v2/openstack/identity/v3/projects"
	"github.com/gophercloud/gophercloud/v2/openstack/identity/v3/regions"
	"github.com/gophercloud/gophercloud/v2/openstack/identity/v3/tokens"
)

// ErrInvalidCredentials is returned by the IdentityClient when Keystone
// rejects the given credentials or token.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Builds a Keystone v3 client that acts on behalf of the owner of `token`.
// Each caller gets a fresh client, so tokens of different users never share
// any state.
func newIdentityServiceClient(keystoneURL, token string) *gophercloud.ServiceClient {
	provider := &gophercloud.ProviderClient{
		IdentityBase:     keystoneURL + "/",
		IdentityEndpoint: keystoneURL + "/v3/",
		// use http.DefaultTransport, esp. to pick up the STACKGATE_INSECURE flag
		HTTPClient: http.Client{},
		TokenID:    token,
	}
	return &gophercloud.ServiceClient{
		ProviderClient: provider,
		Endpoint:       keystoneURL + "/v3/",
		Type:           "identity",
	}
}

// IssuedToken describes a token that Keystone issued for us.
type IssuedToken struct {
	ID         string
	ExpiresAt  time.Time
	UserID     string
	UserName   string
	DomainName string
	ProjectID  string // empty for unscoped tokens
}

// IdentityClient performs the Keystone calls that the session layer needs.
type IdentityClient struct {
	// KeystoneURL is the base URL of Keystone without "/v3".
	KeystoneURL string
}

// CreateUnscopedToken authenticates with username and password. The
// resulting token is not scoped to any project.
func (c IdentityClient) CreateUnscopedToken(ctx context.Context, userName, password, domainName string) (IssuedToken, error) {
	authOpts := tokens.AuthOptions{
		Username:   userName,
		Password:   password,
		DomainName: domainName,
	}
	return c.createToken(ctx, &authOpts)
}

// CreateProjectToken exchanges an unscoped token for a token scoped to the
// given project.
func (c IdentityClient) CreateProjectToken(ctx context.Context, unscopedToken, projectID string) (IssuedToken, error) {
	authOpts := tokens.AuthOptions{
		TokenID: unscopedToken,
		Scope:   tokens.Scope{ProjectID: projectID},
	}
	return c.createToken(ctx, &authOpts)
}

func (c IdentityClient) createToken(ctx context.Context, authOpts *tokens.AuthOptions) (IssuedToken, error) {
	// use a client without token for tokens.Create(): the credentials are all
	// in the request body
	client := newIdentityServiceClient(c.KeystoneURL, "")
	result := tokens.Create(ctx, client, authOpts)
	if result.Err != nil {
		if gophercloud.ResponseCodeIs(result.Err, http.StatusUnauthorized) || gophercloud.ResponseCodeIs(result.Err, http.StatusNotFound) {
			return IssuedToken{}, ErrInvalidCredentials
		}
		return IssuedToken{}, fmt.Errorf("while creating token: %w", result.Err)
	}

	token, err := result.ExtractToken()
	if err != nil {
		return IssuedToken{}, fmt.Errorf("cannot extract token from Keystone response: %w", err)
	}
	user, err := result.ExtractUser()
	if err != nil {
		return IssuedToken{}, fmt.Errorf("cannot extract user from Keystone response: %w", err)
	}
	issued := IssuedToken{
		ID:         token.ID,
		ExpiresAt:  token.ExpiresAt,
		UserID:     user.ID,
		UserName:   user.Name,
		DomainName: user.Domain.Name,
	}

	if authOpts.Scope.ProjectID != "" {
		project, err := result.ExtractProject()
		if err != nil {
			return IssuedToken{}, fmt.Errorf("cannot extract project from Keystone response: %w", err)
		}
		if project == nil || project.ID == "" {
			return IssuedToken{}, fmt.Errorf("expected token scoped to project %s, but got unscoped token", authOpts.Scope.ProjectID)
		}
		issued.ProjectID = project.ID
	}
	return issued, nil
}

// ListAvailableProjects lists the projects that the owner of `token` can
// scope to.
func (c IdentityClient) ListAvailableProjects(ctx context.Context, token string) ([]projects.Project, error) {
	client := newIdentityServiceClient(c.KeystoneURL, token)
	page, err := projects.ListAvailable(client).AllPages(ctx)
	if err != nil {
		if gophercloud.ResponseCodeIs(err, http.StatusUnauthorized) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("while listing available projects: %w", err)
	}
	return projects.ExtractProjects(page)
}

// ListRegions lists all regions known to Keystone.
func (c IdentityClient) ListRegions(ctx context.Context, token string) ([]regions.Region, error) {
	client := newIdentityServiceClient(c.KeystoneURL, token)
	page, err := regions.List(client, regions.ListOpts{}).AllPages(ctx)
	if err != nil {
		if gophercloud.ResponseCodeIs(err, http.StatusUnauthorized) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("while listing regions: %w", err)
	}
	return regions.ExtractRegions(page)
}
