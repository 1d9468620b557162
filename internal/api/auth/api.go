// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

// Package authapi implements the session API at /api/auth/. This is where the
// dashboard logs in with username and password, chooses a project and region,
// and logs out again.
package authapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gophercloud/gophercloud/v2/openstack/identity/v3/projects"
	"github.com/gophercloud/gophercloud/v2/openstack/identity/v3/regions"
	"github.com/gorilla/mux"
	"github.com/sapcc/go-bits/logg"

	"github.com/sapcc/stackgate/internal/api"
	"github.com/sapcc/stackgate/internal/openstack"
	"github.com/sapcc/stackgate/internal/session"
	"github.com/sapcc/stackgate/internal/stackgate"
)

// IdentityService is the interface of openstack.IdentityClient that this
// package uses.
type IdentityService interface {
	CreateUnscopedToken(ctx context.Context, userName, password, domainName string) (openstack.IssuedToken, error)
	CreateProjectToken(ctx context.Context, unscopedToken, projectID string) (openstack.IssuedToken, error)
	ListAvailableProjects(ctx context.Context, token string) ([]projects.Project, error)
	ListRegions(ctx context.Context, token string) ([]regions.Region, error)
}

// API contains state variables used by the auth API.
type API struct {
	identity    IdentityService
	sessions    *session.Manager
	rateLimiter *api.RateLimiter // optional
}

// NewAPI constructs a new API instance. The rate limiter may be nil.
func NewAPI(identity IdentityService, sessions *session.Manager, rl *api.RateLimiter) *API {
	return &API{identity, sessions, rl}
}

// AddTo implements the httpapi.API interface.
func (a *API) AddTo(r *mux.Router) {
	r.Methods("POST").Path("/api/auth/login").HandlerFunc(a.handlePostLogin)
	r.Methods("GET").Path("/api/auth/session").HandlerFunc(a.handleGetSession)
	r.Methods("DELETE").Path("/api/auth/session").HandlerFunc(a.handleDeleteSession)
	r.Methods("PUT").Path("/api/auth/scope").HandlerFunc(a.handlePutScope)
	r.Methods("GET").Path("/api/auth/projects").HandlerFunc(a.handleGetProjects)
	r.Methods("GET").Path("/api/auth/regions").HandlerFunc(a.handleGetRegions)
}

// Loads the session, or renders a 401 response if there is none.
func (a *API) requireSession(w http.ResponseWriter, r *http.Request) *session.Session {
	s, err := a.sessions.FromRequest(r)
	if stackgate.RespondWithError(w, err) {
		return nil
	}
	if s == nil {
		stackgate.RespondWithError(w, stackgate.ErrUnauthenticated.With("no session"))
		return nil
	}
	return s
}

func decodeRequestBody(r *http.Request, target any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	err := decoder.Decode(target)
	if err != nil {
		return stackgate.ErrBadRequest.With("request body is not valid JSON: %s", err.Error())
	}
	return nil
}

// Maps errors from the IdentityService into the error that we show to the
// client. Rejected tokens become 401, everything else is logged and reported
// as 500.
func identityError(err error, action string) error {
	if errors.Is(err, openstack.ErrInvalidCredentials) {
		return stackgate.ErrUnauthenticated.With("session token was rejected by Keystone")
	}
	logg.Error("while trying to %s: %s", action, err.Error())
	return stackgate.ErrInternal.With("cannot %s", action)
}

////////////////////////////////////////////////////////////////////////////////
// data types

// Session appears in API responses.
type Session struct {
	UserID           string    `json:"user_id"`
	UserName         string    `json:"user_name"`
	DomainName       string    `json:"domain_name"`
	ProjectID        string    `json:"project_id,omitempty"`
	RegionID         string    `json:"region_id,omitempty"`
	HasUnscopedToken bool      `json:"has_unscoped_token"`
	HasProjectToken  bool      `json:"has_project_token"`
	ExpiresAt        time.Time `json:"expires_at"`
}

func renderSession(s session.Session) Session {
	return Session{
		UserID:           s.UserID,
		UserName:         s.UserName,
		DomainName:       s.DomainName,
		ProjectID:        s.ProjectID,
		RegionID:         s.RegionID,
		HasUnscopedToken: s.UnscopedToken != "",
		HasProjectToken:  s.ProjectToken != "",
		ExpiresAt:        s.ExpiresAt.UTC(),
	}
}

// Project appears in API responses.
type Project struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DomainID    string `json:"domain_id"`
	Description string `json:"description,omitempty"`
	Enabled     bool   `json:"enabled"`
}

// Region appears in API responses.
type Region struct {
	ID             string `json:"id"`
	Description    string `json:"description,omitempty"`
	ParentRegionID string `json:"parent_region_id,omitempty"`
}
