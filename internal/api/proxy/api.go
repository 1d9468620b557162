// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

// Package proxyapi implements the authenticated OpenStack API proxy at
// /api/proxy/. It decides which token a request carries, finds the upstream
// endpoint in the Keystone catalog, and relays the request.
package proxyapi

import (
	"context"
	"io"
	"net/http"
	"net/url"

	"github.com/gorilla/mux"
	"github.com/sapcc/go-bits/httpapi"

	"github.com/sapcc/stackgate/internal/api"
	"github.com/sapcc/stackgate/internal/session"
	"github.com/sapcc/stackgate/internal/stackgate"
)

// EndpointResolver is the interface of openstack.CatalogResolver that this
// package uses.
type EndpointResolver interface {
	Resolve(ctx context.Context, region, serviceType, serviceName, token string) (baseURL string, ok bool)
}

// API contains state variables used by the proxy API.
type API struct {
	sessions *session.Manager
	resolver EndpointResolver
}

// NewAPI constructs a new API instance.
func NewAPI(sessions *session.Manager, resolver EndpointResolver) *API {
	return &API{sessions, resolver}
}

var proxiedMethods = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
}

// AddTo implements the httpapi.API interface.
func (a *API) AddTo(r *mux.Router) {
	// Routes are matched against the escaped path, so `{path}` is exactly what
	// the client sent. Object names may contain "%3F", "%2F" and the like, and
	// must reach the upstream in that form.
	r.UseEncodedPath()

	// The single-region route only matches known service names. Everything else
	// with at least two segments is taken as `{region}/{service}`.
	r.Methods(proxiedMethods...).
		Path("/api/proxy/{service:" + stackgate.ServiceNamePattern() + "}{path:(?:/.*)?}").
		HandlerFunc(a.handleSingleRegion)
	r.Methods(proxiedMethods...).
		Path("/api/proxy/{region:[^/]+}/{service:[^/]+}{path:(?:/.*)?}").
		HandlerFunc(a.handleExplicitRegion)
	r.Methods(proxiedMethods...).
		Path("/api/proxy/{service:[^/]+}").
		HandlerFunc(a.handleUnknownService)
}

func (a *API) handleSingleRegion(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/api/proxy/:service/*")
	s, err := a.sessions.FromRequest(r)
	if stackgate.RespondWithError(w, err) {
		return
	}

	var region string
	if s != nil {
		region = s.RegionID
	}
	a.proxy(w, r, s, region, unescapedVar(r, "service"), mux.Vars(r)["path"], SessionProjectToken)
}

func (a *API) handleExplicitRegion(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/api/proxy/:region/:service/*")
	s, err := a.sessions.FromRequest(r)
	if stackgate.RespondWithError(w, err) {
		return
	}

	a.proxy(w, r, s, unescapedVar(r, "region"), unescapedVar(r, "service"), mux.Vars(r)["path"], HeaderOrSession)
}

func (a *API) handleUnknownService(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/api/proxy/:service")
	stackgate.RespondWithError(w, stackgate.ErrBadRequest.With("unknown service: %q", unescapedVar(r, "service")))
}

// unescapedVar returns a route variable that names something (a region or a
// service). Route variables are escaped since the router uses encoded paths.
func unescapedVar(r *http.Request, key string) string {
	value := mux.Vars(r)[key]
	unescaped, err := url.PathUnescape(value)
	if err != nil {
		return value
	}
	return unescaped
}

// proxy is shared by both route shapes. They only differ in where the region
// comes from and in the CredentialStrategy.
func (a *API) proxy(w http.ResponseWriter, r *http.Request, s *session.Session, region, serviceName, path string, strategy CredentialStrategy) {
	serviceType, ok := stackgate.ServiceTypeFor(serviceName)
	if !ok {
		stackgate.RespondWithError(w, stackgate.ErrBadRequest.With("unknown service: %q", serviceName))
		return
	}

	var body []byte
	if methodHasBody(r.Method) && r.Body != nil {
		var err error
		body, err = io.ReadAll(r.Body)
		if err != nil {
			stackgate.RespondWithError(w, stackgate.ErrBadRequest.With("cannot read request body: %s", err.Error()))
			return
		}
	}

	cred, err := strategy(InboundRequest{
		Method:      r.Method,
		ServiceName: serviceName,
		Path:        path,
		HeaderToken: r.Header.Get("X-Auth-Token"),
		Body:        body,
		Session:     s,
	})
	if stackgate.RespondWithError(w, err) {
		api.CountProxiedRequest(serviceName, http.StatusUnauthorized)
		return
	}

	baseURL, ok := a.resolver.Resolve(r.Context(), region, serviceType, serviceName, cred.Token)
	if !ok {
		stackgate.RespondWithError(w, stackgate.ErrNotFound.With("no public endpoint for service %q in region %q", serviceName, region))
		api.CountProxiedRequest(serviceName, http.StatusNotFound)
		return
	}

	status := forward(w, r, outboundRequest{
		Method:            r.Method,
		BaseURL:           baseURL,
		Path:              path,
		RawQuery:          r.URL.RawQuery,
		Token:             cred.Token,
		Body:              cred.Body,
		Header:            r.Header,
		RelaySubjectToken: cred.UsesUnscopedToken && targetsKeystoneTokens(serviceName, path),
	})
	if status == 0 {
		status = http.StatusInternalServerError
	}
	api.CountProxiedRequest(serviceName, status)
}
