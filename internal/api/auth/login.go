// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package authapi

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sapcc/go-bits/httpapi"
	"github.com/sapcc/go-bits/logg"
	"github.com/sapcc/go-bits/respondwith"

	"github.com/sapcc/stackgate/internal/api"
	"github.com/sapcc/stackgate/internal/openstack"
	"github.com/sapcc/stackgate/internal/session"
	"github.com/sapcc/stackgate/internal/stackgate"
)

const defaultDomainName = "Default"

func countLogin(outcome string) {
	api.LoginAttemptsCounter.With(prometheus.Labels{"outcome": outcome}).Inc()
}

func (a *API) handlePostLogin(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/api/auth/login")

	// the rate limit comes first, so that a blocked client cannot use us to
	// probe passwords at Keystone
	err := api.CheckRateLimit(r, a.rateLimiter, api.LoginAction)
	if stackgate.RespondWithError(w, err) {
		countLogin("ratelimited")
		return
	}

	var req struct {
		UserName   string `json:"username"`
		Password   string `json:"password"`
		DomainName string `json:"domain"`
	}
	err = decodeRequestBody(r, &req)
	if stackgate.RespondWithError(w, err) {
		return
	}
	if req.UserName == "" || req.Password == "" {
		stackgate.RespondWithError(w, stackgate.ErrBadRequest.With("username and password are required"))
		return
	}
	if req.DomainName == "" {
		req.DomainName = defaultDomainName
	}

	token, err := a.identity.CreateUnscopedToken(r.Context(), req.UserName, req.Password, req.DomainName)
	if err != nil {
		if errors.Is(err, openstack.ErrInvalidCredentials) {
			countLogin("failure")
			stackgate.RespondWithError(w, stackgate.ErrUnauthenticated.With("invalid username or password"))
			return
		}
		logg.Error("while logging in %s@%s: %s", req.UserName, req.DomainName, err.Error())
		stackgate.RespondWithError(w, stackgate.ErrInternal.With("cannot authenticate with Keystone"))
		return
	}

	// a new login replaces any previous session
	previous, err := a.sessions.FromRequest(r)
	if err == nil && previous != nil {
		err = a.sessions.Store.Delete(r.Context(), previous.ID)
	}
	if err != nil {
		logg.Error("while discarding previous session during login: %s", err.Error())
	}

	s, err := a.sessions.Create(r.Context(), w, session.Session{
		UnscopedToken:  token.ID,
		UserID:         token.UserID,
		UserName:       token.UserName,
		DomainName:     token.DomainName,
		TokenExpiresAt: token.ExpiresAt,
	})
	if stackgate.RespondWithError(w, err) {
		return
	}
	countLogin("success")

	respondwith.JSON(w, http.StatusCreated, map[string]any{
		"user_id":    s.UserID,
		"user_name":  s.UserName,
		"expires_at": s.ExpiresAt.UTC(),
	})
}

func (a *API) handleGetSession(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/api/auth/session")
	s := a.requireSession(w, r)
	if s == nil {
		return
	}
	respondwith.JSON(w, http.StatusOK, renderSession(*s))
}

func (a *API) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/api/auth/session")
	s, err := a.sessions.FromRequest(r)
	if stackgate.RespondWithError(w, err) {
		return
	}

	// logging out without a session is not an error, the cookie gets cleared
	// either way
	err = a.sessions.Destroy(r.Context(), w, s)
	if stackgate.RespondWithError(w, err) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
