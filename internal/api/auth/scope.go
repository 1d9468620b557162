// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package authapi

import (
	"errors"
	"net/http"

	"github.com/sapcc/go-bits/httpapi"
	"github.com/sapcc/go-bits/respondwith"

	"github.com/sapcc/stackgate/internal/openstack"
	"github.com/sapcc/stackgate/internal/stackgate"
)

func (a *API) handlePutScope(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/api/auth/scope")
	s := a.requireSession(w, r)
	if s == nil {
		return
	}

	var req struct {
		ProjectID string `json:"project_id"`
		RegionID  string `json:"region_id"`
	}
	err := decodeRequestBody(r, &req)
	if stackgate.RespondWithError(w, err) {
		return
	}
	if req.ProjectID == "" && req.RegionID == "" {
		stackgate.RespondWithError(w, stackgate.ErrBadRequest.With("at least one of project_id and region_id is required"))
		return
	}

	// switching only the region keeps the project token, since project tokens
	// are valid in all regions
	if req.ProjectID != "" {
		if s.UnscopedToken == "" {
			stackgate.RespondWithError(w, stackgate.ErrUnauthenticated.With("no unscoped token in session"))
			return
		}
		token, err := a.identity.CreateProjectToken(r.Context(), s.UnscopedToken, req.ProjectID)
		if err != nil {
			if errors.Is(err, openstack.ErrInvalidCredentials) {
				err = stackgate.ErrUnauthenticated.With("cannot obtain token for project %q", req.ProjectID)
			} else {
				err = identityError(err, "obtain project token")
			}
			stackgate.RespondWithError(w, err)
			return
		}
		s.ProjectID = token.ProjectID
		s.ProjectToken = token.ID
	}
	if req.RegionID != "" {
		s.RegionID = req.RegionID
	}

	err = a.sessions.Update(r.Context(), *s)
	if stackgate.RespondWithError(w, err) {
		return
	}
	respondwith.JSON(w, http.StatusOK, renderSession(*s))
}

func (a *API) handleGetProjects(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/api/auth/projects")
	s := a.requireSession(w, r)
	if s == nil {
		return
	}

	projects, err := a.identity.ListAvailableProjects(r.Context(), s.UnscopedToken)
	if err != nil {
		stackgate.RespondWithError(w, identityError(err, "list projects"))
		return
	}

	result := make([]Project, 0, len(projects))
	for _, p := range projects {
		result = append(result, Project{
			ID:          p.ID,
			Name:        p.Name,
			DomainID:    p.DomainID,
			Description: p.Description,
			Enabled:     p.Enabled,
		})
	}
	respondwith.JSON(w, http.StatusOK, map[string]any{"projects": result})
}

func (a *API) handleGetRegions(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/api/auth/regions")
	s := a.requireSession(w, r)
	if s == nil {
		return
	}

	regions, err := a.identity.ListRegions(r.Context(), s.UnscopedToken)
	if err != nil {
		stackgate.RespondWithError(w, identityError(err, "list regions"))
		return
	}

	result := make([]Region, 0, len(regions))
	for _, region := range regions {
		result = append(result, Region{
			ID:             region.ID,
			Description:    region.Description,
			ParentRegionID: region.ParentRegionID,
		})
	}
	respondwith.JSON(w, http.StatusOK, map[string]any{"regions": result})
}
