// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package test

import (
	"encoding/json"
	"io"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/sapcc/go-bits/httpapi"
	"github.com/sapcc/go-bits/respondwith"
)

const (
	// KeystoneHost is where the KeystoneDouble is reachable.
	KeystoneHost = "identity.example.com"
	// KeystoneURL is the value of KEYSTONE_API in tests.
	KeystoneURL = "https://" + KeystoneHost

	// UserName and Password are accepted by the KeystoneDouble.
	UserName   = "alice"
	Password   = "swordfish"
	UserID     = "uid-alice"
	DomainName = "Default"

	// UnscopedToken is issued by the KeystoneDouble for password logins.
	UnscopedToken = "unscoped-token-alice"

	// Region names that appear in the catalog of the KeystoneDouble.
	PrimaryRegion   = "us-east-1"
	SecondaryRegion = "eu-de-1"
	MissingRegion   = "us-west-2"
)

// ProjectToken returns the token that the KeystoneDouble issues for the given
// project.
func ProjectToken(projectID string) string {
	return "project-token-" + projectID
}

// ComputeHost returns the host where the Nova endpoint of the given region is
// located in the catalog of the KeystoneDouble.
func ComputeHost(region string) string {
	return "compute." + region + ".example.com"
}

// ComputeURL returns the Nova endpoint URL of the given region.
func ComputeURL(region string) string {
	return "https://" + ComputeHost(region) + "/v2.1"
}

// KeystoneDouble acts as a test double for the Keystone v3 API. It knows
// exactly one user (UserName/Password), who has access to the projects in
// ProjectIDs.
type KeystoneDouble struct {
	Clock      *Clock
	ProjectIDs []string

	mutex                sync.Mutex
	lastTokenRequestBody []byte
	catalogRequests      int
}

// NewKeystoneDouble creates a KeystoneDouble.
func NewKeystoneDouble(clock *Clock) *KeystoneDouble {
	return &KeystoneDouble{
		Clock:      clock,
		ProjectIDs: []string{"pid-demo", "pid-prod"},
	}
}

// LastTokenRequestBody returns the body of the last successful token request.
func (k *KeystoneDouble) LastTokenRequestBody() []byte {
	k.mutex.Lock()
	defer k.mutex.Unlock()
	return k.lastTokenRequestBody
}

// CatalogRequests returns how often the catalog was requested.
func (k *KeystoneDouble) CatalogRequests() int {
	k.mutex.Lock()
	defer k.mutex.Unlock()
	return k.catalogRequests
}

// AddTo implements the httpapi.API interface.
func (k *KeystoneDouble) AddTo(r *mux.Router) {
	r.Methods("POST").Path("/v3/auth/tokens").HandlerFunc(k.handlePostToken)
	r.Methods("GET").Path("/v3/auth/catalog").HandlerFunc(k.handleGetCatalog)
	r.Methods("GET").Path("/v3/auth/projects").HandlerFunc(k.handleGetProjects)
	r.Methods("GET").Path("/v3/regions").HandlerFunc(k.handleGetRegions)
}

// Returns the project ID that the token is scoped to, or "" for the unscoped
// token. ok is false for unknown tokens.
func (k *KeystoneDouble) checkToken(token string) (projectID string, ok bool) {
	if token == UnscopedToken {
		return "", true
	}
	for _, projectID := range k.ProjectIDs {
		if token == ProjectToken(projectID) {
			return projectID, true
		}
	}
	return "", false
}

func respondUnauthorized(w http.ResponseWriter) {
	respondwith.JSON(w, http.StatusUnauthorized, map[string]any{
		"error": map[string]any{
			"code":    http.StatusUnauthorized,
			"title":   "Unauthorized",
			"message": "The request you have made requires authentication.",
		},
	})
}

func (k *KeystoneDouble) handlePostToken(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/v3/auth/tokens")

	body, err := io.ReadAll(r.Body)
	if respondwith.ErrorText(w, err) {
		return
	}
	var req struct {
		Auth struct {
			Identity struct {
				Methods  []string `json:"methods"`
				Password struct {
					User struct {
						Name     string `json:"name"`
						Password string `json:"password"`
						Domain   struct {
							Name string `json:"name"`
						} `json:"domain"`
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
	err = json.Unmarshal(body, &req)
	if err != nil {
		http.Error(w, "malformed request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	identity := req.Auth.Identity
	var tokenID string
	switch {
	case slices.Contains(identity.Methods, "password"):
		user := identity.Password.User
		if user.Name != UserName || user.Password != Password || user.Domain.Name != DomainName {
			respondUnauthorized(w)
			return
		}
		tokenID = UnscopedToken
	case slices.Contains(identity.Methods, "token"):
		if identity.Token.ID != UnscopedToken {
			respondUnauthorized(w)
			return
		}
		tokenID = UnscopedToken
	default:
		respondUnauthorized(w)
		return
	}

	projectID := req.Auth.Scope.Project.ID
	if projectID != "" {
		if !slices.Contains(k.ProjectIDs, projectID) {
			respondUnauthorized(w)
			return
		}
		tokenID = ProjectToken(projectID)
	}

	k.mutex.Lock()
	k.lastTokenRequestBody = body
	k.mutex.Unlock()

	token := map[string]any{
		"methods":    identity.Methods,
		"expires_at": k.Clock.Now().Add(24 * time.Hour).Format(time.RFC3339),
		"issued_at":  k.Clock.Now().Format(time.RFC3339),
		"user": map[string]any{
			"id":     UserID,
			"name":   UserName,
			"domain": map[string]any{"id": "default", "name": DomainName},
		},
	}
	if projectID != "" {
		token["project"] = map[string]any{
			"id":     projectID,
			"name":   projectID,
			"domain": map[string]any{"id": "default", "name": DomainName},
		}
	}
	w.Header().Set("X-Subject-Token", tokenID)
	respondwith.JSON(w, http.StatusCreated, map[string]any{"token": token})
}

func (k *KeystoneDouble) handleGetCatalog(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/v3/auth/catalog")
	k.mutex.Lock()
	k.catalogRequests++
	k.mutex.Unlock()

	projectID, ok := k.checkToken(r.Header.Get("X-Auth-Token"))
	if !ok {
		respondUnauthorized(w)
		return
	}

	// unscoped tokens have an empty catalog
	catalog := []any{}
	if projectID != "" {
		catalog = []any{
			map[string]any{
				"id":   "svc-keystone",
				"name": "keystone",
				"type": "identity",
				"endpoints": []any{
					endpoint("public", PrimaryRegion, KeystoneURL),
				},
			},
			map[string]any{
				"id":   "svc-nova",
				"name": "nova",
				"type": "compute",
				"endpoints": []any{
					endpoint("admin", PrimaryRegion, "https://compute-admin."+PrimaryRegion+".example.com/v2.1"),
					endpoint("public", PrimaryRegion, ComputeURL(PrimaryRegion)),
					endpoint("public", SecondaryRegion, ComputeURL(SecondaryRegion)+"/"),
				},
			},
		}
	}
	respondwith.JSON(w, http.StatusOK, map[string]any{
		"catalog": catalog,
		"links":   map[string]any{"self": KeystoneURL + "/v3/auth/catalog"},
	})
}

func endpoint(iface, region, url string) map[string]any {
	return map[string]any{
		"id":        iface + "-" + region,
		"interface": iface,
		"region":    region,
		"region_id": region,
		"url":       url,
	}
}

func (k *KeystoneDouble) handleGetProjects(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/v3/auth/projects")
	_, ok := k.checkToken(r.Header.Get("X-Auth-Token"))
	if !ok {
		respondUnauthorized(w)
		return
	}

	projects := make([]any, 0, len(k.ProjectIDs))
	for _, projectID := range k.ProjectIDs {
		projects = append(projects, map[string]any{
			"id":        projectID,
			"name":      projectID,
			"domain_id": "default",
			"enabled":   true,
		})
	}
	respondwith.JSON(w, http.StatusOK, map[string]any{
		"projects": projects,
		"links":    map[string]any{"self": KeystoneURL + "/v3/auth/projects"},
	})
}

func (k *KeystoneDouble) handleGetRegions(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/v3/regions")
	_, ok := k.checkToken(r.Header.Get("X-Auth-Token"))
	if !ok {
		respondUnauthorized(w)
		return
	}

	respondwith.JSON(w, http.StatusOK, map[string]any{
		"regions": []any{
			map[string]any{"id": SecondaryRegion, "description": "Frankfurt"},
			map[string]any{"id": PrimaryRegion, "description": "Virginia"},
		},
		"links": map[string]any{"self": KeystoneURL + "/v3/regions"},
	})
}
