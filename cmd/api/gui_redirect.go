// SPDX-FileCopyrightText: 2020 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package apicmd

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/sapcc/go-bits/httpapi"
)

// guiRedirecter is an httpapi.API that sends browsers which land on the API
// root over to the dashboard.
type guiRedirecter struct {
	urlStr string
}

// AddTo implements the httpapi.API interface.
func (g *guiRedirecter) AddTo(r *mux.Router) {
	// check if this feature is enabled
	if g.urlStr == "" {
		return
	}

	r.Methods("GET").Path("/").HandlerFunc(g.tryRedirectToGUI)
}

func (g *guiRedirecter) tryRedirectToGUI(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/")

	// only attempt to redirect if it's a web browser doing the request
	if !strings.Contains(r.Header.Get("Accept"), "text/html") {
		http.Error(w, "404 page not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Location", g.urlStr)
	w.WriteHeader(http.StatusFound)
}
