// SPDX-FileCopyrightText: 2020 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package apicmd

import (
	"fmt"
	"maps"
	"net/http"
	"slices"

	"github.com/gorilla/mux"
	"github.com/sapcc/go-bits/httpapi"
	"github.com/sapcc/go-bits/httpext"
)

// headerReflector is an httpapi.API that implements the GET /debug/reflect-headers endpoint.
type headerReflector struct {
	Enabled bool // usually only on dev/QA systems
}

// AddTo implements the httpapi.API interface.
func (hr *headerReflector) AddTo(r *mux.Router) {
	if hr.Enabled {
		r.Methods("GET").Path("/debug/reflect-headers").HandlerFunc(reflectHeaders)
	}
}

// Shows what arrives from the reverse proxy in front of us, esp. whether the
// session cookie and X-Forwarded-For make it through.
func reflectHeaders(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/debug/reflect-headers")
	httpapi.SkipRequestLog(r)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "Requester IP: %s\n", httpext.GetRequesterIPFor(r))
	for _, headerName := range slices.Sorted(maps.Keys(r.Header)) {
		for _, val := range r.Header[headerName] {
			if headerName == "Cookie" || headerName == "X-Auth-Token" {
				val = "<redacted>"
			}
			fmt.Fprintf(w, "Request %s: %s\n", headerName, val)
		}
	}
}
