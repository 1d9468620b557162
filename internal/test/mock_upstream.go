// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package test

import (
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/sapcc/go-bits/httpapi"
	"github.com/sapcc/go-bits/respondwith"
)

// UpstreamDouble acts as a test double for an arbitrary OpenStack API (e.g.
// Nova). It answers most requests with a description of the request it saw,
// so that tests can check what the proxy forwarded.
//
// A few paths produce special responses:
//
//   - ".../plain-text" answers with a text/plain body.
//   - ".../broken-json" answers with an invalid body declared as JSON.
//   - ".../no-content" answers with 204.
//   - ".../conflict" answers with a 409 error document.
//   - ".../markup" answers with a JSON document containing HTML characters.
type UpstreamDouble struct{}

// AddTo implements the httpapi.API interface.
func (u UpstreamDouble) AddTo(r *mux.Router) {
	r.PathPrefix("/").HandlerFunc(u.handleRequest)
}

// UpstreamEcho is the JSON document that UpstreamDouble answers with.
type UpstreamEcho struct {
	Method      string `json:"method"`
	Host        string `json:"host"`
	Path        string `json:"path"`
	RawPath     string `json:"raw_path,omitempty"`
	Query       string `json:"query,omitempty"`
	Token       string `json:"token"`
	ContentType string `json:"content_type,omitempty"`
	APIVersion  string `json:"api_version,omitempty"`
	Body        string `json:"body,omitempty"`
}

func (u UpstreamDouble) handleRequest(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/*")

	switch {
	case strings.HasSuffix(r.URL.Path, "/plain-text"):
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("this is <not> JSON"))
		return
	case strings.HasSuffix(r.URL.Path, "/broken-json"):
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"servers": [`))
		return
	case strings.HasSuffix(r.URL.Path, "/no-content"):
		w.WriteHeader(http.StatusNoContent)
		return
	case strings.HasSuffix(r.URL.Path, "/conflict"):
		respondwith.JSON(w, http.StatusConflict, map[string]any{
			"conflictingRequest": map[string]any{
				"code":    http.StatusConflict,
				"message": "Cannot 'delete' instance while it is in task_state rebuilding",
			},
		})
		return
	case strings.HasSuffix(r.URL.Path, "/markup"):
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"description": "<b>bold</b> & \u003ci\u003e"}`))
		return
	}

	// the raw path is only reported if it differs from the decoded one
	var rawPath string
	if r.URL.EscapedPath() != r.URL.Path {
		rawPath = r.URL.EscapedPath()
	}

	body, err := io.ReadAll(r.Body)
	if respondwith.ErrorText(w, err) {
		return
	}
	respondwith.JSON(w, http.StatusOK, UpstreamEcho{
		Method:      r.Method,
		Host:        r.URL.Host,
		Path:        r.URL.Path,
		RawPath:     rawPath,
		Query:       r.URL.RawQuery,
		Token:       r.Header.Get("X-Auth-Token"),
		ContentType: r.Header.Get("Content-Type"),
		APIVersion:  r.Header.Get("OpenStack-API-Version"),
		Body:        string(body),
	})
}
