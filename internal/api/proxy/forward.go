// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package proxyapi

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/sapcc/go-bits/logg"

	"github.com/sapcc/stackgate/internal/stackgate"
)

// When forwarding, these headers from the client request will be passed on.
// All other client headers will be discarded.
var forwardedHeaders = []string{
	"OpenStack-API-Version",
	"X-OpenStack-Nova-API-Version",
	"X-OpenStack-Manila-API-Version",
}

// Redirects from upstream are relayed to the client like any other response.
var upstreamClient = &http.Client{
	CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	},
}

// outboundRequest describes a request to an upstream OpenStack API.
type outboundRequest struct {
	Method  string
	BaseURL string
	// Path is in escaped form, as received from the client. It is appended to
	// BaseURL without decoding.
	Path     string
	RawQuery string
	Token    string
	Body     []byte
	// Header is the header of the inbound request. Only forwardedHeaders are
	// taken from it.
	Header http.Header
	// RelaySubjectToken is set for Keystone token requests that were made with
	// the session's unscoped token. The browser needs to see the newly issued
	// token in that case.
	RelaySubjectToken bool
}

// URL returns `{base}/{path}{?query}`.
func (o outboundRequest) URL() string {
	target := strings.TrimSuffix(o.BaseURL, "/") + "/" + strings.TrimPrefix(o.Path, "/")
	if o.RawQuery != "" {
		target += "?" + o.RawQuery
	}
	return target
}

// forward executes the outbound request and relays the response to `w`. The
// upstream status is always relayed unchanged. The response body is always
// JSON: either the upstream JSON document, or the upstream text as a JSON
// string.
func forward(w http.ResponseWriter, r *http.Request, o outboundRequest) (upstreamStatus int) {
	var body io.Reader
	if methodHasBody(o.Method) {
		body = bytes.NewReader(o.Body)
	}
	req, err := http.NewRequestWithContext(r.Context(), o.Method, o.URL(), body)
	if err != nil {
		stackgate.RespondWithError(w, stackgate.ErrInternal.With("cannot build upstream request: %s", err.Error()))
		return 0
	}
	req.Header.Set("X-Auth-Token", o.Token)
	req.Header.Set("Content-Type", "application/json")
	for _, headerName := range forwardedHeaders {
		value := o.Header.Get(headerName)
		if value != "" {
			req.Header.Set(headerName, value)
		}
	}

	resp, err := upstreamClient.Do(req)
	if err != nil {
		logg.Error("during %s %s: %s", o.Method, req.URL.Redacted(), err.Error())
		stackgate.RespondWithError(w, stackgate.ErrInternal.With("upstream request failed: %s", err.Error()))
		return 0
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		logg.Error("while reading response for %s %s: %s", o.Method, req.URL.Redacted(), err.Error())
		stackgate.RespondWithError(w, stackgate.ErrInternal.With("cannot read upstream response: %s", err.Error()))
		return 0
	}

	if o.RelaySubjectToken {
		subjectToken := resp.Header.Get("X-Subject-Token")
		if subjectToken != "" {
			w.Header().Set("X-Subject-Token", subjectToken)
		}
	}

	switch {
	case resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusNotModified:
		// these cannot have a body
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.StatusCode)
	case isJSONContentType(resp.Header.Get("Content-Type")) && len(bytes.TrimSpace(respBody)) > 0:
		if !json.Valid(respBody) {
			logg.Error("%s %s returned invalid JSON with status %d", o.Method, req.URL.Redacted(), resp.StatusCode)
			w.Header().Del("X-Subject-Token")
			stackgate.RespondWithError(w, stackgate.ErrInternal.With("upstream returned invalid JSON"))
			return 0
		}
		writeJSON(w, resp.StatusCode, respBody)
	default:
		text, err := marshalVerbatim(string(respBody))
		if err != nil {
			stackgate.RespondWithError(w, stackgate.ErrInternal.With("cannot encode upstream response: %s", err.Error()))
			return 0
		}
		writeJSON(w, resp.StatusCode, text)
	}
	return resp.StatusCode
}

// writeJSON writes a JSON document as it is, except for insignificant
// whitespace. Unlike respondwith.JSON, this does not escape "<", ">" and "&".
func writeJSON(w http.ResponseWriter, status int, doc []byte) {
	var buf bytes.Buffer
	err := json.Compact(&buf, doc)
	if err != nil {
		stackgate.RespondWithError(w, stackgate.ErrInternal.With("upstream returned invalid JSON"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(buf.Bytes())
	if err != nil {
		logg.Error("while relaying response: %s", err.Error())
	}
}

func isJSONContentType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}
