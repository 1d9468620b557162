// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package proxyapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/sapcc/go-bits/logg"

	"github.com/sapcc/stackgate/internal/session"
	"github.com/sapcc/stackgate/internal/stackgate"
)

// UnscopedSentinel is the placeholder that the dashboard sends instead of a
// real token when it wants the request to carry the session's unscoped token.
// It is recognized in the X-Auth-Token header and, for Keystone token
// requests, in the JSON body at `auth.identity.token.id`.
//
// NOTE: A real token that happens to equal this string would be misread. This
// is an accepted risk since Keystone never issues tokens of this form.
const UnscopedSentinel = "__UNSCOPED__"

// InboundRequest is what a CredentialStrategy gets to look at.
type InboundRequest struct {
	Method      string
	ServiceName string
	Path        string
	HeaderToken string // value of the inbound X-Auth-Token header, if any
	Body        []byte
	Session     *session.Session // nil if the client has no session
}

// Credential is the outcome of credential resolution.
type Credential struct {
	Token string
	// UsesUnscopedToken is true if the client asked for the session's unscoped
	// token through the sentinel, either in the header or in the body.
	UsesUnscopedToken bool
	// Body is the request body to forward. It differs from the inbound body only
	// if the sentinel was substituted.
	Body []byte
}

// CredentialStrategy decides which token a proxied request carries. It
// returns a *stackgate.ProxyError if no usable token exists.
type CredentialStrategy func(req InboundRequest) (Credential, error)

// SessionProjectToken is the CredentialStrategy for the single-region route:
// only the session's project token is ever used.
func SessionProjectToken(req InboundRequest) (Credential, error) {
	if req.Session == nil || req.Session.ProjectToken == "" {
		return Credential{}, stackgate.ErrUnauthenticated.With("no project token in session")
	}
	return Credential{Token: req.Session.ProjectToken, Body: req.Body}, nil
}

// HeaderOrSession is the CredentialStrategy for the explicit-region route.
// It understands the unscoped-token sentinel, and otherwise prefers the
// X-Auth-Token header over the session's project token.
func HeaderOrSession(req InboundRequest) (Credential, error) {
	var unscopedToken string
	if req.Session != nil {
		unscopedToken = req.Session.UnscopedToken
	}

	useUnscoped := req.HeaderToken == UnscopedSentinel
	body := req.Body
	// the body check happens even when the header already asked for the
	// unscoped token, since the body must be rewritten in either case
	if isKeystoneTokenRequest(req) {
		doc, found := findSentinelInBody(req.Body)
		if found {
			useUnscoped = true
			if unscopedToken != "" {
				body = replaceSentinelInBody(doc, req.Body, unscopedToken)
			}
		}
	}

	if useUnscoped {
		if unscopedToken == "" {
			return Credential{}, stackgate.ErrUnauthenticated.With("no unscoped token in session")
		}
		return Credential{Token: unscopedToken, UsesUnscopedToken: true, Body: body}, nil
	}

	if req.HeaderToken != "" {
		return Credential{Token: req.HeaderToken, Body: body}, nil
	}
	if req.Session != nil && req.Session.ProjectToken != "" {
		return Credential{Token: req.Session.ProjectToken, Body: body}, nil
	}
	return Credential{}, stackgate.ErrUnauthenticated.With("missing X-Auth-Token header and no session token")
}

// isKeystoneTokenRequest matches requests that may carry the sentinel in their
// body, e.g. `POST /api/proxy/global/keystone/v3/auth/tokens` for rescoping.
func isKeystoneTokenRequest(req InboundRequest) bool {
	return targetsKeystoneTokens(req.ServiceName, req.Path) && methodHasBody(req.Method)
}

func targetsKeystoneTokens(serviceName, path string) bool {
	return serviceName == stackgate.IdentityServiceName && strings.Contains(path, "auth/tokens")
}

func methodHasBody(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	default:
		return false
	}
}

// tokenRequestBody is the subset of a Keystone token request that we look at.
// Everything else is kept as raw JSON so that it survives the rewrite.
type tokenRequestBody map[string]json.RawMessage

// findSentinelInBody checks whether `auth.identity.token.id` holds the
// sentinel. A body that is not valid JSON (or not shaped like a token
// request) is not an error: it is forwarded unchanged.
func findSentinelInBody(body []byte) (tokenRequestBody, bool) {
	var doc tokenRequestBody
	err := json.Unmarshal(body, &doc)
	if err != nil {
		logg.Debug("forwarding Keystone token request body unchanged since it is not a JSON object: %s", err.Error())
		return nil, false
	}

	var auth struct {
		Identity struct {
			Token struct {
				ID string `json:"id"`
			} `json:"token"`
		} `json:"identity"`
	}
	if len(doc["auth"]) == 0 {
		return doc, false
	}
	err = json.Unmarshal(doc["auth"], &auth)
	if err != nil {
		logg.Debug("forwarding Keystone token request body unchanged since it has an unexpected structure: %s", err.Error())
		return doc, false
	}
	return doc, auth.Identity.Token.ID == UnscopedSentinel
}

// replaceSentinelInBody returns a re-serialized body where
// `auth.identity.token.id` holds the given token. If the rewrite fails for any
// reason, the original body is returned.
func replaceSentinelInBody(doc tokenRequestBody, original []byte, token string) []byte {
	rewritten, err := rewriteNested(doc, []string{"auth", "identity", "token", "id"}, token)
	if err != nil {
		logg.Debug("forwarding Keystone token request body unchanged since the sentinel could not be replaced: %s", err.Error())
		return original
	}
	return rewritten
}

// Sets the value at the given path of nested JSON objects, and leaves all
// other fields as they were.
func rewriteNested(doc map[string]json.RawMessage, path []string, value string) ([]byte, error) {
	key := path[0]
	var (
		newValue []byte
		err      error
	)
	if len(path) == 1 {
		newValue, err = marshalVerbatim(value)
	} else {
		var child map[string]json.RawMessage
		err = json.Unmarshal(doc[key], &child)
		if err == nil {
			newValue, err = rewriteNested(child, path[1:], value)
		}
	}
	if err != nil {
		return nil, err
	}

	doc[key] = json.RawMessage(newValue)
	return marshalVerbatim(doc)
}

// Like json.Marshal, but without escaping HTML characters, since tokens and
// passwords must reach Keystone exactly as they were.
func marshalVerbatim(value any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	err := enc.Encode(value)
	if err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
