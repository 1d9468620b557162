// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package apicmd

import (
	"net/http"
	"testing"

	"github.com/sapcc/go-bits/assert"
	"github.com/sapcc/go-bits/httpapi"
)

func TestHeaderReflector(t *testing.T) {
	h := httpapi.Compose(&headerReflector{Enabled: true}, httpapi.WithGlobalMiddleware(reportClientIP), httpapi.WithoutLogging())
	assert.HTTPRequest{
		Method: "GET",
		Path:   "/debug/reflect-headers",
		Header: map[string]string{
			"X-Forwarded-For": "198.51.100.7",
			"X-Auth-Token":    "secret",
			"Accept":          "text/plain",
		},
		ExpectStatus: http.StatusOK,
		ExpectHeader: map[string]string{"X-Stackgate-Your-Ip": "198.51.100.7"},
		ExpectBody: assert.StringData("Requester IP: 198.51.100.7\n" +
			"Request Accept: text/plain\n" +
			"Request X-Auth-Token: <redacted>\n" +
			"Request X-Forwarded-For: 198.51.100.7\n"),
	}.Check(t, h)

	h = httpapi.Compose(&headerReflector{Enabled: false}, httpapi.WithoutLogging())
	assert.HTTPRequest{
		Method:       "GET",
		Path:         "/debug/reflect-headers",
		ExpectStatus: http.StatusNotFound,
	}.Check(t, h)
}

func TestGUIRedirect(t *testing.T) {
	h := httpapi.Compose(&guiRedirecter{"https://dashboard.example.com/"}, httpapi.WithoutLogging())
	assert.HTTPRequest{
		Method:       "GET",
		Path:         "/",
		Header:       map[string]string{"Accept": "text/html,application/xhtml+xml"},
		ExpectStatus: http.StatusFound,
		ExpectHeader: map[string]string{"Location": "https://dashboard.example.com/"},
	}.Check(t, h)
	assert.HTTPRequest{
		Method:       "GET",
		Path:         "/",
		Header:       map[string]string{"Accept": "application/json"},
		ExpectStatus: http.StatusNotFound,
	}.Check(t, h)

	h = httpapi.Compose(&guiRedirecter{""}, httpapi.WithoutLogging())
	assert.HTTPRequest{
		Method:       "GET",
		Path:         "/",
		Header:       map[string]string{"Accept": "text/html"},
		ExpectStatus: http.StatusNotFound,
	}.Check(t, h)
}
