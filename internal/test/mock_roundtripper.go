// SPDX-FileCopyrightText: 2020 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// RoundTripper is a http.RoundTripper that redirects some domains to
// http.Handler instances. Requests for all other domains fail, so that a test
// can never reach the real network by accident.
type RoundTripper struct {
	Handlers map[string]http.Handler

	mutex sync.Mutex
	calls map[string]int
}

// InstallRoundTripper sets up a RoundTripper instance as the default HTTP
// transport until the end of the current test.
func InstallRoundTripper(t *testing.T) *RoundTripper {
	t.Helper()
	rt := &RoundTripper{
		Handlers: make(map[string]http.Handler),
		calls:    make(map[string]int),
	}

	originalDefaultTransport := http.DefaultTransport
	http.DefaultTransport = rt
	// The cleanup is registered with the test, rather than just done at the end
	// of the caller, in order to work correctly even if the test does a
	// t.Fatal() or panic().
	t.Cleanup(func() {
		http.DefaultTransport = originalDefaultTransport
	})
	return rt
}

// CallCount returns how many requests were sent to the given host.
func (t *RoundTripper) CallCount(host string) int {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.calls[host]
}

// TotalCallCount returns how many requests were sent to any host.
func (t *RoundTripper) TotalCallCount() int {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	total := 0
	for _, count := range t.calls {
		total += count
	}
	return total
}

// RoundTrip implements the http.RoundTripper interface.
func (t *RoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	t.mutex.Lock()
	t.calls[req.URL.Host]++
	t.mutex.Unlock()

	h := t.Handlers[req.URL.Host]
	if h == nil {
		return nil, fmt.Errorf("no route to host %s", req.URL.Host)
	}

	// handlers expect a non-nil body, as on the server side
	if req.Body == nil {
		req.Body = http.NoBody
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	resp := w.Result()
	// like a real transport, link the response to its request (gophercloud's
	// pager relies on this to build page URLs)
	resp.Request = req

	// in practice, most HTTP handlers for GET/HEAD requests write into the
	// response body regardless of whether the method was GET or HEAD; strip the
	// response body from HEAD responses to align with net/http's actual behavior
	if req.Method == http.MethodHead {
		resp.Body = nil
	}

	return resp, nil
}
