// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package stackgate

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/sapcc/go-bits/respondwith"
)

// ProxyErrorCode is the closed set of error codes that can appear in type
// ProxyError.
type ProxyErrorCode string

// Possible values for ProxyErrorCode.
const (
	ErrBadRequest      ProxyErrorCode = "BAD_REQUEST"
	ErrUnauthenticated ProxyErrorCode = "UNAUTHENTICATED"
	ErrNotFound        ProxyErrorCode = "NOT_FOUND"
	ErrTooManyRequests ProxyErrorCode = "TOO_MANY_REQUESTS"
	ErrInternal        ProxyErrorCode = "INTERNAL_ERROR"
)

var proxyErrorStatusCodes = map[ProxyErrorCode]int{
	ErrBadRequest:      http.StatusBadRequest,
	ErrUnauthenticated: http.StatusUnauthorized,
	ErrNotFound:        http.StatusNotFound,
	ErrTooManyRequests: http.StatusTooManyRequests,
	ErrInternal:        http.StatusInternalServerError,
}

// With is a convenience function for constructing type ProxyError.
func (c ProxyErrorCode) With(msg string, args ...any) *ProxyError {
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	return &ProxyError{Code: c, Message: msg}
}

// ProxyError is an error that is reported to the client before (or instead
// of) contacting an upstream OpenStack service. Upstream errors are never
// wrapped in this type; their responses are relayed unchanged.
type ProxyError struct {
	Code       ProxyErrorCode
	Message    string
	RetryAfter time.Duration // only for ErrTooManyRequests
}

// Error implements the builtin/error interface.
func (e *ProxyError) Error() string {
	return e.Message
}

// StatusCode returns the HTTP status code for this error.
func (e *ProxyError) StatusCode() int {
	status, ok := proxyErrorStatusCodes[e.Code]
	if !ok {
		return http.StatusInternalServerError
	}
	return status
}

// WriteAsJSONTo renders this error as `{"error":"..."}`.
func (e *ProxyError) WriteAsJSONTo(w http.ResponseWriter) {
	if e.Code == ErrTooManyRequests && e.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.FormatInt(int64(e.RetryAfter.Seconds()+0.5), 10))
	}
	respondwith.JSON(w, e.StatusCode(), map[string]string{"error": e.Message})
}

// RespondWithError renders the given error as a JSON error response if it is
// non-nil. Errors that are not a *ProxyError are reported as 500. Idiomatic
// usage looks like this:
//
//	value, err := thisMayFail()
//	if stackgate.RespondWithError(w, err) {
//		return
//	}
func RespondWithError(w http.ResponseWriter, err error) bool {
	if err == nil {
		return false
	}
	var perr *ProxyError
	if !errors.As(err, &perr) {
		perr = ErrInternal.With(err.Error())
	}
	perr.WriteAsJSONTo(w)
	return true
}
