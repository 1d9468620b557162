// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package stackgate

import (
	"net/http"

	"github.com/sapcc/go-api-declarations/bininfo"
	"github.com/sapcc/go-bits/httpext"
	"github.com/sapcc/go-bits/logg"
	"github.com/sapcc/go-bits/osext"
)

var wrap *httpext.WrappedTransport

// SetupHTTPClient wraps http.DefaultTransport, which is used for all requests
// to OpenStack services.
func SetupHTTPClient() {
	wrap = httpext.WrapTransport(&http.DefaultTransport)
	wrap.SetInsecureSkipVerify(osext.GetenvBool("STACKGATE_INSECURE")) // for debugging with mitmproxy etc. (DO NOT SET IN PRODUCTION)
	wrap.SetOverrideUserAgent(bininfo.Component(), bininfo.VersionOr("rolling"))
}

// SetTaskName identifies the current subcommand in logs and User-Agent headers.
func SetTaskName(taskName string) {
	bininfo.SetTaskName(taskName)
	if wrap != nil {
		wrap.SetOverrideUserAgent(bininfo.Component(), bininfo.VersionOr("rolling"))
	}
	logg.Info("starting %s %s", bininfo.Component(), bininfo.VersionOr("rolling"))
}
