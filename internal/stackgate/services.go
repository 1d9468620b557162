// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package stackgate

import (
	"maps"
	"regexp"
	"slices"
	"strings"
)

// GlobalRegion is the region name that callers use for services that are not
// bound to any region.
const GlobalRegion = "global"

// IdentityServiceName is the short name of Keystone. It is always reached
// through the configured KEYSTONE_API, never through the catalog.
const IdentityServiceName = "keystone"

// serviceTypes maps the short service names used in proxy URLs to the
// service types found in the Keystone catalog.
var serviceTypes = map[string]string{
	"keystone":  "identity",
	"nova":      "compute",
	"neutron":   "network",
	"cinder":    "volumev3",
	"glance":    "image",
	"heat":      "orchestration",
	"magnum":    "container-infra",
	"designate": "dns",
	"manila":    "sharev2",
	"swift":     "object-store",
}

// ServiceTypeFor returns the catalog service type for the given short name.
func ServiceTypeFor(serviceName string) (serviceType string, ok bool) {
	serviceType, ok = serviceTypes[serviceName]
	return serviceType, ok
}

// ServiceNames returns all known short names in sorted order.
func ServiceNames() []string {
	return slices.Sorted(maps.Keys(serviceTypes))
}

// ServiceNamePattern returns a regex (without capture groups) that matches
// exactly the known short names. This is used in mux route templates.
func ServiceNamePattern() string {
	names := ServiceNames()
	for idx, name := range names {
		names[idx] = regexp.QuoteMeta(name)
	}
	return "(?:" + strings.Join(names, "|") + ")"
}

// IsGlobal returns whether requests for this service/region pair bypass the
// catalog and go directly to KEYSTONE_API.
func IsGlobal(region, serviceName string) bool {
	return serviceName == IdentityServiceName || region == GlobalRegion
}
