// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ProxiedRequestsCounter is a prometheus.CounterVec.
	ProxiedRequestsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stackgate_proxied_requests",
			Help: "Counts requests handled by the OpenStack API proxy.",
		},
		[]string{"service", "status"},
	)
	// LoginAttemptsCounter is a prometheus.CounterVec.
	LoginAttemptsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stackgate_login_attempts",
			Help: "Counts password logins against Keystone.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(ProxiedRequestsCounter)
	prometheus.MustRegister(LoginAttemptsCounter)
}

// CountProxiedRequest increments ProxiedRequestsCounter.
func CountProxiedRequest(serviceName string, status int) {
	ProxiedRequestsCounter.With(prometheus.Labels{
		"service": serviceName,
		"status":  strconv.Itoa(status),
	}).Inc()
}
