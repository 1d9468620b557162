// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package apicmd

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

var (
	redisPoolConnectionsDesc = prometheus.NewDesc(
		"stackgate_redis_pool_connections",
		"Number of connections in the Redis connection pool, by state.",
		[]string{"state"}, nil,
	)
	redisPoolRequestsDesc = prometheus.NewDesc(
		"stackgate_redis_pool_requests",
		"Counts requests for a connection from the Redis connection pool, by outcome.",
		[]string{"outcome"}, nil,
	)
)

// redisPoolCollector reports the connection pool statistics of a Redis client.
type redisPoolCollector struct {
	client *redis.Client
}

func newRedisPoolCollector(client *redis.Client) prometheus.Collector {
	return redisPoolCollector{client}
}

// Describe implements the prometheus.Collector interface.
func (c redisPoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- redisPoolConnectionsDesc
	ch <- redisPoolRequestsDesc
}

// Collect implements the prometheus.Collector interface.
func (c redisPoolCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.client.PoolStats()
	ch <- prometheus.MustNewConstMetric(redisPoolConnectionsDesc, prometheus.GaugeValue, float64(stats.IdleConns), "idle")
	ch <- prometheus.MustNewConstMetric(redisPoolConnectionsDesc, prometheus.GaugeValue, float64(stats.TotalConns-stats.IdleConns), "in_use")
	ch <- prometheus.MustNewConstMetric(redisPoolRequestsDesc, prometheus.CounterValue, float64(stats.Hits), "hit")
	ch <- prometheus.MustNewConstMetric(redisPoolRequestsDesc, prometheus.CounterValue, float64(stats.Misses), "miss")
	ch <- prometheus.MustNewConstMetric(redisPoolRequestsDesc, prometheus.CounterValue, float64(stats.Timeouts), "timeout")
}
