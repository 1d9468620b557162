// SPDX-FileCopyrightText: 2019 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package test

import (
	"time"

	"github.com/alicebob/miniredis/v2"
)

// Clock is a deterministic clock for unit tests. It starts at a fixed point
// in time and only advances when Clock.StepBy() is called. If MiniRedis is
// set, its clock is kept in sync, so that Redis TTLs and rate limits follow
// the same time.
type Clock struct {
	currentTime int64
	MiniRedis   *miniredis.Miniredis
}

// NewClock creates a Clock that starts at 2026-01-01 00:00:00 UTC.
func NewClock() *Clock {
	return &Clock{currentTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Unix()}
}

// Now reads the clock.
func (c *Clock) Now() time.Time {
	return time.Unix(c.currentTime, 0).UTC()
}

// StepBy advances the clock by the given duration.
func (c *Clock) StepBy(d time.Duration) {
	c.currentTime += int64(d / time.Second)
	if c.MiniRedis != nil {
		c.MiniRedis.SetTime(c.Now())
		c.MiniRedis.FastForward(d)
	}
}
