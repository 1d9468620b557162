// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sapcc/go-bits/jobloop"
	"github.com/sapcc/go-bits/logg"
)

// MemoryStore is a Store that lives in process memory. Sessions are lost on
// restart, and are not shared between replicas.
type MemoryStore struct {
	mutex    sync.RWMutex
	sessions map[string]Session
	timeNow  func() time.Time
}

// NewMemoryStore builds a new MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]Session),
		timeNow:  time.Now,
	}
}

// OverrideTimeNow replaces time.Now with a test double.
func (m *MemoryStore) OverrideTimeNow(timeNow func() time.Time) *MemoryStore {
	m.timeNow = timeNow
	return m
}

// Load implements the Store interface.
func (m *MemoryStore) Load(_ context.Context, id string) (*Session, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	s, exists := m.sessions[id]
	if !exists || !m.timeNow().Before(s.ExpiresAt) {
		return nil, nil
	}
	return &s, nil
}

// Save implements the Store interface.
func (m *MemoryStore) Save(_ context.Context, s Session) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[s.ID] = s
	return nil
}

// Delete implements the Store interface.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.sessions, id)
	return nil
}

// Len returns the number of stored sessions, including expired ones that
// were not swept yet.
func (m *MemoryStore) Len() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}

// SweepExpiredSessionsJob is a job. Each task removes all expired sessions
// from the store.
func (m *MemoryStore) SweepExpiredSessionsJob(registerer prometheus.Registerer) jobloop.Job {
	return (&jobloop.CronJob{
		Metadata: jobloop.JobMetadata{
			ReadableName: "sweep expired sessions",
			CounterOpts: prometheus.CounterOpts{
				Name: "stackgate_session_sweeps",
				Help: "Counter for sweeps of the in-memory session store.",
			},
		},
		Interval: 5 * time.Minute,
		Task:     m.sweepExpiredSessions,
	}).Setup(registerer)
}

func (m *MemoryStore) sweepExpiredSessions(_ context.Context, _ prometheus.Labels) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	now := m.timeNow()
	swept := 0
	for id, s := range m.sessions {
		if !now.Before(s.ExpiresAt) {
			delete(m.sessions, id)
			swept++
		}
	}
	if swept > 0 {
		logg.Debug("swept %d expired sessions", swept)
	}
	return nil
}
