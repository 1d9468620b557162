// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

// Package session holds the server-side state of a logged-in dashboard user:
// the Keystone tokens and the currently selected project and region.
//
// The browser only ever sees a signed cookie that references the session by
// ID. The tokens themselves never leave the server.
package session

import (
	"context"
	"time"
)

// Session is the server-side state of a logged-in user.
type Session struct {
	ID string `json:"id"`

	// UnscopedToken is issued on login. It can be exchanged for project tokens
	// and is used whenever a request asks for the unscoped token explicitly.
	UnscopedToken string `json:"unscoped_token"`
	// ProjectToken is scoped to ProjectID. Empty until a project was selected.
	ProjectToken string `json:"project_token,omitempty"`
	ProjectID    string `json:"project_id,omitempty"`
	RegionID     string `json:"region_id,omitempty"`

	UserID     string `json:"user_id"`
	UserName   string `json:"user_name"`
	DomainName string `json:"domain_name"`

	ExpiresAt      time.Time `json:"expires_at"`
	TokenExpiresAt time.Time `json:"token_expires_at"`
}

// IsExpired checks whether the session or its unscoped token has expired.
func (s Session) IsExpired(now time.Time) bool {
	if !now.Before(s.ExpiresAt) {
		return true
	}
	return !s.TokenExpiresAt.IsZero() && !now.Before(s.TokenExpiresAt)
}

// Store is the persistence layer for sessions.
type Store interface {
	// Load returns (nil, nil) if the session does not exist.
	Load(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s Session) error
	Delete(ctx context.Context, id string) error
}
