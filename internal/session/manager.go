// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sapcc/go-bits/logg"

	"github.com/sapcc/stackgate/internal/stackgate"
)

// CookieName is the name of the cookie that references the session.
const CookieName = "stackgate_session"

const cookieIssuer = "stackgate"

// Manager binds a Store to the session cookie.
type Manager struct {
	Store         Store
	Secret        []byte
	Lifetime      time.Duration
	SecureCookies bool

	// non-pure functions that can be replaced by deterministic doubles for unit tests
	timeNow    func() time.Time
	generateID func() string
}

// NewManager builds a Manager from the given configuration.
func NewManager(cfg stackgate.Configuration, store Store) *Manager {
	return &Manager{
		Store:         store,
		Secret:        cfg.SessionSecret,
		Lifetime:      cfg.SessionLifetime,
		SecureCookies: cfg.SecureCookies,
		timeNow:       time.Now,
		generateID:    uuid.NewString,
	}
}

// OverrideTimeNow replaces time.Now with a test double.
func (m *Manager) OverrideTimeNow(timeNow func() time.Time) *Manager {
	m.timeNow = timeNow
	return m
}

// OverrideGenerateID replaces uuid.NewString with a test double.
func (m *Manager) OverrideGenerateID(generateID func() string) *Manager {
	m.generateID = generateID
	return m
}

// FromRequest returns the session referenced by the request's cookie, or
// (nil, nil) if there is no valid session. Missing, tampered and expired
// cookies all count as "no session".
func (m *Manager) FromRequest(r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return nil, nil //nolint:nilerr // no cookie means no session
	}
	id, err := m.parseCookieValue(cookie.Value)
	if err != nil {
		logg.Debug("ignoring invalid session cookie: %s", err.Error())
		return nil, nil
	}

	s, err := m.Store.Load(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if s == nil || s.IsExpired(m.timeNow()) {
		return nil, nil
	}
	return s, nil
}

// Create stores a new session and sets the cookie referencing it. The ID and
// ExpiresAt fields of `s` are filled in by this method.
func (m *Manager) Create(ctx context.Context, w http.ResponseWriter, s Session) (Session, error) {
	s.ID = m.generateID()
	s.ExpiresAt = m.timeNow().Add(m.Lifetime)
	// a session without a usable token is useless, so it ends with the token
	if !s.TokenExpiresAt.IsZero() && s.TokenExpiresAt.Before(s.ExpiresAt) {
		s.ExpiresAt = s.TokenExpiresAt
	}

	cookieValue, err := m.buildCookieValue(s.ID, s.ExpiresAt)
	if err != nil {
		return Session{}, err
	}
	err = m.Store.Save(ctx, s)
	if err != nil {
		return Session{}, err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    cookieValue,
		Path:     "/",
		Expires:  s.ExpiresAt,
		HttpOnly: true,
		Secure:   m.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	return s, nil
}

// Update persists changes to an existing session.
func (m *Manager) Update(ctx context.Context, s Session) error {
	return m.Store.Save(ctx, s)
}

// Destroy deletes the session (if any) and clears the cookie.
func (m *Manager) Destroy(ctx context.Context, w http.ResponseWriter, s *Session) error {
	if s != nil {
		err := m.Store.Delete(ctx, s.ID)
		if err != nil {
			return err
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (m *Manager) buildCookieValue(id string, expiresAt time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        id,
		Issuer:    cookieIssuer,
		IssuedAt:  jwt.NewNumericDate(m.timeNow()),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	})
	value, err := token.SignedString(m.Secret)
	if err != nil {
		return "", fmt.Errorf("cannot sign session cookie: %w", err)
	}
	return value, nil
}

func (m *Manager) parseCookieValue(value string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(value, &claims,
		func(*jwt.Token) (any, error) { return m.Secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(cookieIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.timeNow),
	)
	if err != nil {
		return "", err
	}
	if claims.ID == "" {
		return "", errors.New("session ID missing from cookie")
	}
	return claims.ID, nil
}
