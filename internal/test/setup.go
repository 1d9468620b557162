// SPDX-FileCopyrightText: 2018 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
	"github.com/sapcc/go-bits/httpapi"
	"github.com/sapcc/go-bits/logg"
	"github.com/sapcc/go-bits/must"
	"github.com/sapcc/go-bits/osext"

	"github.com/sapcc/stackgate/internal/api"
	authapi "github.com/sapcc/stackgate/internal/api/auth"
	proxyapi "github.com/sapcc/stackgate/internal/api/proxy"
	"github.com/sapcc/stackgate/internal/openstack"
	"github.com/sapcc/stackgate/internal/session"
	"github.com/sapcc/stackgate/internal/stackgate"
)

// SessionSecret is the STACKGATE_SESSION_SECRET in tests.
const SessionSecret = "unit-test-secret-that-is-long-enough"

type setupParams struct {
	WithRedis      bool
	LoginRateLimit int
}

// SetupOption is an option that can be given to NewSetup().
type SetupOption func(*setupParams)

// WithRedis is a SetupOption that backs sessions and the catalog cache with a
// miniredis instance instead of process memory.
func WithRedis() SetupOption {
	return func(params *setupParams) {
		params.WithRedis = true
	}
}

// WithLoginRateLimit is a SetupOption that enables the login rate limit.
// This implies WithRedis.
func WithLoginRateLimit(perMinute int) SetupOption {
	return func(params *setupParams) {
		params.WithRedis = true
		params.LoginRateLimit = perMinute
	}
}

// Setup contains all the pieces that are needed for most tests.
type Setup struct {
	Config       stackgate.Configuration
	Clock        *Clock
	RoundTripper *RoundTripper
	Keystone     *KeystoneDouble
	Sessions     *session.Manager
	Handler      http.Handler
}

// NewSetup prepares most or all pieces of stackgate for a test. All outbound
// HTTP traffic goes to the KeystoneDouble and to UpstreamDouble instances
// for the compute endpoints in the catalog.
func NewSetup(t *testing.T, opts ...SetupOption) Setup {
	t.Helper()
	logg.ShowDebug = osext.GetenvBool("STACKGATE_DEBUG")
	var params setupParams
	for _, option := range opts {
		option(&params)
	}

	s := Setup{
		Clock:        NewClock(),
		RoundTripper: InstallRoundTripper(t),
	}
	s.Config = stackgate.Configuration{
		KeystoneURL:     *must.ReturnT(url.Parse(KeystoneURL))(t),
		SessionSecret:   []byte(SessionSecret),
		SessionLifetime: 8 * time.Hour,
		SecureCookies:   true,
		CatalogCacheTTL: 5 * time.Minute,
		LoginRateLimit:  params.LoginRateLimit,
		RedisEnabled:    params.WithRedis,
	}

	s.Keystone = NewKeystoneDouble(s.Clock)
	s.RoundTripper.Handlers[KeystoneHost] = httpapi.Compose(s.Keystone, httpapi.WithoutLogging())
	for _, region := range []string{PrimaryRegion, SecondaryRegion} {
		s.RoundTripper.Handlers[ComputeHost(region)] = httpapi.Compose(UpstreamDouble{}, httpapi.WithoutLogging())
	}

	var (
		store       session.Store
		cache       openstack.CatalogCache
		rateLimiter *api.RateLimiter
	)
	if params.WithRedis {
		mr := miniredis.RunT(t)
		mr.SetTime(s.Clock.Now())
		s.Clock.MiniRedis = mr
		rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { rc.Close() })

		store = session.NewRedisStore(rc).OverrideTimeNow(s.Clock.Now)
		cache = openstack.RedisCatalogCache{Client: rc}
		if params.LoginRateLimit > 0 {
			rateLimiter = &api.RateLimiter{
				Limiter: redis_rate.NewLimiter(rc),
				Limits: map[api.RateLimitedAction]redis_rate.Limit{
					api.LoginAction: redis_rate.PerMinute(params.LoginRateLimit),
				},
			}
		}
	} else {
		store = session.NewMemoryStore().OverrideTimeNow(s.Clock.Now)
		cache = openstack.NewMemoryCatalogCache().OverrideTimeNow(s.Clock.Now)
	}

	s.Sessions = session.NewManager(s.Config, store).OverrideTimeNow(s.Clock.Now)
	identity := openstack.IdentityClient{KeystoneURL: s.Config.KeystoneBaseURL()}
	resolver := openstack.NewCatalogResolver(s.Config, cache)

	s.Handler = httpapi.Compose(
		proxyapi.NewAPI(s.Sessions, resolver),
		authapi.NewAPI(identity, s.Sessions, rateLimiter),
		httpapi.WithoutLogging(),
	)
	return s
}

// NewSession stores a session with the given contents and returns the
// "Cookie" header that refers to it. Missing token expiry and user
// information are filled in.
func (s Setup) NewSession(t *testing.T, contents session.Session) map[string]string {
	t.Helper()
	if contents.UserID == "" {
		contents.UserID = UserID
		contents.UserName = UserName
		contents.DomainName = DomainName
	}
	if contents.TokenExpiresAt.IsZero() {
		contents.TokenExpiresAt = s.Clock.Now().Add(24 * time.Hour)
	}

	w := httptest.NewRecorder()
	_, err := s.Sessions.Create(context.Background(), w, contents)
	must.SucceedT(t, err)
	return CookieHeader(t, w.Result())
}

// CookieHeader extracts the session cookie from a response and returns it as
// a "Cookie" request header.
func CookieHeader(t *testing.T, resp *http.Response) map[string]string {
	t.Helper()
	for _, cookie := range resp.Cookies() {
		if cookie.Name == session.CookieName {
			return map[string]string{"Cookie": cookie.Name + "=" + cookie.Value}
		}
	}
	t.Fatal("response did not set the session cookie")
	return nil
}

// LoggedInSession returns the "Cookie" header for a session with both an
// unscoped token and a project token, in the given region.
func (s Setup) LoggedInSession(t *testing.T, region string) map[string]string {
	t.Helper()
	return s.NewSession(t, session.Session{
		UnscopedToken: UnscopedToken,
		ProjectToken:  ProjectToken("pid-demo"),
		ProjectID:     "pid-demo",
		RegionID:      region,
	})
}
