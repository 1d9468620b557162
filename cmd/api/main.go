// SPDX-FileCopyrightText: 2018 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package apicmd

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/sapcc/go-bits/httpapi"
	"github.com/sapcc/go-bits/httpapi/pprofapi"
	"github.com/sapcc/go-bits/httpext"
	"github.com/sapcc/go-bits/logg"
	"github.com/sapcc/go-bits/must"
	"github.com/spf13/cobra"

	"github.com/sapcc/stackgate/internal/api"
	authapi "github.com/sapcc/stackgate/internal/api/auth"
	proxyapi "github.com/sapcc/stackgate/internal/api/proxy"
	"github.com/sapcc/stackgate/internal/openstack"
	"github.com/sapcc/stackgate/internal/session"
	"github.com/sapcc/stackgate/internal/stackgate"
)

// AddCommandTo mounts this command into the command hierarchy.
func AddCommandTo(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "api",
		Short: "Run the stackgate API server.",
		Long:  "Run the stackgate API server. Configuration is read from environment variables as described in README.md.",
		Args:  cobra.NoArgs,
		Run:   run,
	}
	parent.AddCommand(cmd)
}

func run(cmd *cobra.Command, _ []string) {
	stackgate.SetTaskName("api")

	cfg := stackgate.ParseConfiguration()
	ctx := httpext.ContextWithSIGINT(cmd.Context(), 10*time.Second)

	rc := must.Return(initRedis(cfg))

	// sessions and the catalog cache live in Redis if we have it, otherwise in
	// this process
	var (
		store       session.Store
		cache       openstack.CatalogCache
		rateLimiter *api.RateLimiter
	)
	if rc == nil {
		memoryStore := session.NewMemoryStore()
		go memoryStore.SweepExpiredSessionsJob(prometheus.DefaultRegisterer).Run(ctx)
		store = memoryStore
		cache = openstack.NewMemoryCatalogCache()
	} else {
		store = session.NewRedisStore(rc)
		cache = openstack.RedisCatalogCache{Client: rc}
		rateLimiter = &api.RateLimiter{
			Limiter: redis_rate.NewLimiter(rc),
			Limits: map[api.RateLimitedAction]redis_rate.Limit{
				api.LoginAction: redis_rate.PerMinute(cfg.LoginRateLimit),
			},
		}
	}

	sessions := session.NewManager(cfg, store)
	identity := openstack.IdentityClient{KeystoneURL: cfg.KeystoneBaseURL()}
	resolver := openstack.NewCatalogResolver(cfg, cache)

	// wire up HTTP handlers
	apis := []httpapi.API{
		proxyapi.NewAPI(sessions, resolver),
		authapi.NewAPI(identity, sessions, rateLimiter),
		&headerReflector{logg.ShowDebug}, // the header reflection endpoint is only enabled where debugging is enabled (i.e. usually in dev/QA only)
		httpapi.HealthCheckAPI{
			SkipRequestLog: true,
			Check: func() error {
				if rc == nil {
					return nil
				}
				return rc.Ping(ctx).Err()
			},
		},
		httpapi.WithGlobalMiddleware(reportClientIP),
		pprofapi.API{IsAuthorized: pprofapi.IsRequestFromLocalhost},
		// This needs to be at the end because it is the fallback match for all
		// paths that are not otherwise defined.
		&guiRedirecter{os.Getenv("STACKGATE_GUI_URL")},
	}
	if len(cfg.CORSAllowedOrigins) > 0 {
		// the dashboard sends the session cookie along, so origins must be
		// listed explicitly
		corsMiddleware := cors.New(cors.Options{
			AllowedOrigins:   cfg.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
			AllowedHeaders:   []string{"Content-Type", "User-Agent", "X-Auth-Token", "OpenStack-API-Version", "X-OpenStack-Nova-API-Version", "X-OpenStack-Manila-API-Version"},
			ExposedHeaders:   []string{"X-Subject-Token"},
			AllowCredentials: true,
		})
		apis = append(apis, httpapi.WithGlobalMiddleware(corsMiddleware.Handler))
	}
	handler := httpapi.Compose(apis...)

	mux := http.NewServeMux()
	mux.Handle("/", handler)
	mux.Handle("/metrics", promhttp.Handler())

	// start HTTP server
	logg.Info("listening on %s, forwarding to Keystone at %s", cfg.ListenAddress, cfg.KeystoneBaseURL())
	must.Succeed(httpext.ListenAndServeContext(ctx, cfg.ListenAddress, mux))
}

// Note that, since Redis is optional, this may return (nil, nil).
func initRedis(cfg stackgate.Configuration) (*redis.Client, error) {
	if !cfg.RedisEnabled {
		return nil, nil
	}
	logg.Debug("initializing Redis connection...")

	opts, err := stackgate.GetRedisOptions("STACKGATE_REDIS")
	if err != nil {
		return nil, err
	}
	rc := redis.NewClient(opts)
	prometheus.MustRegister(newRedisPoolCollector(rc))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err = rc.Ping(ctx).Err()
	if err != nil {
		return nil, err
	}
	return rc, nil
}

func reportClientIP(inner http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// This middleware adds the X-Stackgate-Your-Ip header to all responses.
		// Operators use it to check if X-Forwarded-For is transported correctly
		// through reverse proxies, since the login rate limit depends on it.
		w.Header().Set("X-Stackgate-Your-Ip", httpext.GetRequesterIPFor(r))
		inner.ServeHTTP(w, r)
	})
}
