// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package stackgate

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sapcc/go-api-declarations/bininfo"
	"github.com/sapcc/go-bits/errext"
	"github.com/sapcc/go-bits/logg"
	"github.com/sapcc/go-bits/osext"
)

// Configuration contains all configuration values for the API server.
type Configuration struct {
	// KeystoneURL is the base URL of the identity service, without the
	// trailing "/v3". It is used for catalog queries and for all requests to
	// the "keystone" service.
	KeystoneURL url.URL

	ListenAddress      string
	SessionSecret      []byte
	SessionLifetime    time.Duration
	SecureCookies      bool
	CatalogCacheTTL    time.Duration
	CORSAllowedOrigins []string
	LoginRateLimit     int // per client IP and minute; only enforced with Redis
	RedisEnabled       bool
}

// KeystoneBaseURL returns the configured Keystone URL as a string without
// trailing slash.
func (cfg Configuration) KeystoneBaseURL() string {
	return strings.TrimSuffix(cfg.KeystoneURL.String(), "/")
}

// ParseConfiguration obtains a stackgate.Configuration instance from the
// corresponding environment variables. Aborts on error.
func ParseConfiguration() Configuration {
	logg.Debug("parsing configuration...")
	cfg, errs := ParseConfigurationFromEnvironment()
	errs.LogFatalIfError()
	return cfg
}

// ParseConfigurationFromEnvironment is like ParseConfiguration, but returns
// all problems instead of aborting.
func ParseConfigurationFromEnvironment() (Configuration, errext.ErrorSet) {
	var errs errext.ErrorSet
	cfg := Configuration{
		ListenAddress:  osext.GetenvOrDefault("STACKGATE_LISTEN_ADDRESS", ":8080"),
		SecureCookies:  !osext.GetenvBool("STACKGATE_INSECURE_COOKIES"),
		RedisEnabled:   osext.GetenvBool("STACKGATE_REDIS_ENABLE"),
		LoginRateLimit: 10,
	}

	keystoneURLStr, err := osext.NeedGetenv("KEYSTONE_API")
	if err != nil {
		errs.Add(err)
	} else {
		keystoneURL, err := ParseKeystoneURL(keystoneURLStr)
		if err != nil {
			errs.Addf("malformed KEYSTONE_API: %s", err.Error())
		} else {
			cfg.KeystoneURL = *keystoneURL
		}
	}

	secret, err := osext.NeedGetenv("STACKGATE_SESSION_SECRET")
	if err != nil {
		errs.Add(err)
	} else if len(secret) < 32 {
		errs.Addf("STACKGATE_SESSION_SECRET must be at least 32 bytes long")
	} else {
		cfg.SessionSecret = []byte(secret)
	}

	cfg.SessionLifetime = parseDuration(&errs, "STACKGATE_SESSION_LIFETIME", 8*time.Hour)
	cfg.CatalogCacheTTL = parseDuration(&errs, "STACKGATE_CATALOG_CACHE_TTL", 5*time.Minute)

	if limitStr := os.Getenv("STACKGATE_LOGIN_RATE_LIMIT"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit <= 0 {
			errs.Addf("invalid value for STACKGATE_LOGIN_RATE_LIMIT: %q", limitStr)
		} else {
			cfg.LoginRateLimit = limit
		}
	}

	for _, origin := range strings.Split(os.Getenv("STACKGATE_CORS_ALLOWED_ORIGINS"), ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, origin)
		}
	}

	return cfg, errs
}

// ParseKeystoneURL parses a Keystone URL as found in KEYSTONE_API or
// OS_AUTH_URL. A trailing "/v3" is removed.
func ParseKeystoneURL(in string) (*url.URL, error) {
	u, err := url.Parse(in)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("expected http or https URL, got %q", in)
	}
	// the catalog path "/v3/auth/catalog" is appended by us
	u.Path = strings.TrimSuffix(strings.TrimSuffix(u.Path, "/"), "/v3")
	return u, nil
}

func parseDuration(errs *errext.ErrorSet, key string, defaultValue time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		errs.Addf("invalid value for %s: %q", key, val)
		return defaultValue
	}
	return d
}

// GetRedisOptions returns a redis.Options by getting the required parameters
// from environment variables:
//
//	REDIS_PASSWORD, REDIS_HOSTNAME, REDIS_PORT, and REDIS_DB_NUM.
//
// The environment variable keys are prefixed with the provided prefix.
func GetRedisOptions(prefix string) (*redis.Options, error) {
	pass := os.Getenv(prefix + "_PASSWORD")
	host := osext.GetenvOrDefault(prefix+"_HOSTNAME", "localhost")
	port := osext.GetenvOrDefault(prefix+"_PORT", "6379")
	dbNum := osext.GetenvOrDefault(prefix+"_DB_NUM", "0")
	db, err := strconv.Atoi(dbNum)
	if err != nil {
		return nil, fmt.Errorf("invalid value for %s: %q", prefix+"_DB_NUM", dbNum)
	}

	return &redis.Options{
		Network:    "tcp",
		Password:   pass,
		Addr:       net.JoinHostPort(host, port),
		ClientName: bininfo.Component(),
		DB:         db,
	}, nil
}
