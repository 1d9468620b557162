// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package stackgate

import (
	"testing"
	"time"

	"github.com/sapcc/go-bits/assert"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestParseConfigurationDefaults(t *testing.T) {
	t.Setenv("KEYSTONE_API", "https://identity.example.com/v3/")
	t.Setenv("STACKGATE_SESSION_SECRET", testSecret)

	cfg, errs := ParseConfigurationFromEnvironment()
	if !errs.IsEmpty() {
		t.Fatal(errs.Join(", "))
	}

	assert.DeepEqual(t, "KeystoneBaseURL", cfg.KeystoneBaseURL(), "https://identity.example.com")
	assert.DeepEqual(t, "ListenAddress", cfg.ListenAddress, ":8080")
	assert.DeepEqual(t, "SessionLifetime", cfg.SessionLifetime, 8*time.Hour)
	assert.DeepEqual(t, "CatalogCacheTTL", cfg.CatalogCacheTTL, 5*time.Minute)
	assert.DeepEqual(t, "SecureCookies", cfg.SecureCookies, true)
	assert.DeepEqual(t, "LoginRateLimit", cfg.LoginRateLimit, 10)
	assert.DeepEqual(t, "CORSAllowedOrigins", cfg.CORSAllowedOrigins, []string(nil))
	assert.DeepEqual(t, "RedisEnabled", cfg.RedisEnabled, false)
}

func TestParseConfigurationOverrides(t *testing.T) {
	t.Setenv("KEYSTONE_API", "http://localhost:5000")
	t.Setenv("STACKGATE_SESSION_SECRET", testSecret)
	t.Setenv("STACKGATE_LISTEN_ADDRESS", "127.0.0.1:9000")
	t.Setenv("STACKGATE_SESSION_LIFETIME", "30m")
	t.Setenv("STACKGATE_CATALOG_CACHE_TTL", "10s")
	t.Setenv("STACKGATE_INSECURE_COOKIES", "true")
	t.Setenv("STACKGATE_LOGIN_RATE_LIMIT", "3")
	t.Setenv("STACKGATE_CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com,")
	t.Setenv("STACKGATE_REDIS_ENABLE", "1")

	cfg, errs := ParseConfigurationFromEnvironment()
	if !errs.IsEmpty() {
		t.Fatal(errs.Join(", "))
	}

	assert.DeepEqual(t, "KeystoneBaseURL", cfg.KeystoneBaseURL(), "http://localhost:5000")
	assert.DeepEqual(t, "ListenAddress", cfg.ListenAddress, "127.0.0.1:9000")
	assert.DeepEqual(t, "SessionLifetime", cfg.SessionLifetime, 30*time.Minute)
	assert.DeepEqual(t, "CatalogCacheTTL", cfg.CatalogCacheTTL, 10*time.Second)
	assert.DeepEqual(t, "SecureCookies", cfg.SecureCookies, false)
	assert.DeepEqual(t, "LoginRateLimit", cfg.LoginRateLimit, 3)
	assert.DeepEqual(t, "CORSAllowedOrigins", cfg.CORSAllowedOrigins, []string{"https://a.example.com", "https://b.example.com"})
	assert.DeepEqual(t, "RedisEnabled", cfg.RedisEnabled, true)
}

func TestParseConfigurationErrors(t *testing.T) {
	t.Setenv("KEYSTONE_API", "")
	t.Setenv("STACKGATE_SESSION_SECRET", "too-short")
	t.Setenv("STACKGATE_SESSION_LIFETIME", "forever")
	t.Setenv("STACKGATE_LOGIN_RATE_LIMIT", "-1")

	_, errs := ParseConfigurationFromEnvironment()
	assert.DeepEqual(t, "errors", errs.Join("\n"), `environment variable "KEYSTONE_API" is not set
STACKGATE_SESSION_SECRET must be at least 32 bytes long
invalid value for STACKGATE_SESSION_LIFETIME: "forever"
invalid value for STACKGATE_LOGIN_RATE_LIMIT: "-1"`)

	t.Setenv("KEYSTONE_API", "ftp://identity.example.com")
	t.Setenv("STACKGATE_SESSION_SECRET", testSecret)
	t.Setenv("STACKGATE_SESSION_LIFETIME", "")
	t.Setenv("STACKGATE_LOGIN_RATE_LIMIT", "")
	_, errs = ParseConfigurationFromEnvironment()
	assert.DeepEqual(t, "errors", errs.Join("\n"), `malformed KEYSTONE_API: expected http or https URL, got "ftp://identity.example.com"`)
}

func TestGetRedisOptions(t *testing.T) {
	t.Setenv("STACKGATE_REDIS_HOSTNAME", "redis.example.com")
	t.Setenv("STACKGATE_REDIS_DB_NUM", "2")

	opts, err := GetRedisOptions("STACKGATE_REDIS")
	if err != nil {
		t.Fatal(err.Error())
	}
	assert.DeepEqual(t, "Addr", opts.Addr, "redis.example.com:6379")
	assert.DeepEqual(t, "DB", opts.DB, 2)

	t.Setenv("STACKGATE_REDIS_DB_NUM", "two")
	_, err = GetRedisOptions("STACKGATE_REDIS")
	if err == nil {
		t.Error("expected error for malformed DB_NUM, got nil")
	}
}
