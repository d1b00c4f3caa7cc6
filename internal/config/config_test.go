package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeConfig places a config file where Load expects it and moves the
// working directory there for the duration of the test.
func writeConfig(t *testing.T, env, content string) {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "config"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config", env+".yaml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(cwd) })
}

// TestLoad_Defaults verifies that an empty file yields the documented
// defaults.
func TestLoad_Defaults(t *testing.T) {
	writeConfig(t, "dev", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ServerPort != "8080" {
		t.Errorf("ServerPort = %q, want 8080", cfg.ServerPort)
	}
	if cfg.RequestTimeout != 5*time.Second {
		t.Errorf("RequestTimeout = %v, want 5s", cfg.RequestTimeout)
	}
	if !cfg.CacheEnabled || cfg.CacheBackend != "in_memory" || cfg.CacheTTL != 5*time.Minute {
		t.Errorf("cache defaults = (%v, %q, %v)", cfg.CacheEnabled, cfg.CacheBackend, cfg.CacheTTL)
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 30s", cfg.ShutdownTimeout)
	}
	if cfg.ArticlesRole != "" || cfg.ArticlesUnprotected || len(cfg.ArticlesActions) != 0 {
		t.Errorf("articles defaults = (%q, %v, %v)", cfg.ArticlesRole, cfg.ArticlesUnprotected, cfg.ArticlesActions)
	}
}

// TestLoad_FileValues verifies that file settings land in the config.
func TestLoad_FileValues(t *testing.T) {
	writeConfig(t, "dev", `
server:
  port: "9090"
request:
  timeout: 2s
reliability:
  rate_limit_rps: 10
  rate_limit_burst: 20
cache:
  backend: memcached
  ttl: 1m
  memcached:
    addrs: "mc1:11211,mc2:11211"
    timeout: 250ms
    max_idle_conns: 8
articles:
  role: admin
  unprotected: true
  actions: [index, show]
`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ServerPort != "9090" {
		t.Errorf("ServerPort = %q, want 9090", cfg.ServerPort)
	}
	if cfg.RequestTimeout != 2*time.Second {
		t.Errorf("RequestTimeout = %v, want 2s", cfg.RequestTimeout)
	}
	if cfg.RateLimitRPS != 10 || cfg.RateLimitBurst != 20 {
		t.Errorf("rate limit = (%d, %d), want (10, 20)", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
	if cfg.CacheBackend != "memcached" || cfg.CacheTTL != time.Minute {
		t.Errorf("cache = (%q, %v)", cfg.CacheBackend, cfg.CacheTTL)
	}
	if cfg.MemcachedAddrs != "mc1:11211,mc2:11211" || cfg.MemcachedTimeout != 250*time.Millisecond || cfg.MemcachedMaxIdleConns != 8 {
		t.Errorf("memcached = (%q, %v, %d)", cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
	}
	if cfg.ArticlesRole != "admin" || !cfg.ArticlesUnprotected {
		t.Errorf("articles = (%q, %v)", cfg.ArticlesRole, cfg.ArticlesUnprotected)
	}
	if len(cfg.ArticlesActions) != 2 || cfg.ArticlesActions[0] != "index" {
		t.Errorf("ArticlesActions = %v, want [index show]", cfg.ArticlesActions)
	}
}

// TestLoad_EnvOverrides verifies that CACHE_BACKEND and MEMCACHED_ADDRS
// beat the file.
func TestLoad_EnvOverrides(t *testing.T) {
	writeConfig(t, "dev", `
cache:
  backend: in_memory
`)
	t.Setenv("CACHE_BACKEND", "memcached")
	t.Setenv("MEMCACHED_ADDRS", "override:11211")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.CacheBackend != "memcached" {
		t.Errorf("CacheBackend = %q, want memcached", cfg.CacheBackend)
	}
	if cfg.MemcachedAddrs != "override:11211" {
		t.Errorf("MemcachedAddrs = %q, want override:11211", cfg.MemcachedAddrs)
	}
}

// TestLoad_EnvName verifies that ENV_NAME selects the config file.
func TestLoad_EnvName(t *testing.T) {
	writeConfig(t, "staging", `
server:
  port: "7070"
`)
	t.Setenv("ENV_NAME", "staging")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ServerPort != "7070" {
		t.Errorf("ServerPort = %q, want 7070", cfg.ServerPort)
	}
}

// TestLoad_Invalid covers the validation rejections.
func TestLoad_Invalid(t *testing.T) {
	t.Run("unknown cache backend", func(t *testing.T) {
		writeConfig(t, "dev", `
cache:
  backend: redis
`)
		if _, err := Load(); err == nil {
			t.Fatal("Load() with unknown backend should fail")
		}
	})

	t.Run("unknown role", func(t *testing.T) {
		writeConfig(t, "dev", `
articles:
  role: superuser
`)
		if _, err := Load(); err == nil {
			t.Fatal("Load() with unknown role should fail")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		dir := t.TempDir()
		cwd, _ := os.Getwd()
		if err := os.Chdir(dir); err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { _ = os.Chdir(cwd) })
		if _, err := Load(); err == nil {
			t.Fatal("Load() without a config file should fail")
		}
	})
}

// TestParseDuration verifies fallback behavior for bad values.
func TestParseDuration(t *testing.T) {
	if got := parseDuration("", time.Second); got != time.Second {
		t.Errorf("empty = %v, want default", got)
	}
	if got := parseDuration("nonsense", time.Second); got != time.Second {
		t.Errorf("unparseable = %v, want default", got)
	}
	if got := parseDuration("-5s", time.Second); got != time.Second {
		t.Errorf("negative = %v, want default", got)
	}
	if got := parseDuration("1500ms", time.Second); got != 1500*time.Millisecond {
		t.Errorf("valid = %v, want 1.5s", got)
	}
}
