package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Cache.Driver != "sqlite" {
		t.Fatalf("cache driver = %q, want sqlite", cfg.Cache.Driver)
	}
	if cfg.Backend.BaseURL != "http://localhost:1337" {
		t.Fatalf("backend url = %q", cfg.Backend.BaseURL)
	}
	if cfg.Backend.Timeout != 0 {
		t.Fatalf("backend timeout = %v, want 0", cfg.Backend.Timeout)
	}
}

func TestLoadReadsYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte(`
log:
  level: debug
  format: json
backend:
  base_url: http://helpdesk.test
  timeout: 5s
cache:
  driver: redis
  redis:
    addr: 127.0.0.1:6379
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Backend.BaseURL != "http://helpdesk.test" || cfg.Backend.Timeout != 5*time.Second {
		t.Fatalf("backend = %+v", cfg.Backend)
	}
	if cfg.Cache.Driver != "redis" || cfg.Cache.Redis.Addr != "127.0.0.1:6379" {
		t.Fatalf("cache = %+v", cfg.Cache)
	}
	if cfg.Log.Format != "json" {
		t.Fatalf("log format = %q", cfg.Log.Format)
	}
}

func TestValidateRejectsRedisWithoutAddr(t *testing.T) {
	cfg := Config{
		Database: DatabaseConfig{DSN: "x.sqlite"},
		Backend:  BackendConfig{BaseURL: "http://localhost"},
		Cache:    CacheConfig{Driver: "redis"},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("Validate() expected error for redis without addr")
	}
	cfg.Cache.Driver = "memcached"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("Validate() expected error for unknown driver")
	}
}
