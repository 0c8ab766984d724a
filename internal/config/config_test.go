package config

import (
	"testing"
	"time"
)

func TestLoadRateLimitConfigClampsValues(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	cfg := LoadRateLimitConfig()
	if cfg.Capacity != 1 {
		t.Errorf("Capacity = %d, want 1", cfg.Capacity)
	}
	if cfg.TTL != 10*time.Second {
		t.Errorf("TTL = %v, want 10s (5 refill intervals)", cfg.TTL)
	}
}

func TestLoadOTPConfigDefaults(t *testing.T) {
	t.Setenv("OTP_SECRET", "s3cret")

	cfg := LoadOTPConfig()
	if cfg.Length != 6 {
		t.Errorf("Length = %d, want 6", cfg.Length)
	}
	if cfg.TTL != 15*time.Minute {
		t.Errorf("TTL = %v, want 15m", cfg.TTL)
	}
	if cfg.MaxRequests != 5 || cfg.Window != 15*time.Minute {
		t.Errorf("window = %d/%v, want 5/15m", cfg.MaxRequests, cfg.Window)
	}
}

func TestLoadOTPConfigOverrides(t *testing.T) {
	t.Setenv("OTP_SECRET", "s3cret")
	t.Setenv("OTP_RATE_MAX", "-3")
	t.Setenv("OTP_RATE_WINDOW", "1h")
	t.Setenv("OTP_LENGTH", "8")

	cfg := LoadOTPConfig()
	if cfg.MaxRequests != 1 {
		t.Errorf("MaxRequests = %d, want clamp to 1", cfg.MaxRequests)
	}
	if cfg.Window != time.Hour {
		t.Errorf("Window = %v, want 1h", cfg.Window)
	}
	if cfg.Length != 8 {
		t.Errorf("Length = %d, want 8", cfg.Length)
	}
}

func TestLoadCacheConfigMethods(t *testing.T) {
	t.Setenv("CACHE_METHODS", "get, head")

	cfg := LoadCacheConfig()
	if !cfg.Methods["GET"] || !cfg.Methods["HEAD"] || len(cfg.Methods) != 2 {
		t.Errorf("Methods = %v, want GET and HEAD", cfg.Methods)
	}
}

func TestLoadRedisConfigHostPort(t *testing.T) {
	t.Setenv("REDIS_HOST", "cache.internal")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("REDIS_TLS", "1")

	rc := LoadRedisConfig()
	if rc.Addr != "cache.internal:6380" {
		t.Errorf("Addr = %q", rc.Addr)
	}
	if !rc.TLS {
		t.Error("expected TLS enabled")
	}
}
