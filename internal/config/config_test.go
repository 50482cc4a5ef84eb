package config

import (
	"os"
	"testing"
)

func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old, had := os.LookupEnv(key)
	os.Setenv(key, value)
	t.Cleanup(func() {
		if had {
			os.Setenv(key, old)
		} else {
			os.Unsetenv(key)
		}
	})
}

func TestLoad_Defaults(t *testing.T) {
	setEnv(t, "DATABASE_URL", "postgres://localhost:5432/clinic")
	setEnv(t, "ENV", "development")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != "8000" {
		t.Errorf("expected default port 8000, got %s", cfg.Port)
	}
	if cfg.DBMaxConns != 20 {
		t.Errorf("expected default max conns 20, got %d", cfg.DBMaxConns)
	}
	if cfg.SessionTTLMin != 720 {
		t.Errorf("expected default session TTL 720, got %d", cfg.SessionTTLMin)
	}
	if cfg.JWTSecret == "" {
		t.Error("expected development JWT secret fallback")
	}
}

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	setEnv(t, "DATABASE_URL", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when DATABASE_URL is missing")
	}
}

func TestValidate_ProductionRequiresSecret(t *testing.T) {
	cfg := &Config{
		Env:           "production",
		BcryptCost:    12,
		SessionTTLMin: 720,
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing JWT_SECRET in production")
	}

	cfg.JWTSecret = "short"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for short JWT_SECRET")
	}

	cfg.JWTSecret = "0123456789abcdef0123456789abcdef"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_BcryptCostBounds(t *testing.T) {
	cfg := &Config{
		Env:           "development",
		BcryptCost:    4,
		SessionTTLMin: 720,
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for out-of-range bcrypt cost")
	}
}

func TestSessionTTL(t *testing.T) {
	cfg := &Config{SessionTTLMin: 90}
	if got := cfg.SessionTTL().Minutes(); got != 90 {
		t.Errorf("expected 90 minutes, got %v", got)
	}
}
