package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if cfg.Addr != ":8080" || cfg.DBPath != "coursebook.db" || cfg.SessionTTL != 24*time.Hour {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.AdminPassword != DevAdminPassword {
		t.Errorf("AdminPassword = %q, want dev default", cfg.AdminPassword)
	}
	if cfg.Location().String() != "Europe/Berlin" {
		t.Errorf("Location() = %s", cfg.Location())
	}
	key, err := cfg.CSRFKeyBytes()
	if err != nil || len(key) != 32 {
		t.Errorf("CSRFKeyBytes() = %d bytes, %v", len(key), err)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("COURSEBOOK_ADDR", "127.0.0.1:9000")
	t.Setenv("COURSEBOOK_TRUSTED_ORIGINS", "kurse.example.org,localhost:8080")
	t.Setenv("COURSEBOOK_SLOW_QUERY", "75ms")
	t.Setenv("COURSEBOOK_CSRF_KEY", strings.Repeat("ab", 32))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if cfg.Addr != "127.0.0.1:9000" || cfg.SlowQuery != 75*time.Millisecond {
		t.Errorf("cfg = %+v", cfg)
	}
	if len(cfg.TrustedOrigins) != 2 || cfg.TrustedOrigins[1] != "localhost:8080" {
		t.Errorf("TrustedOrigins = %v", cfg.TrustedOrigins)
	}
	key, err := cfg.CSRFKeyBytes()
	if err != nil || key[0] != 0xab {
		t.Errorf("CSRFKeyBytes() = %x, %v", key, err)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"bad duration", map[string]string{"COURSEBOOK_SESSION_TTL": "soon"}, "parse env"},
		{"production secrets", map[string]string{"COURSEBOOK_ENV": "production"}, "COURSEBOOK_ADMIN_PASSWORD"},
		{"short csrf key", map[string]string{"COURSEBOOK_CSRF_KEY": "abcd"}, "64 hex"},
		{"timezone", map[string]string{"COURSEBOOK_TIMEZONE": "Mars/Olympus"}, "COURSEBOOK_TIMEZONE"},
		{"log level", map[string]string{"COURSEBOOK_LOG_LEVEL": "loud"}, "COURSEBOOK_LOG_LEVEL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load() = %v, want error containing %q", err, tt.want)
			}
		})
	}
}
