package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Auth.APITokenHeader != "X-API-Token" {
		t.Errorf("token header = %q", cfg.Auth.APITokenHeader)
	}
	if cfg.Store.Driver != "sqlite" {
		t.Errorf("driver = %q", cfg.Store.Driver)
	}
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("VENDHUB_TEST_SECRET", "s3cret")

	path := filepath.Join(t.TempDir(), "vendhub.yaml")
	data := []byte(`
server:
  port: 9090
auth:
  jwt_secret: ${VENDHUB_TEST_SECRET}
store:
  driver: postgres
  dsn: postgres://vendhub@localhost/vendhub
`)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Auth.JWTSecret != "s3cret" {
		t.Errorf("jwt secret = %q, env not expanded", cfg.Auth.JWTSecret)
	}
	if cfg.Store.Driver != "postgres" {
		t.Errorf("driver = %q", cfg.Store.Driver)
	}
	// Unset fields keep their defaults.
	if cfg.Auth.APITokenHeader != "X-API-Token" {
		t.Errorf("token header = %q, defaults not preserved", cfg.Auth.APITokenHeader)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("load of missing file succeeded")
	}
}

func TestWriteDefaultRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vendhub.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("write default: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load written default: %v", err)
	}
	if cfg.Server.Host != "0.0.0.0" || cfg.Logging.Level != "info" {
		t.Errorf("round-tripped config = %+v", cfg)
	}
}
