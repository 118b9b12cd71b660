package config

import "testing"

func TestFromEnvRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_ACCESS_SECRET", "secret")

	if _, err := fromEnv(); err == nil {
		t.Fatal("expected error when DATABASE_URL is empty")
	}
}

func TestFromEnvRejectsWildcardWithCredentials(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/crm")
	t.Setenv("JWT_ACCESS_SECRET", "secret")
	t.Setenv("CORS_ORIGINS", "*")
	t.Setenv("CORS_ALLOW_CREDENTIALS", "true")

	if _, err := fromEnv(); err == nil {
		t.Fatal("expected error for wildcard origin with credentials")
	}
}

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/crm")
	t.Setenv("JWT_ACCESS_SECRET", "secret")
	t.Setenv("CORS_ORIGINS", "http://localhost:4200")
	t.Setenv("SMTP_HOST", "")

	cfg, err := fromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.GetAsynqMaxRetry() != 3 {
		t.Fatalf("expected default max retry 3, got %d", cfg.GetAsynqMaxRetry())
	}
	if cfg.GetEmailEnabled() {
		t.Fatal("expected email to be disabled without SMTP_HOST")
	}
	if cfg.IsMinIOEnabled() {
		t.Fatal("expected MinIO to be disabled without endpoint")
	}
	if cfg.GetPipelineTxTimeout().Seconds() != 10 {
		t.Fatalf("expected 10s pipeline timeout, got %s", cfg.GetPipelineTxTimeout())
	}
}
