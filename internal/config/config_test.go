package config

import "testing"

func TestLoadRequiresDatabaseURL(t *testing.T) {
	_, err := LoadForTests(map[string]string{
		"DATABASE_URL": "",
		"REDIS_URL":    "redis://localhost:6379",
		"JWT_SECRET":   "secret",
	})
	if err == nil {
		t.Fatal("expected error when DATABASE_URL missing")
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"DATABASE_URL": "postgres://localhost/towdesk",
		"REDIS_URL":    "redis://localhost:6379",
		"JWT_SECRET":   "secret",
		"PORT":         "",
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr() != ":8080" {
		t.Fatalf("expected :8080, got %s", cfg.HTTPAddr())
	}
	if cfg.GratuityLabel != "Gratuity" {
		t.Fatalf("expected default gratuity label, got %q", cfg.GratuityLabel)
	}
	if cfg.SquareBaseURL == "" {
		t.Fatal("expected square base url default")
	}
	if cfg.IdempotencyTTL <= 0 || cfg.WebhookReplayTTL <= 0 {
		t.Fatal("expected positive TTL defaults")
	}
}

func TestHTTPAddrPassthrough(t *testing.T) {
	cfg := &Config{Port: ":9000"}
	if cfg.HTTPAddr() != ":9000" {
		t.Fatalf("unexpected addr %s", cfg.HTTPAddr())
	}
}
