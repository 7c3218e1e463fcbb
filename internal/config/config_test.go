package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Port)
	}
	if cfg.Store != "memory" {
		t.Errorf("expected memory store default, got %q", cfg.Store)
	}
	if cfg.Gateway != "log" || cfg.TrackSink != "log" {
		t.Errorf("expected log gateway and sink defaults, got %q/%q", cfg.Gateway, cfg.TrackSink)
	}
	if cfg.DispatchInterval != 30*time.Second {
		t.Errorf("expected 30s dispatch interval, got %v", cfg.DispatchInterval)
	}
	if cfg.DispatchBatchSize != 50 {
		t.Errorf("expected batch size 50, got %d", cfg.DispatchBatchSize)
	}
	if cfg.RetryBaseDelay != 5*time.Minute {
		t.Errorf("expected 5m retry base delay, got %v", cfg.RetryBaseDelay)
	}
	if cfg.RedisHost != "" {
		t.Errorf("expected cache disabled by default, got redis host %q", cfg.RedisHost)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("QUEUE_STORE", "postgres")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("GATEWAY", "webhook")
	t.Setenv("WEBHOOK_URL", "https://hooks.example.com/notify")
	t.Setenv("WEBHOOK_TIMEOUT", "5s")
	t.Setenv("DISPATCH_INTERVAL", "10s")
	t.Setenv("DISPATCH_BATCH_SIZE", "25")
	t.Setenv("RETRY_BASE_DELAY", "1m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Port)
	}
	if cfg.Store != "postgres" || cfg.DBHost != "db.internal" {
		t.Errorf("unexpected store config: %q on %q", cfg.Store, cfg.DBHost)
	}
	if cfg.Gateway != "webhook" || cfg.WebhookURL != "https://hooks.example.com/notify" {
		t.Errorf("unexpected gateway config: %q %q", cfg.Gateway, cfg.WebhookURL)
	}
	if cfg.WebhookTimeout != 5*time.Second {
		t.Errorf("expected 5s webhook timeout, got %v", cfg.WebhookTimeout)
	}
	if cfg.DispatchInterval != 10*time.Second || cfg.DispatchBatchSize != 25 {
		t.Errorf("unexpected dispatch config: %v/%d", cfg.DispatchInterval, cfg.DispatchBatchSize)
	}
	if cfg.RetryBaseDelay != time.Minute {
		t.Errorf("expected 1m retry base delay, got %v", cfg.RetryBaseDelay)
	}
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"PORT":              "not-a-port",
		"QUEUE_STORE":       "cassandra",
		"GATEWAY":           "carrier-pigeon",
		"TRACK_SINK":        "kafka",
		"DISPATCH_INTERVAL": "soon",
		"PREFS_CACHE_TTL":   "forever",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Errorf("expected error for %s=%q", key, value)
			}
		})
	}
}
