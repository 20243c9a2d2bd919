package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.QueueConcurrency != 3 {
		t.Errorf("QueueConcurrency = %d, want 3", cfg.QueueConcurrency)
	}
	if cfg.QueueRetryDelay != 5*time.Second {
		t.Errorf("QueueRetryDelay = %v, want 5s", cfg.QueueRetryDelay)
	}
	if cfg.ResolveAIThreshold != 0.9 {
		t.Errorf("ResolveAIThreshold = %v, want 0.9", cfg.ResolveAIThreshold)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("QUEUE_MAX_ATTEMPTS", "5")
	t.Setenv("QUEUE_RETRY_DELAY", "30s")
	t.Setenv("PROVIDER_RPS", "0.5")
	t.Setenv("NATS_INBOUND_SUBJECT", "orders.test")

	cfg := Load()

	if cfg.QueueMaxAttempts != 5 {
		t.Errorf("QueueMaxAttempts = %d, want 5", cfg.QueueMaxAttempts)
	}
	if cfg.QueueRetryDelay != 30*time.Second {
		t.Errorf("QueueRetryDelay = %v, want 30s", cfg.QueueRetryDelay)
	}
	if cfg.ProviderRPS != 0.5 {
		t.Errorf("ProviderRPS = %v, want 0.5", cfg.ProviderRPS)
	}
	if cfg.NATSInboundSubject != "orders.test" {
		t.Errorf("NATSInboundSubject = %q, want orders.test", cfg.NATSInboundSubject)
	}
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	t.Setenv("QUEUE_CONCURRENCY", "lots")
	t.Setenv("QUEUE_RETRY_DELAY", "soon")
	t.Setenv("RESOLVE_AI_THRESHOLD", "high")

	cfg := Load()

	if cfg.QueueConcurrency != 3 {
		t.Errorf("QueueConcurrency = %d, want fallback 3", cfg.QueueConcurrency)
	}
	if cfg.QueueRetryDelay != 5*time.Second {
		t.Errorf("QueueRetryDelay = %v, want fallback 5s", cfg.QueueRetryDelay)
	}
	if cfg.ResolveAIThreshold != 0.9 {
		t.Errorf("ResolveAIThreshold = %v, want fallback 0.9", cfg.ResolveAIThreshold)
	}
}
