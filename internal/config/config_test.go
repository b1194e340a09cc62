package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("EVENT_BROKER", "")
	t.Setenv("PRODUCT_CACHE_TTL", "")

	cfg := Load()

	if cfg.Port != "8081" {
		t.Errorf("port: got %s, want 8081", cfg.Port)
	}
	if cfg.EventBroker != "none" {
		t.Errorf("event broker: got %s, want none", cfg.EventBroker)
	}
	if cfg.ProductTTL != 10*time.Minute {
		t.Errorf("product ttl: got %v, want 10m", cfg.ProductTTL)
	}
	if cfg.Location == nil {
		t.Error("location should never be nil")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,,")
	t.Setenv("PRODUCT_CACHE_TTL", "30s")
	t.Setenv("TIMEZONE", "UTC")

	cfg := Load()

	if cfg.Port != "9000" {
		t.Errorf("port: got %s, want 9000", cfg.Port)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Errorf("kafka brokers: got %v", cfg.KafkaBrokers)
	}
	if cfg.ProductTTL != 30*time.Second {
		t.Errorf("product ttl: got %v, want 30s", cfg.ProductTTL)
	}
	if cfg.Location.String() != "UTC" {
		t.Errorf("location: got %s, want UTC", cfg.Location)
	}
}

func TestGetDuration_InvalidFallsBack(t *testing.T) {
	t.Setenv("SOME_TTL", "soon")

	if got := getDuration("SOME_TTL", time.Minute); got != time.Minute {
		t.Errorf("got %v, want fallback 1m", got)
	}
}
