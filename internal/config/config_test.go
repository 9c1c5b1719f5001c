package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Kafka.Topic != "order.events" {
		t.Errorf("topic = %q", cfg.Kafka.Topic)
	}
	if cfg.Consumer.MaxRetries != 3 || cfg.Consumer.InitialBackoff != time.Second {
		t.Errorf("consumer = %+v", cfg.Consumer)
	}
	if cfg.Consumer.ReopenFailed {
		t.Errorf("failed records must be terminal by default")
	}
	if len(cfg.Kafka.Brokers) != 1 || cfg.Kafka.Brokers[0] != "localhost:9092" {
		t.Errorf("brokers = %v", cfg.Kafka.Brokers)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("CONSUMER_REOPEN_FAILED", "true")
	t.Setenv("CONSUMER_MAX_BACKOFF", "30s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "k2:9092" {
		t.Errorf("brokers = %v", cfg.Kafka.Brokers)
	}
	if !cfg.Consumer.ReopenFailed {
		t.Errorf("reopen_failed not applied")
	}
	if cfg.Consumer.MaxBackoff != 30*time.Second {
		t.Errorf("max backoff = %v", cfg.Consumer.MaxBackoff)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "kafka:\n  topic: custom.orders\n  group_id: g1\nhttp:\n  addr: \":9999\"\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("CONFIG_PATH", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Kafka.Topic != "custom.orders" || cfg.Kafka.GroupID != "g1" || cfg.HTTP.Addr != ":9999" {
		t.Fatalf("cfg = %+v / %+v", cfg.Kafka, cfg.HTTP)
	}
	if cfg.Postgres.MaxConns != 10 {
		t.Fatalf("defaults not applied alongside file: %+v", cfg.Postgres)
	}
}

func TestValidate(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	cfg.Kafka.StartOffset = "middle"
	cfg.Consumer.MaxBackoff = time.Millisecond
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}
