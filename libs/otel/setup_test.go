package otelx

import (
	"context"
	"testing"
)

func TestConfigFromEnvDefaultsOff(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "")
	t.Setenv("OTEL_SAMPLING_RATIO", "0.25")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://collector:4317")

	cfg := ConfigFromEnv("appointment-service")
	if cfg.Enabled {
		t.Fatal("expected tracing disabled by default")
	}
	if cfg.SampleRatio != 0.25 {
		t.Fatalf("expected ratio 0.25, got %v", cfg.SampleRatio)
	}
	if cfg.OTLPEndpoint != "collector:4317" {
		t.Fatalf("unexpected endpoint %q", cfg.OTLPEndpoint)
	}

	shutdown, err := Setup(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}
}
