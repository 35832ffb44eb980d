package tracing_test

import (
	"context"
	"testing"

	"nmafoods/api/config"
	"nmafoods/api/tracing"
)

func TestSetup_NoopWhenEndpointEmpty(t *testing.T) {
	shutdown, err := tracing.Setup(context.Background(), config.OTelConfig{Enabled: true}, "test-service")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestSetup_NoopWhenDisabled(t *testing.T) {
	cfg := config.OTelConfig{Endpoint: "http://localhost:4318", Enabled: false}

	shutdown, err := tracing.Setup(context.Background(), cfg, "test-service")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestSetup_CreatesProviderWhenEndpointSet(t *testing.T) {
	// Non-routable address; nothing is exported before shutdown.
	cfg := config.OTelConfig{Endpoint: "http://192.0.2.1:4318", Enabled: true}

	shutdown, err := tracing.Setup(context.Background(), cfg, "test-service")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}
