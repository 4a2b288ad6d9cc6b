package telemetry

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestSetup_DisabledWithoutEndpoint(t *testing.T) {
	before := otel.GetTracerProvider()
	shutdown, err := Setup(context.Background(), "coursebook", "test", "")
	if err != nil {
		t.Fatalf("Setup() = %v", err)
	}
	if otel.GetTracerProvider() != before {
		t.Error("Setup without endpoint replaced the tracer provider")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown() = %v", err)
	}
}

func TestSetup_WithEndpoint(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	shutdown, err := Setup(context.Background(), "coursebook", "test", "http://127.0.0.1:4318/v1/traces")
	if err != nil {
		t.Fatalf("Setup() = %v", err)
	}
	if otel.GetTracerProvider() == prev {
		t.Error("tracer provider not installed")
	}
	// Nothing was exported, so shutdown does not need the collector.
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown() = %v", err)
	}
}
