package tracing

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewProvider_Disabled(t *testing.T) {
	provider, err := NewProvider(Config{Enabled: false})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.IsEnabled() {
		t.Error("expected tracing to be disabled")
	}
	if err := provider.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() on disabled provider error = %v", err)
	}
	if provider.Tracer("test") == nil {
		t.Error("expected a no-op tracer from disabled provider")
	}
}

func TestNewProvider_InvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{"missing service name", Config{Enabled: true, SamplingRate: 0.5}, ErrNoServiceName},
		{"negative sampling", Config{Enabled: true, ServiceName: "svc", SamplingRate: -0.1}, ErrSamplingRange},
		{"sampling above one", Config{Enabled: true, ServiceName: "svc", SamplingRate: 1.5}, ErrSamplingRange},
		{"unknown exporter", Config{Enabled: true, ServiceName: "svc", SamplingRate: 1, ExporterType: "zipkin"}, ErrUnknownExporter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewProvider(tt.cfg); !errors.Is(err, tt.wantErr) {
				t.Errorf("NewProvider() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewProvider_ValidConfig(t *testing.T) {
	tests := []struct {
		name         string
		exporterType string
		samplingRate float64
		endpoint     string
	}{
		{"otlp-http partial sampling", ExporterOTLPHTTP, 0.1, "localhost:4318"},
		{"otlp-grpc full sampling", ExporterOTLPGRPC, 1.0, "localhost:4317"},
		{"default exporter no sampling", "", 0.0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := NewProvider(Config{
				ServiceName:  "highlights-test",
				Enabled:      true,
				Environment:  "test",
				ExporterType: tt.exporterType,
				OTLPEndpoint: tt.endpoint,
				SamplingRate: tt.samplingRate,
				InsecureMode: true,
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !provider.IsEnabled() {
				t.Error("expected tracing to be enabled")
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := provider.Shutdown(ctx); err != nil {
				t.Errorf("unexpected shutdown error: %v", err)
			}
		})
	}
}
