package main

import (
	"context"
	"log"
	"os"

	"github.com/yairfalse/kartta/telemetry"
)

// initTelemetry initializes OTEL for Kartta
// Can be disabled with KARTTA_TELEMETRY_DISABLED=true
func initTelemetry(ctx context.Context) func() {
	if os.Getenv("KARTTA_TELEMETRY_DISABLED") == "true" {
		log.Println("📡 Telemetry disabled")
		return func() {}
	}

	cfg := telemetry.Config{
		ServiceName:    "kartta",
		ServiceVersion: version,
		Environment:    os.Getenv("KARTTA_ENVIRONMENT"),
		OTELEndpoint:   os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		Insecure:       true, // For local development
	}

	if cfg.OTELEndpoint == "" {
		cfg.OTELEndpoint = "localhost:4317"
	}

	shutdown, err := telemetry.InitOTEL(ctx, cfg)
	if err != nil {
		// Don't fail if OTEL init fails - just warn
		log.Printf("⚠️  Telemetry initialization failed: %v", err)
		log.Println("📡 Running without telemetry")
		return func() {}
	}

	log.Printf("📡 Telemetry enabled → %s", cfg.OTELEndpoint)

	return func() {
		if err := shutdown(context.Background()); err != nil {
			log.Printf("Error shutting down telemetry: %v", err)
		}
	}
}

// Environment variables for configuration:
// - OTEL_EXPORTER_OTLP_ENDPOINT: Where to send telemetry (default: localhost:4317)
// - KARTTA_TELEMETRY_DISABLED: Set to "true" to disable telemetry
// - KARTTA_ENVIRONMENT: Environment name (dev, staging, prod)
