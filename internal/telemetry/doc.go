// Package telemetry wires OpenTelemetry tracing and metrics for wonquotes.
//
// Telemetry is off by default. When enabled it exports over OTLP (gRPC or
// HTTP/protobuf) to a collector, installs the global tracer and meter
// providers, and W3C trace-context propagation. Exporter setup failures
// leave the instance degraded rather than failing the command.
//
// Tests use NewTestTelemetry, which records spans in memory and collects
// metrics through a manual reader:
//
//	tt := telemetry.NewTestTelemetry()
//	o := oracle.New(provider, oracle.WithMeterProvider(tt.MeterProvider()))
//	o.Recommend(ctx, req)
//	tt.AssertSpanExists(t, "oracle.Recommend")
package telemetry
