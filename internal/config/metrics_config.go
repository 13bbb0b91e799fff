package config

import "time"

type Metrics struct{}

var _ MetricsConfig = Metrics{}

// GetOTLPEndpoint is the OTLP gRPC collector address. Empty keeps metrics in process.
func (Metrics) GetOTLPEndpoint() string {
	return GetEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
}

func (Metrics) GetOTLPInsecure() bool {
	return GetEnvBool("OTEL_EXPORTER_OTLP_INSECURE", false)
}

func (Metrics) GetMetricsExportInterval() time.Duration {
	return GetEnvDuration("OTEL_METRICS_EXPORT_INTERVAL", 30*time.Second)
}
