package config

import "time"

type Config interface {
	EnvConfig
	CorsConfig
	OAuthConfig
	SecurityConfig
	StoreConfig
	DatabaseConfig
	RiskConfig
	MetricsConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetBaseURL() string
	GetSentryDSN() string
	GetBootstrapAdminEmail() string
	GetBootstrapAdminPassword() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() []string
	GetAllowedHeaders() []string
}

type StoreConfig interface {
	GetStoreBackend() string
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
	GetStoreMemoryFallback() bool
}

type DatabaseConfig interface {
	GetDatabaseDriver() string
	GetDatabaseDSN() string
}

type RiskConfig interface {
	GetProfileCacheSize() int
	GetProfileCacheTTL() time.Duration
	GetProfileSampleSize() int
	GetFailedAttemptWindow() time.Duration
}

type MetricsConfig interface {
	GetOTLPEndpoint() string
	GetOTLPInsecure() bool
	GetMetricsExportInterval() time.Duration
}

type mainConfig struct {
	EnvVars
	Cors
	OAuth
	Security
	Store
	Database
	Risk
	Metrics
}

func New() Config {
	return mainConfig{}
}
